// Package http exposes the slot booking API over JSON.
//
// Every route except /healthz requires an HS256 bearer token whose email
// claim identifies the caller (RequireBearer). The caller's account is
// created with the baseline balance on first sight.
//
//   - POST /slots: hold a window. Body {"gameId","startTime","endTime","invitees"}.
//     201 with {"slot","invitations"}.
//   - GET /slots?gameId=&view=active|expired|mine|invited: today's slots.
//   - GET /slots/{id}, PUT /slots/{id} (body {"invitees"}), POST /slots/{id}/cancel.
//   - GET /invitations?slotId=: a slot's invitations, or the caller's from today.
//   - POST /invitations/{id}/accept, POST /invitations/{id}/decline.
//   - GET /games, GET /games/{id}/windows: catalog and today's window occupancy.
//   - GET /accounts/me: the caller's remaining chances.
//   - GET /events/{topic}: Server-Sent Events for slot.created,
//     slot.statusUpdated, or slot.expired.
//   - GET /events/ws?topics=a,b: the same events over a WebSocket.
//
// Errors are JSON {"error_code","message","errors"}. Validation failures map
// to 422, missing resources to 404, taken windows and stale state to 409,
// an empty balance to 402, a busy store to 503, and acting on someone else's
// slot or invitation to 403.
package http
