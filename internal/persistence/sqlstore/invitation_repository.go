package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/slotbooking/internal/persistence"
)

const invitationColumns = `invitation_id, slot_id, sender_email, recipient_email, status,
	sent_at, responded_at, expires_at, is_active`

type invitationRow struct {
	ID             string        `db:"invitation_id"`
	SlotID         string        `db:"slot_id"`
	SenderEmail    string        `db:"sender_email"`
	RecipientEmail string        `db:"recipient_email"`
	Status         string        `db:"status"`
	SentAt         int64         `db:"sent_at"`
	RespondedAt    sql.NullInt64 `db:"responded_at"`
	ExpiresAt      int64         `db:"expires_at"`
	IsActive       int           `db:"is_active"`
}

func (r invitationRow) record() persistence.Invitation {
	inv := persistence.Invitation{
		ID:             r.ID,
		SlotID:         r.SlotID,
		SenderEmail:    r.SenderEmail,
		RecipientEmail: r.RecipientEmail,
		Status:         persistence.InvitationStatus(r.Status),
		SentAt:         fromMillis(r.SentAt),
		ExpiresAt:      fromMillis(r.ExpiresAt),
		IsActive:       r.IsActive != 0,
	}
	if r.RespondedAt.Valid {
		at := fromMillis(r.RespondedAt.Int64)
		inv.RespondedAt = &at
	}
	return inv
}

type invitationRepository struct {
	q sqlx.ExtContext
}

func (r invitationRepository) CreateInvitations(ctx context.Context, invitations []persistence.Invitation) error {
	query := r.q.Rebind(`INSERT INTO invitations (` + invitationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, inv := range invitations {
		var responded sql.NullInt64
		if inv.RespondedAt != nil {
			responded = sql.NullInt64{Int64: toMillis(*inv.RespondedAt), Valid: true}
		}
		if _, err := r.q.ExecContext(ctx, query,
			inv.ID,
			inv.SlotID,
			inv.SenderEmail,
			inv.RecipientEmail,
			string(inv.Status),
			toMillis(inv.SentAt),
			responded,
			toMillis(inv.ExpiresAt),
			boolToInt(inv.IsActive),
		); err != nil {
			return fmt.Errorf("insert invitation for %s: %w", inv.RecipientEmail, NewErrorMapper().MapError(err))
		}
	}
	return nil
}

func (r invitationRepository) GetInvitation(ctx context.Context, id string) (persistence.Invitation, error) {
	var row invitationRow
	query := r.q.Rebind(`SELECT ` + invitationColumns + ` FROM invitations WHERE invitation_id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		return persistence.Invitation{}, fmt.Errorf("get invitation: %w", NewErrorMapper().MapError(err))
	}
	return row.record(), nil
}

func (r invitationRepository) ListInvitations(ctx context.Context, filter persistence.InvitationFilter) ([]persistence.Invitation, error) {
	var where whereBuilder
	if filter.SlotID != "" {
		where.add("slot_id = ?", filter.SlotID)
	}
	if filter.RecipientEmail != "" {
		where.add("recipient_email = ?", filter.RecipientEmail)
	}
	if len(filter.Statuses) > 0 {
		where.add("status IN (?)", stringsOf(filter.Statuses))
	}
	if filter.ActiveOnly {
		where.add("is_active = 1")
	}
	if !filter.SentSince.IsZero() {
		where.add("sent_at >= ?", toMillis(filter.SentSince))
	}

	query, args, err := bind(r.q, `SELECT `+invitationColumns+` FROM invitations`+where.String()+
		` ORDER BY sent_at, recipient_email`, where.args...)
	if err != nil {
		return nil, fmt.Errorf("build invitation query: %w", err)
	}

	var rows []invitationRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list invitations: %w", NewErrorMapper().MapError(err))
	}
	invitations := make([]persistence.Invitation, 0, len(rows))
	for _, row := range rows {
		invitations = append(invitations, row.record())
	}
	return invitations, nil
}

func (r invitationRepository) UpdateInvitations(ctx context.Context, u persistence.InvitationUpdate) (int64, error) {
	var where whereBuilder
	if u.InvitationID != "" {
		where.add("invitation_id = ?", u.InvitationID)
	} else {
		where.add("is_active = 1")
	}
	if u.SlotID != "" {
		where.add("slot_id = ?", u.SlotID)
	}
	if len(u.RecipientEmails) > 0 {
		where.add("recipient_email IN (?)", u.RecipientEmails)
	}
	if len(u.From) > 0 {
		where.add("status IN (?)", stringsOf(u.From))
	}
	if u.InvitationID == "" && u.SlotID == "" {
		return 0, fmt.Errorf("update invitations: slot or invitation id is required")
	}

	args := append([]any{string(u.To), boolToInt(u.IsActive), toMillis(u.RespondedAt)}, where.args...)
	query, args, err := bind(r.q, `UPDATE invitations SET status = ?, is_active = ?, responded_at = ?`+where.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("build invitation update: %w", err)
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update invitations: %w", NewErrorMapper().MapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update invitations: %w", NewErrorMapper().MapError(err))
	}
	return affected, nil
}
