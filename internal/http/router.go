package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Slots       *SlotHandler
	Invitations *InvitationHandler
	Catalog     *CatalogHandler
	Events      *EventsHandler
	// Auth guards every route except /healthz.
	Auth       func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := http.NewServeMux()

	if cfg.Slots != nil {
		api.HandleFunc("/slots", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Slots.List(w, r)
			case http.MethodPost:
				cfg.Slots.Hold(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		api.HandleFunc("/slots/{id}", withID(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Slots.Get(w, r)
			case http.MethodPut:
				cfg.Slots.Edit(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		}))
		api.HandleFunc("/slots/{id}/cancel", withID(only(http.MethodPost, cfg.Slots.Cancel)))
	}

	if cfg.Invitations != nil {
		api.HandleFunc("/invitations", only(http.MethodGet, cfg.Invitations.List))
		api.HandleFunc("/invitations/{id}/accept", withID(only(http.MethodPost, cfg.Invitations.Accept)))
		api.HandleFunc("/invitations/{id}/decline", withID(only(http.MethodPost, cfg.Invitations.Decline)))
	}

	if cfg.Catalog != nil {
		api.HandleFunc("/games", only(http.MethodGet, cfg.Catalog.Games))
		api.HandleFunc("/games/{id}/windows", withID(only(http.MethodGet, cfg.Catalog.Windows)))
		api.HandleFunc("/accounts/me", only(http.MethodGet, cfg.Catalog.Me))
	}

	if cfg.Events != nil {
		api.HandleFunc("/events/ws", only(http.MethodGet, cfg.Events.WebSocket))
		api.HandleFunc("/events/{topic}", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), r.PathValue("topic")))
			cfg.Events.Stream(w, r)
		})
	}

	root := http.NewServeMux()
	var protected http.Handler = api
	if cfg.Auth != nil {
		protected = cfg.Auth(api)
	}
	root.Handle("/", protected)
	if cfg.Catalog != nil {
		root.HandleFunc("/healthz", only(http.MethodGet, cfg.Catalog.Health))
	}

	var handler http.Handler = root
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

// withID moves the {id} path value into the request context.
func withID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.PathValue("id"))
		if id == "" {
			http.NotFound(w, r)
			return
		}
		next(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
	}
}

func only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w, method)
			return
		}
		next(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
