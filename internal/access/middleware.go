package access

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sol-suite/sol-access/internal/shared"
)

// ActorHeader names the header the upstream gateway sets after
// authentication. The engine itself never resolves ambient identity; every
// decision call takes an explicit actor id.
const ActorHeader = "X-Actor-ID"

// ActorMiddleware copies the acting user's id from the request header into
// context. Requests without the header pass through; endpoints that need an
// actor reject them individually.
func ActorMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(ActorHeader))
			if raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || id <= 0 {
					if logger != nil {
						logger.Warn("malformed actor header", slog.String("value", raw))
					}
					http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
					return
				}
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware wires authorization helpers for HTTP handlers. Required
// permissions are canonical keys ("module.submodule.permission").
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// RequireAny ensures the acting user holds at least one of the required
// permissions.
func (m Middleware) RequireAny(keys ...string) func(http.Handler) http.Handler {
	normalized := normalizeKeys(keys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			effective, ok := m.effective(w, r)
			if !ok {
				return
			}
			for _, key := range normalized {
				if d, ok := effective[key]; ok && d.Allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the acting user holds every required permission.
func (m Middleware) RequireAll(keys ...string) func(http.Handler) http.Handler {
	normalized := normalizeKeys(keys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			effective, ok := m.effective(w, r)
			if !ok {
				return
			}
			for _, key := range normalized {
				if d, ok := effective[key]; !ok || !d.Allowed {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) effective(w http.ResponseWriter, r *http.Request) (map[string]Decision, bool) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}
	effective, err := m.Engine.EffectivePermissions(r.Context(), actorID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("resolve effective permissions", slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return effective, true
}

func normalizeKeys(keys []string) []string {
	unique := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(strings.ToLower(k))
		if k == "" {
			continue
		}
		unique[k] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for k := range unique {
		normalized = append(normalized, k)
	}
	return normalized
}
