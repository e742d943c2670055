package access

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol-suite/sol-access/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorMiddlewareParsesHeader(t *testing.T) {
	var gotID int64
	var present bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, present = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := ActorMiddleware(slog.Default())(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, present)
	assert.Equal(t, int64(42), gotID)
}

func TestActorMiddlewareMissingHeaderPassesThrough(t *testing.T) {
	var present bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := ActorMiddleware(slog.Default())(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, present)
}

func TestActorMiddlewareRejectsMalformedHeader(t *testing.T) {
	h := ActorMiddleware(slog.Default())(okHandler())

	for _, raw := range []string{"abc", "-1", "0", "9999999999999999999999"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(ActorHeader, raw)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "header %q", raw)
	}
}

func requestWithActor(userID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(shared.ContextWithActor(req.Context(), userID))
}

func TestRequireAnyAllowsHolder(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permRBACUpdate)
	mw := Middleware{Engine: f.engine, Logger: slog.Default()}
	h := mw.RequireAny("administration.rbac.update", "administration.rbac.full")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithActor(7))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAnyAllowsWildcardHolder(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permRBACFull)
	mw := Middleware{Engine: f.engine, Logger: slog.Default()}
	h := mw.RequireAny("administration.rbac.update")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithActor(7))
	assert.Equal(t, http.StatusOK, rec.Code, "holding the submodule wildcard satisfies the exact key")
}

func TestRequireAnyForbidsNonHolder(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permInvRead)
	mw := Middleware{Engine: f.engine, Logger: slog.Default()}
	h := mw.RequireAny("administration.rbac.update")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithActor(7))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyRejectsAnonymous(t *testing.T) {
	f := newFixture()
	mw := Middleware{Engine: f.engine, Logger: slog.Default()}
	h := mw.RequireAny("administration.rbac.update")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no actor is an authentication failure, not a denial")
}

func TestRequireAllNeedsEveryKey(t *testing.T) {
	f := newFixture()
	f.grantRolePerms(7, permRBACRead)
	mw := Middleware{Engine: f.engine, Logger: slog.Default()}

	h := mw.RequireAll("administration.rbac.read", "administration.rbac.update")(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithActor(7))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.grantRolePerms(7, permRBACUpdate)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithActor(7))
	assert.Equal(t, http.StatusOK, rec.Code)
}
