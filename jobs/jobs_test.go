package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPurger struct {
	retentionDays int
	removed       int64
	err           error
}

func (m *mockPurger) PurgeExpired(ctx context.Context, retentionDays int) (int64, error) {
	m.retentionDays = retentionDays
	return m.removed, m.err
}

func TestOverridePurgeUsesPayloadRetention(t *testing.T) {
	purger := &mockPurger{removed: 3}
	job := NewOverridePurgeJob(purger, slog.Default())

	task, err := NewOverridePurgeTask(OverridePurgePayload{RetentionDays: 14})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 14, purger.retentionDays)
}

func TestOverridePurgeDefaultsRetention(t *testing.T) {
	purger := &mockPurger{}
	job := NewOverridePurgeJob(purger, slog.Default())

	task, err := NewOverridePurgeTask(OverridePurgePayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 30, purger.retentionDays)
}

func TestOverridePurgeMalformedPayloadSkipsRetry(t *testing.T) {
	job := NewOverridePurgeJob(&mockPurger{}, slog.Default())

	task := asynq.NewTask(TaskOverridePurge, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOverridePurgePropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	job := NewOverridePurgeJob(&mockPurger{err: boom}, slog.Default())

	task, err := NewOverridePurgeTask(OverridePurgePayload{RetentionDays: 7})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

type mockLister struct {
	ids []int64
	err error
}

func (m *mockLister) ListUserIDs(ctx context.Context) ([]int64, error) {
	return m.ids, m.err
}

func TestCacheWarmupWarmsEveryUser(t *testing.T) {
	var warmed []int64
	job := NewCacheWarmupJob(&mockLister{ids: []int64{1, 2, 3}}, func(ctx context.Context, userID int64) error {
		warmed = append(warmed, userID)
		return nil
	}, slog.Default())

	task, err := NewCacheWarmupTask(CacheWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []int64{1, 2, 3}, warmed)
}

func TestCacheWarmupCapsUsers(t *testing.T) {
	ids := make([]int64, 10)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	var warmed int
	job := NewCacheWarmupJob(&mockLister{ids: ids}, func(ctx context.Context, userID int64) error {
		warmed++
		return nil
	}, slog.Default())

	task, err := NewCacheWarmupTask(CacheWarmupPayload{MaxUsers: 4})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 4, warmed)
}

func TestCacheWarmupContinuesPastFailures(t *testing.T) {
	var warmed []int64
	job := NewCacheWarmupJob(&mockLister{ids: []int64{1, 2, 3}}, func(ctx context.Context, userID int64) error {
		if userID == 2 {
			return errors.New("redis hiccup")
		}
		warmed = append(warmed, userID)
		return nil
	}, slog.Default())

	task, err := NewCacheWarmupTask(CacheWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []int64{1, 3}, warmed)
}

func mountHealth(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/jobs", h.MountRoutes)
	return r
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	srv := mountHealth(NewHandler(nil, slog.Default()))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestJobsHealthUnreachableBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: addr})
	t.Cleanup(func() { _ = inspector.Close() })
	srv := mountHealth(NewHandler(inspector, slog.Default()))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
