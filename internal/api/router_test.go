package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	mw "github.com/spectraml/spectrajobs/internal/api/middleware"
	"github.com/spectraml/spectrajobs/internal/api/response"
	"github.com/spectraml/spectrajobs/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// nopCache satisfies the rate limiter without a Redis instance.
type nopCache struct{}

func (nopCache) Ping(ctx context.Context) error { return nil }
func (nopCache) SetJobPhase(ctx context.Context, jobID uuid.UUID, phase models.Phase, ttl time.Duration) error {
	return nil
}
func (nopCache) GetJobPhase(ctx context.Context, jobID uuid.UUID) (models.Phase, bool, error) {
	return "", false, nil
}
func (nopCache) DeleteJobPhase(ctx context.Context, jobID uuid.UUID) error { return nil }
func (nopCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	return 1, nil
}

func testRouter(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("worker-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	deps.WorkerAuth = mw.NewWorkerAuth(string(hash))
	deps.RateLimit = mw.NewRateLimit(nopCache{}, 100)
	return NewRouter(deps)
}

func flag(called *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*called = true
		response.JSON(w, map[string]string{"ok": "true"})
	}
}

func TestRouter_Health(t *testing.T) {
	var called bool
	r := testRouter(t, Dependencies{HealthHandler: flag(&called)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRouter_ClientRoutes(t *testing.T) {
	var initJob, listJobs, process, batchEdit bool
	r := testRouter(t, Dependencies{
		InitializeJob:      flag(&initJob),
		ListJobs:           flag(&listJobs),
		ProcessJob:         flag(&process),
		EditLabellingBatch: flag(&batchEdit),
	})

	routes := []struct {
		method string
		target string
		called *bool
	}{
		{http.MethodPost, "/api/v1/jobs", &initJob},
		{http.MethodGet, "/api/v1/jobs", &listJobs},
		{http.MethodPost, "/api/v1/jobs/" + uuid.NewString() + "/process/RUN", &process},
		{http.MethodPatch, "/api/v1/labellings/batch", &batchEdit},
	}
	for _, rt := range routes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, "%s %s", rt.method, rt.target)
		assert.True(t, *rt.called, "%s %s", rt.method, rt.target)
	}
}

func TestRouter_WorkerRouteRequiresToken(t *testing.T) {
	var called bool
	r := testRouter(t, Dependencies{EndJob: flag(&called)})
	target := "/api/v1/worker/jobs/" + uuid.NewString() + "/end/COMPLETE"

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.Header.Set("Authorization", "Bearer worker-secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRouter_ClientEndRouteIsUnauthenticated(t *testing.T) {
	// The client-facing end route shares the handler with the worker route
	// but sits behind the client middleware stack, not worker auth.
	var called bool
	r := testRouter(t, Dependencies{EndJob: flag(&called)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/jobs/"+uuid.NewString()+"/end/COMPLETE", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRouter_MissingHandlerIs501(t *testing.T) {
	r := testRouter(t, Dependencies{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := testRouter(t, Dependencies{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/spectra", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
