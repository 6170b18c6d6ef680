package guard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasteops-backend/internal/jobs"
)

type fakeLookup struct {
	jobs map[int64]jobs.Job
	err  error
}

func (f fakeLookup) Get(_ context.Context, id int64) (jobs.Job, error) {
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	job, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return job, nil
}

func lookupWith(id int64, status jobs.Status) fakeLookup {
	return fakeLookup{jobs: map[int64]jobs.Job{id: {ID: id, Status: status}}}
}

func TestPhaseForStatus(t *testing.T) {
	cases := map[jobs.Status]jobs.Phase{
		jobs.StatusQuoteRequested:     jobs.PhaseQuoting,
		jobs.StatusQuoteProvided:      jobs.PhaseQuoting,
		jobs.StatusQuoteRejected:      jobs.PhaseQuoting,
		jobs.StatusNeedsScheduling:    jobs.PhaseCollection,
		jobs.StatusRequestPending:     jobs.PhaseCollection,
		jobs.StatusScheduled:          jobs.PhaseCollection,
		jobs.StatusPostponed:          jobs.PhaseCollection,
		jobs.StatusCollected:          jobs.PhaseCollection,
		jobs.StatusReceivedAtFacility: jobs.PhaseProcessing,
		jobs.StatusProcessing:         jobs.PhaseProcessing,
		jobs.StatusCompleted:          jobs.PhaseCompleted,
		jobs.StatusCancelled:          jobs.PhaseCompleted,
	}
	for _, s := range jobs.Statuses() {
		want, ok := cases[s]
		require.True(t, ok, "status %s has no expected phase", s)
		assert.Equal(t, want, PhaseForStatus(s), s.String())
	}
}

func TestPhaseForPath(t *testing.T) {
	tests := []struct {
		path  string
		phase jobs.Phase
		ok    bool
	}{
		{"/api/v1/jobs/7/quotes", jobs.PhaseQuoting, true},
		{"/api/v1/jobs/7/quotes/provide", jobs.PhaseQuoting, true},
		{"/api/v1/jobs/7/collections/schedule", jobs.PhaseCollection, true},
		{"/api/v1/jobs/7/processing", jobs.PhaseProcessing, true},
		{"/api/v1/jobs/7/completed/certificates", jobs.PhaseCompleted, true},
		{"/api/v1/jobs/7", 0, false},
		{"/api/v1/jobs/7/audit", 0, false},
	}
	for _, tt := range tests {
		phase, ok := PhaseForPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.phase, phase, tt.path)
	}
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/api/v1/jobs/100/collections", CanonicalPath(100, jobs.PhaseCollection))
	assert.Equal(t, "/api/v1/jobs/3/completed", CanonicalPath(3, jobs.PhaseCompleted))
}

func TestCheckScheduledJob(t *testing.T) {
	lookup := lookupWith(100, jobs.StatusScheduled)

	d, err := Check(context.Background(), lookup, 100, "/api/v1/jobs/100/processing")
	require.NoError(t, err)
	assert.False(t, d.Proceed())
	assert.Equal(t, "/api/v1/jobs/100/collections", d.RedirectTo)

	d, err = Check(context.Background(), lookup, 100, "/api/v1/jobs/100/collections")
	require.NoError(t, err)
	assert.True(t, d.Proceed())
	assert.Equal(t, jobs.PhaseCollection, d.Phase)
}

func TestCheckMissingJob(t *testing.T) {
	_, err := Check(context.Background(), fakeLookup{}, 42, "/api/v1/jobs/42/quotes")
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	_, err = Check(context.Background(), fakeLookup{}, 0, "/api/v1/jobs/0/quotes")
	assert.True(t, IsNotFound(err))
}

func newGuardedRouter(lookup Lookup, called *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	job := r.Group("/api/v1/jobs/:id")
	for _, p := range jobs.Phases() {
		sec := job.Group("/"+p.Segment(), Middleware(lookup))
		sec.GET("", func(c *gin.Context) {
			*called = true
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		sec.POST("/:op", func(c *gin.Context) {
			*called = true
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	}
	return r
}

func TestMiddlewareRedirectsGetWithFound(t *testing.T) {
	called := false
	r := newGuardedRouter(lookupWith(100, jobs.StatusScheduled), &called)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/100/processing", nil))

	assert.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "/api/v1/jobs/100/collections", resp.Header().Get("Location"))
	assert.False(t, called)
}

func TestMiddlewareRedirectsPostWithSeeOther(t *testing.T) {
	called := false
	r := newGuardedRouter(lookupWith(5, jobs.StatusNeedsScheduling), &called)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/5/quotes/provide", nil))

	assert.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/api/v1/jobs/5/collections", resp.Header().Get("Location"))
	assert.False(t, called)
}

func TestMiddlewareProceeds(t *testing.T) {
	called := false
	r := newGuardedRouter(lookupWith(100, jobs.StatusScheduled), &called)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/100/collections", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, called)
}

func TestMiddlewareNotFound(t *testing.T) {
	called := false
	r := newGuardedRouter(fakeLookup{}, &called)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/9/quotes", nil))

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), "not_found")
	assert.False(t, called)
}

func TestMiddlewareLookupFailure(t *testing.T) {
	called := false
	r := newGuardedRouter(fakeLookup{err: errors.New("db down")}, &called)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/9/quotes", nil))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.False(t, called)
}
