package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasteops-backend/internal/jobs"
	"wasteops-backend/internal/shared/config"
)

func TestBuildFallsBackToMemoryInTest(t *testing.T) {
	app, err := Build(config.Config{
		Env:               "test",
		ObjectStoreType:   "local",
		LocalStoreDir:     t.TempDir(),
		TransitionTimeout: 5 * time.Second,
		CompanyName:       "Greenway Recycling",
	})
	require.NoError(t, err)
	assert.Nil(t, app.DB)
	assert.Nil(t, app.Queue)
	assert.IsType(t, &jobs.MemoryStore{}, app.JobStore)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"memory"`)

	body := `{"clientRef":"C-1","clientName":"Acme Ltd","addressLine1":"1 Dock Road","city":"Leeds","postcode":"LS1 1AA","items":[{"category":"Laptops","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Staff-Id", "staff-1")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	_, err := Build(config.Config{Env: "production", ObjectStoreType: "local", LocalStoreDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestBuildRequiresBucketForCloudStores(t *testing.T) {
	for _, store := range []string{"s3", "gcs"} {
		_, err := Build(config.Config{Env: "test", ObjectStoreType: store})
		require.Error(t, err, store)
	}
}
