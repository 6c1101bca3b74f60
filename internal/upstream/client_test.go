package upstream

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorapp/mirror-server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:           srv.URL,
		APIKey:            "test-key",
		RequestsPerSecond: 1000,
		PageSize:          2,
	}, testLogger())
}

// pagedHandler serves the given entities in per_page-sized pages.
func pagedHandler(t *testing.T, entities []RawEntity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		require.GreaterOrEqual(t, page, 1)
		require.GreaterOrEqual(t, perPage, 1)

		start := (page - 1) * perPage
		end := min(start+perPage, len(entities))
		if start > len(entities) {
			start = len(entities)
		}

		resp := map[string]any{"entities": entities[start:end], "total": len(entities)}
		w.Header().Set("Content-Type", "application/json")
		if err := json.MarshalWrite(w, resp); err != nil {
			t.Errorf("write response: %v", err)
		}
	})
}

func TestFetchAllPagination(t *testing.T) {
	entities := []RawEntity{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "Bea"},
		{ID: "p3", Name: "Cho"},
		{ID: "p4", Name: "Dee"},
		{ID: "p5", Name: "Eve"},
	}
	c := newTestClient(t, pagedHandler(t, entities))

	got, err := c.FetchAll(context.Background(), domain.EntityPerformer)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p5", got[4].ID)
}

func TestFetchAllSendsAuthHeader(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"entities":[],"total":0}`))
	}))

	_, err := c.FetchAll(context.Background(), domain.EntityTag)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestFetchChangedSinceQueryParam(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotSince string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("changed_since")
		w.Write([]byte(`{"entities":[],"total":0}`))
	}))

	_, err := c.FetchChangedSince(context.Background(), domain.EntityScene, since)
	require.NoError(t, err)
	assert.Equal(t, since.Format(time.RFC3339Nano), gotSince)
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusInternalServerError, ErrServer},
	}
	for _, tt := range tests {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))
		_, err := c.FetchAll(context.Background(), domain.EntityStudio)
		require.Error(t, err)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var upErr *Error
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, domain.EntityStudio, upErr.EntityType)
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text unchanged", "just a description", "just a description"},
		{"angle brackets without tags", "a < b > c", "a < b > c"},
		{"bold becomes markdown", "<p>A <strong>great</strong> scene</p>", "A **great** scene"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDescription(tt.in))
		})
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<div><p>one</p><p>two</p></div>")
	assert.Equal(t, "one two", got)
}

func TestFakeClientChangedSince(t *testing.T) {
	f := NewFakeClient()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f.Set(domain.EntityTag,
		RawEntity{ID: "t1", UpdatedAt: old},
		RawEntity{ID: "t2", UpdatedAt: recent},
	)

	got, err := f.FetchChangedSince(context.Background(), domain.EntityTag, old.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID)
}
