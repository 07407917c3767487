package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisgate/seisgate/internal/config"
	"github.com/seisgate/seisgate/pkg/errors"
	"github.com/seisgate/seisgate/pkg/log"
	"github.com/seisgate/seisgate/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

func newTestClient(endpoint string) *Client {
	return NewClient(&config.IndexConfig{
		Enabled:    true,
		Endpoint:   endpoint,
		Timeout:    time.Second,
		MaxLimit:   100,
		MaxRetries: 1,
	})
}

// fakeIndex serves a fixed corpus through the search API shape the client
// expects, honoring offset/limit.
func fakeIndex(t *testing.T, total int) *httptest.Server {
	t.Helper()

	records := make([]types.SurveyRecord, total)
	for i := range records {
		records[i] = types.SurveyRecord{
			ID:   fmt.Sprintf("survey-%03d", i),
			Path: fmt.Sprintf("/mnt/surveys/survey-%03d.segy", i),
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/surveys/_search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		start := req.Offset
		if start > len(records) {
			start = len(records)
		}
		end := start + req.Limit
		if end > len(records) {
			end = len(records)
		}

		_ = json.NewEncoder(w).Encode(searchResponse{
			TotalMatches: int64(len(records)),
			Items:        records[start:end],
		})
	})
	mux.HandleFunc("/surveys/_facets", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(facetResponse{
			Facets: []types.FacetCounts{
				{Field: "region", Counts: map[string]int64{"north-sea": int64(total)}},
			},
		})
	})
	mux.HandleFunc("/surveys/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/surveys/"):]
		for _, rec := range records {
			if rec.ID == id {
				_ = json.NewEncoder(w).Encode(rec)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	return httptest.NewServer(mux)
}

func TestQueryPagination(t *testing.T) {
	srv := fakeIndex(t, 45)
	defer srv.Close()
	c := newTestClient(srv.URL)

	page, err := c.Query(context.Background(), types.QueryFilter{}, 0, 20)
	require.NoError(t, err)

	assert.Equal(t, int64(45), page.TotalMatches)
	assert.Len(t, page.Items, 20)
	assert.True(t, page.HasMore)
	assert.Equal(t, 20, page.NextOffset)

	// Last partial page.
	page, err = c.Query(context.Background(), types.QueryFilter{}, 40, 20)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.False(t, page.HasMore)
	assert.Equal(t, int64(45), page.TotalMatches, "total must be independent of pagination")
}

func TestQueryClampsLimit(t *testing.T) {
	srv := fakeIndex(t, 500)
	defer srv.Close()
	c := newTestClient(srv.URL)

	page, err := c.Query(context.Background(), types.QueryFilter{}, 0, 100000)
	require.NoError(t, err)
	assert.Len(t, page.Items, 100, "limit must be clamped to the configured maximum")

	page, err = c.Query(context.Background(), types.QueryFilter{}, 0, -1)
	require.NoError(t, err)
	assert.Len(t, page.Items, DefaultLimit)
}

func TestFacets(t *testing.T) {
	srv := fakeIndex(t, 3)
	defer srv.Close()
	c := newTestClient(srv.URL)

	facets, err := c.Facets(context.Background(), types.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, facets, 1)
	assert.Equal(t, "region", facets[0].Field)
	assert.Equal(t, int64(3), facets[0].Counts["north-sea"])
}

func TestGetByID(t *testing.T) {
	srv := fakeIndex(t, 3)
	defer srv.Close()
	c := newTestClient(srv.URL)

	rec, err := c.GetByID(context.Background(), "survey-001")
	require.NoError(t, err)
	assert.Equal(t, "survey-001", rec.ID)

	_, err = c.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSurveyNotFound, errors.CodeOf(err))
}

func TestConnectionFailureIsIndexUnavailable(t *testing.T) {
	// Point at a closed port.
	c := newTestClient("http://127.0.0.1:1")

	_, err := c.Query(context.Background(), types.QueryFilter{}, 0, 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexUnavailable, errors.CodeOf(err))
	assert.True(t, errors.IsTransient(err))
}

func TestServerErrorIsIndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	_, err := c.Query(context.Background(), types.QueryFilter{}, 0, 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexUnavailable, errors.CodeOf(err))
}

func TestRetryIsBounded(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(&config.IndexConfig{
		Endpoint:   srv.URL,
		Timeout:    time.Second,
		MaxLimit:   100,
		MaxRetries: 2,
	})

	_, err := c.Query(context.Background(), types.QueryFilter{}, 0, 10)
	require.Error(t, err)
	assert.Equal(t, 2, attempts, "retries must stop at MaxRetries")
}
