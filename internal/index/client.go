// Package index implements the client for the remote metadata/search service.
// The service is an HTTP JSON API supporting filtered search, pagination, and
// facet aggregation over survey records. It is assumed fallible and
// independently restartable: connection or timeout failures surface as the
// transient INDEX_UNAVAILABLE error so callers can run their single fallback
// attempt.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seisgate/seisgate/internal/config"
	"github.com/seisgate/seisgate/pkg/errors"
	"github.com/seisgate/seisgate/pkg/log"
	"github.com/seisgate/seisgate/pkg/retry"
	"github.com/seisgate/seisgate/pkg/types"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 20

// Client queries the remote metadata index
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxLimit   int
	retryer    *retry.Retryer
	logger     zerolog.Logger
}

// NewClient creates a new metadata index client
func NewClient(cfg *config.IndexConfig) *Client {
	if cfg == nil {
		defaults := config.NewDefault().Index
		cfg = &defaults
	}

	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}

	retryer := retry.New(retry.Config{
		MaxAttempts: cfg.MaxRetries,
		RetryableErrors: []errors.ErrorCode{
			errors.ErrCodeIndexUnavailable,
		},
	})

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxLimit:   maxLimit,
		retryer:    retryer,
		logger:     log.WithComponent("index"),
	}
}

type searchRequest struct {
	Filter types.QueryFilter `json:"filter"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
}

type searchResponse struct {
	TotalMatches int64                `json:"total_matches"`
	Items        []types.SurveyRecord `json:"items"`
}

// Query runs a filtered, paginated metadata search. The limit is clamped to
// the configured maximum; the client never returns more items than the
// clamped limit regardless of total matches.
func (c *Client) Query(ctx context.Context, filter types.QueryFilter, offset, limit int) (*types.QueryPage, error) {
	if offset < 0 {
		offset = 0
	}
	limit = c.clampLimit(limit)

	body := searchRequest{Filter: filter, Offset: offset, Limit: limit}

	var resp searchResponse
	if err := c.post(ctx, "/surveys/_search", body, &resp); err != nil {
		return nil, err
	}

	items := resp.Items
	if len(items) > limit {
		items = items[:limit]
	}

	page := &types.QueryPage{
		TotalMatches: resp.TotalMatches,
		Items:        items,
		NextOffset:   offset + len(items),
	}
	page.HasMore = int64(page.NextOffset) < resp.TotalMatches
	return page, nil
}

type facetRequest struct {
	Filter types.QueryFilter `json:"filter"`
}

type facetResponse struct {
	Facets []types.FacetCounts `json:"facets"`
}

// Facets returns aggregate record counts grouped by categorical fields
func (c *Client) Facets(ctx context.Context, filter types.QueryFilter) ([]types.FacetCounts, error) {
	var resp facetResponse
	if err := c.post(ctx, "/surveys/_facets", facetRequest{Filter: filter}, &resp); err != nil {
		return nil, err
	}
	return resp.Facets, nil
}

// GetByID fetches a single survey record by id
func (c *Client) GetByID(ctx context.Context, id string) (*types.SurveyRecord, error) {
	var record types.SurveyRecord

	err := c.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/surveys/"+id, nil)
		if err != nil {
			return errors.New(errors.ErrCodeIndexQuery, err.Error())
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return c.unavailable("get_by_id", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return errors.Newf(errors.ErrCodeSurveyNotFound, "survey %q is not indexed", id).
				WithComponent("index").
				WithOperation("get_by_id")
		case resp.StatusCode >= 500:
			return c.unavailable("get_by_id", fmt.Errorf("index returned %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return errors.Newf(errors.ErrCodeIndexQuery, "index returned %d", resp.StatusCode).
				WithComponent("index")
		}

		return decodeJSON(resp.Body, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// clampLimit enforces the fixed maximum page size
func (c *Client) clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > c.maxLimit {
		return c.maxLimit
	}
	return limit
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.New(errors.ErrCodeIndexQuery, err.Error()).WithComponent("index")
	}

	return c.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return errors.New(errors.ErrCodeIndexQuery, err.Error()).WithComponent("index")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return c.unavailable(path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return c.unavailable(path, fmt.Errorf("index returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return errors.Newf(errors.ErrCodeIndexQuery, "index returned %d for %s", resp.StatusCode, path).
				WithComponent("index")
		}

		return decodeJSON(resp.Body, out)
	})
}

func (c *Client) unavailable(op string, cause error) error {
	c.logger.Warn().Str("operation", op).Err(cause).Msg("metadata index unreachable")
	return errors.New(errors.ErrCodeIndexUnavailable, "metadata index is unreachable").
		WithComponent("index").
		WithOperation(op).
		WithCause(cause)
}

func decodeJSON(r io.Reader, out interface{}) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return errors.New(errors.ErrCodeIndexQuery, "malformed index response").
			WithComponent("index").
			WithCause(err)
	}
	return nil
}
