// Package upstream implements the client for the remote catalog query API.
// The rest of the system depends on it only through the Client interface:
// bulk fetches of whole entity collections and "changed since" fetches for
// incremental sync.
package upstream

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/ratelimit"
)

const (
	defaultRPS      = 4.0
	defaultBurst    = 8
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 200
	maxPageSize     = 1000
)

// Client fetches entities and their relation IDs from the remote catalog.
type Client interface {
	// FetchAll returns every current record of the given type.
	FetchAll(ctx context.Context, t domain.EntityType) ([]RawEntity, error)
	// FetchChangedSince returns records modified after the given time.
	// It cannot report deletions; full syncs reconcile those.
	FetchChangedSince(ctx context.Context, t domain.EntityType, since time.Time) ([]RawEntity, error)
}

// Options configures the HTTP client.
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	PageSize          int
}

// HTTPClient is a rate-limited HTTP implementation of Client.
type HTTPClient struct {
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	baseURL  string
	apiKey   string
	pageSize int
	logger   *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// New creates a new upstream catalog client.
func New(opts Options, logger *slog.Logger) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRPS
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}

	return &HTTPClient{
		http: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:  ratelimit.New(opts.RequestsPerSecond, defaultBurst),
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		pageSize: opts.PageSize,
		logger:   logger,
	}
}

// FetchAll pages through the upstream collection for the given type until a
// short page signals the end.
func (c *HTTPClient) FetchAll(ctx context.Context, t domain.EntityType) ([]RawEntity, error) {
	entities, err := c.fetchPaged(ctx, t, nil)
	if err != nil {
		return nil, wrapError("fetchAll", t, err)
	}
	return entities, nil
}

// FetchChangedSince pages through records modified after the given time.
func (c *HTTPClient) FetchChangedSince(ctx context.Context, t domain.EntityType, since time.Time) ([]RawEntity, error) {
	query := url.Values{}
	query.Set("changed_since", since.UTC().Format(time.RFC3339Nano))

	entities, err := c.fetchPaged(ctx, t, query)
	if err != nil {
		return nil, wrapError("fetchChangedSince", t, err)
	}
	return entities, nil
}

// fetchPaged loops page/per_page until the upstream returns a short page.
func (c *HTTPClient) fetchPaged(ctx context.Context, t domain.EntityType, extra url.Values) ([]RawEntity, error) {
	var all []RawEntity

	for page := 1; ; page++ {
		query := url.Values{}
		for k, vs := range extra {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.pageSize))

		body, err := c.doRequest(ctx, t, "/api/"+entityPath(t), query)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		var resp struct {
			Entities []RawEntity `json:"entities"`
			Total    int         `json:"total"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("page %d: parse response: %w", page, err)
		}

		all = append(all, resp.Entities...)

		if len(resp.Entities) < c.pageSize {
			break
		}
	}

	c.logger.Debug("upstream fetch complete",
		"entity_type", t,
		"count", len(all),
	)
	return all, nil
}

// doRequest executes one HTTP request with rate limiting, keyed per entity
// type so a slow collection never starves the others.
func (c *HTTPClient) doRequest(ctx context.Context, t domain.EntityType, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx, string(t)); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "MirrorServer/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("upstream request",
		"entity_type", t,
		"path", path,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
