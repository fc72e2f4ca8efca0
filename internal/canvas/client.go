package canvas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"canvas-sync/internal/httpx"
)

const DefaultPerPage = 100

// Client is the shared transport for Canvas calls. It carries no credentials:
// every call takes the caller's Credentials.
type Client struct {
	HTTP   *http.Client
	Logger *zap.Logger

	// PerPage is used when FetchOptions.PerPage is 0.
	PerPage int
}

func New(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second} // por-request
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{HTTP: httpClient, Logger: logger, PerPage: DefaultPerPage}
}

// FetchOptions controls one paginated query.
type FetchOptions struct {
	// SilentErrors turns any non-success HTTP status into an empty result.
	SilentErrors bool

	// PerPage is sent as per_page. 0 uses the client default.
	PerPage int

	// MaxPages stops after that many pages. 0 means until exhausted.
	MaxPages int

	// Retry is handed to httpx. The zero value is a single attempt.
	Retry httpx.RetryConfig
}

// FetchError is a non-success response from Canvas for one endpoint.
// The fetcher never retries it; callers decide using Retryable.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("canvas: %s failed: status=%d", e.Endpoint, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Retryable() bool {
	switch {
	case e.Status == http.StatusTooManyRequests, e.Status == http.StatusRequestTimeout:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

// ErrForeignNextLink is returned when a next pointer leaves the configured host.
var ErrForeignNextLink = errors.New("canvas: next link points to a different host")

// Fetch issues one logical list query and follows rel="next" until Canvas
// stops sending it. Pages are concatenated in upstream order. The result is
// never nil on success.
func Fetch[T any](ctx context.Context, c *Client, creds Credentials, endpoint string, query url.Values, opts FetchOptions) ([]T, error) {
	base, err := creds.base()
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(creds.APIKey)

	first, err := c.endpointURL(base, endpoint, query, opts.PerPage)
	if err != nil {
		return nil, err
	}

	retry := opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, wait time.Duration, err error) {
			c.Logger.Info("canvas request retry",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
	}

	all := []T{}
	seen := map[string]bool{}
	next := first

	for page := 1; next != ""; page++ {
		if opts.MaxPages > 0 && page > opts.MaxPages {
			break
		}
		if seen[next] {
			c.Logger.Warn("canvas pagination loop detected", zap.String("endpoint", endpoint), zap.Int("page", page))
			break
		}
		seen[next] = true

		pageURL, err := url.Parse(next)
		if err != nil {
			return nil, fmt.Errorf("canvas: %s: bad page url: %w", endpoint, err)
		}
		if !sameHost(base, pageURL) {
			return nil, fmt.Errorf("%w: %s", ErrForeignNextLink, pageURL.Host)
		}

		var items []T
		resp, err := httpx.DoJSON(ctx, c.HTTP, c.buildReq(next, key), &items, retry)
		if err != nil {
			var herr *httpx.HTTPError
			if errors.As(err, &herr) {
				if opts.SilentErrors {
					c.Logger.Debug("canvas silent fetch suppressed error",
						zap.String("endpoint", endpoint),
						zap.Int("status", herr.StatusCode),
						zap.Int("page", page))
					return []T{}, nil
				}
				return nil, &FetchError{Endpoint: endpoint, Status: herr.StatusCode, Err: err}
			}
			return nil, fmt.Errorf("canvas: %s page %d: %w", endpoint, page, err)
		}

		// an empty page ends the query even if a next link was sent
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		next = httpx.NextLink(resp.Header, pageURL)
	}

	return all, nil
}

// getOne fetches a single JSON object.
func (c *Client) getOne(ctx context.Context, creds Credentials, endpoint string, query url.Values, out any) error {
	base, err := creds.base()
	if err != nil {
		return err
	}
	u, err := c.endpointURL(base, endpoint, query, -1)
	if err != nil {
		return err
	}

	_, err = httpx.DoJSON(ctx, c.HTTP, c.buildReq(u, strings.TrimSpace(creds.APIKey)), out, httpx.NoRetry())
	if err != nil {
		var herr *httpx.HTTPError
		if errors.As(err, &herr) {
			return &FetchError{Endpoint: endpoint, Status: herr.StatusCode, Err: err}
		}
		return fmt.Errorf("canvas: %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) buildReq(rawURL, apiKey string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", httpx.AcceptEncoding)
		return req, nil
	}
}

// endpointURL joins base + endpoint + query. perPage < 0 omits per_page.
func (c *Client) endpointURL(base *url.URL, endpoint string, query url.Values, perPage int) (string, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("canvas: invalid endpoint %q: %w", endpoint, err)
	}
	u := base.ResolveReference(&url.URL{Path: strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")})

	q := url.Values{}
	for k, vs := range ref.Query() {
		q[k] = append([]string(nil), vs...)
	}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	if perPage >= 0 && q.Get("per_page") == "" {
		if perPage == 0 {
			perPage = c.PerPage
		}
		if perPage <= 0 {
			perPage = DefaultPerPage
		}
		q.Set("per_page", strconv.Itoa(perPage))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sameHost(base, u *url.URL) bool {
	return strings.EqualFold(base.Hostname(), u.Hostname()) && base.Port() == u.Port()
}
