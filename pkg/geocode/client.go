// Package geocode resolves free-text addresses to WGS84 coordinates via
// Nominatim (OpenStreetMap) and the French Base Adresse Nationale.
package geocode

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/bdnb-api/internal/resilience"
)

// Client geocodes free-text addresses.
type Client interface {
	// Geocode returns the best match for query. An unmatched query is not an
	// error: the result has Matched set to false.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude    float64
	Longitude   float64
	Source      string // "nominatim" or "ban"
	DisplayName string
	Score       float64 // provider confidence in [0, 1] when reported
	Matched     bool
}

// Option configures an HTTP geocoding provider.
type Option func(*httpProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *httpProvider) {
		p.httpClient = hc
	}
}

// WithBaseURL overrides the provider's search endpoint.
func WithBaseURL(u string) Option {
	return func(p *httpProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(p *httpProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *httpProvider) {
		if d > 0 {
			p.httpClient = &http.Client{Timeout: d, Transport: p.httpClient.Transport}
		}
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(p *httpProvider) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the number of attempts per request, the first included.
// Providers make a single attempt unless configured otherwise. Only rate
// limiting, gateway errors and dropped connections are retried; an
// unmatched address never is.
func WithRetry(attempts int) Option {
	return func(p *httpProvider) {
		if attempts > 0 {
			p.retry.MaxAttempts = attempts
		}
	}
}

// httpProvider carries the transport settings shared by the HTTP providers.
type httpProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

func newHTTPProvider(name, baseURL string, rps float64, opts []Option) httpProvider {
	p := httpProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		userAgent:  "bdnb-api",
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	p.retry.MaxAttempts = 1
	p.retry.OnRetry = resilience.RetryLogger("geocode." + name)
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// get performs a rate-limited GET and returns the body of a 200 response.
// Transient failures are retried per p.retry.
func (p *httpProvider) get(ctx context.Context, name, reqURL string) ([]byte, error) {
	return resilience.DoVal(ctx, p.retry, func(ctx context.Context) ([]byte, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "geocode: %s rate limit", name)
		}

		req, err := p.newRequest(ctx, reqURL)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: %s build request", name)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: %s request", name)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("geocode: %s returned status %d", name, resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return nil, statusErr
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: %s read body", name)
		}
		return body, nil
	})
}

func (p *httpProvider) newRequest(ctx context.Context, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
