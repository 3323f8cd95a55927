// Package apifootball is the resilient client for the API-Football fixtures provider.
// Every request passes a tier rate window, a circuit breaker and a bounded retry loop
// before it reaches the network.
package apifootball

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkglog "Touchline/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/net/proxy"
)

const (
	// DefaultBaseURL is the provider's API root.
	DefaultBaseURL = "https://v3.football.api-sports.io"

	// DefaultTimeout is the hard timeout of one HTTP attempt.
	DefaultTimeout = 10 * time.Second

	// AuthHeader carries the API key.
	AuthHeader = "x-apisports-key"

	// UserAgent identifies Touchline to the provider.
	UserAgent = "Touchline/1.0"

	maxBodyBytes = 8 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL          string
	APIKey           string
	Tier             Tier
	Timeout          time.Duration
	ProxyURL         string
	MaxAttempts      int
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Snapshot is the in-process resilience state of a Client.
type Snapshot struct {
	Circuit CircuitSnapshot `json:"circuit"`
	Rate    RateSnapshot    `json:"rate"`
}

// Client talks to the provider. It is safe for concurrent use; the breaker and the
// rate window carry their own locks.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *CircuitBreaker
	window     *RateWindow
	retry      RetryPolicy
	logger     *pkglog.LogHelper
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (tests use httptest servers).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces time.Now for the rate window.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.window.now = now }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) { c.retry.Sleep = sleep }
}

// NewClient creates a Client. A missing API key is a configuration error.
func NewClient(cfg Config, logger log.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("apifootball: api key cannot be empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Tier == "" {
		cfg.Tier = TierFree
	}

	hc, err := newHTTPClient(cfg.ProxyURL, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("apifootball: %w", err)
	}

	policy := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: hc,
		breaker:    NewCircuitBreaker(cfg.FailureThreshold, cfg.ResetTimeout),
		window:     NewRateWindow(cfg.Tier),
		retry:      policy,
		logger:     pkglog.NewLogHelper(logger),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker.OnStateChange(func(from, to State) {
		CircuitStateGauge.Set(float64(to))
		c.logger.Warnw("msg", "upstream circuit state changed", "from", from.String(), "to", to.String())
	})
	return c, nil
}

// Request performs one logical GET and returns the raw items of the response array.
func (c *Client) Request(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	items, err := do(ctx, c, endpoint, params, decodeList[json.RawMessage])
	if err != nil {
		return nil, err
	}
	return json.Marshal(items)
}

// Fixtures queries /fixtures, e.g. with date, league+season+from+to, or next.
func (c *Client) Fixtures(ctx context.Context, params url.Values) ([]Fixture, error) {
	return do(ctx, c, EndpointFixtures, params, decodeList[Fixture])
}

// LiveMatches queries /fixtures?live=all.
func (c *Client) LiveMatches(ctx context.Context) ([]LiveMatch, error) {
	return do(ctx, c, EndpointFixtures, url.Values{"live": []string{"all"}}, decodeList[LiveMatch])
}

// TeamStatistics queries /teams/statistics for one team, league and season.
func (c *Client) TeamStatistics(ctx context.Context, teamID, leagueID int64, season int) (*TeamStatistics, error) {
	params := url.Values{}
	params.Set("team", strconv.FormatInt(teamID, 10))
	params.Set("league", strconv.FormatInt(leagueID, 10))
	params.Set("season", strconv.Itoa(season))
	return do(ctx, c, EndpointTeamStatistics, params, decodeObject[TeamStatistics])
}

// Snapshot reports the breaker and rate window state.
func (c *Client) Snapshot() Snapshot {
	return Snapshot{
		Circuit: c.breaker.Snapshot(),
		Rate:    c.window.Snapshot(),
	}
}

// do composes rate check -> circuit gate -> retry(rate check + HTTP + decode) -> bookkeeping.
// The rate window is consulted before every attempt; a spent window ends the retry
// loop and the request fails with the last upstream error.
func do[T any](ctx context.Context, c *Client, endpoint string, params url.Values, decode func([]byte) (T, error)) (T, error) {
	var zero T

	if err := c.checkWindow(endpoint); err != nil {
		return zero, err
	}
	done, err := c.breaker.Allow()
	if err != nil {
		UpstreamShortCircuitsTotal.WithLabelValues(KindCircuitOpen.String()).Inc()
		c.logger.Debugw("msg", "upstream call rejected by circuit breaker", "endpoint", endpoint)
		return zero, withEndpoint(err, endpoint)
	}

	var upstreamErr error
	start := time.Now()
	result, err := Retry(ctx, c.retry, func(ctx context.Context, attempt int) (T, error) {
		if attempt > 1 {
			if err := c.checkWindow(endpoint); err != nil {
				return zero, err
			}
		}
		out, err := fetchOnce(ctx, c, endpoint, params, attempt, decode)
		if err != nil {
			upstreamErr = err
			c.logger.Upstream("upstream attempt failed", "endpoint", endpoint, "attempt", attempt, "kind", KindOf(err).String())
		}
		return out, err
	})
	if IsKind(err, KindQuotaExceeded) && upstreamErr != nil {
		err = upstreamErr
	}
	done(err)

	if err != nil {
		c.logger.Warnw("msg", "upstream request failed", "endpoint", endpoint, "kind", KindOf(err).String(), "error", err)
		return zero, err
	}
	c.logger.Upstream("upstream request succeeded", "endpoint", endpoint, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (c *Client) checkWindow(endpoint string) error {
	if err := c.window.Check(); err != nil {
		UpstreamShortCircuitsTotal.WithLabelValues(KindQuotaExceeded.String()).Inc()
		c.logger.Warnw("msg", "upstream rate window exhausted", "endpoint", endpoint, "error", err)
		return withEndpoint(err, endpoint)
	}
	return nil
}

// fetchOnce performs one HTTP attempt and decodes its body.
func fetchOnce[T any](ctx context.Context, c *Client, endpoint string, params url.Values, attempt int, decode func([]byte) (T, error)) (T, error) {
	var zero T

	body, err := c.get(ctx, endpoint, params, attempt)
	if err != nil {
		return zero, err
	}
	out, err := decode(body)
	if err != nil {
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			apiErr = &Error{Kind: KindUpstreamData, Err: err}
		}
		apiErr.Endpoint, apiErr.StatusCode, apiErr.Attempt = endpoint, http.StatusOK, attempt
		UpstreamRequestsTotal.WithLabelValues(endpoint, apiErr.Kind.String()).Inc()
		return zero, apiErr
	}
	UpstreamRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return out, nil
}

// get performs a single HTTP attempt. Every attempt that reaches the network is
// counted against the rate window, whatever its outcome.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, attempt int) ([]byte, error) {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindRejected, Endpoint: endpoint, Attempt: attempt, Message: "failed to create request", Err: err}
	}
	req.Header.Set(AuthHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	c.window.Record()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	UpstreamRequestSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		UpstreamRequestsTotal.WithLabelValues(endpoint, KindTransient.String()).Inc()
		return nil, &Error{Kind: KindTransient, Endpoint: endpoint, Attempt: attempt, Message: "request failed", Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	if err != nil {
		UpstreamRequestsTotal.WithLabelValues(endpoint, KindTransient.String()).Inc()
		return nil, &Error{Kind: KindTransient, Endpoint: endpoint, StatusCode: resp.StatusCode, Attempt: attempt, Message: "failed to read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		UpstreamRequestsTotal.WithLabelValues(endpoint, KindTransient.String()).Inc()
		return nil, &Error{Kind: KindTransient, Endpoint: endpoint, StatusCode: resp.StatusCode, Attempt: attempt, Message: truncate(body)}
	default:
		UpstreamRequestsTotal.WithLabelValues(endpoint, KindRejected.String()).Inc()
		return nil, &Error{Kind: KindRejected, Endpoint: endpoint, StatusCode: resp.StatusCode, Attempt: attempt, Message: truncate(body)}
	}
}

func withEndpoint(err error, endpoint string) error {
	if e, ok := err.(*Error); ok {
		e.Endpoint = endpoint
	}
	return err
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// newHTTPClient builds the HTTP client, optionally routed through a SOCKS5 or HTTP proxy.
func newHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}

		switch parsed.Scheme {
		case "socks5", "socks5h":
			var auth *proxy.Auth
			if parsed.User != nil {
				password, _ := parsed.User.Password()
				auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
			}
			host := parsed.Host
			if parsed.Port() == "" {
				host += ":1080"
			}
			dialer, err := proxy.SOCKS5("tcp", host, auth, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			}
		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %s (supported: socks5, http, https)", parsed.Scheme)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
