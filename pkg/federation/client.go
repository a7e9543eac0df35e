package federation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models"
)

const (
	rosterEndpoint = "/roster/export.csv"
	clubEndpoint   = "/clubs/{abbreviation}"

	// maxErrorBody caps how much of an error response ends up in APIError
	maxErrorBody = 200
)

// Config holds configuration for the federation API client
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerMin int
	RetryCount     int
	RetryWait      time.Duration

	// Club lookups trip the breaker after BreakerFailures consecutive
	// failures and stay open for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	ClubCacheTTL time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig(baseURL, apiKey string) *Config {
	return &Config{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		Timeout:         30 * time.Second,
		RequestsPerMin:  120,
		RetryCount:      2,
		RetryWait:       500 * time.Millisecond,
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
		ClubCacheTTL:    6 * time.Hour,
	}
}

// Client talks to the federation API: the bulk roster export and the club
// registry used to enrich clubs that are not known locally.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   *clubCache
	logger  *logger.Logger
}

// NewClient creates a new federation client
func NewClient(cfg *Config, log *logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig("", "")
	}
	if log == nil {
		log = logger.Nop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetHeader("User-Agent", "trackmeet-core/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := r.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})
	if cfg.APIKey != "" {
		httpClient.SetHeader("X-API-Key", cfg.APIKey)
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		cache:   newClubCache(cfg.ClubCacheTTL, nil),
		logger:  log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "federation-club-lookup",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("action", "breaker_state_change").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Federation circuit breaker changed state")
		},
	})

	return c
}

// FetchRoster downloads and parses the full roster export. Errors are
// returned to the caller untouched so the job boundary can report them.
func (c *Client) FetchRoster(ctx context.Context) ([]models.ExternalRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/csv").
		Get(rosterEndpoint)
	if err != nil {
		c.logger.LogAPICall(http.MethodGet, rosterEndpoint, 0, time.Since(start), err)
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}
	if err := statusError(resp); err != nil {
		c.logger.LogAPICall(http.MethodGet, rosterEndpoint, resp.StatusCode(), time.Since(start), err)
		return nil, err
	}
	c.logger.LogAPICall(http.MethodGet, rosterEndpoint, resp.StatusCode(), time.Since(start), nil)

	records, err := ParseRoster(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	return records, nil
}

type clubLookupResult struct {
	club     *models.ClubDetails
	notFound bool
}

// LookupClub fetches club details by abbreviation. A missing club is reported
// as ErrClubNotFound and does not count against the circuit breaker.
func (c *Client) LookupClub(ctx context.Context, abbreviation string) (*models.ClubDetails, error) {
	key := strings.ToUpper(abbreviation)
	if club, ok := c.cache.Get(key); ok {
		return club, nil
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.lookupClub(ctx, key)
	})
	if err != nil {
		return nil, fmt.Errorf("club lookup %s: %w", key, err)
	}

	res := result.(*clubLookupResult)
	if res.notFound {
		return nil, fmt.Errorf("club lookup %s: %w", key, ErrClubNotFound)
	}

	c.cache.Set(key, res.club)
	return res.club, nil
}

func (c *Client) lookupClub(ctx context.Context, abbreviation string) (*clubLookupResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var details models.ClubDetails
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("abbreviation", abbreviation).
		SetHeader("Accept", "application/json").
		SetResult(&details).
		Get(clubEndpoint)
	if err != nil {
		c.logger.LogAPICall(http.MethodGet, clubEndpoint, 0, time.Since(start), err)
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &clubLookupResult{notFound: true}, nil
	}
	if err := statusError(resp); err != nil {
		c.logger.LogAPICall(http.MethodGet, clubEndpoint, resp.StatusCode(), time.Since(start), err)
		return nil, err
	}
	c.logger.Debug().
		Str("action", "api_call").
		Str("url", clubEndpoint).
		Str("club", abbreviation).
		Dur("duration", time.Since(start)).
		Msg("Federation club lookup")

	if details.Abbreviation == "" {
		details.Abbreviation = abbreviation
	}
	return &clubLookupResult{club: &details}, nil
}

// IsBreakerOpen reports whether club lookups are currently short-circuited
func (c *Client) IsBreakerOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

func statusError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	if code == http.StatusTooManyRequests {
		return &RateLimitError{
			StatusCode: code,
			RetryAfter: resp.Header().Get("Retry-After"),
			Message:    "federation request limit exceeded",
		}
	}
	msg := truncateRunes(strings.TrimSpace(resp.String()), maxErrorBody)
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &APIError{StatusCode: code, Message: msg}
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IsRateLimited reports whether err came from a 429 response
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
