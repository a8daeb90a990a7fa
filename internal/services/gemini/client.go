package gemini

import (
	"bytes"
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

	"github.com/bozzyboy/nano-director-5/internal/services"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	apiKeyHeader          = "x-goog-api-key"
	stageName             = "gemini"
)

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client issues generateContent requests.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Gemini client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

type httpStatusError struct {
	StatusCode int
	Status     string
	Message    string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if e.Status != "" {
		msg = e.Status + ": " + msg
	}
	return fmt.Sprintf("gemini request: http %d: %s", e.StatusCode, msg)
}

type blockedError struct {
	Reason string
}

func (e *blockedError) Error() string {
	return fmt.Sprintf("gemini request: blocked (%s)", e.Reason)
}

// Generate posts one generateContent request and returns the decoded response.
func (c *Client) Generate(ctx context.Context, model string, payload GenerateRequest) (*GenerateResponse, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "generate", "API Key not found. Set GEMINI_API_KEY or gemini.api_key.", nil)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "generate", "model name required", nil)
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.sendOnce(ctx, model, payload)
		if err == nil {
			return resp, nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, classify(model, err)
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return nil, classify(model, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr))
}

// HealthCheck fetches the model resource to verify the key and model name.
func (c *Client) HealthCheck(ctx context.Context, model string) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, stageName, "health", "api key required", nil)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", model)
	if err != nil {
		return fmt.Errorf("gemini health: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("gemini health: new request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(model, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classify(model, statusError(resp, body))
	}
	return nil
}

func (c *Client) sendOnce(ctx context.Context, model string, payload GenerateRequest) (*GenerateResponse, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", model+":generateContent")
	if err != nil {
		return nil, fmt.Errorf("gemini request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("gemini request: new request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(resp, body)
	}

	var decoded GenerateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrMalformedOutput, stageName, "decode", summarizePayloadSnippet(string(body)), err)
	}
	if decoded.Error != nil {
		return nil, &httpStatusError{StatusCode: decoded.Error.Code, Status: decoded.Error.Status, Message: decoded.Error.Message}
	}
	if reason := decoded.BlockReason(); reason != "" {
		return nil, &blockedError{Reason: reason}
	}
	return &decoded, nil
}

func statusError(resp *http.Response, body []byte) *httpStatusError {
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	statusErr := &httpStatusError{
		StatusCode: resp.StatusCode,
		Message:    summarizePayloadSnippet(string(body)),
		RetryAfter: retryAfter,
	}
	var envelope GenerateResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		statusErr.Status = envelope.Error.Status
		statusErr.Message = envelope.Error.Message
	}
	return statusErr
}

// classify tags err with the services marker matching its cause.
func classify(model string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, services.ErrProvider) || errors.Is(err, services.ErrConfiguration) {
		return err
	}

	var blocked *blockedError
	if errors.As(err, &blocked) {
		return services.Wrap(services.ErrContentFiltered, stageName, model, "response blocked: "+blocked.Reason, err)
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		marker := services.ErrProvider
		switch {
		case statusErr.StatusCode == http.StatusBadRequest:
			marker = services.ErrBadRequest
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			marker = services.ErrPermissionDenied
		case statusErr.StatusCode == http.StatusTooManyRequests:
			marker = services.ErrRateLimited
		case statusErr.StatusCode >= http.StatusInternalServerError:
			marker = services.ErrServer
		}
		return services.Wrap(marker, stageName, model, "http "+strconv.Itoa(statusErr.StatusCode), err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return services.Wrap(services.ErrNetwork, stageName, model, "transport failure", err)
	}
	return services.Wrap(services.ErrProvider, stageName, model, "request failed", err)
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := defaultRetryBaseDelay
	maxDelay := defaultRetryMaxDelay
	if c != nil {
		if c.retryBaseDelay >= 0 {
			base = c.retryBaseDelay
		}
		if c.retryMaxDelay > 0 {
			maxDelay = c.retryMaxDelay
		}
	}
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := defaultRetryMaxDelay
	if c != nil && c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
