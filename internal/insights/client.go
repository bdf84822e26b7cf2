package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Insights API root.
const DefaultBaseURL = "https://api.bentley.com/insights"

// DefaultMaxPages bounds every list query.
const DefaultMaxPages = 1000

const acceptHeader = "application/vnd.bentley.itwin-platform.v1+json"

// TokenSource supplies the Authorization header value for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same header value.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// BearerToken returns a StaticToken with the "Bearer " scheme prefixed
// unless raw already carries it.
func BearerToken(raw string) StaticToken {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		return StaticToken(raw)
	}
	return StaticToken("Bearer " + raw)
}

// Client is the request executor shared by every resource client.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxPages   int
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *zap.Logger
	timeout    time.Duration
	limiter    *rate.Limiter
	maxPages   int
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// New creates a Client rooted at baseURL (DefaultBaseURL when empty).
// The token is sent verbatim as the Authorization header on every request.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("insights: token source is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{maxPages: DefaultMaxPages}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		copied := *httpClient
		copied.Timeout = cfg.timeout
		httpClient = &copied
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
		limiter:    cfg.limiter,
		maxPages:   cfg.maxPages,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// WithRateLimit throttles outgoing requests to rps per second. Zero disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *clientConfig) error {
		if rps < 0 {
			return fmt.Errorf("insights: rate limit must not be negative, got %v", rps)
		}
		if rps == 0 {
			cfg.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		cfg.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithMaxPages bounds the number of pages a single list query may fetch.
func WithMaxPages(n int) Option {
	return func(cfg *clientConfig) error {
		if n < 1 {
			return fmt.Errorf("insights: max pages must be positive, got %d", n)
		}
		cfg.maxPages = n
		return nil
	}
}

// BaseURL returns the API root every resource path is built on.
func (c *Client) BaseURL() string { return c.baseURL }

// Execute performs one authenticated call. body, when non-nil, is sent as JSON.
// Non-2xx responses return an *APIError; network failures a *TransportError.
func (c *Client) Execute(ctx context.Context, method, url string, body any) (*Response, error) {
	return c.do(ctx, strings.ToLower(method)+" "+url, method, url, body)
}

func (c *Client) do(ctx context.Context, operation, method, url string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", operation, err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: token: %w", operation, err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	correlationID := uuid.NewString()
	req.Header.Set("X-Correlation-ID", correlationID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", operation, err)
		}
	}

	c.logger.Debug("API request",
		zap.String("operation", operation),
		zap.String("method", method),
		zap.String("url", url),
		zap.String("correlation_id", correlationID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Operation: operation, URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Operation: operation, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("API response",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errRS errorResponse
		if json.Unmarshal(respBody, &errRS) == nil && errRS.Error.Message != "" {
			return nil, newAPIError(operation, resp.StatusCode, errRS.Error.Code, errRS.Error.Message, respBody)
		}
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return nil, newAPIError(operation, resp.StatusCode, "", msg, respBody)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// errorResponse is the standard iTwin platform error body.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ReadToken reads the first line of a file (e.g. .insights-token) and returns it trimmed.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
	if line == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return line, nil
}
