// Package llm provides a provider-agnostic LLM client with retry, fallback and
// rate limiting, the agent.Invoker built on it, and JSON extraction from model
// output.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/c360studio/semmodel/model"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultTimeout bounds a single HTTP exchange with a provider.
const DefaultTimeout = 180 * time.Second

// Client is a provider-agnostic LLM client with retry and fallback support.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
	recorder    CallRecorder
	limiter     *rate.Limiter
}

// Message is a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request defines an LLM completion request.
type Request struct {
	// Capability selects the fallback chain. Unknown values use the
	// registry default.
	Capability string

	// Endpoint pins the request to one registry endpoint, bypassing the
	// capability chain.
	Endpoint string

	// Role and RunID are copied into the call record.
	Role  string
	RunID string

	Messages []Message

	// Temperature controls randomness. nil uses the endpoint default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the endpoint default.
	MaxTokens int
}

// TokenUsage is token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completion result.
type Response struct {
	// RequestID matches the CallRecord for this call.
	RequestID string

	Content      string
	Model        string
	Endpoint     string
	Usage        TokenUsage
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.httpClient.Timeout = d
		}
	}
}

// WithProxy routes provider traffic through an HTTP proxy.
func WithProxy(proxy *url.URL) ClientOption {
	return func(client *Client) {
		if proxy == nil {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxy)
		client.httpClient.Transport = transport
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithRateLimit throttles outgoing HTTP requests to rps per second with the
// given burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(client *Client) {
		if rps <= 0 {
			client.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithCallRecorder records every call, successful or not.
func WithCallRecorder(r CallRecorder) ClientOption {
	return func(client *Client) {
		client.recorder = r
	}
}

// NewClient creates a new LLM client over a model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryConfig.MaxAttempts < 1 {
		c.retryConfig.MaxAttempts = 1
	}
	return c
}

// Registry returns the client's model registry.
func (c *Client) Registry() *model.Registry {
	return c.registry
}

// Complete sends a completion request, retrying each endpoint and falling
// back along the chain. A fatal error stops the chain.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}
	chain, err := c.chain(req)
	if err != nil {
		return nil, err
	}

	rec := &CallRecord{
		RequestID:  uuid.New().String(),
		RunID:      req.RunID,
		Role:       req.Role,
		Capability: req.Capability,
		Messages:   req.Messages,
		StartedAt:  time.Now(),
	}

	var lastErr error
	for _, name := range chain {
		ep := c.registry.GetEndpoint(name)
		if ep == nil {
			c.logger.Debug("No endpoint for model, skipping", "endpoint", name)
			continue
		}

		resp, attempts, err := c.tryEndpoint(ctx, ep, name, req)
		rec.Retries += attempts - 1
		if err == nil {
			resp.RequestID = rec.RequestID
			resp.Endpoint = name
			rec.Endpoint = name
			rec.Model = resp.Model
			rec.Provider = ep.Provider
			rec.Response = resp.Content
			rec.PromptTokens = resp.Usage.PromptTokens
			rec.CompletionTokens = resp.Usage.CompletionTokens
			rec.TotalTokens = resp.Usage.TotalTokens
			rec.FinishReason = resp.FinishReason
			rec.ContextBudget = ep.MaxTokens
			c.finish(ctx, rec, nil)
			return resp, nil
		}

		lastErr = err
		rec.FallbacksUsed = append(rec.FallbacksUsed, name)
		rec.Endpoint = name
		rec.Provider = ep.Provider
		rec.Model = ep.Model

		if IsFatal(err) || ctx.Err() != nil {
			c.logger.Warn("Endpoint failed, not trying fallbacks",
				"endpoint", name, "provider", ep.Provider, "error", err)
			c.finish(ctx, rec, err)
			return nil, err
		}
		c.logger.Warn("Endpoint failed, trying fallback",
			"endpoint", name, "provider", ep.Provider, "error", err)
	}

	if lastErr == nil {
		lastErr = ErrNoEndpoints
	}
	err = fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
	c.finish(ctx, rec, err)
	return nil, err
}

func (c *Client) chain(req Request) ([]string, error) {
	if req.Endpoint != "" {
		if c.registry.GetEndpoint(req.Endpoint) == nil {
			return nil, NewFatalError(fmt.Errorf("unknown endpoint %q", req.Endpoint))
		}
		return []string{req.Endpoint}, nil
	}
	chain := c.registry.GetAvailableFallbackChain(model.Capability(req.Capability))
	if len(chain) == 0 {
		return nil, fmt.Errorf("capability %s: %w", req.Capability, ErrNoEndpoints)
	}
	return chain, nil
}

func (c *Client) finish(ctx context.Context, rec *CallRecord, err error) {
	rec.CompletedAt = time.Now()
	rec.DurationMs = rec.CompletedAt.Sub(rec.StartedAt).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
	}
	if c.recorder == nil {
		return
	}
	if rerr := c.recorder.Record(ctx, rec); rerr != nil {
		c.logger.Warn("Failed to record LLM call",
			"request_id", rec.RequestID,
			"run_id", rec.RunID,
			"error", rerr)
	}
}

// tryEndpoint attempts a request with retries and returns the attempt count.
func (c *Client) tryEndpoint(ctx context.Context, ep *model.EndpointConfig, name string, req Request) (*Response, int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(name)
			return resp, attempt, nil
		}
		lastErr = err

		// Auth and request errors say nothing about endpoint health.
		if IsFatal(err) {
			return nil, attempt, err
		}
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"endpoint", name,
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.registry.MarkEndpointFailure(name)
	return nil, c.retryConfig.MaxAttempts, lastErr
}

// calculateBackoff computes exponential backoff with +/-25% jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if c.retryConfig.MaxBackoff > 0 && backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP request to the endpoint.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	endpointURL := provider.BuildURL(ep.URL)
	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending LLM request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", endpointURL,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq, ep.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		return nil, NewTransientError(err)
	}
	return resp, nil
}

// classifyHTTPError maps a status code to a transient or fatal error.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}
