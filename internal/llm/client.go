// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the DeepSeek API.
const (
	// DefaultBaseURL is the base URL for the DeepSeek API.
	DefaultBaseURL = "https://api.deepseek.com/v1"

	// DefaultTimeout bounds a non-streaming call. For a streaming call it
	// bounds the dial and response-header phases and each read of the body.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum accepted response body size.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "seekrun/1.0"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the DeepSeek client.
type ClientConfig struct {
	// BaseURL is the API base URL (default: https://api.deepseek.com/v1)
	BaseURL string

	// APIKey is the bearer token. Required; there is no default.
	APIKey string

	// Model is the model id sent with every request (default: deepseek-chat)
	Model string

	// Sampling defaults for NewRequest. Zero MaxTokens and TopP are replaced
	// by the package defaults; a zero Temperature is kept.
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stop        []string

	// Timeout for non-streaming requests, and the longest a stream may
	// go without data (default: 60s)
	Timeout time.Duration

	// RequestsPerMinute paces outgoing calls client-side. Zero disables pacing.
	RequestsPerMinute int

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Logger receives debug-level request logs (default: slog.Default())
	Logger *slog.Logger

	// HTTPClient replaces the transport for both call styles. Used by tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration. APIKey is left empty.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		BaseURL:     DefaultBaseURL,
		Model:       ChatModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
		Timeout:     DefaultTimeout,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the adapter for one DeepSeek model. Calls are independent; the
// client holds no conversation state.
type Client struct {
	config       ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient creates a client. It fails when no API key is supplied.
// Start from DefaultConfig to get the default temperature.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, &Error{Kind: KindConfig, Message: kindSentinelMessage[KindConfig],
			Cause: fmt.Errorf("no API key: set DEEPSEEK_API_KEY or api.api_key in the config file")}
	}

	// Fill in defaults for any zero values
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if u, err := url.Parse(cfg.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{Kind: KindConfig, Message: "invalid base URL " + cfg.BaseURL, Cause: err}
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.TopP == 0 {
		cfg.TopP = defaults.TopP
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgent
	}

	c := &Client{config: cfg, logger: cfg.Logger}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if cfg.HTTPClient != nil {
		c.httpClient = cfg.HTTPClient
		c.streamClient = cfg.HTTPClient
	} else {
		dialer := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}
		transport := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.Timeout,
		}
		c.httpClient = &http.Client{Transport: transport, Timeout: cfg.Timeout}
		// No total timeout for streaming; Stream bounds each body read.
		c.streamClient = &http.Client{Transport: transport}
	}

	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return c, nil
}

// NewChatClient creates a client for the general chat model.
func NewChatClient(cfg ClientConfig) (*Client, error) {
	cfg.Model = ChatModel
	return NewClient(cfg)
}

// NewCodeClient creates a client for the code model.
func NewCodeClient(cfg ClientConfig) (*Client, error) {
	cfg.Model = CodeModel
	return NewClient(cfg)
}

// Model returns the model id this client sends.
func (c *Client) Model() string {
	return c.config.Model
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// NewRequest returns a request for prompt filled with the client's defaults.
func (c *Client) NewRequest(prompt string, stream bool) GenerationRequest {
	var stop []string
	if len(c.config.Stop) > 0 {
		stop = append([]string(nil), c.config.Stop...)
	}
	return GenerationRequest{
		Model:       c.config.Model,
		Prompt:      prompt,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		TopP:        c.config.TopP,
		Stop:        stop,
		Stream:      stream,
	}
}

// =============================================================================
// NON-STREAMING
// =============================================================================

// completionResponse is the subset of the chat completion response we read.
type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// apiErrorResponse represents an error body from the API.
type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseComplete extracts the first choice's message text from a successful
// response body.
func ParseComplete(body []byte) (string, error) {
	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &Error{Kind: KindEmptyResponse, Message: "response is not a completion object", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete performs a non-streaming call and returns the generated text.
func (c *Client) Complete(ctx context.Context, req GenerationRequest) (string, error) {
	req.Stream = false
	resp, err := c.send(ctx, c.httpClient, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return "", transportError("failed to read response", resp.StatusCode, err)
	}
	return ParseComplete(body)
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream performs a streaming call. The caller must Close the returned Stream.
// Failures before the first byte of the body arrive as a Transport error.
func (c *Client) Stream(ctx context.Context, req GenerationRequest) (*Stream, error) {
	req.Stream = true
	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.send(ctx, c.streamClient, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return newStream(newIdleBody(resp.Body, c.config.Timeout, cancel), c.logger), nil
}

// send validates, paces, builds and posts req, and maps failures to errors.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, hc *http.Client, req GenerationRequest) (*http.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError("request cancelled while paced", 0, err)
		}
	}

	payload, err := BuildPayload(req, c.config.APIKey)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload.Body))
	if err != nil {
		return nil, &Error{Kind: KindConfig, Message: "failed to create request", Cause: err}
	}
	httpReq.Header = payload.Header
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	c.logRequest(httpReq, req)
	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		c.logger.Debug("api request failed", "error", err, "duration", time.Since(start))
		return nil, transportError("request failed", 0, err)
	}
	c.logResponse(resp, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := readResponse(resp)
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return resp, nil
}

// handleErrorResponse converts a non-2xx response into a Transport error,
// keeping the API's own message when the body carries one.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return transportError("API error", statusCode, errors.New(apiErr.Error.Message))
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		text = http.StatusText(statusCode)
	}
	return transportError("API error", statusCode, errors.New(text))
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// logRequest logs method, path and sizing. Headers carry the bearer token and
// are never logged; neither is the prompt.
func (c *Client) logRequest(httpReq *http.Request, req GenerationRequest) {
	c.logger.Debug("api request",
		"method", httpReq.Method,
		"path", httpReq.URL.Path,
		"model", req.Model,
		"stream", req.Stream,
		"prompt_chars", len([]rune(req.Prompt)),
	)
}

func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	c.logger.Debug("api response", "status", resp.StatusCode, "duration", duration)
}
