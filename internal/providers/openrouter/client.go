package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bouquet/internal/domain"
	"bouquet/internal/imagegen"
	"bouquet/internal/infra"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "google/gemini-2.5-flash-image-preview"
)

// KnownModels lists the image-capable models the service has been run with.
// Other identifiers are passed through unchanged.
var KnownModels = []string{
	"google/gemini-2.5-flash-image-preview",
	"openai/gpt-5-image-mini",
	"google/gemini-3-pro-image-preview",
}

// IsKnownModel reports whether model is one of KnownModels.
func IsKnownModel(model string) bool {
	for _, m := range KnownModels {
		if m == model {
			return true
		}
	}
	return false
}

// CallRecorder receives one sample per upstream call.
type CallRecorder interface {
	RecordUpstreamCall(model, status string, duration time.Duration)
}

// Options configures the OpenRouter chat-completions client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	SiteURL        string
	SiteName       string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *infra.Logger
	Recorder       CallRecorder
}

// Client sends composite payloads to OpenRouter. It never retries.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	siteURL    string
	siteName   string
	httpClient *http.Client
	logger     *infra.Logger
	recorder   CallRecorder
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string             `json:"role"`
	Content []imagegen.Segment `json:"content"`
}

// NewClient constructs a client with defaults for every empty option.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 180 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		siteURL:    strings.TrimSpace(opts.SiteURL),
		siteName:   strings.TrimSpace(opts.SiteName),
		httpClient: httpClient,
		logger:     logger,
		recorder:   opts.Recorder,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Complete performs exactly one chat-completions call and returns the raw
// 2xx body. Non-2xx responses become UpstreamError, network failures and
// timeouts become TransportError.
func (c *Client) Complete(ctx context.Context, payload imagegen.Payload) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, domain.ConfigurationError("OPENROUTER_API_KEY is not configured")
	}
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: payload.Segments}},
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		httpReq.Header.Set("X-Title", c.siteName)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record("transport_error", start)
		return nil, domain.TransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record("transport_error", start)
		return nil, domain.TransportError(fmt.Errorf("read response: %w", err))
	}
	c.record(strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().
			Str("model", c.model).
			Int("status", resp.StatusCode).
			Msg("openrouter: non-success response")
		return nil, domain.UpstreamError(resp.StatusCode, string(raw))
	}
	c.logger.Debug().
		Str("model", c.model).
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("openrouter: completion received")
	return raw, nil
}

func (c *Client) record(status string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordUpstreamCall(c.model, status, time.Since(start))
	}
}

var _ imagegen.Generator = (*Client)(nil)
