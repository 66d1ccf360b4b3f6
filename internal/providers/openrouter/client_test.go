package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bouquet/internal/domain"
	"bouquet/internal/imagegen"
)

func testPayload() imagegen.Payload {
	return imagegen.BuildPayload(imagegen.CompositionRequest{
		Subject: imagegen.ImageBuffer{Data: []byte("person"), MIMEType: "image/png"},
		Object:  imagegen.ImageBuffer{Data: []byte("bouquet"), MIMEType: "image/jpeg"},
	})
}

func TestCompleteRequestShape(t *testing.T) {
	transport := &captureTransport{status: http.StatusOK, body: []byte(`{"choices":[]}`)}
	client := NewClient(Options{
		APIKey:     "sk-test",
		BaseURL:    "https://openrouter.example.com/api/v1/",
		Model:      "openai/gpt-5-image-mini",
		SiteURL:    "https://bouquet.example.com",
		SiteName:   "Bouquet Compositor",
		HTTPClient: &http.Client{Transport: transport},
	})

	raw, err := client.Complete(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if string(raw) != `{"choices":[]}` {
		t.Fatalf("raw body = %s", raw)
	}
	req := transport.lastRequest
	if req.URL.String() != "https://openrouter.example.com/api/v1/chat/completions" {
		t.Fatalf("endpoint = %s", req.URL)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", got)
	}
	if got := req.Header.Get("HTTP-Referer"); got != "https://bouquet.example.com" {
		t.Fatalf("HTTP-Referer = %q", got)
	}
	if got := req.Header.Get("X-Title"); got != "Bouquet Compositor" {
		t.Fatalf("X-Title = %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["model"] != "openai/gpt-5-image-mini" {
		t.Fatalf("model = %v", payload["model"])
	}
	messages := payload["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages len = %d, want 1", len(messages))
	}
	msg := messages[0].(map[string]any)
	if msg["role"] != "user" {
		t.Fatalf("role = %v, want user", msg["role"])
	}
	content := msg["content"].([]any)
	if len(content) != 3 {
		t.Fatalf("content len = %d, want 3", len(content))
	}
	first := content[0].(map[string]any)
	if first["type"] != "text" || first["text"] != imagegen.CompositeInstruction {
		t.Fatalf("first segment = %v", first)
	}
	if _, ok := first["image_url"]; ok {
		t.Fatalf("text segment must not carry image_url")
	}
	subject := content[1].(map[string]any)["image_url"].(map[string]any)["url"]
	if subject != "data:image/png;base64,cGVyc29u" {
		t.Fatalf("subject url = %v", subject)
	}
	object := content[2].(map[string]any)["image_url"].(map[string]any)["url"]
	if object != "data:image/jpeg;base64,Ym91cXVldA==" {
		t.Fatalf("object url = %v", object)
	}
}

func TestCompleteNonSuccessIsUpstreamError(t *testing.T) {
	transport := &captureTransport{status: http.StatusTooManyRequests, body: []byte(`{"error":{"message":"slow down"}}`)}
	recorder := &stubRecorder{}
	client := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}, Recorder: recorder})

	_, err := client.Complete(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Status != http.StatusTooManyRequests {
		t.Fatalf("status not carried: %#v", err)
	}
	if !strings.Contains(de.Body, "slow down") {
		t.Fatalf("body not carried: %q", de.Body)
	}
	if len(recorder.statuses) != 1 || recorder.statuses[0] != "429" {
		t.Fatalf("recorded statuses = %v", recorder.statuses)
	}
}

func TestCompleteNetworkFailureIsTransportError(t *testing.T) {
	client := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: failingTransport{}}})

	_, err := client.Complete(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestCompleteTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(Options{APIKey: "k", BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond})
	_, err := client.Complete(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	transport := &captureTransport{status: http.StatusOK}
	client := NewClient(Options{HTTPClient: &http.Client{Transport: transport}})
	if client.HasCredentials() {
		t.Fatalf("client without key must report no credentials")
	}
	_, err := client.Complete(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if transport.lastRequest != nil {
		t.Fatalf("no request may be sent without a key")
	}
}

func TestDefaultsAndKnownModels(t *testing.T) {
	client := NewClient(Options{APIKey: "k"})
	if client.Model() != DefaultModel {
		t.Fatalf("model = %q, want %q", client.Model(), DefaultModel)
	}
	if client.baseURL != DefaultBaseURL {
		t.Fatalf("baseURL = %q", client.baseURL)
	}
	for _, m := range KnownModels {
		if !IsKnownModel(m) {
			t.Fatalf("%s should be known", m)
		}
	}
	if IsKnownModel("acme/unknown-model") {
		t.Fatalf("unknown model reported as known")
	}
}

type captureTransport struct {
	status      int
	body        []byte
	lastRequest *http.Request
	lastBody    []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body.Close()
	c.lastRequest = req
	c.lastBody = body
	return &http.Response{
		StatusCode: c.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(c.body)),
	}, nil
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

type stubRecorder struct {
	statuses []string
}

func (s *stubRecorder) RecordUpstreamCall(model, status string, duration time.Duration) {
	s.statuses = append(s.statuses, status)
}
