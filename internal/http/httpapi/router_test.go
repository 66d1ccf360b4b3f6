package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bouquet/internal/http/handlers"
	"bouquet/internal/imagegen"
	"bouquet/internal/infra"
	"bouquet/internal/metrics"
	"bouquet/internal/providers/openrouter"
	"bouquet/internal/storage"
)

type stack struct {
	server        *httptest.Server
	resultDir     string
	upstreamCalls *atomic.Int32
}

func newStack(t *testing.T, upstream http.HandlerFunc) stack {
	t.Helper()
	calls := &atomic.Int32{}
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		upstream(w, r)
	}))
	t.Cleanup(up.Close)

	dir := t.TempDir()
	cfg := &infra.Config{
		ResultDir:        dir,
		ResultPathPrefix: "/static/results",
		StorageBaseURL:   "http://localhost:8080/static/results",
		RateLimitPerMin:  100,
	}
	logger := infra.NopLogger()
	collector := metrics.NewCollector("bouquet", prometheus.NewRegistry())

	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	compositor, err := imagegen.NewCompositor(imagegen.CompositorOptions{
		Acquirer: imagegen.NewAcquirer(imagegen.AcquirerOptions{Timeout: 2 * time.Second}),
		Generator: openrouter.NewClient(openrouter.Options{
			APIKey:   "sk-test",
			BaseURL:  up.URL,
			SiteURL:  "http://localhost:8080",
			SiteName: "Bouquet",
			Recorder: collector,
		}),
		Persister: imagegen.NewPersister(imagegen.PersisterOptions{Store: store, BaseURL: cfg.StorageBaseURL}),
		Observer:  collector,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app := &handlers.App{Config: cfg, Logger: &logger, Compositor: compositor}
	srv := httptest.NewServer(NewRouter(ctx, app, collector))
	t.Cleanup(srv.Close)
	return stack{server: srv, resultDir: dir, upstreamCalls: calls}
}

func postUploads(t *testing.T, url string, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, body := range map[string]string{"subject_image": "person", "object_image": "bouquet"} {
		part, err := mw.CreateFormFile(field, field+".jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req, err := http.NewRequest(http.MethodPost, url+"/api/composite-bouquet", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestEndToEndInlineSuccess(t *testing.T) {
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"","images":[{"type":"image_url","image_url":{"url":"data:image/png;base64,Zm9v"}}]}}]}`)
	})

	resp := postUploads(t, s.server.URL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body := readJSON(t, resp)
	assert.Equal(t, "success", body["status"])
	id := body["id"].(string)
	assert.Equal(t, "http://localhost:8080/static/results/"+id+".png", body["result_image_url"])
	assert.Equal(t, int32(1), s.upstreamCalls.Load())

	stored, err := os.ReadFile(s.resultDir + "/" + id + ".png")
	require.NoError(t, err)
	assert.Equal(t, "foo", string(stored))

	res, err := http.Get(s.server.URL + "/static/results/" + id + ".png")
	require.NoError(t, err)
	served, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "foo", string(served))

	res, err = http.Head(s.server.URL + "/static/results/" + id + ".png")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "3", res.Header.Get("Content-Length"))

	res, err = http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	exposition, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(exposition), `bouquet_composites_total{model="google/gemini-2.5-flash-image-preview",outcome="success"} 1`)
	assert.Contains(t, string(exposition), `bouquet_upstream_calls_total{model="google/gemini-2.5-flash-image-preview",status="200"} 1`)
}

func TestEndToEndKoreanMessage(t *testing.T) {
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"data:image/png;base64,Zm9v"}}]}`)
	})

	resp := postUploads(t, s.server.URL, "Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "합성 완료", readJSON(t, resp)["message"])
}

func TestEndToEndUpstreamRateLimited(t *testing.T) {
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	})

	resp := postUploads(t, s.server.URL)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := readJSON(t, resp)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "upstream_error", body["error"])
	assert.Contains(t, body["detail"], "429")

	entries, err := os.ReadDir(s.resultDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEndToEndSubjectNotFound(t *testing.T) {
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("upstream must not be called")
	})
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bouquet.jpg" {
			_, _ = io.WriteString(w, "bouquet")
			return
		}
		http.NotFound(w, r)
	}))
	defer images.Close()

	payload := `{"subject_image_url":"` + images.URL + `/person.jpg","object_image_url":"` + images.URL + `/bouquet.jpg"}`
	resp, err := http.Post(s.server.URL+"/api/composite-bouquet", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := readJSON(t, resp)
	assert.Equal(t, "acquisition_failed", body["error"])
	assert.Contains(t, body["detail"], "/person.jpg")
	assert.Equal(t, int32(0), s.upstreamCalls.Load())
}

func TestRouterOperationalEndpoints(t *testing.T) {
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(s.server.URL + "/v1/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", readJSON(t, resp)["status"])

	resp, err = http.Get(s.server.URL + "/api/composites/0b9c6c1e-8d7d-4a8e-9a55-2b1f5b2f4c11")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(s.server.URL + "/static/results/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "directory listing must be disabled")
	resp.Body.Close()
}
