package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bouquet/internal/infra"
)

func TestCommandStructure(t *testing.T) {
	for _, path := range [][]string{{"run"}, {"models"}, {"key", "set"}} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			cmd, _, err := rootCmd.Find(path)
			if err != nil {
				t.Fatalf("command %v not found: %v", path, err)
			}
			if cmd.Short == "" {
				t.Errorf("command %v has no Short description", path)
			}
		})
	}
}

func TestRunRequiresBothImages(t *testing.T) {
	for _, name := range []string{"subject", "object"} {
		flag := runCmd.Flags().Lookup(name)
		if flag == nil {
			t.Fatalf("flag --%s missing", name)
		}
		if _, ok := flag.Annotations["cobra_annotation_bash_completion_one_required_flag"]; !ok {
			t.Errorf("flag --%s should be required", name)
		}
	}
}

func TestImageSource(t *testing.T) {
	src, closeFn, err := imageSource("https://cdn.example.com/roses.png")
	if err != nil {
		t.Fatalf("url source: %v", err)
	}
	closeFn()
	if src.URL != "https://cdn.example.com/roses.png" || src.Reader != nil {
		t.Fatalf("url source = %+v", src)
	}

	path := filepath.Join(t.TempDir(), "bride.jpg")
	if err := os.WriteFile(path, []byte("person"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, closeFn, err = imageSource(path)
	if err != nil {
		t.Fatalf("file source: %v", err)
	}
	defer closeFn()
	if src.Name != "bride.jpg" || src.Reader == nil {
		t.Fatalf("file source = %+v", src)
	}

	if _, _, err := imageSource(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestModelsMarksConfigured(t *testing.T) {
	cfg = &infra.Config{OpenRouterModel: "openai/gpt-5-image-mini"}
	var out bytes.Buffer
	modelsCmd.SetOut(&out)
	if err := modelsCmd.RunE(modelsCmd, nil); err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out.String(), "* openai/gpt-5-image-mini") {
		t.Fatalf("configured model not marked:\n%s", out.String())
	}

	cfg = &infra.Config{OpenRouterModel: "acme/painter-1"}
	out.Reset()
	if err := modelsCmd.RunE(modelsCmd, nil); err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out.String(), "acme/painter-1 (unrecognized)") {
		t.Fatalf("unknown model not listed:\n%s", out.String())
	}
}

func TestKeySetRequiresDatabase(t *testing.T) {
	cfg = &infra.Config{}
	logger = infra.NopLogger()
	keyValue = "sk-test"
	defer func() { keyValue = "" }()
	if err := runKeySet(keySetCmd, nil); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestRunStoresResult(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"","images":[{"type":"image_url","image_url":{"url":"data:image/png;base64,Zm9v"}}]}}]}`)
	}))
	defer upstream.Close()

	inputs := t.TempDir()
	resultDir := t.TempDir()
	subject := filepath.Join(inputs, "bride.jpg")
	object := filepath.Join(inputs, "roses.jpg")
	if err := os.WriteFile(subject, []byte("person"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(object, []byte("bouquet"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("OPENROUTER_BASE_URL", upstream.URL)
	t.Setenv("RESULT_DIR", resultDir)
	t.Setenv("STORAGE_BASE_URL", "http://localhost:8080/static/results")
	defer func() { runSubject, runObject, runStyleHint, runJSON = "", "", "", false }()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--subject", subject, "--object", object, "--json"})
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}

	var result struct {
		ID             string `json:"id"`
		ResultImageURL string `json:"result_image_url"`
		Path           string `json:"path"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if result.ResultImageURL != "http://localhost:8080/static/results/"+result.ID+".png" {
		t.Fatalf("result_image_url = %q", result.ResultImageURL)
	}
	data, err := os.ReadFile(filepath.Join(resultDir, result.ID+".png"))
	if err != nil {
		t.Fatalf("result not stored: %v", err)
	}
	if string(data) != "foo" {
		t.Fatalf("stored bytes = %q, want foo", data)
	}
}
