package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"LineSupervisor/internal/config"
)

func TestGenerateWritesReport(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Root cause: conveyor jam."}}]}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	c := NewClient(config.ReportConfig{
		Endpoint:  server.URL,
		Model:     "gpt-4o-mini",
		APIKey:    "k",
		OutputDir: dir,
	})

	path, err := c.Generate(context.Background(), "Nominal machine: M-03", "ANALYSIS REQUEST")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	if gotAuth != "Bearer k" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %v", gotBody["model"])
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored report: %v", err)
	}
	if string(raw) != "Root cause: conveyor jam." {
		t.Fatalf("unexpected report content: %s", raw)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("report must live in the output dir, got %s", path)
	}
}

func TestGenerateBackendError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(config.ReportConfig{Endpoint: server.URL, Model: "m", APIKey: "k", OutputDir: t.TempDir()})
	if _, err := c.Generate(context.Background(), "scenario", "prompt"); err == nil {
		t.Fatalf("expected error on backend failure")
	}
}

func TestGenerateEmptyCompletion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewClient(config.ReportConfig{Endpoint: server.URL, Model: "m", APIKey: "k", OutputDir: t.TempDir()})
	if _, err := c.Generate(context.Background(), "scenario", "prompt"); err == nil {
		t.Fatalf("expected error on empty completion")
	}
}

func TestGenerateMisconfigured(t *testing.T) {
	t.Parallel()

	c := NewClient(config.ReportConfig{})
	if _, err := c.Generate(context.Background(), "scenario", "prompt"); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}
