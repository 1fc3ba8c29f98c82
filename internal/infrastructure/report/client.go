// Package report generates post-mortem analysis documents for anomalies
// through an OpenAI-compatible chat-completions API and stores them on disk.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"LineSupervisor/internal/config"
	"LineSupervisor/internal/ports"
)

// Client implements ports.ReportSink backed by OpenAI-compatible APIs.
type Client struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	outputDir    string
	httpClient   *http.Client
}

var _ ports.ReportSink = (*Client)(nil)

// NewClient builds a report client from configuration.
func NewClient(cfg config.ReportConfig) *Client {
	return &Client{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		outputDir:    cfg.OutputDir,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// Generate posts the anomaly prompt as a user message, writes the completion
// to the output directory, and returns the stored file's path.
func (c *Client) Generate(ctx context.Context, nominalScenario, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("report client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("report client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": nominalScenario + "\n\n" + prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal report payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("report backend error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode report response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("report backend returned no content")
	}

	return c.store(parsed.Choices[0].Message.Content)
}

func (c *Client) store(content string) (string, error) {
	dir := c.outputDir
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.md", time.Now().UTC().Format("20060102T150405"), uuid.NewString())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a manufacturing reliability engineer. Analyse the production " +
			"anomaly described by the user against the nominal scenario and produce " +
			"a concise root-cause report with recommended actions."
	}
	return prompt
}
