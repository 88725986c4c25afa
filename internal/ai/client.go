package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/applypilot/applypilot/internal/config"
)

// Generator produces free text from a prompt. Any non-nil error means the
// collaborator is unavailable; callers fall back to template text and do not
// retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client calls the configured text-generation provider over HTTP.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewClient builds a Client with a hard per-call timeout.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.GenerateTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate dispatches to the configured provider.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	switch c.cfg.AIProvider {
	case "openai":
		return c.generateWithOpenAI(ctx, prompt)
	case "anthropic":
		return c.generateWithAnthropic(ctx, prompt)
	case "ollama":
		return c.generateWithOllama(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported AI provider: %s", c.cfg.AIProvider)
	}
}

func (c *Client) generateWithOpenAI(ctx context.Context, prompt string) (string, error) {
	apiKey := c.cfg.OpenAIKey
	if apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured. Run: applypilot config set --key openai_key --value YOUR_KEY")
	}

	model := c.cfg.DefaultModel
	if model == "" {
		model = "gpt-4"
	}

	reqBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.7,
		"max_tokens":  1000,
	}

	body, err := c.post(ctx, "https://api.openai.com/v1/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + apiKey,
	})
	if err != nil {
		return "", err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	choices, ok := result["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return "", fmt.Errorf("unexpected response format from OpenAI")
	}

	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected response format from OpenAI")
	}
	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected response format from OpenAI")
	}
	content, ok := message["content"].(string)
	if !ok {
		return "", fmt.Errorf("unexpected response format from OpenAI")
	}

	return strings.TrimSpace(content), nil
}

func (c *Client) generateWithAnthropic(ctx context.Context, prompt string) (string, error) {
	apiKey := c.cfg.AnthropicKey
	if apiKey == "" {
		return "", fmt.Errorf("Anthropic API key not configured. Run: applypilot config set --key anthropic_key --value YOUR_KEY")
	}

	reqBody := map[string]interface{}{
		"model":      "claude-3-5-sonnet-20241022",
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, err := c.post(ctx, "https://api.anthropic.com/v1/messages", reqBody, map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	content, ok := result["content"].([]interface{})
	if !ok || len(content) == 0 {
		return "", fmt.Errorf("unexpected response format from Anthropic")
	}

	block, ok := content[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected response format from Anthropic")
	}
	text, ok := block["text"].(string)
	if !ok {
		return "", fmt.Errorf("unexpected response format from Anthropic")
	}

	return strings.TrimSpace(text), nil
}

func (c *Client) generateWithOllama(ctx context.Context, prompt string) (string, error) {
	url := c.cfg.OllamaURL
	if url == "" {
		url = "http://localhost:11434"
	}

	model := c.cfg.DefaultModel
	if model == "" {
		model = "llama3.2"
	}

	reqBody := map[string]interface{}{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}

	body, err := c.post(ctx, url+"/api/generate", reqBody, nil)
	if err != nil {
		return "", err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	response, ok := result["response"].(string)
	if !ok {
		return "", fmt.Errorf("unexpected response format from Ollama")
	}

	return strings.TrimSpace(response), nil
}

// post sends a JSON request and returns the raw body, failing on any
// non-200 status.
func (c *Client) post(ctx context.Context, url string, reqBody interface{}, headers map[string]string) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("text generation API error (%d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
