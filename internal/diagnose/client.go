package diagnose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/cortex/internal/capsule"
	"github.com/hpungsan/cortex/internal/config"
)

// maxBodyExcerpt bounds the response body excerpt included in failure
// messages.
const maxBodyExcerpt = 300

// Result is the outcome of a single diagnosis attempt. Either OK with
// Text and Model, or not OK with Err. A diagnosis is attempted exactly
// once per capsule; nothing retries automatically.
type Result struct {
	OK    bool
	Text  string
	Model string
	Err   string
}

// Client issues diagnosis requests to an OpenAI-compatible chat
// completions endpoint (OpenRouter by default).
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	appURL     string
	appTitle   string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a diagnosis client from the daemon configuration.
func New(cfg *config.Config) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.LLMBaseURL, "/"),
		appURL:     cfg.AppURL,
		appTitle:   cfg.AppTitle,
		timeout:    cfg.LLMTimeout(),
		httpClient: &http.Client{},
	}
}

// Diagnose sends one request embedding the redacted capsule and maps
// every outcome to a Result. The in-flight call is aborted when the
// configured timeout elapses.
func (c *Client) Diagnose(ctx context.Context, caps capsule.Capsule) Result {
	if c.apiKey == "" {
		return Result{Err: "OPENROUTER_API_KEY is not set; diagnosis is disabled"}
	}

	prompt, err := BuildPrompt(caps)
	if err != nil {
		return Result{Err: fmt.Sprintf("build prompt: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(wireRequest{
		Model: c.model,
		Messages: []wireMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return Result{Err: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	// OpenRouter attribution headers.
	req.Header.Set("HTTP-Referer", c.appURL)
	req.Header.Set("X-Title", c.appTitle)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{Err: fmt.Sprintf("diagnosis timed out after %s", c.timeout)}
		}
		return Result{Err: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Err: fmt.Sprintf("diagnosis service returned %d: %s",
			resp.StatusCode, excerpt(respBody))}
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return Result{Err: fmt.Sprintf("decode response: %v", err)}
	}
	if len(wire.Choices) == 0 || strings.TrimSpace(wire.Choices[0].Message.Content) == "" {
		return Result{Err: "diagnosis service returned an empty response"}
	}

	model := wire.Model
	if model == "" {
		model = c.model
	}
	return Result{
		OK:    true,
		Text:  wire.Choices[0].Message.Content,
		Model: model,
	}
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyExcerpt {
		text = text[:maxBodyExcerpt]
	}
	return text
}

// Wire types for the chat completions JSON format. Separate from the
// public types because the wire format names differ.

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireResponse struct {
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
}

type wireChoice struct {
	Message wireMessage `json:"message"`
}
