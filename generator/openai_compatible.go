package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentineldev/sentinel-gateway/errs"
)

// OpenAICompatible connects to any upstream speaking the OpenAI
// chat-completions wire format: Groq, OpenAI itself, Mistral, Together, and
// a local Ollama server all share this shape closely enough to need no
// connector-specific parsing.
type OpenAICompatible struct {
	providerName string
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
}

// NewOpenAICompatible builds a connector for one OpenAI-shaped upstream.
// apiKey may be empty (Ollama's local server requires none).
func NewOpenAICompatible(providerName, baseURL, apiKey, defaultModel string, client *http.Client) *OpenAICompatible {
	return &OpenAICompatible{
		providerName: providerName,
		baseURL:      baseURL,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       client,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Call issues one chat-completion request. It does not retry itself —
// retry is CallWithRetry's job, layered above every connector uniformly.
func (o *OpenAICompatible) Call(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (Result, error) {
	if model == "" {
		model = o.defaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return Result{}, errs.New(errs.GeneratorUnavailable, "failed to encode request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, errs.New(errs.GeneratorUnavailable, "failed to build request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	started := time.Now()
	resp, err := o.client.Do(req)
	latency := time.Since(started)
	if err != nil {
		return Result{}, errs.Wrap(errs.GeneratorUnavailable, "transport error calling "+o.providerName, err).WithRetry(0)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Result{}, errs.New(errs.GeneratorUnavailable, fmt.Sprintf("%s auth failure: status %d", o.providerName, resp.StatusCode))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Result{}, errs.New(errs.GeneratorUnavailable, fmt.Sprintf("%s transient failure: status %d", o.providerName, resp.StatusCode)).WithRetry(0)
	}
	if resp.StatusCode >= 400 {
		return Result{}, errs.New(errs.GeneratorUnavailable, fmt.Sprintf("%s rejected request: status %d", o.providerName, resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Choices) == 0 {
		return Result{}, errs.New(errs.GeneratorUnavailable, o.providerName+" returned a malformed response")
	}

	return Result{
		Response:     parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		CostUSD:      cost(o.providerName, model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
		LatencyMs:    float64(latency.Milliseconds()),
		Provider:     o.providerName,
		Model:        model,
	}, nil
}
