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

// Anthropic connects to the Messages API, which diverges from the OpenAI
// chat-completions shape enough (headers, content-block response) to
// warrant its own connector rather than forcing it through
// OpenAICompatible.
type Anthropic struct {
	baseURL      string
	apiKey       string
	defaultModel string
	apiVersion   string
	client       *http.Client
}

// NewAnthropic builds an Anthropic Messages API connector.
func NewAnthropic(baseURL, apiKey, defaultModel string, client *http.Client) *Anthropic {
	return &Anthropic{baseURL: baseURL, apiKey: apiKey, defaultModel: defaultModel, apiVersion: "2023-06-01", client: client}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Anthropic) Call(ctx context.Context, prompt, model string, temperature float64, maxTokens int) (Result, error) {
	if model == "" {
		model = a.defaultModel
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return Result{}, errs.New(errs.GeneratorUnavailable, "failed to encode request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Result{}, errs.New(errs.GeneratorUnavailable, "failed to build request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", a.apiVersion)

	started := time.Now()
	resp, err := a.client.Do(req)
	latency := time.Since(started)
	if err != nil {
		return Result{}, errs.Wrap(errs.GeneratorUnavailable, "transport error calling anthropic", err).WithRetry(0)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Result{}, errs.New(errs.GeneratorUnavailable, fmt.Sprintf("anthropic auth failure: status %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Result{}, errs.New(errs.GeneratorUnavailable, fmt.Sprintf("anthropic transient failure: status %d", resp.StatusCode)).WithRetry(0)
	}
	if resp.StatusCode >= 400 {
		return Result{}, errs.New(errs.GeneratorUnavailable, fmt.Sprintf("anthropic rejected request: status %d", resp.StatusCode))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Content) == 0 {
		return Result{}, errs.New(errs.GeneratorUnavailable, "anthropic returned a malformed response")
	}

	return Result{
		Response:     parsed.Content[0].Text,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		CostUSD:      cost("anthropic", model, parsed.Usage.InputTokens, parsed.Usage.OutputTokens),
		LatencyMs:    float64(latency.Milliseconds()),
		Provider:     "anthropic",
		Model:        model,
	}, nil
}
