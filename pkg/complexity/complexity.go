// Package complexity asks an external LLM whether a solution's source meets
// an expected asymptotic time bound, through a fixed system instruction and
// a strict JSON response contract. A malformed response is always a hard
// error here; whether that error is treated as fail-open is a decision left
// to the caller.
package complexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
)

// Verdict is the LLM's judgment of whether the source meets the expected
// asymptotic bound.
type Verdict string

const (
	Pass Verdict = "PASS"
	Fail Verdict = "FAIL"
)

const systemInstruction = `You are a strict algorithmic complexity verifier for a competitive programming platform. Given a candidate's source code and the expected asymptotic time complexity of an optimal solution, determine the actual asymptotic time complexity of the given code and decide whether it meets (is at or better than) the expected bound. Respond with ONLY a JSON object of the exact shape {"derived_complexity": "<big-O string>", "verdict": "PASS"|"FAIL"}. Do not include any other text.`

// Result is the parsed, validated response from the verifier.
type Result struct {
	DerivedComplexity string
	Verdict           Verdict
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type verdictPayload struct {
	DerivedComplexity string `json:"derived_complexity"`
	Verdict           string `json:"verdict"`
}

// Config configures the HTTP client used to reach the LLM endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Client verifies algorithmic complexity, guarded by a circuit breaker.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     observability.Logger
}

// NewClient builds a complexity verifier client wrapped by the named
// circuit breaker.
func NewClient(cfg Config, breaker *resilience.CircuitBreaker, logger observability.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// Verify asks whether source meets expectedComplexity (e.g. "O(n log n)").
// Any response that cannot be parsed into the exact {derived_complexity,
// verdict} shape, or whose verdict is neither PASS nor FAIL, is a hard
// error — it is never silently treated as a pass here.
func (c *Client) Verify(ctx context.Context, source, expectedComplexity string) (*Result, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: fmt.Sprintf("Expected complexity: %s\n\nSource code:\n%s", expectedComplexity, source)},
		},
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.doVerify(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Result), nil
}

func (c *Client) doVerify(ctx context.Context, req chatRequest) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal complexity request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build complexity request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("complexity request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("complexity verifier returned status %d", resp.StatusCode)
	}

	var raw chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode complexity response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("complexity verifier returned no choices")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(raw.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("complexity verifier returned unparseable verdict: %w", err)
	}

	switch Verdict(payload.Verdict) {
	case Pass, Fail:
	default:
		return nil, fmt.Errorf("complexity verifier returned invalid verdict %q", payload.Verdict)
	}
	if payload.DerivedComplexity == "" {
		return nil, fmt.Errorf("complexity verifier returned empty derived_complexity")
	}

	return &Result{
		DerivedComplexity: payload.DerivedComplexity,
		Verdict:           Verdict(payload.Verdict),
	}, nil
}
