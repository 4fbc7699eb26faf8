// Package sandbox wraps a Judge0-compatible code execution service: submit a
// base64-encoded source (and optional stdin) under a language id, then poll
// the returned token until the run reaches a terminal status.
package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
)

// Language ids understood by the sandbox contract.
const (
	LanguagePython     = 71
	LanguageJavaScript = 63
	LanguageJava       = 62
	LanguageCPP        = 54
)

// compiledLanguages receive an explicit higher memory limit; the rest get
// the sandbox's own defaults.
var compiledLanguages = map[int]bool{
	LanguageJava: true,
	LanguageCPP:  true,
}

// compiledMemoryLimitKB is the explicit memory ceiling handed to compiled
// submissions.
const compiledMemoryLimitKB = 256000

// Status ids per the sandbox contract: 1-2 are non-terminal, 3 is accepted,
// 4 is wrong answer, anything >= 5 is an error class.
const (
	StatusInQueue     = 1
	StatusProcessing  = 2
	StatusAccepted    = 3
	StatusWrongAnswer = 4
)

// Status mirrors the sandbox's {id, description} pair.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Result is the decoded poll response: every base64 text field has already
// been unwrapped.
type Result struct {
	Status        Status
	Stdout        string
	Stderr        string
	CompileOutput string
	Message       string
	TimeSeconds   float64
	MemoryKB      int
}

type submitRequest struct {
	LanguageID   int    `json:"language_id"`
	SourceCode   string `json:"source_code"`
	Stdin        string `json:"stdin,omitempty"`
	MemoryLimit  int    `json:"memory_limit,omitempty"`
}

type submitResponse struct {
	Token string `json:"token"`
}

type pollResponse struct {
	Status        Status  `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          string  `json:"time"`
	Memory        int     `json:"memory"`
}

// Config configures the HTTP sandbox client.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client submits and polls sandbox jobs, guarded by a circuit breaker.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     observability.Logger
}

// NewClient builds a sandbox client wrapped by the named circuit breaker.
func NewClient(cfg Config, breaker *resilience.CircuitBreaker, logger observability.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// Submit posts a job and returns its polling token. languageID in
// compiledLanguages gets an explicit higher memory limit.
func (c *Client) Submit(ctx context.Context, languageID int, source, stdin string) (string, error) {
	req := submitRequest{
		LanguageID: languageID,
		SourceCode: base64.StdEncoding.EncodeToString([]byte(source)),
	}
	if stdin != "" {
		req.Stdin = base64.StdEncoding.EncodeToString([]byte(stdin))
	}
	if compiledLanguages[languageID] {
		req.MemoryLimit = compiledMemoryLimitKB
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.doSubmit(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) doSubmit(ctx context.Context, req submitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	url := fmt.Sprintf("%s/submissions?base64_encoded=true&wait=false", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("sandbox submit returned status %d", resp.StatusCode)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("sandbox submit returned empty token")
	}
	return out.Token, nil
}

// Poll fetches the job's current state. The caller is responsible for
// interpreting non-terminal statuses (ids 1-2) and retrying.
func (c *Client) Poll(ctx context.Context, token string) (*Result, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.doPoll(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Result), nil
}

func (c *Client) doPoll(ctx context.Context, token string) (*Result, error) {
	url := fmt.Sprintf("%s/submissions/%s?base64_encoded=true&fields=*", c.baseURL, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sandbox poll returned status %d", resp.StatusCode)
	}

	var raw pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}

	return &Result{
		Status:        raw.Status,
		Stdout:        decodeB64(raw.Stdout),
		Stderr:        decodeB64(raw.Stderr),
		CompileOutput: decodeB64(raw.CompileOutput),
		Message:       decodeB64(raw.Message),
		MemoryKB:      raw.Memory,
	}, nil
}

func decodeB64(field *string) string {
	if field == nil || *field == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(*field)
	if err != nil {
		return *field
	}
	return string(decoded)
}

// IsTerminal reports whether a status id means the run has finished
// (accepted, wrong answer, or an error class) as opposed to still queued or
// running.
func IsTerminal(statusID int) bool {
	return statusID > StatusProcessing
}
