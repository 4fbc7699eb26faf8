package complexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
)

func testBreaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker("complexity-test", resilience.CircuitBreakerConfig{}, observability.NewLogger("test"), observability.NoopMetrics{})
}

func serveContent(content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: content}}},
		})
	}))
}

func TestVerifyParsesPassVerdict(t *testing.T) {
	server := serveContent(`{"derived_complexity": "O(n log n)", "verdict": "PASS"}`)
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, testBreaker(), observability.NewLogger("test"))
	result, err := c.Verify(context.Background(), "def f(): pass", "O(n log n)")
	require.NoError(t, err)
	assert.Equal(t, Pass, result.Verdict)
	assert.Equal(t, "O(n log n)", result.DerivedComplexity)
}

func TestVerifyParsesFailVerdict(t *testing.T) {
	server := serveContent(`{"derived_complexity": "O(n^2)", "verdict": "FAIL"}`)
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, testBreaker(), observability.NewLogger("test"))
	result, err := c.Verify(context.Background(), "def f(): pass", "O(n log n)")
	require.NoError(t, err)
	assert.Equal(t, Fail, result.Verdict)
}

func TestVerifyRejectsMalformedJSON(t *testing.T) {
	server := serveContent(`not json at all`)
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, testBreaker(), observability.NewLogger("test"))
	_, err := c.Verify(context.Background(), "def f(): pass", "O(n log n)")
	require.Error(t, err)
}

func TestVerifyRejectsUnknownVerdict(t *testing.T) {
	server := serveContent(`{"derived_complexity": "O(n)", "verdict": "MAYBE"}`)
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, testBreaker(), observability.NewLogger("test"))
	_, err := c.Verify(context.Background(), "def f(): pass", "O(n log n)")
	require.Error(t, err)
}

func TestVerifyRejectsEmptyDerivedComplexity(t *testing.T) {
	server := serveContent(`{"derived_complexity": "", "verdict": "PASS"}`)
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, testBreaker(), observability.NewLogger("test"))
	_, err := c.Verify(context.Background(), "def f(): pass", "O(n log n)")
	require.Error(t, err)
}

func TestVerifyRejectsNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, testBreaker(), observability.NewLogger("test"))
	_, err := c.Verify(context.Background(), "def f(): pass", "O(n log n)")
	require.Error(t, err)
}
