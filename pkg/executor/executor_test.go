package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/runner"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/sandbox"
)

func sigTwoSum() models.Signature {
	return models.Signature{
		FunctionName: "twoSum",
		Parameters: []models.Parameter{
			{Name: "nums", Type: "int[]"},
			{Name: "target", Type: "int"},
		},
		ReturnType:     "int[]",
		ComparisonMode: models.ComparisonUnordered,
	}
}

// fakeSandbox serves a fixed submission token and then a fixed terminal poll
// result, so Executor.Run never touches the real network.
func fakeSandbox(t *testing.T, statusID int, stdout string) *sandbox.Client {
	t.Helper()
	encodedStdout := base64.StdEncoding.EncodeToString([]byte(stdout))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/submissions") && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": map[string]interface{}{"id": statusID, "description": "done"},
				"stdout": encodedStdout,
			})
		}
	}))
	t.Cleanup(server.Close)

	breaker := resilience.NewCircuitBreaker("executor-test", resilience.CircuitBreakerConfig{}, observability.NewLogger("test"), observability.NoopMetrics{})
	return sandbox.NewClient(sandbox.Config{BaseURL: server.URL}, breaker, observability.NewLogger("test"))
}

func TestRunAllPassed(t *testing.T) {
	cases := []models.TestCase{
		{Input: map[string]interface{}{"nums": []interface{}{2.0, 7.0, 11.0}, "target": 9.0}, Output: []interface{}{0.0, 1.0}},
	}
	client := fakeSandbox(t, sandbox.StatusAccepted, "Test 0: [0, 1]\n")
	e := New(client)

	source := "class Solution:\n    def twoSum(self, nums, target):\n        return [0, 1]\n"
	outcome, err := e.Run(context.Background(), runner.Python, sigTwoSum(), source, cases)
	require.NoError(t, err)
	assert.True(t, outcome.AllPassed)
	assert.Equal(t, 1, outcome.PassedTests)
	assert.Equal(t, 1, outcome.TotalTests)
}

func TestRunMismatchFails(t *testing.T) {
	cases := []models.TestCase{
		{Input: map[string]interface{}{"nums": []interface{}{2.0, 7.0, 11.0}, "target": 9.0}, Output: []interface{}{0.0, 1.0}},
	}
	client := fakeSandbox(t, sandbox.StatusAccepted, "Test 0: [1, 2]\n")
	e := New(client)

	source := "class Solution:\n    def twoSum(self, nums, target):\n        return [1, 2]\n"
	outcome, err := e.Run(context.Background(), runner.Python, sigTwoSum(), source, cases)
	require.NoError(t, err)
	assert.False(t, outcome.AllPassed)
	assert.Equal(t, 0, outcome.PassedTests)
	assert.False(t, outcome.Results[0].Passed)
}

func TestRunNonAcceptedStatusMarksAllFailed(t *testing.T) {
	cases := []models.TestCase{
		{Input: map[string]interface{}{"nums": []interface{}{1.0, 2.0}, "target": 3.0}, Output: []interface{}{0.0, 1.0}},
	}
	client := fakeSandbox(t, sandbox.StatusWrongAnswer, "")
	e := New(client)

	source := "class Solution:\n    def twoSum(self, nums, target):\n        return [0, 1]\n"
	outcome, err := e.Run(context.Background(), runner.Python, sigTwoSum(), source, cases)
	require.NoError(t, err)
	assert.False(t, outcome.AllPassed)
	assert.Contains(t, outcome.Results[0].Error, "sandbox status 4")
}

func TestRunTooManyCasesShortCircuits(t *testing.T) {
	cases := make([]models.TestCase, runner.MaxCases+1)
	e := New(fakeSandbox(t, sandbox.StatusAccepted, ""))

	outcome, err := e.Run(context.Background(), runner.Python, sigTwoSum(), "class Solution: pass", cases)
	require.NoError(t, err)
	assert.False(t, outcome.AllPassed)
	for _, r := range outcome.Results {
		assert.Equal(t, "limit exceeded", r.Error)
	}
}

func TestCompareUnordered(t *testing.T) {
	var a, b interface{}
	_ = json.Unmarshal([]byte(`[1,2,3]`), &a)
	_ = json.Unmarshal([]byte(`[3,2,1]`), &b)
	ok, err := Compare(models.ComparisonUnordered, "", a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompareSetDedupesAndIgnoresOrder(t *testing.T) {
	var a, b interface{}
	_ = json.Unmarshal([]byte(`[[1,2],[2,1],[3,4]]`), &a)
	_ = json.Unmarshal([]byte(`[[2,1],[3,4]]`), &b)
	ok, err := Compare(models.ComparisonSet, "", a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompareStrictRequiresExactMatch(t *testing.T) {
	var a, b interface{}
	_ = json.Unmarshal([]byte(`[1,2,3]`), &a)
	_ = json.Unmarshal([]byte(`[3,2,1]`), &b)
	ok, err := Compare(models.ComparisonStrict, "", a, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompareCustomEvaluatesLuaExpression(t *testing.T) {
	var a, b interface{}
	_ = json.Unmarshal([]byte(`5`), &a)
	_ = json.Unmarshal([]byte(`10`), &b)
	ok, err := Compare(models.ComparisonCustom, "actual * 2 == expected", a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompareCustomNonBooleanFails(t *testing.T) {
	var a, b interface{}
	_ = json.Unmarshal([]byte(`5`), &a)
	_ = json.Unmarshal([]byte(`10`), &b)
	ok, err := Compare(models.ComparisonCustom, "actual + expected", a, b)
	require.Error(t, err)
	assert.False(t, ok)
}
