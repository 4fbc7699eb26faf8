package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
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

func TestGenerateRejectsTooManyCases(t *testing.T) {
	cases := make([]models.TestCase, MaxCases+1)
	_, err := Generate(Python, sigTwoSum(), "class Solution: pass", cases)
	assert.ErrorIs(t, err, ErrTooManyCases)
}

func TestGeneratePythonIncludesSolutionAndCalls(t *testing.T) {
	cases := []models.TestCase{
		{Input: map[string]interface{}{"nums": []interface{}{2.0, 7.0, 11.0}, "target": 9.0}},
	}
	src, err := Generate(Python, sigTwoSum(), "class Solution:\n    def twoSum(self, nums, target):\n        return [0, 1]\n", cases)
	require.NoError(t, err)
	assert.Contains(t, src, "_solution.twoSum(")
	assert.Contains(t, src, "Test 0: ")
}

func TestGenerateJavaScriptIncludesCalls(t *testing.T) {
	cases := []models.TestCase{
		{Input: map[string]interface{}{"nums": []interface{}{1.0, 2.0}, "target": 3.0}},
	}
	src, err := Generate(JavaScript, sigTwoSum(), "function twoSum(nums, target) { return [0,1]; }", cases)
	require.NoError(t, err)
	assert.Contains(t, src, "twoSum(")
	assert.Contains(t, src, "JSON.stringify")
}

func TestGenerateIncludesListNodeHelpersWhenNeeded(t *testing.T) {
	sig := models.Signature{
		FunctionName: "reverseList",
		Parameters:   []models.Parameter{{Name: "head", Type: "ListNode[int]"}},
		ReturnType:   "ListNode[int]",
	}
	cases := []models.TestCase{{Input: map[string]interface{}{"head": []interface{}{1.0, 2.0, 3.0}}}}
	src, err := Generate(Python, sig, "class Solution:\n    def reverseList(self, head):\n        return head\n", cases)
	require.NoError(t, err)
	assert.Contains(t, src, "def deserializeList")
	assert.Contains(t, src, "def serializeList")
	assert.Contains(t, src, "deserializeList(")
}

func TestResolveLanguage(t *testing.T) {
	tests := []struct {
		alias string
		want  Language
		ok    bool
	}{
		{"python3", Python, true},
		{"js", JavaScript, true},
		{"java", Java, true},
		{"c++", CPP, true},
		{"ruby", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveLanguage(tt.alias)
		assert.Equal(t, tt.ok, ok)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
