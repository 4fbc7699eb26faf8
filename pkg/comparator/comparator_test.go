package comparator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateTrueExpression(t *testing.T) {
	ok, err := Evaluate("actual == expected", 5.0, 5.0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateFalseExpression(t *testing.T) {
	ok, err := Evaluate("actual == expected", 5.0, 6.0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateWithTableValues(t *testing.T) {
	actual := []interface{}{1.0, 2.0, 3.0}
	expected := []interface{}{1.0, 2.0, 3.0}
	ok, err := Evaluate("#actual == #expected and actual[1] == expected[1]", actual, expected)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateNonBooleanIsError(t *testing.T) {
	_, err := Evaluate("actual + expected", 1.0, 2.0)
	require.Error(t, err)
}

func TestEvaluateSyntaxErrorIsError(t *testing.T) {
	_, err := Evaluate("actual ===", 1.0, 2.0)
	require.Error(t, err)
}

func TestEvaluateInfiniteLoopTimesOut(t *testing.T) {
	_, err := Evaluate("(function() while true do end end)()", 1.0, 2.0)
	require.Error(t, err)
}
