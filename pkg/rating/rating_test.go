package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
)

func TestProblemDifficultyProbabilitiesSumsToOne(t *testing.T) {
	weights := ProblemDifficultyProbabilities(1500, nil, 0)
	var total float64
	for _, w := range weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestProblemDifficultyProbabilitiesFavorsClosestTarget(t *testing.T) {
	weights := ProblemDifficultyProbabilities(1500, nil, 0)
	assert.Greater(t, weights[models.DifficultyMedium], weights[models.DifficultyEasy])
	assert.Greater(t, weights[models.DifficultyMedium], weights[models.DifficultyHard])
}

func TestSelectDifficultyByProbability(t *testing.T) {
	weights := map[models.Difficulty]float64{
		models.DifficultyEasy:   0.2,
		models.DifficultyMedium: 0.5,
		models.DifficultyHard:   0.3,
	}

	assert.Equal(t, models.DifficultyEasy, SelectDifficultyByProbability(weights, 0.1))
	assert.Equal(t, models.DifficultyMedium, SelectDifficultyByProbability(weights, 0.3))
	assert.Equal(t, models.DifficultyHard, SelectDifficultyByProbability(weights, 0.8))
}

func TestSelectDifficultyByProbabilityResidueFallsBackToMedium(t *testing.T) {
	weights := map[models.Difficulty]float64{
		models.DifficultyEasy: 0.3,
	}
	assert.Equal(t, models.DifficultyMedium, SelectDifficultyByProbability(weights, 0.999999))
}

func TestDifficultyMultiplierClamps(t *testing.T) {
	assert.Equal(t, MultiplierMax, DifficultyMultiplier(1000, 3000, 0, 0, 0))
	assert.Equal(t, MultiplierMin, DifficultyMultiplier(3000, 1000, 0, 0, 0))
	assert.InDelta(t, 1.0, DifficultyMultiplier(1500, 1500, 0, 0, 0), 1e-9)
}

func TestApplyDifficultyAdjustmentRounds(t *testing.T) {
	assert.Equal(t, 16, ApplyDifficultyAdjustment(16.4, 1.0))
	assert.Equal(t, 17, ApplyDifficultyAdjustment(16.5, 1.0))
}

func TestSettleMatchDecisiveSumsCloseToZero(t *testing.T) {
	d1, d2 := SettleMatch(1500, 1540, 1500, Decisive(true))
	assert.Greater(t, d1, 0)
	assert.Less(t, d2, 0)
	assert.LessOrEqual(t, abs(d1+d2), 2)
}

func TestSettleMatchDrawSumsToZero(t *testing.T) {
	d1, d2 := SettleMatch(1500, 1500, 1500, Draw())
	assert.Equal(t, 0, d1+d2)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
