// Package rating implements the pure rating and difficulty-selection math:
// Gaussian problem-difficulty weighting, K=32 ELO settlement, and the
// difficulty-multiplier clamp that scales a rating delta by how far a
// problem's target ELO sits from a player's own rating.
package rating

import (
	"math"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
)

const (
	KFactor         = 32
	GaussianSigma   = 250.0
	MultiplierScale = 1000.0
	MultiplierMin   = 0.5
	MultiplierMax   = 2.0
)

// DifficultyTargets is the default problemElo each difficulty bucket aims
// for when drawing a Gaussian weight against a player's rating.
var DifficultyTargets = map[models.Difficulty]float64{
	models.DifficultyEasy:   1200,
	models.DifficultyMedium: 1500,
	models.DifficultyHard:   2000,
}

// difficultyOrder fixes iteration order for the inverse-CDF draw so the same
// (avgRating, draw) pair always resolves to the same bucket.
var difficultyOrder = []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}

// ProblemDifficultyProbabilities returns normalized Gaussian weights for each
// difficulty bucket, centered on how close avgRating sits to each bucket's
// target ELO.
func ProblemDifficultyProbabilities(avgRating float64, targets map[models.Difficulty]float64, sigma float64) map[models.Difficulty]float64 {
	if targets == nil {
		targets = DifficultyTargets
	}
	if sigma <= 0 {
		sigma = GaussianSigma
	}

	weights := make(map[models.Difficulty]float64, len(difficultyOrder))
	var total float64
	for _, d := range difficultyOrder {
		target, ok := targets[d]
		if !ok {
			continue
		}
		diff := avgRating - target
		w := math.Exp(-(diff * diff) / (2 * sigma * sigma))
		weights[d] = w
		total += w
	}

	if total <= 0 {
		// degenerate input (e.g. empty targets): fall back to uniform weight
		// on whatever buckets are present.
		n := float64(len(weights))
		if n == 0 {
			return weights
		}
		for d := range weights {
			weights[d] = 1.0 / n
		}
		return weights
	}

	for d := range weights {
		weights[d] /= total
	}
	return weights
}

// SelectDifficultyByProbability draws a difficulty by inverse-CDF over the
// stable iteration order in difficultyOrder. draw must be in [0, 1). Residue
// left over from floating point rounding falls back to Medium.
func SelectDifficultyByProbability(weights map[models.Difficulty]float64, draw float64) models.Difficulty {
	var cumulative float64
	for _, d := range difficultyOrder {
		w, ok := weights[d]
		if !ok {
			continue
		}
		cumulative += w
		if draw < cumulative {
			return d
		}
	}
	return models.DifficultyMedium
}

// DifficultyMultiplier scales a base rating delta by how far the problem's
// target ELO sits above or below the player's own rating, clamped to
// [min, max].
func DifficultyMultiplier(rating, problemElo, scale, min, max float64) float64 {
	if scale == 0 {
		scale = MultiplierScale
	}
	if min == 0 && max == 0 {
		min, max = MultiplierMin, MultiplierMax
	}
	m := 1 + (problemElo-rating)/scale
	if m < min {
		return min
	}
	if m > max {
		return max
	}
	return m
}

// ApplyDifficultyAdjustment rounds baseChange*multiplier to the nearest
// integer, matching the store's integer rating representation.
func ApplyDifficultyAdjustment(baseChange float64, multiplier float64) int {
	return int(math.Round(baseChange * multiplier))
}

// ExpectedScore is the standard logistic ELO expectation for the first
// rating against the second.
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
}

// Outcome describes a settled match result from one player's point of view:
// 1.0 for a win, 0.0 for a loss, 0.5 for a draw.
type Outcome struct {
	Player1Actual float64
	Player2Actual float64
}

// Decisive is the outcome for player1 winning against player2.
func Decisive(player1Wins bool) Outcome {
	if player1Wins {
		return Outcome{Player1Actual: 1, Player2Actual: 0}
	}
	return Outcome{Player1Actual: 0, Player2Actual: 1}
}

// Draw is the outcome where both sides scored 0.5.
func Draw() Outcome {
	return Outcome{Player1Actual: 0.5, Player2Actual: 0.5}
}

// SettleMatch computes each player's independently-clamped rating delta
// against the problem's target ELO, per §4.C2: K=32, each side's delta is
// multiplied by its own difficulty multiplier against problemElo, then
// rounded.
func SettleMatch(rating1, rating2, problemElo float64, outcome Outcome) (delta1, delta2 int) {
	expected1 := ExpectedScore(rating1, rating2)
	expected2 := ExpectedScore(rating2, rating1)

	base1 := KFactor * (outcome.Player1Actual - expected1)
	base2 := KFactor * (outcome.Player2Actual - expected2)

	mult1 := DifficultyMultiplier(rating1, problemElo, MultiplierScale, MultiplierMin, MultiplierMax)
	mult2 := DifficultyMultiplier(rating2, problemElo, MultiplierScale, MultiplierMin, MultiplierMax)

	delta1 = ApplyDifficultyAdjustment(base1, mult1)
	delta2 = ApplyDifficultyAdjustment(base2, mult2)
	return delta1, delta2
}

// SortedDifficultyKeys exposes the fixed iteration order for callers (e.g.
// tests) that need to reason about tie-breaking deterministically.
func SortedDifficultyKeys(weights map[models.Difficulty]float64) []models.Difficulty {
	keys := make([]models.Difficulty, 0, len(weights))
	for _, d := range difficultyOrder {
		if _, ok := weights[d]; ok {
			keys = append(keys, d)
		}
	}
	return keys
}
