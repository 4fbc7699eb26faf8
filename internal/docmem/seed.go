package docmem

import "github.com/rishabhvenu/LeetBattle-sub000/pkg/models"

// DefaultProblems is a minimal seed set covering every difficulty bucket,
// enough to exercise matchmaking and match-session end to end without a
// real problem bank configured.
func DefaultProblems() []models.Problem {
	return []models.Problem{
		{
			ID:          "two-sum",
			Title:       "Two Sum",
			Description: "Given an array of integers and a target, return the indices of the two numbers that add up to target.",
			Difficulty:  models.DifficultyEasy,
			Topics:      []string{"array", "hash-table"},
			Signature: models.Signature{
				FunctionName:   "twoSum",
				Parameters:     []models.Parameter{{Name: "nums", Type: "int[]"}, {Name: "target", Type: "int"}},
				ReturnType:     "int[]",
				ComparisonMode: models.ComparisonUnordered,
			},
			Examples: []models.Example{
				{Input: "nums = [2,7,11,15], target = 9", Output: "[0,1]"},
			},
			TimeComplexity: "O(n)",
			TestCases: []models.TestCase{
				{Input: map[string]any{"nums": []any{2.0, 7.0, 11.0, 15.0}, "target": 9.0}, Output: []any{0.0, 1.0}},
				{Input: map[string]any{"nums": []any{3.0, 2.0, 4.0}, "target": 6.0}, Output: []any{1.0, 2.0}},
			},
			StarterCode: map[string]string{"python": "def twoSum(nums, target):\n    pass\n"},
			Verified:    true,
		},
		{
			ID:          "longest-substring",
			Title:       "Longest Substring Without Repeating Characters",
			Description: "Given a string, find the length of the longest substring without repeating characters.",
			Difficulty:  models.DifficultyMedium,
			Topics:      []string{"string", "sliding-window"},
			Signature: models.Signature{
				FunctionName:   "lengthOfLongestSubstring",
				Parameters:     []models.Parameter{{Name: "s", Type: "string"}},
				ReturnType:     "int",
				ComparisonMode: models.ComparisonStrict,
			},
			Examples: []models.Example{
				{Input: `s = "abcabcbb"`, Output: "3"},
			},
			TimeComplexity: "O(n)",
			TestCases: []models.TestCase{
				{Input: map[string]any{"s": "abcabcbb"}, Output: 3.0},
				{Input: map[string]any{"s": "bbbbb"}, Output: 1.0},
			},
			StarterCode: map[string]string{"python": "def lengthOfLongestSubstring(s):\n    pass\n"},
			Verified:    true,
		},
		{
			ID:          "median-two-sorted-arrays",
			Title:       "Median of Two Sorted Arrays",
			Description: "Given two sorted arrays, find the median of the combined array in logarithmic time.",
			Difficulty:  models.DifficultyHard,
			Topics:      []string{"array", "binary-search"},
			Signature: models.Signature{
				FunctionName:   "findMedianSortedArrays",
				Parameters:     []models.Parameter{{Name: "nums1", Type: "int[]"}, {Name: "nums2", Type: "int[]"}},
				ReturnType:     "float",
				ComparisonMode: models.ComparisonStrict,
			},
			Examples: []models.Example{
				{Input: "nums1 = [1,3], nums2 = [2]", Output: "2.0"},
			},
			TimeComplexity: "O(log(min(m,n)))",
			TestCases: []models.TestCase{
				{Input: map[string]any{"nums1": []any{1.0, 3.0}, "nums2": []any{2.0}}, Output: 2.0},
			},
			StarterCode: map[string]string{"python": "def findMedianSortedArrays(nums1, nums2):\n    pass\n"},
			Verified:    true,
		},
	}
}
