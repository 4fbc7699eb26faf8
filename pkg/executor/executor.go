// Package executor orchestrates the runner and sandbox client against a
// full set of test cases: generate the batch program, submit it, poll to
// completion, then parse and compare each per-case line under the
// signature's declared comparison mode.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/comparator"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/runner"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/sandbox"
)

// MaxGeneratedSize is the hard cap on generated program size in bytes.
const MaxGeneratedSize = 100 * 1024

const (
	pollInterval = 2 * time.Second
	maxPolls     = 30
)

var testLinePattern = regexp.MustCompile(`^Test (\d+): (.*)$`)

// Outcome summarizes a completed (or short-circuited) batch execution.
type Outcome struct {
	AllPassed     bool
	TotalTests    int
	PassedTests   int
	Results       []models.TestCaseResult
	AverageTime   float64
	AverageMemory float64
}

// languageIDs maps a runner.Language to the sandbox's numeric language id.
var languageIDs = map[runner.Language]int{
	runner.Python:     sandbox.LanguagePython,
	runner.JavaScript: sandbox.LanguageJavaScript,
	runner.Java:       sandbox.LanguageJava,
	runner.CPP:        sandbox.LanguageCPP,
}

// Executor runs a full suite of test cases for a submission.
type Executor struct {
	sandboxClient *sandbox.Client
}

// New builds an Executor backed by the given sandbox client.
func New(sandboxClient *sandbox.Client) *Executor {
	return &Executor{sandboxClient: sandboxClient}
}

// Run generates the batch harness, submits it, polls to completion, and
// compares every case's actual output against its expected output.
func (e *Executor) Run(ctx context.Context, lang runner.Language, sig models.Signature, source string, cases []models.TestCase) (*Outcome, error) {
	total := len(cases)

	if total > runner.MaxCases {
		return sizeOrCountFailure(total, "limit exceeded"), nil
	}

	program, err := runner.Generate(lang, sig, source, cases)
	if err != nil {
		return sizeOrCountFailure(total, err.Error()), nil
	}
	if len(program) > MaxGeneratedSize {
		return sizeOrCountFailure(total, "Generated code too large"), nil
	}

	languageID, ok := languageIDs[lang]
	if !ok {
		return nil, fmt.Errorf("executor: no sandbox language id for %q", lang)
	}

	token, err := e.sandboxClient.Submit(ctx, languageID, program, "")
	if err != nil {
		return nil, fmt.Errorf("submit to sandbox: %w", err)
	}

	result, err := e.poll(ctx, token)
	if err != nil {
		return nil, err
	}

	if result.Status.ID != sandbox.StatusAccepted {
		return allFailedWithStatus(total, result.Status.ID, result.Status.Description), nil
	}

	return compareOutput(sig, cases, result.Stdout, result.TimeSeconds, float64(result.MemoryKB)), nil
}

func (e *Executor) poll(ctx context.Context, token string) (*sandbox.Result, error) {
	for attempt := 0; attempt < maxPolls; attempt++ {
		result, err := e.sandboxClient.Poll(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("poll sandbox: %w", err)
		}
		if sandbox.IsTerminal(result.Status.ID) {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return nil, fmt.Errorf("executor: sandbox poll exceeded %d attempts", maxPolls)
}

func sizeOrCountFailure(total int, reason string) *Outcome {
	results := make([]models.TestCaseResult, total)
	for i := range results {
		results[i] = models.TestCaseResult{Index: i, Passed: false, Error: reason}
	}
	return &Outcome{AllPassed: total == 0, TotalTests: total, Results: results}
}

func allFailedWithStatus(total, statusID int, description string) *Outcome {
	results := make([]models.TestCaseResult, total)
	for i := range results {
		results[i] = models.TestCaseResult{Index: i, Passed: false, Error: fmt.Sprintf("sandbox status %d: %s", statusID, description)}
	}
	return &Outcome{AllPassed: false, TotalTests: total, Results: results}
}

func compareOutput(sig models.Signature, cases []models.TestCase, stdout string, timeSeconds, memoryKB float64) *Outcome {
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	byIndex := make(map[int]string, len(lines))
	for _, line := range lines {
		m := testLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		byIndex[idx] = m[2]
	}

	results := make([]models.TestCaseResult, len(cases))
	passed := 0
	for i, tc := range cases {
		raw, ok := byIndex[i]
		if !ok {
			results[i] = models.TestCaseResult{Index: i, Passed: false, Error: "no output produced for this test case"}
			continue
		}

		var actual interface{}
		if err := json.Unmarshal([]byte(raw), &actual); err != nil {
			results[i] = models.TestCaseResult{Index: i, Passed: false, ActualOutput: raw, Error: "could not parse test output"}
			continue
		}

		ok2, compareErr := Compare(sig.ComparisonMode, sig.CustomComparator, actual, tc.Output)
		expectedJSON, _ := json.Marshal(tc.Output)
		caseError := ""
		if compareErr != nil {
			caseError = compareErr.Error()
		}
		results[i] = models.TestCaseResult{
			Index:          i,
			Passed:         ok2,
			ActualOutput:   raw,
			ExpectedOutput: string(expectedJSON),
			Error:          caseError,
			TimeMs:         timeSeconds * 1000,
			MemoryKb:       memoryKB,
		}
		if ok2 {
			passed++
		}
	}

	return &Outcome{
		AllPassed:     passed == len(cases) && len(cases) > 0,
		TotalTests:    len(cases),
		PassedTests:   passed,
		Results:       results,
		AverageTime:   timeSeconds * 1000,
		AverageMemory: memoryKB,
	}
}

// Compare applies the signature's declared comparison mode between an
// actual and expected value, both already JSON-decoded into interface{}.
// customExpression is only consulted when mode is ComparisonCustom; a
// custom comparator that errors, times out, or doesn't return a boolean
// reports false alongside the reason.
func Compare(mode models.ComparisonMode, customExpression string, actual, expected interface{}) (bool, error) {
	switch mode {
	case models.ComparisonUnordered:
		return compareUnordered(actual, expected), nil
	case models.ComparisonSet:
		return compareSet(actual, expected), nil
	case models.ComparisonCustom:
		ok, err := comparator.Evaluate(customExpression, actual, expected)
		if err != nil {
			return false, err
		}
		return ok, nil
	default:
		return compareStrict(actual, expected), nil
	}
}

func compareStrict(a, b interface{}) bool {
	return canonicalJSON(a) == canonicalJSON(b)
}

func compareUnordered(a, b interface{}) bool {
	arrA, okA := a.([]interface{})
	arrB, okB := b.([]interface{})
	if !okA || !okB {
		return compareStrict(a, b)
	}
	if len(arrA) != len(arrB) {
		return false
	}
	return sortedJSONElements(arrA) == sortedJSONElements(arrB)
}

func compareSet(a, b interface{}) bool {
	arrA, okA := a.([]interface{})
	arrB, okB := b.([]interface{})
	if !okA || !okB {
		return compareStrict(a, b)
	}

	normalize := func(outer []interface{}) []string {
		elems := make([]string, 0, len(outer))
		for _, inner := range outer {
			if innerArr, ok := inner.([]interface{}); ok {
				elems = append(elems, sortedJSONElements(innerArr))
			} else {
				elems = append(elems, canonicalJSON(inner))
			}
		}
		sort.Strings(elems)
		dedup := elems[:0:0]
		var prev string
		first := true
		for _, e := range elems {
			if first || e != prev {
				dedup = append(dedup, e)
			}
			prev = e
			first = false
		}
		return dedup
	}

	na := normalize(arrA)
	nb := normalize(arrB)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func sortedJSONElements(arr []interface{}) string {
	elems := make([]string, len(arr))
	for i, e := range arr {
		elems[i] = canonicalJSON(e)
	}
	sort.Strings(elems)
	return strings.Join(elems, "\x1f")
}

func canonicalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
