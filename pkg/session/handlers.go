package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/complexity"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/executor"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/runner"
)

// ErrUnknownMatch is returned for any handler called against a matchID the
// runtime isn't currently tracking.
var ErrUnknownMatch = fmt.Errorf("session: unknown match")

// ErrNotParticipant is returned when playerID isn't one of the match's two
// participants.
var ErrNotParticipant = fmt.Errorf("session: not a participant in this match")

// ErrRateLimited is returned when a submission exceeds its per-player rate.
var ErrRateLimited = fmt.Errorf("session: rate limited")

// ErrUnsupportedLanguage is returned for a language alias runner can't generate.
var ErrUnsupportedLanguage = fmt.Errorf("session: unsupported language")

const testSubmitCaseCount = 3

// Submission-step telemetry values broadcast during HandleSubmitCode's
// cache-miss path (§6 outbound `submission_step`).
const (
	StepCompiling           = "compiling"
	StepRunningTests        = "running_tests"
	StepAnalyzingComplexity = "analyzing_complexity"
)

// HandleUpdateCode applies a live code buffer update for playerID and
// broadcasts it to the room.
func (r *Runtime) HandleUpdateCode(ctx context.Context, matchID, playerID, language, code string) error {
	sess, ok := r.get(matchID)
	if !ok {
		return ErrUnknownMatch
	}
	if _, ok := sess.participant(playerID); !ok {
		return ErrNotParticipant
	}

	_, err := r.store.MutateMatch(ctx, matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
		if b.PlayersCode[playerID] == nil {
			b.PlayersCode[playerID] = map[string]string{}
		}
		b.PlayersCode[playerID][language] = code
		b.LinesWritten[playerID] = strings.Count(code, "\n") + 1
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: update code: %w", err)
	}

	r.broadcaster.CodeUpdated(matchID, playerID, language, code)
	return nil
}

// HandleSetLanguage records which language playerID is currently writing in.
func (r *Runtime) HandleSetLanguage(ctx context.Context, matchID, playerID, language string) error {
	sess, ok := r.get(matchID)
	if !ok {
		return ErrUnknownMatch
	}
	if _, ok := sess.participant(playerID); !ok {
		return ErrNotParticipant
	}

	_, err := r.store.MutateMatch(ctx, matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
		b.Language[playerID] = language
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: set language: %w", err)
	}
	return nil
}

// HandleTestSubmitCode runs the candidate solution against the first three
// of the problem's test cases (all of them when it has three or fewer)
// without affecting win state; rate limited to 2 per 2s per player.
func (r *Runtime) HandleTestSubmitCode(ctx context.Context, matchID, playerID, languageAlias, code string) (*executor.Outcome, error) {
	sess, ok := r.get(matchID)
	if !ok {
		return nil, ErrUnknownMatch
	}
	if _, ok := sess.participant(playerID); !ok {
		return nil, ErrNotParticipant
	}
	if !sess.testLimiters[playerID].Allow() {
		return nil, ErrRateLimited
	}

	lang, ok := runner.ResolveLanguage(languageAlias)
	if !ok {
		return nil, ErrUnsupportedLanguage
	}

	cases := sess.problem.TestCases
	if len(cases) > testSubmitCaseCount {
		cases = cases[:testSubmitCaseCount]
	}

	outcome, err := r.executor.Run(ctx, lang, sess.problem.Signature, code, cases)
	if err != nil {
		return nil, fmt.Errorf("session: test submit: %w", err)
	}

	submission := models.Submission{
		UserID:         playerID,
		Language:       string(lang),
		Timestamp:      r.now(),
		Passed:         outcome.AllPassed,
		TestResults:    outcome.Results,
		AverageTime:    outcome.AverageTime,
		AverageMemory:  outcome.AverageMemory,
		TestsPassed:    outcome.PassedTests,
		TotalTests:     outcome.TotalTests,
		Code:           code,
		SubmissionType: "test",
	}
	if _, err := r.store.MutateMatch(ctx, matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
		b.TestSubmissions = append(b.TestSubmissions, submission)
		return nil
	}); err != nil {
		r.logger.Warn("session: failed to persist test submission", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	}

	r.broadcaster.NewSubmission(matchID, submission)
	r.broadcaster.SubmissionResult(matchID, playerID, outcome, nil)
	return outcome, nil
}

func submissionCacheHash(source, language, problemID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(source) + ":" + language + ":" + problemID))
	return hex.EncodeToString(sum[:])
}

// HandleSubmitCode runs the full competitive submission pipeline: cache
// lookup, execution against the full hidden test set, complexity
// verification on an all-pass result, persistence, and a win declaration
// when the solution is accepted. Rate limited to 1 per 2s per player.
func (r *Runtime) HandleSubmitCode(ctx context.Context, matchID, playerID, languageAlias, code string) (*executor.Outcome, error) {
	sess, ok := r.get(matchID)
	if !ok {
		return nil, ErrUnknownMatch
	}
	if _, ok := sess.participant(playerID); !ok {
		return nil, ErrNotParticipant
	}
	if !sess.submitLimiters[playerID].Allow() {
		return nil, ErrRateLimited
	}

	lang, ok := runner.ResolveLanguage(languageAlias)
	if !ok {
		return nil, ErrUnsupportedLanguage
	}

	sess.submitMu.Lock()
	defer sess.submitMu.Unlock()

	// A match already resolved under us (opponent won first, or timeout
	// fired) while this submission was queued on the lock: refuse silently
	// rather than re-resolve an already-settled match.
	if sess.state != StateActive {
		return nil, ErrUnknownMatch
	}

	codeHash := submissionCacheHash(code, string(lang), sess.problemID)
	var outcome *executor.Outcome
	var err error
	var complexityResult *complexity.Result
	complexityFailed := false
	derivedComplexity := ""

	if cached, cacheErr := r.store.GetCachedSubmissionOutcome(ctx, matchID, playerID, codeHash); cacheErr == nil && cached != nil {
		outcome = outcomeFromSubmission(cached)
		complexityFailed = cached.ComplexityFailed
		derivedComplexity = cached.DerivedComplexity
	} else {
		r.broadcaster.SubmissionStep(matchID, playerID, StepCompiling)
		r.broadcaster.SubmissionStep(matchID, playerID, StepRunningTests)
		outcome, err = r.executor.Run(ctx, lang, sess.problem.Signature, code, sess.problem.TestCases)
		if err != nil {
			return nil, fmt.Errorf("session: submit code: %w", err)
		}
		if outcome.AllPassed && sess.problem.TimeComplexity != "" {
			r.broadcaster.SubmissionStep(matchID, playerID, StepAnalyzingComplexity)
			complexityResult, complexityFailed = r.verifyComplexity(ctx, matchID, code, sess.problem.TimeComplexity)
		}
	}

	passed := outcome.AllPassed && !complexityFailed

	if complexityResult != nil {
		derivedComplexity = complexityResult.DerivedComplexity
	}

	submission := models.Submission{
		UserID:            playerID,
		Language:          string(lang),
		Timestamp:         r.now(),
		Passed:            passed,
		ComplexityFailed:  complexityFailed,
		DerivedComplexity: derivedComplexity,
		TestResults:       outcome.Results,
		AverageTime:       outcome.AverageTime,
		AverageMemory:     outcome.AverageMemory,
		TestsPassed:       outcome.PassedTests,
		TotalTests:        outcome.TotalTests,
		Code:              code,
	}

	submissionID, err := r.submissions.Insert(ctx, matchID, submission)
	if err != nil {
		r.logger.Warn("session: failed to persist submission document", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	} else {
		submission.ID = submissionID
		if err := r.matchDocs.AddSubmissionIDs(ctx, matchID, submissionID); err != nil {
			r.logger.Warn("session: failed to link submission id", map[string]interface{}{"matchId": matchID, "error": err.Error()})
		}
	}

	if _, err := r.store.MutateMatch(ctx, matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
		b.Submissions = append(b.Submissions, submission)
		if submissionID != "" {
			b.SubmissionIDs = append(b.SubmissionIDs, submissionID)
		}
		return nil
	}); err != nil {
		r.logger.Warn("session: failed to persist submission in blob", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	}

	if err := r.store.CacheSubmissionOutcome(ctx, matchID, playerID, codeHash, &submission, r.cfg.SubmissionCacheTTL); err != nil {
		r.logger.Warn("session: failed to cache submission outcome", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	}

	r.broadcaster.NewSubmission(matchID, submission)
	r.broadcaster.SubmissionResult(matchID, playerID, outcome, complexityResult)

	if passed {
		winner := playerID
		if err := r.resolve(ctx, matchID, &winner, "solved"); err != nil {
			r.logger.Error("session: resolve on solve failed", map[string]interface{}{"matchId": matchID, "error": err.Error()})
			return outcome, err
		}
	}

	return outcome, nil
}

// HandleEndMatch lets a participant forfeit, or ends the match as a draw
// when draw is set; one participant's request is enough, and the opponent's
// agreement is not checked. Any other caller is refused.
func (r *Runtime) HandleEndMatch(ctx context.Context, matchID, requestedBy string, draw bool) error {
	sess, ok := r.get(matchID)
	if !ok {
		return ErrUnknownMatch
	}
	if _, ok := sess.participant(requestedBy); !ok {
		return ErrNotParticipant
	}

	if draw {
		return r.resolve(ctx, matchID, nil, "draw")
	}

	opponent, _ := sess.opponent(requestedBy)
	winner := opponent.PlayerID
	return r.resolve(ctx, matchID, &winner, "forfeit")
}

// outcomeFromSubmission rebuilds an executor.Outcome from a previously
// cached submission so a resubmission of identical code replays without
// re-running the sandbox or the complexity check.
func outcomeFromSubmission(s *models.Submission) *executor.Outcome {
	return &executor.Outcome{
		AllPassed:     s.Passed || (s.TestsPassed == s.TotalTests && s.TotalTests > 0),
		TotalTests:    s.TotalTests,
		PassedTests:   s.TestsPassed,
		Results:       s.TestResults,
		AverageTime:   s.AverageTime,
		AverageMemory: s.AverageMemory,
	}
}

// verifyComplexity asks the complexity verifier whether source meets the
// problem's declared time bound. A verifier error is fail-open: the
// submission is treated as passing complexity, but the failure is logged
// since it means the win was granted without a derived-complexity check.
func (r *Runtime) verifyComplexity(ctx context.Context, matchID, source, expected string) (*complexity.Result, bool) {
	result, err := r.complexity.Verify(ctx, source, expected)
	if err != nil {
		r.logger.Warn("session: complexity verification errored, failing open", map[string]interface{}{"matchId": matchID, "error": err.Error()})
		return nil, false
	}
	return result, result.Verdict == complexity.Fail
}
