package session

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/botsim"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchcreate"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
)

// codeUpdateIntervalMin/Max bound a bot's simulated typing cadence.
const (
	codeUpdateIntervalMin = 1 * time.Second
	codeUpdateIntervalMax = 60 * time.Second
)

// botMaxLines caps how many simulated lines a bot's code-update timer will
// ever report having written.
const botMaxLines = 75

// testProgressIntervalMin/Max bound a bot's simulated test-submission
// cadence. The source material states this window in seconds but the
// numbers given (500-1000) only make sense as milliseconds for a "bot taps
// test-run every so often" behavior; read as milliseconds here, recorded as
// a decision since the unit wasn't otherwise resolvable.
const (
	testProgressIntervalMin = 500 * time.Millisecond
	testProgressIntervalMax = 1000 * time.Millisecond
)

// armBotSimulation arms every timer a bot participant needs: a completion
// timer sampled once at match start, plus recurring typing/test-progress
// timers that re-arm themselves with a fresh random interval each time.
func (r *Runtime) armBotSimulation(sess *session) {
	for _, p := range []matchcreate.Participant{sess.player1, sess.player2} {
		if !p.IsBot {
			continue
		}
		r.armBotCompletionTimer(sess, p)
		r.armBotCodeUpdateTimer(sess, p.PlayerID)
		r.armBotTestProgressTimer(sess, p.PlayerID)
	}
}

func (r *Runtime) armBotCompletionTimer(sess *session, bot matchcreate.Participant) {
	params := r.cfg.BotTimeParams[sess.problem.Difficulty]
	seconds := botsim.SampleCompletionSeconds(sess.matchID, sess.problem.Difficulty, bot.PlayerID, r.cfg.BotTimeDist, params)
	if !(seconds > 0) || math.IsInf(seconds, 1) {
		return // no valid params: this bot never wins by timer
	}

	maxAllowed := (r.cfg.MaxMatchDuration - 30*time.Second).Seconds()
	if seconds > maxAllowed {
		seconds = maxAllowed
	}
	if seconds <= 0 {
		return
	}

	timer := time.AfterFunc(time.Duration(seconds*float64(time.Second)), func() {
		ctx := context.Background()
		if _, ok := r.get(sess.matchID); !ok {
			return
		}
		if err := r.recordBotSolve(ctx, sess, bot.PlayerID); err != nil {
			r.logger.Error("session: bot solve failed", map[string]interface{}{"matchId": sess.matchID, "botId": bot.PlayerID, "error": err.Error()})
		}
	})

	sess.mu.Lock()
	sess.botTimers = append(sess.botTimers, timer)
	sess.mu.Unlock()
}

// recordBotSolve fabricates an all-passed submission for the bot and
// resolves the match in its favor, the same path a human's accepted
// submit_code takes.
func (r *Runtime) recordBotSolve(ctx context.Context, sess *session, botID string) error {
	cases := sess.problem.TestCases
	results := make([]models.TestCaseResult, len(cases))
	for i := range cases {
		results[i] = models.TestCaseResult{Index: i, Passed: true}
	}

	submission := models.Submission{
		UserID:            botID,
		Language:          "python",
		Timestamp:         r.now(),
		Passed:            true,
		DerivedComplexity: sess.problem.TimeComplexity,
		TestResults:       results,
		TestsPassed:       len(cases),
		TotalTests:        len(cases),
		Code:              fmt.Sprintf("# solved by %s", botID),
		IsPlaceholderBot:  true,
	}

	if _, err := r.store.MutateMatch(ctx, sess.matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
		b.Submissions = append(b.Submissions, submission)
		if b.BotStats == nil {
			b.BotStats = map[string]models.BotStats{}
		}
		stats := b.BotStats[botID]
		stats.Submissions++
		stats.TestCasesSolved = len(cases)
		b.BotStats[botID] = stats
		return nil
	}); err != nil {
		return fmt.Errorf("record bot submission: %w", err)
	}

	r.broadcaster.NewSubmission(sess.matchID, submission)
	winner := botID
	return r.resolve(ctx, sess.matchID, &winner, "solved")
}

func (r *Runtime) armBotCodeUpdateTimer(sess *session, botID string) {
	var arm func()
	arm = func() {
		interval := randomDuration(codeUpdateIntervalMin, codeUpdateIntervalMax)
		timer := time.AfterFunc(interval, func() {
			if _, ok := r.get(sess.matchID); !ok {
				return
			}
			ctx := context.Background()
			var code string
			added := 1 + rand.Intn(2) // 1-2 lines per tick
			_, err := r.store.MutateMatch(ctx, sess.matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
				if b.PlayersCode[botID] == nil {
					b.PlayersCode[botID] = map[string]string{}
				}
				lines := b.LinesWritten[botID] + added
				if lines > botMaxLines {
					lines = botMaxLines
				}
				b.LinesWritten[botID] = lines
				code = strings.Repeat("# bot line\n", lines)
				b.PlayersCode[botID]["python"] = code
				return nil
			})
			if err != nil {
				r.logger.Warn("session: bot code-update tick failed", map[string]interface{}{"matchId": sess.matchID, "botId": botID, "error": err.Error()})
			} else {
				r.broadcaster.CodeUpdated(sess.matchID, botID, "python", code)
			}
			arm()
		})
		sess.mu.Lock()
		sess.botTimers = append(sess.botTimers, timer)
		sess.mu.Unlock()
	}
	arm()
}

func (r *Runtime) armBotTestProgressTimer(sess *session, botID string) {
	maxCases := len(sess.problem.TestCases)
	var arm func()
	arm = func() {
		interval := randomDuration(testProgressIntervalMin, testProgressIntervalMax)
		timer := time.AfterFunc(interval, func() {
			if _, ok := r.get(sess.matchID); !ok {
				return
			}
			ctx := context.Background()
			var stats models.BotStats
			_, err := r.store.MutateMatch(ctx, sess.matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
				if b.BotStats == nil {
					b.BotStats = map[string]models.BotStats{}
				}
				s := b.BotStats[botID]
				s.Submissions++
				solved := s.TestCasesSolved + rand.Intn(3) // 0-2 newly solved cases
				if solved > maxCases {
					solved = maxCases
				}
				s.TestCasesSolved = solved
				b.BotStats[botID] = s
				stats = s
				return nil
			})
			if err != nil {
				r.logger.Warn("session: bot test-progress tick failed", map[string]interface{}{"matchId": sess.matchID, "botId": botID, "error": err.Error()})
			} else {
				r.broadcaster.TestProgress(sess.matchID, botID, stats.TestCasesSolved, stats.Submissions)
			}
			arm()
		})
		sess.mu.Lock()
		sess.botTimers = append(sess.botTimers, timer)
		sess.mu.Unlock()
	}
	arm()
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
