// Package session implements the match-session runtime (design component
// C10): owns a match from creation through resolution, handling in-match
// messages, bot simulation, timeout, and settlement. Transport (how a
// message physically reaches this package, and how its responses reach a
// client) is deliberately out of scope; callers adapt their own
// WebSocket/HTTP framing onto the Handle* methods below.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/botsim"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/complexity"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/docstore"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/executor"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchcreate"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
)

// State is a session's lifecycle stage.
type State int

const (
	StateInitializing State = iota
	StateActive
	StateCompleted
	StateTimeout
	StateAbandoned
)

// Broadcaster delivers outbound events for a live match room. The runtime
// never talks to a transport directly; it calls these and trusts the
// caller to fan them out to both players' connections.
type Broadcaster interface {
	CodeUpdated(matchID, playerID, language, code string)
	NewSubmission(matchID string, submission models.Submission)
	SubmissionResult(matchID, playerID string, outcome *executor.Outcome, complexityResult *complexity.Result)
	MatchEnded(matchID string, winnerUserID *string, reason string, ratingChanges map[string]models.RatingChange)
	Rejected(matchID, playerID, reason string)
	SubmissionStep(matchID, playerID, step string)
	TestProgress(matchID, playerID string, testCasesSolved, submissions int)
}

// Config tunes the runtime's timers and rate limits.
type Config struct {
	MaxMatchDuration      time.Duration
	DisposalSweepInterval time.Duration
	SubmissionCacheTTL    time.Duration

	BotTimeDist   botsim.Distribution
	BotTimeParams map[models.Difficulty]botsim.Params

	TestSubmitRateLimit resilience.RateLimiterConfig
	SubmitRateLimit     resilience.RateLimiterConfig
}

// DefaultConfig mirrors the spec's configuration section defaults.
func DefaultConfig() Config {
	return Config{
		MaxMatchDuration:      45 * time.Minute,
		DisposalSweepInterval: time.Minute,
		SubmissionCacheTTL:    time.Hour,
		BotTimeDist:           botsim.Lognormal,
		BotTimeParams: map[models.Difficulty]botsim.Params{
			models.DifficultyEasy:   {A: 4.5, B: 0.4},  // exp(4.5) ~ 90s median
			models.DifficultyMedium: {A: 5.5, B: 0.45}, // ~ 245s median
			models.DifficultyHard:   {A: 6.3, B: 0.5},  // ~ 545s median
		},
		TestSubmitRateLimit: resilience.RateLimiterConfig{Limit: 2, Period: 2 * time.Second},
		SubmitRateLimit:     resilience.RateLimiterConfig{Limit: 1, Period: 2 * time.Second},
	}
}

// session is the runtime's private bookkeeping for one live match. The
// persisted source of truth is always the coordination-store blob; this
// struct only holds what must live in-process (timers, rate limiters).
type session struct {
	matchID, roomID, problemID string
	problem                    *models.Problem
	player1, player2           matchcreate.Participant
	startedAt                  time.Time

	mu    sync.Mutex
	state State

	durationTimer *time.Timer
	botTimers     []*time.Timer

	testLimiters   map[string]*resilience.RateLimiter
	submitLimiters map[string]*resilience.RateLimiter

	submitMu sync.Mutex // serializes submit_code per match so a resolved match can't be double-settled
}

func (s *session) participant(playerID string) (matchcreate.Participant, bool) {
	if s.player1.PlayerID == playerID {
		return s.player1, true
	}
	if s.player2.PlayerID == playerID {
		return s.player2, true
	}
	return matchcreate.Participant{}, false
}

func (s *session) opponent(playerID string) (matchcreate.Participant, bool) {
	if s.player1.PlayerID == playerID {
		return s.player2, true
	}
	if s.player2.PlayerID == playerID {
		return s.player1, true
	}
	return matchcreate.Participant{}, false
}

// Runtime owns every live session and implements matchcreate.SessionOpener,
// closing the wiring loop between match creation and the in-match runtime.
type Runtime struct {
	store       *coordination.Store
	players     docstore.PlayerStore
	matchDocs   docstore.MatchDocumentStore
	submissions docstore.SubmissionStore
	guestViews  docstore.GuestViewStore
	executor    *executor.Executor
	complexity  *complexity.Client
	broadcaster Broadcaster
	logger      observability.Logger
	cfg         Config
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a match-session runtime.
func New(
	store *coordination.Store,
	players docstore.PlayerStore,
	matchDocs docstore.MatchDocumentStore,
	submissions docstore.SubmissionStore,
	guestViews docstore.GuestViewStore,
	exec *executor.Executor,
	complexityClient *complexity.Client,
	broadcaster Broadcaster,
	logger observability.Logger,
	cfg Config,
) *Runtime {
	return &Runtime{
		store:       store,
		players:     players,
		matchDocs:   matchDocs,
		submissions: submissions,
		guestViews:  guestViews,
		executor:    exec,
		complexity:  complexityClient,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
		sessions:    make(map[string]*session),
		stopCh:      make(chan struct{}),
	}
}

// OpenSession implements matchcreate.SessionOpener: it mints a roomId,
// registers the in-process session, and arms its timers.
func (r *Runtime) OpenSession(ctx context.Context, matchID, problemID string, problem *models.Problem, p1, p2 matchcreate.Participant) (string, error) {
	roomID := uuid.New().String()

	sess := &session{
		matchID:        matchID,
		roomID:         roomID,
		problemID:      problemID,
		problem:        problem,
		player1:        p1,
		player2:        p2,
		startedAt:      r.now(),
		state:          StateActive,
		testLimiters:   make(map[string]*resilience.RateLimiter),
		submitLimiters: make(map[string]*resilience.RateLimiter),
	}
	for _, p := range []matchcreate.Participant{p1, p2} {
		sess.testLimiters[p.PlayerID] = resilience.NewRateLimiter(fmt.Sprintf("test:%s:%s", matchID, p.PlayerID), r.cfg.TestSubmitRateLimit)
		sess.submitLimiters[p.PlayerID] = resilience.NewRateLimiter(fmt.Sprintf("submit:%s:%s", matchID, p.PlayerID), r.cfg.SubmitRateLimit)
	}

	r.mu.Lock()
	r.sessions[matchID] = sess
	r.mu.Unlock()

	r.armDurationTimeout(sess)
	r.armBotSimulation(sess)

	return roomID, nil
}

func (r *Runtime) get(matchID string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[matchID]
	return sess, ok
}

func (r *Runtime) forget(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, matchID)
}

func (r *Runtime) armDurationTimeout(sess *session) {
	sess.durationTimer = time.AfterFunc(r.cfg.MaxMatchDuration, func() {
		ctx := context.Background()
		if err := r.resolve(ctx, sess.matchID, nil, "timeout"); err != nil {
			r.logger.Error("session: timeout resolution failed", map[string]interface{}{"matchId": sess.matchID, "error": err.Error()})
		}
	})
}

func (r *Runtime) stopTimers(sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.durationTimer != nil {
		sess.durationTimer.Stop()
	}
	for _, t := range sess.botTimers {
		t.Stop()
	}
}

// Start runs the disposal safety net: a periodic sweep converting any
// "ongoing" blob whose in-process session vanished (e.g. a restart) into
// "abandoned", so no match lingers forever in matches:active.
func (r *Runtime) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.DisposalSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.sweepOrphans(ctx)
			}
		}
	}()
}

// Stop halts the disposal sweep loop.
func (r *Runtime) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Runtime) sweepOrphans(ctx context.Context) {
	matchIDs, err := r.store.ActiveMatches(ctx)
	if err != nil {
		r.logger.Warn("session: disposal sweep failed to list active matches", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, matchID := range matchIDs {
		if _, ok := r.get(matchID); ok {
			continue
		}
		blob, err := r.store.GetMatchBlob(ctx, matchID)
		if err != nil || blob == nil || blob.Status != models.MatchOngoing {
			continue
		}
		r.logger.Warn("session: disposing orphaned ongoing match", map[string]interface{}{"matchId": matchID})
		r.disposeOrphan(ctx, matchID, blob)
	}
}

// disposeOrphan converts an ongoing blob with no owning in-process session
// into abandoned. It skips rating settlement entirely: the runtime that
// created the match is gone, so nothing here knows which participants were
// bots, and a best-effort abandon should never risk a wrong rating change.
func (r *Runtime) disposeOrphan(ctx context.Context, matchID string, blob *models.MatchBlob) {
	endedAt := r.now()
	if _, err := r.store.MutateMatch(ctx, matchID, coordination.TTLForStatus(models.MatchAbandoned), func(b *models.MatchBlob) error {
		b.EndedAt = &endedAt
		b.Status = models.MatchAbandoned
		b.WinReason = "disposed"
		return nil
	}); err != nil {
		r.logger.Error("session: orphan disposal failed to mutate blob", map[string]interface{}{"matchId": matchID, "error": err.Error()})
		return
	}

	for playerID := range blob.Players {
		if err := r.store.DeleteReservation(ctx, playerID); err != nil {
			r.logger.Warn("session: orphan disposal failed to delete reservation", map[string]interface{}{"matchId": matchID, "playerId": playerID, "error": err.Error()})
		}
	}

	if err := r.store.Publish(ctx, coordination.ChannelEventsMatch, map[string]interface{}{
		"type":    "match_end",
		"matchId": matchID,
		"status":  string(models.MatchAbandoned),
		"reason":  "disposed",
	}); err != nil {
		r.logger.Warn("session: orphan disposal failed to publish match_end", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	}

	if err := r.store.ActiveMatchRemove(ctx, matchID); err != nil {
		r.logger.Warn("session: orphan disposal failed to clear matches:active", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	}

	r.broadcaster.MatchEnded(matchID, nil, "disposed", nil)
}
