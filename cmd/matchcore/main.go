package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rishabhvenu/LeetBattle-sub000/internal/config"
	"github.com/rishabhvenu/LeetBattle-sub000/internal/docmem"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/complexity"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/executor"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchcreate"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchmaking"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/sandbox"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/session"
)

// loggingNotifier and loggingBroadcaster stand in for the real transport
// layer (WebSocket or similar), which is out of scope here: the runtime
// never talks to a connection directly, so this binary can run end to end
// against the coordination store with nothing more than a logger wired to
// its outbound events.
type loggingNotifier struct{ logger observability.Logger }

func (n loggingNotifier) MatchFound(playerID, matchID, roomID, problemID string) {
	n.logger.Info("queue: match found", map[string]interface{}{"playerId": playerID, "matchId": matchID, "roomId": roomID, "problemId": problemID})
}

func (n loggingNotifier) AlreadyInMatch(playerID, matchID, roomID string) {
	n.logger.Info("queue: already in match", map[string]interface{}{"playerId": playerID, "matchId": matchID, "roomId": roomID})
}

func (n loggingNotifier) Queued(playerID string, position int64) {
	n.logger.Info("queue: player queued", map[string]interface{}{"playerId": playerID, "position": position})
}

type loggingBroadcaster struct{ logger observability.Logger }

func (b loggingBroadcaster) CodeUpdated(matchID, playerID, language, code string) {
	b.logger.Debug("match: code updated", map[string]interface{}{"matchId": matchID, "playerId": playerID, "language": language})
}

func (b loggingBroadcaster) NewSubmission(matchID string, submission models.Submission) {
	b.logger.Info("match: new submission", map[string]interface{}{"matchId": matchID, "userId": submission.UserID, "passed": submission.Passed})
}

func (b loggingBroadcaster) SubmissionResult(matchID, playerID string, outcome *executor.Outcome, complexityResult *complexity.Result) {
	fields := map[string]interface{}{"matchId": matchID, "playerId": playerID}
	if outcome != nil {
		fields["passed"] = outcome.AllPassed
	}
	if complexityResult != nil {
		fields["complexityVerdict"] = complexityResult.Verdict
	}
	b.logger.Info("match: submission result", fields)
}

func (b loggingBroadcaster) MatchEnded(matchID string, winnerUserID *string, reason string, ratingChanges map[string]models.RatingChange) {
	fields := map[string]interface{}{"matchId": matchID, "reason": reason}
	if winnerUserID != nil {
		fields["winnerUserId"] = *winnerUserID
	}
	b.logger.Info("match: ended", fields)
}

func (b loggingBroadcaster) Rejected(matchID, playerID, reason string) {
	b.logger.Warn("match: message rejected", map[string]interface{}{"matchId": matchID, "playerId": playerID, "reason": reason})
}

func (b loggingBroadcaster) SubmissionStep(matchID, playerID, step string) {
	b.logger.Debug("match: submission step", map[string]interface{}{"matchId": matchID, "playerId": playerID, "step": step})
}

func (b loggingBroadcaster) TestProgress(matchID, playerID string, testCasesSolved, submissions int) {
	b.logger.Debug("match: test progress", map[string]interface{}{"matchId": matchID, "playerId": playerID, "testCasesSolved": testCasesSolved, "submissions": submissions})
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := observability.NewLogger("matchcore")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := coordination.NewStore(&cfg.Redis, logger)
	if err != nil {
		log.Fatalf("failed to connect to coordination store: %v", err)
	}
	defer store.Close()

	metrics := observability.NoopMetrics{}

	breakers := resilience.NewCircuitBreakerManager(logger, metrics, map[string]resilience.CircuitBreakerConfig{
		resilience.BreakerSandbox:    cfg.Sandbox.CircuitBreaker,
		resilience.BreakerComplexity: cfg.Complexity.CircuitBreaker,
	})

	sandboxBreaker := breakers.GetCircuitBreaker(resilience.BreakerSandbox)
	sandboxClient := sandbox.NewClient(sandbox.Config{BaseURL: cfg.Sandbox.BaseURL, APIKey: cfg.Sandbox.APIKey}, sandboxBreaker, logger)
	exec := executor.New(sandboxClient)

	complexityBreaker := breakers.GetCircuitBreaker(resilience.BreakerComplexity)
	complexityClient := complexity.NewClient(complexity.Config{
		BaseURL: cfg.Complexity.BaseURL,
		APIKey:  cfg.Complexity.APIKey,
		Model:   cfg.Complexity.Model,
	}, complexityBreaker, logger)

	problems := docmem.NewInMemoryProblemStore(docmem.DefaultProblems())
	players := docmem.NewInMemoryPlayerStore(1200)
	matchDocs := docmem.NewInMemoryMatchDocumentStore()
	submissions := docmem.NewInMemorySubmissionStore()
	guestViews := docmem.NewInMemoryGuestViewStore()

	broadcaster := loggingBroadcaster{logger: logger}
	sessionRuntime := session.New(store, players, matchDocs, submissions, guestViews, exec, complexityClient, broadcaster, logger.WithPrefix("session"), cfg.Session.ToSession(cfg.Bots))

	creator := matchcreate.New(store, problems, sessionRuntime, logger.WithPrefix("matchcreate"))

	notifier := loggingNotifier{logger: logger}
	controller := matchmaking.New(store, players, creator, notifier, logger.WithPrefix("matchmaking"), cfg.Matchmaking.ToMatchmaking())

	sessionRuntime.Start(ctx)
	controller.Start(ctx)

	logger.Info("matchcore started", map[string]interface{}{
		"redis":       cfg.Redis.Address,
		"sandbox":     cfg.Sandbox.BaseURL,
		"botsEnabled": cfg.Bots.Enabled,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received", nil)

	controller.Stop()
	sessionRuntime.Stop()

	logger.Info("matchcore stopped", nil)
}
