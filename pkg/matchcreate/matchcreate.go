// Package matchcreate implements match creation (design component C8):
// given two validated players, pick a problem by rating, allocate a match
// id, seed the coordination-store blob, open a session, and publish the
// creation event.
package matchcreate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/docstore"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/rating"
)

// ErrPreflightFailed means a participant already holds a reservation or bot
// activity membership; the pair must not be created.
var ErrPreflightFailed = fmt.Errorf("matchcreate: preflight check failed")

// ErrBlobNotPersisted means the write-then-verify check on the new blob
// failed even after a retry.
var ErrBlobNotPersisted = fmt.Errorf("matchcreate: blob failed to persist")

const reservationTTL = time.Hour

// Participant describes one side of the pair being matched.
type Participant struct {
	PlayerID string
	Username string
	Rating   int
	IsBot    bool
}

// SessionOpener opens the runtime session that will own the new match and
// returns the roomId it was assigned. Implemented by the match-session
// runtime package; kept as an interface here to avoid a dependency cycle.
type SessionOpener interface {
	OpenSession(ctx context.Context, matchID, problemID string, problem *models.Problem, player1, player2 Participant) (roomID string, err error)
}

// Request is the input to Create: two validated participants and an
// optional difficulty override.
type Request struct {
	Player1            Participant
	Player2            Participant
	DifficultyOverride models.Difficulty
}

// Result is what Create hands back to the matchmaking controller.
type Result struct {
	MatchID   string
	RoomID    string
	ProblemID string
}

// Service implements C8.
type Service struct {
	store    *coordination.Store
	problems docstore.ProblemStore
	sessions SessionOpener
	logger   observability.Logger
	now      func() time.Time
}

// New builds a match-creation service.
func New(store *coordination.Store, problems docstore.ProblemStore, sessions SessionOpener, logger observability.Logger) *Service {
	return &Service{store: store, problems: problems, sessions: sessions, logger: logger, now: time.Now}
}

// Create runs the full C8 sequence. Preconditions (no reservation, no
// bots:active membership for either participant) are asserted by the
// caller (C9) before Create is invoked; Create re-verifies them here as a
// defense against a race between the caller's check and this call. A
// reservation still in the creating state is the caller's own placeholder
// and passes the check, without a bots:active lookup for that player.
func (s *Service) Create(ctx context.Context, req Request) (*Result, error) {
	if err := s.assertPreflight(ctx, req.Player1.PlayerID); err != nil {
		return nil, err
	}
	if err := s.assertPreflight(ctx, req.Player2.PlayerID); err != nil {
		return nil, err
	}

	matchID := primitive.NewObjectID().Hex()

	difficulty := req.DifficultyOverride
	avgRating := float64(req.Player1.Rating+req.Player2.Rating) / 2
	if difficulty == "" {
		weights := rating.ProblemDifficultyProbabilities(avgRating, rating.DifficultyTargets, rating.GaussianSigma)
		difficulty = rating.SelectDifficultyByProbability(weights, rand.Float64())
	}
	problemElo := rating.DifficultyTargets[difficulty]

	problem, err := s.selectProblem(ctx, difficulty)
	if err != nil {
		return nil, err
	}

	startedAt := s.now()
	clientProblem := models.SanitizeProblem(problem)
	blob := models.NewMatchBlob(matchID, problem.ID, clientProblem, startedAt)
	blob.Players[req.Player1.PlayerID] = models.PlayerRef{Username: req.Player1.Username, Rating: req.Player1.Rating}
	blob.Players[req.Player2.PlayerID] = models.PlayerRef{Username: req.Player2.Username, Rating: req.Player2.Rating}
	blob.Ratings = models.RatingSnapshot{
		Player1:    req.Player1.Rating,
		Player2:    req.Player2.Rating,
		ProblemElo: int(problemElo),
	}

	if err := s.writeBlobWithVerification(ctx, blob); err != nil {
		return nil, err
	}

	roomID, err := s.sessions.OpenSession(ctx, matchID, problem.ID, problem, req.Player1, req.Player2)
	if err != nil {
		return nil, fmt.Errorf("matchcreate: open session: %w", err)
	}

	if _, err := s.store.MutateMatch(ctx, matchID, coordination.TTLForStatus(models.MatchOngoing), func(b *models.MatchBlob) error {
		b.RoomID = roomID
		return nil
	}); err != nil {
		return nil, fmt.Errorf("matchcreate: write roomId: %w", err)
	}

	if err := s.store.ActiveMatchAdd(ctx, matchID); err != nil {
		return nil, fmt.Errorf("matchcreate: add to matches:active: %w", err)
	}
	for _, p := range []Participant{req.Player1, req.Player2} {
		if p.IsBot {
			if err := s.store.BotSetCurrentMatch(ctx, p.PlayerID, matchID); err != nil {
				return nil, fmt.Errorf("matchcreate: set bot current match: %w", err)
			}
		}
	}

	if err := s.store.WriteMatchRatings(ctx, matchID, req.Player1.PlayerID, req.Player2.PlayerID, blob.Ratings); err != nil {
		return nil, fmt.Errorf("matchcreate: write ratings: %w", err)
	}

	if err := s.writeReservations(ctx, req, matchID, roomID, problem.ID); err != nil {
		return nil, err
	}

	if err := s.store.Publish(ctx, coordination.ChannelEventsMatch, map[string]interface{}{
		"type":      "match_created",
		"matchId":   matchID,
		"roomId":    roomID,
		"problemId": problem.ID,
	}); err != nil {
		s.logger.Warn("matchcreate: failed to publish match_created", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	}

	return &Result{MatchID: matchID, RoomID: roomID, ProblemID: problem.ID}, nil
}

func (s *Service) assertPreflight(ctx context.Context, playerID string) error {
	reservation, err := s.store.GetReservation(ctx, playerID)
	if err != nil {
		return fmt.Errorf("matchcreate: check reservation: %w", err)
	}
	if reservation != nil {
		if reservation.Status == models.ReservationCreating {
			return nil
		}
		return ErrPreflightFailed
	}
	active, err := s.store.SetIsMember(ctx, coordination.KeyBotsActive, playerID)
	if err != nil {
		return fmt.Errorf("matchcreate: check bots:active: %w", err)
	}
	if active {
		return ErrPreflightFailed
	}
	return nil
}

func (s *Service) selectProblem(ctx context.Context, difficulty models.Difficulty) (*models.Problem, error) {
	problem, err := s.problems.RandomVerifiedByDifficulty(ctx, difficulty)
	if err == docstore.ErrNotFound {
		problem, err = s.problems.RandomVerifiedAny(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("matchcreate: select problem: %w", err)
	}
	return problem, nil
}

func (s *Service) writeBlobWithVerification(ctx context.Context, blob *models.MatchBlob) error {
	if err := s.store.WriteMatchBlob(ctx, blob); err != nil {
		return fmt.Errorf("matchcreate: write blob: %w", err)
	}
	if _, err := s.store.GetMatchBlob(ctx, blob.MatchID); err == nil {
		return nil
	}
	// Single retry per spec step 5.
	if err := s.store.WriteMatchBlob(ctx, blob); err != nil {
		return fmt.Errorf("matchcreate: retry write blob: %w", err)
	}
	if _, err := s.store.GetMatchBlob(ctx, blob.MatchID); err != nil {
		return ErrBlobNotPersisted
	}
	return nil
}

func (s *Service) writeReservations(ctx context.Context, req Request, matchID, roomID, problemID string) error {
	reservation := models.Reservation{RoomID: roomID, MatchID: matchID, ProblemID: problemID, Status: models.ReservationActive}
	if err := s.store.WriteReservation(ctx, req.Player1.PlayerID, reservation, reservationTTL); err != nil {
		return fmt.Errorf("matchcreate: write reservation for player1: %w", err)
	}
	if err := s.store.WriteReservation(ctx, req.Player2.PlayerID, reservation, reservationTTL); err != nil {
		return fmt.Errorf("matchcreate: write reservation for player2: %w", err)
	}
	return nil
}
