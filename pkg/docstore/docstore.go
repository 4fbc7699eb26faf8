// Package docstore defines the interfaces the core expects from the
// persistent document store (users, bots, problems, matches, submissions).
// The document store itself — whatever backs it in a given deployment — is
// an external collaborator; this package only fixes the contract the
// matchmaking and match-session packages are written against.
package docstore

import (
	"context"
	"errors"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
)

// ErrNoProblem is returned when the store has no verified problem at all,
// in any difficulty bucket.
var ErrNoProblem = errors.New("docstore: no verified problem available")

// ErrNotFound is returned by single-entity lookups that find nothing.
var ErrNotFound = errors.New("docstore: not found")

// ProblemStore resolves problems by difficulty for match creation.
type ProblemStore interface {
	// RandomVerifiedByDifficulty returns a random verified problem from the
	// given bucket, or ErrNotFound if that bucket is empty.
	RandomVerifiedByDifficulty(ctx context.Context, difficulty models.Difficulty) (*models.Problem, error)
	// RandomVerifiedAny returns a random verified problem from any
	// difficulty, or ErrNoProblem if the store holds none at all.
	RandomVerifiedAny(ctx context.Context) (*models.Problem, error)
	// GetByID fetches a single problem including its test cases.
	GetByID(ctx context.Context, problemID string) (*models.Problem, error)
}

// PlayerKind distinguishes how a player identifier should be treated.
type PlayerKind int

const (
	KindHuman PlayerKind = iota
	KindBot
	KindGuest
)

// PlayerStore resolves identity and records match outcomes against users.
type PlayerStore interface {
	// Kind classifies an identifier as human, bot, or guest. Guests are
	// recognized by prefix alone and never reach the store; bots are
	// recognized by a lookup against the bot collection.
	Kind(ctx context.Context, playerID string) (PlayerKind, error)
	// Rating returns a player's current rating.
	Rating(ctx context.Context, playerID string) (int, error)
	// ApplyMatchResult records the outcome of one match for one player:
	// increments wins/losses/draws and totalMatches, applies the rating
	// delta, adds matchDuration to timeCoded, and links matchID to the
	// player's match history.
	ApplyMatchResult(ctx context.Context, playerID, matchID string, outcome MatchOutcome) error
	// InvalidateStatsCache drops any cached stats/activity view for a player.
	InvalidateStatsCache(ctx context.Context, playerID string) error
}

// MatchOutcome is one player's settlement record from a finished match.
type MatchOutcome struct {
	Won            bool
	Drew           bool
	RatingChange   int
	MatchDuration  int64 // milliseconds
}

// MatchDocumentStore upserts the persisted match document (distinct from
// the live Redis blob) and links submission ids to it.
type MatchDocumentStore interface {
	// Upsert writes or updates the match document for matchID.
	Upsert(ctx context.Context, matchID string, doc MatchDocument) error
	// AddSubmissionIDs appends to the match document's submissionIds set.
	AddSubmissionIDs(ctx context.Context, matchID string, submissionIDs ...string) error
}

// MatchDocument is the persisted (non-Redis) record of a match.
type MatchDocument struct {
	MatchID      string
	ProblemID    string
	Player1ID    string
	Player2ID    string
	WinnerUserID string
	Status       models.MatchStatus
}

// SubmissionStore inserts immutable submission documents.
type SubmissionStore interface {
	// Insert persists a submission document and returns its assigned id.
	Insert(ctx context.Context, matchID string, submission models.Submission) (string, error)
}

// GuestViewStore captures the guest-accessible result snapshot; backed by
// the coordination store in practice but named here because it conceptually
// belongs to the resolution pipeline's persistence step.
type GuestViewStore interface {
	WriteGuestView(ctx context.Context, guestID string, snapshot interface{}) error
}
