// Package docmem provides in-process, in-memory implementations of the
// pkg/docstore interfaces. The real document store is an external
// collaborator outside this module's scope; docmem exists so the binary in
// cmd/matchcore has something concrete to wire up and run against out of
// the box, the same way the teacher stack falls back to in-memory adapters
// (NewInMemoryRateLimiter, NewInMemoryQuotaManager) when no external backend
// is configured.
package docmem

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/docstore"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
)

// ProblemStore is an in-memory docstore.ProblemStore seeded at construction
// time. It never mutates its seed set.
type ProblemStore struct {
	mu       sync.RWMutex
	problems []models.Problem
}

// NewInMemoryProblemStore builds a problem store from a fixed seed set.
func NewInMemoryProblemStore(seed []models.Problem) *ProblemStore {
	return &ProblemStore{problems: seed}
}

func (s *ProblemStore) RandomVerifiedByDifficulty(ctx context.Context, difficulty models.Difficulty) (*models.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bucket []models.Problem
	for _, p := range s.problems {
		if p.Verified && p.Difficulty == difficulty {
			bucket = append(bucket, p)
		}
	}
	if len(bucket) == 0 {
		return nil, docstore.ErrNotFound
	}
	chosen := bucket[rand.Intn(len(bucket))]
	return &chosen, nil
}

func (s *ProblemStore) RandomVerifiedAny(ctx context.Context) (*models.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bucket []models.Problem
	for _, p := range s.problems {
		if p.Verified {
			bucket = append(bucket, p)
		}
	}
	if len(bucket) == 0 {
		return nil, docstore.ErrNoProblem
	}
	chosen := bucket[rand.Intn(len(bucket))]
	return &chosen, nil
}

func (s *ProblemStore) GetByID(ctx context.Context, problemID string) (*models.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.problems {
		if p.ID == problemID {
			found := p
			return &found, nil
		}
	}
	return nil, docstore.ErrNotFound
}

// PlayerStore is an in-memory docstore.PlayerStore. Ratings and outcome
// counters live only for the lifetime of the process.
type PlayerStore struct {
	mu            sync.Mutex
	defaultRating int
	ratings       map[string]int
	stats         map[string]playerStats
}

type playerStats struct {
	wins, losses, draws, totalMatches int
	timeCodedMs                       int64
}

// NewInMemoryPlayerStore builds a player store with a default starting
// rating for any identifier it has not seen before.
func NewInMemoryPlayerStore(defaultRating int) *PlayerStore {
	return &PlayerStore{
		defaultRating: defaultRating,
		ratings:       map[string]int{},
		stats:         map[string]playerStats{},
	}
}

func (s *PlayerStore) Kind(ctx context.Context, playerID string) (docstore.PlayerKind, error) {
	if models.IsGuestID(playerID) {
		return docstore.KindGuest, nil
	}
	if len(playerID) >= 4 && playerID[:4] == "bot:" {
		return docstore.KindBot, nil
	}
	return docstore.KindHuman, nil
}

func (s *PlayerStore) Rating(ctx context.Context, playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.ratings[playerID]; ok {
		return r, nil
	}
	return s.defaultRating, nil
}

func (s *PlayerStore) ApplyMatchResult(ctx context.Context, playerID, matchID string, outcome docstore.MatchOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.ratings[playerID]
	if !ok {
		current = s.defaultRating
	}
	s.ratings[playerID] = current + outcome.RatingChange
	st := s.stats[playerID]
	st.totalMatches++
	st.timeCodedMs += outcome.MatchDuration
	switch {
	case outcome.Drew:
		st.draws++
	case outcome.Won:
		st.wins++
	default:
		st.losses++
	}
	s.stats[playerID] = st
	return nil
}

func (s *PlayerStore) InvalidateStatsCache(ctx context.Context, playerID string) error {
	return nil
}

// MatchDocumentStore is an in-memory docstore.MatchDocumentStore.
type MatchDocumentStore struct {
	mu   sync.Mutex
	docs map[string]docstore.MatchDocument
}

func NewInMemoryMatchDocumentStore() *MatchDocumentStore {
	return &MatchDocumentStore{docs: map[string]docstore.MatchDocument{}}
}

func (s *MatchDocumentStore) Upsert(ctx context.Context, matchID string, doc docstore.MatchDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[matchID] = doc
	return nil
}

func (s *MatchDocumentStore) AddSubmissionIDs(ctx context.Context, matchID string, submissionIDs ...string) error {
	return nil
}

// SubmissionStore is an in-memory docstore.SubmissionStore, handing out
// sequential ids.
type SubmissionStore struct {
	mu   sync.Mutex
	next int
}

func NewInMemorySubmissionStore() *SubmissionStore {
	return &SubmissionStore{}
}

func (s *SubmissionStore) Insert(ctx context.Context, matchID string, submission models.Submission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s-sub-%d", matchID, s.next), nil
}

// GuestViewStore is an in-memory docstore.GuestViewStore.
type GuestViewStore struct {
	mu    sync.Mutex
	views map[string]interface{}
}

func NewInMemoryGuestViewStore() *GuestViewStore {
	return &GuestViewStore{views: map[string]interface{}{}}
}

func (s *GuestViewStore) WriteGuestView(ctx context.Context, guestID string, snapshot interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[guestID] = snapshot
	return nil
}
