package matchmaking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/docstore"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchcreate"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
)

func newTestStore(t *testing.T) *coordination.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return coordination.NewStoreFromClient(client, observability.NewLogger("test"))
}

type fakePlayers struct {
	bots map[string]bool
}

func (f *fakePlayers) Kind(ctx context.Context, playerID string) (docstore.PlayerKind, error) {
	if f.bots[playerID] {
		return docstore.KindBot, nil
	}
	return docstore.KindHuman, nil
}

func (f *fakePlayers) Rating(ctx context.Context, playerID string) (int, error) { return 1500, nil }

func (f *fakePlayers) ApplyMatchResult(ctx context.Context, playerID, matchID string, outcome docstore.MatchOutcome) error {
	return nil
}

func (f *fakePlayers) InvalidateStatsCache(ctx context.Context, playerID string) error { return nil }

type fakeProblems struct{}

func (fakeProblems) RandomVerifiedByDifficulty(ctx context.Context, difficulty models.Difficulty) (*models.Problem, error) {
	return &models.Problem{ID: "p1", Difficulty: difficulty, Verified: true}, nil
}
func (fakeProblems) RandomVerifiedAny(ctx context.Context) (*models.Problem, error) {
	return &models.Problem{ID: "p1", Verified: true}, nil
}
func (fakeProblems) GetByID(ctx context.Context, problemID string) (*models.Problem, error) {
	return &models.Problem{ID: problemID}, nil
}

type fakeSessions struct{}

func (fakeSessions) OpenSession(ctx context.Context, matchID, problemID string, problem *models.Problem, p1, p2 matchcreate.Participant) (string, error) {
	return "room-" + matchID, nil
}

type recordingNotifier struct {
	matchFound     []string
	alreadyInMatch []string
	queued         []string
}

func (n *recordingNotifier) MatchFound(playerID, matchID, roomID, problemID string) {
	n.matchFound = append(n.matchFound, playerID)
}
func (n *recordingNotifier) AlreadyInMatch(playerID, matchID, roomID string) {
	n.alreadyInMatch = append(n.alreadyInMatch, playerID)
}
func (n *recordingNotifier) Queued(playerID string, position int64) {
	n.queued = append(n.queued, playerID)
}

func newController(t *testing.T, bots map[string]bool) (*Controller, *coordination.Store, *recordingNotifier) {
	t.Helper()
	store := newTestStore(t)
	players := &fakePlayers{bots: bots}
	creator := matchcreate.New(store, fakeProblems{}, fakeSessions{}, observability.NewLogger("test"))
	notifier := &recordingNotifier{}
	ctrl := New(store, players, creator, notifier, observability.NewLogger("test"), DefaultConfig())
	return ctrl, store, notifier
}

func TestJoinIsIdempotentOnDuplicateAdmission(t *testing.T) {
	ctrl, store, notifier := newController(t, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.Join(ctx, "alice", 1500))
	require.NoError(t, ctrl.Join(ctx, "alice", 1500))

	snap, err := store.QueueSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Len(t, notifier.queued, 2, "both joins reply queued, even the duplicate")
}

func TestLeaveRemovesFromQueue(t *testing.T) {
	ctrl, store, _ := newController(t, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.Join(ctx, "bob", 1500))
	require.NoError(t, ctrl.Leave(ctx, "bob"))

	isMember, err := store.QueueIsMember(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestSweepPairsEligibleHumansWithinTolerance(t *testing.T) {
	ctrl, store, notifier := newController(t, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.Join(ctx, "alice", 1500))
	require.NoError(t, ctrl.Join(ctx, "bob", 1520))

	// force both past MIN_QUEUE_WAIT_MS by rewriting their joined-at markers
	past := time.Now().Add(-5 * time.Second)
	require.NoError(t, store.Client().Set(ctx, "queue:joined_at:alice", past.UnixMilli(), time.Hour).Err())
	require.NoError(t, store.Client().Set(ctx, "queue:joined_at:bob", past.UnixMilli(), time.Hour).Err())

	ctrl.Sweep(ctx)

	assert.Len(t, notifier.matchFound, 2)

	aliceMember, err := store.QueueIsMember(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, aliceMember, "paired players leave the queue")
}

func TestSweepDoesNotPairBeforeMinimumDwell(t *testing.T) {
	ctrl, store, notifier := newController(t, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.Join(ctx, "alice", 1500))
	require.NoError(t, ctrl.Join(ctx, "bob", 1500))

	ctrl.Sweep(ctx)

	assert.Empty(t, notifier.matchFound, "players admitted just now have not cleared MIN_QUEUE_WAIT_MS")

	isMember, err := store.QueueIsMember(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestSweepDoesNotPairOutsideToleranceUntilWaitExpands(t *testing.T) {
	ctrl, store, notifier := newController(t, nil)
	ctx := context.Background()

	require.NoError(t, ctrl.Join(ctx, "alice", 1500))
	require.NoError(t, ctrl.Join(ctx, "bob", 1600)) // diff 100, outside the initial +-50 tolerance

	past := time.Now().Add(-5 * time.Second)
	require.NoError(t, store.Client().Set(ctx, "queue:joined_at:alice", past.UnixMilli(), time.Hour).Err())
	require.NoError(t, store.Client().Set(ctx, "queue:joined_at:bob", past.UnixMilli(), time.Hour).Err())

	ctrl.Sweep(ctx)
	assert.Empty(t, notifier.matchFound, "diff 100 exceeds the 0-10s tolerance of +-50")

	longer := time.Now().Add(-15 * time.Second)
	require.NoError(t, store.Client().Set(ctx, "queue:joined_at:alice", longer.UnixMilli(), time.Hour).Err())
	require.NoError(t, store.Client().Set(ctx, "queue:joined_at:bob", longer.UnixMilli(), time.Hour).Err())

	ctrl.Sweep(ctx)
	assert.Len(t, notifier.matchFound, 2, "diff 100 is within the 10-20s tolerance of +-100")
}

func TestBotOnlyQueueNeedsTwoEligibleBots(t *testing.T) {
	ctrl, store, notifier := newController(t, map[string]bool{"bot-1": true})
	ctx := context.Background()

	require.NoError(t, ctrl.Join(ctx, "bot-1", 1500))
	past := time.Now().Add(-5 * time.Second)
	require.NoError(t, store.Client().Set(ctx, "queue:joined_at:bot-1", past.UnixMilli(), time.Hour).Err())

	ctrl.Sweep(ctx)
	assert.Empty(t, notifier.matchFound, "a single bot alone in the queue must never be matched")
}
