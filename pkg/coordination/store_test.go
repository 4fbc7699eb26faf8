package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStoreFromClient(client, observability.NewLogger("test"))
}

func TestQueueAddIsIdempotentOnMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.QueueAdd(ctx, "alice", 1500))
	require.NoError(t, s.QueueAdd(ctx, "alice", 1500))

	snap, err := s.QueueSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 1, "re-admitting the same player must not duplicate the ZSET entry")
}

func TestQueueRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.QueueAdd(ctx, "bob", 1600))
	member, err := s.QueueIsMember(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, member)

	require.NoError(t, s.QueueRemove(ctx, "bob"))
	member, err = s.QueueIsMember(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestAcquireLockIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok1, err := s.AcquireLock(ctx, KeyLockMatch("alice"), 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := s.AcquireLock(ctx, KeyLockMatch("alice"), 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok2, "a second worker must not acquire an already-held lock")

	require.NoError(t, s.ReleaseLock(ctx, KeyLockMatch("alice")))
	ok3, err := s.AcquireLock(ctx, KeyLockMatch("alice"), 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok3)
}

func TestMutateMatchRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blob := models.NewMatchBlob("m1", "p1", models.ClientProblem{Title: "Two Sum"}, time.Now())
	require.NoError(t, s.WriteMatchBlob(ctx, blob))

	updated, err := s.MutateMatch(ctx, "m1", time.Hour, func(b *models.MatchBlob) error {
		b.LinesWritten["alice"] = 12
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.LinesWritten["alice"])

	reread, err := s.GetMatchBlob(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 12, reread.LinesWritten["alice"])
}

func TestGetMatchBlobNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMatchBlob(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r, err := s.GetReservation(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, r)

	require.NoError(t, s.WriteReservation(ctx, "alice", models.Reservation{
		MatchID: "m1", Status: models.ReservationCreating,
	}, 60*time.Second))

	r, err = s.GetReservation(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, models.ReservationCreating, r.Status)

	require.NoError(t, s.DeleteReservation(ctx, "alice"))
	r, err = s.GetReservation(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestMatchRatingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snapshot := models.RatingSnapshot{Player1: 1500, Player2: 1540, ProblemElo: 1500}
	require.NoError(t, s.WriteMatchRatings(ctx, "m1", "alice", "bob", snapshot))

	got, p1, p2, err := s.GetMatchRatings(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)
	assert.Equal(t, "alice", p1)
	assert.Equal(t, "bob", p2)
}
