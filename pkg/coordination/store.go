// Package coordination provides typed access to the Redis-backed
// coordination layer shared by the matchmaking controller and the
// match-session runtime: queues, reservations, the per-match blob, bot
// bookkeeping sets, distributed locks, and pub/sub.
//
// All read-modify-writes of the match blob go through Store.MutateMatch,
// the single place the blob is ever written after a session owns it.
package coordination

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
)

// ErrNotFound is returned when a keyed read finds nothing.
var ErrNotFound = fmt.Errorf("coordination: not found")

// Config mirrors the connection knobs the platform tunes in production; see
// streams_client.go in the reference stack for the shape this was modeled
// after.
type Config struct {
	Address      string        `yaml:"address" json:"address" mapstructure:"address"`
	Username     string        `yaml:"username" json:"username" mapstructure:"username"`
	Password     string        `yaml:"password" json:"password" mapstructure:"password"`
	DB           int           `yaml:"db" json:"db" mapstructure:"db"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size" mapstructure:"pool_size"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled" mapstructure:"tls_enabled"`
	TLSConfig    *tls.Config   `yaml:"-" json:"-"`
}

// DefaultConfig returns sane defaults for a single-instance deployment.
func DefaultConfig() *Config {
	return &Config{
		Address:      "localhost:6379",
		MaxRetries:   3,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     20,
	}
}

// Store is the coordination store adapter (design component C1). It wraps
// a redis.UniversalClient so both a real Redis deployment and an in-process
// test client (e.g. miniredis) satisfy the same surface.
type Store struct {
	client redis.UniversalClient
	logger observability.Logger
}

// NewStore connects to Redis per cfg.
func NewStore(cfg *Config, logger observability.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		TLSConfig:    cfg.TLSConfig,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+cfg.ReadTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("coordination: failed to ping redis: %w", err)
	}

	return &Store{client: client, logger: logger}, nil
}

// NewStoreFromClient wraps an already-constructed client, used in tests
// against miniredis and by callers that manage their own connection pool.
func NewStoreFromClient(client redis.UniversalClient, logger observability.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.client.Close() }

// Client exposes the raw client for operations not wrapped below (stream
// diagnostics, scripting, etc).
func (s *Store) Client() redis.UniversalClient { return s.client }

// ---- Queue (sorted set) ----

// QueueAdd admits a player into the rating-ordered queue and stamps its
// joined-at marker with a 1h TTL. ZADD is idempotent on member identity, so
// re-joining with a new rating simply updates the score without a second
// membership (I1, S4).
func (s *Store) QueueAdd(ctx context.Context, playerID string, rating float64) error {
	if err := s.client.ZAdd(ctx, KeyQueueElo, redis.Z{Score: rating, Member: playerID}).Err(); err != nil {
		return fmt.Errorf("coordination: queue add: %w", err)
	}
	return s.client.Set(ctx, KeyQueueJoinedAt(playerID), time.Now().UnixMilli(), time.Hour).Err()
}

// QueueRestore re-admits a player into the queue preserving a joined-at
// timestamp captured before eviction, so a rolled-back reservation doesn't
// reset the player's accrued dwell time (and with it, its tolerance
// widening).
func (s *Store) QueueRestore(ctx context.Context, playerID string, rating float64, joinedAt time.Time) error {
	if err := s.client.ZAdd(ctx, KeyQueueElo, redis.Z{Score: rating, Member: playerID}).Err(); err != nil {
		return fmt.Errorf("coordination: queue restore: %w", err)
	}
	return s.client.Set(ctx, KeyQueueJoinedAt(playerID), joinedAt.UnixMilli(), time.Hour).Err()
}

// QueueRemove evicts a player from the queue and clears its joined-at marker.
func (s *Store) QueueRemove(ctx context.Context, playerID string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, KeyQueueElo, playerID)
	pipe.Del(ctx, KeyQueueJoinedAt(playerID))
	_, err := pipe.Exec(ctx)
	return err
}

// QueueIsMember reports whether playerID currently holds a queue entry.
func (s *Store) QueueIsMember(ctx context.Context, playerID string) (bool, error) {
	_, err := s.client.ZScore(ctx, KeyQueueElo, playerID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// QueueJoinedAt returns when playerID was admitted, or the zero time if
// there is no marker (expired or never joined).
func (s *Store) QueueJoinedAt(ctx context.Context, playerID string) (time.Time, error) {
	ms, err := s.client.Get(ctx, KeyQueueJoinedAt(playerID)).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// QueueSnapshot returns every queued player ordered by ascending rating,
// used by the pairing pass to scan eligible pairs.
func (s *Store) QueueSnapshot(ctx context.Context) ([]models.QueueEntry, error) {
	members, err := s.client.ZRangeWithScores(ctx, KeyQueueElo, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.QueueEntry, 0, len(members))
	for _, m := range members {
		id, _ := m.Member.(string)
		joinedAt, err := s.QueueJoinedAt(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, models.QueueEntry{PlayerID: id, Rating: int(m.Score), JoinedAt: joinedAt})
	}
	return out, nil
}

// QueuePosition returns the 0-indexed rank of playerID by ascending rating
// within the queue, or -1 if absent. Used only for the advisory `queued {position}`
// reply; it is not a matchmaking input.
func (s *Store) QueuePosition(ctx context.Context, playerID string) (int64, error) {
	rank, err := s.client.ZRank(ctx, KeyQueueElo, playerID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank, err
}

// ---- Tracking sets (human_players / queued_players / needs_bot / bots:*) ----

func (s *Store) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	return s.client.SAdd(ctx, key, vals...).Err()
}

func (s *Store) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	return s.client.SRem(ctx, key, vals...).Err()
}

func (s *Store) SetIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

// ---- Reservations ----

// WriteReservation upserts a player's reservation ticket with the given TTL.
func (s *Store) WriteReservation(ctx context.Context, playerID string, r models.Reservation, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, KeyQueueReservation(playerID), data, ttl).Err()
}

// GetReservation returns a player's reservation, or (nil, nil) if none.
func (s *Store) GetReservation(ctx context.Context, playerID string) (*models.Reservation, error) {
	data, err := s.client.Get(ctx, KeyQueueReservation(playerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r models.Reservation
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReservation clears a player's reservation ticket.
func (s *Store) DeleteReservation(ctx context.Context, playerID string) error {
	return s.client.Del(ctx, KeyQueueReservation(playerID)).Err()
}

// ---- NX locks ----

// AcquireLock attempts to take the named lock with the given TTL, returning
// true on success. Lock keys are deleted individually on release since the
// key space may be sharded (see the design notes on deterministic lock
// ordering).
func (s *Store) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, name, "1", ttl).Result()
}

// ReleaseLock deletes a previously acquired lock.
func (s *Store) ReleaseLock(ctx context.Context, name string) error {
	return s.client.Del(ctx, name).Err()
}

// ---- Active matches ----

func (s *Store) ActiveMatchAdd(ctx context.Context, matchID string) error {
	return s.client.SAdd(ctx, KeyMatchesActive, matchID).Err()
}

func (s *Store) ActiveMatchRemove(ctx context.Context, matchID string) error {
	return s.client.SRem(ctx, KeyMatchesActive, matchID).Err()
}

func (s *Store) ActiveMatchIsMember(ctx context.Context, matchID string) (bool, error) {
	return s.client.SIsMember(ctx, KeyMatchesActive, matchID).Result()
}

func (s *Store) ActiveMatches(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, KeyMatchesActive).Result()
}

// ---- Match blob ----

// blobTTLInitial and blobTTLCompleted are the two lifetimes a match blob
// carries: short while the match is live, extended once it's settled so
// clients can still fetch the result after the session tears down.
const (
	blobTTLInitial   = 1 * time.Hour
	blobTTLCompleted = 24 * time.Hour
)

// WriteMatchBlob persists a brand-new blob (used only by match creation,
// before a session exists to own it).
func (s *Store) WriteMatchBlob(ctx context.Context, blob *models.MatchBlob) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, KeyMatch(blob.MatchID), data, blobTTLInitial).Err()
}

// GetMatchBlob reads a match blob without mutating it.
func (s *Store) GetMatchBlob(ctx context.Context, matchID string) (*models.MatchBlob, error) {
	data, err := s.client.Get(ctx, KeyMatch(matchID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var blob models.MatchBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, err
	}
	return &blob, nil
}

// MutateMatch is the only place the match blob is ever written once a
// session owns it: read, apply mutate, write back with ttl in a single
// optimistic transaction (WATCH/MULTI), attempted up to three times when a
// concurrent writer collides.
func (s *Store) MutateMatch(ctx context.Context, matchID string, ttl time.Duration, mutate func(*models.MatchBlob) error) (*models.MatchBlob, error) {
	key := KeyMatch(matchID)
	var result *models.MatchBlob

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		var blob models.MatchBlob
		if err != redis.Nil {
			if err := json.Unmarshal(data, &blob); err != nil {
				return err
			}
		} else {
			blob = models.MatchBlob{MatchID: matchID}
		}

		if err := mutate(&blob); err != nil {
			return err
		}

		encoded, err := json.Marshal(&blob)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = &blob
		return nil
	}

	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if err != redis.TxFailedErr {
			return nil, err
		}
	}
	return nil, fmt.Errorf("coordination: mutate match %s: %w", matchID, err)
}

// TTLForStatus picks the blob TTL for a given lifecycle status.
func TTLForStatus(status models.MatchStatus) time.Duration {
	if status == models.MatchOngoing {
		return blobTTLInitial
	}
	return blobTTLCompleted
}

// ---- Ratings hash ----

// WriteMatchRatings writes the once-only ratings snapshot with a 1h TTL.
func (s *Store) WriteMatchRatings(ctx context.Context, matchID string, player1ID, player2ID string, snapshot models.RatingSnapshot) error {
	key := KeyMatchRatings(matchID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"player1":    snapshot.Player1,
		"player2":    snapshot.Player2,
		"problemElo": snapshot.ProblemElo,
		"userId1":    player1ID,
		"userId2":    player2ID,
	})
	pipe.Expire(ctx, key, time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// GetMatchRatings reads back the ratings snapshot written at creation.
func (s *Store) GetMatchRatings(ctx context.Context, matchID string) (snapshot models.RatingSnapshot, player1ID, player2ID string, err error) {
	vals, err := s.client.HGetAll(ctx, KeyMatchRatings(matchID)).Result()
	if err != nil {
		return
	}
	if len(vals) == 0 {
		err = ErrNotFound
		return
	}
	fmt.Sscanf(vals["player1"], "%d", &snapshot.Player1)
	fmt.Sscanf(vals["problemElo"], "%d", &snapshot.ProblemElo)
	fmt.Sscanf(vals["player2"], "%d", &snapshot.Player2)
	player1ID = vals["userId1"]
	player2ID = vals["userId2"]
	return
}

// ---- Bot bookkeeping ----

func (s *Store) BotSetCurrentMatch(ctx context.Context, botID, matchID string) error {
	return s.client.Set(ctx, KeyBotCurrentMatch(botID), matchID, 0).Err()
}

func (s *Store) BotCurrentMatch(ctx context.Context, botID string) (string, error) {
	v, err := s.client.Get(ctx, KeyBotCurrentMatch(botID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (s *Store) BotClearCurrentMatch(ctx context.Context, botID string) error {
	return s.client.Del(ctx, KeyBotCurrentMatch(botID)).Err()
}

func (s *Store) BotSetState(ctx context.Context, botID string, state models.BotState) error {
	return s.client.Set(ctx, KeyBotState(botID), string(state), 0).Err()
}

func (s *Store) BotClearState(ctx context.Context, botID string) error {
	return s.client.Del(ctx, KeyBotState(botID)).Err()
}

// ---- Pub/Sub ----

// Publish emits payload (JSON-encoded by the caller's choice) on channel.
func (s *Store) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe returns a subscription whose Channel() yields raw messages.
func (s *Store) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return s.client.Subscribe(ctx, channel)
}

// ---- Submission cache ----

// CacheSubmissionOutcome stores a submission outcome keyed by code hash so
// an identical resubmit can replay without re-running the test executor.
func (s *Store) CacheSubmissionOutcome(ctx context.Context, matchID, userID, codeHash string, outcome *models.Submission, ttl time.Duration) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, KeySubmissionCache(matchID, userID, codeHash), data, ttl).Err()
}

// GetCachedSubmissionOutcome returns a previously cached outcome, or
// (nil, nil) on a cache miss.
func (s *Store) GetCachedSubmissionOutcome(ctx context.Context, matchID, userID, codeHash string) (*models.Submission, error) {
	data, err := s.client.Get(ctx, KeySubmissionCache(matchID, userID, codeHash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var outcome models.Submission
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ---- Guest view snapshot ----

// WriteGuestView stores a guest-visible result snapshot with a 3h TTL.
func (s *Store) WriteGuestView(ctx context.Context, guestID string, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, KeyGuestView(guestID), data, 3*time.Hour).Err()
}
