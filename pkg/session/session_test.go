package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/complexity"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/docstore"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/executor"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchcreate"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/sandbox"
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

// fakeSandboxExecutor builds an Executor backed by an httptest sandbox that
// always reports an accepted run with the given stdout.
func fakeSandboxExecutor(t *testing.T, stdout string) *executor.Executor {
	t.Helper()
	encoded := base64.StdEncoding.EncodeToString([]byte(stdout))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/submissions") && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": map[string]interface{}{"id": sandbox.StatusAccepted, "description": "accepted"},
				"stdout": encoded,
			})
		}
	}))
	t.Cleanup(server.Close)

	breaker := resilience.NewCircuitBreaker("session-test-sandbox", resilience.CircuitBreakerConfig{}, observability.NewLogger("test"), observability.NoopMetrics{})
	client := sandbox.NewClient(sandbox.Config{BaseURL: server.URL}, breaker, observability.NewLogger("test"))
	return executor.New(client)
}

func fakeComplexityClient(t *testing.T, verdict string) *complexity.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `{"derived_complexity":"O(n)","verdict":"` + verdict + `"}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)

	breaker := resilience.NewCircuitBreaker("session-test-complexity", resilience.CircuitBreakerConfig{}, observability.NewLogger("test"), observability.NoopMetrics{})
	return complexity.NewClient(complexity.Config{BaseURL: server.URL}, breaker, observability.NewLogger("test"))
}

type fakePlayers struct {
	applied map[string]docstore.MatchOutcome
}

func (f *fakePlayers) Kind(ctx context.Context, playerID string) (docstore.PlayerKind, error) {
	return docstore.KindHuman, nil
}
func (f *fakePlayers) Rating(ctx context.Context, playerID string) (int, error) { return 1500, nil }
func (f *fakePlayers) ApplyMatchResult(ctx context.Context, playerID, matchID string, outcome docstore.MatchOutcome) error {
	if f.applied == nil {
		f.applied = map[string]docstore.MatchOutcome{}
	}
	f.applied[playerID] = outcome
	return nil
}
func (f *fakePlayers) InvalidateStatsCache(ctx context.Context, playerID string) error { return nil }

type fakeMatchDocs struct{}

func (fakeMatchDocs) Upsert(ctx context.Context, matchID string, doc docstore.MatchDocument) error {
	return nil
}
func (fakeMatchDocs) AddSubmissionIDs(ctx context.Context, matchID string, submissionIDs ...string) error {
	return nil
}

type fakeSubmissions struct{}

func (fakeSubmissions) Insert(ctx context.Context, matchID string, submission models.Submission) (string, error) {
	return "sub-1", nil
}

type fakeGuestViews struct{}

func (fakeGuestViews) WriteGuestView(ctx context.Context, guestID string, snapshot interface{}) error {
	return nil
}

type recordingBroadcaster struct {
	ended       []string
	winnerOf    map[string]*string
	submissions int
}

func (b *recordingBroadcaster) CodeUpdated(matchID, playerID, language, code string) {}
func (b *recordingBroadcaster) NewSubmission(matchID string, submission models.Submission) {
	b.submissions++
}
func (b *recordingBroadcaster) SubmissionResult(matchID, playerID string, outcome *executor.Outcome, complexityResult *complexity.Result) {
}
func (b *recordingBroadcaster) MatchEnded(matchID string, winnerUserID *string, reason string, ratingChanges map[string]models.RatingChange) {
	b.ended = append(b.ended, reason)
	if b.winnerOf == nil {
		b.winnerOf = map[string]*string{}
	}
	b.winnerOf[matchID] = winnerUserID
}
func (b *recordingBroadcaster) Rejected(matchID, playerID, reason string) {}
func (b *recordingBroadcaster) SubmissionStep(matchID, playerID, step string)              {}
func (b *recordingBroadcaster) TestProgress(matchID, playerID string, solved, subs int) {}

func sampleProblem() *models.Problem {
	return &models.Problem{
		ID:         "prob-1",
		Title:      "Two Sum",
		Difficulty: models.DifficultyEasy,
		Signature: models.Signature{
			FunctionName:   "twoSum",
			ComparisonMode: models.ComparisonUnordered,
		},
		TestCases: []models.TestCase{
			{Input: map[string]interface{}{"nums": []interface{}{2.0, 7.0}}, Output: []interface{}{0.0, 1.0}},
		},
		Verified: true,
	}
}

func newTestRuntime(t *testing.T, stdout string) (*Runtime, *coordination.Store, *recordingBroadcaster) {
	t.Helper()
	store := newTestStore(t)
	broadcaster := &recordingBroadcaster{}
	exec := fakeSandboxExecutor(t, stdout)
	cfg := DefaultConfig()
	cfg.MaxMatchDuration = time.Hour
	runtime := New(store, &fakePlayers{}, fakeMatchDocs{}, fakeSubmissions{}, fakeGuestViews{}, exec, nil, broadcaster, observability.NewLogger("test"), cfg)
	return runtime, store, broadcaster
}

func openTestSession(t *testing.T, runtime *Runtime, store *coordination.Store) (matchID, roomID string) {
	t.Helper()
	ctx := context.Background()
	problem := sampleProblem()
	blob := models.NewMatchBlob("match-1", problem.ID, models.SanitizeProblem(problem), time.Now())
	blob.Players["alice"] = models.PlayerRef{Username: "alice", Rating: 1500}
	blob.Players["bob"] = models.PlayerRef{Username: "bob", Rating: 1500}
	blob.Ratings = models.RatingSnapshot{Player1: 1500, Player2: 1500, ProblemElo: 1200}
	require.NoError(t, store.WriteMatchBlob(ctx, blob))
	require.NoError(t, store.ActiveMatchAdd(ctx, "match-1"))

	p1 := matchcreate.Participant{PlayerID: "alice", Username: "alice", Rating: 1500}
	p2 := matchcreate.Participant{PlayerID: "bob", Username: "bob", Rating: 1500}
	roomID, err := runtime.OpenSession(ctx, "match-1", problem.ID, problem, p1, p2)
	require.NoError(t, err)
	return "match-1", roomID
}

func TestHandleUpdateCodeBroadcastsAndPersists(t *testing.T) {
	runtime, store, _ := newTestRuntime(t, "")
	matchID, _ := openTestSession(t, runtime, store)
	ctx := context.Background()

	require.NoError(t, runtime.HandleUpdateCode(ctx, matchID, "alice", "python", "x = 1\ny = 2"))

	blob, err := store.GetMatchBlob(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\ny = 2", blob.PlayersCode["alice"]["python"])
	assert.Equal(t, 2, blob.LinesWritten["alice"])
}

func TestHandleUpdateCodeRejectsNonParticipant(t *testing.T) {
	runtime, store, _ := newTestRuntime(t, "")
	matchID, _ := openTestSession(t, runtime, store)

	err := runtime.HandleUpdateCode(context.Background(), matchID, "eve", "python", "x = 1")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestHandleSubmitCodeAcceptedDeclaresWinnerAndSettles(t *testing.T) {
	runtime, store, broadcaster := newTestRuntime(t, "Test 0: [0,1]\n")
	matchID, _ := openTestSession(t, runtime, store)
	ctx := context.Background()

	outcome, err := runtime.HandleSubmitCode(ctx, matchID, "alice", "python", "def twoSum(): pass")
	require.NoError(t, err)
	assert.True(t, outcome.AllPassed)

	require.Len(t, broadcaster.ended, 1)
	assert.Equal(t, "solved", broadcaster.ended[0])
	require.NotNil(t, broadcaster.winnerOf[matchID])
	assert.Equal(t, "alice", *broadcaster.winnerOf[matchID])

	blob, err := store.GetMatchBlob(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchFinished, blob.Status)
	assert.Contains(t, blob.RatingChanges, "alice")
	assert.Contains(t, blob.RatingChanges, "bob")
	assert.Greater(t, blob.RatingChanges["alice"].Change, 0)

	isActive, err := store.ActiveMatchIsMember(ctx, matchID)
	require.NoError(t, err)
	assert.False(t, isActive)

	reservation, err := store.GetReservation(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, reservation)
}

func TestHandleSubmitCodeAfterResolutionReportsUnknownMatch(t *testing.T) {
	runtime, store, _ := newTestRuntime(t, "Test 0: [1,0]\n") // wrong order still unordered-equal but force a second call path
	matchID, _ := openTestSession(t, runtime, store)
	ctx := context.Background()

	_, err := runtime.HandleSubmitCode(ctx, matchID, "alice", "python", "def twoSum(): pass")
	require.NoError(t, err) // first call wins and resolves the match

	// match is now resolved; the session is gone, so a second call reports unknown rather than rate-limited
	_, err = runtime.HandleSubmitCode(ctx, matchID, "alice", "python", "def twoSum(): pass")
	assert.ErrorIs(t, err, ErrUnknownMatch)
}

func TestHandleEndMatchDrawSettlesEvenly(t *testing.T) {
	runtime, store, broadcaster := newTestRuntime(t, "")
	matchID, _ := openTestSession(t, runtime, store)
	ctx := context.Background()

	require.NoError(t, runtime.HandleEndMatch(ctx, matchID, "alice", true))

	require.Len(t, broadcaster.ended, 1)
	assert.Equal(t, "draw", broadcaster.ended[0])

	blob, err := store.GetMatchBlob(ctx, matchID)
	require.NoError(t, err)
	assert.Nil(t, blob.WinnerUserID)
	assert.Equal(t, 0, blob.RatingChanges["alice"].Change)
}

func TestHandleEndMatchForfeitAwardsOpponent(t *testing.T) {
	runtime, store, broadcaster := newTestRuntime(t, "")
	matchID, _ := openTestSession(t, runtime, store)
	ctx := context.Background()

	require.NoError(t, runtime.HandleEndMatch(ctx, matchID, "alice", false))

	assert.Equal(t, "forfeit", broadcaster.ended[0])
	require.NotNil(t, broadcaster.winnerOf[matchID])
	assert.Equal(t, "bob", *broadcaster.winnerOf[matchID])
}

func TestSweepOrphansDisposesUntrackedOngoingMatch(t *testing.T) {
	runtime, store, broadcaster := newTestRuntime(t, "")
	ctx := context.Background()

	problem := sampleProblem()
	blob := models.NewMatchBlob("orphan-1", problem.ID, models.SanitizeProblem(problem), time.Now())
	blob.Players["alice"] = models.PlayerRef{Username: "alice", Rating: 1500}
	blob.Players["bob"] = models.PlayerRef{Username: "bob", Rating: 1500}
	require.NoError(t, store.WriteMatchBlob(ctx, blob))
	require.NoError(t, store.ActiveMatchAdd(ctx, "orphan-1"))

	// never opened via OpenSession, so the runtime has no in-process session for it
	runtime.sweepOrphans(ctx)

	isActive, err := store.ActiveMatchIsMember(ctx, "orphan-1")
	require.NoError(t, err)
	assert.False(t, isActive)
	assert.Contains(t, broadcaster.ended, "disposed")
}
