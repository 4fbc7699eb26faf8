// Package models holds the data shapes shared across the matchmaking and
// match-session packages: the coordination-store documents described in the
// design's data model section.
package models

import "time"

// GuestIDPrefix marks a player identifier as an ephemeral guest. Guests are
// never persisted beyond the match they played.
const GuestIDPrefix = "guest:"

// IsGuestID reports whether id was minted for a guest session.
func IsGuestID(id string) bool {
	return len(id) >= len(GuestIDPrefix) && id[:len(GuestIDPrefix)] == GuestIDPrefix
}

// MatchStatus is the lifecycle state of a match blob.
type MatchStatus string

const (
	MatchOngoing   MatchStatus = "ongoing"
	MatchFinished  MatchStatus = "finished"
	MatchAbandoned MatchStatus = "abandoned"
)

// Difficulty is a problem's difficulty bucket.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ComparisonMode controls how a test executor compares actual to expected
// output for a problem signature.
type ComparisonMode string

const (
	ComparisonStrict     ComparisonMode = "strict"
	ComparisonUnordered  ComparisonMode = "unordered"
	ComparisonSet        ComparisonMode = "set"
	ComparisonCustom     ComparisonMode = "custom"
	ComparisonDefaultMin ComparisonMode = ComparisonStrict
)

// Parameter describes one argument of a problem's function signature.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Signature is the callable contract a submitted Solution must satisfy.
type Signature struct {
	FunctionName      string         `json:"functionName"`
	Parameters        []Parameter    `json:"parameters"`
	ReturnType        string         `json:"returnType"`
	ComparisonMode    ComparisonMode `json:"comparisonMode,omitempty"`
	CustomComparator  string         `json:"customComparator,omitempty"`
}

// TestCase is one hidden test input/output pair for a problem.
type TestCase struct {
	Input             map[string]any `json:"input"`
	Output            any            `json:"output"`
	SpecialInputData  map[string]any `json:"specialInputData,omitempty"`
}

// Example is a human-readable sample shown to players.
type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// Problem is the read-only document fetched from the persistent document
// store for a single coding problem.
type Problem struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Difficulty     Difficulty     `json:"difficulty"`
	Topics         []string       `json:"topics"`
	Signature      Signature      `json:"signature"`
	Examples       []Example      `json:"examples"`
	Constraints    []string       `json:"constraints"`
	TimeComplexity string         `json:"timeComplexity,omitempty"`
	TestCases      []TestCase     `json:"testCases"`
	StarterCode    map[string]string `json:"starterCode"`
	Verified       bool           `json:"verified"`
}

// ClientProblem is the subset of Problem that is safe to embed in a match
// blob and ship to both players (no test cases, no solutions).
type ClientProblem struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Difficulty     Difficulty        `json:"difficulty"`
	Topics         []string          `json:"topics"`
	Signature      Signature         `json:"signature"`
	StarterCode    map[string]string `json:"starterCode"`
	Examples       []Example         `json:"examples"`
	Constraints    []string          `json:"constraints"`
	TestCasesCount int               `json:"testCasesCount"`
}

// SanitizeProblem strips a Problem down to the fields safe to hand to
// players inside a match blob.
func SanitizeProblem(p *Problem) ClientProblem {
	return ClientProblem{
		Title:          p.Title,
		Description:    p.Description,
		Difficulty:     p.Difficulty,
		Topics:         p.Topics,
		Signature:      p.Signature,
		StarterCode:    p.StarterCode,
		Examples:       p.Examples,
		Constraints:    p.Constraints,
		TestCasesCount: len(p.TestCases),
	}
}

// PlayerRef is the client-visible participant record inside a match blob.
type PlayerRef struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// RatingSnapshot freezes the ratings used to settle a match, taken at
// creation time so later rating changes elsewhere don't skew settlement.
type RatingSnapshot struct {
	Player1     int `json:"player1"`
	Player2     int `json:"player2"`
	ProblemElo  int `json:"problemElo"`
}

// TestCaseResult is one case's outcome from the test executor.
type TestCaseResult struct {
	Index          int    `json:"index"`
	Passed         bool   `json:"passed"`
	ActualOutput   string `json:"actualOutput,omitempty"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
	Error          string `json:"error,omitempty"`
	TimeMs         float64 `json:"timeMs,omitempty"`
	MemoryKb       float64 `json:"memoryKb,omitempty"`
}

// Submission is one append-only entry in a match blob's submission history.
type Submission struct {
	ID                 string           `json:"id,omitempty"`
	UserID             string           `json:"userId"`
	Language           string           `json:"language"`
	Timestamp          time.Time        `json:"timestamp"`
	Passed             bool             `json:"passed"`
	ComplexityFailed   bool             `json:"complexityFailed,omitempty"`
	DerivedComplexity  string           `json:"derivedComplexity,omitempty"`
	TestResults        []TestCaseResult `json:"testResults"`
	AverageTime        float64          `json:"averageTime"`
	AverageMemory      float64          `json:"averageMemory"`
	TestsPassed        int              `json:"testsPassed"`
	TotalTests         int              `json:"totalTests"`
	Code               string           `json:"code"`
	SubmissionType     string           `json:"submissionType,omitempty"` // "" (competitive) or "test"
	IsPlaceholderBot   bool             `json:"isPlaceholderBot,omitempty"`
}

// RatingChange records a single player's rating delta from a match result.
type RatingChange struct {
	OldRating int `json:"oldRating"`
	NewRating int `json:"newRating"`
	Change    int `json:"change"`
}

// BotCompletionPlan records a bot's sampled finish time for a match.
type BotCompletionPlan struct {
	PlannedCompletionMs   int64     `json:"plannedCompletionMs"`
	PlannedCompletionTime time.Time `json:"plannedCompletionTime"`
}

// BotStats tracks a bot's simulated competitive progress.
type BotStats struct {
	Submissions     int `json:"submissions"`
	TestCasesSolved int `json:"testCasesSolved"`
}

// MatchBlob is the full JSON document stored under match:{id}.
type MatchBlob struct {
	MatchID   string      `json:"matchId"`
	ProblemID string      `json:"problemId"`
	RoomID    string      `json:"roomId"`
	StartedAt time.Time   `json:"startedAt"`
	EndedAt   *time.Time  `json:"endedAt,omitempty"`
	Status    MatchStatus `json:"status"`

	Players   map[string]PlayerRef `json:"players"`
	Ratings   RatingSnapshot        `json:"ratings"`

	PlayersCode  map[string]map[string]string `json:"playersCode"`
	LinesWritten map[string]int               `json:"linesWritten"`
	Language     map[string]string            `json:"language,omitempty"`

	Submissions     []Submission `json:"submissions"`
	TestSubmissions []Submission `json:"testSubmissions"`
	SubmissionIDs   []string     `json:"submissionIds,omitempty"`
	TestRunIDs      []string     `json:"testRunIds,omitempty"`

	WinnerUserID   *string                  `json:"winnerUserId,omitempty"`
	WinReason      string                   `json:"winReason,omitempty"`
	RatingChanges  map[string]RatingChange  `json:"ratingChanges,omitempty"`

	BotCompletionTimes map[string]BotCompletionPlan `json:"botCompletionTimes,omitempty"`
	BotStats           map[string]BotStats          `json:"botStats,omitempty"`

	Problem ClientProblem `json:"problem"`
}

// NewMatchBlob seeds a fresh ongoing match blob. Callers fill in Players and
// Ratings before persisting.
func NewMatchBlob(matchID, problemID string, problem ClientProblem, startedAt time.Time) *MatchBlob {
	return &MatchBlob{
		MatchID:      matchID,
		ProblemID:    problemID,
		StartedAt:    startedAt,
		Status:       MatchOngoing,
		Players:      map[string]PlayerRef{},
		PlayersCode:  map[string]map[string]string{},
		LinesWritten: map[string]int{},
		Language:     map[string]string{},
		Problem:      problem,
	}
}

// ReservationStatus is the lifecycle of a per-player reservation ticket.
type ReservationStatus string

const (
	ReservationCreating ReservationStatus = "creating"
	ReservationActive   ReservationStatus = "active"
)

// Reservation is the per-player at-most-one ticket preventing re-queueing
// while a match is live.
type Reservation struct {
	RoomID    string            `json:"roomId"`
	MatchID   string            `json:"matchId"`
	ProblemID string            `json:"problemId"`
	Status    ReservationStatus `json:"status"`
}

// QueueEntry is a player's sorted-set membership plus its admission time.
type QueueEntry struct {
	PlayerID string
	Rating   int
	JoinedAt time.Time
}

// BotState is a bot's single-valued lifecycle marker.
type BotState string

const (
	BotDeployed BotState = "deployed"
	BotQueued   BotState = "queued"
	BotPlaying  BotState = "playing"
)
