package coordination

import "fmt"

// Key names are part of the external contract (see the design's coordination
// store contract) and MUST stay byte-stable across versions.
const (
	KeyQueueElo      = "queue:elo"
	KeyMatchesActive = "matches:active"
	KeyBotsActive    = "bots:active"
	KeyBotsDeployed  = "bots:deployed"
	KeyNeedsBot      = "needs_bot"
	KeyQueuedPlayers = "queued_players"
	KeyHumanPlayers  = "human_players"

	ChannelEventsMatch   = "events:match"
	ChannelBotsCommands  = "bots:commands"
)

// KeyQueueJoinedAt is the TTL sibling of a queue ZSET entry.
func KeyQueueJoinedAt(playerID string) string { return fmt.Sprintf("queue:joined_at:%s", playerID) }

// KeyQueueReservation is a player's at-most-one reservation ticket.
func KeyQueueReservation(playerID string) string {
	return fmt.Sprintf("queue:reservation:%s", playerID)
}

// KeyMatch is the per-match JSON blob.
func KeyMatch(matchID string) string { return fmt.Sprintf("match:%s", matchID) }

// KeyMatchRatings is the ratings snapshot hash written once at creation.
func KeyMatchRatings(matchID string) string { return fmt.Sprintf("match:%s:ratings", matchID) }

// KeyBotCurrentMatch points a bot at the match it is currently playing.
func KeyBotCurrentMatch(botID string) string { return fmt.Sprintf("bot:current_match:%s", botID) }

// KeyBotState is a bot's single-valued lifecycle marker.
func KeyBotState(botID string) string { return fmt.Sprintf("bots:state:%s", botID) }

// KeyLockMatch is the NX lock guarding a player during pairing.
func KeyLockMatch(playerID string) string { return fmt.Sprintf("lock:match:%s", playerID) }

// KeySubmissionCache is the per-player, per-code-hash cache of a submission
// outcome, keyed so resubmitting identical code replays without re-running.
func KeySubmissionCache(matchID, userID, codeHash string) string {
	return fmt.Sprintf("match:%s:%s:submission_cache:%s", matchID, userID, codeHash)
}

// KeyGuestView is the guest-accessible result snapshot written at resolution.
func KeyGuestView(guestID string) string { return fmt.Sprintf("guest:view:%s", guestID) }
