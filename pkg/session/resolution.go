package session

import (
	"context"
	"fmt"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/docstore"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/rating"
)

// resolve settles a match exactly once: it marks the session no longer
// active (so a racing submit_code backs off), applies the winner/draw/
// timeout/abandoned status and rating deltas to the blob, persists the
// outcome against each human participant, snapshots a guest view where
// applicable, runs the cleanup pipeline, and finally tears down the
// in-process session.
func (r *Runtime) resolve(ctx context.Context, matchID string, winnerUserID *string, reason string) error {
	sess, ok := r.get(matchID)
	if !ok {
		return ErrUnknownMatch
	}

	sess.mu.Lock()
	if sess.state != StateActive && sess.state != StateInitializing {
		sess.mu.Unlock()
		return nil // already resolved by a concurrent caller
	}
	sess.state = resolvedState(reason)
	sess.mu.Unlock()

	r.stopTimers(sess)

	endedAt := r.now()
	var ratingChanges map[string]models.RatingChange
	var matchDurationMs int64

	blob, err := r.store.MutateMatch(ctx, matchID, coordination.TTLForStatus(blobStatusFor(reason)), func(b *models.MatchBlob) error {
		b.EndedAt = &endedAt
		b.Status = blobStatusFor(reason)
		b.WinReason = reason
		b.WinnerUserID = winnerUserID

		matchDurationMs = endedAt.Sub(b.StartedAt).Milliseconds()

		outcome := matchOutcome(reason, sess.player1.PlayerID, sess.player2.PlayerID, winnerUserID)
		delta1, delta2 := rating.SettleMatch(float64(sess.player1.Rating), float64(sess.player2.Rating), float64(b.Ratings.ProblemElo), outcome)

		ratingChanges = map[string]models.RatingChange{
			sess.player1.PlayerID: {OldRating: sess.player1.Rating, NewRating: sess.player1.Rating + delta1, Change: delta1},
			sess.player2.PlayerID: {OldRating: sess.player2.Rating, NewRating: sess.player2.Rating + delta2, Change: delta2},
		}
		b.RatingChanges = ratingChanges
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: resolve mutate blob: %w", err)
	}

	r.persistOutcomes(ctx, sess, blob, ratingChanges, matchDurationMs)
	r.cleanup(ctx, sess, blob)

	r.broadcaster.MatchEnded(matchID, winnerUserID, reason, ratingChanges)
	r.forget(matchID)
	return nil
}

func resolvedState(reason string) State {
	switch reason {
	case "timeout":
		return StateTimeout
	case "disposed":
		return StateAbandoned
	default:
		return StateCompleted
	}
}

func blobStatusFor(reason string) models.MatchStatus {
	if reason == "disposed" {
		return models.MatchAbandoned
	}
	return models.MatchFinished
}

func matchOutcome(reason, player1ID, player2ID string, winnerUserID *string) rating.Outcome {
	if reason == "draw" || winnerUserID == nil {
		return rating.Draw()
	}
	return rating.Decisive(*winnerUserID == player1ID)
}

// persistOutcomes writes the settled result to the external document store
// for each human participant, and snapshots a guest view for each guest.
// Bots never touch the document store.
func (r *Runtime) persistOutcomes(ctx context.Context, sess *session, blob *models.MatchBlob, ratingChanges map[string]models.RatingChange, matchDurationMs int64) {
	for _, p := range []struct {
		id     string
		isBot  bool
	}{{sess.player1.PlayerID, sess.player1.IsBot}, {sess.player2.PlayerID, sess.player2.IsBot}} {
		if p.isBot {
			continue
		}
		if models.IsGuestID(p.id) {
			if err := r.guestViews.WriteGuestView(ctx, p.id, blob); err != nil {
				r.logger.Warn("session: failed to write guest view", map[string]interface{}{"matchId": sess.matchID, "error": err.Error()})
			}
			continue
		}

		change := ratingChanges[p.id]
		outcome := docstore.MatchOutcome{
			Won:           blob.WinnerUserID != nil && *blob.WinnerUserID == p.id,
			Drew:          blob.WinReason == "draw",
			RatingChange:  change.Change,
			MatchDuration: matchDurationMs,
		}
		if err := r.players.ApplyMatchResult(ctx, p.id, sess.matchID, outcome); err != nil {
			r.logger.Error("session: failed to apply match result", map[string]interface{}{"matchId": sess.matchID, "playerId": p.id, "error": err.Error()})
			continue
		}
		if err := r.players.InvalidateStatsCache(ctx, p.id); err != nil {
			r.logger.Warn("session: failed to invalidate stats cache", map[string]interface{}{"matchId": sess.matchID, "playerId": p.id, "error": err.Error()})
		}
	}

	winner := ""
	if blob.WinnerUserID != nil {
		winner = *blob.WinnerUserID
	}
	if err := r.matchDocs.Upsert(ctx, sess.matchID, docstore.MatchDocument{
		MatchID:      sess.matchID,
		ProblemID:    sess.problemID,
		Player1ID:    sess.player1.PlayerID,
		Player2ID:    sess.player2.PlayerID,
		WinnerUserID: winner,
		Status:       blob.Status,
	}); err != nil {
		r.logger.Warn("session: failed to upsert match document", map[string]interface{}{"matchId": sess.matchID, "error": err.Error()})
	}
}

// cleanup runs the atomic-in-spirit teardown pipeline: release both
// reservations, clear bot bookkeeping, publish the bot-complete and
// match-end events, and drop the match from matches:active. Each step is
// best-effort and logged; a failure here never blocks settlement, since the
// blob itself is already the source of truth for the finished match.
func (r *Runtime) cleanup(ctx context.Context, sess *session, blob *models.MatchBlob) {
	for _, id := range []string{sess.player1.PlayerID, sess.player2.PlayerID} {
		if err := r.store.DeleteReservation(ctx, id); err != nil {
			r.logger.Warn("session: failed to delete reservation", map[string]interface{}{"matchId": sess.matchID, "playerId": id, "error": err.Error()})
		}
	}

	for _, p := range []struct {
		id    string
		isBot bool
	}{{sess.player1.PlayerID, sess.player1.IsBot}, {sess.player2.PlayerID, sess.player2.IsBot}} {
		if !p.isBot {
			continue
		}
		if err := r.store.SetRemove(ctx, coordination.KeyBotsActive, p.id); err != nil {
			r.logger.Warn("session: failed to clear bots:active", map[string]interface{}{"matchId": sess.matchID, "botId": p.id, "error": err.Error()})
		}
		if err := r.store.BotClearCurrentMatch(ctx, p.id); err != nil {
			r.logger.Warn("session: failed to clear bot current match", map[string]interface{}{"matchId": sess.matchID, "botId": p.id, "error": err.Error()})
		}
		if err := r.store.BotClearState(ctx, p.id); err != nil {
			r.logger.Warn("session: failed to clear bot state", map[string]interface{}{"matchId": sess.matchID, "botId": p.id, "error": err.Error()})
		}
		if err := r.store.Publish(ctx, coordination.ChannelBotsCommands, map[string]interface{}{
			"type":  "botMatchComplete",
			"botId": p.id,
		}); err != nil {
			r.logger.Warn("session: failed to publish botMatchComplete", map[string]interface{}{"matchId": sess.matchID, "error": err.Error()})
		}
	}

	if err := r.store.Publish(ctx, coordination.ChannelEventsMatch, map[string]interface{}{
		"type":    "match_end",
		"matchId": sess.matchID,
		"status":  string(blob.Status),
		"reason":  blob.WinReason,
	}); err != nil {
		r.logger.Warn("session: failed to publish match_end", map[string]interface{}{"matchId": sess.matchID, "error": err.Error()})
	}

	if err := r.store.ActiveMatchRemove(ctx, sess.matchID); err != nil {
		r.logger.Warn("session: failed to remove from matches:active", map[string]interface{}{"matchId": sess.matchID, "error": err.Error()})
	}
}
