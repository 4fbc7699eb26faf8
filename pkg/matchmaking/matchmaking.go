// Package matchmaking implements the matchmaking controller (design
// component C9): queue admission, eligibility filtering with time-expanding
// ELO tolerance, human-priority pairing, atomic two-player reservation
// under a deterministic lock order, and bot-fill fallback.
package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/docstore"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchcreate"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/observability"
)

// Config holds the tunables enumerated in the external configuration
// surface; every field has a spec-mandated default applied by New.
type Config struct {
	MinQueueWaitMs      int64
	EloThresholdInitial int
	EloThresholdStep    int
	EloThresholdMax     int
	BotMatchDelayMs     int64
	SweepInterval        time.Duration
	NeedsBotDelay        time.Duration
	LockTTL              time.Duration
	PlaceholderTTL       time.Duration
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		MinQueueWaitMs:      3000,
		EloThresholdInitial: 50,
		EloThresholdStep:    50,
		EloThresholdMax:     250,
		BotMatchDelayMs:     45000,
		SweepInterval:       5 * time.Second,
		NeedsBotDelay:       7 * time.Second,
		LockTTL:             10 * time.Second,
		PlaceholderTTL:      60 * time.Second,
	}
}

// toleranceSteps are the (wait-threshold, tolerance) breakpoints described
// in §4.C9: 0-10s ±50, 10-20s ±100, 20-30s ±150, 30-45s ±200, >=45s ±250.
func (c Config) toleranceFor(wait time.Duration) int {
	switch {
	case wait < 10*time.Second:
		return c.EloThresholdInitial
	case wait < 20*time.Second:
		return c.EloThresholdInitial + c.EloThresholdStep
	case wait < 30*time.Second:
		return c.EloThresholdInitial + 2*c.EloThresholdStep
	case wait < 45*time.Second:
		return c.EloThresholdInitial + 3*c.EloThresholdStep
	default:
		return c.EloThresholdMax
	}
}

// Notifier delivers outbound queue protocol frames to a player's live
// connection, if one exists. Implemented by the transport layer.
type Notifier interface {
	MatchFound(playerID, matchID, roomID, problemID string)
	AlreadyInMatch(playerID, matchID, roomID string)
	Queued(playerID string, position int64)
}

// Controller runs the matchmaking pipeline.
type Controller struct {
	store    *coordination.Store
	players  docstore.PlayerStore
	creator  *matchcreate.Service
	notifier Notifier
	logger   observability.Logger
	cfg      Config
	now      func() time.Time

	mu         sync.Mutex
	processing map[string]bool
	needsBot   map[string]*time.Timer

	tickMu  sync.Mutex // serializes pairing ticks within this process (I: one tick at a time per process)
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New builds a matchmaking controller.
func New(store *coordination.Store, players docstore.PlayerStore, creator *matchcreate.Service, notifier Notifier, logger observability.Logger, cfg Config) *Controller {
	return &Controller{
		store:      store,
		players:    players,
		creator:    creator,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		processing: make(map[string]bool),
		needsBot:   make(map[string]*time.Timer),
	}
}

// Start begins the periodic sweep loop.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.sweepLoop(ctx)
}

// Stop halts the sweep loop and cancels pending needs_bot timers.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	for id, timer := range c.needsBot {
		timer.Stop()
		delete(c.needsBot, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) sweepLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Join admits a player into the queue, per the admission rules of §4.C9.
func (c *Controller) Join(ctx context.Context, playerID string, rating int) error {
	kind, err := c.players.Kind(ctx, playerID)
	if err != nil {
		return fmt.Errorf("matchmaking: resolve kind: %w", err)
	}
	isHuman := kind != docstore.KindBot

	reservation, err := c.store.GetReservation(ctx, playerID)
	if err != nil {
		return fmt.Errorf("matchmaking: check reservation: %w", err)
	}
	if reservation != nil {
		if isHuman {
			c.notifier.AlreadyInMatch(playerID, reservation.MatchID, reservation.RoomID)
			return nil
		}
		return fmt.Errorf("matchmaking: bot %s rejected, already reserved", playerID)
	}

	if c.isDuplicateAdmission(ctx, playerID) {
		position, _ := c.store.QueuePosition(ctx, playerID)
		c.notifier.Queued(playerID, position)
		return nil
	}

	if err := c.store.QueueAdd(ctx, playerID, float64(rating)); err != nil {
		return fmt.Errorf("matchmaking: queue add: %w", err)
	}

	if isHuman {
		if err := c.store.SetAdd(ctx, coordination.KeyHumanPlayers, playerID); err != nil {
			return fmt.Errorf("matchmaking: track human: %w", err)
		}
		if err := c.store.SetAdd(ctx, coordination.KeyQueuedPlayers, playerID); err != nil {
			return fmt.Errorf("matchmaking: track queued: %w", err)
		}
		if err := c.store.Publish(ctx, coordination.ChannelBotsCommands, map[string]string{"type": "playerQueued", "playerId": playerID}); err != nil {
			c.logger.Warn("matchmaking: publish playerQueued failed", map[string]interface{}{"error": err.Error()})
		}
		c.scheduleNeedsBot(playerID)
	}

	position, _ := c.store.QueuePosition(ctx, playerID)
	c.notifier.Queued(playerID, position)
	return nil
}

func (c *Controller) isDuplicateAdmission(ctx context.Context, playerID string) bool {
	c.mu.Lock()
	processing := c.processing[playerID]
	c.mu.Unlock()
	if processing {
		return true
	}

	isMember, _ := c.store.QueueIsMember(ctx, playerID)
	if isMember {
		return true
	}
	isBotActive, _ := c.store.SetIsMember(ctx, coordination.KeyBotsActive, playerID)
	return isBotActive
}

func (c *Controller) scheduleNeedsBot(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.needsBot[playerID]; exists {
		return
	}
	timer := time.AfterFunc(c.cfg.NeedsBotDelay, func() {
		ctx := context.Background()
		isMember, _ := c.store.QueueIsMember(ctx, playerID)
		if isMember {
			_ = c.store.SetAdd(ctx, coordination.KeyNeedsBot, playerID)
		}
		c.mu.Lock()
		delete(c.needsBot, playerID)
		c.mu.Unlock()
	})
	c.needsBot[playerID] = timer
}

// Leave removes a player from the queue voluntarily.
func (c *Controller) Leave(ctx context.Context, playerID string) error {
	if err := c.store.QueueRemove(ctx, playerID); err != nil {
		return fmt.Errorf("matchmaking: queue remove: %w", err)
	}
	if err := c.store.SetRemove(ctx, coordination.KeyHumanPlayers, playerID); err != nil {
		return err
	}
	if err := c.store.SetRemove(ctx, coordination.KeyQueuedPlayers, playerID); err != nil {
		return err
	}
	if err := c.store.SetRemove(ctx, coordination.KeyNeedsBot, playerID); err != nil {
		return err
	}

	c.mu.Lock()
	if timer, ok := c.needsBot[playerID]; ok {
		timer.Stop()
		delete(c.needsBot, playerID)
	}
	c.mu.Unlock()

	isHuman, _ := c.players.Kind(ctx, playerID)
	if isHuman != docstore.KindBot {
		if err := c.store.Publish(ctx, coordination.ChannelBotsCommands, map[string]string{"type": "playerDequeued", "playerId": playerID}); err != nil {
			c.logger.Warn("matchmaking: publish playerDequeued failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Sweep runs one pairing pass and advances needs_bot advisories for humans
// waiting past the threshold. It is serialized within this process; a
// concurrent call observes the lock and returns immediately.
func (c *Controller) Sweep(ctx context.Context) {
	if !c.tickMu.TryLock() {
		return
	}
	defer c.tickMu.Unlock()

	entries, err := c.store.QueueSnapshot(ctx)
	if err != nil {
		c.logger.Warn("matchmaking: sweep snapshot failed", map[string]interface{}{"error": err.Error()})
		return
	}

	eligible := c.eligiblePlayers(ctx, entries)
	for {
		pair := c.selectPair(ctx, eligible)
		if pair == nil {
			break
		}
		c.reserveAndCreate(ctx, pair.a, pair.b)
		eligible = removeBoth(eligible, pair.a.PlayerID, pair.b.PlayerID)
	}

	for _, p := range eligible {
		if !p.isBot && p.dwell > c.cfg.NeedsBotDelay {
			_ = c.store.SetAdd(ctx, coordination.KeyNeedsBot, p.PlayerID)
		}
	}
}

type eligiblePlayer struct {
	models.QueueEntry
	isBot   bool
	dwell   time.Duration
}

type pairCandidate struct {
	a, b eligiblePlayer
	diff int
}

func (c *Controller) eligiblePlayers(ctx context.Context, entries []models.QueueEntry) []eligiblePlayer {
	now := c.now()
	out := make([]eligiblePlayer, 0, len(entries))
	for _, e := range entries {
		dwell := now.Sub(e.JoinedAt)
		if dwell < time.Duration(c.cfg.MinQueueWaitMs)*time.Millisecond {
			continue
		}
		kind, err := c.players.Kind(ctx, e.PlayerID)
		if err != nil {
			continue
		}
		isBot := kind == docstore.KindBot
		if isBot {
			active, _ := c.store.SetIsMember(ctx, coordination.KeyBotsActive, e.PlayerID)
			if active {
				continue
			}
			current, _ := c.store.BotCurrentMatch(ctx, e.PlayerID)
			if current != "" {
				continue
			}
		}
		out = append(out, eligiblePlayer{QueueEntry: e, isBot: isBot, dwell: dwell})
	}
	return out
}

// selectPair applies the priority order: human-human, then human-bot, then
// bot-bot (only when zero humans are waiting).
func (c *Controller) selectPair(ctx context.Context, eligible []eligiblePlayer) *pairCandidate {
	humans := filterByKind(eligible, false)
	bots := filterByKind(eligible, true)

	if best := bestPairWithinTolerance(c.cfg, humans, humans, true); best != nil {
		return best
	}
	if best := bestPairWithinTolerance(c.cfg, humans, bots, false); best != nil {
		return best
	}
	if len(humans) == 0 {
		if best := bestPairWithinTolerance(c.cfg, bots, bots, true); best != nil {
			return best
		}
	}

	return c.botFillCandidate(ctx, humans, bots)
}

// botFillCandidate implements the bot-fill fallback: a single remaining
// eligible human who has dwelled past BotMatchDelayMs is paired with any
// eligible queued bot.
func (c *Controller) botFillCandidate(ctx context.Context, humans, bots []eligiblePlayer) *pairCandidate {
	if len(humans) != 1 || len(bots) == 0 {
		return nil
	}
	human := humans[0]
	if human.dwell < time.Duration(c.cfg.BotMatchDelayMs)*time.Millisecond {
		return nil
	}
	bot := bots[0]
	return &pairCandidate{a: human, b: bot, diff: abs(human.Rating - bot.Rating)}
}

func filterByKind(entries []eligiblePlayer, bot bool) []eligiblePlayer {
	out := make([]eligiblePlayer, 0, len(entries))
	for _, e := range entries {
		if e.isBot == bot {
			out = append(out, e)
		}
	}
	return out
}

// bestPairWithinTolerance finds the minimum-ELO-difference pair across two
// (possibly identical) pools within each pair's time-expanded tolerance.
// sameSet avoids pairing a player with itself when pool a and pool b are
// the same slice.
func bestPairWithinTolerance(cfg Config, a, b []eligiblePlayer, sameSet bool) *pairCandidate {
	var best *pairCandidate
	for i := range a {
		for j := range b {
			if sameSet && i >= j {
				continue
			}
			if !sameSet && a[i].PlayerID == b[j].PlayerID {
				continue
			}
			diff := abs(a[i].Rating - b[j].Rating)
			tolerance := minInt(cfg.toleranceFor(a[i].dwell), cfg.toleranceFor(b[j].dwell))
			if diff > tolerance {
				continue
			}
			if best == nil || diff < best.diff {
				best = &pairCandidate{a: a[i], b: b[j], diff: diff}
			}
		}
	}
	return best
}

func removeBoth(entries []eligiblePlayer, idA, idB string) []eligiblePlayer {
	out := make([]eligiblePlayer, 0, len(entries))
	for _, e := range entries {
		if e.PlayerID == idA || e.PlayerID == idB {
			continue
		}
		out = append(out, e)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// reserveAndCreate runs the atomic two-NX-lock reservation sequence of
// §4.C9 and §9: lock (deterministic order) -> re-check -> placeholder
// reservation + dequeue -> create -> finalize; rollback is the exact
// inverse on any failure.
func (c *Controller) reserveAndCreate(ctx context.Context, a, b eligiblePlayer) {
	first, second := a.PlayerID, b.PlayerID
	if second < first {
		first, second = second, first
	}

	lockFirst := coordination.KeyLockMatch(first)
	lockSecond := coordination.KeyLockMatch(second)

	okFirst, err := c.store.AcquireLock(ctx, lockFirst, c.cfg.LockTTL)
	if err != nil || !okFirst {
		return
	}
	okSecond, err := c.store.AcquireLock(ctx, lockSecond, c.cfg.LockTTL)
	if err != nil || !okSecond {
		_ = c.store.ReleaseLock(ctx, lockFirst)
		return
	}
	defer func() {
		_ = c.store.ReleaseLock(ctx, lockFirst)
		_ = c.store.ReleaseLock(ctx, lockSecond)
	}()

	if !c.recheckEligible(ctx, a) || !c.recheckEligible(ctx, b) {
		return
	}

	c.markProcessing(a.PlayerID, true)
	c.markProcessing(b.PlayerID, true)
	defer func() {
		c.markProcessing(a.PlayerID, false)
		c.markProcessing(b.PlayerID, false)
	}()

	placeholder := models.Reservation{Status: models.ReservationCreating}
	if err := c.writePlaceholders(ctx, a, b, placeholder); err != nil {
		c.logger.Warn("matchmaking: placeholder reservation write failed", map[string]interface{}{"error": err.Error()})
		c.rollback(ctx, a, b)
		return
	}

	result, err := c.creator.Create(ctx, matchcreate.Request{
		Player1: toParticipant(a),
		Player2: toParticipant(b),
	})
	if err != nil {
		c.logger.Warn("matchmaking: match creation failed, rolling back", map[string]interface{}{"error": err.Error()})
		c.rollback(ctx, a, b)
		return
	}

	c.notifier.MatchFound(a.PlayerID, result.MatchID, result.RoomID, result.ProblemID)
	c.notifier.MatchFound(b.PlayerID, result.MatchID, result.RoomID, result.ProblemID)
}

func (c *Controller) markProcessing(playerID string, processing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if processing {
		c.processing[playerID] = true
	} else {
		delete(c.processing, playerID)
	}
}

func (c *Controller) recheckEligible(ctx context.Context, p eligiblePlayer) bool {
	if p.isBot {
		active, _ := c.store.SetIsMember(ctx, coordination.KeyBotsActive, p.PlayerID)
		if active {
			return false
		}
		current, _ := c.store.BotCurrentMatch(ctx, p.PlayerID)
		if current != "" {
			return false
		}
		return true
	}
	isMember, _ := c.store.QueueIsMember(ctx, p.PlayerID)
	if !isMember {
		return false
	}
	reservation, _ := c.store.GetReservation(ctx, p.PlayerID)
	return reservation == nil
}

func (c *Controller) writePlaceholders(ctx context.Context, a, b eligiblePlayer, placeholder models.Reservation) error {
	for _, p := range []eligiblePlayer{a, b} {
		if err := c.store.WriteReservation(ctx, p.PlayerID, placeholder, c.cfg.PlaceholderTTL); err != nil {
			return err
		}
		if err := c.store.QueueRemove(ctx, p.PlayerID); err != nil {
			return err
		}
		if p.isBot {
			if err := c.store.SetAdd(ctx, coordination.KeyBotsActive, p.PlayerID); err != nil {
				return err
			}
		} else {
			if err := c.store.SetRemove(ctx, coordination.KeyHumanPlayers, p.PlayerID); err != nil {
				return err
			}
			if err := c.store.SetRemove(ctx, coordination.KeyQueuedPlayers, p.PlayerID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Controller) rollback(ctx context.Context, a, b eligiblePlayer) {
	for _, p := range []eligiblePlayer{a, b} {
		_ = c.store.DeleteReservation(ctx, p.PlayerID)
		if p.isBot {
			_ = c.store.SetRemove(ctx, coordination.KeyBotsActive, p.PlayerID)
		} else {
			_ = c.store.SetAdd(ctx, coordination.KeyHumanPlayers, p.PlayerID)
			_ = c.store.SetAdd(ctx, coordination.KeyQueuedPlayers, p.PlayerID)
		}
		joinedAt := p.JoinedAt
		if joinedAt.IsZero() {
			joinedAt = time.Now()
		}
		_ = c.store.QueueRestore(ctx, p.PlayerID, float64(p.Rating), joinedAt)
	}
}

func toParticipant(p eligiblePlayer) matchcreate.Participant {
	return matchcreate.Participant{PlayerID: p.PlayerID, Username: p.PlayerID, Rating: p.Rating, IsBot: p.isBot}
}
