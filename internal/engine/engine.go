// Package engine contains the progression core: economy math, the tick
// heartbeat, player action transactions, the market-event state machine
// and the offline reconciler. All of it operates on a single GameState
// owned by the Session.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/botnet-empire/server/internal/catalog"
	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/platform/logger"
	"github.com/botnet-empire/server/internal/platform/metrics"
)

// Driver cadences.
const (
	TickPeriod       = 100 * time.Millisecond
	SpreadHoldPeriod = 200 * time.Millisecond
	AchievementCheck = 1 * time.Second
	CryptoRatePeriod = 30 * time.Second
)

// Clock supplies wall-clock time; injected so tests can replay elapsed
// time deterministically.
type Clock func() time.Time

// RateModifier is the narrow surface the economy reads from the
// optional crypto-mining collaborator.
type RateModifier interface {
	CurrentMultiplier() float64
	CurrentRate(mode string) float64
	Active() bool
	Mode() string
}

// Saver is the debounced persistence entry point the tick triggers.
type Saver interface {
	RequestSave()
}

// Session owns the GameState and serializes every mutation behind one
// mutex. The JS original relied on single-threaded execution; here the
// tick driver, WebSocket action handlers and the save pipeline all run
// on their own goroutines, so the mutex is the safety boundary.
type Session struct {
	mu  sync.Mutex
	st  *game.State
	cat *catalog.Catalog

	logger *logger.Logger
	feed   *events.Feed
	rng    *rand.Rand
	clock  Clock
	miner  RateModifier
	saver  Saver

	// Single-flight and rate-limit guards (never persisted). Busy
	// windows are deadlines on the injected clock, so tests advance
	// time instead of sleeping.
	lastUpdateMs        int64
	lastSpreadMs        int64
	spreadBusyUntilMs   int64
	spreadHeld          bool
	lastToolClickMs     int64
	toolBusyUntilMs     int64
	purchaseBusyUntilMs int64
	prestigeBusyUntilMs int64

	// When the current event fired, for the auto-acknowledge fallback.
	eventTriggeredMs int64

	stopChan chan struct{}
}

// NewSession wires the progression core around an existing state.
func NewSession(st *game.State, cat *catalog.Catalog, feed *events.Feed, log *logger.Logger, rng *rand.Rand, clock Clock) *Session {
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Session{
		st:       st,
		cat:      cat,
		feed:     feed,
		logger:   log,
		rng:      rng,
		clock:    clock,
		stopChan: make(chan struct{}),
	}
	// A pending unacknowledged event restored from disk has no trigger
	// time in memory; the auto-acknowledge grace restarts from now so
	// the tick cannot stay gated across restarts.
	if st.ActiveEvent != game.EventNone && !st.EventAcknowledged {
		s.eventTriggeredMs = clock().UnixMilli()
	}
	return s
}

// SetMiner attaches the optional crypto-mining collaborator.
func (s *Session) SetMiner(m RateModifier) {
	s.mu.Lock()
	s.miner = m
	s.mu.Unlock()
}

// SetSaver attaches the persistence manager. Until set, tick-triggered
// saves are dropped.
func (s *Session) SetSaver(sv Saver) {
	s.mu.Lock()
	s.saver = sv
	s.mu.Unlock()
}

// Catalog exposes the static content set (read-only).
func (s *Session) Catalog() *catalog.Catalog { return s.cat }

// Start begins the tick driver. Call in a goroutine or use Run.
func (s *Session) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run is the fixed-period driver: economy tick, event scheduler,
// achievement checks and the held-spread repeater. It never blocks on a
// tick; a failed or gated tick just skips this period's effects.
func (s *Session) Run(ctx context.Context) {
	s.logger.Info("Session driver started.")

	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()
	holdTicker := time.NewTicker(SpreadHoldPeriod)
	defer holdTicker.Stop()
	achTicker := time.NewTicker(AchievementCheck)
	defer achTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session driver stopped by context.")
			return
		case <-s.stopChan:
			s.logger.Info("Session driver stopped manually.")
			return
		case <-ticker.C:
			started := time.Now()
			now := s.clock()
			s.Tick(now)
			s.RunEventScheduler(now)
			metrics.Get().RecordTick(time.Since(started))
		case <-holdTicker.C:
			if s.SpreadHeld() {
				s.Spread()
			}
		case <-achTicker.C:
			s.EvaluateAchievements()
		}
	}
}

// Stop gracefully stops the driver.
func (s *Session) Stop() {
	close(s.stopChan)
}

// State returns the underlying aggregate. Callers outside the engine
// must treat it as read-only and should prefer Snapshot.
func (s *Session) State() *game.State { return s.st }

// ReplaceState swaps in an imported state wholesale. The tick clock
// restarts from now so the import never awards phantom elapsed time.
func (s *Session) ReplaceState(st *game.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nowMs := s.nowMs()
	st.LastTick = nowMs
	st.LastGraphSample = nowMs
	*s.st = *st
}

// SpreadHeld reports whether the held-button repeater is engaged.
func (s *Session) SpreadHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spreadHeld
}

// StartSpreadHold engages held-button mode: one immediate spread, then
// the driver re-invokes on a fixed interval until released.
func (s *Session) StartSpreadHold() {
	s.mu.Lock()
	already := s.spreadHeld
	s.spreadHeld = true
	s.mu.Unlock()
	if !already {
		s.Spread()
	}
}

// StopSpreadHold releases held-button mode.
func (s *Session) StopSpreadHold() {
	s.mu.Lock()
	s.spreadHeld = false
	s.mu.Unlock()
}

// nowMs returns the injected clock reading in Unix milliseconds.
func (s *Session) nowMs() int64 {
	return s.clock().UnixMilli()
}

// minerMultiplier is the external bot-generation modifier, 1 when no
// collaborator is attached. Callers hold s.mu.
func (s *Session) minerMultiplier() float64 {
	if s.miner == nil {
		return 1
	}
	return game.SanitizeNumber(s.miner.CurrentMultiplier(), 1, 0, 1000)
}

// requestSave stamps the save cadence and hands off to the persistence
// manager. Callers hold s.mu.
func (s *Session) requestSave(nowMs int64) {
	s.st.LastSaveTime = nowMs
	if s.saver != nil {
		s.saver.RequestSave()
	}
}
