package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/infra/storage"
)

// Offline reconciliation bounds.
const (
	// OfflineKey is the sidecar record tracking presence across runs.
	OfflineKey = "offline_system"

	offlineMinElapsedMs = 30_000
	offlineCapMs        = 4 * 60 * 60 * 1000
	offlineEfficiency   = 0.5

	// Absences of two hours or more may roll one random offline event.
	offlineEventMinMs  = 2 * 60 * 60 * 1000
	offlineEventChance = 0.30
)

// offlineRecord is the persisted presence sidecar, kept apart from the
// main save so a corrupt save cannot double-award an absence.
type offlineRecord struct {
	LastOnlineTime   int64 `json:"lastOnlineTime"`
	OfflineProcessed bool  `json:"offlineProcessed"`
}

// OfflineSummary reports what an absence awarded, for the feed and the
// welcome-back notice.
type OfflineSummary struct {
	ElapsedMs   int64   `json:"elapsedMs"`
	EffectiveMs int64   `json:"effectiveMs"`
	Capped      bool    `json:"capped"`
	BotsAwarded float64 `json:"botsAwarded"`
	CashAwarded float64 `json:"cashAwarded"`
	Event       string  `json:"event,omitempty"`
	EventDelta  float64 `json:"eventDelta,omitempty"`
}

// ReconcileOffline awards capped, reduced-efficiency progress for the
// time since the previous shutdown. It is idempotent: the sidecar's
// processed flag is set before any award lands, so a crash mid-award
// can drop progress but never duplicate it.
func (s *Session) ReconcileOffline(store storage.Store) (*OfflineSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.nowMs()

	rec, err := s.loadOfflineRecord(store)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.LastOnlineTime <= 0 {
		// First run: nothing to reconcile, just establish presence.
		return nil, s.stampOnline(store, nowMs, false)
	}
	if rec.OfflineProcessed {
		return nil, s.stampOnline(store, nowMs, false)
	}

	elapsed := nowMs - rec.LastOnlineTime
	if elapsed < offlineMinElapsedMs {
		return nil, s.stampOnline(store, nowMs, false)
	}

	// Mark processed first; a crash from here loses the award instead of
	// doubling it.
	if err := s.stampOnline(store, nowMs, true); err != nil {
		return nil, err
	}

	eligible := elapsed
	capped := false
	if eligible > offlineCapMs {
		eligible = offlineCapMs
		capped = true
	}
	effectiveHours := float64(eligible) / 3_600_000 * offlineEfficiency

	bots := game.SanitizeCount(s.calculateBPS(offlineEfficiency) * effectiveHours * 3600)
	cash := game.SanitizeCount(s.calculateMPS(offlineEfficiency) * effectiveHours * 3600)

	s.st.Bots.T3 = game.SanitizeCount(s.st.Bots.T3 + bots)
	s.st.Money = game.SanitizeCount(s.st.Money + cash)
	s.st.TotalEarned = game.SanitizeCount(s.st.TotalEarned + cash)

	summary := &OfflineSummary{
		ElapsedMs:   elapsed,
		EffectiveMs: int64(float64(eligible) * offlineEfficiency),
		Capped:      capped,
		BotsAwarded: bots,
		CashAwarded: cash,
	}

	if elapsed >= offlineEventMinMs && s.rng.Float64() < offlineEventChance {
		// Event magnitude scales by the same capped hours as the award.
		s.applyOfflineEvent(summary, float64(eligible)/3_600_000)
	}

	s.st.Sanitize()
	s.st.LastTick = nowMs

	s.logger.Info("Offline reconciliation: %.0f bots, %.2f cash over %dms (capped=%v).", bots, cash, elapsed, capped)
	if s.feed != nil {
		s.feed.Append(events.KindOffline, fmt.Sprintf("welcome back: +%.0f bots, +%.2f cash", bots, cash), summary)
	}
	s.requestSave(nowMs)
	return summary, nil
}

// applyOfflineEvent rolls one of four while-you-were-away events and
// applies its effect, floored at zero. Callers hold s.mu.
func (s *Session) applyOfflineEvent(summary *OfflineSummary, hours float64) {
	switch s.rng.Intn(4) {
	case 0: // bot gain, 5% of holdings per hour
		delta := s.st.Bots.Total() * 0.05 * hours
		s.addBotsProportionally(delta)
		summary.Event = "bot_gain"
		summary.EventDelta = delta
	case 1: // bot loss, 2% of holdings per hour
		delta := math.Min(s.st.Bots.Total(), s.st.Bots.Total()*0.02*hours)
		s.addBotsProportionally(-delta)
		summary.Event = "bot_loss"
		summary.EventDelta = -delta
	case 2: // cash gain, 1% of lifetime earnings per hour
		delta := game.SanitizeCount(s.st.TotalEarned * 0.01 * hours)
		s.st.Money = game.SanitizeCount(s.st.Money + delta)
		s.st.TotalEarned = game.SanitizeCount(s.st.TotalEarned + delta)
		summary.Event = "cash_gain"
		summary.EventDelta = delta
	case 3: // cash loss, 5% of current money per hour
		delta := math.Min(s.st.Money, s.st.Money*0.05*hours)
		s.st.Money = game.SanitizeCount(s.st.Money - delta)
		summary.Event = "cash_loss"
		summary.EventDelta = -delta
	}
	summary.BotsAwarded = game.SanitizeCount(summary.BotsAwarded)
}

// addBotsProportionally spreads a delta across tiers in proportion to
// holdings, flooring each tier at zero. Callers hold s.mu.
func (s *Session) addBotsProportionally(delta float64) {
	total := s.st.Bots.Total()
	if total <= 0 {
		if delta > 0 {
			s.st.Bots.T3 = game.SanitizeCount(s.st.Bots.T3 + delta)
		}
		return
	}
	apply := func(v float64) float64 {
		return game.SanitizeCount(math.Max(0, v+delta*(v/total)))
	}
	s.st.Bots.T1 = apply(s.st.Bots.T1)
	s.st.Bots.T2 = apply(s.st.Bots.T2)
	s.st.Bots.T3 = apply(s.st.Bots.T3)
	s.st.Bots.Mobile = apply(s.st.Bots.Mobile)
}

// UpdateLastOnline stamps presence on shutdown and clears the processed
// flag so the next start reconciles the coming absence.
func (s *Session) UpdateLastOnline(store storage.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeOfflineRecord(store, offlineRecord{
		LastOnlineTime:   s.nowMs(),
		OfflineProcessed: false,
	})
}

func (s *Session) loadOfflineRecord(store storage.Store) (*offlineRecord, error) {
	raw, err := store.Get(OfflineKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("offline record: %w", err)
	}
	var rec offlineRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// A corrupt sidecar is discarded, not fatal.
		s.logger.Warn("offline record corrupt, discarding: %v", err)
		return nil, nil
	}
	return &rec, nil
}

func (s *Session) stampOnline(store storage.Store, nowMs int64, processed bool) error {
	return s.writeOfflineRecord(store, offlineRecord{
		LastOnlineTime:   nowMs,
		OfflineProcessed: processed,
	})
}

func (s *Session) writeOfflineRecord(store storage.Store, rec offlineRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := store.Set(OfflineKey, string(raw)); err != nil {
		return fmt.Errorf("offline record: %w", err)
	}
	s.st.OfflineProcessed = rec.OfflineProcessed
	return nil
}
