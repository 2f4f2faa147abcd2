package engine

import (
	"fmt"

	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/game"
)

// PrestigeThreshold is the lifetime bot total required before a reset
// is permitted.
const PrestigeThreshold = 8.2e9

// PrestigeReset wipes progression in exchange for a permanent level.
// Achievements and the prestige counter survive; everything else
// returns to a fresh start. The reset rolls back wholesale if the
// resulting state fails its own sanity check.
func (s *Session) PrestigeReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if now < s.prestigeBusyUntilMs {
		return ErrBusy
	}
	if s.st.Bots.Total() < PrestigeThreshold {
		return ErrRequirementNotMet
	}

	s.prestigeBusyUntilMs = now + purchaseSettleMs

	snapshot := s.st.Clone()
	level := s.st.Prestige + 1
	achievements := s.st.Achievements

	fresh := game.NewState(s.clock(), s.rng)
	fresh.Prestige = level
	fresh.Achievements = achievements
	fresh.LastTick = now
	fresh.LastGraphSample = now
	// Post-reset grace: the next disruptive event lands 10-20 minutes out.
	fresh.NextEventTime = now + 600000 + int64(s.rng.Float64()*600000)

	*s.st = *fresh

	if s.st.Prestige < snapshot.Prestige || s.st.Prestige > game.MaxPrestigeLevel {
		*s.st = *snapshot
		s.logger.Error("prestige reset rolled back: level %d out of range", level)
		return ErrRequirementNotMet
	}

	s.logger.Event("PRESTIGE", fmt.Sprintf("level %d", level))
	if s.feed != nil {
		s.feed.Append(events.KindPrestige, fmt.Sprintf("prestige level %d reached", level), map[string]any{
			"level": level,
		})
	}

	s.requestSave(now)
	return nil
}

// FullReset discards the entire state, achievements and prestige
// included, and starts over.
func (s *Session) FullReset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	*s.st = *game.NewState(s.clock(), s.rng)
	s.logger.Event("FULL_RESET", "state wiped to defaults")
	s.requestSave(s.nowMs())
}
