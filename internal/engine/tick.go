package engine

import (
	"time"

	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/platform/metrics"
)

// Tick cadences and guards.
const (
	// MaxDelta caps a single advance so clock jumps (suspension, system
	// sleep) cannot produce an implausible step.
	MaxDelta = 5.0 // seconds
	// tickDebounceMs is the minimum real interval between effective
	// ticks, tolerating caller jitter without double-advancing.
	tickDebounceMs = 50
	// graphSampleIntervalMs is the money-graph sampling cadence.
	graphSampleIntervalMs = 10000
	// priceRollIntervalMs is the market price re-roll cadence.
	priceRollIntervalMs = 1800000
	// saveIntervalMs is the debounced autosave cadence.
	saveIntervalMs = 5000
)

// Tick advances the economy by the wall-clock time elapsed since the
// previous effective tick. An active unacknowledged event suspends the
// tick entirely: no time advances, no gains, no save. That gate is the
// mechanism forcing the player to acknowledge disruptive events.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()

	if nowMs-s.lastUpdateMs < tickDebounceMs {
		metrics.Get().RecordTickSkipped()
		return
	}

	if s.st.ActiveEvent != game.EventNone && !s.st.EventAcknowledged {
		metrics.Get().RecordTickSkipped()
		return
	}

	s.lastUpdateMs = nowMs

	delta := game.SanitizeNumber(float64(nowMs-s.st.LastTick)/1000, 0, 0, MaxDelta)
	s.st.LastTick = nowMs

	eventBotMult, eventMoneyMult := s.activeEventMultipliers()

	bps := s.calculateBPS(1)
	mps := s.calculateMPS(1)

	botsGained := game.SanitizeCount(bps * delta * eventBotMult)
	moneyEarned := game.SanitizeCount(mps * delta * eventMoneyMult)

	// Passive generation always lands in the base tier.
	s.st.Bots.T3 = game.SanitizeCount(s.st.Bots.T3 + botsGained)
	s.st.Money = game.SanitizeCount(s.st.Money + moneyEarned)
	s.st.TotalEarned = game.SanitizeCount(s.st.TotalEarned + moneyEarned)

	if s.miner != nil && s.miner.Active() {
		rate := game.SanitizeNumber(s.miner.CurrentRate(s.miner.Mode()), 0, 0, 1)
		if acc, ok := s.miner.(interface{ Accumulate(float64) }); ok {
			acc.Accumulate(s.st.Bots.Total() * rate * delta)
		}
	}

	for id, cd := range s.st.ClickCooldowns {
		if cd > 0 {
			s.st.ClickCooldowns[id] = game.SanitizeNumber(cd-delta, 0, 0, game.MaxSafeValue)
		}
	}

	if nowMs-s.st.LastGraphSample >= graphSampleIntervalMs {
		s.st.MoneyGraph = append(s.st.MoneyGraph, game.SanitizeCount(s.st.TotalEarned))
		if len(s.st.MoneyGraph) > game.GraphMaxPoints {
			s.st.MoneyGraph = s.st.MoneyGraph[len(s.st.MoneyGraph)-game.GraphMaxPoints:]
		}
		s.st.LastGraphSample = nowMs
	}

	if s.st.PriceTime == 0 || nowMs-s.st.PriceTime > priceRollIntervalMs {
		s.rollPrices(nowMs)
	}

	if s.st.LastSaveTime == 0 || nowMs-s.st.LastSaveTime > saveIntervalMs {
		s.requestSave(nowMs)
	}
}

// activeEventMultipliers returns the generation/income multipliers for
// the currently acknowledged event, read from the event catalog.
// Callers hold s.mu.
func (s *Session) activeEventMultipliers() (botMult, moneyMult float64) {
	if s.st.ActiveEvent == game.EventNone {
		return 1, 1
	}
	for i := range s.cat.Events {
		e := &s.cat.Events[i]
		if game.EventType(e.Type) == s.st.ActiveEvent {
			return game.SanitizeNumber(e.BotMult, 1, 0, 100), game.SanitizeNumber(e.CashMult, 1, 0, 100)
		}
	}
	// The crypto event comes from the mining collaborator, not the
	// market-event table.
	if s.st.ActiveEvent == game.EventCrypto {
		return 0.5, 1
	}
	return 1, 1
}
