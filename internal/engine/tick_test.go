package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/botnet-empire/server/internal/game"
)

func TestTickAccruesElapsedProduction(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}
	s.State().Tools["cash"] = &game.ToolOwnership{Active: true}

	env.advance(2 * time.Second)
	s.Tick(env.now())

	if got := s.State().Bots.T3; got != 20 {
		t.Errorf("Expected 10 BPS over 2s to land 20 bots in the base tier, got %v", got)
	}
	if got := s.State().Money; got != 10 {
		t.Errorf("Expected 5 MPS over 2s to earn 10, got %v", got)
	}
	if got := s.State().TotalEarned; got != 10 {
		t.Errorf("Expected lifetime earnings to track passive income, got %v", got)
	}
	if s.State().LastTick != env.nowMs {
		t.Errorf("Expected lastTick advanced to %d, got %d", env.nowMs, s.State().LastTick)
	}
}

func TestTickCapsClockJumps(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}

	env.advance(100 * time.Second)
	s.Tick(env.now())

	// Delta is capped at 5 seconds regardless of the jump.
	if got := s.State().Bots.T3; got != 50 {
		t.Errorf("Expected a capped 5s advance (50 bots), got %v", got)
	}
}

func TestTickDebouncesRapidCalls(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}

	env.advance(1 * time.Second)
	s.Tick(env.now())
	first := s.State().Bots.T3

	env.advance(10 * time.Millisecond)
	s.Tick(env.now())

	if s.State().Bots.T3 != first {
		t.Errorf("Expected a tick within the debounce window to be a no-op, got %v after %v", s.State().Bots.T3, first)
	}
}

func TestTickSuspendedByUnacknowledgedEvent(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}
	s.State().ActiveEvent = game.EventRaid
	s.State().EventAcknowledged = false
	s.State().EventDuration = 60000

	before := s.State().Clone()
	env.advance(3 * time.Second)
	s.Tick(env.now())

	if !reflect.DeepEqual(before, s.State()) {
		t.Error("Expected an unacknowledged event to leave the state completely untouched")
	}
}

func TestTickAppliesEventMultipliers(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}
	s.State().Tools["cash"] = &game.ToolOwnership{Active: true}
	s.State().ActiveEvent = game.EventRaid
	s.State().EventAcknowledged = true
	s.State().EventEndTime = env.nowMs + 60000

	env.advance(2 * time.Second)
	s.Tick(env.now())

	// Raid: bots at 0.7, cash unchanged.
	if got := s.State().Bots.T3; got != 14 {
		t.Errorf("Expected raid to reduce bot gains to 14, got %v", got)
	}
	if got := s.State().Money; got != 10 {
		t.Errorf("Expected raid to leave income at 10, got %v", got)
	}
}

func TestTickOutageHalvesIncome(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["cash"] = &game.ToolOwnership{Active: true}
	s.State().ActiveEvent = game.EventOutage
	s.State().EventAcknowledged = true
	s.State().EventEndTime = env.nowMs + 60000

	env.advance(1 * time.Second)
	s.Tick(env.now())

	if got := s.State().Money; got != 2.5 {
		t.Errorf("Expected outage to halve income to 2.5, got %v", got)
	}
}

func TestTickDecrementsClickCooldowns(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().ClickCooldowns["clicky"] = 10

	env.advance(2 * time.Second)
	s.Tick(env.now())

	if got := s.State().ClickCooldowns["clicky"]; got != 8 {
		t.Errorf("Expected cooldown reduced by elapsed seconds, got %v", got)
	}
}

func TestTickSamplesMoneyGraph(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["cash"] = &game.ToolOwnership{Active: true}

	env.advance(11 * time.Second)
	s.Tick(env.now())

	if len(s.State().MoneyGraph) != 1 {
		t.Fatalf("Expected one graph sample after the interval, got %d", len(s.State().MoneyGraph))
	}
	if s.State().LastGraphSample != env.nowMs {
		t.Errorf("Expected sample timestamp advanced, got %d", s.State().LastGraphSample)
	}

	env.advance(1 * time.Second)
	s.Tick(env.now())
	if len(s.State().MoneyGraph) != 1 {
		t.Errorf("Expected no second sample inside the interval, got %d", len(s.State().MoneyGraph))
	}
}

func TestTickNeverProducesNegativeBalances(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}
	s.State().Money = -100 // corrupted externally

	env.advance(1 * time.Second)
	s.Tick(env.now())

	if s.State().Money < 0 {
		t.Errorf("Expected money repaired to non-negative, got %v", s.State().Money)
	}
	if s.State().Bots.T3 < 0 {
		t.Errorf("Expected bots non-negative, got %v", s.State().Bots.T3)
	}
}

type countingSaver struct{ calls int }

func (c *countingSaver) RequestSave() { c.calls++ }

func TestTickRequestsDebouncedSaves(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	saver := &countingSaver{}
	s.SetSaver(saver)

	env.advance(1 * time.Second)
	s.Tick(env.now())
	if saver.calls != 1 {
		t.Fatalf("Expected the first tick to request a save, got %d", saver.calls)
	}

	env.advance(1 * time.Second)
	s.Tick(env.now())
	if saver.calls != 1 {
		t.Errorf("Expected no save inside the 5s cadence, got %d", saver.calls)
	}

	env.advance(6 * time.Second)
	s.Tick(env.now())
	if saver.calls != 2 {
		t.Errorf("Expected a save after the cadence elapsed, got %d", saver.calls)
	}
}
