package engine

import (
	"math"
	"testing"

	"github.com/botnet-empire/server/internal/game"
)

func TestCalculateBPSFromOwnedEntries(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	if got := s.CalculateBPS(1); got != 0 {
		t.Errorf("Expected 0 BPS with nothing owned, got %v", got)
	}

	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}
	if got := s.CalculateBPS(1); got != 10 {
		t.Errorf("Expected BPS 10 from the generator, got %v", got)
	}

	s.State().Upgrades["flat"] = true
	if got := s.CalculateBPS(1); got != 15 {
		t.Errorf("Expected BPS 15 with the flat upgrade, got %v", got)
	}
}

func TestCalculateBPSSkillMultipliers(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}

	s.State().Skills.Generation = 1
	if got := s.CalculateBPS(1); math.Abs(got-11) > 1e-9 {
		t.Errorf("Expected generation skill to add 10%%, got %v", got)
	}

	s.State().Skills.Automation = 2
	if got := s.CalculateBPS(1); math.Abs(got-12) > 1e-9 {
		t.Errorf("Expected automation skill to add 5%% per level, got %v", got)
	}

	s.State().Skills.Generation = 0
	s.State().Skills.Automation = 0
	s.State().Prestige = 3
	if got := s.CalculateBPS(1); math.Abs(got-13) > 1e-9 {
		t.Errorf("Expected prestige to add 10%% per level, got %v", got)
	}
}

func TestCalculateBPSEfficiency(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}

	if got := s.CalculateBPS(0.5); got != 5 {
		t.Errorf("Expected half efficiency to halve BPS, got %v", got)
	}
	if got := s.CalculateBPS(0); got != 0 {
		t.Errorf("Expected zero efficiency to zero BPS, got %v", got)
	}
}

func TestCalculateMPSFromOwnedEntries(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	s.State().Tools["cash"] = &game.ToolOwnership{Active: true}
	if got := s.CalculateMPS(1); got != 5 {
		t.Errorf("Expected MPS 5 from the money tool, got %v", got)
	}

	s.State().Prestige = 2
	if got := s.CalculateMPS(1); math.Abs(got-6) > 1e-9 {
		t.Errorf("Expected prestige bonus on MPS, got %v", got)
	}
}

type stubMiner struct {
	active bool
	mult   float64
	rate   float64
}

func (m *stubMiner) CurrentMultiplier() float64    { return m.mult }
func (m *stubMiner) CurrentRate(mode string) float64 { return m.rate }
func (m *stubMiner) Active() bool                  { return m.active }
func (m *stubMiner) Mode() string                  { return "low" }

func TestMinerAffectsRates(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}
	s.State().Bots.T3 = 1000

	s.SetMiner(&stubMiner{active: true, mult: 0.7, rate: 0.001})

	if got := s.CalculateBPS(1); math.Abs(got-7) > 1e-9 {
		t.Errorf("Expected mining penalty 0.7 on BPS, got %v", got)
	}
	// 1000 bots at 0.001 per bot per second.
	if got := s.CalculateMPS(1); math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected miner to contribute 1 MPS, got %v", got)
	}
}

func TestPrestigeBonusIncludesAchievements(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	s.State().Prestige = 2
	if got := s.PrestigeBonus(); got != 2 {
		t.Errorf("Expected prestige bonus 2, got %v", got)
	}

	s.State().Achievements["prestige1"] = true
	if got := s.PrestigeBonus(); got != 3 {
		t.Errorf("Expected prestige-reward achievement to add its bonus, got %v", got)
	}
}

func TestRollPricesStaysInRange(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	for i := 0; i < 200; i++ {
		s.mu.Lock()
		s.rollPrices(env.nowMs)
		p := s.st.Prices
		s.mu.Unlock()

		if p.T1 < 0.8 || p.T1 > 1.25 {
			t.Fatalf("T1 price %v out of range", p.T1)
		}
		if p.T2 < 0.3 || p.T2 > 0.8 {
			t.Fatalf("T2 price %v out of range", p.T2)
		}
		if p.T3 < 0.08 || p.T3 > 0.3 {
			t.Fatalf("T3 price %v out of range", p.T3)
		}
		if p.Mobile < 1.2 || p.Mobile > 2.0 {
			t.Fatalf("Mobile price %v out of range", p.Mobile)
		}
	}
}

func TestPriceDirectionRequiresScanner(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	s.mu.Lock()
	s.rollPrices(env.nowMs)
	dir := s.st.PriceDirection
	s.mu.Unlock()
	if dir != 0 {
		t.Errorf("Expected no trend without a scanner, got %d", dir)
	}

	s.State().Upgrades["marketScanner"] = true
	sawTrend := false
	for i := 0; i < 50 && !sawTrend; i++ {
		s.mu.Lock()
		s.rollPrices(env.nowMs)
		sawTrend = s.st.PriceDirection != 0
		s.mu.Unlock()
	}
	if !sawTrend {
		t.Error("Expected the scanner to expose a price trend across rolls")
	}
}
