package engine

import (
	"math"

	"github.com/botnet-empire/server/internal/game"
)

// Economy bounds. Bonuses are clamped before entering any rate so one
// corrupt field cannot poison BPS/MPS.
const (
	maxBonusClampHigh = 10000
	maxAchBonusClamp  = 1000
)

// CalculateBPS derives bots generated per second from owned catalog
// entries. efficiency is 1 for live play and the offline penalty during
// replay. Read-only over GameState; returns 0 on detected corruption
// rather than propagating a non-finite rate.
func (s *Session) CalculateBPS(efficiency float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calculateBPS(efficiency)
}

func (s *Session) calculateBPS(efficiency float64) float64 {
	prestigeBonus := game.SanitizeNumber(s.prestigeBonus(), 0, 0, maxBonusClampHigh)
	generationSkill := game.SanitizeNumber(float64(s.st.Skills.Generation), 0, 0, maxBonusClampHigh)
	automationSkill := game.SanitizeNumber(float64(s.st.Skills.Automation), 0, 0, maxBonusClampHigh)
	achievementBonus := game.SanitizeNumber(s.achievementBonus("generation"), 1, 1, maxAchBonusClamp)
	cryptoMultiplier := s.minerMultiplier()

	totalMultiplier := (1 + generationSkill*0.10 + automationSkill*0.05 + prestigeBonus*0.10) *
		achievementBonus * cryptoMultiplier * efficiency

	if math.IsNaN(totalMultiplier) || math.IsInf(totalMultiplier, 0) || totalMultiplier < 0 {
		s.logger.Error("invalid total multiplier in CalculateBPS, returning 0")
		return 0
	}

	var bps float64
	for id, owned := range s.st.Upgrades {
		if !owned {
			continue
		}
		u := s.cat.Upgrade(id)
		if u == nil || u.Effect != "base_bots" {
			continue
		}
		bps += game.SanitizeCount(u.Value) * totalMultiplier
	}
	for id, rec := range s.st.Tools {
		if rec == nil || !rec.Active {
			continue
		}
		t := s.cat.Tool(id)
		if t == nil || t.Type != "bots" {
			continue
		}
		bps += game.SanitizeCount(t.Base) * totalMultiplier
	}

	return game.SanitizeCount(bps)
}

// CalculateMPS derives money earned per second, including the crypto
// miner's per-bot contribution while mining is active.
func (s *Session) CalculateMPS(efficiency float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calculateMPS(efficiency)
}

func (s *Session) calculateMPS(efficiency float64) float64 {
	prestigeBonus := game.SanitizeNumber(s.prestigeBonus(), 0, 0, maxBonusClampHigh)
	achievementBonus := game.SanitizeNumber(s.achievementBonus("income"), 1, 1, maxAchBonusClamp)

	totalMultiplier := (1 + prestigeBonus*0.10) * achievementBonus * efficiency
	if math.IsNaN(totalMultiplier) || math.IsInf(totalMultiplier, 0) || totalMultiplier < 0 {
		s.logger.Error("invalid total multiplier in CalculateMPS, returning 0")
		return 0
	}

	var mps float64
	for id, owned := range s.st.Upgrades {
		if !owned {
			continue
		}
		u := s.cat.Upgrade(id)
		if u == nil || u.Type != "money" {
			continue
		}
		mps += game.SanitizeCount(u.Base) * totalMultiplier
	}
	for id, rec := range s.st.Tools {
		if rec == nil || !rec.Active {
			continue
		}
		t := s.cat.Tool(id)
		if t == nil || t.Type != "money" {
			continue
		}
		mps += game.SanitizeCount(t.Base) * totalMultiplier
	}

	if s.miner != nil && s.miner.Active() {
		totalBots := s.st.Bots.Total()
		rate := game.SanitizeNumber(s.miner.CurrentRate(s.miner.Mode()), 0.0001, 0, 1)
		mps += totalBots * rate * efficiency
	}

	return game.SanitizeCount(mps)
}

// PrestigeBonus is the prestige level plus every earned prestige-reward
// achievement bonus, clamped to the level cap.
func (s *Session) PrestigeBonus() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prestigeBonus()
}

func (s *Session) prestigeBonus() float64 {
	var extra float64
	for i := range s.cat.Achievements {
		a := &s.cat.Achievements[i]
		if a.Reward == "prestige" && s.st.Achievements[a.ID] {
			extra += game.SanitizeNumber(a.Bonus, 0, 0, 1000)
		}
	}
	base := game.SanitizeNumber(float64(s.st.Prestige), 0, 0, maxBonusClampHigh)
	return game.SanitizeNumber(base+extra, 0, 0, maxBonusClampHigh)
}

// achievementBonus is 1 plus the sum of earned bonuses for a reward
// category (generation, income, click). Callers hold s.mu.
func (s *Session) achievementBonus(category string) float64 {
	bonus := 1.0
	for i := range s.cat.Achievements {
		a := &s.cat.Achievements[i]
		if a.Reward == category && s.st.Achievements[a.ID] {
			bonus += a.Bonus
		}
	}
	return math.Max(1, bonus)
}

// clickMultiplier aggregates click-boosting achievements and upgrades,
// floored at 1. Callers hold s.mu.
func (s *Session) clickMultiplier() float64 {
	mult := s.achievementBonus("click")
	for id, owned := range s.st.Upgrades {
		if !owned {
			continue
		}
		u := s.cat.Upgrade(id)
		if u == nil || u.Effect != "click_multiplier" {
			continue
		}
		mult *= 1 + u.Value
	}
	if math.IsNaN(mult) || math.IsInf(mult, 0) || mult < 1 {
		return 1
	}
	return mult
}

// rollPrices draws each tier's new price from its fixed range and, when
// a market scanner is owned, exposes the base-tier trend. priceTime is
// stamped even on the fail-safe path so the roll cadence never stalls.
// Callers hold s.mu.
func (s *Session) rollPrices(nowMs int64) {
	old := s.st.Prices

	def := game.DefaultPrices()
	s.st.Prices = game.Prices{
		T1:     game.SanitizeNumber(s.rng.Float64()*0.45+0.8, def.T1, game.MinPrice, game.MaxPrice),
		T2:     game.SanitizeNumber(s.rng.Float64()*0.5+0.3, def.T2, game.MinPrice, game.MaxPrice),
		T3:     game.SanitizeNumber(s.rng.Float64()*0.22+0.08, def.T3, game.MinPrice, game.MaxPrice),
		Mobile: game.SanitizeNumber(s.rng.Float64()*0.8+1.2, def.Mobile, game.MinPrice, game.MaxPrice),
	}

	if s.ownsMarketScanner() && old.T3 > 0 {
		oldT3 := game.SanitizeNumber(old.T3, def.T3, game.MinPrice, game.MaxPrice)
		switch {
		case s.st.Prices.T3 > oldT3:
			s.st.PriceDirection = 1
		case s.st.Prices.T3 < oldT3:
			s.st.PriceDirection = -1
		default:
			s.st.PriceDirection = 0
		}
	} else {
		s.st.PriceDirection = 0
	}

	s.st.PriceTime = nowMs
}

// ownsMarketScanner accepts the scanner from either catalog collection;
// historical saves carry it under tools. Callers hold s.mu.
func (s *Session) ownsMarketScanner() bool {
	if s.st.Upgrades["marketScanner"] {
		return true
	}
	rec, ok := s.st.Tools["marketScanner"]
	return ok && rec != nil && rec.Active
}
