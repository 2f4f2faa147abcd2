package engine

import (
	"errors"
	"math"

	"github.com/botnet-empire/server/internal/game"
)

// Handler precondition failures. The caller gets an indicator, never a
// panic; state is unchanged on every error path.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientBots  = errors.New("insufficient bots")
	ErrUnknownID         = errors.New("unknown catalog id")
	ErrAlreadyOwned      = errors.New("already owned")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrOnCooldown        = errors.New("on cooldown")
	ErrBusy              = errors.New("operation in flight")
	ErrEventPending      = errors.New("active event unacknowledged")
	ErrNotClickable      = errors.New("tool not clickable")
	ErrRequirementNotMet = errors.New("requirement not met")
)

// Action rate limits, all in session-clock milliseconds.
const (
	spreadCooldownMs    = 100
	spreadDebounceMs    = 50
	toolClickIntervalMs = 50
	toolClickDebounceMs = 50
	purchaseSettleMs    = 100
	// toolClicksPerCycle is how many clicks a tool gives before its
	// cooldown engages.
	toolClicksPerCycle = 50
	// spreadBatchBase is the unboosted unit count per spread click.
	spreadBatchBase = 10
)

// Spread tier thresholds for the uniform roll.
const (
	spreadMobileThreshold = 0.98
	spreadT1Threshold     = 0.94
	spreadT2Threshold     = 0.72
)

// Spread performs one manual generation click: a uniform roll, boosted
// by the tier-distribution skill, assigns a batch into exactly one
// tier. Rapid or overlapping invocations are dropped, not queued.
func (s *Session) Spread() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()

	if s.st.ActiveEvent != game.EventNone && !s.st.EventAcknowledged {
		return ErrEventPending
	}
	if now-s.lastSpreadMs < spreadCooldownMs {
		return ErrBusy
	}
	if now < s.spreadBusyUntilMs {
		return ErrBusy
	}
	s.spreadBusyUntilMs = now + spreadDebounceMs
	s.lastSpreadMs = now

	s.st.TotalClicks = game.SanitizeCount(s.st.TotalClicks + 1)

	tierBonus := math.Max(0, float64(s.st.Skills.Tiers)*0.05)
	roll := math.Min(1, s.rng.Float64()+tierBonus)

	amount := math.Max(1, math.Floor(spreadBatchBase*s.clickMultiplier()))

	switch {
	case s.st.Unlocks.Mobile && roll > spreadMobileThreshold:
		s.st.Bots.Mobile = math.Floor(game.SanitizeCount(s.st.Bots.Mobile + amount))
	case roll > spreadT1Threshold:
		s.st.Bots.T1 = math.Floor(game.SanitizeCount(s.st.Bots.T1 + amount))
	case roll > spreadT2Threshold:
		s.st.Bots.T2 = math.Floor(game.SanitizeCount(s.st.Bots.T2 + amount))
	default:
		s.st.Bots.T3 = math.Floor(game.SanitizeCount(s.st.Bots.T3 + amount))
	}
	return nil
}

// Sell debits amount units of a tier and credits the revenue. The
// whole operation rolls back if any counter would land negative.
func (s *Session) Sell(tier string, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount = math.Floor(game.SanitizeNumber(amount, 0, 0, game.MaxSafeValue))
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	held, price, ok := s.tierHoldings(tier)
	if !ok {
		return 0, ErrUnknownID
	}
	if held < amount {
		return 0, ErrInsufficientBots
	}

	// Snapshot the fields about to change.
	prevBots := s.st.Bots
	prevMoney := s.st.Money
	prevEarned := s.st.TotalEarned
	prevSold := s.st.TotalBotsSold

	priceBonus := 1 + float64(s.st.Skills.Prices)*0.03
	prestigeBonus := 1 + s.prestigeBonus()*0.10
	incomeBonus := s.achievementBonus("income")
	earned := amount * price * priceBonus * prestigeBonus * incomeBonus

	s.setTierHoldings(tier, held-amount)
	s.st.TotalBotsSold = game.SanitizeCount(s.st.TotalBotsSold + amount)
	s.st.Money = s.st.Money + earned
	s.st.TotalEarned = s.st.TotalEarned + earned

	if s.postConditionViolated() {
		s.st.Bots = prevBots
		s.st.Money = prevMoney
		s.st.TotalEarned = prevEarned
		s.st.TotalBotsSold = prevSold
		s.logger.Error("sell rolled back: post-condition violated for tier %s amount %.0f", tier, amount)
		return 0, ErrInvalidAmount
	}

	s.requestSave(s.nowMs())
	return earned, nil
}

// BuyTool purchases a catalog tool. Purchases are serialized through a
// single in-process guard so a rapid double-click cannot double-spend.
func (s *Session) BuyTool(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if now < s.purchaseBusyUntilMs {
		return ErrBusy
	}

	t := s.cat.Tool(id)
	if t == nil {
		return ErrUnknownID
	}
	if _, owned := s.st.Tools[id]; owned {
		return ErrAlreadyOwned
	}
	if s.st.Money < t.Cost {
		return ErrInsufficientFunds
	}

	s.beginPurchase(now)

	s.st.Money = game.SanitizeCount(s.st.Money - t.Cost)
	s.st.Tools[id] = &game.ToolOwnership{Active: true}
	if t.Unlocks == "mobile" {
		s.st.Unlocks.Mobile = true
	}

	s.requestSave(now)
	return nil
}

// BuyUpgrade purchases a one-time upgrade. Skill ids are accepted here
// too and route to UpgradeSkill, matching the unified purchase surface.
func (s *Session) BuyUpgrade(id string) error {
	if s.cat.SkillBaseCost(id) > 0 {
		return s.UpgradeSkill(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if now < s.purchaseBusyUntilMs {
		return ErrBusy
	}

	u := s.cat.Upgrade(id)
	if u == nil {
		return ErrUnknownID
	}
	if s.st.Upgrades[id] {
		return ErrAlreadyOwned
	}
	if s.st.Money < u.Cost {
		return ErrInsufficientFunds
	}

	s.beginPurchase(now)

	s.st.Money = game.SanitizeCount(s.st.Money - u.Cost)
	s.st.Upgrades[id] = true

	s.requestSave(now)
	return nil
}

// UpgradeSkill levels a skill at exponential cost.
func (s *Session) UpgradeSkill(skill string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if now < s.purchaseBusyUntilMs {
		return ErrBusy
	}

	baseCost := s.cat.SkillBaseCost(skill)
	if baseCost <= 0 {
		return ErrUnknownID
	}

	level := s.skillLevel(skill)
	cost := baseCost * math.Pow(1.6, float64(level))
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		s.logger.Error("invalid skill cost for %s level %d", skill, level)
		return ErrInvalidAmount
	}
	if s.st.Money < cost {
		return ErrInsufficientFunds
	}
	if level >= game.MaxSkillLevel {
		return ErrRequirementNotMet
	}

	s.beginPurchase(now)

	s.st.Money = game.SanitizeCount(s.st.Money - cost)
	s.setSkillLevel(skill, game.SanitizeLevel(level+1, game.MaxSkillLevel))

	s.requestSave(now)
	return nil
}

// ClickTool triggers an owned clickable tool, granting its bonus and
// engaging the per-tool cooldown every 50 clicks.
func (s *Session) ClickTool(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if now-s.lastToolClickMs < toolClickIntervalMs {
		return ErrBusy
	}
	if now < s.toolBusyUntilMs {
		return ErrBusy
	}

	t := s.cat.Tool(id)
	if t == nil {
		return ErrUnknownID
	}
	rec, owned := s.st.Tools[id]
	if !owned || rec == nil {
		return ErrRequirementNotMet
	}
	if !t.Clickable {
		return ErrNotClickable
	}
	if s.st.ClickCooldowns[id] > 0 {
		return ErrOnCooldown
	}

	s.toolBusyUntilMs = now + toolClickDebounceMs
	s.lastToolClickMs = now

	rec.Clicks++

	prestigeBonus := 1 + s.prestigeBonus()*0.10
	var category string
	if t.Type == "bots" {
		category = "generation"
	} else {
		category = "income"
	}
	grant := game.SanitizeCount(t.ClickBonus * prestigeBonus * s.achievementBonus(category))

	if t.Type == "bots" {
		s.st.Bots.T3 = game.SanitizeCount(s.st.Bots.T3 + grant)
	} else if t.Type == "money" {
		s.st.Money = game.SanitizeCount(s.st.Money + grant)
		s.st.TotalEarned = game.SanitizeCount(s.st.TotalEarned + grant)
	}

	if rec.Clicks >= toolClicksPerCycle {
		s.st.ClickCooldowns[id] = game.SanitizeNumber(t.ClickCooldown, 0, 0, game.MaxSafeValue)
		rec.Clicks = 0
	}
	return nil
}

// beginPurchase opens the purchase settle window. Callers hold s.mu.
func (s *Session) beginPurchase(nowMs int64) {
	s.purchaseBusyUntilMs = nowMs + purchaseSettleMs
}

// tierHoldings resolves a tier name to its held count and current
// price. Callers hold s.mu.
func (s *Session) tierHoldings(tier string) (held, price float64, ok bool) {
	switch tier {
	case "t1":
		return s.st.Bots.T1, s.st.Prices.T1, true
	case "t2":
		return s.st.Bots.T2, s.st.Prices.T2, true
	case "t3":
		return s.st.Bots.T3, s.st.Prices.T3, true
	case "mobile":
		return s.st.Bots.Mobile, s.st.Prices.Mobile, true
	}
	return 0, 0, false
}

func (s *Session) setTierHoldings(tier string, v float64) {
	switch tier {
	case "t1":
		s.st.Bots.T1 = v
	case "t2":
		s.st.Bots.T2 = v
	case "t3":
		s.st.Bots.T3 = v
	case "mobile":
		s.st.Bots.Mobile = v
	}
}

func (s *Session) skillLevel(skill string) int {
	switch skill {
	case "tiers":
		return s.st.Skills.Tiers
	case "prices":
		return s.st.Skills.Prices
	case "generation":
		return s.st.Skills.Generation
	case "automation":
		return s.st.Skills.Automation
	}
	return 0
}

func (s *Session) setSkillLevel(skill string, level int) {
	switch skill {
	case "tiers":
		s.st.Skills.Tiers = level
	case "prices":
		s.st.Skills.Prices = level
	case "generation":
		s.st.Skills.Generation = level
	case "automation":
		s.st.Skills.Automation = level
	}
}

// postConditionViolated checks the non-negativity invariant after a
// transaction body ran. Callers hold s.mu.
func (s *Session) postConditionViolated() bool {
	for _, v := range []float64{
		s.st.Bots.T1, s.st.Bots.T2, s.st.Bots.T3, s.st.Bots.Mobile,
		s.st.Money, s.st.TotalEarned, s.st.TotalBotsSold,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
