// Package game holds the single root aggregate of the simulation and
// the numeric guards that keep it valid. The state is owned by a
// Session; components receive it by reference and never share it
// with a global binding.
package game

import (
	"math/rand"
	"time"
)

// SchemaVersion tags the save document for migration.
const SchemaVersion = "1.2.3"

// Bounds enforced after any mutation.
const (
	MaxSkillLevel    = 10000
	MaxPrestigeLevel = 10000
	MinPrice         = 0.01
	MaxPrice         = 100
	GraphMaxPoints   = 6048
)

// EventType identifies a disruptive market event.
type EventType string

const (
	EventNone   EventType = ""
	EventRaid   EventType = "raid"
	EventOutage EventType = "outage"
	EventBoom   EventType = "boom"
	EventCrypto EventType = "crypto"
)

// Bots holds the four inventory tiers. The mobile tier stays zero until
// unlocked.
type Bots struct {
	T1     float64 `json:"t1"`
	T2     float64 `json:"t2"`
	T3     float64 `json:"t3"`
	Mobile float64 `json:"mobile"`
}

// Total sums all tiers, treating corrupt values as zero.
func (b Bots) Total() float64 {
	return SanitizeCount(SanitizeCount(b.T1) + SanitizeCount(b.T2) + SanitizeCount(b.T3) + SanitizeCount(b.Mobile))
}

// Skills holds the four independent skill levels.
type Skills struct {
	Tiers      int `json:"tiers"`
	Prices     int `json:"prices"`
	Generation int `json:"generation"`
	Automation int `json:"automation"`
}

// Prices holds the current per-unit sale price for each tier.
type Prices struct {
	T1     float64 `json:"t1"`
	T2     float64 `json:"t2"`
	T3     float64 `json:"t3"`
	Mobile float64 `json:"mobile"`
}

// Unlocks holds feature flags.
type Unlocks struct {
	Mobile bool `json:"mobile"`
}

// ToolOwnership is the per-tool ownership record. Clicks feeds the
// 50-click cooldown mechanic.
type ToolOwnership struct {
	Active bool `json:"active"`
	Clicks int  `json:"clicks"`
}

// State is the root aggregate. All timestamps are Unix milliseconds so
// the serialized document stays compatible with the historical save
// format.
type State struct {
	Version string `json:"version"`

	Bots     Bots    `json:"bots"`
	Money    float64 `json:"money"`
	Prestige int     `json:"prestige"`
	Skills   Skills  `json:"skills"`

	Tools    map[string]*ToolOwnership `json:"tools"`
	Upgrades map[string]bool           `json:"upgrades"`

	Prices         Prices  `json:"prices"`
	PriceTime      int64   `json:"priceTime"`
	PriceDirection int     `json:"priceDirection"`

	Achievements map[string]bool `json:"achievements"`
	Unlocks      Unlocks         `json:"unlocks"`

	ClickCooldowns map[string]float64 `json:"clickCooldowns"`

	MoneyGraph      []float64 `json:"moneyGraph"`
	LastTick        int64     `json:"lastTick"`
	LastGraphSample int64     `json:"lastGraphSample"`
	LastSaveTime    int64     `json:"lastSaveTime"`

	ActiveEvent       EventType `json:"activeEvent"`
	EventEffect       string    `json:"eventEffect"`
	EventDuration     int64     `json:"eventDuration"`
	EventEndTime      int64     `json:"eventEndTime"`
	EventAcknowledged bool      `json:"eventAcknowledged"`
	NextEventTime     int64     `json:"nextEventTime"`

	TotalEarned   float64 `json:"totalEarned"`
	TotalClicks   float64 `json:"totalClicks"`
	TotalBotsSold float64 `json:"totalBotsSold"`

	OfflineProcessed bool `json:"offlineProcessed"`
}

// NewState returns the documented install defaults. The first event is
// scheduled 5-10 minutes out.
func NewState(now time.Time, rng *rand.Rand) *State {
	nowMs := now.UnixMilli()
	return &State{
		Version:         SchemaVersion,
		Bots:            Bots{},
		Skills:          Skills{},
		Tools:           make(map[string]*ToolOwnership),
		Upgrades:        make(map[string]bool),
		Prices:          DefaultPrices(),
		PriceTime:       nowMs,
		Achievements:    make(map[string]bool),
		Unlocks:         Unlocks{},
		ClickCooldowns:  make(map[string]float64),
		MoneyGraph:      []float64{},
		LastTick:        nowMs,
		LastGraphSample: nowMs,
		NextEventTime:   nowMs + 300000 + int64(rng.Float64()*300000),
	}
}

// Clone returns a deep copy, used for rollback snapshots around
// multi-field transactions.
func (s *State) Clone() *State {
	out := *s
	out.Tools = make(map[string]*ToolOwnership, len(s.Tools))
	for id, rec := range s.Tools {
		if rec == nil {
			out.Tools[id] = nil
			continue
		}
		cp := *rec
		out.Tools[id] = &cp
	}
	out.Upgrades = make(map[string]bool, len(s.Upgrades))
	for id, v := range s.Upgrades {
		out.Upgrades[id] = v
	}
	out.Achievements = make(map[string]bool, len(s.Achievements))
	for id, v := range s.Achievements {
		out.Achievements[id] = v
	}
	out.ClickCooldowns = make(map[string]float64, len(s.ClickCooldowns))
	for id, v := range s.ClickCooldowns {
		out.ClickCooldowns[id] = v
	}
	out.MoneyGraph = make([]float64, len(s.MoneyGraph))
	copy(out.MoneyGraph, s.MoneyGraph)
	return &out
}

// DefaultPrices is the fail-safe price table substituted when a roll or
// a load goes wrong.
func DefaultPrices() Prices {
	return Prices{T1: 1, T2: 0.5, T3: 0.15, Mobile: 1.5}
}

// Sanitize clamps every numeric field to its documented bounds and
// replaces nil containers. It never rejects; it repairs in place so a
// partially corrupted document still yields a playable state.
func (s *State) Sanitize() {
	s.Bots.T1 = SanitizeCount(s.Bots.T1)
	s.Bots.T2 = SanitizeCount(s.Bots.T2)
	s.Bots.T3 = SanitizeCount(s.Bots.T3)
	s.Bots.Mobile = SanitizeCount(s.Bots.Mobile)

	s.Money = SanitizeCount(s.Money)
	s.TotalEarned = SanitizeCount(s.TotalEarned)
	s.TotalClicks = SanitizeCount(s.TotalClicks)
	s.TotalBotsSold = SanitizeCount(s.TotalBotsSold)

	s.Prestige = SanitizeLevel(s.Prestige, MaxPrestigeLevel)
	s.Skills.Tiers = SanitizeLevel(s.Skills.Tiers, MaxSkillLevel)
	s.Skills.Prices = SanitizeLevel(s.Skills.Prices, MaxSkillLevel)
	s.Skills.Generation = SanitizeLevel(s.Skills.Generation, MaxSkillLevel)
	s.Skills.Automation = SanitizeLevel(s.Skills.Automation, MaxSkillLevel)

	def := DefaultPrices()
	s.Prices.T1 = SanitizeNumber(s.Prices.T1, def.T1, MinPrice, MaxPrice)
	s.Prices.T2 = SanitizeNumber(s.Prices.T2, def.T2, MinPrice, MaxPrice)
	s.Prices.T3 = SanitizeNumber(s.Prices.T3, def.T3, MinPrice, MaxPrice)
	s.Prices.Mobile = SanitizeNumber(s.Prices.Mobile, def.Mobile, MinPrice, MaxPrice)
	if s.PriceDirection < -1 || s.PriceDirection > 1 {
		s.PriceDirection = 0
	}

	if s.Tools == nil {
		s.Tools = make(map[string]*ToolOwnership)
	}
	for id, owned := range s.Tools {
		if owned == nil {
			s.Tools[id] = &ToolOwnership{Active: true}
			continue
		}
		if owned.Clicks < 0 || owned.Clicks > 50 {
			owned.Clicks = 0
		}
	}
	if s.Upgrades == nil {
		s.Upgrades = make(map[string]bool)
	}
	if s.Achievements == nil {
		s.Achievements = make(map[string]bool)
	}
	if s.ClickCooldowns == nil {
		s.ClickCooldowns = make(map[string]float64)
	}
	for id, cd := range s.ClickCooldowns {
		s.ClickCooldowns[id] = SanitizeNumber(cd, 0, 0, MaxSafeValue)
	}

	if s.MoneyGraph == nil {
		s.MoneyGraph = []float64{}
	}
	if len(s.MoneyGraph) > GraphMaxPoints {
		s.MoneyGraph = s.MoneyGraph[len(s.MoneyGraph)-GraphMaxPoints:]
	}
	for i, v := range s.MoneyGraph {
		s.MoneyGraph[i] = SanitizeCount(v)
	}

	s.LastTick = sanitizeTimestamp(s.LastTick)
	s.LastGraphSample = sanitizeTimestamp(s.LastGraphSample)
	s.LastSaveTime = sanitizeTimestamp(s.LastSaveTime)
	s.PriceTime = sanitizeTimestamp(s.PriceTime)
	s.NextEventTime = sanitizeTimestamp(s.NextEventTime)
	s.EventEndTime = sanitizeTimestamp(s.EventEndTime)
	s.EventDuration = sanitizeTimestamp(s.EventDuration)

	switch s.ActiveEvent {
	case EventNone, EventRaid, EventOutage, EventBoom, EventCrypto:
	default:
		s.ActiveEvent = EventNone
	}
	// Acknowledged implies an event exists.
	if s.ActiveEvent == EventNone {
		s.EventAcknowledged = false
		s.EventEffect = ""
		s.EventDuration = 0
		s.EventEndTime = 0
	}
}

func sanitizeTimestamp(v int64) int64 {
	if v < 0 || float64(v) > MaxSafeValue {
		return 0
	}
	return v
}
