// Package crypto implements the optional mining subsystem. The engine
// consumes it only through the narrow getter surface (multiplier and
// per-mode rate); lifecycle and persistence stay in here.
package crypto

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/infra/storage"
)

// SaveKey is the miner's own slot in the storage medium.
const SaveKey = "crypto_mining_v3"

// Mode selects the risk profile.
type Mode string

const (
	ModeLow  Mode = "low"
	ModeHigh Mode = "high"
)

// modeConfig is the static tuning per risk profile.
type modeConfig struct {
	botPenalty float64
	baseRate   float64
	volatility float64
}

var modes = map[Mode]modeConfig{
	ModeLow:  {botPenalty: 0.7, baseRate: 0.0001, volatility: 0.2},
	ModeHigh: {botPenalty: 0.5, baseRate: 0.0005, volatility: 0.5},
}

// state is the persisted document.
type state struct {
	Active     bool    `json:"active"`
	Mode       Mode    `json:"mode"`
	TotalMined float64 `json:"totalMined"`
	LastUpdate int64   `json:"lastUpdate"`
}

// Miner owns the mining state and its persistence.
type Miner struct {
	mu    sync.Mutex
	st    state
	rates map[Mode]float64
	store storage.Store
	rng   *rand.Rand
}

// NewMiner creates an inactive low-risk miner.
func NewMiner(store storage.Store, rng *rand.Rand) *Miner {
	return &Miner{
		st:    state{Mode: ModeLow, LastUpdate: time.Now().UnixMilli()},
		rates: map[Mode]float64{ModeLow: modes[ModeLow].baseRate, ModeHigh: modes[ModeHigh].baseRate},
		store: store,
		rng:   rng,
	}
}

// Load restores the persisted mining state; a missing or corrupt
// document leaves defaults in place.
func (m *Miner) Load() {
	raw, err := m.store.Get(SaveKey)
	if err != nil {
		return
	}
	var st state
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return
	}
	if _, ok := modes[st.Mode]; !ok {
		st.Mode = ModeLow
	}
	st.TotalMined = game.SanitizeCount(st.TotalMined)
	m.mu.Lock()
	m.st = st
	m.mu.Unlock()
}

// Save persists the mining state. Write failures are non-fatal.
func (m *Miner) Save() {
	m.mu.Lock()
	m.st.LastUpdate = time.Now().UnixMilli()
	raw, err := json.Marshal(m.st)
	m.mu.Unlock()
	if err != nil {
		return
	}
	_ = m.store.Set(SaveKey, string(raw))
}

// CurrentMultiplier returns the bot-generation penalty while mining is
// active, 1 otherwise.
func (m *Miner) CurrentMultiplier() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.st.Active {
		return 1
	}
	return modes[m.st.Mode].botPenalty
}

// CurrentRate returns money mined per bot per second for the given
// mode; unknown modes fall back to the low-risk floor.
func (m *Miner) CurrentRate(mode string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rates[Mode(mode)]
	if !ok {
		return modes[ModeLow].baseRate
	}
	return game.SanitizeNumber(r, modes[ModeLow].baseRate, 0, 1)
}

// Active reports whether mining currently contributes to MPS.
func (m *Miner) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Active
}

// Mode returns the selected risk profile.
func (m *Miner) Mode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.st.Mode)
}

// SetActive toggles mining.
func (m *Miner) SetActive(active bool) {
	m.mu.Lock()
	m.st.Active = active
	m.mu.Unlock()
	m.Save()
}

// SetMode switches the risk profile.
func (m *Miner) SetMode(mode Mode) {
	if _, ok := modes[mode]; !ok {
		return
	}
	m.mu.Lock()
	m.st.Mode = mode
	m.mu.Unlock()
	m.Save()
}

// RollRates re-draws the fluctuating per-mode rates around their base,
// floored at the low-risk base rate.
func (m *Miner) RollRates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for mode, cfg := range modes {
		fluctuation := (m.rng.Float64()*2 - 1) * cfg.volatility
		rate := cfg.baseRate * (1 + fluctuation)
		if rate < modes[ModeLow].baseRate {
			rate = modes[ModeLow].baseRate
		}
		m.rates[mode] = rate
	}
}

// Accumulate adds mined money to the lifetime counter.
func (m *Miner) Accumulate(amount float64) {
	if amount <= 0 {
		return
	}
	m.mu.Lock()
	m.st.TotalMined = game.SanitizeCount(m.st.TotalMined + amount)
	m.mu.Unlock()
}

// TotalMined returns the lifetime mined amount.
func (m *Miner) TotalMined() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.TotalMined
}

// Reset restores the miner to its install defaults and persists that.
func (m *Miner) Reset() {
	m.mu.Lock()
	m.st = state{Mode: ModeLow, LastUpdate: time.Now().UnixMilli()}
	m.rates = map[Mode]float64{ModeLow: modes[ModeLow].baseRate, ModeHigh: modes[ModeHigh].baseRate}
	m.mu.Unlock()
	m.Save()
}
