package engine

import (
	"encoding/json"

	"github.com/botnet-empire/server/internal/game"
)

// Snapshot is the client-facing view: the full state plus the derived
// rates the UI renders every frame.
type Snapshot struct {
	State          *game.State    `json:"state"`
	BPS            float64        `json:"bps"`
	MPS            float64        `json:"mps"`
	PrestigeBonus  float64        `json:"prestigeBonus"`
	EventRemaining int64          `json:"eventRemainingMs"`
	Crypto         *CryptoStatus  `json:"crypto,omitempty"`
}

// CryptoStatus mirrors the mining collaborator for the UI.
type CryptoStatus struct {
	Active bool    `json:"active"`
	Mode   string  `json:"mode"`
	Rate   float64 `json:"rate"`
}

// Snapshot renders a consistent copy of the state with derived rates.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var remaining int64
	if s.st.ActiveEvent != game.EventNone && s.st.EventAcknowledged {
		remaining = s.st.EventEndTime - s.nowMs()
		if remaining < 0 {
			remaining = 0
		}
	}

	snap := Snapshot{
		State:          s.st.Clone(),
		BPS:            s.calculateBPS(1),
		MPS:            s.calculateMPS(1),
		PrestigeBonus:  s.prestigeBonus(),
		EventRemaining: remaining,
	}
	if s.miner != nil {
		snap.Crypto = &CryptoStatus{
			Active: s.miner.Active(),
			Mode:   s.miner.Mode(),
			Rate:   s.miner.CurrentRate(s.miner.Mode()),
		}
	}
	return snap
}

// SaveSnapshot serializes the raw state document for persistence.
// With truncateGraph set the history series is dropped, the documented
// remediation when a save exceeds the size ceiling.
func (s *Session) SaveSnapshot(truncateGraph bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.st.Clone()
	if truncateGraph {
		st.MoneyGraph = []float64{}
	}
	return json.Marshal(st)
}

// EmergencyPayload is the minimal progress-preserving document written
// when a full save cannot fit: core balances only, no history, no
// cosmetics.
func (s *Session) EmergencyPayload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	min := map[string]any{
		"version":     s.st.Version,
		"bots":        s.st.Bots,
		"money":       s.st.Money,
		"prestige":    s.st.Prestige,
		"skills":      s.st.Skills,
		"upgrades":    s.st.Upgrades,
		"tools":       s.st.Tools,
		"totalEarned": s.st.TotalEarned,
	}
	raw, err := json.Marshal(min)
	if err != nil {
		return nil
	}
	return raw
}
