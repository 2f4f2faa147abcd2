package game

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func testState() *State {
	return NewState(time.UnixMilli(1_700_000_000_000), rand.New(rand.NewSource(1)))
}

func TestNewStateDefaults(t *testing.T) {
	st := testState()

	if st.Version != SchemaVersion {
		t.Errorf("Expected version %s, got %s", SchemaVersion, st.Version)
	}
	if st.Bots.Total() != 0 || st.Money != 0 {
		t.Errorf("Expected empty balances, got %v bots and %v money", st.Bots.Total(), st.Money)
	}
	if st.Prices != DefaultPrices() {
		t.Errorf("Expected default price table, got %+v", st.Prices)
	}

	gap := st.NextEventTime - 1_700_000_000_000
	if gap < 300000 || gap > 600000 {
		t.Errorf("Expected first event 5-10 minutes out, got %dms", gap)
	}
}

func TestSanitizeRepairsCorruptState(t *testing.T) {
	st := testState()
	st.Money = math.NaN()
	st.Bots.T1 = -50
	st.Prestige = MaxPrestigeLevel + 1
	st.Prices.T3 = 9999
	st.Tools = nil
	st.Upgrades = nil
	st.Achievements = nil
	st.ClickCooldowns = nil
	st.MoneyGraph = nil
	st.ActiveEvent = "solar_flare"
	st.EventAcknowledged = true

	st.Sanitize()

	if st.Money != 0 {
		t.Errorf("Expected NaN money repaired to 0, got %v", st.Money)
	}
	if st.Bots.T1 != 0 {
		t.Errorf("Expected negative tier repaired to 0, got %v", st.Bots.T1)
	}
	if st.Prestige != MaxPrestigeLevel {
		t.Errorf("Expected prestige clamped to cap, got %d", st.Prestige)
	}
	if st.Prices.T3 != MaxPrice {
		t.Errorf("Expected price clamped to %v, got %v", float64(MaxPrice), st.Prices.T3)
	}
	if st.Tools == nil || st.Upgrades == nil || st.Achievements == nil || st.ClickCooldowns == nil || st.MoneyGraph == nil {
		t.Error("Expected nil containers replaced with empty ones")
	}
	if st.ActiveEvent != EventNone {
		t.Errorf("Expected unknown event type cleared, got %q", st.ActiveEvent)
	}
	if st.EventAcknowledged {
		t.Error("Expected acknowledgement cleared when no event is active")
	}
}

func TestSanitizeTrimsGraph(t *testing.T) {
	st := testState()
	st.MoneyGraph = make([]float64, GraphMaxPoints+100)
	for i := range st.MoneyGraph {
		st.MoneyGraph[i] = float64(i)
	}

	st.Sanitize()

	if len(st.MoneyGraph) != GraphMaxPoints {
		t.Errorf("Expected graph trimmed to %d points, got %d", GraphMaxPoints, len(st.MoneyGraph))
	}
	if st.MoneyGraph[0] != 100 {
		t.Errorf("Expected oldest points dropped, graph now starts at %v", st.MoneyGraph[0])
	}
}

func TestCloneIsIndependent(t *testing.T) {
	st := testState()
	st.Tools["starter"] = &ToolOwnership{Active: true, Clicks: 3}
	st.Upgrades["buildPC"] = true
	st.MoneyGraph = []float64{1, 2, 3}

	cp := st.Clone()
	cp.Tools["starter"].Clicks = 40
	cp.Upgrades["buildPC"] = false
	cp.MoneyGraph[0] = 99
	cp.Money = 1234

	if st.Tools["starter"].Clicks != 3 {
		t.Errorf("Expected original tool record untouched, got %d clicks", st.Tools["starter"].Clicks)
	}
	if !st.Upgrades["buildPC"] {
		t.Error("Expected original upgrade flag untouched")
	}
	if st.MoneyGraph[0] != 1 {
		t.Errorf("Expected original graph untouched, got %v", st.MoneyGraph[0])
	}
	if st.Money != 0 {
		t.Errorf("Expected original money untouched, got %v", st.Money)
	}
}
