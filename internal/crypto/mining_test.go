package crypto

import (
	"math"
	"math/rand"
	"testing"

	"github.com/botnet-empire/server/internal/infra/storage"
)

func newTestMiner() (*Miner, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewMiner(store, rand.New(rand.NewSource(1))), store
}

func TestMinerDefaults(t *testing.T) {
	m, _ := newTestMiner()

	if m.Active() {
		t.Error("Expected mining inactive by default")
	}
	if m.Mode() != string(ModeLow) {
		t.Errorf("Expected low-risk mode, got %s", m.Mode())
	}
	if m.CurrentMultiplier() != 1 {
		t.Errorf("Expected no bot penalty while inactive, got %v", m.CurrentMultiplier())
	}
	if m.TotalMined() != 0 {
		t.Errorf("Expected nothing mined, got %v", m.TotalMined())
	}
}

func TestMultiplierPerMode(t *testing.T) {
	m, _ := newTestMiner()
	m.SetActive(true)

	if m.CurrentMultiplier() != 0.7 {
		t.Errorf("Expected low-risk penalty 0.7, got %v", m.CurrentMultiplier())
	}
	m.SetMode(ModeHigh)
	if m.CurrentMultiplier() != 0.5 {
		t.Errorf("Expected high-risk penalty 0.5, got %v", m.CurrentMultiplier())
	}
	m.SetActive(false)
	if m.CurrentMultiplier() != 1 {
		t.Errorf("Expected penalty lifted when inactive, got %v", m.CurrentMultiplier())
	}
}

func TestSetModeIgnoresUnknownProfile(t *testing.T) {
	m, _ := newTestMiner()
	m.SetMode(Mode("reckless"))
	if m.Mode() != string(ModeLow) {
		t.Errorf("Expected unknown mode ignored, got %s", m.Mode())
	}
}

func TestCurrentRateDefaultsAndFallback(t *testing.T) {
	m, _ := newTestMiner()

	if m.CurrentRate("low") != 0.0001 {
		t.Errorf("Expected low base rate, got %v", m.CurrentRate("low"))
	}
	if m.CurrentRate("high") != 0.0005 {
		t.Errorf("Expected high base rate, got %v", m.CurrentRate("high"))
	}
	if m.CurrentRate("nonsense") != 0.0001 {
		t.Errorf("Expected unknown modes floored to the low base, got %v", m.CurrentRate("nonsense"))
	}
}

func TestRollRatesStaysWithinBand(t *testing.T) {
	m, _ := newTestMiner()

	for i := 0; i < 200; i++ {
		m.RollRates()
		low := m.CurrentRate("low")
		high := m.CurrentRate("high")
		if low < 0.0001 || low > 0.0001*1.2+1e-12 {
			t.Fatalf("Low rate out of band: %v", low)
		}
		if high < 0.0001 || high > 0.0005*1.5+1e-12 {
			t.Fatalf("High rate out of band: %v", high)
		}
	}
}

func TestAccumulate(t *testing.T) {
	m, _ := newTestMiner()
	m.Accumulate(10)
	m.Accumulate(2.5)
	m.Accumulate(-100)
	m.Accumulate(0)

	if math.Abs(m.TotalMined()-12.5) > 1e-9 {
		t.Errorf("Expected 12.5 mined, got %v", m.TotalMined())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, store := newTestMiner()
	m.SetActive(true)
	m.SetMode(ModeHigh)
	m.Accumulate(99)
	m.Save()

	restored := NewMiner(store, rand.New(rand.NewSource(2)))
	restored.Load()

	if !restored.Active() {
		t.Error("Expected the active flag restored")
	}
	if restored.Mode() != string(ModeHigh) {
		t.Errorf("Expected high-risk mode restored, got %s", restored.Mode())
	}
	if restored.TotalMined() != 99 {
		t.Errorf("Expected the mined total restored, got %v", restored.TotalMined())
	}
}

func TestLoadToleratesCorruptDocument(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(SaveKey, "not json")

	m := NewMiner(store, rand.New(rand.NewSource(1)))
	m.Load()

	if m.Active() || m.Mode() != string(ModeLow) {
		t.Error("Expected defaults kept on a corrupt document")
	}
}

func TestLoadRepairsHostileDocument(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(SaveKey, `{"active":true,"mode":"reckless","totalMined":-50}`)

	m := NewMiner(store, rand.New(rand.NewSource(1)))
	m.Load()

	if m.Mode() != string(ModeLow) {
		t.Errorf("Expected unknown mode repaired to low, got %s", m.Mode())
	}
	if m.TotalMined() != 0 {
		t.Errorf("Expected negative total repaired, got %v", m.TotalMined())
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m, store := newTestMiner()
	m.SetActive(true)
	m.SetMode(ModeHigh)
	m.Accumulate(7)

	m.Reset()

	if m.Active() || m.Mode() != string(ModeLow) || m.TotalMined() != 0 {
		t.Error("Expected install defaults after reset")
	}

	restored := NewMiner(store, rand.New(rand.NewSource(1)))
	restored.Load()
	if restored.Active() || restored.TotalMined() != 0 {
		t.Error("Expected the reset persisted")
	}
}
