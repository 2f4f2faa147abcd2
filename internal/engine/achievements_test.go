package engine

import (
	"testing"

	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/game"
)

func TestAchievementEarnedAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	s.State().TotalClicks = 49
	s.EvaluateAchievements()
	if s.State().Achievements["clicks50"] {
		t.Error("Expected no achievement below the threshold")
	}

	s.State().TotalClicks = 50
	s.EvaluateAchievements()
	if !s.State().Achievements["clicks50"] {
		t.Error("Expected the click achievement at the threshold")
	}

	recent := env.feed.Recent(5)
	if len(recent) == 0 || recent[len(recent)-1].Kind != events.KindAchievement {
		t.Error("Expected an achievement feed entry")
	}
}

func TestAchievementsAreMonotonic(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	s.State().TotalClicks = 50
	s.EvaluateAchievements()
	if !s.State().Achievements["clicks50"] {
		t.Fatal("Expected the achievement earned")
	}

	s.State().TotalClicks = 0
	s.EvaluateAchievements()
	if !s.State().Achievements["clicks50"] {
		t.Error("Expected the achievement to survive the metric dropping")
	}
}

func TestAchievementBonusAppliesToRevenue(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	s.State().TotalBotsSold = 1
	s.EvaluateAchievements()
	if !s.State().Achievements["sold1"] {
		t.Fatal("Expected the first-sale achievement earned")
	}

	s.mu.Lock()
	bonus := s.achievementBonus("income")
	s.mu.Unlock()
	if bonus != 1.01 {
		t.Errorf("Expected income bonus 1.01, got %v", bonus)
	}
}

func TestPrestigeConditionMetric(t *testing.T) {
	env := newTestEnv(t)
	s := env.session

	s.State().Prestige = 1
	s.EvaluateAchievements()
	if !s.State().Achievements["prestige1"] {
		t.Error("Expected the prestige achievement at level 1")
	}
}

func TestSnapshotCarriesDerivedRates(t *testing.T) {
	env := newTestEnv(t)
	s := env.session
	s.State().Tools["gen"] = &game.ToolOwnership{Active: true}
	s.State().Tools["cash"] = &game.ToolOwnership{Active: true}

	snap := s.Snapshot()
	if snap.BPS != 10 || snap.MPS != 5 {
		t.Errorf("Expected derived rates 10/5, got %v/%v", snap.BPS, snap.MPS)
	}

	// The snapshot is a copy; mutating it never touches the live state.
	snap.State.Money = 999
	if s.State().Money != 0 {
		t.Errorf("Expected the live state untouched, got %v", s.State().Money)
	}
}
