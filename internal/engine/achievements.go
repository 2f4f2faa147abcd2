package engine

import (
	"github.com/botnet-empire/server/internal/catalog"
	"github.com/botnet-empire/server/internal/events"
)

// EvaluateAchievements checks every unearned achievement against the
// current state. Earned flags are monotonic: once set, never revoked,
// even if the metric later drops below the threshold.
func (s *Session) EvaluateAchievements() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earned []catalog.Achievement
	for _, a := range s.cat.Achievements {
		if s.st.Achievements[a.ID] {
			continue
		}
		if s.conditionsMet(a.Conditions) {
			s.st.Achievements[a.ID] = true
			earned = append(earned, a)
		}
	}
	if len(earned) == 0 {
		return
	}

	for _, a := range earned {
		s.logger.Event("ACHIEVEMENT", a.ID)
		if s.feed != nil {
			s.feed.Append(events.KindAchievement, a.Text, map[string]any{
				"id":     a.ID,
				"reward": a.Reward,
				"bonus":  a.Bonus,
			})
		}
	}
	s.requestSave(s.nowMs())
}

// conditionsMet evaluates a declarative predicate: every clause must
// hold. Callers hold s.mu.
func (s *Session) conditionsMet(conds []catalog.Condition) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		if !s.conditionMet(c) {
			return false
		}
	}
	return true
}

func (s *Session) conditionMet(c catalog.Condition) bool {
	switch c.Metric {
	case "upgrade_owned":
		return s.st.Upgrades[c.ID]
	case "tool_owned":
		if c.ID != "" {
			_, ok := s.st.Tools[c.ID]
			return ok
		}
		for _, id := range c.IDs {
			if _, ok := s.st.Tools[id]; ok {
				return true
			}
		}
		return false
	case "mobile_unlocked":
		return s.st.Unlocks.Mobile
	}

	var v float64
	switch c.Metric {
	case "clicks":
		v = s.st.TotalClicks
	case "sold":
		v = s.st.TotalBotsSold
	case "earned":
		v = s.st.TotalEarned
	case "bots_total":
		v = s.st.Bots.Total()
	case "bps":
		v = s.calculateBPS(1)
	case "prestige":
		v = float64(s.st.Prestige)
	case "tools_count":
		v = float64(len(s.st.Tools))
	case "upgrades_count":
		v = float64(len(s.st.Upgrades))
	default:
		return false
	}

	if c.Min != nil && v < *c.Min {
		return false
	}
	if c.Below != nil && v >= *c.Below {
		return false
	}
	return c.Min != nil || c.Below != nil
}
