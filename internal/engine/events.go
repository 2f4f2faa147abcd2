package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/game"
)

// eventAutoAckMs is the grace after which an ignored event acknowledges
// itself, so an idle or disconnected player is never gated forever.
const eventAutoAckMs = 120000

// ErrNoActiveEvent is returned when an acknowledgement arrives with no
// event pending.
var ErrNoActiveEvent = errors.New("no active event")

// RunEventScheduler advances the market-event state machine: expires an
// acknowledged event whose window passed, auto-acknowledges a stale
// unacknowledged one, and fires a new event once its scheduled time
// arrives.
func (s *Session) RunEventScheduler(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()

	if s.st.ActiveEvent != game.EventNone {
		if !s.st.EventAcknowledged {
			if s.eventTriggeredMs > 0 && nowMs-s.eventTriggeredMs >= eventAutoAckMs {
				s.acknowledgeLocked(nowMs)
				s.logger.Warn("event %q auto-acknowledged after grace period", s.st.ActiveEvent)
			}
			return
		}
		if nowMs >= s.st.EventEndTime {
			s.expireEventLocked(nowMs)
		}
		return
	}

	if s.st.NextEventTime > 0 && nowMs >= s.st.NextEventTime {
		s.triggerEventLocked(nowMs)
	}
}

// AcknowledgeEvent accepts the pending event, starting its effect
// window.
func (s *Session) AcknowledgeEvent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.ActiveEvent == game.EventNone {
		return ErrNoActiveEvent
	}
	if s.st.EventAcknowledged {
		return nil
	}
	s.acknowledgeLocked(s.nowMs())
	return nil
}

// ActiveEventInfo reports the current event and its remaining window in
// milliseconds (0 when unacknowledged or dormant).
func (s *Session) ActiveEventInfo() (game.EventType, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.ActiveEvent == game.EventNone {
		return game.EventNone, 0
	}
	if !s.st.EventAcknowledged {
		return s.st.ActiveEvent, 0
	}
	remaining := s.st.EventEndTime - s.nowMs()
	if remaining < 0 {
		remaining = 0
	}
	return s.st.ActiveEvent, remaining
}

func (s *Session) acknowledgeLocked(nowMs int64) {
	s.st.EventAcknowledged = true
	s.st.EventEndTime = nowMs + s.st.EventDuration
}

func (s *Session) triggerEventLocked(nowMs int64) {
	if len(s.cat.Events) == 0 {
		s.st.NextEventTime = 0
		return
	}
	ev := s.cat.Events[s.rng.Intn(len(s.cat.Events))]

	s.st.ActiveEvent = game.EventType(ev.Type)
	s.st.EventEffect = ev.Effect
	s.st.EventDuration = ev.Duration
	s.st.EventEndTime = 0
	s.st.EventAcknowledged = false
	s.eventTriggeredMs = nowMs

	s.logger.Event("MARKET_EVENT", fmt.Sprintf("%s triggered", ev.Type))
	if s.feed != nil {
		s.feed.Append(events.KindMarketEvent, ev.Title, map[string]any{
			"type":        ev.Type,
			"text":        ev.Text,
			"effect":      ev.Effect,
			"duration_ms": ev.Duration,
		})
	}
	s.requestSave(nowMs)
}

func (s *Session) expireEventLocked(nowMs int64) {
	expired := s.st.ActiveEvent
	duration := s.st.EventDuration

	s.st.ActiveEvent = game.EventNone
	s.st.EventEffect = ""
	s.st.EventDuration = 0
	s.st.EventEndTime = 0
	s.st.EventAcknowledged = false
	s.eventTriggeredMs = 0

	// Next event lands a full window plus a 5-10 minute gap from now.
	gap := int64(300000 + s.rng.Float64()*300000)
	s.st.NextEventTime = nowMs + duration + gap

	s.logger.Event("EVENT_EXPIRED", string(expired))
	if s.feed != nil {
		s.feed.Append(events.KindEventExpired, fmt.Sprintf("%s ended", expired), nil)
	}
	s.requestSave(nowMs)
}
