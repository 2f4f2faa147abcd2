// Package events provides the append-only feed of notable game
// happenings: market events firing and expiring, achievements earned,
// prestige resets, offline summaries. The network layer replays it to
// newly connected clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind categorizes a feed entry.
type Kind string

const (
	KindMarketEvent  Kind = "MARKET_EVENT"
	KindEventExpired Kind = "EVENT_EXPIRED"
	KindAchievement  Kind = "ACHIEVEMENT"
	KindPrestige     Kind = "PRESTIGE"
	KindOffline      Kind = "OFFLINE_SUMMARY"
	KindPurchase     Kind = "PURCHASE"
)

// Entry is an immutable record of one happening.
type Entry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      Kind        `json:"kind"`
	Detail    string      `json:"detail"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Persister defines how an entry is durably stored.
type Persister interface {
	Append(e Entry) error
}

// Feed is the in-memory append-only log, with optional write-through
// persistence.
type Feed struct {
	mu        sync.RWMutex
	entries   []Entry
	persister Persister
	maxKept   int
}

// NewFeed creates a feed keeping at most maxKept recent entries in
// memory (older ones survive only in the persister).
func NewFeed(persister Persister, maxKept int) *Feed {
	if maxKept <= 0 {
		maxKept = 256
	}
	return &Feed{persister: persister, maxKept: maxKept}
}

// Append records a new entry. Persistence failures are swallowed; the
// in-memory feed is the UI's source of truth.
func (f *Feed) Append(kind Kind, detail string, payload interface{}) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Kind:      kind,
		Detail:    detail,
		Payload:   payload,
	}
	f.mu.Lock()
	f.entries = append(f.entries, e)
	if len(f.entries) > f.maxKept {
		f.entries = f.entries[len(f.entries)-f.maxKept:]
	}
	f.mu.Unlock()

	if f.persister != nil {
		go func(e Entry) {
			_ = f.persister.Append(e)
		}(e)
	}
	return e
}

// Recent returns up to n most recent entries, oldest first.
func (f *Feed) Recent(n int) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if n <= 0 || n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]Entry, n)
	copy(out, f.entries[len(f.entries)-n:])
	return out
}

// Len returns the number of entries currently held in memory.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
