package persistence

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/infra/storage"
	"github.com/botnet-empire/server/internal/platform/logger"
	"github.com/botnet-empire/server/internal/platform/metrics"
)

// StateProvider is the narrow surface the save pipeline reads from the
// session.
type StateProvider interface {
	// SaveSnapshot serializes the current state; truncateGraph drops
	// the history series for a smaller document.
	SaveSnapshot(truncateGraph bool) ([]byte, error)
	// EmergencyPayload is the minimal core-progress document.
	EmergencyPayload() []byte
}

// Backup cadence.
const (
	backupInterval = 5 * time.Minute
	backupsKept    = 5
)

// Manager funnels every save request through one writer goroutine. A
// request arriving while a write is in flight coalesces into a single
// pending follow-up; the queue is never deeper than one.
type Manager struct {
	store    storage.Store
	provider StateProvider
	logger   *logger.Logger

	mu       sync.Mutex
	inFlight bool
	pending  bool

	lastBackup time.Time
	clock      func() time.Time
}

// NewManager wires the save pipeline.
func NewManager(store storage.Store, provider StateProvider, log *logger.Logger) *Manager {
	return &Manager{
		store:    store,
		provider: provider,
		logger:   log,
		clock:    time.Now,
	}
}

// SetClock overrides wall-clock time, for tests.
func (m *Manager) SetClock(clock func() time.Time) { m.clock = clock }

// RequestSave schedules a write. Concurrent requests coalesce: at most
// one write runs and at most one more is queued behind it.
func (m *Manager) RequestSave() {
	metrics.Get().RecordSaveRequest()

	m.mu.Lock()
	if m.inFlight {
		if !m.pending {
			m.pending = true
		} else {
			metrics.Get().RecordSaveCoalesced()
		}
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.mu.Unlock()

	go m.writeLoop()
}

// SaveNow performs a synchronous write, for shutdown paths.
func (m *Manager) SaveNow() error {
	m.mu.Lock()
	for m.inFlight {
		// A writer is running; its pending slot will carry our data.
		m.pending = true
		m.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		m.mu.Lock()
	}
	m.inFlight = true
	m.mu.Unlock()

	err := m.doSave()

	m.mu.Lock()
	m.inFlight = false
	m.pending = false
	m.mu.Unlock()
	return err
}

func (m *Manager) writeLoop() {
	for {
		if err := m.doSave(); err != nil {
			m.logger.Error("Save failed: %v", err)
		}

		m.mu.Lock()
		if m.pending {
			m.pending = false
			m.mu.Unlock()
			continue
		}
		m.inFlight = false
		m.mu.Unlock()
		return
	}
}

// doSave serializes and writes the document, degrading stepwise:
// full document, graph-truncated document, then emergency payload with
// stale-backup eviction.
func (m *Manager) doSave() error {
	raw, err := m.provider.SaveSnapshot(false)
	if err != nil {
		metrics.Get().RecordSave(err)
		return fmt.Errorf("serialize: %w", err)
	}

	if len(raw) > MaxSaveBytes {
		m.logger.Warn("Save document %d bytes exceeds ceiling, truncating history.", len(raw))
		raw, err = m.provider.SaveSnapshot(true)
		if err != nil {
			metrics.Get().RecordSave(err)
			return fmt.Errorf("serialize truncated: %w", err)
		}
		if len(raw) > MaxSaveBytes {
			return m.emergencySave()
		}
	}

	if err := m.store.Set(SaveKey, string(raw)); err != nil {
		if errors.Is(err, storage.ErrCapacity) {
			return m.emergencySave()
		}
		metrics.Get().RecordSave(err)
		return fmt.Errorf("write: %w", err)
	}
	if err := m.store.Set(VersionKey, game.SchemaVersion); err != nil {
		m.logger.Warn("Version marker write failed: %v", err)
	}

	metrics.Get().RecordSave(nil)
	m.maybeBackup(raw)
	return nil
}

// emergencySave evicts the oldest backup to free space and writes the
// minimal payload. Progress beats history when the medium is full.
func (m *Manager) emergencySave() error {
	metrics.Get().RecordEmergencySave()
	m.logger.Warn("Entering emergency save: evicting oldest backup and writing minimal payload.")

	if keys, err := m.backupKeys(); err == nil && len(keys) > 0 {
		_ = m.store.Delete(keys[0])
	}

	payload := m.provider.EmergencyPayload()
	if payload == nil {
		err := errors.New("emergency payload unavailable")
		metrics.Get().RecordSave(err)
		return err
	}
	if err := m.store.Set(SaveKey, string(payload)); err != nil {
		metrics.Get().RecordSave(err)
		return fmt.Errorf("emergency write: %w", err)
	}
	metrics.Get().RecordSave(nil)
	return nil
}

// maybeBackup writes a compressed rotating backup at most once per
// interval, keeping the newest five.
func (m *Manager) maybeBackup(raw []byte) {
	now := m.clock()
	if now.Sub(m.lastBackup) < backupInterval {
		return
	}
	m.lastBackup = now

	key := BackupPrefix + strconv.FormatInt(now.UnixMilli(), 10)
	if err := m.store.Set(key, encodeBackup(raw)); err != nil {
		m.logger.Warn("Backup write failed: %v", err)
		return
	}
	metrics.Get().RecordBackup()

	keys, err := m.backupKeys()
	if err != nil {
		return
	}
	for len(keys) > backupsKept {
		_ = m.store.Delete(keys[0])
		keys = keys[1:]
	}
}

// backupKeys returns backup keys sorted oldest first.
func (m *Manager) backupKeys() ([]string, error) {
	keys, err := m.store.Keys(BackupPrefix)
	if err != nil {
		return nil, err
	}
	sortBackupKeys(keys)
	return keys, nil
}
