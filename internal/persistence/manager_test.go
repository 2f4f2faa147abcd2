package persistence

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/infra/storage"
	"github.com/botnet-empire/server/internal/platform/logger"
)

// fakeProvider serves fixed documents for the size-degradation paths.
type fakeProvider struct {
	full      []byte
	truncated []byte
	emergency []byte
}

func (p *fakeProvider) SaveSnapshot(truncateGraph bool) ([]byte, error) {
	if truncateGraph {
		return p.truncated, nil
	}
	return p.full, nil
}

func (p *fakeProvider) EmergencyPayload() []byte { return p.emergency }

func smallDoc() []byte {
	return []byte(`{"version":"` + game.SchemaVersion + `","money":42}`)
}

func TestSaveWritesDocumentAndVersionMarker(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, &fakeProvider{full: smallDoc()}, logger.NewLogger())

	if err := m.SaveNow(); err != nil {
		t.Fatalf("Expected save to succeed, got %v", err)
	}

	saved, err := store.Get(SaveKey)
	if err != nil || saved != string(smallDoc()) {
		t.Errorf("Expected the document under %s, got %q (%v)", SaveKey, saved, err)
	}
	version, err := store.Get(VersionKey)
	if err != nil || version != game.SchemaVersion {
		t.Errorf("Expected the version marker %s, got %q (%v)", game.SchemaVersion, version, err)
	}
}

func TestSaveTruncatesOversizedDocument(t *testing.T) {
	store := storage.NewMemoryStore()
	oversized := []byte(strings.Repeat("x", MaxSaveBytes+1))
	m := NewManager(store, &fakeProvider{full: oversized, truncated: smallDoc()}, logger.NewLogger())

	if err := m.SaveNow(); err != nil {
		t.Fatalf("Expected the truncated retry to succeed, got %v", err)
	}
	saved, _ := store.Get(SaveKey)
	if saved != string(smallDoc()) {
		t.Error("Expected the graph-truncated document written")
	}
}

func TestSaveDegradesToEmergencyPayload(t *testing.T) {
	store := storage.NewMemoryStore()
	oversized := []byte(strings.Repeat("x", MaxSaveBytes+1))
	emergency := []byte(`{"money":42}`)
	m := NewManager(store, &fakeProvider{full: oversized, truncated: oversized, emergency: emergency}, logger.NewLogger())

	if err := m.SaveNow(); err != nil {
		t.Fatalf("Expected the emergency save to succeed, got %v", err)
	}
	saved, _ := store.Get(SaveKey)
	if saved != string(emergency) {
		t.Error("Expected the minimal payload written when nothing else fits")
	}
}

func TestSaveEvictsBackupOnFullMedium(t *testing.T) {
	// Capacity fits the emergency payload only after the stale backup
	// is evicted.
	store := storage.NewBoundedMemoryStore(100)
	if err := store.Set(BackupPrefix+"1000", strings.Repeat("b", 90)); err != nil {
		t.Fatal(err)
	}

	doc := []byte(strings.Repeat("y", 80))
	emergency := []byte(`{"money":1}`)
	m := NewManager(store, &fakeProvider{full: doc, truncated: doc, emergency: emergency}, logger.NewLogger())

	if err := m.SaveNow(); err != nil {
		t.Fatalf("Expected eviction plus emergency save to succeed, got %v", err)
	}
	if _, err := store.Get(BackupPrefix + "1000"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("Expected the stale backup evicted")
	}
	saved, _ := store.Get(SaveKey)
	if saved != string(emergency) {
		t.Errorf("Expected the emergency payload written, got %q", saved)
	}
}

func TestBackupRotationKeepsFive(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, &fakeProvider{full: smallDoc()}, logger.NewLogger())

	now := time.UnixMilli(1_700_000_000_000)
	m.SetClock(func() time.Time { return now })

	for i := 0; i < 8; i++ {
		if err := m.SaveNow(); err != nil {
			t.Fatal(err)
		}
		now = now.Add(6 * time.Minute)
	}

	keys, err := store.Keys(BackupPrefix)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 5 {
		t.Fatalf("Expected exactly 5 backups kept, got %d", len(keys))
	}

	sortBackupKeys(keys)
	oldest := backupTimestamp(keys[0])
	if oldest <= 1_700_000_000_000+2*6*60*1000-1 {
		t.Errorf("Expected the oldest backups rotated out, oldest is %d", oldest)
	}
}

func TestBackupsRoundTripThroughCompression(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, &fakeProvider{full: smallDoc()}, logger.NewLogger())

	now := time.UnixMilli(1_700_000_000_000)
	m.SetClock(func() time.Time { return now })

	if err := m.SaveNow(); err != nil {
		t.Fatal(err)
	}

	raw, err := m.RestoreLatestBackup()
	if err != nil {
		t.Fatalf("Expected a restorable backup, got %v", err)
	}
	if string(raw) != string(smallDoc()) {
		t.Errorf("Expected the backup to round-trip, got %q", raw)
	}

	stored, _ := store.Get(BackupPrefix + "1700000000000")
	if !strings.HasPrefix(stored, "zstd:") {
		t.Error("Expected the stored backup compressed and marked")
	}
}

func TestRestoreToleratesLegacyPlainBackups(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, &fakeProvider{full: smallDoc()}, logger.NewLogger())

	if err := store.Set(BackupPrefix+"1000", string(smallDoc())); err != nil {
		t.Fatal(err)
	}
	raw, err := m.RestoreLatestBackup()
	if err != nil {
		t.Fatalf("Expected a plain-JSON backup restorable, got %v", err)
	}
	if string(raw) != string(smallDoc()) {
		t.Errorf("Expected the legacy backup returned as-is, got %q", raw)
	}
}

func TestRequestSaveCoalesces(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store, &fakeProvider{full: smallDoc()}, logger.NewLogger())

	for i := 0; i < 50; i++ {
		m.RequestSave()
	}

	// Wait for the writer to drain.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		idle := !m.inFlight && !m.pending
		m.mu.Unlock()
		if idle {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	saved, err := store.Get(SaveKey)
	if err != nil || saved != string(smallDoc()) {
		t.Errorf("Expected the coalesced burst to land one document, got %q (%v)", saved, err)
	}
}
