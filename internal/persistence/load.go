package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/infra/storage"
	"github.com/botnet-empire/server/internal/platform/logger"
)

// migrationStep transforms a save document in place from one schema
// version to the next. Steps form a linear chain; loading walks it from
// the document's version to the current one.
type migrationStep struct {
	from    string
	to      string
	migrate func(doc map[string]any)
}

// The chain covers every schema the save key has ever carried. A
// document with no version field is treated as the oldest.
var migrationChain = []migrationStep{
	{
		from: "1.0.0",
		to:   "1.1.0",
		migrate: func(doc map[string]any) {
			// 1.1.0 introduced feature unlocks; older saves get the
			// default locked set.
			if _, ok := doc["unlocks"]; !ok {
				doc["unlocks"] = map[string]any{"mobile": false}
			}
		},
	},
	{
		from: "1.1.0",
		to:   "1.2.0",
		migrate: func(doc map[string]any) {
			// 1.2.0 split lifetime counters out of the balance fields.
			if _, ok := doc["totalEarned"]; !ok {
				doc["totalEarned"] = doc["money"]
			}
			if _, ok := doc["totalBotsSold"]; !ok {
				doc["totalBotsSold"] = float64(0)
			}
		},
	},
	{
		from: "1.2.0",
		to:   game.SchemaVersion,
		migrate: func(doc map[string]any) {
			// 1.2.3 added the acknowledge-gated event fields.
			if _, ok := doc["eventAcknowledged"]; !ok {
				doc["eventAcknowledged"] = false
			}
			if _, ok := doc["nextEventTime"]; !ok {
				doc["nextEventTime"] = float64(0)
			}
		},
	},
}

// Loader reads and repairs the save document on startup.
type Loader struct {
	store  storage.Store
	logger *logger.Logger
	rng    *rand.Rand
	clock  func() time.Time
}

// NewLoader wires the startup load path.
func NewLoader(store storage.Store, log *logger.Logger, rng *rand.Rand) *Loader {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Loader{store: store, logger: log, rng: rng, clock: time.Now}
}

// SetClock overrides wall-clock time, for tests.
func (l *Loader) SetClock(clock func() time.Time) { l.clock = clock }

// Load returns a playable state, whatever the medium holds: it recovers
// an interrupted migration, migrates old schemas, falls back through
// backups on corruption, and only as a last resort starts fresh. It
// never returns an error a caller must handle; degradation is logged.
func (l *Loader) Load() *game.State {
	l.recoverInterruptedMigration()

	raw, err := l.store.Get(SaveKey)
	if errors.Is(err, storage.ErrNotFound) {
		l.logger.Info("No save found, starting fresh.")
		return game.NewState(l.clock(), l.rng)
	}
	if err != nil {
		l.logger.Error("Save read failed: %v", err)
		return l.loadFromBackups()
	}

	st, err := l.parseAndMigrate([]byte(raw))
	if err != nil {
		l.logger.Error("Save corrupt: %v", err)
		return l.loadFromBackups()
	}
	return st
}

// recoverInterruptedMigration restores the pre-migration backup when a
// previous run died mid-migration, then clears the marker.
func (l *Loader) recoverInterruptedMigration() {
	if _, err := l.store.Get(MigrationFlagKey); err != nil {
		return
	}
	l.logger.Warn("Interrupted migration detected, restoring pre-migration backup.")
	if backup, err := l.store.Get(MigrationBackupKey); err == nil {
		if err := l.store.Set(SaveKey, backup); err != nil {
			l.logger.Error("Pre-migration restore failed: %v", err)
		}
	}
	_ = l.store.Delete(MigrationFlagKey)
}

// parseAndMigrate decodes a raw document, walks the migration chain if
// its schema is old, merges it over install defaults, and sanitizes.
func (l *Loader) parseAndMigrate(raw []byte) (*game.State, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode: null document")
	}

	version, _ := doc["version"].(string)
	if version == "" {
		version = "1.0.0"
	}

	if version != game.SchemaVersion {
		if err := l.migrate(doc, version); err != nil {
			return nil, err
		}
	}
	doc["version"] = game.SchemaVersion

	merged := mergeWithDefaults(doc, defaultsDocument(l.clock(), l.rng))

	buf, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("re-encode: %w", err)
	}
	st := &game.State{}
	if err := json.Unmarshal(buf, st); err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}
	st.Sanitize()
	return st, nil
}

// migrate walks the chain from the document's version, guarded by the
// interruption marker so a crash mid-chain is recoverable.
func (l *Loader) migrate(doc map[string]any, version string) error {
	start := -1
	for i, step := range migrationChain {
		if step.from == version {
			start = i
			break
		}
	}
	if start < 0 {
		return fmt.Errorf("unknown schema version %q", version)
	}

	if raw, err := json.Marshal(doc); err == nil {
		if err := l.store.Set(MigrationBackupKey, string(raw)); err != nil {
			l.logger.Warn("Migration backup write failed: %v", err)
		}
	}
	if err := l.store.Set(MigrationFlagKey, "1"); err != nil {
		l.logger.Warn("Migration marker write failed: %v", err)
	}

	for _, step := range migrationChain[start:] {
		l.logger.Info("Migrating save %s -> %s.", step.from, step.to)
		step.migrate(doc)
	}

	_ = l.store.Delete(MigrationFlagKey)
	return nil
}

// loadFromBackups walks the recovery cascade: newest rotating backup,
// then the pre-migration backup, then a fresh state.
func (l *Loader) loadFromBackups() *game.State {
	keys, err := l.store.Keys(BackupPrefix)
	if err == nil && len(keys) > 0 {
		sortBackupKeys(keys)
		for i := len(keys) - 1; i >= 0; i-- {
			stored, err := l.store.Get(keys[i])
			if err != nil {
				continue
			}
			raw, err := decodeBackup(stored)
			if err != nil {
				continue
			}
			st, err := l.parseAndMigrate(raw)
			if err != nil {
				l.logger.Warn("Backup %s unusable: %v", keys[i], err)
				continue
			}
			l.logger.Warn("Recovered state from backup %s.", keys[i])
			return st
		}
	}

	if stored, err := l.store.Get(MigrationBackupKey); err == nil {
		if st, err := l.parseAndMigrate([]byte(stored)); err == nil {
			l.logger.Warn("Recovered state from pre-migration backup.")
			return st
		}
	}

	l.logger.Error("All recovery paths exhausted, starting fresh.")
	return game.NewState(l.clock(), l.rng)
}

// FullReset deletes the save, its sidecars and every backup.
func (l *Loader) FullReset() error {
	for _, key := range []string{SaveKey, VersionKey, MigrationFlagKey, MigrationBackupKey} {
		if err := l.store.Delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	keys, err := l.store.Keys(BackupPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := l.store.Delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

// defaultsDocument is the install-default state as a generic document,
// the merge base for partial saves.
func defaultsDocument(now time.Time, rng *rand.Rand) map[string]any {
	raw, err := json.Marshal(game.NewState(now, rng))
	if err != nil {
		return map[string]any{}
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]any{}
	}
	return doc
}

// mergeWithDefaults overlays a loaded document onto defaults: objects
// merge key by key, scalars and arrays from the save win when present
// and type-compatible. A field the save lacks, holds null, or holds the
// wrong type keeps its default instead of corrupting the whole bind.
func mergeWithDefaults(saved, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(saved))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range saved {
		if v == nil {
			continue
		}
		savedObj, savedIsObj := v.(map[string]any)
		defVal, hasDef := out[k]
		defObj, defIsObj := defVal.(map[string]any)
		if savedIsObj && defIsObj {
			out[k] = mergeWithDefaults(savedObj, defObj)
			continue
		}
		if hasDef && defVal != nil && !sameJSONType(v, defVal) {
			continue
		}
		out[k] = v
	}
	return out
}

// sameJSONType reports whether two decoded JSON values share a type, so
// a single mistyped leaf is dropped instead of failing the whole load.
func sameJSONType(a, b any) bool {
	switch a.(type) {
	case float64:
		_, ok := b.(float64)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	case []any:
		_, ok := b.([]any)
		return ok
	case map[string]any:
		_, ok := b.(map[string]any)
		return ok
	}
	return false
}
