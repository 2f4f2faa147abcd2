// Package persistence owns the save pipeline: debounced coalesced
// writes, versioned migration, rotating compressed backups, emergency
// degradation when the medium is full, and the export/import codec.
package persistence

// Storage keys. The main document and its sidecars keep their
// historical names so existing saves load unchanged.
const (
	SaveKey            = "botnet_empire_v1"
	VersionKey         = "botnet_empire_version"
	MigrationFlagKey   = "botnet_migration_in_progress"
	MigrationBackupKey = "botnet_migration_backup"
	BackupPrefix       = "botnet_backup_"
)

// MaxSaveBytes is the serialized-document ceiling. A document over this
// size is retried with its history series truncated, then degrades to
// the emergency payload.
const MaxSaveBytes = 5_000_000
