package persistence

import (
	"encoding/base64"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Backups are stored zstd-compressed and base64-armored, marked with a
// prefix so plain-JSON backups from older builds still restore.
const backupEncodingPrefix = "zstd:"

var (
	backupEncoder *zstd.Encoder
	backupDecoder *zstd.Decoder
)

func init() {
	backupEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	backupDecoder, _ = zstd.NewReader(nil)
}

func encodeBackup(raw []byte) string {
	compressed := backupEncoder.EncodeAll(raw, nil)
	return backupEncodingPrefix + base64.StdEncoding.EncodeToString(compressed)
}

func decodeBackup(stored string) ([]byte, error) {
	if !strings.HasPrefix(stored, backupEncodingPrefix) {
		// Legacy plain-JSON backup.
		return []byte(stored), nil
	}
	compressed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, backupEncodingPrefix))
	if err != nil {
		return nil, err
	}
	return backupDecoder.DecodeAll(compressed, nil)
}

// sortBackupKeys orders backup keys by their embedded timestamp,
// oldest first. Keys with a malformed suffix sort first so eviction
// removes them before real backups.
func sortBackupKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return backupTimestamp(keys[i]) < backupTimestamp(keys[j])
	})
}

func backupTimestamp(key string) int64 {
	ts, err := strconv.ParseInt(strings.TrimPrefix(key, BackupPrefix), 10, 64)
	if err != nil {
		return -1
	}
	return ts
}

// RestoreLatestBackup returns the newest decodable backup document.
func (m *Manager) RestoreLatestBackup() ([]byte, error) {
	keys, err := m.backupKeys()
	if err != nil {
		return nil, err
	}
	for i := len(keys) - 1; i >= 0; i-- {
		stored, err := m.store.Get(keys[i])
		if err != nil {
			continue
		}
		raw, err := decodeBackup(stored)
		if err != nil {
			m.logger.Warn("Backup %s undecodable: %v", keys[i], err)
			continue
		}
		return raw, nil
	}
	return nil, errors.New("no usable backup")
}
