package exchangerate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const snapshotVersion = 1

type snapshotFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Rate    Rate      `json:"rate"`
}

// LoadSnapshot reads the last saved rate. A missing file reports ok=false
// without error.
func LoadSnapshot(path string) (rate Rate, ok bool, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Rate{}, false, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return Rate{}, false, nil
		}
		return Rate{}, false, fmt.Errorf("read exchange rate snapshot: %w", err)
	}

	var payload snapshotFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return Rate{}, false, fmt.Errorf("decode exchange rate snapshot: %w", err)
	}
	if payload.Version != snapshotVersion {
		return Rate{}, false, fmt.Errorf("unsupported exchange rate snapshot version: %d", payload.Version)
	}
	if payload.Rate.Rate <= 0 {
		return Rate{}, false, nil
	}
	return payload.Rate, true, nil
}

// SaveSnapshot atomically replaces the snapshot at path with rate.
func SaveSnapshot(path string, rate Rate) error {
	path = filepath.Clean(strings.TrimSpace(path))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create exchange rate snapshot dir: %w", err)
	}

	data, err := json.Marshal(snapshotFile{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Rate:    rate,
	})
	if err != nil {
		return fmt.Errorf("encode exchange rate snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "exchange-rate-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp exchange rate snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp exchange rate snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp exchange rate snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Windows rename fails when the destination exists.
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("replace exchange rate snapshot: %w", err2)
		}
	}
	return nil
}
