package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nhle/agency-dashboard/internal/model"
)

// Setting keys. Keys that belong to a client or a collection carry it as a
// suffix after the colon.
const (
	KeyDataSourceKind     = "datasource.kind"
	KeySheetConfig        = "sheet.config"
	keyMetricSelection    = "metrics.selection:"
	keyTelemetryPrefix    = "telemetry."
	keyCacheFetchedPrefix = "cache.fetched_at:"
)

// Telemetry counter names.
const (
	CounterSwitchFailed   = "switch_failed"
	CounterStaleServed    = "stale_served"
	CounterCacheWriteFail = "cache_write_failed"
)

// MetricSelectionKey returns the settings key for a client's metric picks.
func MetricSelectionKey(clientID string) string {
	return keyMetricSelection + clientID
}

// TelemetryKey returns the settings key for a named counter.
func TelemetryKey(name string) string {
	return keyTelemetryPrefix + name
}

// CacheFetchedKey returns the settings key holding a collection's last
// successful remote fetch.
func CacheFetchedKey(collection string) string {
	return keyCacheFetchedPrefix + collection
}

// GetSetting returns the value stored under key. The bool is false when the
// key has never been set.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now(),
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Removing a missing key is a no-op.
func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

// IncrementCounter bumps the telemetry counter name and returns its new value.
func (s *SQLiteStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	key := TelemetryKey(name)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, '1', ?)
		ON CONFLICT(key) DO UPDATE SET
			value = CAST(CAST(value AS INTEGER) + 1 AS TEXT),
			updated_at = excluded.updated_at`,
		key, s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("incrementing counter %s: %w", name, err)
	}

	var value string
	if err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key); err != nil {
		return 0, fmt.Errorf("reading counter %s: %w", name, err)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing counter %s: %w", name, err)
	}
	return n, nil
}

// Counter reads a telemetry counter; unset counters are zero.
func Counter(ctx context.Context, st Store, name string) (int64, error) {
	value, ok, err := st.GetSetting(ctx, TelemetryKey(name))
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing counter %s: %w", name, err)
	}
	return n, nil
}

// GetMetricSelection returns the metric keys a client has pinned on the
// dashboard, or nil when none were saved.
func GetMetricSelection(ctx context.Context, st Store, clientID string) ([]string, error) {
	value, ok, err := st.GetSetting(ctx, MetricSelectionKey(clientID))
	if err != nil || !ok {
		return nil, err
	}
	var metrics []string
	if err := json.Unmarshal([]byte(value), &metrics); err != nil {
		return nil, fmt.Errorf("decoding metric selection for %s: %w", clientID, err)
	}
	return metrics, nil
}

// SetMetricSelection persists the pinned metric keys for a client.
func SetMetricSelection(ctx context.Context, st Store, clientID string, metrics []string) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encoding metric selection: %w", err)
	}
	return st.SetSetting(ctx, MetricSelectionKey(clientID), string(data))
}

// GetSheetConfig returns the saved spreadsheet connection, if any. The
// token is never persisted here.
func GetSheetConfig(ctx context.Context, st Store) (*model.SheetConfig, error) {
	value, ok, err := st.GetSetting(ctx, KeySheetConfig)
	if err != nil || !ok {
		return nil, err
	}
	var cfg model.SheetConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return nil, fmt.Errorf("decoding sheet config: %w", err)
	}
	return &cfg, nil
}

// SetSheetConfig persists the spreadsheet connection.
func SetSheetConfig(ctx context.Context, st Store, cfg model.SheetConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding sheet config: %w", err)
	}
	return st.SetSetting(ctx, KeySheetConfig, string(data))
}

// CacheFetchedAt returns when collection was last fetched from the remote
// backend. The zero time means never.
func CacheFetchedAt(ctx context.Context, st Store, collection string) (time.Time, error) {
	value, ok, err := st.GetSetting(ctx, CacheFetchedKey(collection))
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing fetch time for %s: %w", collection, err)
	}
	return t, nil
}

// MarkCacheFetched records a successful remote fetch of collection at t.
func MarkCacheFetched(ctx context.Context, st Store, collection string, t time.Time) error {
	return st.SetSetting(ctx, CacheFetchedKey(collection), t.UTC().Format(time.RFC3339Nano))
}

// InvalidateCache forgets the fetch time of collection so the next read
// goes to the remote backend.
func InvalidateCache(ctx context.Context, st Store, collection string) error {
	return st.DeleteSetting(ctx, CacheFetchedKey(collection))
}
