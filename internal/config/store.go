package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/hazyhaar/tootwatch/internal/dbopen"
	"github.com/hazyhaar/tootwatch/timeline"
)

// Schema for the settings table.
const Schema = `
CREATE TABLE IF NOT EXISTS timeline_settings (
	key        TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store keeps filter settings in SQLite so they can be changed while a
// watcher runs. Reads are served from an in-memory copy; Watch refreshes it
// when another process writes the table.
type Store struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger

	mu      sync.RWMutex
	values  map[string]bool
	version storeVersion
}

type storeVersion struct {
	maxUpdated int64
	rows       int64
}

var _ timeline.Settings = (*Store)(nil)

// OpenStore opens (or creates) the settings database at path.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("config: open store: %w", err)
	}
	s, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewStore uses an open database, creating the table if needed.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("config: store schema: %w", err)
	}
	s := &Store{db: db, logger: logger, values: map[string]bool{}}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Lookup(key string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) GetConfig(key string, def bool) bool {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return def
}

// All returns a copy of the configured values.
func (s *Store) All() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Set stores a value.
func (s *Store) Set(ctx context.Context, key string, value bool) error {
	if !ValidKey(key) {
		return fmt.Errorf("config: unknown filter key %q", key)
	}
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO timeline_settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, boolInt(value), time.Now().UnixNano())
		return err
	})
	if err != nil {
		return fmt.Errorf("config: set %s: %w", key, err)
	}
	return s.Reload(ctx)
}

// Unset removes a value so the default applies again.
func (s *Store) Unset(ctx context.Context, key string) error {
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM timeline_settings WHERE key = ?`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("config: unset %s: %w", key, err)
	}
	return s.Reload(ctx)
}

// Reload re-reads the table.
func (s *Store) Reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM timeline_settings`)
	if err != nil {
		return fmt.Errorf("config: load settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]bool)
	var ver storeVersion
	for rows.Next() {
		var key string
		var value int
		var updated int64
		if err := rows.Scan(&key, &value, &updated); err != nil {
			return fmt.Errorf("config: scan setting: %w", err)
		}
		if !ValidKey(key) {
			s.logger.Warn("config: ignoring unknown setting", "key", key)
		} else {
			values[key] = value != 0
		}
		ver.rows++
		ver.maxUpdated = max(ver.maxUpdated, updated)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("config: load settings: %w", err)
	}

	s.mu.Lock()
	s.values = values
	s.version = ver
	s.mu.Unlock()
	return nil
}

// Watch polls the table every interval and reloads when rows were added,
// changed or removed. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, err := s.currentVersion(ctx)
		if err != nil {
			s.logger.Warn("config: settings version check failed", "error", err)
			continue
		}
		s.mu.RLock()
		same := cur == s.version
		s.mu.RUnlock()
		if same {
			continue
		}
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("config: settings reload failed", "error", err)
			continue
		}
		s.logger.Info("config: settings reloaded", "rows", cur.rows)
	}
}

func (s *Store) currentVersion(ctx context.Context) (storeVersion, error) {
	var v storeVersion
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(updated_at), 0), COUNT(*) FROM timeline_settings`).Scan(&v.maxUpdated, &v.rows)
	return v, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
