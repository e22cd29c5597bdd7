// Package history persists poll results to SQLite so the consumer can show
// how a source got into its current state. The engine itself never reads
// history; it exists for the API and for diagnostics.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/aggregate"
	"github.com/HerbHall/naspulse/internal/event"
	"github.com/HerbHall/naspulse/internal/source"
	"github.com/HerbHall/naspulse/internal/store"
)

// Config holds the history knobs.
type Config struct {
	// Retention bounds how long rows are kept.
	Retention time.Duration `mapstructure:"retention"`
	// PruneInterval is how often expired rows are deleted.
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// DefaultConfig keeps a week of history, pruned hourly.
func DefaultConfig() Config {
	return Config{
		Retention:     7 * 24 * time.Hour,
		PruneInterval: time.Hour,
	}
}

// Entry is one recorded poll result.
type Entry struct {
	ID         int64          `json:"id"`
	Source     string         `json:"source"`
	Health     source.Health  `json:"health"`
	Title      string         `json:"title"`
	Detail     string         `json:"detail"`
	Metrics    map[string]any `json:"metrics,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Store reads and writes poll history rows.
type Store struct {
	db     *store.Store
	cfg    Config
	logger *zap.Logger
}

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create poll_history table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE poll_history (
						id          INTEGER  PRIMARY KEY AUTOINCREMENT,
						source      TEXT     NOT NULL,
						health      TEXT     NOT NULL,
						title       TEXT     NOT NULL,
						detail      TEXT     NOT NULL,
						metrics     TEXT,
						recorded_at DATETIME NOT NULL
					)
				`)
				return err
			},
		},
		{
			Version:     2,
			Description: "index history by source and time",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE INDEX idx_poll_history_source_time
					ON poll_history (source, recorded_at DESC)
				`)
				return err
			},
		},
	}
}

// New runs migrations and returns a history store.
func New(ctx context.Context, db *store.Store, cfg Config, logger *zap.Logger) (*Store, error) {
	if err := db.Migrate(ctx, "history", migrations()); err != nil {
		return nil, fmt.Errorf("history migrations: %w", err)
	}
	return &Store{db: db, cfg: cfg, logger: logger.Named("history")}, nil
}

// Append records one poll result.
func (s *Store) Append(ctx context.Context, e Entry) error {
	var metrics any
	if e.Metrics != nil {
		b, err := json.Marshal(e.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		metrics = string(b)
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO poll_history (source, health, title, detail, metrics, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Source, e.Health.String(), e.Title, e.Detail, metrics, e.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Recent returns the newest entries for one source, newest first.
func (s *Store) Recent(ctx context.Context, sourceName string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, source, health, title, detail, metrics, recorded_at
		FROM poll_history
		WHERE source = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`,
		sourceName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			health  string
			metrics sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Source, &health, &e.Title, &e.Detail, &metrics, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := e.Health.UnmarshalJSON([]byte(`"` + health + `"`)); err != nil {
			return nil, fmt.Errorf("decode health %q: %w", health, err)
		}
		if metrics.Valid && metrics.String != "" {
			if err := json.Unmarshal([]byte(metrics.String), &e.Metrics); err != nil {
				return nil, fmt.Errorf("decode metrics: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes rows older than the retention window and returns the count.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.Retention).UTC()
	res, err := s.db.DB().ExecContext(ctx,
		"DELETE FROM poll_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Record subscribes the store to source updates on the bus and starts the
// retention pruner. Returns a stop function.
func (s *Store) Record(ctx context.Context, bus *event.Bus) (stop func()) {
	unsub := bus.Subscribe(event.TopicSourceUpdated, func(ctx context.Context, ev event.Event) {
		rec, ok := ev.Payload.(aggregate.Record)
		if !ok {
			return
		}
		e := Entry{
			Source:     ev.Source,
			Health:     rec.Health,
			Title:      rec.Title,
			Detail:     rec.Detail,
			Metrics:    rec.Metrics,
			RecordedAt: ev.Time,
		}
		if err := s.Append(ctx, e); err != nil {
			s.logger.Warn("append failed", zap.String("source", ev.Source), zap.Error(err))
		}
	})

	pruneCtx, cancel := context.WithCancel(ctx)
	go s.pruneLoop(pruneCtx)

	return func() {
		unsub()
		cancel()
	}
}

func (s *Store) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx)
			if err != nil {
				s.logger.Warn("prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("pruned history", zap.Int64("rows", n))
			}
		}
	}
}
