package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/db"
	"github.com/sells-group/fiscal-cli/internal/model"
)

// PostgresStore keeps snapshots in Postgres through a pgx pool.
type PostgresStore struct {
	pool  db.Pool
	table string
	q     queries
}

// NewPostgres connects to connString and pings the server. table names the
// entity table and may be schema-qualified; empty selects "entities".
func NewPostgres(ctx context.Context, connString, table string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool, table), nil
}

func newPostgresWithPool(pool db.Pool, table string) *PostgresStore {
	if table == "" {
		table = "entities"
	}
	return &PostgresStore{pool: pool, table: table, q: newQueries(sq.Dollar, db.Sanitize(table))}
}

func (s *PostgresStore) migration() string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	label        TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL,
	entity_count INTEGER NOT NULL,
	loaded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %[1]s (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	entity_key  TEXT NOT NULL,
	position    INTEGER NOT NULL,
	data        JSONB NOT NULL,
	PRIMARY KEY (snapshot_id, entity_key)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_label ON snapshots(label, loaded_at DESC);
`, db.Sanitize(s.table))
}

// Migrate creates the snapshot tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, s.migration())
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Import writes the snapshot header and COPYs its entities in one transaction.
func (s *PostgresStore) Import(ctx context.Context, snap *model.Snapshot) (string, error) {
	stamped, err := stamp(snap)
	if err != nil {
		return "", err
	}

	rows := make([][]any, 0, len(stamped.Entities))
	for i, e := range stamped.Entities {
		data, err := json.Marshal(e)
		if err != nil {
			return "", eris.Wrapf(err, "postgres: marshal entity %s", e.Key)
		}
		rows = append(rows, []any{stamped.ID, model.NormalizeKey(e.Key), i, data})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query, args, err := s.q.insertSnapshot(stamped)
	if err != nil {
		return "", eris.Wrap(err, "postgres: build snapshot insert")
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return "", eris.Wrap(err, "postgres: insert snapshot")
	}

	n, err := db.CopyRows(ctx, tx, s.table, []string{"snapshot_id", "entity_key", "position", "data"}, rows)
	if err != nil {
		return "", eris.Wrap(err, "postgres: copy entities")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit")
	}
	zap.L().Info("postgres: imported snapshot",
		zap.String("id", stamped.ID),
		zap.String("label", stamped.Label),
		zap.Int64("entities", n),
	)
	return stamped.ID, nil
}

// Snapshot loads the newest snapshot with label, or the newest overall.
func (s *PostgresStore) Snapshot(ctx context.Context, label string) (*model.Snapshot, error) {
	query, args, err := s.q.latestSnapshot(label)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build snapshot query")
	}
	var snap model.Snapshot
	err = s.pool.QueryRow(ctx, query, args...).Scan(&snap.ID, &snap.Label, &snap.Source, &snap.LoadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNoSnapshot, "postgres: label %q", label)
		}
		return nil, eris.Wrap(err, "postgres: get snapshot")
	}

	query, args, err = s.q.snapshotEntities(snap.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build entity query")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query entities")
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		var e model.Entity
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal entity")
		}
		snap.Entities = append(snap.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate entities")
	}
	return &snap, nil
}

// Snapshots lists snapshot headers, newest first.
func (s *PostgresStore) Snapshots(ctx context.Context) ([]model.Snapshot, error) {
	query, args, err := s.q.listSnapshots()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list query")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Label, &snap.Source, &snap.LoadedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate snapshots")
}
