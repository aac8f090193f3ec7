package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// SQLiteStore keeps snapshots in a SQLite database using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
	q     queries
}

// NewSQLite opens the database at dsn and configures WAL mode. table names
// the entity table; empty selects "entities".
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if table == "" {
		table = "entities"
	}
	return &SQLiteStore{db: db, table: table, q: newQueries(sq.Question, quoteIdent(table))}, nil
}

func (s *SQLiteStore) migration() string {
	t := quoteIdent(s.table)
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	label        TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL,
	entity_count INTEGER NOT NULL,
	loaded_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS %[1]s (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	entity_key  TEXT NOT NULL,
	position    INTEGER NOT NULL,
	data        TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, entity_key)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_label ON snapshots(label, loaded_at);
`, t)
}

// Migrate creates the snapshot tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.migration())
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Import writes snap in one transaction. A missing ID or timestamp is filled in.
func (s *SQLiteStore) Import(ctx context.Context, snap *model.Snapshot) (string, error) {
	stamped, err := stamp(snap)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := s.q.insertSnapshot(stamped)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: build snapshot insert")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", eris.Wrap(err, "sqlite: insert snapshot")
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (snapshot_id, entity_key, position, data) VALUES (?, ?, ?, ?)`, quoteIdent(s.table)))
	if err != nil {
		return "", eris.Wrap(err, "sqlite: prepare entity insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, e := range stamped.Entities {
		data, err := json.Marshal(e)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: marshal entity %s", e.Key)
		}
		if _, err := stmt.ExecContext(ctx, stamped.ID, model.NormalizeKey(e.Key), i, string(data)); err != nil {
			return "", eris.Wrapf(err, "sqlite: insert entity %s", e.Key)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit")
	}
	zap.L().Info("sqlite: imported snapshot",
		zap.String("id", stamped.ID),
		zap.String("label", stamped.Label),
		zap.Int("entities", len(stamped.Entities)),
	)
	return stamped.ID, nil
}

// Snapshot loads the newest snapshot with label, or the newest overall.
func (s *SQLiteStore) Snapshot(ctx context.Context, label string) (*model.Snapshot, error) {
	query, args, err := s.q.latestSnapshot(label)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build snapshot query")
	}
	var snap model.Snapshot
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&snap.ID, &snap.Label, &snap.Source, &snap.LoadedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNoSnapshot, "sqlite: label %q", label)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get snapshot")
	}

	query, args, err = s.q.snapshotEntities(snap.ID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build entity query")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query entities")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		var e model.Entity
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal entity")
		}
		snap.Entities = append(snap.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate entities")
	}
	return &snap, nil
}

// Snapshots lists snapshot headers, newest first.
func (s *SQLiteStore) Snapshots(ctx context.Context) ([]model.Snapshot, error) {
	query, args, err := s.q.listSnapshots()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list query")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Label, &snap.Source, &snap.LoadedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate snapshots")
}

// stamp validates snap and returns a copy with ID and LoadedAt set.
func stamp(snap *model.Snapshot) (*model.Snapshot, error) {
	if snap == nil {
		return nil, eris.New("store: nil snapshot")
	}
	if err := Validate(snap.Entities); err != nil {
		return nil, err
	}
	out := *snap
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.LoadedAt.IsZero() {
		out.LoadedAt = time.Now().UTC()
	}
	return &out, nil
}
