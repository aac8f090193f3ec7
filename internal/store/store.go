// Package store loads entity snapshots from flat files and keeps imported
// snapshots in SQLite or Postgres.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/model"
)

// Source yields one entity snapshot.
type Source interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Close() error
}

// Store keeps imported snapshots.
type Store interface {
	Migrate(ctx context.Context) error
	// Import writes snap and returns its ID.
	Import(ctx context.Context, snap *model.Snapshot) (string, error)
	// Snapshot returns the most recent snapshot with label, or the most
	// recent snapshot of all when label is empty.
	Snapshot(ctx context.Context, label string) (*model.Snapshot, error)
	// Snapshots lists stored snapshots, newest first, without entities.
	Snapshots(ctx context.Context) ([]model.Snapshot, error)
	Close() error
}

// ErrNoSnapshot is returned when a store holds no matching snapshot.
var ErrNoSnapshot = eris.New("store: no snapshot found")

// Open returns the Source configured by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Source, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "csv":
		return &CSVSource{Path: cfg.Path, Label: cfg.Label}, nil
	case "xlsx":
		return &XLSXSource{Path: cfg.Path, Sheet: cfg.Sheet, Label: cfg.Label}, nil
	case "sqlite":
		s, err := NewSQLite(cfg.Path, cfg.Table)
		if err != nil {
			return nil, err
		}
		return &storeSource{store: s, label: cfg.Label}, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.Table)
		if err != nil {
			return nil, err
		}
		return &storeSource{store: s, label: cfg.Label}, nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// OpenStore returns the snapshot Store configured by cfg.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.Path, cfg.Table)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Table)
	default:
		return nil, eris.Errorf("store: driver %q does not keep snapshots", cfg.Driver)
	}
}

// storeSource adapts a Store to a Source for one label.
type storeSource struct {
	store Store
	label string
}

func (s *storeSource) Load(ctx context.Context) (*model.Snapshot, error) {
	return s.store.Snapshot(ctx, s.label)
}

func (s *storeSource) Close() error {
	return s.store.Close()
}

// newSnapshot validates entities and stamps a fresh snapshot around them.
func newSnapshot(source, label string, entities []model.Entity) (*model.Snapshot, error) {
	if err := Validate(entities); err != nil {
		return nil, err
	}
	snap := &model.Snapshot{
		ID:       uuid.New().String(),
		Label:    label,
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Entities: entities,
	}
	zap.L().Info("store: loaded snapshot",
		zap.String("id", snap.ID),
		zap.String("source", source),
		zap.String("label", label),
		zap.Int("entities", len(entities)),
	)
	return snap, nil
}

// quoteIdent quotes a table name for SQL text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
