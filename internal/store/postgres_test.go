package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresWithPool(mock, ""), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "entities"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Import(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	snap := testSnapshot("FY2026", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "Health", "Works")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(pgxmock.AnyArg(), "FY2026", "test.csv", 2, snap.LoadedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"entities"}, []string{"snapshot_id", "entity_key", "position", "data"}).
		WillReturnResult(2)
	mock.ExpectCommit()
	mock.ExpectRollback()

	id, err := s.Import(context.Background(), snap)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportCopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(pgxmock.AnyArg(), "", "test.csv", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"entities"}, []string{"snapshot_id", "entity_key", "position", "data"}).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err := s.Import(context.Background(), testSnapshot("", time.Time{}, "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy entities")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Snapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	loaded := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	health, err := json.Marshal(model.Entity{Key: "Health", TotalSpend: 10})
	require.NoError(t, err)
	works, err := json.Marshal(model.Entity{Key: "Works", TotalSpend: 20})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, label, source, loaded_at FROM snapshots`).
		WithArgs("FY2026").
		WillReturnRows(pgxmock.NewRows([]string{"id", "label", "source", "loaded_at"}).
			AddRow("snap-1", "FY2026", "master.csv", loaded))
	mock.ExpectQuery(`SELECT data FROM "entities" WHERE snapshot_id = \$1`).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(health).AddRow(works))

	snap, err := s.Snapshot(context.Background(), "FY2026")
	require.NoError(t, err)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, loaded, snap.LoadedAt)
	require.Len(t, snap.Entities, 2)
	assert.Equal(t, "Works", snap.Entities[1].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Snapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, label, source, loaded_at FROM snapshots`).
		WithArgs("FY1999").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Snapshot(context.Background(), "FY1999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSnapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Snapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, label, source, loaded_at FROM snapshots ORDER BY loaded_at DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "label", "source", "loaded_at"}).
			AddRow("b", "FY2026", "b.csv", now).
			AddRow("a", "FY2025", "a.csv", now.Add(-time.Hour)))

	list, err := s.Snapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SchemaQualifiedTable(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	s := newPostgresWithPool(mock, "fiscal.entities")
	assert.Contains(t, s.migration(), `"fiscal"."entities"`)
}
