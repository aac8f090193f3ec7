package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/sells-group/fiscal-cli/internal/model"
)

var snapshotColumns = []string{"id", "label", "source", "loaded_at"}

// queries builds the snapshot SQL shared by the database stores. table is
// the already-quoted entity table.
type queries struct {
	b     sq.StatementBuilderType
	table string
}

func newQueries(format sq.PlaceholderFormat, table string) queries {
	return queries{b: sq.StatementBuilder.PlaceholderFormat(format), table: table}
}

func (q queries) insertSnapshot(snap *model.Snapshot) (string, []any, error) {
	return q.b.Insert("snapshots").
		Columns("id", "label", "source", "entity_count", "loaded_at").
		Values(snap.ID, snap.Label, snap.Source, len(snap.Entities), snap.LoadedAt).
		ToSql()
}

// latestSnapshot selects the newest header, restricted to label when set.
func (q queries) latestSnapshot(label string) (string, []any, error) {
	sel := q.b.Select(snapshotColumns...).From("snapshots")
	if label != "" {
		sel = sel.Where(sq.Eq{"label": label})
	}
	return sel.OrderBy("loaded_at DESC").Limit(1).ToSql()
}

func (q queries) snapshotEntities(id string) (string, []any, error) {
	return q.b.Select("data").From(q.table).
		Where(sq.Eq{"snapshot_id": id}).
		OrderBy("position").
		ToSql()
}

func (q queries) listSnapshots() (string, []any, error) {
	return q.b.Select(snapshotColumns...).From("snapshots").OrderBy("loaded_at DESC").ToSql()
}
