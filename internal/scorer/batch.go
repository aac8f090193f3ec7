package scorer

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// ScoreSnapshots scores each labelled snapshot (e.g. one per fiscal year)
// against its own population. Scores are not comparable across labels.
func (e *Engine) ScoreSnapshots(snapshots map[string][]model.Entity) (map[string][]ScoredEntity, error) {
	labels := make([]string, 0, len(snapshots))
	for label := range snapshots {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make(map[string][]ScoredEntity, len(snapshots))
	for _, label := range labels {
		scored, err := e.ComputeScores(snapshots[label])
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: snapshot %s", label)
		}
		out[label] = scored
	}

	zap.L().Info("scorer: scored snapshots", zap.Strings("labels", labels))
	return out, nil
}
