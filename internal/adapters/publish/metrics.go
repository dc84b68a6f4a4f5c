package publish

import (
	"context"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/metrics"
)

// MetricsListener counts changes by kind.
type MetricsListener struct{}

// NewMetricsListener creates a MetricsListener.
func NewMetricsListener() *MetricsListener { return &MetricsListener{} }

// Name implements notify.Named.
func (*MetricsListener) Name() string { return SinkMetrics }

// OnUpdate implements notify.Listener.
func (*MetricsListener) OnUpdate(_ context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error {
	metrics.UpdateSnapshotRows(competitionID, snap.Len())
	for _, c := range changes {
		metrics.RecordChange(competitionID, string(c.Kind))
	}
	return nil
}
