package publish

import (
	"context"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
)

// LogListener writes every change to the log.
type LogListener struct {
	logger logger.Logger
}

// NewLogListener creates a LogListener.
func NewLogListener(opts ...Option) *LogListener {
	o := newOptions("changes", opts)
	return &LogListener{logger: o.logger}
}

// Name implements notify.Named.
func (l *LogListener) Name() string { return SinkLog }

// OnUpdate implements notify.Listener.
func (l *LogListener) OnUpdate(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error {
	if len(changes) == 0 {
		l.logger.Debug(ctx, "leaderboard unchanged",
			logger.String("competition", competitionID),
			logger.Int("rows", snap.Len()),
		)
		return nil
	}
	for _, c := range changes {
		fields := []logger.Field{
			logger.String("competition", competitionID),
			logger.String("kind", string(c.Kind)),
			logger.String("team", c.TeamName),
		}
		switch c.Kind {
		case model.NewEntry:
			fields = append(fields, logger.Int("position", c.NewPosition+1))
		case model.PositionChange:
			fields = append(fields,
				logger.Int("from", c.OldPosition+1),
				logger.Int("to", c.NewPosition+1),
				logger.Float64("score", c.NewScore),
			)
		case model.Removed:
			fields = append(fields, logger.Int("from", c.OldPosition+1))
		}
		l.logger.Info(ctx, "leaderboard change", fields...)
	}
	return nil
}
