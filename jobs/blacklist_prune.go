package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/miniintern/bizboard/internal/jobs"
)

// Pruner deletes blacklist entries that expired at or before now.
type Pruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// BlacklistPruneJob bounds the growth of the durable token blacklist.
type BlacklistPruneJob struct {
	Pruner  Pruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewBlacklistPruneJob wires dependencies for the prune handler.
func NewBlacklistPruneJob(pruner Pruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *BlacklistPruneJob {
	return &BlacklistPruneJob{Pruner: pruner, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBlacklistPrune tasks.
func (j *BlacklistPruneJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Pruner == nil {
		return errors.New("blacklist prune: handler not configured")
	}
	var payload BlacklistPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	cutoff := payload.Before
	if cutoff.IsZero() {
		cutoff = j.now()
	}

	tracker := j.Metrics.Track(TaskBlacklistPrune)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	removed, err := j.Pruner.Prune(ctx, cutoff)
	if err != nil {
		logger.Error("prune token blacklist", slog.Any("error", err))
		return err
	}
	j.Metrics.AddPruned(removed)
	logger.Info("pruned token blacklist", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return nil
}

// WithClock replaces the time source.
func (j *BlacklistPruneJob) WithClock(now func() time.Time) *BlacklistPruneJob {
	j.clock = now
	return j
}

func (j *BlacklistPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBlacklistPrune))
	}
	return slog.Default().With(slog.String("job", TaskBlacklistPrune))
}

func (j *BlacklistPruneJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
