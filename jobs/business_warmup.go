package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/businesses"
	jobmetrics "github.com/miniintern/bizboard/internal/jobs"
)

// DirectoryLister loads a page of the business directory.
type DirectoryLister interface {
	List(ctx context.Context, id *authz.Identity, filter businesses.ListFilter) (businesses.Listing, error)
}

// BusinessWarmupJob fills the directory cache so the public landing list is
// served from Redis after a cache version bump.
type BusinessWarmupJob struct {
	Directory DirectoryLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewBusinessWarmupJob wires dependencies for the warmup handler.
func NewBusinessWarmupJob(directory DirectoryLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *BusinessWarmupJob {
	return &BusinessWarmupJob{Directory: directory, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBusinessWarmup tasks.
func (j *BusinessWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Directory == nil {
		return errors.New("business warmup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskBusinessWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskBusinessWarmup))

	// Scope each run so a slow database never pins a worker slot.
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	listing, err := j.Directory.List(runCtx, nil, businesses.ListFilter{Page: 1})
	if err != nil {
		logger.Error("warm business directory", slog.Any("error", err))
		return err
	}
	logger.Info("warmed business directory", slog.Int("total", listing.Pagination.Total))
	return nil
}
