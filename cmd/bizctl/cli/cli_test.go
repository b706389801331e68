package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/softdelete"
	"github.com/miniintern/bizboard/jobs"
)

type stubRestorer struct {
	posts    map[int64]error
	comments []int64
}

func (s *stubRestorer) RestorePost(_ context.Context, id int64) error {
	if err, ok := s.posts[id]; ok {
		return err
	}
	return shared.ErrNotFound
}

func (s *stubRestorer) RestoreComment(_ context.Context, id int64) error {
	s.comments = append(s.comments, id)
	return nil
}

type stubEnqueuer struct {
	prune    []jobs.BlacklistPrunePayload
	warmErr  error
	warmings int
}

func (s *stubEnqueuer) EnqueueBlacklistPrune(_ context.Context, p jobs.BlacklistPrunePayload) (*asynq.TaskInfo, error) {
	s.prune = append(s.prune, p)
	return &asynq.TaskInfo{ID: "t-1", Queue: jobs.QueueMaintenance}, nil
}

func (s *stubEnqueuer) EnqueueBusinessWarmup(context.Context) (*asynq.TaskInfo, error) {
	s.warmings++
	if s.warmErr != nil {
		return nil, s.warmErr
	}
	return &asynq.TaskInfo{ID: "t-2", Queue: jobs.QueueDefault}, nil
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if info, ok := s[queue]; ok {
		return info, nil
	}
	return nil, asynq.ErrQueueNotFound
}

func newCLI() (*OpsCLI, *bytes.Buffer, *bytes.Buffer) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	return &OpsCLI{Stdout: stdout, Stderr: stderr}, stdout, stderr
}

func TestRestoreCommands(t *testing.T) {
	c, stdout, stderr := newCLI()
	restorer := &stubRestorer{posts: map[int64]error{7: nil, 8: softdelete.ErrNotDeleted}}
	c.Restorer = restorer
	ctx := context.Background()

	require.Equal(t, ExitOK, c.Run(ctx, []string{"restore-post", "-id", "7"}))
	assert.Equal(t, "restored post 7\n", stdout.String())

	assert.Equal(t, ExitError, c.Run(ctx, []string{"restore-post", "-id", "8"}))
	assert.Contains(t, stderr.String(), "post 8 is not deleted")

	assert.Equal(t, ExitError, c.Run(ctx, []string{"restore-post", "-id", "9"}))
	assert.Contains(t, stderr.String(), "post 9 does not exist")

	assert.Equal(t, ExitUsage, c.Run(ctx, []string{"restore-post"}))
	assert.Equal(t, ExitUsage, c.Run(ctx, []string{"restore-comment", "-id", "abc"}))

	require.Equal(t, ExitOK, c.Run(ctx, []string{"restore-comment", "-id", "3"}))
	assert.Equal(t, []int64{3}, restorer.comments)
}

func TestEnqueueCommands(t *testing.T) {
	c, stdout, stderr := newCLI()
	enq := &stubEnqueuer{}
	c.Enqueuer = enq
	ctx := context.Background()

	require.Equal(t, ExitOK, c.Run(ctx, []string{"prune-blacklist"}))
	require.Equal(t, ExitOK, c.Run(ctx, []string{"prune-blacklist", "-before", "2024-05-01T00:00:00Z"}))
	require.Len(t, enq.prune, 2)
	assert.True(t, enq.prune[0].Before.IsZero())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), enq.prune[1].Before)
	assert.Contains(t, stdout.String(), "enqueued t-1 on maintenance")

	assert.Equal(t, ExitUsage, c.Run(ctx, []string{"prune-blacklist", "-before", "yesterday"}))
	assert.Contains(t, stderr.String(), "invalid -before")

	require.Equal(t, ExitOK, c.Run(ctx, []string{"warm-businesses"}))
	enq.warmErr = asynq.ErrDuplicateTask
	require.Equal(t, ExitOK, c.Run(ctx, []string{"warm-businesses"}))
	assert.Contains(t, stdout.String(), "warmup already pending")
	enq.warmErr = errors.New("redis down")
	assert.Equal(t, ExitError, c.Run(ctx, []string{"warm-businesses"}))
	assert.Equal(t, 3, enq.warmings)
}

func TestQueueStats(t *testing.T) {
	c, stdout, _ := newCLI()
	c.Inspector = stubInspector{jobs.QueueMaintenance: {Pending: 2, Retry: 1}}

	require.Equal(t, ExitOK, c.Run(context.Background(), []string{"queue-stats", "-json"}))
	var stats []jobs.QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, jobs.QueueStats{Queue: jobs.QueueDefault}, stats[0])
	assert.Equal(t, 2, stats[1].Pending)
	assert.Equal(t, 1, stats[1].Retry)

	stdout.Reset()
	require.Equal(t, ExitOK, c.Run(context.Background(), []string{"queue-stats"}))
	assert.Contains(t, stdout.String(), "pending=2")
}

func TestUsageAndMissingDependencies(t *testing.T) {
	c, stdout, stderr := newCLI()
	ctx := context.Background()

	assert.Equal(t, ExitUsage, c.Run(ctx, nil))
	assert.Equal(t, ExitUsage, c.Run(ctx, []string{"explode"}))
	assert.Contains(t, stderr.String(), `unknown command "explode"`)
	assert.Equal(t, ExitOK, c.Run(ctx, []string{"help"}))
	assert.Contains(t, stdout.String(), "restore-post")

	assert.Equal(t, ExitError, c.Run(ctx, []string{"queue-stats"}))
	assert.Equal(t, ExitError, c.Run(ctx, []string{"restore-post", "-id", "1"}))
	assert.Equal(t, ExitError, c.Run(ctx, []string{"migrate"}))

	migrated := false
	c.Migrate = func() error { migrated = true; return nil }
	assert.Equal(t, ExitOK, c.Run(ctx, []string{"migrate"}))
	assert.True(t, migrated)
}
