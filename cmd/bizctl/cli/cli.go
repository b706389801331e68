// Package cli implements the bizctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/softdelete"
	"github.com/miniintern/bizboard/jobs"
)

// Restorer clears soft deletions.
type Restorer interface {
	RestorePost(ctx context.Context, postID int64) error
	RestoreComment(ctx context.Context, commentID int64) error
}

// Enqueuer submits maintenance tasks.
type Enqueuer interface {
	EnqueueBlacklistPrune(ctx context.Context, payload jobs.BlacklistPrunePayload) (*asynq.TaskInfo, error)
	EnqueueBusinessWarmup(ctx context.Context) (*asynq.TaskInfo, error)
}

// OpsCLI dispatches bizctl subcommands. Dependencies a command does not use
// may be nil.
type OpsCLI struct {
	Restorer  Restorer
	Enqueuer  Enqueuer
	Inspector jobs.QueueInspector
	Migrate   func() error
	Stdout    io.Writer
	Stderr    io.Writer
}

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

const usage = `usage: bizctl <command> [flags]

commands:
  restore-post -id N       clear the deletion of a post
  restore-comment -id N    clear the deletion of a comment
  prune-blacklist [-before RFC3339]
                           enqueue removal of expired blacklist entries
  warm-businesses          enqueue a business directory cache warmup
  queue-stats [-json]      print queue depth
  migrate                  apply pending database migrations
`

// Run executes args and returns the process exit code.
func (c *OpsCLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.Stderr, usage)
		return ExitUsage
	}
	var err error
	switch args[0] {
	case "restore-post":
		err = c.restore(ctx, args[1:], "post", c.restorer().RestorePost)
	case "restore-comment":
		err = c.restore(ctx, args[1:], "comment", c.restorer().RestoreComment)
	case "prune-blacklist":
		err = c.pruneBlacklist(ctx, args[1:])
	case "warm-businesses":
		err = c.warmBusinesses(ctx)
	case "queue-stats":
		err = c.queueStats(args[1:])
	case "migrate":
		err = c.migrate()
	case "help", "-h", "--help":
		fmt.Fprint(c.Stdout, usage)
		return ExitOK
	default:
		fmt.Fprintf(c.Stderr, "bizctl: unknown command %q\n\n%s", args[0], usage)
		return ExitUsage
	}
	var uerr usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &uerr):
		fmt.Fprintf(c.Stderr, "bizctl %s: %s\n", args[0], uerr.msg)
		return ExitUsage
	default:
		fmt.Fprintf(c.Stderr, "bizctl %s: %v\n", args[0], err)
		return ExitError
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

var errNotConfigured = errors.New("dependency not configured")

type nopRestorer struct{}

func (nopRestorer) RestorePost(context.Context, int64) error    { return errNotConfigured }
func (nopRestorer) RestoreComment(context.Context, int64) error { return errNotConfigured }

func (c *OpsCLI) restorer() Restorer {
	if c.Restorer == nil {
		return nopRestorer{}
	}
	return c.Restorer
}

func (c *OpsCLI) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *OpsCLI) restore(ctx context.Context, args []string, entity string, fn func(context.Context, int64) error) error {
	fs := c.flags("restore-" + entity)
	id := fs.Int64("id", 0, entity+" id")
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if *id <= 0 {
		return usageError{msg: "-id must be a positive integer"}
	}
	err := fn(ctx, *id)
	switch {
	case errors.Is(err, softdelete.ErrNotDeleted):
		return fmt.Errorf("%s %d is not deleted", entity, *id)
	case errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("%s %d does not exist", entity, *id)
	case err != nil:
		return err
	}
	fmt.Fprintf(c.Stdout, "restored %s %d\n", entity, *id)
	return nil
}

func (c *OpsCLI) pruneBlacklist(ctx context.Context, args []string) error {
	fs := c.flags("prune-blacklist")
	before := fs.String("before", "", "prune entries that expired before this RFC3339 time")
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	var payload jobs.BlacklistPrunePayload
	if *before != "" {
		at, err := time.Parse(time.RFC3339, *before)
		if err != nil {
			return usageError{msg: fmt.Sprintf("invalid -before %q", *before)}
		}
		payload.Before = at.UTC()
	}
	if c.Enqueuer == nil {
		return errNotConfigured
	}
	info, err := c.Enqueuer.EnqueueBlacklistPrune(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout, "enqueued %s on %s\n", info.ID, info.Queue)
	return nil
}

func (c *OpsCLI) warmBusinesses(ctx context.Context) error {
	if c.Enqueuer == nil {
		return errNotConfigured
	}
	info, err := c.Enqueuer.EnqueueBusinessWarmup(ctx)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		fmt.Fprintln(c.Stdout, "warmup already pending")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout, "enqueued %s on %s\n", info.ID, info.Queue)
	return nil
}

func (c *OpsCLI) queueStats(args []string) error {
	fs := c.flags("queue-stats")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if c.Inspector == nil {
		return errNotConfigured
	}
	stats, err := jobs.CollectStats(c.Inspector)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(c.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	for _, s := range stats {
		fmt.Fprintf(c.Stdout, "%-12s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	}
	return nil
}

func (c *OpsCLI) migrate() error {
	if c.Migrate == nil {
		return errNotConfigured
	}
	if err := c.Migrate(); err != nil {
		return err
	}
	fmt.Fprintln(c.Stdout, "migrations applied")
	return nil
}
