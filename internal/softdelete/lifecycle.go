// Package softdelete manages the deleted_at lifecycle of posts and comments.
package softdelete

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/miniintern/bizboard/internal/shared"
)

// State is the lifecycle state of a soft-deletable record.
type State int

const (
	Active State = iota
	Deleted
)

func (s State) String() string {
	if s == Deleted {
		return "deleted"
	}
	return "active"
}

var (
	// ErrAlreadyDeleted is returned when deleting a Deleted record.
	ErrAlreadyDeleted = fmt.Errorf("already deleted: %w", shared.ErrConflict)
	// ErrNotDeleted is returned when restoring an Active record.
	ErrNotDeleted = fmt.Errorf("not deleted: %w", shared.ErrConflict)
)

// StateOf derives the state from a deleted_at value.
func StateOf(deletedAt *time.Time) State {
	if deletedAt == nil {
		return Active
	}
	return Deleted
}

// MarkDeleted moves Active to Deleted and returns the new deleted_at.
func MarkDeleted(deletedAt *time.Time, now time.Time) (*time.Time, error) {
	if StateOf(deletedAt) == Deleted {
		return deletedAt, ErrAlreadyDeleted
	}
	stamp := now.UTC()
	return &stamp, nil
}

// Restore moves Deleted back to Active.
func Restore(deletedAt *time.Time) (*time.Time, error) {
	if StateOf(deletedAt) == Active {
		return nil, ErrNotDeleted
	}
	return nil, nil
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Table names the table and its soft-delete columns.
type Table struct {
	Name      string
	IDColumn  string
	DeletedAt string
	UpdatedAt string
}

// Delete atomically sets deleted_at on an active row. Zero affected rows means
// the row is missing or already deleted; the two cases are told apart so
// concurrent deletes yield exactly one success and one conflict.
func Delete(ctx context.Context, q Querier, t Table, id int64, now time.Time) (time.Time, error) {
	stamp := now.UTC()
	sql := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = $1 WHERE %s = $2 AND %s IS NULL`,
		t.Name, t.DeletedAt, t.UpdatedAt, t.IDColumn, t.DeletedAt)
	tag, err := q.Exec(ctx, sql, stamp, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("softdelete: delete %s: %w", t.Name, err)
	}
	if tag.RowsAffected() == 1 {
		return stamp, nil
	}
	if err := exists(ctx, q, t, id); err != nil {
		return time.Time{}, err
	}
	return time.Time{}, ErrAlreadyDeleted
}

// RestoreRow atomically clears deleted_at on a deleted row.
func RestoreRow(ctx context.Context, q Querier, t Table, id int64, now time.Time) error {
	sql := fmt.Sprintf(`UPDATE %s SET %s = NULL, %s = $1 WHERE %s = $2 AND %s IS NOT NULL`,
		t.Name, t.DeletedAt, t.UpdatedAt, t.IDColumn, t.DeletedAt)
	tag, err := q.Exec(ctx, sql, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("softdelete: restore %s: %w", t.Name, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if err := exists(ctx, q, t, id); err != nil {
		return err
	}
	return ErrNotDeleted
}

func exists(ctx context.Context, q Querier, t Table, id int64) error {
	var one int
	err := q.QueryRow(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = $1`, t.Name, t.IDColumn), id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("softdelete: probe %s: %w", t.Name, err)
	}
	return nil
}
