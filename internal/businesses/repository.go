package businesses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/visibility"
)

// Repository defines persistence operations for businesses.
type Repository interface {
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]Business, int, error)
	Get(ctx context.Context, id int64) (*Business, error)
	Create(ctx context.Context, in Input) (*Business, error)
	Update(ctx context.Context, id int64, in Input) (*Business, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Exists reports whether the business exists.
func (r *PGRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM businesses WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// List returns one page of businesses and the total match count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Business, int, error) {
	args := &visibility.Args{}
	where := []string{"TRUE"}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "name ILIKE "+args.Add(visibility.LikePattern(s)))
	}
	if filter.Name != "" {
		where = append(where, "name = "+args.Add(filter.Name))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM businesses WHERE `+cond, args.Values()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("businesses: count: %w", err)
	}

	ordering := filter.Ordering
	if ordering.Field == "" {
		ordering = DefaultOrdering
	}
	limit := args.Add(filter.PageSize)
	offset := args.Add((filter.Page - 1) * filter.PageSize)
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM businesses WHERE `+cond+
		` ORDER BY `+ordering.SQL("")+` LIMIT `+limit+` OFFSET `+offset, args.Values()...)
	if err != nil {
		return nil, 0, fmt.Errorf("businesses: list: %w", err)
	}
	defer rows.Close()

	out := make([]Business, 0, filter.PageSize)
	for rows.Next() {
		var b Business
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// Get fetches a business by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Business, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM businesses WHERE id = $1`, id)
	return scanBusiness(row)
}

// Create inserts a business.
func (r *PGRepository) Create(ctx context.Context, in Input) (*Business, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `INSERT INTO businesses (name, created_at, updated_at) VALUES ($1, $2, $2)
		RETURNING id, name, created_at, updated_at`, in.Name, now)
	return scanBusiness(row)
}

// Update replaces the mutable fields of a business.
func (r *PGRepository) Update(ctx context.Context, id int64, in Input) (*Business, error) {
	row := r.pool.QueryRow(ctx, `UPDATE businesses SET name = $1, updated_at = $2 WHERE id = $3
		RETURNING id, name, created_at, updated_at`, in.Name, time.Now().UTC(), id)
	return scanBusiness(row)
}

// Delete removes a business. Members keep their account with no business;
// posts and comments cascade.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrBusinessInUse
		}
		return fmt.Errorf("businesses: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// foreignKeyViolation is raised when posts still reference the business.
const foreignKeyViolation = "23503"

func scanBusiness(row pgx.Row) (*Business, error) {
	var b Business
	if err := row.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

var _ Repository = (*PGRepository)(nil)
