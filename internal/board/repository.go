package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniintern/bizboard/internal/platform/db"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/softdelete"
	"github.com/miniintern/bizboard/internal/visibility"
)

// Repository defines persistence operations for posts and comments.
type Repository interface {
	ListPosts(ctx context.Context, scope visibility.Scope, filter PostFilter) ([]Post, int, error)
	GetPost(ctx context.Context, id int64) (*Post, error)
	CreatePost(ctx context.Context, in NewPost) (*Post, error)
	UpdatePost(ctx context.Context, id int64, change PostChange) (*Post, error)
	DeletePost(ctx context.Context, id int64, now time.Time) (time.Time, error)
	RestorePost(ctx context.Context, id int64, now time.Time) error

	ListComments(ctx context.Context, scope visibility.Scope, filter CommentFilter) ([]Comment, int, error)
	GetComment(ctx context.Context, id int64) (*Comment, error)
	CreateComment(ctx context.Context, in NewComment) (*Comment, error)
	UpdateComment(ctx context.Context, id int64, change CommentChange) (*Comment, error)
	DeleteComment(ctx context.Context, id int64, now time.Time) (time.Time, error)
	RestoreComment(ctx context.Context, id int64, now time.Time) error
}

var (
	postsTable    = softdelete.Table{Name: "posts", IDColumn: "id", DeletedAt: "deleted_at", UpdatedAt: "updated_at"}
	commentsTable = softdelete.Table{Name: "comments", IDColumn: "id", DeletedAt: "deleted_at", UpdatedAt: "updated_at"}

	postColumns    = visibility.Columns{Business: "p.business_id", Author: "p.author_id", Public: "p.is_public", DeletedAt: "p.deleted_at"}
	commentColumns = visibility.Columns{Business: "p.business_id", Author: "c.author_id", Public: "c.is_public", DeletedAt: "c.deleted_at",
		Parent: &postColumns}
)

const (
	postSelect = `SELECT p.id, p.business_id, p.author_id, u.username, p.title, p.content, p.is_public,
		p.deleted_at, p.created_at, p.updated_at
		FROM posts p JOIN users u ON u.id = p.author_id`
	commentSelect = `SELECT c.id, c.post_id, p.business_id, c.author_id, u.username, c.content, c.is_public,
		c.deleted_at, c.created_at, c.updated_at, p.author_id, p.is_public, p.deleted_at
		FROM comments c JOIN posts p ON p.id = c.post_id JOIN users u ON u.id = c.author_id`
	postCount    = `SELECT COUNT(*) FROM posts p`
	commentCount = `SELECT COUNT(*) FROM comments c JOIN posts p ON p.id = c.post_id`
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListPosts returns one page of posts inside scope.
func (r *PGRepository) ListPosts(ctx context.Context, scope visibility.Scope, filter PostFilter) ([]Post, int, error) {
	args := &visibility.Args{}
	where := []string{scope.Where(postColumns, args)}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := args.Add(visibility.LikePattern(s))
		where = append(where, "(p.title ILIKE "+pattern+" OR p.content ILIKE "+pattern+")")
	}
	if filter.IsPublic != nil {
		where = append(where, "p.is_public = "+args.Add(*filter.IsPublic))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, postCount+cond, args.Values()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("board: count posts: %w", err)
	}
	ordering := orDefault(filter.Ordering)
	limit := args.Add(filter.PageSize)
	offset := args.Add((filter.Page - 1) * filter.PageSize)
	rows, err := r.pool.Query(ctx, postSelect+cond+" ORDER BY "+ordering.SQL("p.")+" LIMIT "+limit+" OFFSET "+offset, args.Values()...)
	if err != nil {
		return nil, 0, fmt.Errorf("board: list posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// GetPost fetches a post by id regardless of its state.
func (r *PGRepository) GetPost(ctx context.Context, id int64) (*Post, error) {
	return scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
}

// CreatePost inserts a post.
func (r *PGRepository) CreatePost(ctx context.Context, in NewPost) (*Post, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO posts (business_id, author_id, title, content, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		in.BusinessID, in.AuthorID, in.Title, in.Content, in.IsPublic, time.Now().UTC()).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("board: insert post: %w", err)
	}
	return r.GetPost(ctx, id)
}

// UpdatePost writes the mutable fields of a post.
func (r *PGRepository) UpdatePost(ctx context.Context, id int64, change PostChange) (*Post, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE posts SET title = $1, content = $2, is_public = $3, updated_at = $4 WHERE id = $5`,
		change.Title, change.Content, change.IsPublic, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("board: update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.GetPost(ctx, id)
}

// DeletePost soft deletes an active post.
func (r *PGRepository) DeletePost(ctx context.Context, id int64, now time.Time) (time.Time, error) {
	return softdelete.Delete(ctx, r.pool, postsTable, id, now)
}

// RestorePost clears deleted_at on a deleted post.
func (r *PGRepository) RestorePost(ctx context.Context, id int64, now time.Time) error {
	return softdelete.RestoreRow(ctx, r.pool, postsTable, id, now)
}

// ListComments returns one page of comments inside scope.
func (r *PGRepository) ListComments(ctx context.Context, scope visibility.Scope, filter CommentFilter) ([]Comment, int, error) {
	args := &visibility.Args{}
	where := []string{scope.Where(commentColumns, args)}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "c.content ILIKE "+args.Add(visibility.LikePattern(s)))
	}
	if filter.IsPublic != nil {
		where = append(where, "c.is_public = "+args.Add(*filter.IsPublic))
	}
	if filter.PostID != nil {
		where = append(where, "c.post_id = "+args.Add(*filter.PostID))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, commentCount+cond, args.Values()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("board: count comments: %w", err)
	}
	ordering := orDefault(filter.Ordering)
	limit := args.Add(filter.PageSize)
	offset := args.Add((filter.Page - 1) * filter.PageSize)
	rows, err := r.pool.Query(ctx, commentSelect+cond+" ORDER BY "+ordering.SQL("c.")+" LIMIT "+limit+" OFFSET "+offset, args.Values()...)
	if err != nil {
		return nil, 0, fmt.Errorf("board: list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// GetComment fetches a comment by id regardless of its state.
func (r *PGRepository) GetComment(ctx context.Context, id int64) (*Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
}

// CreateComment inserts a comment. The parent row is share-locked so a
// concurrent delete of the post cannot slip in between check and insert.
func (r *PGRepository) CreateComment(ctx context.Context, in NewComment) (*Comment, error) {
	var id int64
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var deletedAt pgtype.Timestamptz
		err := tx.QueryRow(ctx, `SELECT deleted_at FROM posts WHERE id = $1 FOR SHARE`, in.PostID).Scan(&deletedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("board: lock post: %w", err)
		}
		if deletedAt.Valid {
			return fmt.Errorf("post %d is deleted: %w", in.PostID, shared.ErrNotFound)
		}
		return tx.QueryRow(ctx, `INSERT INTO comments (post_id, author_id, content, is_public, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
			in.PostID, in.AuthorID, in.Content, in.IsPublic, time.Now().UTC()).Scan(&id)
	})
	if err != nil {
		return nil, err
	}
	return r.GetComment(ctx, id)
}

// UpdateComment writes the mutable fields of a comment.
func (r *PGRepository) UpdateComment(ctx context.Context, id int64, change CommentChange) (*Comment, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE comments SET content = $1, is_public = $2, updated_at = $3 WHERE id = $4`,
		change.Content, change.IsPublic, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("board: update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.GetComment(ctx, id)
}

// DeleteComment soft deletes an active comment.
func (r *PGRepository) DeleteComment(ctx context.Context, id int64, now time.Time) (time.Time, error) {
	return softdelete.Delete(ctx, r.pool, commentsTable, id, now)
}

// RestoreComment clears deleted_at on a deleted comment.
func (r *PGRepository) RestoreComment(ctx context.Context, id int64, now time.Time) error {
	return softdelete.RestoreRow(ctx, r.pool, commentsTable, id, now)
}

func orDefault(o visibility.Ordering) visibility.Ordering {
	if o.Field == "" {
		return visibility.NewestFirst
	}
	return o
}

func scanPost(row pgx.Row) (*Post, error) {
	var (
		p         Post
		deletedAt pgtype.Timestamptz
	)
	err := row.Scan(&p.ID, &p.BusinessID, &p.AuthorID, &p.Author, &p.Title, &p.Content, &p.IsPublic,
		&deletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	p.DeletedAt = timePtr(deletedAt)
	return &p, nil
}

func scanComment(row pgx.Row) (*Comment, error) {
	var (
		c             Comment
		deletedAt     pgtype.Timestamptz
		postDeletedAt pgtype.Timestamptz
	)
	err := row.Scan(&c.ID, &c.PostID, &c.BusinessID, &c.AuthorID, &c.Author, &c.Content, &c.IsPublic,
		&deletedAt, &c.CreatedAt, &c.UpdatedAt, &c.Post.AuthorID, &c.Post.IsPublic, &postDeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	c.DeletedAt = timePtr(deletedAt)
	c.Post.BusinessID = c.BusinessID
	c.Post.DeletedAt = timePtr(postDeletedAt)
	return &c, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

var _ Repository = (*PGRepository)(nil)
