package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miniintern/bizboard/internal/board"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/softdelete"
	"github.com/miniintern/bizboard/internal/visibility"
)

// Board is an in-memory board.Repository. Author names are read from users.
type Board struct {
	mu       sync.Mutex
	users    *Accounts
	posts    map[int64]board.Post
	comments map[int64]board.Comment
	nextID   int64
	clock    time.Time
}

// NewBoard constructs an empty board backed by users for author names.
func NewBoard(users *Accounts) *Board {
	return &Board{
		users:    users,
		posts:    map[int64]board.Post{},
		comments: map[int64]board.Comment{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing creation time so ordering is deterministic.
func (s *Board) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Board) author(ctx context.Context, id int64) string {
	if s.users == nil {
		return ""
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return ""
	}
	return u.Username
}

// ListPosts implements board.Repository.
func (s *Board) ListPosts(_ context.Context, scope visibility.Scope, filter board.PostFilter) ([]board.Post, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []board.Post
	for _, p := range s.posts {
		if !scope.Contains(&p) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) && !strings.Contains(strings.ToLower(p.Content), search) {
			continue
		}
		if filter.IsPublic != nil && p.IsPublic != *filter.IsPublic {
			continue
		}
		matched = append(matched, p)
	}
	ordering := orDefault(filter.Ordering)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if ordering.Field == "title" && a.Title != b.Title {
			return (a.Title < b.Title) != ordering.Desc
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt) != ordering.Desc
		}
		return (a.ID < b.ID) != ordering.Desc
	})
	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}

// GetPost implements board.Repository.
func (s *Board) GetPost(_ context.Context, id int64) (*board.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

// CreatePost implements board.Repository.
func (s *Board) CreatePost(ctx context.Context, in board.NewPost) (*board.Post, error) {
	name := s.author(ctx, in.AuthorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.tick()
	p := board.Post{
		ID:         s.nextID,
		BusinessID: in.BusinessID,
		AuthorID:   in.AuthorID,
		Author:     name,
		Title:      in.Title,
		Content:    in.Content,
		IsPublic:   in.IsPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.posts[p.ID] = p
	return &p, nil
}

// UpdatePost implements board.Repository.
func (s *Board) UpdatePost(_ context.Context, id int64, change board.PostChange) (*board.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.Title, p.Content, p.IsPublic = change.Title, change.Content, change.IsPublic
	p.UpdatedAt = s.tick()
	s.posts[id] = p
	return &p, nil
}

// DeletePost implements board.Repository.
func (s *Board) DeletePost(_ context.Context, id int64, now time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return time.Time{}, shared.ErrNotFound
	}
	stamp, err := softdelete.MarkDeleted(p.DeletedAt, now)
	if err != nil {
		return time.Time{}, err
	}
	p.DeletedAt, p.UpdatedAt = stamp, *stamp
	s.posts[id] = p
	return *stamp, nil
}

// RestorePost implements board.Repository.
func (s *Board) RestorePost(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return shared.ErrNotFound
	}
	cleared, err := softdelete.Restore(p.DeletedAt)
	if err != nil {
		return err
	}
	p.DeletedAt, p.UpdatedAt = cleared, now.UTC()
	s.posts[id] = p
	return nil
}

// ListComments implements board.Repository.
func (s *Board) ListComments(_ context.Context, scope visibility.Scope, filter board.CommentFilter) ([]board.Comment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []board.Comment
	for _, c := range s.comments {
		c = s.withPost(c)
		if !scope.Contains(&c) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Content), search) {
			continue
		}
		if filter.IsPublic != nil && c.IsPublic != *filter.IsPublic {
			continue
		}
		if filter.PostID != nil && c.PostID != *filter.PostID {
			continue
		}
		matched = append(matched, c)
	}
	desc := orDefault(filter.Ordering).Desc
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt) != desc
		}
		return (a.ID < b.ID) != desc
	})
	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}

// GetComment implements board.Repository.
func (s *Board) GetComment(_ context.Context, id int64) (*board.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c = s.withPost(c)
	return &c, nil
}

// CreateComment implements board.Repository.
func (s *Board) CreateComment(ctx context.Context, in board.NewComment) (*board.Comment, error) {
	name := s.author(ctx, in.AuthorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[in.PostID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if post.Deleted() {
		return nil, fmt.Errorf("post %d is deleted: %w", in.PostID, shared.ErrNotFound)
	}
	s.nextID++
	now := s.tick()
	c := board.Comment{
		ID:         s.nextID,
		PostID:     post.ID,
		BusinessID: post.BusinessID,
		AuthorID:   in.AuthorID,
		Author:     name,
		Content:    in.Content,
		IsPublic:   in.IsPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.comments[c.ID] = c
	c = s.withPost(c)
	return &c, nil
}

// UpdateComment implements board.Repository.
func (s *Board) UpdateComment(_ context.Context, id int64, change board.CommentChange) (*board.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c.Content, c.IsPublic = change.Content, change.IsPublic
	c.UpdatedAt = s.tick()
	s.comments[id] = c
	c = s.withPost(c)
	return &c, nil
}

// DeleteComment implements board.Repository.
func (s *Board) DeleteComment(_ context.Context, id int64, now time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return time.Time{}, shared.ErrNotFound
	}
	stamp, err := softdelete.MarkDeleted(c.DeletedAt, now)
	if err != nil {
		return time.Time{}, err
	}
	c.DeletedAt, c.UpdatedAt = stamp, *stamp
	s.comments[id] = c
	return *stamp, nil
}

// RestoreComment implements board.Repository.
func (s *Board) RestoreComment(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return shared.ErrNotFound
	}
	cleared, err := softdelete.Restore(c.DeletedAt)
	if err != nil {
		return err
	}
	c.DeletedAt, c.UpdatedAt = cleared, now.UTC()
	s.comments[id] = c
	return nil
}

// withPost fills the parent post state the way the SQL join does. Callers
// hold s.mu.
func (s *Board) withPost(c board.Comment) board.Comment {
	if p, ok := s.posts[c.PostID]; ok {
		c.Post = board.PostRef{AuthorID: p.AuthorID, BusinessID: p.BusinessID, IsPublic: p.IsPublic, DeletedAt: p.DeletedAt}
	}
	return c
}

func orDefault(o visibility.Ordering) visibility.Ordering {
	if o.Field == "" {
		return visibility.NewestFirst
	}
	return o
}

var _ board.Repository = (*Board)(nil)
