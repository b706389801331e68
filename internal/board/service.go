package board

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/visibility"
)

// PostListing is one page of posts.
type PostListing struct {
	Items      []Post
	Pagination shared.Pagination
}

// CommentListing is one page of comments.
type CommentListing struct {
	Items      []Comment
	Pagination shared.Pagination
}

// Service composes authorization, visibility and soft-delete rules over the
// board repository.
type Service struct {
	repo     Repository
	engine   *authz.Engine
	validate *validator.Validate
	audit    shared.AuditRecorder
	logger   *slog.Logger
	pageSize int
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, engine *authz.Engine, pageSize int, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = shared.DefaultPageSize
	}
	if audit == nil {
		audit = shared.DiscardAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		engine:   engine,
		validate: shared.NewValidator(),
		audit:    audit,
		logger:   logger,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for deleted_at stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListPosts returns the posts visible to the caller. Admin listings include
// soft-deleted posts for moderation.
func (s *Service) ListPosts(ctx context.Context, id *authz.Identity, filter PostFilter) (PostListing, error) {
	return s.listPosts(ctx, id, filter, visibility.Options{IncludeDeleted: true})
}

// MyPosts returns the caller's own posts inside their normal scope.
func (s *Service) MyPosts(ctx context.Context, id *authz.Identity, filter PostFilter) (PostListing, error) {
	if err := s.engine.RequireIdentity(id); err != nil {
		return PostListing{}, err
	}
	author := id.UserID
	return s.listPosts(ctx, id, filter, visibility.Options{IncludeDeleted: true, AuthorID: &author})
}

func (s *Service) listPosts(ctx context.Context, id *authz.Identity, filter PostFilter, opts visibility.Options) (PostListing, error) {
	scope, err := visibility.For(id, visibility.KindPost, s.engine.Policy(), opts)
	if err != nil {
		return PostListing{}, err
	}
	filter.Page, filter.PageSize = pageOrFirst(filter.Page), s.pageSize
	items, total, err := s.repo.ListPosts(ctx, scope, filter)
	if err != nil {
		return PostListing{}, err
	}
	pagination := shared.NewPagination(filter.Page, filter.PageSize, total)
	if err := pagination.Check(); err != nil {
		return PostListing{}, err
	}
	return PostListing{Items: items, Pagination: pagination}, nil
}

// GetPost returns a post the caller may read. Hidden posts yield ErrNotFound.
func (s *Service) GetPost(ctx context.Context, id *authz.Identity, postID int64) (*Post, error) {
	if err := s.engine.RequireIdentity(id); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanView(id, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePost publishes a post in the caller's business.
func (s *Service) CreatePost(ctx context.Context, id *authz.Identity, in PostInput) (*Post, error) {
	if err := s.engine.CanCreateContent(id); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	verr := &shared.ValidationError{}
	if err := shared.CollectFieldErrors(verr, s.validate.Struct(in), nil); err != nil {
		return nil, err
	}
	if id.BusinessID == nil {
		verr.Add("business", "You must belong to a business to post.")
	}
	if !verr.Empty() {
		return nil, verr
	}
	return s.repo.CreatePost(ctx, NewPost{
		BusinessID: *id.BusinessID,
		AuthorID:   id.UserID,
		Title:      in.Title,
		Content:    in.Content,
		IsPublic:   boolOr(in.IsPublic, true),
	})
}

// UpdatePost replaces the mutable fields of a post.
func (s *Service) UpdatePost(ctx context.Context, id *authz.Identity, postID int64, in PostInput) (*Post, error) {
	p, err := s.modifiablePost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	return s.writePost(ctx, p, in)
}

// PatchPost applies a partial update.
func (s *Service) PatchPost(ctx context.Context, id *authz.Identity, postID int64, patch PostPatch) (*Post, error) {
	p, err := s.modifiablePost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	in := PostInput{Title: p.Title, Content: p.Content, IsPublic: &p.IsPublic}
	if patch.Title != nil {
		in.Title = *patch.Title
	}
	if patch.Content != nil {
		in.Content = *patch.Content
	}
	if patch.IsPublic != nil {
		in.IsPublic = patch.IsPublic
	}
	return s.writePost(ctx, p, in)
}

func (s *Service) writePost(ctx context.Context, p *Post, in PostInput) (*Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return nil, err
	}
	return s.repo.UpdatePost(ctx, p.ID, PostChange{
		Title:    in.Title,
		Content:  in.Content,
		IsPublic: boolOr(in.IsPublic, p.IsPublic),
	})
}

// DeletePost soft deletes a post. Deleting a deleted post is a conflict.
func (s *Service) DeletePost(ctx context.Context, id *authz.Identity, postID int64) error {
	if err := s.engine.RequireIdentity(id); err != nil {
		return err
	}
	p, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.engine.CanModify(id, p); err != nil {
		return err
	}
	if _, err := s.repo.DeletePost(ctx, postID, s.now()); err != nil {
		return err
	}
	s.record(ctx, actorOf(id), shared.AuditSoftDelete, "post", postID)
	return nil
}

// RestorePost clears the deletion of a post. It is an operator action with
// no HTTP route.
func (s *Service) RestorePost(ctx context.Context, postID int64) error {
	if err := s.repo.RestorePost(ctx, postID, s.now()); err != nil {
		return err
	}
	s.record(ctx, 0, shared.AuditRestore, "post", postID)
	return nil
}

// ListComments returns the comments visible to the caller.
func (s *Service) ListComments(ctx context.Context, id *authz.Identity, filter CommentFilter) (CommentListing, error) {
	return s.listComments(ctx, id, filter, visibility.Options{IncludeDeleted: true})
}

// MyComments returns the caller's own comments.
func (s *Service) MyComments(ctx context.Context, id *authz.Identity, filter CommentFilter) (CommentListing, error) {
	if err := s.engine.RequireIdentity(id); err != nil {
		return CommentListing{}, err
	}
	author := id.UserID
	return s.listComments(ctx, id, filter, visibility.Options{IncludeDeleted: true, AuthorID: &author})
}

func (s *Service) listComments(ctx context.Context, id *authz.Identity, filter CommentFilter, opts visibility.Options) (CommentListing, error) {
	scope, err := visibility.For(id, visibility.KindComment, s.engine.Policy(), opts)
	if err != nil {
		return CommentListing{}, err
	}
	filter.Page, filter.PageSize = pageOrFirst(filter.Page), s.pageSize
	items, total, err := s.repo.ListComments(ctx, scope, filter)
	if err != nil {
		return CommentListing{}, err
	}
	pagination := shared.NewPagination(filter.Page, filter.PageSize, total)
	if err := pagination.Check(); err != nil {
		return CommentListing{}, err
	}
	return CommentListing{Items: items, Pagination: pagination}, nil
}

// GetComment returns a comment the caller may read.
func (s *Service) GetComment(ctx context.Context, id *authz.Identity, commentID int64) (*Comment, error) {
	if err := s.engine.RequireIdentity(id); err != nil {
		return nil, err
	}
	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanView(id, c); err != nil {
		return nil, err
	}
	if err := s.engine.CanView(id, c.Parent()); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateComment replies to a post the caller can see.
func (s *Service) CreateComment(ctx context.Context, id *authz.Identity, in CommentInput) (*Comment, error) {
	if err := s.engine.CanCreateContent(id); err != nil {
		return nil, err
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	post, err := s.repo.GetPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanView(id, post); err != nil {
		return nil, err
	}
	if post.Deleted() {
		return nil, shared.ErrNotFound
	}
	return s.repo.CreateComment(ctx, NewComment{
		PostID:   post.ID,
		AuthorID: id.UserID,
		Content:  in.Content,
		IsPublic: boolOr(in.IsPublic, true),
	})
}

// UpdateComment replaces the content of a comment. The post is fixed at
// creation; a different post in the payload is rejected.
func (s *Service) UpdateComment(ctx context.Context, id *authz.Identity, commentID int64, in CommentInput) (*Comment, error) {
	c, err := s.modifiableComment(ctx, id, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.PostID != c.PostID {
		return nil, shared.NewValidationError("post", "A comment cannot be moved to another post.")
	}
	return s.repo.UpdateComment(ctx, c.ID, CommentChange{Content: in.Content, IsPublic: boolOr(in.IsPublic, c.IsPublic)})
}

// PatchComment applies a partial update.
func (s *Service) PatchComment(ctx context.Context, id *authz.Identity, commentID int64, patch CommentPatch) (*Comment, error) {
	c, err := s.modifiableComment(ctx, id, commentID)
	if err != nil {
		return nil, err
	}
	in := CommentInput{PostID: c.PostID, Content: c.Content, IsPublic: &c.IsPublic}
	if patch.Content != nil {
		in.Content = *patch.Content
	}
	if patch.IsPublic != nil {
		in.IsPublic = patch.IsPublic
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	return s.repo.UpdateComment(ctx, c.ID, CommentChange{Content: in.Content, IsPublic: *in.IsPublic})
}

// DeleteComment soft deletes a comment.
func (s *Service) DeleteComment(ctx context.Context, id *authz.Identity, commentID int64) error {
	if err := s.engine.RequireIdentity(id); err != nil {
		return err
	}
	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.engine.CanModify(id, c); err != nil {
		return err
	}
	if _, err := s.repo.DeleteComment(ctx, commentID, s.now()); err != nil {
		return err
	}
	s.record(ctx, actorOf(id), shared.AuditSoftDelete, "comment", commentID)
	return nil
}

// RestoreComment clears the deletion of a comment.
func (s *Service) RestoreComment(ctx context.Context, commentID int64) error {
	if err := s.repo.RestoreComment(ctx, commentID, s.now()); err != nil {
		return err
	}
	s.record(ctx, 0, shared.AuditRestore, "comment", commentID)
	return nil
}

// modifiablePost loads a post for update. A deleted post the caller can no
// longer read is reported as missing.
func (s *Service) modifiablePost(ctx context.Context, id *authz.Identity, postID int64) (*Post, error) {
	if err := s.engine.RequireIdentity(id); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanModify(id, p); err != nil {
		return nil, err
	}
	if p.Deleted() {
		if err := s.engine.CanView(id, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Service) modifiableComment(ctx context.Context, id *authz.Identity, commentID int64) (*Comment, error) {
	if err := s.engine.RequireIdentity(id); err != nil {
		return nil, err
	}
	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanModify(id, c); err != nil {
		return nil, err
	}
	if c.Deleted() {
		if err := s.engine.CanView(id, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *Service) check(in any) error {
	verr := &shared.ValidationError{}
	if err := shared.CollectFieldErrors(verr, s.validate.Struct(in), nil); err != nil {
		return err
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor int64, action, entity string, entityID int64) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func actorOf(id *authz.Identity) int64 {
	if id == nil {
		return 0
	}
	return id.UserID
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func pageOrFirst(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
