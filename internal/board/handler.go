package board

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/platform/httpx"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/visibility"
)

// IdentityResolver derives the caller identity of a request.
type IdentityResolver interface {
	Resolve(r *http.Request) (*authz.Identity, error)
}

// Handler exposes the post and comment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resolver IdentityResolver
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, resolver IdentityResolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, resolver: resolver}
}

// MountPosts registers post routes.
func (h *Handler) MountPosts(r chi.Router) {
	r.Get("/", h.listPosts)
	r.Post("/", h.createPost)
	r.Get("/mine", h.myPosts)
	r.Get("/{id}", h.getPost)
	r.Put("/{id}", h.updatePost)
	r.Patch("/{id}", h.patchPost)
	r.Delete("/{id}", h.deletePost)
}

// MountComments registers comment routes.
func (h *Handler) MountComments(r chi.Router) {
	r.Get("/", h.listComments)
	r.Post("/", h.createComment)
	r.Get("/mine", h.myComments)
	r.Get("/{id}", h.getComment)
	r.Put("/{id}", h.updateComment)
	r.Patch("/{id}", h.patchComment)
	r.Delete("/{id}", h.deleteComment)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	h.postList(w, r, h.service.ListPosts)
}

func (h *Handler) myPosts(w http.ResponseWriter, r *http.Request) {
	h.postList(w, r, h.service.MyPosts)
}

type postLister func(ctx context.Context, id *authz.Identity, filter PostFilter) (PostListing, error)

func (h *Handler) postList(w http.ResponseWriter, r *http.Request, list postLister) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	filter, err := parsePostFilter(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	listing, err := list(r.Context(), id, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(r, listing.Pagination, listing.Items))
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	id, postID, ok := h.target(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetPost(r.Context(), id, postID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var in PostInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreatePost(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	id, postID, ok := h.target(w, r)
	if !ok {
		return
	}
	var in PostInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdatePost(r.Context(), id, postID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) patchPost(w http.ResponseWriter, r *http.Request) {
	id, postID, ok := h.target(w, r)
	if !ok {
		return
	}
	var in PostPatch
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.PatchPost(r.Context(), id, postID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	id, postID, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePost(r.Context(), id, postID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	h.commentList(w, r, h.service.ListComments)
}

func (h *Handler) myComments(w http.ResponseWriter, r *http.Request) {
	h.commentList(w, r, h.service.MyComments)
}

type commentLister func(ctx context.Context, id *authz.Identity, filter CommentFilter) (CommentListing, error)

func (h *Handler) commentList(w http.ResponseWriter, r *http.Request, list commentLister) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	filter, err := parseCommentFilter(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	listing, err := list(r.Context(), id, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(r, listing.Pagination, listing.Items))
}

func (h *Handler) getComment(w http.ResponseWriter, r *http.Request) {
	id, commentID, ok := h.target(w, r)
	if !ok {
		return
	}
	c, err := h.service.GetComment(r.Context(), id, commentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var in CommentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateComment(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	id, commentID, ok := h.target(w, r)
	if !ok {
		return
	}
	var in CommentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateComment(r.Context(), id, commentID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) patchComment(w http.ResponseWriter, r *http.Request) {
	id, commentID, ok := h.target(w, r)
	if !ok {
		return
	}
	var in CommentPatch
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.PatchComment(r.Context(), id, commentID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, commentID, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteComment(r.Context(), id, commentID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*authz.Identity, bool) {
	id, err := h.resolver.Resolve(r)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return id, true
}

// target resolves the caller and the {id} path parameter. Authentication is
// checked first so anonymous callers never learn which ids are valid.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (*authz.Identity, int64, bool) {
	id, ok := h.identity(w, r)
	if !ok {
		return nil, 0, false
	}
	if id.Anonymous() {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return nil, 0, false
	}
	resourceID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return nil, 0, false
	}
	return id, resourceID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "board request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parsePostFilter(q url.Values) (PostFilter, error) {
	page, err := shared.ParsePage(q.Get("page"))
	if err != nil {
		return PostFilter{}, err
	}
	ordering, err := visibility.ParseOrdering(q.Get("ordering"), visibility.NewestFirst, PostOrderingFields...)
	if err != nil {
		return PostFilter{}, err
	}
	public, err := parseBool(q, "is_public")
	if err != nil {
		return PostFilter{}, err
	}
	return PostFilter{Search: q.Get("search"), IsPublic: public, Ordering: ordering, Page: page}, nil
}

func parseCommentFilter(q url.Values) (CommentFilter, error) {
	page, err := shared.ParsePage(q.Get("page"))
	if err != nil {
		return CommentFilter{}, err
	}
	ordering, err := visibility.ParseOrdering(q.Get("ordering"), visibility.NewestFirst, CommentOrderingFields...)
	if err != nil {
		return CommentFilter{}, err
	}
	public, err := parseBool(q, "is_public")
	if err != nil {
		return CommentFilter{}, err
	}
	filter := CommentFilter{Search: q.Get("search"), IsPublic: public, Ordering: ordering, Page: page}
	if raw := strings.TrimSpace(q.Get("post")); raw != "" {
		postID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || postID <= 0 {
			return CommentFilter{}, shared.NewValidationError("post", "Enter a valid post id.")
		}
		filter.PostID = &postID
	}
	return filter, nil
}

func parseBool(q url.Values, key string) (*bool, error) {
	raw := strings.ToLower(strings.TrimSpace(q.Get(key)))
	switch raw {
	case "":
		return nil, nil
	case "true", "1":
		v := true
		return &v, nil
	case "false", "0":
		v := false
		return &v, nil
	}
	return nil, shared.NewValidationError(key, "Must be true or false.")
}
