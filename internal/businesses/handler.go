package businesses

import (
	"log/slog"
	"net/http"

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

// Handler exposes the business endpoints.
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

// MountRoutes registers business routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Patch("/{id}", h.patch)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, err := shared.ParsePage(q.Get("page"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ordering, err := visibility.ParseOrdering(q.Get("ordering"), DefaultOrdering, OrderingFields...)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	listing, err := h.service.List(r.Context(), id, ListFilter{
		Search:   q.Get("search"),
		Name:     q.Get("name"),
		Ordering: ordering,
		Page:     page,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(r, listing.Pagination, listing.Items))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	businessID, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.service.Get(r.Context(), id, businessID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.Create(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	businessID, ok := pathID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.Update(r.Context(), id, businessID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	businessID, ok := pathID(w, r)
	if !ok {
		return
	}
	var in Patch
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.Patch(r.Context(), id, businessID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	businessID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, businessID); err != nil {
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

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "business request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, false
	}
	return id, true
}
