package businesses

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/platform/cache"
	"github.com/miniintern/bizboard/internal/shared"
)

// Listing is one page of the directory.
type Listing struct {
	Items      []Business
	Pagination shared.Pagination
}

type cachedPage struct {
	Items []Business `json:"items"`
	Total int        `json:"total"`
}

// Service wraps business rules for tenants.
type Service struct {
	repo     Repository
	engine   *authz.Engine
	cache    *cache.Versioned
	validate *validator.Validate
	audit    shared.AuditRecorder
	logger   *slog.Logger
	pageSize int
}

// NewService constructs a Service. A nil cache disables list caching.
func NewService(repo Repository, engine *authz.Engine, listCache *cache.Versioned, pageSize int, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if listCache == nil {
		listCache = cache.NewVersioned(nil, "businesses", 0)
	}
	if pageSize <= 0 {
		pageSize = shared.DefaultPageSize
	}
	if audit == nil {
		audit = shared.DiscardAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, cache: listCache, validate: shared.NewValidator(), audit: audit, logger: logger, pageSize: pageSize}
}

// Exists reports whether a business exists. Registration uses it.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// List returns a page of the business directory. Anyone may list.
func (s *Service) List(ctx context.Context, id *authz.Identity, filter ListFilter) (Listing, error) {
	if err := s.engine.CanListBusinesses(id); err != nil {
		return Listing{}, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	filter.PageSize = s.pageSize
	if filter.Ordering.Field == "" {
		filter.Ordering = DefaultOrdering
	}

	key, err := s.cache.Key(ctx, "list", filter.Search, filter.Name, filter.Ordering.String(),
		strconv.Itoa(filter.Page), strconv.Itoa(filter.PageSize))
	if err != nil {
		s.logger.WarnContext(ctx, "business cache unavailable", slog.Any("error", err))
		return s.load(ctx, filter)
	}
	var page cachedPage
	err = s.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return cachedPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return Listing{}, err
	}
	pagination := shared.NewPagination(filter.Page, filter.PageSize, page.Total)
	if err := pagination.Check(); err != nil {
		return Listing{}, err
	}
	return Listing{Items: page.Items, Pagination: pagination}, nil
}

func (s *Service) load(ctx context.Context, filter ListFilter) (Listing, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Listing{}, err
	}
	pagination := shared.NewPagination(filter.Page, filter.PageSize, total)
	if err := pagination.Check(); err != nil {
		return Listing{}, err
	}
	return Listing{Items: items, Pagination: pagination}, nil
}

// Get returns a single business. Admin only.
func (s *Service) Get(ctx context.Context, id *authz.Identity, businessID int64) (*Business, error) {
	if err := s.engine.RequireAdmin(id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, businessID)
}

// Create adds a business. Admin only.
func (s *Service) Create(ctx context.Context, id *authz.Identity, in Input) (*Business, error) {
	if err := s.engine.RequireAdmin(id); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return nil, err
	}
	b, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, id, "create", b.ID)
	return b, nil
}

// Update replaces a business. Any admin may manage any business; the admin
// list scope governs posts and comments only.
func (s *Service) Update(ctx context.Context, id *authz.Identity, businessID int64, in Input) (*Business, error) {
	if err := s.engine.RequireAdmin(id); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return nil, err
	}
	b, err := s.repo.Update(ctx, businessID, in)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, id, "update", b.ID)
	return b, nil
}

// Patch applies a partial update.
func (s *Service) Patch(ctx context.Context, id *authz.Identity, businessID int64, patch Patch) (*Business, error) {
	if err := s.engine.RequireAdmin(id); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	in := Input{Name: current.Name}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	return s.Update(ctx, id, businessID, in)
}

// Delete removes a business. Admin only. A business that still owns posts is
// refused with ErrBusinessInUse.
func (s *Service) Delete(ctx context.Context, id *authz.Identity, businessID int64) error {
	if err := s.engine.RequireAdmin(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, businessID); err != nil {
		return err
	}
	s.changed(ctx, id, "delete", businessID)
	return nil
}

func (s *Service) check(in Input) error {
	verr := &shared.ValidationError{}
	if err := shared.CollectFieldErrors(verr, s.validate.Struct(in), nil); err != nil {
		return err
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

func (s *Service) changed(ctx context.Context, id *authz.Identity, op string, businessID int64) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "business cache bump failed", slog.Any("error", err))
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  id.UserID,
		Action:   shared.AuditBusinessEdit,
		Entity:   "business",
		EntityID: strconv.FormatInt(businessID, 10),
		Meta:     map[string]any{"op": op},
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.Any("error", err))
	}
}
