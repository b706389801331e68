package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/observability"
	"github.com/miniintern/bizboard/internal/platform/httpx"
	"github.com/miniintern/bizboard/internal/shared"
)

// Registrar creates credentials.
type Registrar interface {
	Register(ctx context.Context, in accounts.RegisterInput) (*accounts.User, error)
}

// HandlerConfig carries deployment choices for the auth endpoints.
type HandlerConfig struct {
	// LogoutStrict surfaces revoke failures instead of swallowing them.
	LogoutStrict bool
	// LoginRateLimit is the number of login attempts allowed per IP per minute.
	// Zero disables the limiter.
	LoginRateLimit int
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	registrar  Registrar
	cookies    *CookieTransport
	resolver   *Resolver
	audit      shared.AuditRecorder
	events     EventRecorder
	validator  *validator.Validate
	strict     bool
	loginLimit func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, registrar Registrar, cookies *CookieTransport, resolver *Resolver, audit shared.AuditRecorder, events EventRecorder, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if audit == nil {
		audit = shared.DiscardAudit{}
	}
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.LoginRateLimit > 0 {
		limit = httprate.Limit(cfg.LoginRateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many login attempts, try again later")
			}),
		)
	}
	return &Handler{
		logger:     logger,
		service:    service,
		registrar:  registrar,
		cookies:    cookies,
		resolver:   resolver,
		audit:      audit,
		events:     events,
		validator:  shared.NewValidator(),
		strict:     cfg.LogoutStrict,
		loginLimit: limit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.With(h.loginLimit).Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Business *int64 `json:"business"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.registrar.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	h.record(r.Context(), shared.AuditLog{
		ActorID:  user.ID,
		Action:   shared.AuditRegister,
		Entity:   "user",
		EntityID: userRef(user.ID),
		Meta:     map[string]any{"role": user.Role.String()},
	})
	httpx.JSON(w, http.StatusCreated, registerResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role.String(),
		Business: user.BusinessID,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	verr := &shared.ValidationError{}
	if err := shared.CollectFieldErrors(verr, h.validator.Struct(req), nil); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !verr.Empty() {
		httpx.RespondError(w, verr)
		return
	}

	user, pair, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.event(observability.AuthLoginFailure)
			h.logger.WarnContext(r.Context(), "login failed", slog.String("remote", r.RemoteAddr))
			h.record(r.Context(), shared.AuditLog{
				Action:   shared.AuditLoginFailed,
				Entity:   "user",
				EntityID: accounts.NormalizeUsername(req.Username),
				Meta:     map[string]any{"remote": r.RemoteAddr},
			})
		}
		h.fail(w, r, "login", err)
		return
	}

	h.cookies.SetAccess(w, pair.Access, pair.AccessExpiresAt)
	h.cookies.SetRefresh(w, pair.Refresh, pair.RefreshExpiresAt)
	h.event(observability.AuthLoginSuccess)
	h.record(r.Context(), shared.AuditLog{
		ActorID:  user.ID,
		Action:   shared.AuditLogin,
		Entity:   "user",
		EntityID: userRef(user.ID),
		Meta:     map[string]any{"remote": r.RemoteAddr},
	})
	httpx.Detail(w, http.StatusOK, "Login successful")
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.cookies.Refresh(r)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("refresh token cookie is missing: %w", shared.ErrBadRequest))
		return
	}
	access, expiresAt, err := h.service.Refresh(r.Context(), raw)
	if err != nil {
		h.event(observability.AuthRefreshFailure)
		h.fail(w, r, "refresh", err)
		return
	}
	h.cookies.SetAccess(w, access, expiresAt)
	h.event(observability.AuthRefreshSuccess)
	httpx.Detail(w, http.StatusOK, "Token refreshed successfully")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	refresh, hasRefresh := h.cookies.Refresh(r)
	access, hasAccess := h.cookies.Access(r)
	if !hasRefresh && !hasAccess {
		httpx.RespondError(w, fmt.Errorf("no token cookies present: %w", shared.ErrBadRequest))
		return
	}

	var actor int64
	if h.resolver != nil {
		if id, err := h.resolver.Resolve(r); err == nil && id != nil {
			actor = id.UserID
		}
	}

	err := h.service.Logout(r.Context(), refresh, access)
	h.cookies.Clear(w)
	if err != nil {
		h.event(observability.AuthRevokeFailure)
		h.logger.WarnContext(r.Context(), "logout revoke failed", slog.Any("error", err), slog.Bool("strict", h.strict))
		if h.strict {
			httpx.RespondError(w, err)
			return
		}
	}

	h.event(observability.AuthLogout)
	if actor > 0 {
		h.record(r.Context(), shared.AuditLog{
			ActorID:  actor,
			Action:   shared.AuditLogout,
			Entity:   "user",
			EntityID: userRef(actor),
		})
	}
	httpx.Detail(w, http.StatusOK, "Logout successful")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) event(outcome string) {
	if h.events != nil {
		h.events.RecordAuth(outcome)
	}
}

// userRef renders a user id as an audit entity reference.
func userRef(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (h *Handler) record(ctx context.Context, entry shared.AuditLog) {
	if err := h.audit.Record(ctx, entry); err != nil {
		h.logger.WarnContext(ctx, "audit record failed", slog.String("action", entry.Action), slog.Any("error", err))
	}
}
