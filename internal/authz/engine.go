package authz

import (
	"net/http"

	"github.com/miniintern/bizboard/internal/shared"
)

// IsBusinessAdmin reports whether the identity holds the admin role.
func IsBusinessAdmin(id *Identity) bool {
	return id != nil && id.Role == RoleAdmin
}

// IsOwner reports whether the identity authored the resource.
func IsOwner(id *Identity, res Resource) bool {
	return id != nil && res != nil && res.OwnerID() == id.UserID
}

// IsOwnerOrAdmin reports whether the identity authored the resource or is an admin.
func IsOwnerOrAdmin(id *Identity, res Resource) bool {
	return IsOwner(id, res) || IsBusinessAdmin(id)
}

// IsReadMethod reports whether the HTTP method only reads state.
func IsReadMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// IsOwnerOrReadOnly permits reads to anyone and writes to the owner or an admin.
func IsOwnerOrReadOnly(id *Identity, res Resource, method string) bool {
	if IsReadMethod(method) {
		return true
	}
	return IsOwnerOrAdmin(id, res)
}

// Engine evaluates access decisions under a deployment Policy.
type Engine struct {
	policy Policy
}

// NewEngine constructs an Engine.
func NewEngine(policy Policy) *Engine {
	if policy.AdminListScope == "" {
		policy.AdminListScope = ListScopeBusiness
	}
	return &Engine{policy: policy}
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// RequireIdentity fails for anonymous callers.
func (e *Engine) RequireIdentity(id *Identity) error {
	if id.Anonymous() {
		return shared.ErrUnauthenticated
	}
	return nil
}

// RequireAdmin fails unless the caller is an authenticated admin.
func (e *Engine) RequireAdmin(id *Identity) error {
	if err := e.RequireIdentity(id); err != nil {
		return err
	}
	if !IsBusinessAdmin(id) {
		return shared.ErrForbidden
	}
	return nil
}

// CanListBusinesses always succeeds; the business directory is public.
func (e *Engine) CanListBusinesses(*Identity) error {
	return nil
}

// CanCreateContent allows any authenticated identity to create posts and comments.
func (e *Engine) CanCreateContent(id *Identity) error {
	return e.RequireIdentity(id)
}

// AdminReaches reports whether an admin's authority covers the resource tenant.
func (e *Engine) AdminReaches(id *Identity, tenantID int64) bool {
	if !IsBusinessAdmin(id) {
		return false
	}
	return e.policy.AdminListScope == ListScopeGlobal || id.InBusiness(tenantID)
}

// CanView decides detail reads. Inaccessible resources yield ErrNotFound so
// their existence is not revealed.
func (e *Engine) CanView(id *Identity, res Resource) error {
	if err := e.RequireIdentity(id); err != nil {
		return err
	}
	switch {
	case e.AdminReaches(id, res.TenantID()):
		if res.Deleted() && !e.policy.AdminReadsDeleted {
			return shared.ErrNotFound
		}
		return nil
	case IsOwner(id, res):
		if res.Deleted() && !e.policy.OwnerReadsDeleted {
			return shared.ErrNotFound
		}
		return nil
	case res.Public() && !res.Deleted():
		return nil
	}
	return shared.ErrNotFound
}

// CanModify decides update and delete rights.
func (e *Engine) CanModify(id *Identity, res Resource) error {
	if err := e.RequireIdentity(id); err != nil {
		return err
	}
	if IsOwner(id, res) || e.AdminReaches(id, res.TenantID()) {
		return nil
	}
	return shared.ErrForbidden
}
