// Package authz holds the role model and the ownership rules shared by every
// board resource.
package authz

import (
	"fmt"
	"strings"

	"github.com/miniintern/bizboard/internal/shared"
)

// Role is the closed set of business roles.
type Role string

const (
	// RoleAdmin administers a business.
	RoleAdmin Role = "admin"
	// RoleMember is a regular business member.
	RoleMember Role = "member"
)

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	}
	return "", fmt.Errorf("%q is not a valid choice: %w", raw, shared.ErrValidation)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

func (r Role) String() string {
	return string(r)
}

// Identity is the authenticated actor of a single request. A nil *Identity
// stands for an anonymous caller.
type Identity struct {
	UserID     int64
	Username   string
	Role       Role
	BusinessID *int64
	IsActive   bool
}

// Anonymous reports whether no identity was established.
func (i *Identity) Anonymous() bool {
	return i == nil
}

// InBusiness reports whether the identity belongs to the given business.
func (i *Identity) InBusiness(businessID int64) bool {
	return i != nil && i.BusinessID != nil && *i.BusinessID == businessID
}

// Resource is implemented by anything subject to ownership and visibility rules.
type Resource interface {
	OwnerID() int64
	TenantID() int64
	Public() bool
	Deleted() bool
}

// ListScope selects how far admin list views reach.
type ListScope string

const (
	// ListScopeBusiness limits admin lists to the admin's business.
	ListScopeBusiness ListScope = "business"
	// ListScopeGlobal lets admins list every business.
	ListScopeGlobal ListScope = "global"
)

// Policy captures the deployment choices for behaviour that is not fixed by
// the access rules themselves.
type Policy struct {
	// AdminReadsDeleted lets admins fetch soft-deleted resources by id.
	AdminReadsDeleted bool
	// OwnerReadsDeleted lets authors see their own soft-deleted resources.
	OwnerReadsDeleted bool
	// AdminListScope bounds admin list views.
	AdminListScope ListScope
}

// DefaultPolicy is used when no deployment overrides are configured.
func DefaultPolicy() Policy {
	return Policy{AdminReadsDeleted: true, AdminListScope: ListScopeBusiness}
}
