// Package visibility derives which posts and comments a caller may list.
//
// A Scope is evaluated two ways: Contains applies it to a loaded resource and
// Where renders the same rule as a SQL predicate, so repositories and
// in-process checks never disagree.
package visibility

import (
	"strconv"
	"strings"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/shared"
)

// Kind names the resource collection being scoped.
type Kind string

const (
	KindBusiness Kind = "business"
	KindPost     Kind = "post"
	KindComment  Kind = "comment"
)

// Options are the per-endpoint choices a list view makes explicitly.
type Options struct {
	// IncludeDeleted lets admin list views show soft-deleted rows for moderation.
	// It never widens a member's scope.
	IncludeDeleted bool
	// AuthorID narrows the scope to resources written by one author.
	AuthorID *int64
}

// Scope is the predicate a list operation runs under.
type Scope struct {
	all             bool
	none            bool
	businessID      *int64
	member          bool
	viewerID        int64
	ownerSeeDeleted bool
	includeDeleted  bool
	authorID        *int64
}

// Child is a resource whose visibility is also bounded by its parent.
type Child interface {
	authz.Resource
	Parent() authz.Resource
}

// For derives the scope of identity id over the given collection.
func For(id *authz.Identity, kind Kind, policy authz.Policy, opts Options) (Scope, error) {
	if kind == KindBusiness {
		return Scope{all: true}, nil
	}
	if id.Anonymous() {
		return Scope{}, shared.ErrUnauthenticated
	}
	scope := Scope{authorID: opts.AuthorID}
	if authz.IsBusinessAdmin(id) {
		scope.includeDeleted = opts.IncludeDeleted
		switch {
		case policy.AdminListScope == authz.ListScopeGlobal:
			scope.all = true
		case id.BusinessID == nil:
			scope.none = true
		default:
			business := *id.BusinessID
			scope.businessID = &business
		}
		return scope, nil
	}
	scope.member = true
	scope.viewerID = id.UserID
	scope.ownerSeeDeleted = policy.OwnerReadsDeleted
	return scope, nil
}

// Contains reports whether res falls inside the scope.
func (s Scope) Contains(res authz.Resource) bool {
	if res == nil || s.none {
		return false
	}
	if s.authorID != nil && res.OwnerID() != *s.authorID {
		return false
	}
	if s.member {
		if !s.memberSees(res) {
			return false
		}
		if child, ok := res.(Child); ok {
			return s.memberSees(child.Parent())
		}
		return true
	}
	if !s.includeDeleted && res.Deleted() {
		return false
	}
	if s.all {
		return true
	}
	return s.businessID != nil && res.TenantID() == *s.businessID
}

func (s Scope) memberSees(res authz.Resource) bool {
	if res == nil {
		return false
	}
	own := res.OwnerID() == s.viewerID
	if s.ownerSeeDeleted {
		return own || (res.Public() && !res.Deleted())
	}
	return (res.Public() || own) && !res.Deleted()
}

// Columns maps the scope's attributes onto SQL column expressions.
type Columns struct {
	Business  string
	Author    string
	Public    string
	DeletedAt string
	// Parent, when set, holds the columns of the parent row. Members must be
	// able to see the parent as well.
	Parent *Columns
}

// Args accumulates positional query arguments.
type Args struct {
	values []any
}

// Add appends v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// Values returns the accumulated arguments.
func (a *Args) Values() []any {
	return a.values
}

// Where renders the scope as a SQL boolean expression.
func (s Scope) Where(cols Columns, args *Args) string {
	if s.none {
		return "FALSE"
	}
	var clauses []string
	if s.authorID != nil {
		clauses = append(clauses, cols.Author+" = "+args.Add(*s.authorID))
	}
	switch {
	case s.member:
		viewer := args.Add(s.viewerID)
		clauses = append(clauses, s.memberWhere(cols, viewer)...)
		if cols.Parent != nil {
			clauses = append(clauses, s.memberWhere(*cols.Parent, viewer)...)
		}
	default:
		if !s.includeDeleted {
			clauses = append(clauses, cols.DeletedAt+" IS NULL")
		}
		if !s.all && s.businessID != nil {
			clauses = append(clauses, cols.Business+" = "+args.Add(*s.businessID))
		}
	}
	if len(clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(clauses, " AND ")
}

func (s Scope) memberWhere(cols Columns, viewer string) []string {
	if s.ownerSeeDeleted {
		return []string{"(" + cols.Author + " = " + viewer + " OR (" + cols.Public + " AND " + cols.DeletedAt + " IS NULL))"}
	}
	return []string{"(" + cols.Public + " OR " + cols.Author + " = " + viewer + ")", cols.DeletedAt + " IS NULL"}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern builds an ILIKE pattern matching s anywhere, with wildcards in
// s escaped.
func LikePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
