// Package board serves the posts and comments of each business. Every read
// goes through the visibility scope of the caller and every write through
// the ownership rules of the authorization engine.
package board

import (
	"time"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/visibility"
)

// Post is a message published inside a business.
type Post struct {
	ID         int64      `json:"id"`
	BusinessID int64      `json:"business"`
	AuthorID   int64      `json:"-"`
	Author     string     `json:"author"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	IsPublic   bool       `json:"is_public"`
	DeletedAt  *time.Time `json:"deleted_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (p *Post) OwnerID() int64  { return p.AuthorID }
func (p *Post) TenantID() int64 { return p.BusinessID }
func (p *Post) Public() bool    { return p.IsPublic }
func (p *Post) Deleted() bool   { return p.DeletedAt != nil }

// Comment is a reply to a post. It belongs to the business of its post.
type Comment struct {
	ID         int64      `json:"id"`
	PostID     int64      `json:"post"`
	BusinessID int64      `json:"-"`
	AuthorID   int64      `json:"-"`
	Author     string     `json:"author"`
	Content    string     `json:"content"`
	IsPublic   bool       `json:"is_public"`
	DeletedAt  *time.Time `json:"deleted_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Post       PostRef    `json:"-"`
}

func (c *Comment) OwnerID() int64  { return c.AuthorID }
func (c *Comment) TenantID() int64 { return c.BusinessID }
func (c *Comment) Public() bool    { return c.IsPublic }
func (c *Comment) Deleted() bool   { return c.DeletedAt != nil }

// Parent returns the post the comment belongs to. A comment is only as
// visible as its post.
func (c *Comment) Parent() authz.Resource { return c.Post }

// PostRef carries the state of a comment's post that decides who may see it.
type PostRef struct {
	AuthorID   int64
	BusinessID int64
	IsPublic   bool
	DeletedAt  *time.Time
}

func (p PostRef) OwnerID() int64  { return p.AuthorID }
func (p PostRef) TenantID() int64 { return p.BusinessID }
func (p PostRef) Public() bool    { return p.IsPublic }
func (p PostRef) Deleted() bool   { return p.DeletedAt != nil }

var (
	_ authz.Resource = (*Post)(nil)
	_ authz.Resource = (*Comment)(nil)
	_ authz.Resource = PostRef{}
)

// PostInput is the payload of post create and full update.
type PostInput struct {
	Title    string `json:"title" validate:"required,max=255"`
	Content  string `json:"content" validate:"required"`
	IsPublic *bool  `json:"is_public"`
}

// PostPatch is the payload of partial post update.
type PostPatch struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	IsPublic *bool   `json:"is_public"`
}

// CommentInput is the payload of comment create and full update. The post
// of an existing comment cannot be changed.
type CommentInput struct {
	PostID   int64  `json:"post" validate:"required"`
	Content  string `json:"content" validate:"required"`
	IsPublic *bool  `json:"is_public"`
}

// CommentPatch is the payload of partial comment update.
type CommentPatch struct {
	Content  *string `json:"content"`
	IsPublic *bool   `json:"is_public"`
}

// NewPost is the row written on post creation.
type NewPost struct {
	BusinessID int64
	AuthorID   int64
	Title      string
	Content    string
	IsPublic   bool
}

// PostChange is the row written on post update.
type PostChange struct {
	Title    string
	Content  string
	IsPublic bool
}

// NewComment is the row written on comment creation.
type NewComment struct {
	PostID   int64
	AuthorID int64
	Content  string
	IsPublic bool
}

// CommentChange is the row written on comment update.
type CommentChange struct {
	Content  string
	IsPublic bool
}

// PostFilter narrows a post listing inside the caller's scope.
type PostFilter struct {
	Search   string
	IsPublic *bool
	Ordering visibility.Ordering
	Page     int
	PageSize int
}

// CommentFilter narrows a comment listing inside the caller's scope.
type CommentFilter struct {
	Search   string
	IsPublic *bool
	PostID   *int64
	Ordering visibility.Ordering
	Page     int
	PageSize int
}

// Sortable fields.
var (
	PostOrderingFields    = []string{"created_at", "title"}
	CommentOrderingFields = []string{"created_at"}
)
