// Package businesses manages the tenants that users, posts and comments belong to.
package businesses

import (
	"fmt"
	"time"

	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/visibility"
)

// ErrBusinessInUse is returned when deleting a business that still owns posts.
var ErrBusinessInUse = fmt.Errorf("business still has posts: %w", shared.ErrConflict)

// Business is a tenant.
type Business struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is the payload of create and full update.
type Input struct {
	Name string `json:"name" validate:"required,max=255"`
}

// Patch is the payload of partial update.
type Patch struct {
	Name *string `json:"name"`
}

// ListFilter narrows and orders the business directory.
type ListFilter struct {
	Search   string
	Name     string
	Ordering visibility.Ordering
	Page     int
	PageSize int
}

// DefaultOrdering sorts the directory by name.
var DefaultOrdering = visibility.Ordering{Field: "name"}

// OrderingFields whitelists the sortable columns.
var OrderingFields = []string{"name"}
