package roles

import (
	"errors"
	"time"
)

// Role is a named, reusable bundle of permissions assignable to users.
type Role struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncResult reports the outcome of a bulk permission sync. A repeated sync
// with the same desired set yields empty Attached and Detached slices.
type SyncResult struct {
	Attached  []int64 `json:"attached"`
	Detached  []int64 `json:"detached"`
	Unchanged []int64 `json:"unchanged"`
}

var (
	// ErrNotFound indicates the role does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrInvalidPermission indicates a desired set referenced a permission
	// id absent from the catalog. Nothing is mutated in that case.
	ErrInvalidPermission = errors.New("roles: unknown permission id")
)
