package overrides

import (
	"errors"
	"time"
)

// Override is a per-user, per-permission explicit grant or deny. At most one
// row exists per (user, permission) pair; mutation is upsert-by-key, never
// append.
type Override struct {
	UserID       int64      `json:"user_id"`
	PermissionID int64      `json:"permission_id"`
	Granted      bool       `json:"granted"`
	GrantedBy    int64      `json:"granted_by"`
	GrantedAt    time.Time  `json:"granted_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the override still participates in resolution at
// the given instant. An expired override behaves exactly as if it never
// existed.
func (o Override) Active(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

var (
	// ErrInvalidPermission indicates the referenced permission id is absent
	// from the catalog.
	ErrInvalidPermission = errors.New("overrides: unknown permission id")
	// ErrInvalidInput indicates a malformed request, e.g. a zero user id.
	ErrInvalidInput = errors.New("overrides: invalid input")
)
