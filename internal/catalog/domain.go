package catalog

import "errors"

// Module is a top-level feature area of the platform.
type Module struct {
	ID         int64       `json:"id"`
	Slug       string      `json:"slug"`
	Name       string      `json:"name"`
	SortOrder  int32       `json:"sort_order"`
	Active     bool        `json:"is_active"`
	Submodules []Submodule `json:"submodules"`
}

// Submodule belongs to exactly one Module.
type Submodule struct {
	ID          int64        `json:"id"`
	ModuleID    int64        `json:"module_id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	SortOrder   int32        `json:"sort_order"`
	Active      bool         `json:"is_active"`
	Permissions []Permission `json:"permissions"`
}

// Permission is an atomic capability inside a submodule. ModuleSlug,
// SubmoduleSlug and Key are denormalised at load time so callers never
// re-derive the canonical key ad hoc.
type Permission struct {
	ID            int64  `json:"id"`
	SubmoduleID   int64  `json:"submodule_id"`
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	ModuleSlug    string `json:"module_slug"`
	SubmoduleSlug string `json:"submodule_slug"`
	Key           string `json:"key"`
}

var (
	// ErrNotFound indicates the requested catalog record does not exist.
	ErrNotFound = errors.New("catalog: not found")
)
