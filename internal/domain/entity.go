// Package domain contains the core entities of the mirrored catalog and the
// per-user overlay types layered on top of them.
package domain

import "fmt"

// EntityType identifies one of the seven mirrored catalog entity kinds.
type EntityType string

// Entity types, in sync dependency order (see SyncOrder).
const (
	EntityTag       EntityType = "tag"
	EntityStudio    EntityType = "studio"
	EntityPerformer EntityType = "performer"
	EntityGallery   EntityType = "gallery"
	EntityGroup     EntityType = "group"
	EntityScene     EntityType = "scene"
	EntityImage     EntityType = "image"
)

// SyncOrder lists entity types in dependency order: a type appears after
// every type it references, so junction inserts never dangle.
var SyncOrder = []EntityType{
	EntityTag,
	EntityStudio,
	EntityPerformer,
	EntityGallery,
	EntityGroup,
	EntityScene,
	EntityImage,
}

// ParseEntityType converts a string to an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityTag, EntityStudio, EntityPerformer, EntityGallery, EntityGroup, EntityScene, EntityImage:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Role is the requesting user's role, as asserted by the fronting system.
type Role string

// Roles. Admins bypass visibility exclusions; everyone else does not.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsAdmin reports whether the role bypasses per-user exclusion filtering.
func (r Role) IsAdmin() bool { return r == RoleAdmin }
