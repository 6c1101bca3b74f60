package domain

import "time"

// Rating is a per-user rating overlay row. Overlay rows have a lifecycle
// independent from the cached entity: created on first user interaction,
// never touched by sync, and they always win over any upstream-reported
// default of the same concept.
type Rating struct {
	UserID     string     `json:"user_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Rating     int        `json:"rating"` // 0-100
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Favorite marks an entity as a favorite of one user.
type Favorite struct {
	UserID     string     `json:"user_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// View is one watch/view history event. An entity's per-user view count is
// the number of View rows for that (user, entity) pair.
type View struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	ViewedAt   time.Time  `json:"viewed_at"`
}

// OEvent is one O-counter history event.
type OEvent struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Exclusion hides an entity from one user's query results. An excluded
// entity also hides everything that inherits visibility from it: excluding
// a studio hides its scenes, galleries, groups, and images; excluding a
// performer hides entities featuring that performer. Admin requests bypass
// exclusions entirely.
type Exclusion struct {
	UserID     string     `json:"user_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	CreatedAt  time.Time  `json:"created_at"`
}
