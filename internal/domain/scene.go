package domain

import "time"

// Syncable carries the fields every mirrored entity shares: the upstream
// external ID (stable across syncs, used as primary key), the upstream
// modification timestamp used for incremental diffing, and the local
// soft-delete marker. Entities absent from a full sync are soft-deleted,
// never removed, so per-user overlay rows keep a valid reference.
type Syncable struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SyncedAt  time.Time  `json:"synced_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// UserData carries the per-user overlay values merged into an entity at
// query time. A missing overlay row yields the zero value, never an error.
type UserData struct {
	Rating    *int `json:"rating,omitempty"` // 0-100, nil when the user has not rated
	Favorite  bool `json:"favorite,omitempty"`
	ViewCount int  `json:"view_count,omitempty"`
	OCount    int  `json:"o_count,omitempty"`
}

// Scene is a mirrored catalog scene.
type Scene struct {
	Syncable
	UserData
	Title       string  `json:"title"`
	Date        string  `json:"date,omitempty"` // YYYY-MM-DD as reported upstream
	Details     string  `json:"details,omitempty"`
	URL         string  `json:"url,omitempty"`
	Code        string  `json:"code,omitempty"`
	DurationSec int64   `json:"duration_sec,omitempty"`
	StudioID    *string `json:"studio_id,omitempty"`

	// Hydrated relations. Every code path returning scenes attaches the
	// full set; the only sanctioned alternative is the explicit IDs-only
	// query mode which returns no entities at all.
	Studio     *Studio      `json:"studio,omitempty"`
	Performers []*Performer `json:"performers"`
	Tags       []*Tag       `json:"tags"`
	Groups     []*Group     `json:"groups"`
	GalleryIDs []string     `json:"gallery_ids"`
}
