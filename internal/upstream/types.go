package upstream

import (
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
)

// RawEntity is one record as reported by the upstream catalog: scalar
// fields plus arrays of related-entity IDs. The upstream owns this shape;
// the mirror only consumes it. Fields irrelevant to a given entity type
// are simply absent.
type RawEntity struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`

	Title          string `json:"title,omitempty"`
	Name           string `json:"name,omitempty"`
	Date           string `json:"date,omitempty"`
	Details        string `json:"details,omitempty"` // may contain HTML
	URL            string `json:"url,omitempty"`
	Code           string `json:"code,omitempty"`
	DurationSec    int64  `json:"duration,omitempty"`
	Disambiguation string `json:"disambiguation,omitempty"`
	Gender         string `json:"gender,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	Country        string `json:"country,omitempty"`
	Description    string `json:"description,omitempty"` // may contain HTML
	Photographer   string `json:"photographer,omitempty"`

	StudioID *string `json:"studio_id,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`

	ParentIDs    []string `json:"parent_ids,omitempty"` // tag hierarchy
	PerformerIDs []string `json:"performer_ids,omitempty"`
	TagIDs       []string `json:"tag_ids,omitempty"`
	GroupIDs     []string `json:"group_ids,omitempty"`
	GalleryIDs   []string `json:"gallery_ids,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// entityPath maps an entity type to its upstream collection path segment.
func entityPath(t domain.EntityType) string {
	switch t {
	case domain.EntityScene:
		return "scenes"
	case domain.EntityPerformer:
		return "performers"
	case domain.EntityStudio:
		return "studios"
	case domain.EntityTag:
		return "tags"
	case domain.EntityGallery:
		return "galleries"
	case domain.EntityGroup:
		return "groups"
	case domain.EntityImage:
		return "images"
	}
	return string(t)
}
