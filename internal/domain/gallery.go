package domain

// Gallery is a mirrored catalog gallery. Galleries act as containers for
// images: an image with no metadata of its own inherits the gallery's
// studio, date, photographer, details, performers, and tags.
type Gallery struct {
	Syncable
	UserData
	Title        string  `json:"title"`
	Date         string  `json:"date,omitempty"`
	Details      string  `json:"details,omitempty"`
	URL          string  `json:"url,omitempty"`
	Photographer string  `json:"photographer,omitempty"`
	StudioID     *string `json:"studio_id,omitempty"`

	Studio     *Studio      `json:"studio,omitempty"`
	Performers []*Performer `json:"performers"`
	Tags       []*Tag       `json:"tags"`
	SceneIDs   []string     `json:"scene_ids"`
	ImageCount int          `json:"image_count"`
}
