package domain

// Performer is a mirrored catalog performer.
type Performer struct {
	Syncable
	UserData
	Name           string `json:"name"`
	Disambiguation string `json:"disambiguation,omitempty"`
	Gender         string `json:"gender,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	Country        string `json:"country,omitempty"`
	Details        string `json:"details,omitempty"`
	URL            string `json:"url,omitempty"`

	// Denormalized reference counts, rebuilt after sync. Global, not
	// user-specific; the query engine substitutes per-user visible counts
	// for non-admin requests.
	SceneCount   int `json:"scene_count"`
	GalleryCount int `json:"gallery_count"`
	ImageCount   int `json:"image_count"`
}
