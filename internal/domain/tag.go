package domain

// Tag is a mirrored catalog tag. Tags form a hierarchy of unbounded depth
// through parent links; cycles are not expected upstream but every graph
// walk over the hierarchy guards with a visited set.
type Tag struct {
	Syncable
	UserData
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	SceneCount   int `json:"scene_count"`
	GalleryCount int `json:"gallery_count"`
	ImageCount   int `json:"image_count"`

	// Hydrated parent tags.
	Parents []*Tag `json:"parents"`
}
