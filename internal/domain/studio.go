package domain

// Studio is a mirrored catalog studio. Studios may nest via ParentID.
type Studio struct {
	Syncable
	UserData
	Name     string  `json:"name"`
	URL      string  `json:"url,omitempty"`
	Details  string  `json:"details,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`

	SceneCount   int `json:"scene_count"`
	GalleryCount int `json:"gallery_count"`
	ImageCount   int `json:"image_count"`
	GroupCount   int `json:"group_count"`

	// Hydrated parent studio, when any.
	Parent *Studio `json:"parent,omitempty"`
}
