package domain

// Group is a mirrored catalog group (a curated collection of scenes,
// e.g. a movie or a series arc).
type Group struct {
	Syncable
	UserData
	Name     string  `json:"name"`
	Date     string  `json:"date,omitempty"`
	Details  string  `json:"details,omitempty"`
	URL      string  `json:"url,omitempty"`
	StudioID *string `json:"studio_id,omitempty"`

	SceneCount int `json:"scene_count"`

	Studio *Studio `json:"studio,omitempty"`
	Tags   []*Tag  `json:"tags"`
}
