package domain

// Image is a mirrored catalog image. Images live inside galleries and
// inherit container metadata when they carry none of their own.
type Image struct {
	Syncable
	UserData
	Title        string  `json:"title"`
	Date         string  `json:"date,omitempty"`
	Details      string  `json:"details,omitempty"`
	Photographer string  `json:"photographer,omitempty"`
	URL          string  `json:"url,omitempty"`
	StudioID     *string `json:"studio_id,omitempty"`

	Studio     *Studio      `json:"studio,omitempty"`
	Performers []*Performer `json:"performers"`
	Tags       []*Tag       `json:"tags"`
	GalleryIDs []string     `json:"gallery_ids"`
}
