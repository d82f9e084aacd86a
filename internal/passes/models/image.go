package models

import "time"

// Image is a photo attached to exactly one pass. Path is relative to the
// media root; the binary lives in the media store.
type Image struct {
	ID          int64
	PassID      int64
	Title       string
	Path        string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// ImageInput is a decoded upload awaiting validation and storage.
type ImageInput struct {
	Title string
	Data  []byte
}
