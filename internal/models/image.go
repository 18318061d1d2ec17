package models

import "time"

// Provider recorded on synthesized and locally stored images.
const ProviderLocal = "local"

// ImageFormat is one resized rendition of an image.
type ImageFormat struct {
	Ext    string  `json:"ext"`
	URL    string  `json:"url"`
	Hash   string  `json:"hash"`
	Mime   string  `json:"mime"`
	Name   string  `json:"name"`
	Path   *string `json:"path"`
	Size   float64 `json:"size"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// ImageFormats holds the optional renditions of an image. An absent rendition
// encodes as nothing; an empty set encodes as {}.
type ImageFormats struct {
	Large     *ImageFormat `json:"large,omitempty"`
	Medium    *ImageFormat `json:"medium,omitempty"`
	Small     *ImageFormat `json:"small,omitempty"`
	Thumbnail *ImageFormat `json:"thumbnail,omitempty"`
}

// Each calls fn for every present rendition.
func (f *ImageFormats) Each(fn func(*ImageFormat)) {
	for _, p := range []*ImageFormat{f.Large, f.Medium, f.Small, f.Thumbnail} {
		if p != nil {
			fn(p)
		}
	}
}

// ImageRecord is the media-library record embedded in an image block.
// Size is in kilobytes.
type ImageRecord struct {
	ID              int64        `json:"id,omitempty"`
	Name            string       `json:"name"`
	AlternativeText *string      `json:"alternativeText"`
	Caption         *string      `json:"caption,omitempty"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	Formats         ImageFormats `json:"formats"`
	Hash            string       `json:"hash"`
	Ext             string       `json:"ext"`
	Mime            string       `json:"mime"`
	Size            float64      `json:"size"`
	URL             string       `json:"url"`
	PreviewURL      *string      `json:"previewUrl,omitempty"`
	Provider        string       `json:"provider"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// ImageRef names an image to resolve: Name is the alt text, Source is a URL,
// a data: URI or a base64 payload.
type ImageRef struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// AltText returns a pointer suitable for ImageRecord.AlternativeText; empty
// alt text encodes as null.
func AltText(alt string) *string {
	if alt == "" {
		return nil
	}
	return &alt
}
