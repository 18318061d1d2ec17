package mapper

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iteam-company/blockpress/internal/models"
)

const (
	defaultExt  = ".jpg"
	defaultMime = "image/jpeg"
)

var (
	// Extensions outside [A-Za-z0-9] fall back to defaultExt.
	extRe = regexp.MustCompile(`\.([A-Za-z0-9]+)$`)

	mimeByExt = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".svg":  "image/svg+xml",
	}
)

// MimeType returns the MIME type for an extension such as ".png",
// defaulting to image/jpeg.
func MimeType(ext string) string {
	if m, ok := mimeByExt[strings.ToLower(ext)]; ok {
		return m
	}
	return defaultMime
}

// SynthesizeImage builds an image record from a URL alone, without fetching
// anything. Size is zero and formats are empty.
func SynthesizeImage(src, alt string, width, height int) models.ImageRecord {
	return synthesize(src, alt, width, height, time.Now().UTC())
}

func synthesize(src, alt string, width, height int, now time.Time) models.ImageRecord {
	ext, name := describe(src)
	return models.ImageRecord{
		Name:            name,
		AlternativeText: models.AltText(alt),
		Width:           width,
		Height:          height,
		Hash:            strings.ReplaceAll(uuid.NewString(), "-", ""),
		Ext:             ext,
		Mime:            MimeType(ext),
		URL:             src,
		Provider:        models.ProviderLocal,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// describe derives the extension and file name of an image source.
func describe(src string) (ext, name string) {
	if strings.HasPrefix(src, "data:") {
		header, _, _ := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
		mime, _, _ := strings.Cut(header, ";")
		for e, m := range mimeByExt {
			if m == mime && e != ".jpeg" {
				return e, "image"
			}
		}
		return defaultExt, "image"
	}

	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}
	name = p[strings.LastIndex(p, "/")+1:]
	if name == "" {
		name = "image"
	}
	ext = defaultExt
	if m := extRe.FindStringSubmatch(name); m != nil {
		ext = "." + strings.ToLower(m[1])
	}
	return ext, name
}
