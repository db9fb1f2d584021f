package models

import (
	"strings"
	"time"
)

// ComicMetadata is the normalized form of a single comic entry returned by
// the metadata endpoint (info.0.json).
type ComicMetadata struct {
	ID        int    `json:"num"`        // comic number, positive
	ImageURL  string `json:"img"`        // absolute URL of the raster image
	Title     string `json:"title"`      // display title
	SafeTitle string `json:"safe_title"` // overlay-safe variant of Title
}

// DisplayTitle returns the title used for overlays: SafeTitle, falling back
// to Title when the service left it empty.
func (m ComicMetadata) DisplayTitle() string {
	if t := strings.TrimSpace(m.SafeTitle); t != "" {
		return t
	}
	return strings.TrimSpace(m.Title)
}

// AcceptedComic is a downloaded comic that passed the suitability check.
// ImagePath lives in the scratch scope of the invocation that produced it.
type AcceptedComic struct {
	ID        int
	ImageURL  string
	ImagePath string
	Title     string
	Attempts  int
}

// RenderRecord is one row of the render history.
type RenderRecord struct {
	ID         string    `json:"id"`        // uuid
	ComicID    int       `json:"comic_id"`  // comic number
	Title      string    `json:"title"`     // overlay title (may be empty)
	ImageURL   string    `json:"image_url"` // source image URL
	Attempts   int       `json:"attempts"`  // selection attempts used
	Width      int       `json:"width"`     // output canvas width
	Height     int       `json:"height"`    // output canvas height
	RenderedAt time.Time `json:"rendered_at"`
}
