package selector

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
)

// Bounds are the acceptance limits for a comic image. All comparisons are
// strict.
type Bounds struct {
	MinAspect float64 // width must exceed height * MinAspect
	MinWidth  int
	MaxWidth  int
	MinHeight int
	MaxHeight int
}

// DefaultBounds accepts horizontal comics that fit a small landscape panel.
var DefaultBounds = Bounds{
	MinAspect: 1.2,
	MinWidth:  250,
	MaxWidth:  1000,
	MinHeight: 250,
	MaxHeight: 600,
}

// Accepts reports whether a w x h image is within b.
func (b Bounds) Accepts(w, h int) bool {
	return float64(w) > float64(h)*b.MinAspect &&
		b.MinWidth < w && w < b.MaxWidth &&
		b.MinHeight < h && h < b.MaxHeight
}

// Filter checks downloaded images against Bounds.
type Filter struct {
	Bounds Bounds
}

func NewFilter() *Filter {
	return &Filter{Bounds: DefaultBounds}
}

// IsSuitable decodes the image header at path. Undecodable files are not
// suitable.
func (f *Filter) IsSuitable(path string) bool {
	w, h, err := imageSize(path)
	if err != nil {
		log.Printf("[selector] checking suitability of %s: %v", path, err)
		return false
	}
	return f.Bounds.Accepts(w, h)
}

func imageSize(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
