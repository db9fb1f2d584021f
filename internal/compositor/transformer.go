package compositor

import (
	"context"
	"image"
	"image/color"
)

// ImageTransformer opens a source image as a Canvas. Implementations may
// apply each stage eagerly (Imaging) or collect the stages and run them in
// one go when Image is called (FFmpeg).
type ImageTransformer interface {
	Open(ctx context.Context, path string) (Canvas, error)
}

// Canvas exposes one method per composition stage. Stages are applied in the
// order they are called; each one sees the output of the previous one.
type Canvas interface {
	// Size returns the current dimensions.
	Size() (w, h int)
	// Flatten discards the alpha channel without blending.
	Flatten() error
	// Scale resizes to exactly w x h.
	Scale(w, h int) error
	// Pad places the current image at (x, y) on a w x h canvas filled with bg.
	Pad(w, h, x, y int, bg color.Color) error
	// DrawText draws a single line horizontally centered, its top at y.
	DrawText(text string, y int, size float64, fg color.Color) error
	// Image returns the finished bitmap.
	Image(ctx context.Context) (image.Image, error)
}
