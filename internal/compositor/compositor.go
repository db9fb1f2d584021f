package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"strconv"
	"strings"
)

const (
	DefaultWidth       = 800
	DefaultHeight      = 480
	DefaultPadding     = 10
	DefaultFontSize    = 20
	DefaultTitleOffset = 20
)

// Options control the output canvas.
type Options struct {
	Width       int
	Height      int
	Padding     int
	Background  color.Color
	FontSize    float64
	TitleOffset int // distance of the title's top from the padding edge
}

// DefaultOptions returns the 800x480 layout with a 10px white margin.
func DefaultOptions() Options {
	return Options{
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		Padding:     DefaultPadding,
		Background:  color.White,
		FontSize:    DefaultFontSize,
		TitleOffset: DefaultTitleOffset,
	}
}

// Compositor letterboxes a comic onto a fixed-size canvas.
type Compositor struct {
	Transformer ImageTransformer
}

func New(t ImageTransformer) *Compositor {
	return &Compositor{Transformer: t}
}

// Compose runs the transform chain on the image at path: flatten, downscale
// to fit the inner region, center inside it, add the outer margin and draw
// the title when one is given. Any failing stage aborts the whole chain.
func (c *Compositor) Compose(ctx context.Context, path, title string, opts Options) (image.Image, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Background == nil {
		opts.Background = color.White
	}
	if opts.FontSize <= 0 {
		opts.FontSize = DefaultFontSize
	}

	innerW := opts.Width - 2*opts.Padding
	innerH := opts.Height - 2*opts.Padding
	if opts.Padding < 0 || innerW <= 0 || innerH <= 0 {
		return nil, fmt.Errorf("compose: padding %d does not fit %dx%d", opts.Padding, opts.Width, opts.Height)
	}

	cv, err := c.Transformer.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("compose: open %s: %w", path, err)
	}

	if err := cv.Flatten(); err != nil {
		return nil, fmt.Errorf("compose: flatten: %w", err)
	}

	w, h := cv.Size()
	fw, fh := FitWithin(w, h, innerW, innerH)
	if fw != w || fh != h {
		log.Printf("[compositor] scaling %dx%d down to %dx%d", w, h, fw, fh)
		if err := cv.Scale(fw, fh); err != nil {
			return nil, fmt.Errorf("compose: scale: %w", err)
		}
	}

	if err := cv.Pad(innerW, innerH, (innerW-fw)/2, (innerH-fh)/2, opts.Background); err != nil {
		return nil, fmt.Errorf("compose: center: %w", err)
	}
	if err := cv.Pad(opts.Width, opts.Height, opts.Padding, opts.Padding, opts.Background); err != nil {
		return nil, fmt.Errorf("compose: pad: %w", err)
	}

	if title = strings.TrimSpace(title); title != "" {
		if err := cv.DrawText(title, opts.Padding+opts.TitleOffset, opts.FontSize, color.Black); err != nil {
			return nil, fmt.Errorf("compose: title: %w", err)
		}
	}

	out, err := cv.Image(ctx)
	if err != nil {
		return nil, fmt.Errorf("compose: render: %w", err)
	}
	return out, nil
}

// FitWithin returns the size of a w x h image uniformly scaled down so both
// sides fit maxW x maxH. Images that already fit are returned unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	// compare w/h against maxW/maxH without floats
	if maxW*h <= maxH*w {
		nh := h * maxW / w
		if nh < 1 {
			nh = 1
		}
		return maxW, nh
	}
	nw := w * maxH / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxH
}

// ParseColor accepts a few names and #rrggbb.
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "white":
		return color.White, nil
	case "black":
		return color.Black, nil
	case "gray", "grey":
		return color.Gray{Y: 0x80}, nil
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	if len(hex) != 6 {
		return nil, fmt.Errorf("unknown color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("unknown color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// hexColor formats c as 0xRRGGBB, ignoring alpha.
func hexColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("0x%02X%02X%02X", n.R, n.G, n.B)
}
