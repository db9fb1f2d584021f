package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
)

// FFmpeg is an ImageTransformer that collects the stages as an ffmpeg
// filter chain and runs the tool once when the image is requested.
type FFmpeg struct {
	Path     string // executable, "ffmpeg" when empty
	FontFile string // optional drawtext fontfile
	TempDir  string
}

func NewFFmpeg(path, fontFile string) *FFmpeg {
	return &FFmpeg{Path: path, FontFile: fontFile}
}

func (t *FFmpeg) Open(_ context.Context, path string) (Canvas, error) {
	w, h, err := imageSize(path)
	if err != nil {
		return nil, err
	}
	return &ffmpegCanvas{tool: t, src: path, w: w, h: h}, nil
}

type ffmpegCanvas struct {
	tool    *FFmpeg
	src     string
	w, h    int
	filters []string
}

func (c *ffmpegCanvas) Size() (int, int) { return c.w, c.h }

func (c *ffmpegCanvas) Flatten() error {
	c.filters = append(c.filters, "format=rgb24")
	return nil
}

func (c *ffmpegCanvas) Scale(w, h int) error {
	c.filters = append(c.filters, fmt.Sprintf("scale=%d:%d", w, h))
	c.w, c.h = w, h
	return nil
}

func (c *ffmpegCanvas) Pad(w, h, x, y int, bg color.Color) error {
	c.filters = append(c.filters, fmt.Sprintf("pad=%d:%d:%d:%d:color=%s", w, h, x, y, hexColor(bg)))
	c.w, c.h = w, h
	return nil
}

func (c *ffmpegCanvas) DrawText(text string, y int, size float64, fg color.Color) error {
	f := fmt.Sprintf("drawtext=text='%s':fontcolor=%s:fontsize=%d:x=(w-text_w)/2:y=%d",
		EscapeTitle(text), hexColor(fg), int(size), y)
	if c.tool.FontFile != "" {
		f += fmt.Sprintf(":fontfile='%s'", EscapeTitle(c.tool.FontFile))
	}
	c.filters = append(c.filters, f)
	return nil
}

// FilterChain is the -vf argument built so far.
func (c *ffmpegCanvas) FilterChain() string {
	return strings.Join(c.filters, ",")
}

func (c *ffmpegCanvas) Image(ctx context.Context) (image.Image, error) {
	tmp, err := os.CreateTemp(c.tool.TempDir, "comicframe-*.png")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: create output: %w", err)
	}
	out := tmp.Name()
	tmp.Close()
	defer os.Remove(out)

	bin := c.tool.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, "-i", c.src, "-vf", c.FilterChain(), "-y", out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	img, err := imaging.Open(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: read output: %w", err)
	}
	return img, nil
}

// EscapeTitle protects single quotes, which drawtext treats as the end of
// the text field.
func EscapeTitle(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
