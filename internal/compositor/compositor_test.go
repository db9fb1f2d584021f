package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"
)

// recordingTransformer logs every stage call instead of drawing.
type recordingTransformer struct {
	w, h    int
	calls   []string
	failAt  string
	openErr error
}

func (r *recordingTransformer) Open(context.Context, string) (Canvas, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return &recordingCanvas{r: r, w: r.w, h: r.h}, nil
}

type recordingCanvas struct {
	r    *recordingTransformer
	w, h int
}

func (c *recordingCanvas) record(stage, call string) error {
	c.r.calls = append(c.r.calls, call)
	if c.r.failAt == stage {
		return errors.New(stage + " exploded")
	}
	return nil
}

func (c *recordingCanvas) Size() (int, int) { return c.w, c.h }
func (c *recordingCanvas) Flatten() error   { return c.record("flatten", "flatten") }
func (c *recordingCanvas) Scale(w, h int) error {
	c.w, c.h = w, h
	return c.record("scale", fmt.Sprintf("scale %dx%d", w, h))
}
func (c *recordingCanvas) Pad(w, h, x, y int, _ color.Color) error {
	c.w, c.h = w, h
	return c.record("pad", fmt.Sprintf("pad %dx%d at %d,%d", w, h, x, y))
}
func (c *recordingCanvas) DrawText(text string, y int, size float64, _ color.Color) error {
	return c.record("text", fmt.Sprintf("text %q y=%d size=%g", text, y, size))
}
func (c *recordingCanvas) Image(context.Context) (image.Image, error) {
	if err := c.record("image", "image"); err != nil {
		return nil, err
	}
	return image.NewNRGBA(image.Rect(0, 0, c.w, c.h)), nil
}

func TestCompose_StageOrder(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		title string
		want  []string
	}{
		{
			name:  "large image is scaled then centered and titled",
			w:     900,
			h:     400,
			title: "Sandwich",
			want: []string{
				"flatten",
				"scale 780x346",
				"pad 780x460 at 0,57",
				"pad 800x480 at 10,10",
				`text "Sandwich" y=30 size=20`,
				"image",
			},
		},
		{
			name: "small image is never scaled up",
			w:    300,
			h:    200,
			want: []string{
				"flatten",
				"pad 780x460 at 240,130",
				"pad 800x480 at 10,10",
				"image",
			},
		},
		{
			name:  "exact fit needs no scale",
			w:     780,
			h:     460,
			title: "   ",
			want: []string{
				"flatten",
				"pad 780x460 at 0,0",
				"pad 800x480 at 10,10",
				"image",
			},
		},
		{
			name: "tall image is height-limited",
			w:    500,
			h:    920,
			want: []string{
				"flatten",
				"scale 250x460",
				"pad 780x460 at 265,0",
				"pad 800x480 at 10,10",
				"image",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingTransformer{w: tt.w, h: tt.h}
			out, err := New(rec).Compose(context.Background(), "comic.png", tt.title, DefaultOptions())
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if got := strings.Join(rec.calls, "\n"); got != strings.Join(tt.want, "\n") {
				t.Errorf("stages:\n%s\nwant:\n%s", got, strings.Join(tt.want, "\n"))
			}
			if b := out.Bounds(); b.Dx() != 800 || b.Dy() != 480 {
				t.Errorf("output %dx%d, want 800x480", b.Dx(), b.Dy())
			}
		})
	}
}

func TestCompose_StageFailureAborts(t *testing.T) {
	for _, stage := range []string{"flatten", "scale", "pad", "text", "image"} {
		t.Run(stage, func(t *testing.T) {
			rec := &recordingTransformer{w: 900, h: 400, failAt: stage}
			out, err := New(rec).Compose(context.Background(), "comic.png", "Title", DefaultOptions())
			if err == nil {
				t.Fatal("Compose() expected error")
			}
			if out != nil {
				t.Error("Compose() returned partial output")
			}
		})
	}

	t.Run("open", func(t *testing.T) {
		rec := &recordingTransformer{openErr: errors.New("unreadable")}
		if _, err := New(rec).Compose(context.Background(), "comic.png", "", DefaultOptions()); err == nil {
			t.Fatal("Compose() expected error")
		}
	})

	t.Run("padding larger than canvas", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Padding = 300
		if _, err := New(&recordingTransformer{w: 10, h: 10}).Compose(context.Background(), "comic.png", "", opts); err == nil {
			t.Fatal("Compose() expected error")
		}
	})
}

func TestCompose_CustomDevice(t *testing.T) {
	rec := &recordingTransformer{w: 900, h: 400}
	opts := DefaultOptions()
	opts.Width, opts.Height, opts.Padding = 640, 384, 8

	out, err := New(rec).Compose(context.Background(), "comic.png", "", opts)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if b := out.Bounds(); b.Dx() != 640 || b.Dy() != 384 {
		t.Errorf("output %dx%d, want 640x384", b.Dx(), b.Dy())
	}
	if rec.calls[1] != "scale 624x277" {
		t.Errorf("scale stage = %s, want scale 624x277", rec.calls[1])
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{100, 50, 780, 460, 100, 50},
		{780, 460, 780, 460, 780, 460},
		{900, 400, 780, 460, 780, 346},
		{1560, 920, 780, 460, 780, 460},
		{500, 920, 780, 460, 250, 460},
		{5000, 1, 780, 460, 780, 1},
	}
	for _, tt := range tests {
		gotW, gotH := FitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("FitWithin(%d,%d,%d,%d) = %dx%d, want %dx%d",
				tt.w, tt.h, tt.maxW, tt.maxH, gotW, gotH, tt.wantW, tt.wantH)
		}
		if gotW > tt.w || gotH > tt.h {
			t.Errorf("FitWithin(%d,%d) upscaled to %dx%d", tt.w, tt.h, gotW, gotH)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"white", "0xFFFFFF", false},
		{"", "0xFFFFFF", false},
		{"Black", "0x000000", false},
		{"#1a2B3c", "0x1A2B3C", false},
		{"0xff8000", "0xFF8000", false},
		{"chartreuse", "", true},
		{"#12345", "", true},
		{"#zzzzzz", "", true},
	}
	for _, tt := range tests {
		c, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && hexColor(c) != tt.want {
			t.Errorf("ParseColor(%q) = %s, want %s", tt.in, hexColor(c), tt.want)
		}
	}
}

func TestCompose_UnreadableSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.png")
	if _, err := New(NewImaging("")).Compose(context.Background(), path, "", DefaultOptions()); err == nil {
		t.Fatal("Compose() expected error for a missing file")
	}
}
