package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Imaging is the in-process ImageTransformer.
type Imaging struct {
	// FontFile is a TTF/OTF used for titles; Go Regular when empty.
	FontFile string

	once    sync.Once
	font    *opentype.Font
	fontErr error
}

func NewImaging(fontFile string) *Imaging {
	return &Imaging{FontFile: fontFile}
}

func (t *Imaging) Open(_ context.Context, path string) (Canvas, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return &imagingCanvas{img: imaging.Clone(img), fonts: t}, nil
}

func (t *Imaging) loadFont() (*opentype.Font, error) {
	t.once.Do(func() {
		data := goregular.TTF
		if t.FontFile != "" {
			b, err := os.ReadFile(t.FontFile)
			if err != nil {
				t.fontErr = fmt.Errorf("read font: %w", err)
				return
			}
			data = b
		}
		t.font, t.fontErr = opentype.Parse(data)
		if t.fontErr != nil {
			t.fontErr = fmt.Errorf("parse font: %w", t.fontErr)
		}
	})
	return t.font, t.fontErr
}

type imagingCanvas struct {
	img   *image.NRGBA
	fonts *Imaging
}

func (c *imagingCanvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *imagingCanvas) Flatten() error {
	pix := c.img.Pix
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 0xff
	}
	return nil
}

func (c *imagingCanvas) Scale(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid size %dx%d", w, h)
	}
	c.img = imaging.Resize(c.img, w, h, imaging.Lanczos)
	return nil
}

func (c *imagingCanvas) Pad(w, h, x, y int, bg color.Color) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid size %dx%d", w, h)
	}
	dst := imaging.New(w, h, bg)
	c.img = imaging.Paste(dst, c.img, image.Pt(x, y))
	return nil
}

func (c *imagingCanvas) DrawText(text string, y int, size float64, fg color.Color) error {
	f, err := c.fonts.loadFont()
	if err != nil {
		return err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	w, _ := c.Size()
	textW := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()

	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P((w-textW)/2, y+ascent),
	}
	d.DrawString(text)
	return nil
}

func (c *imagingCanvas) Image(context.Context) (image.Image, error) {
	return c.img, nil
}
