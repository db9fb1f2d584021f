package plugin

import (
	"context"
	"fmt"
	"image"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"comicframe/internal/compositor"
	"comicframe/internal/selector"
	"comicframe/internal/xkcd"
	"comicframe/pkg/config"
	"comicframe/pkg/models"
)

// Settings are the per-render knobs. Zero values select the defaults.
type Settings struct {
	HideTitle   bool   // the title is drawn unless set
	Padding     *int   // nil selects 10
	Background  string // color name or #rrggbb, white when empty
	MaxAttempts int
}

// DeviceConfig describes the target display.
type DeviceConfig struct {
	Width  int
	Height int
}

// Frame is a finished render together with its history record.
type Frame struct {
	Image  image.Image
	Record models.RenderRecord
}

// XKCD produces display images from random comics.
type XKCD struct {
	Selector   *selector.Selector
	Compositor *compositor.Compositor
	ScratchDir string
	FontSize   float64
	TitleTop   int
}

// Option customizes New.
type Option func(*XKCD)

// WithRandom replaces the random source used to pick comic ids.
func WithRandom(r selector.RandomSource) Option {
	return func(p *XKCD) { p.Selector.Rand = r }
}

// WithSleep replaces the pause used between rejected comics.
func WithSleep(s selector.SleepFunc) Option {
	return func(p *XKCD) { p.Selector.Sleep = s }
}

// WithTransformer replaces the transformer chosen by configuration.
func WithTransformer(t compositor.ImageTransformer) Option {
	return func(p *XKCD) { p.Compositor = compositor.New(t) }
}

// New wires the pipeline from cfg and fetches the latest comic number once;
// the configured fallback is used when that fails.
func New(ctx context.Context, cfg *config.Config, opts ...Option) *XKCD {
	client := xkcd.NewClient(cfg.XKCD.BaseURL, cfg.XKCD.RequestTimeout)

	var transformer compositor.ImageTransformer
	switch cfg.Render.Transformer {
	case "ffmpeg":
		transformer = compositor.NewFFmpeg(cfg.Render.FFmpegPath, cfg.Render.FontFile)
	default:
		transformer = compositor.NewImaging(cfg.Render.FontFile)
	}

	p := &XKCD{
		Selector: &selector.Selector{
			Metadata:       client,
			Downloader:     xkcd.NewDownloader(cfg.XKCD.RequestTimeout),
			Filter:         selector.NewFilter(),
			Rand:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
			MaxAttempts:    cfg.Selection.MaxAttempts,
			RejectionPause: cfg.Selection.RejectionPause,
		},
		Compositor: compositor.New(transformer),
		ScratchDir: cfg.Selection.ScratchDir,
		FontSize:   float64(cfg.Display.FontSize),
		TitleTop:   cfg.Display.TitleOffset,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.Selector.LatestID = client.FetchLatestID(ctx, cfg.XKCD.FallbackLatestID)
	log.Printf("[xkcd] latest comic is #%d", p.Selector.LatestID)
	return p
}

// GenerateImage selects a suitable comic and composes it for device.
func (p *XKCD) GenerateImage(ctx context.Context, settings Settings, device DeviceConfig) (image.Image, error) {
	frame, err := p.GenerateFrame(ctx, settings, device)
	if err != nil {
		return nil, err
	}
	return frame.Image, nil
}

// GenerateFrame is GenerateImage plus the record describing the render.
func (p *XKCD) GenerateFrame(ctx context.Context, settings Settings, device DeviceConfig) (*Frame, error) {
	frame, err := p.generate(ctx, settings, device)
	if err != nil {
		log.Printf("[xkcd] error generating image: %v", err)
		return nil, fmt.Errorf("error generating xkcd image: %w", err)
	}
	return frame, nil
}

func (p *XKCD) generate(ctx context.Context, settings Settings, device DeviceConfig) (*Frame, error) {
	opts, err := p.composeOptions(settings, device)
	if err != nil {
		return nil, err
	}

	scratch, err := selector.NewScratch(p.ScratchDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			log.Printf("[xkcd] %v", err)
		}
	}()

	sel := *p.Selector
	if settings.MaxAttempts > 0 {
		sel.MaxAttempts = settings.MaxAttempts
	}

	comic, err := sel.SelectRandomSuitableComic(ctx, scratch)
	if err != nil {
		return nil, fmt.Errorf("failed to get a suitable comic: %w", err)
	}

	title := ""
	if !settings.HideTitle {
		title = comic.Title
	}

	img, err := p.Compositor.Compose(ctx, comic.ImagePath, title, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to process comic image: %w", err)
	}

	b := img.Bounds()
	return &Frame{
		Image: img,
		Record: models.RenderRecord{
			ID:         uuid.NewString(),
			ComicID:    comic.ID,
			Title:      title,
			ImageURL:   comic.ImageURL,
			Attempts:   comic.Attempts,
			Width:      b.Dx(),
			Height:     b.Dy(),
			RenderedAt: time.Now().UTC(),
		},
	}, nil
}

func (p *XKCD) composeOptions(settings Settings, device DeviceConfig) (compositor.Options, error) {
	opts := compositor.DefaultOptions()
	if device.Width > 0 {
		opts.Width = device.Width
	}
	if device.Height > 0 {
		opts.Height = device.Height
	}
	if settings.Padding != nil {
		opts.Padding = *settings.Padding
	}
	if p.FontSize > 0 {
		opts.FontSize = p.FontSize
	}
	if p.TitleTop > 0 {
		opts.TitleOffset = p.TitleTop
	}
	bg, err := compositor.ParseColor(settings.Background)
	if err != nil {
		return opts, err
	}
	opts.Background = bg
	return opts, nil
}

// SettingsFromConfig maps the display section of cfg to Settings and
// DeviceConfig.
func SettingsFromConfig(cfg *config.Config) (Settings, DeviceConfig) {
	padding := cfg.Display.Padding
	return Settings{
			HideTitle:   !cfg.Display.ShowTitle,
			Padding:     &padding,
			Background:  cfg.Display.Background,
			MaxAttempts: cfg.Selection.MaxAttempts,
		}, DeviceConfig{
			Width:  cfg.Display.Width,
			Height: cfg.Display.Height,
		}
}
