package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log"
	"sync"
	"time"

	"comicframe/internal/notify"
	"comicframe/internal/plugin"
	synchub "comicframe/internal/sync"
	"comicframe/pkg/config"
	"comicframe/pkg/models"
)

var (
	ErrNoFrame           = errors.New("no frame rendered yet")
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

type FrameGenerator interface {
	GenerateFrame(ctx context.Context, settings plugin.Settings, device plugin.DeviceConfig) (*plugin.Frame, error)
}

type HistoryStore interface {
	Save(ctx context.Context, rec models.RenderRecord) error
}

// Service owns the current frame. Refreshes are serialized; readers only
// ever see a fully encoded frame.
type Service struct {
	Generator FrameGenerator
	History   HistoryStore   // optional
	Hub       *synchub.Hub   // optional
	Notifier  *notify.Server // optional
	ImageURL  string         // advertised in frame_ready datagrams

	refreshMu sync.Mutex

	mu       sync.RWMutex
	settings plugin.Settings
	device   plugin.DeviceConfig
	png      []byte
	record   *models.RenderRecord
}

func NewService(gen FrameGenerator, settings plugin.Settings, device plugin.DeviceConfig) *Service {
	return &Service{Generator: gen, settings: settings, device: device}
}

// ApplyConfig swaps the display settings used by the next refresh.
func (s *Service) ApplyConfig(cfg *config.Config) {
	settings, device := plugin.SettingsFromConfig(cfg)
	s.mu.Lock()
	s.settings, s.device = settings, device
	s.mu.Unlock()
	log.Printf("[display] settings updated: %dx%d title=%t", device.Width, device.Height, !settings.HideTitle)
}

// Refresh renders a new frame. A concurrent call returns ErrRefreshInProgress
// instead of queueing a second render.
func (s *Service) Refresh(ctx context.Context) (*models.RenderRecord, error) {
	if !s.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	settings, device := s.settings, s.device
	s.mu.RUnlock()

	start := time.Now()
	frame, err := s.Generator.GenerateFrame(ctx, settings, device)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.Image); err != nil {
		return nil, fmt.Errorf("display: encode png: %w", err)
	}

	rec := frame.Record
	s.mu.Lock()
	s.png = buf.Bytes()
	s.record = &rec
	s.mu.Unlock()

	log.Printf("[display] rendered comic #%d in %s (%d attempts)", rec.ComicID, time.Since(start).Round(time.Millisecond), rec.Attempts)

	if s.History != nil {
		if err := s.History.Save(ctx, rec); err != nil {
			log.Printf("[display] save history: %v", err)
		}
	}
	if s.Hub != nil {
		s.Hub.PublishFrame(synchub.FrameEvent{
			RenderID: rec.ID,
			ComicID:  rec.ComicID,
			Title:    rec.Title,
			Width:    rec.Width,
			Height:   rec.Height,
			At:       rec.RenderedAt,
		})
	}
	if s.Notifier != nil {
		s.Notifier.BroadcastFrameReady(notify.FrameReadyMessage{
			RenderID: rec.ID,
			ComicID:  rec.ComicID,
			ImageURL: s.ImageURL,
		})
	}
	return &rec, nil
}

// Current returns the PNG bytes and record of the last finished frame.
func (s *Service) Current() ([]byte, models.RenderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil, models.RenderRecord{}, ErrNoFrame
	}
	return s.png, *s.record, nil
}

// Run refreshes once immediately and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.refreshLogged(ctx)
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshLogged(ctx)
		}
	}
}

func (s *Service) refreshLogged(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[display] refresh: %v", err)
	}
}
