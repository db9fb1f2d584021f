package selector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"comicframe/pkg/models"
)

const (
	DefaultMaxAttempts    = 10
	DefaultRejectionPause = time.Second
)

// ErrExhausted is returned when no attempt produced a suitable comic.
var ErrExhausted = errors.New("no suitable comic found")

// MetadataSource fetches comic metadata by id.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, id int) (*models.ComicMetadata, error)
}

// Downloader writes the image at url to dest.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// SuitabilityChecker decides whether a downloaded image can be displayed.
type SuitabilityChecker interface {
	IsSuitable(path string) bool
}

// RandomSource draws ints in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Selector picks random comics until one passes the suitability check.
type Selector struct {
	Metadata   MetadataSource
	Downloader Downloader
	Filter     SuitabilityChecker
	Rand       RandomSource
	Sleep      SleepFunc

	LatestID       int // upper bound of the id range, inclusive
	MaxAttempts    int
	RejectionPause time.Duration
}

// SelectRandomSuitableComic tries up to MaxAttempts random ids in
// [1, LatestID]. Metadata and download failures move straight on to the next
// id; a suitability rejection pauses for RejectionPause first. The first
// accepted comic is returned with its image left in scratch.
func (s *Selector) SelectRandomSuitableComic(ctx context.Context, scratch *Scratch) (*models.AcceptedComic, error) {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if s.LatestID <= 0 {
		return nil, fmt.Errorf("selector: invalid latest id %d", s.LatestID)
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("selector: %w", err)
		}

		id := s.Rand.IntN(s.LatestID) + 1
		log.Printf("[selector] trying comic #%d (attempt %d/%d)", id, attempt, maxAttempts)

		meta, err := s.Metadata.FetchMetadata(ctx, id)
		if err != nil {
			log.Printf("[selector] metadata: %v", err)
			continue
		}

		imagePath := scratch.PathFor(id, meta.ImageURL)
		if err := s.Downloader.Download(ctx, meta.ImageURL, imagePath); err != nil {
			log.Printf("[selector] comic #%d: %v", id, err)
			scratch.Remove(imagePath)
			continue
		}

		if s.Filter.IsSuitable(imagePath) {
			log.Printf("[selector] found suitable comic: #%d - %s", id, meta.Title)
			return &models.AcceptedComic{
				ID:        id,
				ImageURL:  meta.ImageURL,
				ImagePath: imagePath,
				Title:     meta.DisplayTitle(),
				Attempts:  attempt,
			}, nil
		}

		log.Printf("[selector] comic #%d is not suitable, trying another...", id)
		scratch.Remove(imagePath)

		if err := sleep(ctx, s.RejectionPause); err != nil {
			return nil, fmt.Errorf("selector: %w", err)
		}
	}

	log.Printf("[selector] failed to find suitable comic after %d attempts", maxAttempts)
	return nil, ErrExhausted
}

// SleepContext waits for d unless ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
