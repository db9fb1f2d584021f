package selector

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Scratch is a per-invocation directory for downloaded candidates. Paths are
// keyed by comic id, so a repeated id overwrites its previous download.
type Scratch struct {
	Dir string
}

// NewScratch creates a fresh scratch directory below baseDir (os.TempDir()
// when empty). The caller must Close it.
func NewScratch(baseDir string) (*Scratch, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir := filepath.Join(baseDir, "comicframe-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create %s: %w", dir, err)
	}
	return &Scratch{Dir: dir}, nil
}

// PathFor returns the download path for comic id, keeping the image URL's
// extension when it has a known raster one.
func (s *Scratch) PathFor(id int, imageURL string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("xkcd_%d%s", id, extensionOf(imageURL)))
}

// Remove deletes a candidate file if present.
func (s *Scratch) Remove(p string) {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		log.Printf("[selector] remove %s: %v", p, err)
	}
}

// Close removes the scratch directory and everything left in it.
func (s *Scratch) Close() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("scratch: remove %s: %w", s.Dir, err)
	}
	return nil
}

func extensionOf(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ".png"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".png", ".jpg", ".jpeg", ".gif":
		return ext
	default:
		return ".png"
	}
}
