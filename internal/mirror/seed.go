package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"comicframe/internal/xkcd"
)

// Seed copies comics from a live service into the mirror layout. Comics that
// fail are logged and skipped; the count of stored comics is returned.
func (m *Mirror) Seed(ctx context.Context, client *xkcd.Client, dl *xkcd.Downloader, ids []int) (int, error) {
	stored := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if err := m.seedOne(ctx, client, dl, id); err != nil {
			log.Printf("[mirror] skip comic #%d: %v", id, err)
			continue
		}
		stored++
	}
	return stored, nil
}

func (m *Mirror) seedOne(ctx context.Context, client *xkcd.Client, dl *xkcd.Downloader, id int) error {
	meta, err := client.FetchMetadata(ctx, id)
	if err != nil {
		return err
	}

	dir := filepath.Join(m.Root, strconv.Itoa(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := path.Base(meta.ImageURL)
	if name == "." || name == "/" {
		return fmt.Errorf("unusable image url %q", meta.ImageURL)
	}
	if err := dl.Download(ctx, meta.ImageURL, filepath.Join(dir, name)); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "info.0.json"), b, 0o644)
}
