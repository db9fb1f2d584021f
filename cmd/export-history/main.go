package main

import (
	"context"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"comicframe/internal/history"
	"comicframe/pkg/config"
	"comicframe/pkg/database"
)

const pageSize = 100 // history.Repo.List maximum

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml")
		out        = flag.String("out", "data/render_history.csv", "output CSV path")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(cfg.Database.Options())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	n, err := exportHistory(ctx, history.NewRepo(db), *out)
	if err != nil {
		log.Fatalf("export history failed: %v", err)
	}

	log.Printf("exported %d renders to %s", n, *out)
}

func exportHistory(ctx context.Context, repo *history.Repo, outPath string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "comic_id", "title", "image_url", "attempts", "width", "height", "rendered_at"}); err != nil {
		return 0, err
	}

	total := 0
	for offset := 0; ; offset += pageSize {
		items, err := repo.List(ctx, pageSize, offset)
		if err != nil {
			return total, err
		}
		for _, r := range items {
			if err := w.Write([]string{
				r.ID,
				strconv.Itoa(r.ComicID),
				r.Title,
				r.ImageURL,
				strconv.Itoa(r.Attempts),
				strconv.Itoa(r.Width),
				strconv.Itoa(r.Height),
				r.RenderedAt.UTC().Format(time.RFC3339),
			}); err != nil {
				return total, err
			}
		}
		total += len(items)
		if len(items) < pageSize {
			break
		}
	}

	w.Flush()
	return total, w.Error()
}
