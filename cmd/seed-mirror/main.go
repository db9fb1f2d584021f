package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"time"

	"comicframe/internal/mirror"
	"comicframe/internal/xkcd"
)

func main() {
	var (
		outDir  = flag.String("out", "data/comics", "mirror directory to populate")
		baseURL = flag.String("source", xkcd.DefaultBaseURL, "comic service to copy from")
		count   = flag.Int("count", 50, "how many random comics to copy")
		latest  = flag.Bool("latest", true, "always include the latest comic")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client := xkcd.NewClient(*baseURL, xkcd.DefaultTimeout)
	newest := client.FetchLatestID(ctx, xkcd.FallbackLatestID)

	seen := make(map[int]bool)
	var ids []int
	if *latest {
		ids = append(ids, newest)
		seen[newest] = true
	}
	for len(ids) < *count && len(ids) < newest {
		id := rand.IntN(newest) + 1
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	m := mirror.New(*outDir)
	n, err := m.Seed(ctx, client, xkcd.NewDownloader(xkcd.DefaultTimeout), ids)
	if err != nil {
		log.Fatalf("seed mirror failed: %v", err)
	}

	log.Printf("copied %d of %d comics into %s", n, len(ids), *outDir)
}
