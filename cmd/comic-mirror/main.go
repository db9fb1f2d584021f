package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"comicframe/internal/mirror"
)

func main() {
	root := flag.String("dir", "data/comics", "directory holding <n>/info.0.json and images")
	addr := flag.String("addr", ":9000", "listen address")
	flag.Parse()

	m := mirror.New(*root)
	if n, err := m.LatestID(); err != nil {
		log.Printf("[mirror] warning: %v", err)
	} else {
		log.Printf("[mirror] latest comic is #%d", n)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("comic-mirror serving %s on http://localhost%s", *root, *addr)
	log.Fatal(srv.ListenAndServe())
}
