package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// PNGBytes encodes a w x h image filled with c.
func PNGBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WritePNG writes a w x h PNG filled with c to path.
func WritePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	if err := os.WriteFile(path, PNGBytes(t, w, h, c), 0o644); err != nil {
		t.Fatalf("write png %s: %v", path, err)
	}
}

// Comic describes one entry served by ComicServer.
type Comic struct {
	Title     string
	SafeTitle string
	Width     int
	Height    int
	Color     color.Color

	MetadataStatus int    // non-zero overrides the info.0.json status
	ImageStatus    int    // non-zero overrides the image status
	RawMetadata    string // served verbatim when set
}

// ComicServer is an httptest server shaped like the remote comic service:
// /info.0.json, /{n}/info.0.json and /img/{n}.png.
type ComicServer struct {
	*httptest.Server

	Latest int
	Comics map[int]Comic

	mu       sync.Mutex
	Requests []string
}

func NewComicServer(t *testing.T, latest int, comics map[int]Comic) *ComicServer {
	t.Helper()
	s := &ComicServer{Latest: latest, Comics: comics}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// MetadataRequests counts requests made to per-comic metadata endpoints.
func (s *ComicServer) MetadataRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.Requests {
		if strings.HasSuffix(r, "/info.0.json") && r != "/info.0.json" {
			n++
		}
	}
	return n
}

func (s *ComicServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.Requests = append(s.Requests, r.URL.Path)
	s.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "info.0.json":
		if s.Latest <= 0 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		s.writeMetadata(w, s.Latest, s.Comics[s.Latest])

	case len(parts) == 2 && parts[1] == "info.0.json":
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		c, ok := s.Comics[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if c.MetadataStatus != 0 {
			http.Error(w, "metadata failure", c.MetadataStatus)
			return
		}
		if c.RawMetadata != "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(c.RawMetadata))
			return
		}
		s.writeMetadata(w, id, c)

	case len(parts) == 2 && parts[0] == "img":
		id, err := strconv.Atoi(strings.TrimSuffix(parts[1], ".png"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		c, ok := s.Comics[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if c.ImageStatus != 0 {
			http.Error(w, "image failure", c.ImageStatus)
			return
		}
		fill := c.Color
		if fill == nil {
			fill = color.Black
		}
		w.Header().Set("Content-Type", "image/png")
		var buf bytes.Buffer
		img := image.NewNRGBA(image.Rect(0, 0, c.Width, c.Height))
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				img.Set(x, y, fill)
			}
		}
		if err := png.Encode(&buf, img); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(buf.Bytes())

	default:
		http.NotFound(w, r)
	}
}

func (s *ComicServer) writeMetadata(w http.ResponseWriter, id int, c Comic) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"num":        id,
		"img":        fmt.Sprintf("%s/img/%d.png", s.URL, id),
		"title":      c.Title,
		"safe_title": c.SafeTitle,
	})
}
