// Package mirror serves a directory of saved comics with the same URL shapes
// as xkcd.com, for offline development.
//
// Layout:
//
//	<root>/<n>/info.0.json
//	<root>/<n>/<image file>
package mirror

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
)

type Mirror struct {
	Root string
}

func New(root string) *Mirror {
	return &Mirror{Root: root}
}

func (m *Mirror) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /info.0.json", m.latest)
	mux.HandleFunc("GET /{num}/info.0.json", m.info)
	mux.HandleFunc("GET /{num}/{file}", m.image)
	return mux
}

// LatestID is the highest numbered comic directory under Root.
func (m *Mirror) LatestID() (int, error) {
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		return 0, err
	}
	latest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n <= latest {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.Root, e.Name(), "info.0.json")); err == nil {
			latest = n
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("no comics under %s", m.Root)
	}
	return latest, nil
}

func (m *Mirror) latest(w http.ResponseWriter, r *http.Request) {
	n, err := m.LatestID()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	m.serveInfo(w, r, n)
}

func (m *Mirror) info(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("num"))
	if err != nil || n <= 0 {
		http.NotFound(w, r)
		return
	}
	m.serveInfo(w, r, n)
}

func (m *Mirror) serveInfo(w http.ResponseWriter, r *http.Request, n int) {
	dir := filepath.Join(m.Root, strconv.Itoa(n))
	b, err := os.ReadFile(filepath.Join(dir, "info.0.json"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		http.Error(w, "info.0.json invalid JSON: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// point img at the local copy when one exists
	if img, ok := doc["img"].(string); ok && img != "" {
		name := path.Base(img)
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			doc["img"] = fmt.Sprintf("%s://%s/%d/%s", scheme, r.Host, n, name)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		log.Printf("[mirror] write info %d: %v", n, err)
	}
}

func (m *Mirror) image(w http.ResponseWriter, r *http.Request) {
	num, file := r.PathValue("num"), r.PathValue("file")
	if _, err := strconv.Atoi(num); err != nil || file == "info.0.json" || file != filepath.Base(file) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(m.Root, num, file))
}
