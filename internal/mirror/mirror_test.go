package mirror

import (
	"image/color"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"comicframe/internal/testutil"
	"comicframe/internal/xkcd"
)

func writeComic(t *testing.T, root string, n int, info string, withImage bool) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(n))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info.0.json"), []byte(info), 0o644); err != nil {
		t.Fatal(err)
	}
	if withImage {
		testutil.WritePNG(t, filepath.Join(dir, "comic.png"), 400, 300, color.White)
	}
}

func TestMirror(t *testing.T) {
	root := t.TempDir()
	writeComic(t, root, 7, `{"num":7,"img":"https://imgs.xkcd.com/comics/comic.png","title":"Seven","safe_title":"Seven"}`, true)
	writeComic(t, root, 12, `{"num":12,"img":"https://imgs.xkcd.com/comics/remote.png","title":"Twelve","safe_title":"Twelve"}`, false)
	if err := os.MkdirAll(filepath.Join(root, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(New(root).Handler())
	defer srv.Close()

	client := xkcd.NewClient(srv.URL, xkcd.DefaultTimeout)
	ctx := t.Context()

	if got := client.FetchLatestID(ctx, 3000); got != 12 {
		t.Errorf("FetchLatestID() = %d, want 12", got)
	}

	meta, err := client.FetchMetadata(ctx, 7)
	if err != nil {
		t.Fatalf("FetchMetadata(7) error = %v", err)
	}
	if !strings.HasPrefix(meta.ImageURL, srv.URL+"/7/comic.png") {
		t.Errorf("local image url = %q", meta.ImageURL)
	}

	dest := filepath.Join(t.TempDir(), "7.png")
	if err := xkcd.NewDownloader(xkcd.DefaultTimeout).Download(ctx, meta.ImageURL, dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	meta, err = client.FetchMetadata(ctx, 12)
	if err != nil {
		t.Fatal(err)
	}
	if meta.ImageURL != "https://imgs.xkcd.com/comics/remote.png" {
		t.Errorf("remote image url rewritten to %q", meta.ImageURL)
	}

	if _, err := client.FetchMetadata(ctx, 8); err == nil {
		t.Error("expected error for missing comic")
	}
}

func TestLatestIDEmpty(t *testing.T) {
	if _, err := New(t.TempDir()).LatestID(); err == nil {
		t.Error("expected error for empty mirror")
	}
}

func TestSeed(t *testing.T) {
	upstream := testutil.NewComicServer(t, 3, map[int]testutil.Comic{
		1: {Title: "One", Width: 400, Height: 300, Color: color.White},
		2: {Title: "Two", MetadataStatus: 404},
		3: {Title: "Three", Width: 500, Height: 300, Color: color.Black},
	})

	root := t.TempDir()
	m := New(root)
	client := xkcd.NewClient(upstream.URL, xkcd.DefaultTimeout)
	n, err := m.Seed(t.Context(), client, xkcd.NewDownloader(xkcd.DefaultTimeout), []int{1, 2, 3})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(root, "2")); !os.IsNotExist(err) {
		t.Errorf("failed comic left a directory behind: %v", err)
	}

	latest, err := m.LatestID()
	if err != nil || latest != 3 {
		t.Errorf("LatestID() = %d, %v; want 3", latest, err)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	meta, err := xkcd.NewClient(srv.URL, xkcd.DefaultTimeout).FetchMetadata(t.Context(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "One" || !strings.HasPrefix(meta.ImageURL, srv.URL+"/1/") {
		t.Errorf("mirrored metadata = %+v", meta)
	}
}
