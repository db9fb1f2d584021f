package selector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"comicframe/pkg/models"
)

// sequenceRand returns ids-1 in order and records the n it was asked for.
type sequenceRand struct {
	ids   []int
	next  int
	gotNs []int
}

func (r *sequenceRand) IntN(n int) int {
	r.gotNs = append(r.gotNs, n)
	id := r.ids[r.next%len(r.ids)]
	r.next++
	return id - 1
}

type outcome int

const (
	accept outcome = iota
	reject
	metadataFails
	downloadFails
)

// stubSource plays metadata, download and filter for a fixed outcome per id.
type stubSource struct {
	outcomes      map[int]outcome
	metadataCalls int
	downloads     []string
}

func (s *stubSource) FetchMetadata(_ context.Context, id int) (*models.ComicMetadata, error) {
	s.metadataCalls++
	if s.outcomes[id] == metadataFails {
		return nil, fmt.Errorf("comic %d: status 500", id)
	}
	return &models.ComicMetadata{
		ID:        id,
		ImageURL:  fmt.Sprintf("https://imgs.example.com/comics/%d.png", id),
		Title:     fmt.Sprintf("Comic %d", id),
		SafeTitle: fmt.Sprintf("Safe %d", id),
	}, nil
}

func (s *stubSource) Download(_ context.Context, url, dest string) error {
	s.downloads = append(s.downloads, dest)
	// leave a partial file behind on failure, like an interrupted write
	if err := os.WriteFile(dest, []byte(url), 0o644); err != nil {
		return err
	}
	var id int
	fmt.Sscanf(filepath.Base(dest), "xkcd_%d", &id)
	if s.outcomes[id] == downloadFails {
		return errors.New("connection reset")
	}
	return nil
}

func (s *stubSource) IsSuitable(path string) bool {
	var id int
	fmt.Sscanf(filepath.Base(path), "xkcd_%d", &id)
	return s.outcomes[id] == accept
}

type sleepRecorder struct {
	calls []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func newTestSelector(src *stubSource, rnd RandomSource, sleeps *sleepRecorder, maxAttempts int) *Selector {
	return &Selector{
		Metadata:       src,
		Downloader:     src,
		Filter:         src,
		Rand:           rnd,
		Sleep:          sleeps.sleep,
		LatestID:       3000,
		MaxAttempts:    maxAttempts,
		RejectionPause: time.Second,
	}
}

func newTestScratch(t *testing.T) *Scratch {
	t.Helper()
	scratch, err := NewScratch(t.TempDir())
	if err != nil {
		t.Fatalf("NewScratch() error = %v", err)
	}
	t.Cleanup(func() { scratch.Close() })
	return scratch
}

func scratchEntries(t *testing.T, scratch *Scratch) []string {
	t.Helper()
	entries, err := os.ReadDir(scratch.Dir)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSelector_FirstSuccessWins(t *testing.T) {
	src := &stubSource{outcomes: map[int]outcome{
		11: metadataFails,
		12: reject,
		13: downloadFails,
		14: reject,
		15: accept,
		16: accept,
	}}
	rnd := &sequenceRand{ids: []int{11, 12, 13, 14, 15, 16}}
	sleeps := &sleepRecorder{}
	scratch := newTestScratch(t)

	got, err := newTestSelector(src, rnd, sleeps, 10).SelectRandomSuitableComic(context.Background(), scratch)
	if err != nil {
		t.Fatalf("SelectRandomSuitableComic() error = %v", err)
	}

	if got.ID != 15 {
		t.Errorf("ID = %d, want 15", got.ID)
	}
	if got.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", got.Attempts)
	}
	if got.Title != "Safe 15" {
		t.Errorf("Title = %q, want the safe title", got.Title)
	}
	if src.metadataCalls != 5 {
		t.Errorf("metadata calls = %d, want 5", src.metadataCalls)
	}
	// only the two rejections pause
	if len(sleeps.calls) != 2 {
		t.Errorf("sleeps = %v, want exactly 2", sleeps.calls)
	}
	for _, d := range sleeps.calls {
		if d != time.Second {
			t.Errorf("sleep duration = %v, want 1s", d)
		}
	}

	entries := scratchEntries(t, scratch)
	if len(entries) != 1 || entries[0] != "xkcd_15.png" {
		t.Errorf("scratch entries = %v, want only the accepted image", entries)
	}
	if _, err := os.Stat(got.ImagePath); err != nil {
		t.Errorf("accepted image missing: %v", err)
	}
}

func TestSelector_FailuresDoNotSleep(t *testing.T) {
	src := &stubSource{outcomes: map[int]outcome{
		1: metadataFails,
		2: downloadFails,
		3: metadataFails,
		4: accept,
	}}
	rnd := &sequenceRand{ids: []int{1, 2, 3, 4}}
	sleeps := &sleepRecorder{}

	got, err := newTestSelector(src, rnd, sleeps, 10).SelectRandomSuitableComic(context.Background(), newTestScratch(t))
	if err != nil {
		t.Fatalf("SelectRandomSuitableComic() error = %v", err)
	}
	if got.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", got.Attempts)
	}
	if len(sleeps.calls) != 0 {
		t.Errorf("sleeps = %v, want none", sleeps.calls)
	}
}

func TestSelector_Exhaustion(t *testing.T) {
	src := &stubSource{outcomes: map[int]outcome{
		1: reject,
		2: metadataFails,
		3: downloadFails,
	}}
	rnd := &sequenceRand{ids: []int{1, 2, 3}}
	sleeps := &sleepRecorder{}
	scratch := newTestScratch(t)

	got, err := newTestSelector(src, rnd, sleeps, 7).SelectRandomSuitableComic(context.Background(), scratch)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
	if src.metadataCalls != 7 {
		t.Errorf("metadata calls = %d, want 7", src.metadataCalls)
	}
	if entries := scratchEntries(t, scratch); len(entries) != 0 {
		t.Errorf("scratch entries = %v, want none left behind", entries)
	}
	// ids 1,2,3,1,2,3,1: rejections at attempts 1, 4 and 7 each pause
	if len(sleeps.calls) != 3 {
		t.Errorf("sleeps = %d, want 3", len(sleeps.calls))
	}
}

func TestSelector_EveryRejectionPauses(t *testing.T) {
	src := &stubSource{outcomes: map[int]outcome{5: reject}}
	rnd := &sequenceRand{ids: []int{5}}
	sleeps := &sleepRecorder{}

	_, err := newTestSelector(src, rnd, sleeps, 3).SelectRandomSuitableComic(context.Background(), newTestScratch(t))
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
	if len(sleeps.calls) != 3 {
		t.Errorf("sleeps = %d for 3 rejections, want 3", len(sleeps.calls))
	}
}

func TestSelector_IDRange(t *testing.T) {
	src := &stubSource{outcomes: map[int]outcome{}}
	for id := 1; id <= 3000; id++ {
		src.outcomes[id] = metadataFails
	}
	rnd := &boundsRecorder{r: rand.New(rand.NewPCG(1, 2))}
	sel := newTestSelector(src, rnd, &sleepRecorder{}, 50)

	_, err := sel.SelectRandomSuitableComic(context.Background(), newTestScratch(t))
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
	for _, n := range rnd.ns {
		if n != 3000 {
			t.Fatalf("IntN called with %d, want 3000", n)
		}
	}
	for _, id := range rnd.ids {
		if id < 1 || id > 3000 {
			t.Errorf("drew id %d outside [1, 3000]", id)
		}
	}
}

type boundsRecorder struct {
	r   *rand.Rand
	ns  []int
	ids []int
}

func (b *boundsRecorder) IntN(n int) int {
	v := b.r.IntN(n)
	b.ns = append(b.ns, n)
	b.ids = append(b.ids, v+1)
	return v
}

func TestSelector_CancelledDuringPause(t *testing.T) {
	src := &stubSource{outcomes: map[int]outcome{1: reject}}
	ctx, cancel := context.WithCancel(context.Background())
	sel := &Selector{
		Metadata:       src,
		Downloader:     src,
		Filter:         src,
		Rand:           &sequenceRand{ids: []int{1}},
		LatestID:       10,
		MaxAttempts:    3,
		RejectionPause: time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return SleepContext(ctx, d)
		},
	}

	_, err := sel.SelectRandomSuitableComic(ctx, newTestScratch(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if src.metadataCalls != 1 {
		t.Errorf("metadata calls = %d, want 1", src.metadataCalls)
	}
}

func TestScratch(t *testing.T) {
	base := t.TempDir()
	a, err := NewScratch(base)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewScratch(base)
	if err != nil {
		t.Fatal(err)
	}
	if a.Dir == b.Dir {
		t.Fatal("two invocations share a scratch directory")
	}

	tests := []struct {
		url  string
		want string
	}{
		{"https://imgs.xkcd.com/comics/barrel_cropped_(1).jpg", "xkcd_7.jpg"},
		{"https://imgs.xkcd.com/comics/sandwich.png", "xkcd_7.png"},
		{"https://imgs.xkcd.com/comics/", "xkcd_7.png"},
		{"::bad url", "xkcd_7.png"},
	}
	for _, tt := range tests {
		if got := filepath.Base(a.PathFor(7, tt.url)); got != tt.want {
			t.Errorf("PathFor(7, %q) = %s, want %s", tt.url, got, tt.want)
		}
	}

	if err := os.WriteFile(a.PathFor(7, ""), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(a.Dir); !os.IsNotExist(err) {
		t.Errorf("scratch dir still present after Close: %v", err)
	}
	b.Close()
}
