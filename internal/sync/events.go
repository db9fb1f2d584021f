package sync

import "time"

const (
	FrameRenderedEvent = "frame.rendered"
	WelcomeEvent       = "welcome"
)

// FrameEvent is pushed to connected displays after a new frame is ready.
type FrameEvent struct {
	Type     string    `json:"type"`
	RenderID string    `json:"render_id"`
	ComicID  int       `json:"comic_id"`
	Title    string    `json:"title,omitempty"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	At       time.Time `json:"at"`
}

type WelcomeMessage struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients,omitempty"`
}
