package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	synchub "comicframe/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "frame-client",
	Short: "Follow a display server and keep a local copy of the current frame",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		out, _ := cmd.Flags().GetString("out")
		backoff, _ := cmd.Flags().GetDuration("reconnect")

		c := &client{
			Server: strings.TrimRight(server, "/"),
			Out:    out,
			HTTP:   &http.Client{Timeout: 30 * time.Second},
		}

		ctx := cmd.Context()
		for {
			if err := c.run(ctx); err != nil {
				log.Printf("[frame-client] disconnected: %v", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
		}
	},
}

func init() {
	rootCmd.Flags().StringP("server", "s", "http://127.0.0.1:8080", "display server base URL")
	rootCmd.Flags().StringP("out", "o", "frame.png", "where to store the latest frame")
	rootCmd.Flags().Duration("reconnect", time.Second, "delay before reconnecting")
}

type client struct {
	Server string
	Out    string
	HTTP   *http.Client
}

func (c *client) wsURL() (string, error) {
	u, err := url.Parse(c.Server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *client) run(ctx context.Context) error {
	target, err := c.wsURL()
	if err != nil {
		return err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer ws.Close()

	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()

	log.Printf("[frame-client] connected to %s", target)

	// pick up whatever is current before waiting for events
	if err := c.download(ctx); err != nil {
		log.Printf("[frame-client] initial download: %v", err)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var ev synchub.FrameEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("[frame-client] bad event: %v", err)
			continue
		}
		if ev.Type != synchub.FrameRenderedEvent {
			continue
		}
		log.Printf("[frame-client] frame %s: comic #%d %q", ev.RenderID, ev.ComicID, ev.Title)
		if err := c.download(ctx); err != nil {
			log.Printf("[frame-client] download: %v", err)
		}
	}
}

func (c *client) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Server+"/display.png", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /display.png: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(c.Out), 0o755); err != nil {
		return err
	}
	tmp := c.Out + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	// readers never see a half-written frame
	return os.Rename(tmp, c.Out)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
