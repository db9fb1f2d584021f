package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"comicframe/internal/auth"
	"comicframe/internal/notify"
	"comicframe/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type historyResponse struct {
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Items  []models.RenderRecord `json:"items"`
}

func main() {
	global := flag.NewFlagSet("framectl", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "display server base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub = args[1]
		rest = args[2:]
	}

	client := &http.Client{Timeout: 2 * time.Minute}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, rest)
	case "frame":
		handleFrame(ctx, client, *baseURL, *tokenPath, sub, rest)
	case "history":
		handleHistory(ctx, client, *baseURL, sub, rest)
	case "sync":
		handleSync(sub, rest)
	case "notify":
		handleNotify(sub, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		username := fs.String("username", "admin", "operator username")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *password == "" {
			log.Fatal("password is required")
		}

		payload := map[string]string{"username": *username, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Printf("logged in until %s\n", resp.ExpiresAt)
	case "logout":
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("logged out")
	case "hash":
		fs := flag.NewFlagSet("auth hash", flag.ExitOnError)
		password := fs.String("password", "", "password to hash for auth.admin_password_hash")
		_ = fs.Parse(args)
		if *password == "" {
			log.Fatal("password is required")
		}
		hash, err := auth.HashPassword(*password)
		if err != nil {
			log.Fatalf("hash failed: %v", err)
		}
		fmt.Println(hash)
	default:
		log.Fatal("usage: framectl auth <login|logout|hash>")
	}
}

func handleFrame(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "show":
		var rec models.RenderRecord
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/frame", "", nil, &rec); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(rec)
	case "refresh":
		token := mustToken(tokenPath)
		var rec models.RenderRecord
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/refresh", token, nil, &rec); err != nil {
			log.Fatalf("refresh failed: %v", err)
		}
		printJSON(rec)
	case "save":
		fs := flag.NewFlagSet("frame save", flag.ExitOnError)
		out := fs.String("out", "frame.png", "output path")
		_ = fs.Parse(args)
		if err := saveFrame(ctx, client, baseURL, *out); err != nil {
			log.Fatalf("save failed: %v", err)
		}
		fmt.Printf("saved %s\n", *out)
	default:
		log.Fatal("usage: framectl frame <show|refresh|save>")
	}
}

func handleHistory(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "list", "":
		fs := flag.NewFlagSet("history list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/history")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp historyResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		for _, r := range resp.Items {
			fmt.Printf("%s  #%-5d %-40q attempts=%d\n", r.RenderedAt.Local().Format(time.DateTime), r.ComicID, r.Title, r.Attempts)
		}
		fmt.Printf("%d of %d\n", len(resp.Items), resp.Total)
	default:
		log.Fatal("usage: framectl history list")
	}
}

func handleSync(sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("sync listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "TCP sync server address")
		pretty := fs.Bool("pretty", true, "pretty print JSON events")
		_ = fs.Parse(args)
		for {
			if err := runSyncTCP(*addr, *pretty); err != nil {
				log.Printf("[sync] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	default:
		log.Fatal("usage: framectl sync listen")
	}
}

func handleNotify(sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("notify listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7071", "UDP notify server address")
		device := fs.String("device", hostname(), "device id to register")
		_ = fs.Parse(args)
		if err := runNotifyUDP(*addr, *device); err != nil {
			log.Fatalf("notify listen failed: %v", err)
		}
	default:
		log.Fatal("usage: framectl notify listen")
	}
}

func runSyncTCP(addr string, pretty bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[sync] connected to %s", addr)
	reader := bufio.NewScanner(conn)
	for reader.Scan() {
		line := reader.Bytes()
		if !pretty {
			fmt.Println(string(line))
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			fmt.Println(string(line))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
	if err := reader.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func runNotifyUDP(addr, device string) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	reg, err := json.Marshal(notify.RegisterMessage{Type: notify.RegisterMessageType, DeviceID: device})
	if err != nil {
		return err
	}
	if _, err := conn.Write(reg); err != nil {
		return err
	}
	log.Printf("[notify] registered %s with %s", device, addr)

	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		var msg notify.FrameReadyMessage
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			fmt.Println(string(buf[:n]))
			continue
		}
		fmt.Printf("frame ready: render=%s comic=#%d %s\n", msg.RenderID, msg.ComicID, msg.ImageURL)
	}
}

func saveFrame(ctx context.Context, client *http.Client, baseURL, out string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/display.png", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /display.png: status %d", resp.StatusCode)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "frame"
	}
	return h
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.comicframe-token.json"
	}
	return filepath.Join(home, ".comicframe", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if token == "" {
		log.Fatal("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func printUsage() {
	fmt.Println("framectl [-api URL] [-token PATH] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|logout|hash")
	fmt.Println("  frame show|refresh|save")
	fmt.Println("  history list")
	fmt.Println("  sync listen")
	fmt.Println("  notify listen")
}
