package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"comicframe/internal/auth"
	"comicframe/internal/display"
	"comicframe/internal/history"
	"comicframe/internal/notify"
	"comicframe/internal/plugin"
	synchub "comicframe/internal/sync"
	"comicframe/pkg/config"
	"comicframe/pkg/database"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults when empty)")
	publicURL := flag.String("public-url", "", "base URL devices use to fetch /display.png")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dbCfg := cfg.Database.Options()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	gen := plugin.New(ctx, cfg)
	settings, device := plugin.SettingsFromConfig(cfg)

	hub := synchub.NewHub()
	tcpSrv := synchub.NewServer(cfg.Server.TCPAddr, hub)
	notifySrv := notify.NewServer(cfg.Server.UDPAddr, notify.NewRegistry(), nil)
	historyRepo := history.NewRepo(db)

	svc := display.NewService(gen, settings, device)
	svc.History = historyRepo
	svc.Hub = hub
	svc.Notifier = notifySrv
	if *publicURL != "" {
		svc.ImageURL = *publicURL + "/display.png"
	}

	if *configPath != "" {
		w, err := config.Watch(*configPath, svc.ApplyConfig)
		if err != nil {
			log.Printf("[display] config watch disabled: %v", err)
		} else {
			defer w.Close()
		}
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", synchub.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not_ready",
				"db_error": err.Error(),
			})
			return
		}
		if _, _, err := svc.Current(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"frame":  err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	tokenSvc := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}
	auth.NewHandler(cfg.Auth.AdminUser, cfg.Auth.AdminPasswordHash, tokenSvc).
		RegisterRoutes(router.Group("/auth"))

	protected := router.Group("")
	protected.Use(auth.AuthMiddleware(tokenSvc))

	display.NewHandler(svc).RegisterRoutes(router.Group(""), protected)
	history.NewHandler(historyRepo).RegisterRoutes(router.Group("/history"))

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	// bind sockets up front so address conflicts fail fast
	if err := tcpSrv.Listen(); err != nil {
		log.Fatalf("tcp sync listen: %v", err)
	}
	if err := notifySrv.Listen(); err != nil {
		log.Fatalf("udp notify listen: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := notifySrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP display server listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Run(ctx, cfg.Server.RefreshInterval)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}
	if err := notifySrv.Close(); err != nil {
		log.Printf("udp shutdown error: %v", err)
	}
	hub.CloseAll()

	wg.Wait()
	log.Println("servers stopped")
}
