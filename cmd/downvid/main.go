package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	downvid "github.com/downvid/downvid"
	"github.com/downvid/downvid/internal/api"
	"github.com/downvid/downvid/internal/config"
	"github.com/downvid/downvid/internal/fetch"
	"github.com/downvid/downvid/internal/install"
	"github.com/downvid/downvid/internal/jobs"
	"github.com/downvid/downvid/internal/logger"
	"github.com/downvid/downvid/internal/store"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file (default: ./config/downvid.yaml)")
	port := flag.Int("port", 8080, "Port to listen on")
	flag.Parse()

	// Determine config path
	cfgPath := *configPath
	if cfgPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = filepath.Join("config", "downvid.yaml")
		}
	}

	// Load config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init("info")
		logger.Warn("Could not load config", "path", cfgPath, "error", err)
		cfg = config.DefaultConfig()
	}

	// Initialize logger with configured level
	logger.Init(cfg.LogLevel)

	// Determine config directory for data storage
	configDir := filepath.Dir(cfgPath)
	if configDir == "." {
		configDir = "config"
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.Warn("Could not create config directory", "error", err)
	}

	// Ensure download destinations exist
	for _, dir := range []string{cfg.VideoDir, cfg.AudioDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("Could not create download directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	// Open the snapshot store
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = filepath.Join(configDir, "downvid.db")
	}
	snapStore, err := store.NewSQLiteStore(statePath)
	if err != nil {
		logger.Error("Failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer snapStore.Close()

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                          DOWNVID                          ║")
	fmt.Println("║             Self-hosted media download queue              ║")
	versionLine := fmt.Sprintf("v%s", downvid.Version)
	padding := 59 - len(versionLine)
	fmt.Printf("║%*s%s%*s║\n", padding/2, "", versionLine, (padding+1)/2, "")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Video dir:    %s\n", cfg.VideoDir)
	fmt.Printf("  Audio dir:    %s\n", cfg.AudioDir)
	fmt.Printf("  Config:       %s\n", cfgPath)
	fmt.Printf("  Database:     %s\n", snapStore.Path())
	fmt.Printf("  Workers:      %d\n", cfg.Workers)
	fmt.Printf("  yt-dlp:       %s\n", cfg.YTDLPPath)
	fmt.Printf("  ffmpeg:       %s\n", cfg.FFmpegPath)
	fmt.Println()

	// Initialize components
	client := fetch.NewYTDLP(cfg.YTDLPPath, cfg.FFmpegPath)
	bus := jobs.NewBus()
	queue := jobs.NewQueue(cfg, bus, snapStore, client)

	executors := map[jobs.Kind]jobs.Executor{
		jobs.KindVideo:   fetch.NewExecutor(client),
		jobs.KindAudio:   fetch.NewExecutor(client),
		jobs.KindInstall: install.NewExecutor(install.NewHTTPInstaller(nil), cfg.InstallFallbackURL, "ffmpeg"),
	}
	workerPool := jobs.NewWorkerPool(queue, executors, cfg)
	queue.SetSubmitter(workerPool)

	handler := api.NewHandler(queue, workerPool, cfg, cfgPath)
	router := api.NewRouter(handler)

	// Start worker pool, then re-enqueue whatever the last run left pending
	workerPool.Start()
	queue.Restore(context.Background())

	fmt.Printf("  Starting server on port %d\n", *port)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()
	logger.Info("downvid started", "version", downvid.Version, "workers", cfg.Workers, "port", *port)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n  Shutting down...")
		logger.Info("Shutdown signal received")
		workerPool.Stop()
		server.Close()
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		workerPool.Stop()
		os.Exit(1)
	}

	logger.Info("Server stopped")
	fmt.Println("  Goodbye!")
}
