package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/rbxg/upload-mirror/internal/api"
	"github.com/rbxg/upload-mirror/internal/config"
	"github.com/rbxg/upload-mirror/internal/storage"
	"github.com/rbxg/upload-mirror/internal/upload"
	"github.com/rbxg/upload-mirror/internal/upstream"
	"github.com/rbxg/upload-mirror/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	defaultConfig := filepath.Join(filepath.Dir(exePath), "upload-mirror.config.xml")

	configPath := flag.String("config", defaultConfig, "path to the XML or YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(parseLogLevel(cfg.Advanced.LogLevel))

	// Initialize staging storage
	fileStore, err := storage.NewLocalStore(cfg.GetTempDir())
	if err != nil {
		e.Logger.Fatalf("Failed to initialize storage: %v", err)
	}

	policy, err := upload.NewPolicy(cfg.Upload.MaxFileSize, cfg.Upload.AllowedTypes)
	if err != nil {
		e.Logger.Fatalf("Invalid upload policy: %v", err)
	}
	receiver := upload.NewReceiver(policy, fileStore, cfg.Upload.FieldName)

	client := upstream.NewClient(upstream.Options{
		BaseURL:        cfg.Upstream.BaseURL,
		UploadPath:     cfg.Upstream.UploadPath,
		FilePathPrefix: cfg.Upstream.FilePathPrefix,
		FieldName:      "file",
		Timeout:        cfg.UpstreamTimeout(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Remove anything a previous run left behind, then keep sweeping
	if n, err := fileStore.Sweep(cfg.StaleAfter()); err != nil {
		e.Logger.Warnf("Initial sweep failed: %v", err)
	} else if n > 0 {
		e.Logger.Infof("Removed %d stale staged files", n)
	}
	if interval := cfg.SweepInterval(); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n, err := fileStore.Sweep(cfg.StaleAfter()); err != nil {
						e.Logger.Warnf("Sweep failed: %v", err)
					} else if n > 0 {
						e.Logger.Infof("Removed %d stale staged files", n)
					}
				}
			}
		}()
	}

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Receiver: receiver,
		Files:    fileStore,
		Uploader: client,
		Fetcher:  client,
		Stats:    api.NewStats(),
		Version:  Version,
		Form: web.FormPage{
			FieldName:   cfg.Upload.FieldName,
			MaxFileSize: policy.MaxSize,
			MaxLabel:    policy.LimitLabel(),
			SizeMessage: policy.TooLargeMessage(),
		},
	})
	if err := api.RegisterRoutes(e, handlers); err != nil {
		e.Logger.Fatalf("Failed to register routes: %v", err)
	}

	// Configure server with settings from config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Upload Mirror Server                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", *configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Upstream:  %-46s║\n", client.UploadURL())
	fmt.Printf("║  Staging:   %-46s║\n", cfg.GetTempDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	e.Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Errorf("Shutdown: %v", err)
	}
}

func parseLogLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
