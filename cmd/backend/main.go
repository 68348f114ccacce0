package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"emberdrop/internal/history"
	"emberdrop/internal/provider"
	"emberdrop/internal/relay"
)

func main() {
	addr := getenvDefault("EMBER_ADDR", ":8080")

	build := relay.BuildInfo{
		Version: getenvDefault("EMBER_VERSION", "dev"),
		Commit:  getenvDefault("EMBER_COMMIT", "unknown"),
	}

	// Providers. The HTTP-based backends are always available; the
	// S3-compatible one joins only when fully configured.
	providers := provider.NewRegistry()
	providers.Register(provider.NewNullPointer(getenvDefault("EMBER_0X0_ENDPOINT", "https://0x0.st"), nil))
	providers.Register(provider.NewGofile(getenvDefault("EMBER_GOFILE_API", "https://api.gofile.io"), nil))

	if os.Getenv("EMBER_S3_ENDPOINT") != "" {
		m, err := provider.NewMinio(provider.MinioConfig{
			Endpoint:  os.Getenv("EMBER_S3_ENDPOINT"),
			AccessKey: os.Getenv("EMBER_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("EMBER_S3_SECRET_KEY"),
			Bucket:    os.Getenv("EMBER_BUCKET"),
			LinkTTL:   envDuration("EMBER_S3_LINK_TTL", 24*time.Hour),
		})
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "minio_setup_failed", err)
			os.Exit(1)
		}
		providers.Register(m)
	}
	log.Printf("service=backend msg=%q providers=%v", "providers_ready", providers.Names())

	// Share history is optional: no DATABASE_URL, no log.
	var hist *history.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		var err error
		hist, err = history.Open(dsn)
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "history_connect_failed", err)
			os.Exit(1)
		}
		defer func() { _ = hist.Close() }()

		log.Printf("service=backend msg=%q", "running_migrations")
		if err := hist.Migrate(); err != nil {
			log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "migrations_complete")
	}

	hub := relay.NewHub()
	ctrl := relay.NewController(relay.ControllerConfig{
		Providers: providers,
		Hub:       hub,
		History:   hist,
	})

	srv := relay.New(relay.Config{
		Addr:        addr,
		Build:       build,
		Controller:  ctrl,
		Hub:         hub,
		History:     hist,
		ConnectRate: envInt("EMBER_WS_CONNECT_RATE", 0),
	})

	// Background expiry sweep, stopped on shutdown via context.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go relay.StartSweepJob(sweepCtx, ctrl, relay.GetSweepConfigFromEnv())

	// Start the HTTP server in a background goroutine so we can listen
	// for OS signals while it runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", addr, build.Version, build.Commit)
		err := srv.Start()
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()

	// Graceful shutdown on SIGINT (Ctrl+C) or SIGTERM (container stop).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		stopSweep()
		// Give the server 5 seconds to drain in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// envDuration parses a duration env var, falling back on absence or
// parse failure.
func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envInt parses an integer env var, falling back on absence or parse
// failure.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
