package relay

import (
	"context"
	"log"
	"os"
	"time"
)

// SweepConfig holds configuration for the expiry sweep job
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

// StartSweepJob starts a background goroutine that periodically removes
// files whose provider-declared expiry has passed. The cadence is fixed
// and independent of room activity; each pass serializes against
// interactive operations through the controller lock.
func StartSweepJob(ctx context.Context, c *Controller, cfg SweepConfig) {
	if !cfg.Enabled {
		log.Printf("service=sweep msg=%q", "disabled")
		return
	}

	log.Printf("service=sweep msg=%q interval=%s", "starting", cfg.Interval)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	runSweep(c)

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=sweep msg=%q", "shutting_down")
			return
		case <-ticker.C:
			runSweep(c)
		}
	}
}

func runSweep(c *Controller) {
	start := time.Now()
	removed := c.SweepExpired()
	if removed > 0 {
		log.Printf("service=sweep msg=%q removed=%d duration_ms=%d",
			"sweep_complete", removed, time.Since(start).Milliseconds())
	}
}

// GetSweepConfigFromEnv reads sweep configuration from environment variables
func GetSweepConfigFromEnv() SweepConfig {
	enabled := os.Getenv("EMBER_SWEEP_ENABLED") != "false"

	interval := 1 * time.Minute
	if v := os.Getenv("EMBER_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}

	return SweepConfig{
		Enabled:  enabled,
		Interval: interval,
	}
}
