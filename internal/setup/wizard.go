package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tunjid/listingApp-sub001/internal/config"
	"github.com/tunjid/listingApp-sub001/internal/savedstate"
	"github.com/tunjid/listingApp-sub001/internal/store"
)

// ProbeFunc fetches the feed at url once and reports how many listings it
// returned.
type ProbeFunc func(ctx context.Context, url string) (int, error)

// Wizard guides the user through writing a config file.
type Wizard struct {
	prompt *Prompter
	probe  ProbeFunc
	logger *slog.Logger
	w      io.Writer
}

// NewWizard creates a Wizard wired to the given I/O, feed probe and logger.
func NewWizard(r io.Reader, w io.Writer, probe ProbeFunc, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt: NewPrompter(r, w),
		probe:  probe,
		logger: logger,
		w:      w,
	}
}

// Run walks through the feed, storage, sync and paging settings and writes
// the result to cfgPath. It returns the saved config, or the existing one
// when the user declines to overwrite it.
func (wiz *Wizard) Run(ctx context.Context, cfgPath string) (*config.Config, error) {
	fmt.Fprintf(wiz.w, "\nWelcome to listingapp setup!\n")
	fmt.Fprintf(wiz.w, "This wizard writes %s.\n\n", cfgPath)

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", cfgPath)
		choice, err := wiz.prompt.Select("What should happen to it?", []string{"Keep it", "Overwrite it"})
		if err != nil {
			return nil, fmt.Errorf("choosing config action: %w", err)
		}
		if choice == 0 {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return config.Load(cfgPath)
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	cfg := &config.Config{}

	fmt.Fprintf(wiz.w, "Step 1/5: Listings feed\n")
	cfg.RemoteURL = wiz.prompt.String("Feed URL", "")
	if err := wiz.checkFeed(ctx, cfg.RemoteURL); err != nil {
		return nil, err
	}

	fmt.Fprintf(wiz.w, "Step 2/5: Storage\n")
	dbDefault, err := store.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	stateDefault, err := savedstate.DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg.DatabasePath = wiz.prompt.String("Database file", dbDefault)
	cfg.StatePath = wiz.prompt.String("Navigation state file", stateDefault)
	fmt.Fprintf(wiz.w, "\n")

	fmt.Fprintf(wiz.w, "Step 3/5: Sync\n")
	cfg.PollInterval = wiz.prompt.Duration("How often should the daemon refresh?",
		config.DefaultPollInterval, config.MinPollInterval, config.MaxPollInterval)
	cfg.PruneMissing = wiz.prompt.Confirm("Delete local listings the feed no longer returns?", false)
	fmt.Fprintf(wiz.w, "\n")

	fmt.Fprintf(wiz.w, "Step 4/5: Paging\n")
	cfg.Paging.Limit = wiz.prompt.Int("Listings per page", config.DefaultPageLimit, 1, 500)
	cfg.Paging.OnCount = wiz.prompt.Int("Live pages around the current one", config.DefaultOnCount, 1, 50)
	cfg.Paging.OffCount = wiz.prompt.Int("Cached pages around the current one",
		max(config.DefaultOffCount, cfg.Paging.OnCount), cfg.Paging.OnCount, 200)
	fmt.Fprintf(wiz.w, "\n")

	fmt.Fprintf(wiz.w, "Step 5/5: Telemetry\n")
	cfg.Telemetry = wiz.telemetry()
	fmt.Fprintf(wiz.w, "\n")

	if err := cfg.Write(cfgPath); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n\n", cfgPath)
	fmt.Fprintf(wiz.w, "Next steps:\n")
	fmt.Fprintf(wiz.w, "  listingapp sync-once   fetch the feed now\n")
	fmt.Fprintf(wiz.w, "  listingapp daemon      keep the local copy fresh\n")
	fmt.Fprintf(wiz.w, "  listingapp browse      page through listings offline\n\n")

	return cfg, nil
}

// telemetry asks for an optional OTLP collector. A token becomes a bearer
// Authorization header.
func (wiz *Wizard) telemetry() *config.TelemetryConfig {
	if !wiz.prompt.Confirm("Export traces and metrics to an OTLP collector?", false) {
		return nil
	}
	tel := &config.TelemetryConfig{
		OTLPEndpoint: wiz.prompt.String("Collector gRPC endpoint", "localhost:4317"),
	}
	tel.Insecure = wiz.prompt.Confirm("Connect without TLS?", strings.HasPrefix(tel.OTLPEndpoint, "localhost:"))
	if token := wiz.prompt.Secret("Bearer token"); token != "" {
		tel.Headers = map[string]string{"Authorization": "Bearer " + token}
	}
	return tel
}

// checkFeed probes url. A failing feed can still be saved when the user
// confirms, since the app works offline from whatever was last synced.
func (wiz *Wizard) checkFeed(ctx context.Context, url string) error {
	fmt.Fprintf(wiz.w, "  Fetching feed...")
	n, err := wiz.probe(ctx, url)
	if err == nil {
		fmt.Fprintf(wiz.w, " ✓ %d listing(s)\n\n", n)
		return nil
	}

	fmt.Fprintf(wiz.w, " ✗\n")
	wiz.logger.Warn("feed probe failed", "url", url, "error", err)
	fmt.Fprintf(wiz.w, "  %v\n", err)
	if !wiz.prompt.Confirm("Save this URL anyway?", false) {
		return fmt.Errorf("cannot reach feed at %q: %w", url, err)
	}
	fmt.Fprintf(wiz.w, "\n")
	return nil
}
