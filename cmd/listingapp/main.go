// listingapp keeps an offline copy of a rental listings feed in SQLite and
// pages through it from the terminal.
//
// Usage:
//
//	listingapp init      [--config <path>]              # interactive config wizard
//	listingapp sync-once [--config <path>]              # fetch the feed once then exit
//	listingapp daemon    [--config <path>]              # re-sync every poll_interval
//	listingapp browse    [--page N] [--type T] [--favorites] [--detail ID] [--refresh]
//	listingapp search    [--type T] [--favorites] [--limit N] <terms>
//	listingapp back                                     # return to the previous screen
//	listingapp favorite  [--off] <listing-id>           # star or unstar a listing
//	listingapp status                                   # show config and local data
//	listingapp version                                  # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tunjid/listingApp-sub001/internal/config"
	"github.com/tunjid/listingApp-sub001/internal/explore"
	"github.com/tunjid/listingApp-sub001/internal/model"
	"github.com/tunjid/listingApp-sub001/internal/remote"
	"github.com/tunjid/listingApp-sub001/internal/repository"
	"github.com/tunjid/listingApp-sub001/internal/savedstate"
	"github.com/tunjid/listingApp-sub001/internal/setup"
	"github.com/tunjid/listingApp-sub001/internal/store"
	syncp "github.com/tunjid/listingApp-sub001/internal/sync"
	"github.com/tunjid/listingApp-sub001/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the requested subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "init":
		return runInit(args)
	case "daemon":
		return runSync(args, true)
	case "sync-once":
		return runSync(args, false)
	case "browse":
		return runBrowse(args)
	case "search":
		return runSearch(args)
	case "back":
		return runBack(args)
	case "favorite":
		return runFavorite(args)
	case "status":
		return runStatus(args)
	case "version":
		fmt.Println("listingapp", version)
		return nil
	}

	return fmt.Errorf("unknown command %q, run 'listingapp' for usage", cmd)
}

// printUsage shows help and suggests init if no config exists.
func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "listingapp: offline rental listings")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  listingapp init                   Interactive config wizard")
	fmt.Fprintln(os.Stderr, "  listingapp sync-once              Fetch the feed once then exit")
	fmt.Fprintln(os.Stderr, "  listingapp daemon                 Keep the local copy fresh")
	fmt.Fprintln(os.Stderr, "  listingapp browse [flags]         Page through listings offline")
	fmt.Fprintln(os.Stderr, "  listingapp search <terms>         Fuzzy-find listings by title")
	fmt.Fprintln(os.Stderr, "  listingapp back                   Return to the previous screen")
	fmt.Fprintln(os.Stderr, "  listingapp favorite [--off] <id>  Star or unstar a listing")
	fmt.Fprintln(os.Stderr, "  listingapp status                 Show config and local data")
	fmt.Fprintln(os.Stderr, "  listingapp version                Print version")
	fmt.Fprintln(os.Stderr, "")

	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Run 'listingapp init' to get started.")
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Shared plumbing ---------------------------------------------------------

// commonFlags registers --config and --verbose on a new flag set.
func commonFlags(name string) (*flag.FlagSet, *string, *bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	return fs, cfgPath, verbose
}

// newLogger logs at level, or at debug with --verbose.
func newLogger(level slog.Level, verbose bool) *slog.Logger {
	logLevel := level
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// app holds everything a subcommand needs once the config is loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	nav      *savedstate.Store
	coord    *syncp.Coordinator
	requests *syncOnce

	closers []func()
}

func openApp(cfgPath string, logger *slog.Logger) (*app, error) {
	envPath := filepath.Join(filepath.Dir(cfgPath), ".env")
	if err := config.LoadEnvFile(envPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Debug("config loaded",
		"remote_url", cfg.RemoteURL,
		"database_path", cfg.DatabasePath,
		"poll_interval", cfg.PollInterval,
	)

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, setupTelemetry(cfg, logger))

	a.store, err = store.Open(cfg.DatabasePath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening database at %q: %w", cfg.DatabasePath, err)
	}
	a.closers = append(a.closers, func() {
		if err := a.store.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	})

	a.nav, err = savedstate.Open(cfg.StatePath, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening navigation state at %q: %w", cfg.StatePath, err)
	}

	policy := remote.DefaultPolicy()
	policy.Attempts = cfg.FetchAttempts
	client := remote.NewClient(cfg.RemoteURL, logger,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithRetry(policy),
	)
	a.coord = syncp.NewCoordinator(client, a.store, cfg.PruneMissing, logger)
	a.closers = append(a.closers, a.coord.Close)
	a.requests = &syncOnce{to: a.coord}

	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// feed builds the explore feed. Its repositories ask the coordinator for a
// background pass while reads are served from the local store.
func (a *app) feed(propertyType string, favorites bool) (*explore.Feed, *repository.ListingRepository) {
	return newFeed(a.store, a.requests, a.cfg.Paging, propertyType, favorites)
}

func newFeed(st *store.Store, syncer repository.SyncRequester, paging config.PagingConfig, propertyType string, favorites bool) (*explore.Feed, *repository.ListingRepository) {
	listings := repository.NewListingRepository(st, syncer)
	media := repository.NewMediaRepository(st, syncer)
	users := repository.NewUserRepository(st, syncer)
	feed := explore.NewFeed(listings, media, users, explore.Options{
		Limit:        paging.Limit,
		OnCount:      paging.OnCount,
		OffCount:     paging.OffCount,
		PropertyType: propertyType,
		Favorites:    favorites,
	})
	return feed, listings
}

// syncOnce forwards the first sync request of a command to the coordinator;
// the repositories of one invocation share a single pass.
type syncOnce struct {
	once sync.Once
	to   repository.SyncRequester
}

func (s *syncOnce) RequestSync() { s.once.Do(s.to.RequestSync) }

// skip marks the request as served, e.g. by an explicit refresh.
func (s *syncOnce) skip() { s.once.Do(func() {}) }

// setupTelemetry starts the OTLP exporters when configured and returns the
// flush function to run on exit.
func setupTelemetry(cfg *config.Config, logger *slog.Logger) func() {
	if cfg.Telemetry == nil {
		return func() {}
	}
	telCfg := telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
		ServiceName:  cfg.Telemetry.ServiceName,
		Headers:      cfg.Telemetry.Headers,
	}
	shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
	if err != nil {
		logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		return func() {}
	}
	logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTel(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}
}

// --- Subcommands -------------------------------------------------------------

// runInit launches the interactive config wizard.
func runInit(args []string) error {
	fs, cfgPath, verbose := commonFlags("init")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(slog.LevelWarn, *verbose)

	ctx, stop := signalContext()
	defer stop()

	probe := func(ctx context.Context, url string) (int, error) {
		client := remote.NewClient(url, logger, remote.WithRetry(remote.Policy{Attempts: 1}))
		listings, err := client.FetchAll(ctx)
		return len(listings), err
	}
	_, err := setup.NewWizard(os.Stdin, os.Stdout, probe, logger).Run(ctx, *cfgPath)
	return err
}

// runSync handles both "daemon" and "sync-once".
func runSync(args []string, daemon bool) error {
	fs, cfgPath, verbose := commonFlags("sync")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(slog.LevelInfo, *verbose)

	a, err := openApp(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if !daemon {
		logger.Info("running single sync pass", "url", a.cfg.RemoteURL)
		res, err := a.coord.Sync(ctx)
		if err != nil {
			return err
		}
		run, _ := a.coord.LastRun()
		logger.Info("sync complete",
			"run_id", run.ID,
			"listings", res.Listings,
			"media", res.Media,
			"users", res.Users,
			"pruned", res.Pruned,
			"duration", run.Finished.Sub(run.Started),
		)
		return nil
	}

	go func() {
		_ = a.coord.Status().Collect(ctx, func(s model.SyncStatus) {
			logger.Debug("sync status changed", "status", s)
		})
	}()

	engine := syncp.NewEngine(a.coord, a.cfg.PollInterval, logger)
	logger.Info("daemon starting", "poll_interval", a.cfg.PollInterval)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	logger.Info("daemon stopped")
	return nil
}

// runBrowse renders a listing page or a listing detail and records it in the
// navigation state. Without flags it re-renders the last screen.
func runBrowse(args []string) error {
	fs, cfgPath, verbose := commonFlags("browse")
	page := fs.Int("page", 1, "page number, starting at 1")
	propertyType := fs.String("type", "", "only show this property type")
	favorites := fs.Bool("favorites", false, "only show favorite listings")
	detail := fs.String("detail", "", "show the listing with this id")
	refresh := fs.Bool("refresh", false, "sync with the feed before reading")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(slog.LevelWarn, *verbose)

	a, err := openApp(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if *refresh {
		a.requests.skip()
		if _, err := a.coord.Sync(ctx); err != nil {
			// Browsing works offline from the last successful sync.
			fmt.Fprintf(os.Stderr, "⚠ refresh failed, showing local data: %v\n\n", err)
		}
	}

	explicit := false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "page", "type", "favorites", "detail":
			explicit = true
		}
	})

	var r route
	switch {
	case *detail != "":
		r = route{listingID: *detail}
	case explicit:
		r = route{favorites: *favorites, page: max(*page-1, 0), propertyType: *propertyType}
	default:
		r, err = parseRoute(a.nav.Current().Current())
		if err != nil {
			logger.Warn("ignoring saved route", "error", err)
			r = route{}
		}
	}

	if explicit {
		if _, err := a.nav.Update(func(st savedstate.NavState) savedstate.NavState {
			return navigate(st, r)
		}); err != nil {
			logger.Warn("could not save navigation state", "error", err)
		}
	}

	return a.render(ctx, r)
}

// runSearch fuzzy-matches listing titles in the local store.
func runSearch(args []string) error {
	fs, cfgPath, verbose := commonFlags("search")
	propertyType := fs.String("type", "", "only search this property type")
	favorites := fs.Bool("favorites", false, "only search favorite listings")
	limit := fs.Int("limit", 20, "maximum matches to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("usage: listingapp search [--type T] [--favorites] [--limit N] <terms>")
	}
	if *limit <= 0 {
		return fmt.Errorf("--limit %d must be positive", *limit)
	}
	logger := newLogger(slog.LevelWarn, *verbose)

	a, err := openApp(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	feed, _ := a.feed(*propertyType, *favorites)
	return renderSearch(ctx, os.Stdout, feed, query, *limit)
}

// runBack pops the active back stack and renders the screen below.
func runBack(args []string) error {
	fs, cfgPath, verbose := commonFlags("back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(slog.LevelWarn, *verbose)

	a, err := openApp(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	popped := false
	st, err := a.nav.Update(func(st savedstate.NavState) savedstate.NavState {
		next, ok := st.Pop()
		popped = ok
		return next
	})
	if err != nil {
		return fmt.Errorf("saving navigation state: %w", err)
	}
	if !popped {
		fmt.Fprintln(os.Stderr, "Already at the first screen.")
	}

	r, err := parseRoute(st.Current())
	if err != nil {
		return err
	}
	return a.render(ctx, r)
}

func (a *app) render(ctx context.Context, r route) error {
	feed, _ := a.feed(r.propertyType, r.favorites)
	if r.isDetail() {
		err := renderDetail(ctx, os.Stdout, feed, r.listingID)
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("%w (run 'listingapp sync-once' to fetch it)", err)
		}
		return err
	}
	return renderPage(ctx, os.Stdout, feed, r.page)
}

// runFavorite stars or unstars a listing in the local store.
func runFavorite(args []string) error {
	fs, cfgPath, verbose := commonFlags("favorite")
	off := fs.Bool("off", false, "remove the listing from favorites")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: listingapp favorite [--off] <listing-id>")
	}
	id := fs.Arg(0)
	logger := newLogger(slog.LevelWarn, *verbose)

	a, err := openApp(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	_, listings := a.feed("", false)
	if err := listings.SetFavorite(ctx, id, !*off); err != nil {
		if errors.Is(err, store.ErrConstraint) {
			return fmt.Errorf("listing %s is not in the local store", id)
		}
		return err
	}

	if *off {
		fmt.Printf("✓ Removed %s from favorites\n", id)
	} else {
		fmt.Printf("✓ Added %s to favorites\n", id)
	}
	return nil
}

// runStatus prints the config and what is stored locally.
func runStatus(args []string) error {
	fs, cfgPath, verbose := commonFlags("status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(slog.LevelWarn, *verbose)

	fmt.Println("listingapp status")
	fmt.Println("─────────────────")

	if _, err := os.Stat(*cfgPath); err != nil {
		fmt.Printf("  Config:    not found (%s)\n", *cfgPath)
		fmt.Println("\nRun 'listingapp init' to create one.")
		return nil
	}

	a, err := openApp(*cfgPath, logger)
	if err != nil {
		fmt.Printf("  Config:    %s (invalid: %v)\n", *cfgPath, err)
		return nil
	}
	defer a.close()

	fmt.Printf("  Config:    %s ✓\n", *cfgPath)
	fmt.Printf("  Feed:      %s\n", a.cfg.RemoteURL)
	fmt.Printf("  Poll:      %s\n", a.cfg.PollInterval)
	fmt.Printf("  Prune:     %s\n", yesNo(a.cfg.PruneMissing))
	fmt.Printf("  Paging:    %d per page, %d live, %d cached\n",
		a.cfg.Paging.Limit, a.cfg.Paging.OnCount, a.cfg.Paging.OffCount)

	if info, err := os.Stat(a.cfg.DatabasePath); err == nil {
		fmt.Printf("  Database:  %s (%s)\n", a.cfg.DatabasePath, humanSize(info.Size()))
	}

	ctx, stop := signalContext()
	defer stop()

	counts, err := a.store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}
	fmt.Printf("  Listings:  %d (%d favorite)\n", counts.Listings, counts.Favorites)
	fmt.Printf("  Photos:    %d\n", counts.Media)
	fmt.Printf("  Hosts:     %d\n", counts.Users)
	fmt.Printf("  Screen:    %s\n", a.nav.Current().Current())

	return nil
}

// humanSize formats a byte count for display.
func humanSize(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
