package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
	"github.com/tunjid/listingApp-sub001/internal/store"
)

const (
	otelScope       = "listingapp/sync"
	spanSync        = "sync.pass"
	metricPasses    = "listingapp.sync.passes"
	metricFailures  = "listingapp.sync.failures"
	metricListings  = "listingapp.sync.listings.written"
	metricPruned    = "listingapp.sync.listings.pruned"
	singleflightKey = "sync"
	stageFetch      = "fetch"
	stageSave       = "save"
)

// DefaultCloseGrace is how long [Coordinator.Close] lets a pass in flight
// finish before cancelling it.
const DefaultCloseGrace = 3 * time.Second

// ErrClosed is returned by [Coordinator.Sync] after [Coordinator.Close].
var ErrClosed = errors.New("sync coordinator closed")

// Failure is the error recorded when a pass fails. Data committed by earlier
// passes is left untouched.
type Failure struct {
	RunID string
	Stage string // "fetch" or "save"
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("sync run %s failed during %s: %v", f.RunID, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Run describes the most recent finished pass.
type Run struct {
	ID       string
	Status   model.SyncStatus
	Result   store.SnapshotResult
	Err      error
	Started  time.Time
	Finished time.Time
}

// Coordinator reconciles the remote feed into the local store. At most one
// pass runs at a time; requests arriving while a pass is in flight join it.
// Create one with [NewCoordinator] and release it with [Coordinator.Close].
type Coordinator struct {
	fetcher Fetcher
	writer  SnapshotWriter
	prune   bool
	log     *slog.Logger

	group  singleflight.Group
	status *flow.State[model.SyncStatus]

	// lifetime bounds every pass; passes outlive the callers that asked
	// for them.
	lifetime context.Context
	cancel   context.CancelFunc

	// mu also orders status changes with releasing the singleflight key.
	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
	last    *Run
	grace   time.Duration

	// OTel instruments, no-op when telemetry is disabled.
	tracer      trace.Tracer
	cntPasses   metric.Int64Counter
	cntFailures metric.Int64Counter
	cntListings metric.Int64Counter
	cntPruned   metric.Int64Counter
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithCloseGrace sets how long Close waits for a pass in flight before
// cancelling it. Zero cancels at once.
func WithCloseGrace(d time.Duration) Option {
	return func(c *Coordinator) { c.grace = d }
}

// NewCoordinator creates a Coordinator. With prune set, listings missing from
// the feed are deleted locally.
func NewCoordinator(fetcher Fetcher, writer SnapshotWriter, prune bool, logger *slog.Logger, opts ...Option) *Coordinator {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	lifetime, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		fetcher:  fetcher,
		writer:   writer,
		prune:    prune,
		log:      logger,
		status:   flow.NewState(model.SyncIdle),
		lifetime: lifetime,
		cancel:   cancel,

		tracer:      tracer,
		cntPasses:   mustCounter(metricPasses, "Number of sync passes started"),
		cntFailures: mustCounter(metricFailures, "Number of sync passes that failed"),
		cntListings: mustCounter(metricListings, "Number of listings written by sync"),
		cntPruned:   mustCounter(metricPruned, "Number of listings pruned by sync"),
		grace:       DefaultCloseGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status observes the sync status. New collectors receive the latest value
// first.
func (c *Coordinator) Status() flow.Flow[model.SyncStatus] {
	return c.status.Flow()
}

// CurrentStatus returns the latest sync status.
func (c *Coordinator) CurrentStatus() model.SyncStatus {
	return c.status.Value()
}

// LastRun returns the most recent finished pass, if any.
func (c *Coordinator) LastRun() (Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Run{}, false
	}
	return *c.last, true
}

// RequestSync starts a pass in the background unless one is already
// running. It never blocks and never reports errors; observe [Status].
func (c *Coordinator) RequestSync() {
	_ = c.group.DoChan(singleflightKey, c.guardedPass)
}

// Sync runs a pass, or joins the one in flight, and waits for it. Cancelling
// ctx stops the wait, not the pass.
func (c *Coordinator) Sync(ctx context.Context) (store.SnapshotResult, error) {
	ch := c.group.DoChan(singleflightKey, c.guardedPass)
	select {
	case <-ctx.Done():
		return store.SnapshotResult{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return store.SnapshotResult{}, r.Err
		}
		return r.Val.(store.SnapshotResult), nil
	}
}

// Close gives a pass in flight up to the close grace period to finish, then
// cancels it and waits for it to return. A cancelled pass commits nothing.
// Later requests are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	if c.grace > 0 {
		timer := time.NewTimer(c.grace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			c.log.Warn("sync pass still running at shutdown, cancelling", "grace", c.grace)
		}
	}
	c.cancel()
	<-done
}

func (c *Coordinator) guardedPass() (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return store.SnapshotResult{}, ErrClosed
	}
	c.running.Add(1)
	c.mu.Unlock()
	defer c.running.Done()

	return c.pass(c.lifetime)
}

// pass runs one fetch-map-save cycle, recording a trace span and metrics.
func (c *Coordinator) pass(ctx context.Context) (store.SnapshotResult, error) {
	run := Run{ID: uuid.NewString(), Started: time.Now()}
	log := c.log.With("run_id", run.ID)

	ctx, span := c.tracer.Start(ctx, spanSync, trace.WithAttributes(
		attribute.String("sync.run_id", run.ID),
		attribute.Bool("sync.prune", c.prune),
	))
	defer span.End()

	c.mu.Lock()
	c.status.Set(model.SyncRunning)
	c.mu.Unlock()
	c.cntPasses.Add(ctx, 1)
	log.Debug("sync pass started")

	dtos, err := c.fetcher.FetchAll(ctx)
	if err != nil {
		return c.fail(ctx, span, log, &run, stageFetch, err)
	}

	snap := toSnapshot(dtos, log)
	res, err := c.writer.SaveSnapshot(ctx, snap, c.prune)
	if err != nil {
		return c.fail(ctx, span, log, &run, stageSave, err)
	}

	if res.Listings > 0 {
		c.cntListings.Add(ctx, int64(res.Listings))
	}
	if res.Pruned > 0 {
		c.cntPruned.Add(ctx, res.Pruned)
	}
	span.SetAttributes(
		attribute.Int("sync.listings", res.Listings),
		attribute.Int("sync.media", res.Media),
		attribute.Int("sync.users", res.Users),
		attribute.Int64("sync.pruned", res.Pruned),
	)

	run.Status = model.SyncSuccess
	run.Result = res
	c.finish(&run)
	log.Info("sync pass complete",
		"listings", res.Listings, "media", res.Media, "users", res.Users,
		"pruned", res.Pruned, "duration", run.Finished.Sub(run.Started))
	return res, nil
}

func (c *Coordinator) fail(ctx context.Context, span trace.Span, log *slog.Logger, run *Run, stage string, err error) (store.SnapshotResult, error) {
	failure := &Failure{RunID: run.ID, Stage: stage, Err: err}

	c.cntFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	span.RecordError(failure)
	span.SetStatus(codes.Error, stage)

	run.Status = model.SyncFailure
	run.Err = failure
	c.finish(run)
	log.Error("sync pass failed", "stage", stage, "error", err)
	return store.SnapshotResult{}, failure
}

// finish records run and publishes its status. The singleflight key is
// released first, so a request made after observing the final status starts
// a new pass instead of joining this one.
func (c *Coordinator) finish(run *Run) {
	run.Finished = time.Now()
	snapshot := *run
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &snapshot
	c.group.Forget(singleflightKey)
	c.status.Set(run.Status)
}
