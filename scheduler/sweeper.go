// Package scheduler runs catalog sweeps: one observation pass over every
// catalog product, on demand or on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"pricewatch/metrics"
	"pricewatch/models"
	"pricewatch/scraper"
)

// ErrAlreadyArmed is returned by Arm after the first successful call
var ErrAlreadyArmed = eris.New("scheduler already armed")

// Filter selects the usable observations of one results page
type Filter interface {
	Filter(product string, raws []models.RawObservation) []models.Observation
}

// Reconciler applies observations to the price store
type Reconciler interface {
	ReconcileAll(ctx context.Context, observations []models.Observation) ([]models.ChangeEvent, error)
}

// Announcer publishes change events
type Announcer interface {
	NotifyAll(ctx context.Context, events []models.ChangeEvent)
}

// Sweep triggers, recorded on each run
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

type armState int

const (
	unarmed armState = iota
	armed
)

// Options tune the sweep loop
type Options struct {
	// Interval between scheduled sweeps once armed
	Interval time.Duration
	// Pause between two products of the same sweep
	Pause time.Duration
	// ProductTimeout bounds the observation of one product. A product that
	// runs over it counts as a scrape failure.
	ProductTimeout time.Duration
}

// SweepReport summarizes one sweep
type SweepReport struct {
	ID           string
	Products     int
	Failed       []string
	Observations int
	Events       []models.ChangeEvent
	Duration     time.Duration
}

// Changes counts the events that were announced
func (r SweepReport) Changes() int {
	n := 0
	for _, e := range r.Events {
		if e.IsChange() {
			n++
		}
	}
	return n
}

// Sweeper drives scrape → filter → reconcile → notify over the catalog.
// At most one sweep runs at a time; a sweep requested while another is
// running waits for it.
type Sweeper struct {
	source   scraper.PageSource
	filter   Filter
	engine   Reconciler
	notifier Announcer
	products []string
	opts     Options
	runs     *SweepLog

	running sync.Mutex

	mu    sync.Mutex
	state armState
	cron  *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(source scraper.PageSource, filter Filter, engine Reconciler, notifier Announcer, products []string, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.ProductTimeout <= 0 {
		opts.ProductTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		source:   source,
		filter:   filter,
		engine:   engine,
		notifier: notifier,
		products: append([]string(nil), products...),
		opts:     opts,
		runs:     NewSweepLog(defaultMaxRuns),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Arm runs one sweep immediately in the background and schedules a sweep
// every interval after that. When a sweep is already running the first
// scheduled sweep starts as soon as it ends. Only the first call has any
// effect.
func (s *Sweeper) Arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == armed {
		return ErrAlreadyArmed
	}
	if s.ctx.Err() != nil {
		return eris.New("scheduler stopped")
	}

	logger := cron.PrintfLogger(zap.NewStdLog(zap.L()))
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.DelayIfStillRunning(logger)))
	spec := fmt.Sprintf("@every %s", s.opts.Interval)
	if _, err := c.AddFunc(spec, func() { s.run(s.ctx, TriggerSchedule) }); err != nil {
		return eris.Wrapf(err, "failed to schedule sweep %q", spec)
	}

	if _, ok := s.startSweep(TriggerSchedule); !ok {
		zap.L().Info("sweep in progress, first scheduled sweep queued behind it")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(s.ctx, TriggerSchedule)
		}()
	}
	c.Start()
	s.cron = c
	s.state = armed

	zap.L().Info("⏰ sweeps scheduled", zap.Duration("interval", s.opts.Interval))
	return nil
}

// Armed reports whether Arm has succeeded
func (s *Sweeper) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == armed
}

// StartSweep starts a background sweep unless one is already running. It
// returns the id of the started sweep.
func (s *Sweeper) StartSweep() (string, bool) {
	return s.startSweep(TriggerManual)
}

func (s *Sweeper) startSweep(trigger string) (string, bool) {
	if !s.running.TryLock() {
		return "", false
	}
	id := uuid.NewString()
	s.runs.start(id, trigger, time.Now())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		s.sweep(s.ctx, id)
	}()
	return id, true
}

// RunSweep runs one sweep and returns its report, waiting first for any
// sweep already in progress.
func (s *Sweeper) RunSweep(ctx context.Context) SweepReport {
	return s.run(ctx, TriggerManual)
}

func (s *Sweeper) run(ctx context.Context, trigger string) SweepReport {
	s.running.Lock()
	defer s.running.Unlock()

	id := uuid.NewString()
	s.runs.start(id, trigger, time.Now())
	return s.sweep(ctx, id)
}

// Run returns the status of a recent sweep
func (s *Sweeper) Run(id string) (models.SweepRun, bool) {
	return s.runs.Get(id)
}

// RecentRuns returns up to n recent sweeps, newest first
func (s *Sweeper) RecentRuns(n int) []models.SweepRun {
	return s.runs.Recent(n)
}

// SweepStats counts the recent sweeps by status
func (s *Sweeper) SweepStats() map[string]int {
	return s.runs.Stats()
}

// Stop cancels in-flight work and waits for it to return
func (s *Sweeper) Stop() {
	s.cancel()

	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}

func (s *Sweeper) sweep(ctx context.Context, id string) SweepReport {
	start := time.Now()
	report := SweepReport{ID: id}
	log := zap.L().With(zap.String("sweep_id", report.ID))
	log.Info("🔄 starting sweep", zap.Int("products", len(s.products)))

	for i, product := range s.products {
		if ctx.Err() != nil {
			log.Warn("sweep cancelled", zap.Int("remaining", len(s.products)-i))
			break
		}
		if i > 0 && !pause(ctx, s.opts.Pause) {
			break
		}
		report.Products++

		raws, err := s.observe(ctx, product)
		if err != nil {
			metrics.ScrapeFailures.WithLabelValues(product).Inc()
			report.Failed = append(report.Failed, product)
			log.Warn("skipping product", zap.String("product", product), zap.Error(err))
			continue
		}

		observations := s.filter.Filter(product, raws)
		report.Observations += len(observations)

		events, err := s.engine.ReconcileAll(ctx, observations)
		if err != nil {
			log.Error("reconciliation failed", zap.String("product", product), zap.Error(err))
		}
		report.Events = append(report.Events, events...)

		s.notifier.NotifyAll(ctx, events)
	}

	report.Duration = time.Since(start)
	s.runs.finish(report, ctx.Err() != nil, time.Now())
	metrics.SweepsTotal.Inc()
	metrics.SweepDuration.Observe(report.Duration.Seconds())
	log.Info("✅ sweep finished",
		zap.Int("products", report.Products),
		zap.Int("failed", len(report.Failed)),
		zap.Int("observations", report.Observations),
		zap.Int("changes", report.Changes()),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func (s *Sweeper) observe(ctx context.Context, product string) ([]models.RawObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProductTimeout)
	defer cancel()

	return s.source.Observe(ctx, product)
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
