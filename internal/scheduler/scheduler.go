package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"matchastock/internal/config"
	"matchastock/internal/lock"
	"matchastock/internal/repos"
	"matchastock/internal/services"
)

const (
	DefaultConcurrency = 4
	DefaultLockTTL     = 30 * time.Minute
)

// Cycler runs one scrape cycle for a site.
type Cycler interface {
	RunCycle(ctx context.Context, site config.Site) (services.CycleReport, error)
}

// Scheduler triggers brand cycles. Cycles of different brands run
// concurrently up to Concurrency; a brand is never scraped twice at once when
// a Locker is configured.
type Scheduler struct {
	Sites       []config.Site
	Cycles      Cycler
	Locker      *lock.Locker
	Concurrency int
	Interval    time.Duration
	LockTTL     time.Duration
	Log         *zap.Logger
}

func New(sites []config.Site, c Cycler, l *lock.Locker, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{Sites: sites, Cycles: c, Locker: l, Concurrency: DefaultConcurrency, Interval: time.Hour, LockTTL: DefaultLockTTL, Log: log}
}

// Run is the outcome of one RunOnce pass.
type Run struct {
	Reports []services.CycleReport
	Skipped []string
}

// RunOnce runs every site's cycle and waits for all of them. A failing brand
// never cancels the others; their errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context) (Run, error) {
	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	var (
		mu   sync.Mutex
		run  Run
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(limit)
	for _, site := range s.Sites {
		site := site
		g.Go(func() error {
			key := "brand:" + repos.BrandID(site.Brand)
			var rep services.CycleReport
			err := s.Locker.Do(ctx, key, ttl, func(ctx context.Context) error {
				var err error
				rep, err = s.Cycles.RunCycle(ctx, site)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, lock.ErrHeld):
				s.Log.Info("cycle already running elsewhere", zap.String("brand", site.Brand))
				run.Skipped = append(run.Skipped, site.Brand)
				return nil
			case err != nil:
				s.Log.Error("cycle failed", zap.String("brand", site.Brand), zap.Error(err))
				errs = append(errs, fmt.Errorf("brand %q: %w", site.Brand, err))
			}
			if rep.Brand != "" {
				run.Reports = append(run.Reports, rep)
			}
			return nil
		})
	}
	_ = g.Wait()
	return run, errors.Join(errs...)
}

// Run calls RunOnce every Interval until ctx ends. With runNow the first
// pass starts immediately.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	pass := func() {
		start := time.Now()
		run, err := s.RunOnce(ctx)
		s.Log.Info("scrape pass done",
			zap.Int("brands", len(s.Sites)),
			zap.Int("reports", len(run.Reports)),
			zap.Int("skipped", len(run.Skipped)),
			zap.Duration("took", time.Since(start)),
			zap.NamedError("errors", err),
		)
	}
	if runNow {
		pass()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			pass()
		}
	}
}
