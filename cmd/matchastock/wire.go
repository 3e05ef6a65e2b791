package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"matchastock/internal/clock"
	"matchastock/internal/config"
	"matchastock/internal/extract"
	"matchastock/internal/fetch"
	"matchastock/internal/lock"
	applog "matchastock/internal/log"
	"matchastock/internal/notify"
	"matchastock/internal/repos"
	"matchastock/internal/scheduler"
	"matchastock/internal/services"
	"matchastock/internal/unsubscribe"
)

// runtime holds everything a command needs, built from config.
type runtime struct {
	cfg   config.Config
	log   *zap.Logger
	db    *sqlx.DB
	sites []config.Site

	catalog   *services.CatalogService
	subs      *services.SubscriptionService
	monitor   *services.MonitorService
	scheduler *scheduler.Scheduler

	closers []func() error
}

type buildOptions struct {
	// DryRun logs outbound messages instead of queueing them.
	DryRun bool
}

func build(ctx context.Context, cfg config.Config, opts buildOptions) (*runtime, error) {
	logger, err := applog.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: logger}
	rt.closers = append(rt.closers, func() error { _ = logger.Sync(); return nil })

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	rt.db = db
	rt.closers = append(rt.closers, db.Close)

	sites, err := config.LoadSites(cfg.SitesFile, cfg.MaxPages)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.sites = sites

	clk := clock.Real{}
	brands := repos.NewBrandRepo(db, clk)
	products := repos.NewProductRepo(db, clk)
	ledger := repos.NewStockRepo(db, clk)
	users := repos.NewUserRepo(db, clk)
	subs := repos.NewSubscriptionRepo(db, clk)

	for _, s := range sites {
		if _, err := brands.Ensure(ctx, s.Brand, s.Website); err != nil {
			rt.close()
			return nil, fmt.Errorf("register brand %q: %w", s.Brand, err)
		}
	}

	var sender notify.Sender
	switch {
	case opts.DryRun || len(cfg.KafkaBrokers) == 0:
		sender = notify.NewLogSender(applog.Named("notify"))
	default:
		ks := notify.NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaTopic)
		rt.closers = append(rt.closers, ks.Close)
		sender = ks
	}

	locker, err := lock.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, locker.Close)

	signer := unsubscribe.NewSigner(cfg.UnsubscribeSecret, cfg.BaseURL, clk)
	dispatch := services.NewDispatchService(brands, subs, sender, signer, clk, applog.Named("dispatch"))
	reconcile := services.NewReconcileService(products, ledger, applog.Named("reconcile"))
	rt.catalog = services.NewCatalogService(brands, products, ledger)
	rt.subs = services.NewSubscriptionService(users, brands, products, subs, dispatch, signer, applog.Named("subscriptions"))

	fetcher := fetch.New(fetch.Options{
		Timeout:   cfg.FetchTimeout,
		MinDelay:  cfg.FetchMinDelay,
		MaxDelay:  cfg.FetchMaxDelay,
		Retries:   cfg.FetchRetries,
		UserAgent: cfg.FetchUserAgent,
		Logger:    applog.Named("fetch"),
	})
	rt.monitor = services.NewMonitorService(fetcher, extract.NewRegistry(), brands, reconcile, dispatch, applog.Named("monitor"))

	rt.scheduler = scheduler.New(sites, rt.monitor, locker, applog.Named("scheduler"))
	rt.scheduler.Concurrency = cfg.ScrapeConcurrency
	rt.scheduler.Interval = cfg.ScrapeInterval
	return rt, nil
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}
