package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"matchastock/internal/config"
	"matchastock/internal/domain"
	"matchastock/internal/extract"
	"matchastock/internal/metrics"
	"matchastock/internal/repos"
)

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, brandID string, items []domain.ScrapedItem) (domain.ReconcileResult, error)
}

type RestockNotifier interface {
	OnRestock(ctx context.Context, brandID string, restocked []domain.RestockedProduct) (int, error)
}

type BrandEnsurer interface {
	Ensure(ctx context.Context, name, website string) (domain.Brand, error)
}

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseFetchingPage Phase = "fetching_page"
	PhaseReconciling  Phase = "reconciling"
	PhaseDispatching  Phase = "dispatching"
)

// CycleState is where a brand cycle stands. Page is set while fetching.
type CycleState struct {
	Phase Phase
	Page  int
}

type CycleReport struct {
	Brand      string
	BrandID    string
	Pages      int
	PageErrors int
	Items      int
	Result     domain.ReconcileResult
	Dispatched int
	Duration   time.Duration
}

// MonitorService runs one scrape cycle for a site: fetch and extract pages
// in order, reconcile the items, then dispatch restocks.
type MonitorService struct {
	Fetcher    PageFetcher
	Extractors *extract.Registry
	Brands     BrandEnsurer
	Reconciler Reconciler
	Notifier   RestockNotifier
	Log        *zap.Logger

	// OnState, when set, observes every state change of a cycle.
	OnState func(brand string, st CycleState)
}

func NewMonitorService(f PageFetcher, ex *extract.Registry, brands BrandEnsurer, r Reconciler, n RestockNotifier, log *zap.Logger) *MonitorService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MonitorService{Fetcher: f, Extractors: ex, Brands: brands, Reconciler: r, Notifier: n, Log: log}
}

// RunCycle never lets a page failure escape: a failed page ends pagination
// for catalog sites and is skipped for explicit page lists. A missing or
// unknown strategy fails the cycle with domain.ErrConfiguration.
func (s *MonitorService) RunCycle(ctx context.Context, site config.Site) (rep CycleReport, err error) {
	start := time.Now()
	rep.Brand, rep.BrandID = site.Brand, repos.BrandID(site.Brand)
	log := s.Log.With(zap.String("brand", site.Brand))
	defer func() {
		rep.Duration = time.Since(start)
		metrics.RecordCycle(rep.BrandID, rep.Duration.Seconds(), err)
		s.enter(site.Brand, CycleState{Phase: PhaseIdle})
	}()

	ex, err := s.Extractors.New(site.Strategy, extract.Options{
		ProductPath: site.ProductPath,
		MonitorName: site.MonitorName,
		Logger:      log,
	})
	if err != nil {
		return rep, fmt.Errorf("brand %q: %w", site.Brand, err)
	}
	brand, err := s.Brands.Ensure(ctx, site.Brand, site.Website)
	if err != nil {
		return rep, fmt.Errorf("brand %q: %w", site.Brand, err)
	}
	rep.BrandID = brand.ID

	items := s.collect(ctx, site, ex, log, &rep)
	items = dedupeByName(items)
	rep.Items = len(items)

	s.enter(site.Brand, CycleState{Phase: PhaseReconciling})
	res, recErr := s.Reconciler.Reconcile(ctx, brand.ID, items)
	rep.Result = res

	s.enter(site.Brand, CycleState{Phase: PhaseDispatching})
	var dispErr error
	if len(res.Restocked) > 0 && s.Notifier != nil {
		rep.Dispatched, dispErr = s.Notifier.OnRestock(ctx, brand.ID, res.Restocked)
		if dispErr != nil {
			log.Error("dispatch failed", zap.Error(dispErr))
		}
	}

	log.Info("cycle done",
		zap.Int("pages", rep.Pages),
		zap.Int("page_errors", rep.PageErrors),
		zap.Int("items", rep.Items),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("appended", res.Appended),
		zap.Int("restocked", len(res.Restocked)),
		zap.Int("dispatched", rep.Dispatched),
	)
	return rep, errors.Join(recErr, dispErr)
}

func (s *MonitorService) collect(ctx context.Context, site config.Site, ex extract.Extractor, log *zap.Logger, rep *CycleReport) []domain.ScrapedItem {
	var items []domain.ScrapedItem
	if !site.Paginated() {
		for i, u := range site.Pages {
			if ctx.Err() != nil {
				break
			}
			s.enter(site.Brand, CycleState{Phase: PhaseFetchingPage, Page: i + 1})
			got, err := s.page(ctx, ex, site, rep.BrandID, u)
			if err != nil {
				rep.PageErrors++
				log.Warn("page skipped", zap.String("url", u), zap.Error(err))
				continue
			}
			rep.Pages++
			items = append(items, got...)
		}
		return items
	}

	maxPages := site.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}
	for n := 1; n <= maxPages; n++ {
		if ctx.Err() != nil {
			break
		}
		s.enter(site.Brand, CycleState{Phase: PhaseFetchingPage, Page: n})
		u, err := site.PageURL(n)
		if err != nil {
			rep.PageErrors++
			log.Warn("bad page url", zap.Int("page", n), zap.Error(err))
			break
		}
		got, err := s.page(ctx, ex, site, rep.BrandID, u)
		if err != nil {
			rep.PageErrors++
			log.Warn("pagination stopped", zap.Int("page", n), zap.String("url", u), zap.Error(err))
			break
		}
		if len(got) == 0 {
			log.Debug("pagination exhausted", zap.Int("page", n))
			break
		}
		rep.Pages++
		items = append(items, got...)
	}
	return items
}

func (s *MonitorService) page(ctx context.Context, ex extract.Extractor, site config.Site, brandID, u string) ([]domain.ScrapedItem, error) {
	html, err := s.Fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	items, err := ex.Extract(html, u)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", u, err)
	}
	metrics.ItemsExtracted.WithLabelValues(brandID, site.Strategy).Add(float64(len(items)))
	return items, nil
}

func (s *MonitorService) enter(brand string, st CycleState) {
	if s.OnState != nil {
		s.OnState(brand, st)
	}
}

// dedupeByName keeps the first item of every name; the same product may be
// listed on several pages.
func dedupeByName(items []domain.ScrapedItem) []domain.ScrapedItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it.Name] {
			continue
		}
		seen[it.Name] = true
		out = append(out, it)
	}
	return out
}
