package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"matchastock/internal/domain"
	"matchastock/internal/metrics"
	"matchastock/internal/repos"
)

// ReconcileService folds scraped items into the catalog and the stock ledger.
// The ledger records transitions only: an observation is appended when a
// product is first seen or when its stock state differs from the latest entry.
type ReconcileService struct {
	Products *repos.ProductRepo
	Ledger   *repos.StockRepo
	Log      *zap.Logger
}

func NewReconcileService(products *repos.ProductRepo, ledger *repos.StockRepo, log *zap.Logger) *ReconcileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileService{Products: products, Ledger: ledger, Log: log}
}

// Reconcile applies items to brandID. A failing item is logged and skipped;
// the returned error joins those failures and the result still covers every
// item that went through.
func (s *ReconcileService) Reconcile(ctx context.Context, brandID string, items []domain.ScrapedItem) (domain.ReconcileResult, error) {
	res := domain.ReconcileResult{Restocked: []domain.RestockedProduct{}}
	var errs []error
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var err error
		if it.Kind == domain.KindCollectionMonitor {
			err = s.monitor(ctx, brandID, it, &res)
		} else {
			err = s.product(ctx, brandID, it, &res)
		}
		if err != nil {
			res.Skipped++
			s.Log.Warn("reconcile item failed",
				zap.String("brand", brandID),
				zap.String("product", it.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", it.Name, err))
		}
	}
	return res, errors.Join(errs...)
}

func (s *ReconcileService) product(ctx context.Context, brandID string, it domain.ScrapedItem, res *domain.ReconcileResult) error {
	p, created, err := s.Products.Upsert(ctx, brandID, it)
	if err != nil {
		return err
	}
	count(res, created)
	return s.observe(ctx, brandID, p, it.InStock, false, res)
}

// monitor handles collection monitors: the stored digest is the state. The
// first digest is a baseline; a different digest is a change event.
func (s *ReconcileService) monitor(ctx context.Context, brandID string, it domain.ScrapedItem, res *domain.ReconcileResult) error {
	p, err := s.Products.FindMonitor(ctx, brandID, it.URL)
	created := false
	switch {
	case err == nil:
		err = s.Products.UpdateScraped(ctx, &p, it)
	case errors.Is(err, domain.ErrNotFound):
		p, created, err = s.Products.Upsert(ctx, brandID, it)
	}
	if err != nil {
		return err
	}
	count(res, created)

	changed := p.ContentHash != "" && p.ContentHash != it.ContentHash
	if p.ContentHash != it.ContentHash {
		if err := s.Products.SetContentHash(ctx, p.ID, it.ContentHash); err != nil {
			return err
		}
	}
	return s.observe(ctx, brandID, p, changed, changed, res)
}

// observe appends inStock to the ledger when it differs from the current
// state, or unconditionally when force is set. A move to in-stock from
// out-of-stock or unknown is a restock.
func (s *ReconcileService) observe(ctx context.Context, brandID string, p domain.Product, inStock, force bool, res *domain.ReconcileResult) error {
	prev, known, err := s.Ledger.Latest(ctx, p.ID)
	if err != nil {
		return err
	}
	if known && prev.InStock == inStock && !force {
		return nil
	}
	if _, err := s.Ledger.Append(ctx, p.ID, inStock); err != nil {
		return err
	}
	res.Appended++
	metrics.RecordAppend(brandID, inStock)

	if inStock && (force || !known || !prev.InStock) {
		res.Restocked = append(res.Restocked, domain.RestockedProduct{
			ProductID: p.ID,
			Name:      p.Name,
			Weight:    p.Weight,
			Price:     p.Price,
			URL:       p.URL,
		})
		metrics.RestockEvents.WithLabelValues(brandID).Inc()
		s.Log.Info("restock detected", zap.String("brand", brandID), zap.String("product", p.Name))
	}
	return nil
}

func count(res *domain.ReconcileResult, created bool) {
	if created {
		res.Created++
	} else {
		res.Updated++
	}
}
