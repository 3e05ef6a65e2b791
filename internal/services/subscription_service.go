package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"matchastock/internal/domain"
	"matchastock/internal/repos"
	"matchastock/internal/unsubscribe"
)

// Confirmer sends subscription confirmations.
type Confirmer interface {
	Confirm(ctx context.Context, u domain.User, scope unsubscribe.Scope, targetID, targetName string) error
}

type SubscriptionService struct {
	Users     *repos.UserRepo
	Brands    *repos.BrandRepo
	Products  *repos.ProductRepo
	Subs      *repos.SubscriptionRepo
	Confirmer Confirmer
	Signer    *unsubscribe.Signer
	Log       *zap.Logger
}

func NewSubscriptionService(users *repos.UserRepo, brands *repos.BrandRepo, products *repos.ProductRepo, subs *repos.SubscriptionRepo, confirmer Confirmer, signer *unsubscribe.Signer, log *zap.Logger) *SubscriptionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SubscriptionService{Users: users, Brands: brands, Products: products, Subs: subs, Confirmer: confirmer, Signer: signer, Log: log}
}

func (s *SubscriptionService) RegisterUser(ctx context.Context, email, phone *string) (domain.User, error) {
	u, _, err := s.Users.Upsert(ctx, email, phone)
	return u, err
}

// SubscribeBrand registers the contact and activates its brand subscription.
// A confirmation goes out when the subscription is new or reactivated; its
// failure is logged and never fails the subscription.
func (s *SubscriptionService) SubscribeBrand(ctx context.Context, email, phone *string, brandID string) (domain.BrandSubscription, error) {
	brand, err := s.Brands.Get(ctx, brandID)
	if err != nil {
		return domain.BrandSubscription{}, err
	}
	u, _, err := s.Users.Upsert(ctx, email, phone)
	if err != nil {
		return domain.BrandSubscription{}, err
	}
	sub, changed, err := s.Subs.UpsertBrand(ctx, u.ID, brand.ID)
	if err != nil {
		return sub, err
	}
	if changed {
		s.confirm(ctx, u, unsubscribe.ScopeBrand, brand.ID, brand.Name)
	}
	return sub, nil
}

func (s *SubscriptionService) SubscribeProduct(ctx context.Context, email, phone *string, productID string) (domain.ProductSubscription, error) {
	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return domain.ProductSubscription{}, err
	}
	u, _, err := s.Users.Upsert(ctx, email, phone)
	if err != nil {
		return domain.ProductSubscription{}, err
	}
	sub, changed, err := s.Subs.UpsertProduct(ctx, u.ID, p.ID)
	if err != nil {
		return sub, err
	}
	if changed {
		s.confirm(ctx, u, unsubscribe.ScopeProduct, p.ID, p.Name)
	}
	return sub, nil
}

func (s *SubscriptionService) confirm(ctx context.Context, u domain.User, scope unsubscribe.Scope, id, name string) {
	if s.Confirmer == nil {
		return
	}
	if err := s.Confirmer.Confirm(ctx, u, scope, id, name); err != nil {
		s.Log.Warn("subscription confirmation failed",
			zap.String("user", u.ID),
			zap.String("type", string(scope)),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}

type UnsubscribeRequest struct {
	Email     string
	Token     string
	Scope     unsubscribe.Scope
	BrandID   string
	ProductID string
}

// Unsubscribe verifies the signed token and deactivates the matching
// subscriptions. Without a scoped id every subscription of the user goes.
// Errors: unsubscribe.ErrInvalid or ErrExpired for a bad token,
// domain.ErrNotFound for an unknown email.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, req UnsubscribeRequest) (int64, error) {
	if err := s.Signer.Verify(req.Email, req.Token); err != nil {
		return 0, err
	}
	u, err := s.Users.ByEmail(ctx, req.Email)
	if err != nil {
		return 0, err
	}

	var n int64
	switch {
	case req.Scope == unsubscribe.ScopeBrand && req.BrandID != "":
		n, err = s.Subs.DeactivateBrand(ctx, u.ID, req.BrandID)
	case req.Scope == unsubscribe.ScopeProduct && req.ProductID != "":
		n, err = s.Subs.DeactivateProduct(ctx, u.ID, req.ProductID)
	default:
		n, err = s.Subs.DeactivateAll(ctx, u.ID)
	}
	if err != nil {
		return 0, fmt.Errorf("deactivate subscriptions: %w", err)
	}
	s.Log.Info("unsubscribed",
		zap.String("user", u.ID),
		zap.String("type", string(req.Scope)),
		zap.Int64("deactivated", n),
	)
	return n, nil
}

// IsTokenError reports whether err came from token verification.
func IsTokenError(err error) bool {
	return errors.Is(err, unsubscribe.ErrInvalid) || errors.Is(err, unsubscribe.ErrExpired)
}
