package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchastock/internal/clock"
	"matchastock/internal/domain"
	"matchastock/internal/metrics"
	"matchastock/internal/notify"
	"matchastock/internal/repos"
	"matchastock/internal/unsubscribe"
)

// DispatchService turns restock events into outbound messages.
type DispatchService struct {
	Brands *repos.BrandRepo
	Subs   *repos.SubscriptionRepo
	Sender notify.Sender
	Signer *unsubscribe.Signer
	Clock  clock.Clock
	Log    *zap.Logger
}

func NewDispatchService(brands *repos.BrandRepo, subs *repos.SubscriptionRepo, sender notify.Sender, signer *unsubscribe.Signer, clk clock.Clock, log *zap.Logger) *DispatchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DispatchService{Brands: brands, Subs: subs, Sender: sender, Signer: signer, Clock: clk, Log: log}
}

type recipient struct {
	sub       domain.Subscriber
	brandWide bool
	products  map[string]bool
}

// OnRestock notifies everyone following brandID or one of the restocked
// products. Each recipient gets one message listing the products relevant to
// them. Delivery failures are logged and do not stop other recipients; the
// count is of accepted messages.
func (s *DispatchService) OnRestock(ctx context.Context, brandID string, restocked []domain.RestockedProduct) (int, error) {
	if len(restocked) == 0 {
		return 0, nil
	}
	brand, err := s.Brands.Get(ctx, brandID)
	if err != nil {
		return 0, fmt.Errorf("load brand %s: %w", brandID, err)
	}

	brandSubs, err := s.Subs.ActiveBrandSubscribers(ctx, brandID)
	if err != nil {
		return 0, fmt.Errorf("brand subscribers: %w", err)
	}
	ids := make([]string, 0, len(restocked))
	for _, p := range restocked {
		ids = append(ids, p.ProductID)
	}
	productSubs, err := s.Subs.ActiveProductSubscribers(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("product subscribers: %w", err)
	}

	var order []string
	byUser := map[string]*recipient{}
	add := func(sub domain.Subscriber) *recipient {
		r, ok := byUser[sub.UserID]
		if !ok {
			r = &recipient{sub: sub, products: map[string]bool{}}
			byUser[sub.UserID] = r
			order = append(order, sub.UserID)
		}
		return r
	}
	for _, sub := range brandSubs {
		add(sub).brandWide = true
	}
	for _, sub := range productSubs {
		add(sub).products[sub.ProductID] = true
	}

	sent := 0
	for _, userID := range order {
		r := byUser[userID]
		ch, to, ok := notify.Pick(r.sub.Email, r.sub.Phone)
		if !ok {
			s.Log.Warn("subscriber has no contact channel", zap.String("user", userID))
			continue
		}

		products := restocked
		scope, scopeID := unsubscribe.ScopeBrand, brandID
		if !r.brandWide {
			products = nil
			for _, p := range restocked {
				if r.products[p.ProductID] {
					products = append(products, p)
				}
			}
			scope, scopeID = unsubscribe.ScopeProduct, products[0].ProductID
			if len(products) > 1 {
				scope, scopeID = unsubscribe.ScopeAll, ""
			}
		}

		data := map[string]any{
			"brandId":   brand.ID,
			"brandName": brand.Name,
			"products":  products,
		}
		if ch == notify.ChannelEmail && s.Signer != nil {
			data["unsubscribeUrl"] = s.Signer.URL(to, scope, scopeID)
		}

		err := s.Sender.Send(ctx, notify.Message{
			ID:        uuid.NewString(),
			Channel:   ch,
			Recipient: to,
			Template:  notify.TemplateBrandRestock,
			Data:      data,
			CreatedAt: s.Clock.Now(),
		})
		metrics.RecordNotification(notify.TemplateBrandRestock, err)
		if err != nil {
			s.Log.Warn("restock notification failed",
				zap.String("brand", brandID),
				zap.String("user", userID),
				zap.String("channel", string(ch)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	s.Log.Info("restock dispatched",
		zap.String("brand", brandID),
		zap.Int("products", len(restocked)),
		zap.Int("recipients", len(order)),
		zap.Int("sent", sent),
	)
	return sent, nil
}

// Confirm sends the one-time message acknowledging a new subscription.
func (s *DispatchService) Confirm(ctx context.Context, u domain.User, scope unsubscribe.Scope, targetID, targetName string) error {
	ch, to, ok := notify.Pick(u.Email, u.Phone)
	if !ok {
		return fmt.Errorf("user %s has no contact channel", u.ID)
	}
	data := map[string]any{
		"type":   string(scope),
		"id":     targetID,
		"name":   targetName,
		"userId": u.ID,
	}
	if ch == notify.ChannelEmail && s.Signer != nil {
		data["unsubscribeUrl"] = s.Signer.URL(to, scope, targetID)
	}
	err := s.Sender.Send(ctx, notify.Message{
		ID:        uuid.NewString(),
		Channel:   ch,
		Recipient: to,
		Template:  notify.TemplateSubscriptionConfirmation,
		Data:      data,
		CreatedAt: s.Clock.Now(),
	})
	metrics.RecordNotification(notify.TemplateSubscriptionConfirmation, err)
	return err
}
