package handlers

import (
	"matchastock/internal/services"
)

type Deps struct {
	CatalogHandler      *CatalogHandler
	SubscriptionHandler *SubscriptionHandler
	UnsubscribeHandler  *UnsubscribeHandler
}

func NewDeps(catalog *services.CatalogService, subs *services.SubscriptionService) *Deps {
	return &Deps{
		CatalogHandler:      &CatalogHandler{Catalog: catalog},
		SubscriptionHandler: &SubscriptionHandler{Subs: subs},
		UnsubscribeHandler:  &UnsubscribeHandler{Subs: subs},
	}
}
