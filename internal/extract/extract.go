// Package extract turns catalog HTML into normalized scraped items. Each
// supported site layout is a strategy selected by name from the site file.
package extract

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"matchastock/internal/domain"
)

type Extractor interface {
	// Extract parses one page. Malformed candidates are logged and skipped;
	// an error means the page as a whole could not be read.
	Extract(html, baseURL string) ([]domain.ScrapedItem, error)
}

const (
	StrategyCollection        = "collection"
	StrategyProductPage       = "product_page"
	StrategyCollectionMonitor = "collection_monitor"
)

var (
	DefaultOutOfStockPhrases = []string{
		"sold out",
		"out of stock",
		"unavailable",
		"not available",
		"temporarily unavailable",
		"在庫切れ",
		"売り切れ",
	}
	DefaultOutOfStockClasses = []string{"sold-out", "out-of-stock", "unavailable", "disabled"}
)

type Options struct {
	// ProductPath is the href fragment that marks product links.
	ProductPath string
	// MinNameLen is the shortest accepted product name, in runes.
	MinNameLen        int
	OutOfStockPhrases []string
	OutOfStockClasses []string
	// MonitorName names the pseudo-product of a collection monitor.
	MonitorName string
	Logger      *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ProductPath == "" {
		o.ProductPath = "/products/"
	}
	if o.MinNameLen <= 0 {
		o.MinNameLen = 3
	}
	if len(o.OutOfStockPhrases) == 0 {
		o.OutOfStockPhrases = DefaultOutOfStockPhrases
	}
	if len(o.OutOfStockClasses) == 0 {
		o.OutOfStockClasses = DefaultOutOfStockClasses
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ItemError describes one candidate that could not be turned into an item.
type ItemError struct {
	Href string
	Err  error
}

func (e *ItemError) Error() string { return fmt.Sprintf("extract item %q: %v", e.Href, e.Err) }

func (e *ItemError) Unwrap() error { return e.Err }

type Factory func(Options) Extractor

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(StrategyCollection, func(o Options) Extractor { return NewCollection(o) })
	r.Register(StrategyProductPage, func(o Options) Extractor { return NewProductPage(o) })
	r.Register(StrategyCollectionMonitor, func(o Options) Extractor { return NewCollectionMonitor(o) })
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// New builds the extractor for strategy. An empty or unknown strategy is a
// configuration error.
func (r *Registry) New(strategy string, opts Options) (Extractor, error) {
	r.mu.RLock()
	f, ok := r.factories[strategy]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown extraction strategy %q", domain.ErrConfiguration, strategy)
	}
	return f(opts.withDefaults()), nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
