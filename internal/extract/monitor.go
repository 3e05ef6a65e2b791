package extract

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/crypto/blake2b"

	"matchastock/internal/domain"
)

// CollectionMonitor watches a whole listing page. It emits one pseudo-product
// whose ContentHash is a digest of the product area text; the reconciler
// compares digests instead of per-item stock.
type CollectionMonitor struct {
	opts Options
}

func NewCollectionMonitor(opts Options) *CollectionMonitor {
	return &CollectionMonitor{opts: opts.withDefaults()}
}

func (m *CollectionMonitor) Extract(raw, baseURL string) ([]domain.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	area := firstMatch(doc.Selection, "div.products", "main")
	if area == nil {
		area = doc.Find("body")
	}
	content := text(area)
	if content == "" {
		return []domain.ScrapedItem{}, nil
	}

	name := strings.TrimSpace(m.opts.MonitorName)
	if name == "" {
		name = text(doc.Find("title").First())
	}
	if name == "" {
		return nil, fmt.Errorf("%w: collection monitor for %s has no name", domain.ErrConfiguration, baseURL)
	}

	return []domain.ScrapedItem{{
		Name:        name,
		URL:         baseURL,
		Kind:        domain.KindCollectionMonitor,
		ContentHash: Digest(content),
	}}, nil
}

// Digest is the hex blake2b-256 of s.
func Digest(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
