package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"matchastock/internal/domain"
)

// cardSelectors locate the element wrapping one product on a listing page.
// Without a match the anchor's parent is used.
var cardSelectors = ".card-wrapper, .product-card, .product-item, .grid-product, .grid__item"

var (
	nameSelectors  = []string{"h3", "h2", "h4", ".product-title"}
	priceSelectors = []string{"span.price-item", "span.price", "div.price"}
)

// Collection reads Shopify-style listing pages where every product is an
// anchor to a /products/ URL.
type Collection struct {
	opts Options
}

func NewCollection(opts Options) *Collection { return &Collection{opts: opts.withDefaults()} }

func (c *Collection) Extract(raw, baseURL string) ([]domain.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	seen := map[string]bool{}
	items := []domain.ScrapedItem{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, c.opts.ProductPath) {
			return
		}
		abs, err := resolve(base, href)
		if err != nil {
			c.opts.Logger.Warn("skip product link", zap.Error(&ItemError{Href: href, Err: err}))
			return
		}
		if seen[abs] {
			return
		}
		item, err := c.item(a, abs, base)
		if err != nil {
			c.opts.Logger.Debug("skip product link", zap.Error(&ItemError{Href: href, Err: err}))
			return
		}
		seen[abs] = true
		items = append(items, item)
	})
	return items, nil
}

var errShortName = errors.New("name missing or too short")

// anchorName reads the product name from a link. Themes that wrap the whole
// card in one anchor also nest the price and stock badges in it, so a title
// element wins and otherwise only the anchor's own text nodes count.
func anchorName(a *goquery.Selection) string {
	if h := firstMatch(a, nameSelectors...); h != nil {
		return text(h)
	}
	var b strings.Builder
	for _, n := range a.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
				b.WriteByte(' ')
			}
		}
	}
	return strings.TrimSpace(whitespaceR.ReplaceAllString(b.String(), " "))
}

func (c *Collection) item(a *goquery.Selection, abs string, base *url.URL) (domain.ScrapedItem, error) {
	card := a.Closest(cardSelectors)
	if card.Length() == 0 {
		card = a.Parent()
	}

	name := anchorName(a)
	if utf8.RuneCountInString(name) < c.opts.MinNameLen {
		if h := firstMatch(card, nameSelectors...); h != nil {
			name = text(h)
		}
	}
	if utf8.RuneCountInString(name) < c.opts.MinNameLen {
		return domain.ScrapedItem{}, errShortName
	}

	item := domain.ScrapedItem{
		Name:    name,
		URL:     abs,
		Kind:    domain.KindSingleSKU,
		Weight:  ParseWeight(name),
		InStock: true,
	}

	cardText := text(card)
	if el := firstMatch(card, priceSelectors...); el != nil {
		item.Price = ParsePrice(text(el))
	} else if loc := dollarRe.FindStringIndex(cardText); loc != nil {
		item.Price = ParsePrice(cardText[loc[0]:])
	}

	if img := card.Find("img").First(); img.Length() > 0 {
		src, ok := img.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, _ = img.Attr("data-src")
		}
		item.ImageURL = NormalizeImageURL(src, base)
	}

	if containsAny(strings.ToLower(cardText), c.opts.OutOfStockPhrases) || hasMarkerClass(card, c.opts.OutOfStockClasses) {
		item.InStock = false
	}
	return item, nil
}
