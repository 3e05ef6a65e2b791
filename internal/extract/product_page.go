package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"matchastock/internal/domain"
)

var (
	soldOutClassRe  = regexp.MustCompile(`(?i)sold.*out`)
	addToCartTextRe = regexp.MustCompile(`(?i)add to (bag|cart)`)
	addToCartClass  = regexp.MustCompile(`(?i)add.*(cart|bag)`)
	quantityRe      = regexp.MustCompile(`(?i)quantity`)

	soldOutPhrases = []string{"sold out", "out of stock", "在庫切れ", "売り切れ"}
	pendingPhrases = []string{"expected in stock", "back in stock", "notify me"}
)

// ProductPage reads a single product detail page. Stock is reported only on
// positive evidence: an add-to-cart control or a quantity selector with no
// sold-out marker. Anything else counts as out of stock.
type ProductPage struct {
	opts Options
}

func NewProductPage(opts Options) *ProductPage { return &ProductPage{opts: opts.withDefaults()} }

func (p *ProductPage) Extract(raw, baseURL string) ([]domain.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	name := text(doc.Find("h1").First())
	if utf8.RuneCountInString(name) < p.opts.MinNameLen {
		name = strings.TrimSpace(meta(doc, "og:title"))
	}
	if utf8.RuneCountInString(name) < p.opts.MinNameLen {
		p.opts.Logger.Warn("skip product page",
			zap.Error(&ItemError{Href: baseURL, Err: errShortName}))
		return []domain.ScrapedItem{}, nil
	}

	item := domain.ScrapedItem{
		Name:   name,
		URL:    baseURL,
		Kind:   domain.KindSingleSKU,
		Weight: ParseWeight(name),
	}
	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && canonical != "" {
		if abs, err := resolve(base, canonical); err == nil {
			item.URL = abs
		}
	}

	if amount := meta(doc, "product:price:amount", "og:price:amount"); amount != "" {
		item.Price = ParsePrice(amount)
	} else if el := firstMatch(doc.Selection, ".price-item", ".price", "[class*=price]"); el != nil {
		item.Price = ParsePrice(text(el))
	}

	if img := meta(doc, "og:image"); img != "" {
		item.ImageURL = NormalizeImageURL(img, base)
	} else if img := firstMatch(doc.Selection, "main img", "img"); img != nil {
		src, _ := img.Attr("src")
		item.ImageURL = NormalizeImageURL(src, base)
	}

	var reason string
	item.InStock, reason = p.inStock(doc)
	p.opts.Logger.Debug("product page stock",
		zap.String("url", baseURL),
		zap.Bool("in_stock", item.InStock),
		zap.String("reason", reason),
	)
	return []domain.ScrapedItem{item}, nil
}

func (p *ProductPage) inStock(doc *goquery.Document) (bool, string) {
	scope := firstMatch(doc.Selection, "[itemtype*='schema.org/Product']", ".product-single", ".product", "main")
	if scope == nil {
		scope = doc.Find("body")
	}
	body := strings.ToLower(text(scope))

	if containsAny(body, soldOutPhrases) || anyClass(scope, soldOutClassRe) {
		return false, "sold_out"
	}

	addable := false
	scope.Find("button, input[type=submit]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		label := text(el)
		if v, ok := el.Attr("value"); ok {
			label += " " + v
		}
		_, disabled := el.Attr("disabled")
		addable = !disabled && addToCartTextRe.MatchString(label)
		return !addable
	})
	if addable || anyClass(scope, addToCartClass) {
		return true, "add_to_cart"
	}
	if quantitySelector(scope) {
		return true, "quantity"
	}
	if containsAny(body, pendingPhrases) {
		return false, "pending"
	}
	return false, "unknown"
}

func quantitySelector(scope *goquery.Selection) bool {
	found := false
	scope.Find("select[name], input[name]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		name, _ := el.Attr("name")
		found = quantityRe.MatchString(name)
		return !found
	})
	return found || anyClass(scope, quantityRe)
}

func anyClass(sel *goquery.Selection, re *regexp.Regexp) bool {
	found := false
	sel.Find("[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		found = re.MatchString(class)
		return !found
	})
	return found
}

// meta returns the content of the first <meta property|name=...> among keys.
func meta(doc *goquery.Document, keys ...string) string {
	for _, k := range keys {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, k, k)).First()
		if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
