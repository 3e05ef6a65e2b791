package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	priceRe     = regexp.MustCompile(`\$?\s?(\d[\d,]*(?:\.\d+)?)`)
	dollarRe    = regexp.MustCompile(`\$\s?\d`)
	weightRe    = regexp.MustCompile(`(?i)(\d+)g`)
	whitespaceR = regexp.MustCompile(`\s+`)
)

// ParsePrice reads the first currency-looking number in s. Grouping commas
// are dropped; nil means no price.
func ParsePrice(s string) *float64 {
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseWeight finds a gram weight such as "40g" in a product name.
func ParseWeight(name string) *string {
	m := weightRe.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	w := m[1] + "g"
	return &w
}

// NormalizeImageURL makes src absolute. Protocol-relative sources get https.
func NormalizeImageURL(src string, base *url.URL) *string {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	} else if base != nil {
		if ref, err := url.Parse(src); err == nil {
			src = base.ResolveReference(ref).String()
		}
	}
	return &src
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	ref.Fragment = ""
	return ref.String(), nil
}

// text joins the text nodes under sel with single spaces so that words from
// adjacent elements stay apart. Script and style bodies are skipped.
func text(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		walkText(n, &b)
	}
	return strings.TrimSpace(whitespaceR.ReplaceAllString(b.String(), " "))
}

func walkText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b)
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// hasMarkerClass reports whether any descendant of sel carries a class
// containing one of markers.
func hasMarkerClass(sel *goquery.Selection, markers []string) bool {
	found := false
	sel.Find("[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		found = containsAny(strings.ToLower(class), markers)
		return !found
	})
	return found
}

func firstMatch(sel *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, s := range selectors {
		if m := sel.Find(s).First(); m.Length() > 0 {
			return m
		}
	}
	return nil
}
