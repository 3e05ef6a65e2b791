package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"matchastock/internal/extract"
)

// Site is one monitored catalog: a brand, where to scrape it, and which
// extraction strategy understands its markup.
type Site struct {
	Brand       string   `yaml:"brand"`
	Website     string   `yaml:"website"`
	Strategy    string   `yaml:"strategy"`
	CatalogURL  string   `yaml:"catalog_url"`
	PageParam   string   `yaml:"page_param"`
	MaxPages    int      `yaml:"max_pages"`
	Pages       []string `yaml:"pages"`
	ProductPath string   `yaml:"product_path"`
	MonitorName string   `yaml:"monitor_name"`
}

type sitesFile struct {
	Sites []Site `yaml:"sites"`
}

func LoadSites(path string, defaultMaxPages int) ([]Site, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	return ParseSites(b, defaultMaxPages)
}

func ParseSites(data []byte, defaultMaxPages int) ([]Site, error) {
	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}
	if defaultMaxPages <= 0 {
		defaultMaxPages = 10
	}
	var errs []error
	seen := map[string]bool{}
	for i := range f.Sites {
		s := &f.Sites[i]
		s.Brand = strings.TrimSpace(s.Brand)
		s.Strategy = strings.TrimSpace(s.Strategy)
		if s.PageParam == "" {
			s.PageParam = "page"
		}
		// Only listings paginate; a single product or monitored page is read once.
		if s.Strategy != extract.StrategyCollection && len(s.Pages) == 0 && s.CatalogURL != "" {
			s.Pages = []string{s.CatalogURL}
		}
		if s.MaxPages <= 0 || s.MaxPages > defaultMaxPages {
			s.MaxPages = defaultMaxPages
		}
		switch {
		case s.Brand == "":
			errs = append(errs, fmt.Errorf("site %d: brand is required", i))
		case s.CatalogURL == "" && len(s.Pages) == 0:
			errs = append(errs, fmt.Errorf("site %q: catalog_url or pages is required", s.Brand))
		case seen[strings.ToLower(s.Brand)]:
			errs = append(errs, fmt.Errorf("site %q: declared twice", s.Brand))
		}
		seen[strings.ToLower(s.Brand)] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Sites, nil
}

// Paginated reports whether the site is crawled page by page from CatalogURL
// rather than from an explicit list of pages.
func (s Site) Paginated() bool {
	return len(s.Pages) == 0
}

// PageURL returns the catalog URL for page n (1-based). Page 1 is the bare
// catalog URL.
func (s Site) PageURL(n int) (string, error) {
	if n <= 1 {
		return s.CatalogURL, nil
	}
	u, err := url.Parse(s.CatalogURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(s.PageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
