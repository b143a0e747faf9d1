package source

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/camarohq/hunter/internal/fetcher"
)

//go:embed sources.yaml
var defaultCatalog []byte

// Feed is one URL fetched by an adapter.
type Feed struct {
	URL      string `yaml:"url"`
	Location string `yaml:"location"`
}

// HTMLRules describes how listing cards are found on an HTML results page.
type HTMLRules struct {
	// CardSelectors are tried in order; the first that matches anything wins.
	CardSelectors    []string `yaml:"card_selectors"`
	LinkSelector     string   `yaml:"link_selector"`
	TitleSelector    string   `yaml:"title_selector"`
	PriceSelector    string   `yaml:"price_selector"`
	SkipHrefContains []string `yaml:"skip_href_contains"`
	MinHrefLen       int      `yaml:"min_href_len"`
	DefaultTitle     string   `yaml:"default_title"`
	// DefaultPrice labels cards without a price element. EmptyPrice, when
	// set, labels cards whose price element is present but blank.
	DefaultPrice string `yaml:"default_price"`
	EmptyPrice   string `yaml:"empty_price"`
	// FixedPrice, when set, replaces whatever price the card shows.
	FixedPrice string `yaml:"fixed_price"`
}

// Definition declares one adapter.
type Definition struct {
	Name             string     `yaml:"name"`
	Kind             Kind       `yaml:"kind"`
	BaseURL          string     `yaml:"base_url"`
	Location         string     `yaml:"location"`
	OverrideLocation bool       `yaml:"override_location"`
	Auction          bool       `yaml:"auction"`
	StopAfterHit     bool       `yaml:"stop_after_hit"`
	Feeds            []Feed     `yaml:"feeds"`
	HTML             *HTMLRules `yaml:"html"`
}

// Catalog is the document listing every adapter definition.
type Catalog struct {
	Sources []Definition `yaml:"sources"`
}

// LoadCatalog reads the catalog at path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: read catalog %s", path)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "source: parse catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every definition for the fields its kind needs.
func (c *Catalog) Validate() error {
	names := make(map[string]bool, len(c.Sources))
	for i, d := range c.Sources {
		if d.Name == "" {
			return eris.Errorf("source: definition %d has no name", i)
		}
		if names[d.Name] {
			return eris.Errorf("source: duplicate definition %q", d.Name)
		}
		names[d.Name] = true
		if len(d.Feeds) == 0 {
			return eris.Errorf("source: %q has no feeds", d.Name)
		}
		switch d.Kind {
		case KindRSS:
		case KindHTML:
			if d.HTML == nil || len(d.HTML.CardSelectors) == 0 {
				return eris.Errorf("source: html source %q needs card_selectors", d.Name)
			}
		default:
			return eris.Errorf("source: %q has unknown kind %q", d.Name, d.Kind)
		}
	}
	return nil
}

// Build creates one adapter per definition and registers them in catalog
// order. When enabled is non-empty only those names are registered. opts
// apply to every adapter.
func (c *Catalog) Build(f fetcher.Fetcher, enabled []string, opts ...Option) (*Registry, error) {
	keep := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		keep[name] = true
	}

	reg := NewRegistry()
	for _, d := range c.Sources {
		if len(keep) > 0 && !keep[d.Name] {
			continue
		}
		switch d.Kind {
		case KindRSS:
			reg.Register(NewRSSAdapter(d, f, opts...))
		case KindHTML:
			reg.Register(NewHTMLAdapter(d, f, opts...))
		}
	}

	for name := range keep {
		if _, err := reg.Get(name); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
