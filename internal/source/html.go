package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/fetcher"
	"github.com/camarohq/hunter/internal/model"
)

// HTMLAdapter scrapes listing cards from HTML search result pages.
type HTMLAdapter struct {
	def     Definition
	rules   HTMLRules
	fetcher fetcher.Fetcher
	opts    options
}

// NewHTMLAdapter creates an adapter for an HTML definition.
func NewHTMLAdapter(d Definition, f fetcher.Fetcher, opts ...Option) *HTMLAdapter {
	a := &HTMLAdapter{def: d, fetcher: f, opts: buildOptions(opts)}
	if d.HTML != nil {
		a.rules = *d.HTML
	}
	return a
}

// Name implements Adapter.
func (a *HTMLAdapter) Name() string { return a.def.Name }

// Kind implements Adapter.
func (a *HTMLAdapter) Kind() Kind { return KindHTML }

// Fetch implements Adapter.
func (a *HTMLAdapter) Fetch(ctx context.Context) ([]model.RawCandidate, error) {
	return fetchFeeds(ctx, a.def, a.opts.match, a.fetchPage)
}

func (a *HTMLAdapter) fetchPage(ctx context.Context, feed Feed) ([]model.RawCandidate, error) {
	body, err := a.fetcher.Download(ctx, feed.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse page %s", feed.URL)
	}

	base, err := a.baseURL(feed)
	if err != nil {
		return nil, err
	}

	cards := a.cards(doc)
	if cards == nil {
		return nil, nil
	}

	var out []model.RawCandidate
	cards.Each(func(_ int, card *goquery.Selection) {
		if c, ok := a.candidate(feed, base, card); ok {
			out = append(out, c)
		}
	})
	return out, nil
}

func (a *HTMLAdapter) baseURL(feed Feed) (*url.URL, error) {
	raw := a.def.BaseURL
	if raw == "" {
		raw = feed.URL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse base url %q", raw)
	}
	return u, nil
}

// cards returns the matches of the first card selector that matches anything,
// or nil.
func (a *HTMLAdapter) cards(doc *goquery.Document) *goquery.Selection {
	for _, sel := range a.rules.CardSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func (a *HTMLAdapter) candidate(feed Feed, base *url.URL, card *goquery.Selection) (model.RawCandidate, bool) {
	link := card
	if goquery.NodeName(card) != "a" {
		link = card.Find(a.linkSelector()).First()
	}
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if !a.acceptHref(href) {
		return model.RawCandidate{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return model.RawCandidate{}, false
	}
	fullURL := base.ResolveReference(ref).String()

	title := a.rules.DefaultTitle
	if a.rules.TitleSelector != "" {
		if t := strings.TrimSpace(card.Find(a.rules.TitleSelector).First().Text()); t != "" {
			title = t
		}
	}

	priceText, priceLabel := a.price(card)

	img := card.Find("img").First()
	image := strings.TrimSpace(img.AttrOr("src", ""))
	if image == "" {
		image = strings.TrimSpace(img.AttrOr("data-src", ""))
	}

	cardText := strings.Join(strings.Fields(card.Text()), " ")

	return model.RawCandidate{
		Title:      title,
		URL:        fullURL,
		PriceText:  priceText,
		PriceLabel: priceLabel,
		ImageURL:   image,
		Location:   feedLocation(a.def, feed, ""),
		IsAuction:  a.def.Auction,
		MatchText:  cardText + " " + fullURL,
	}, true
}

func (a *HTMLAdapter) linkSelector() string {
	if a.rules.LinkSelector != "" {
		return a.rules.LinkSelector
	}
	return "a[href]"
}

func (a *HTMLAdapter) acceptHref(href string) bool {
	if href == "" || len(href) < a.rules.MinHrefLen {
		return false
	}
	for _, s := range a.rules.SkipHrefContains {
		if strings.Contains(href, s) {
			return false
		}
	}
	return true
}

// price returns the text scanned for an amount and the label shown when the
// text holds none.
func (a *HTMLAdapter) price(card *goquery.Selection) (string, string) {
	if a.rules.FixedPrice != "" {
		return "", a.rules.FixedPrice
	}
	if a.rules.PriceSelector == "" {
		return "", a.rules.DefaultPrice
	}
	el := card.Find(a.rules.PriceSelector).First()
	if el.Length() == 0 {
		return "", a.rules.DefaultPrice
	}
	text := strings.TrimSpace(el.Text())
	if text == "" {
		if a.rules.EmptyPrice != "" {
			return "", a.rules.EmptyPrice
		}
		return "", a.rules.DefaultPrice
	}
	return text, text
}
