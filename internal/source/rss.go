package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/fetcher"
	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/normalize"
)

// rssItem holds the fields read from an RSS <item>. Namespaced elements such
// as g2:city and dc:date are matched by local name.
type rssItem struct {
	Title       string `xml:"title"`
	GUID        string `xml:"guid"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Content     string `xml:"content"`
	City        string `xml:"city"`
	Location    string `xml:"location"`
	Region      string `xml:"region"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"date"`
}

// RSSAdapter reads listings from one or more RSS feeds.
type RSSAdapter struct {
	def     Definition
	fetcher fetcher.Fetcher
	opts    options
}

// NewRSSAdapter creates an adapter for an RSS definition.
func NewRSSAdapter(d Definition, f fetcher.Fetcher, opts ...Option) *RSSAdapter {
	return &RSSAdapter{def: d, fetcher: f, opts: buildOptions(opts)}
}

// Name implements Adapter.
func (a *RSSAdapter) Name() string { return a.def.Name }

// Kind implements Adapter.
func (a *RSSAdapter) Kind() Kind { return KindRSS }

// Fetch implements Adapter.
func (a *RSSAdapter) Fetch(ctx context.Context) ([]model.RawCandidate, error) {
	return fetchFeeds(ctx, a.def, a.opts.match, a.fetchFeed)
}

func (a *RSSAdapter) fetchFeed(ctx context.Context, feed Feed) ([]model.RawCandidate, error) {
	body, err := a.fetcher.Download(ctx, feed.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	itemCh, errCh := fetcher.StreamXML[rssItem](ctx, body, "item")

	var out []model.RawCandidate
	for item := range itemCh {
		out = append(out, a.candidate(feed, item))
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "source: parse feed %s", feed.URL)
		}
	}
	return out, nil
}

func (a *RSSAdapter) candidate(feed Feed, item rssItem) model.RawCandidate {
	title := normalize.CleanText(item.Title)

	link := strings.TrimSpace(item.GUID)
	if link == "" {
		link = strings.TrimSpace(item.Link)
	}

	desc := item.Description
	if strings.TrimSpace(desc) == "" {
		desc = item.Content
	}

	itemLocation := firstNonBlank(item.City, item.Location, item.Region)

	return model.RawCandidate{
		Title:       title,
		URL:         link,
		PriceText:   normalize.CleanText(desc),
		ImageMarkup: desc,
		Location:    feedLocation(a.def, feed, itemLocation),
		ListedAt:    firstNonBlank(item.PubDate, item.Date),
		IsAuction:   a.def.Auction,
		MatchText:   title,
	}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
