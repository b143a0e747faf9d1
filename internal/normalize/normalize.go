// Package normalize maps raw candidates from any source into the canonical
// listing shape. Nothing here fails: malformed fields degrade to defaults.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/camarohq/hunter/internal/identity"
	"github.com/camarohq/hunter/internal/model"
)

// Defaults carries the per-adapter values used when a candidate lacks them.
type Defaults struct {
	Source    string
	Location  string
	IsAuction bool
	FetchedAt time.Time
}

// Fallback location when neither the candidate nor the adapter supplies one.
const DefaultLocation = "United States"

var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`US \$(\d[\d,]*)`),
	regexp.MustCompile(`\$(\d[\d,]*)`),
	regexp.MustCompile(`C\$(\d[\d,]*)`),
}

// ExtractPrice finds the first currency-prefixed amount in text and returns
// its display form and integer value. No match yields ("", 0).
func ExtractPrice(text string) (string, int) {
	for _, re := range pricePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		digits := strings.ReplaceAll(m[1], ",", "")
		amount, err := strconv.Atoi(digits)
		if err != nil {
			amount = 0
		}
		return "$" + m[1], amount
	}
	return "", 0
}

// ExtractImage returns the first image reference inside markup, preferring
// src over data-src. Empty when there is none.
func ExtractImage(markup string) string {
	if !strings.Contains(strings.ToLower(markup), "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	img := doc.Find("img").First()
	if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
		return src
	}
	return strings.TrimSpace(img.AttrOr("data-src", ""))
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanText strips markup tags and collapses whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(s, "")), " ")
}

var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp renders a source timestamp as RFC 3339 UTC. Empty input yields
// fallback; text in an unknown layout is kept verbatim.
func Timestamp(raw string, fallback time.Time) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fallback.UTC().Format(time.RFC3339)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}

// Normalize converts raw into a Listing. The second return value is false
// when the candidate has no URL and cannot become a valid record.
func Normalize(raw model.RawCandidate, d Defaults) (model.Listing, bool) {
	url := strings.TrimSpace(raw.URL)
	if url == "" {
		return model.Listing{}, false
	}

	title := CleanText(raw.Title)

	display, amount := ExtractPrice(raw.PriceText)
	if display == "" {
		display = strings.TrimSpace(raw.PriceLabel)
	}

	image := strings.TrimSpace(raw.ImageURL)
	if image == "" {
		image = ExtractImage(raw.ImageMarkup)
	}

	location := CleanText(raw.Location)
	if location == "" {
		location = d.Location
	}
	if location == "" {
		location = DefaultLocation
	}

	return model.Listing{
		Identity:      identity.URL(url),
		TitleIdentity: identity.Title(title, d.Source),
		Source:        d.Source,
		Title:         title,
		PriceDisplay:  display,
		PriceAmount:   amount,
		URL:           url,
		ImageURL:      image,
		Location:      location,
		IsAuction:     d.IsAuction || raw.IsAuction,
		ListedAt:      Timestamp(raw.ListedAt, d.FetchedAt),
		FetchedAt:     d.FetchedAt.UTC().Format(time.RFC3339),
		IsNew:         true,
	}, true
}
