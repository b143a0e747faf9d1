package model

import (
	"encoding/json"
	"time"
)

// Listing is the canonical record produced for every relevant candidate.
type Listing struct {
	Identity      string `json:"identity"`
	TitleIdentity string `json:"title_identity"`
	Source        string `json:"source"`
	Title         string `json:"title"`
	PriceDisplay  string `json:"price_display"`
	PriceAmount   int    `json:"price_amount"`
	URL           string `json:"url"`
	ImageURL      string `json:"image_url"`
	Location      string `json:"location"`
	IsAuction     bool   `json:"is_auction"`
	ListedAt      string `json:"listed_at"`
	FetchedAt     string `json:"fetched_at"`
	IsNew         bool   `json:"is_new"`
}

// legacyListing accepts both the current field names and the older
// id/price/price_num/image names written by earlier catalog versions.
type legacyListing struct {
	Identity      string `json:"identity"`
	ID            string `json:"id"`
	TitleIdentity string `json:"title_identity"`
	Source        string `json:"source"`
	Title         string `json:"title"`
	PriceDisplay  string `json:"price_display"`
	Price         string `json:"price"`
	PriceAmount   *int   `json:"price_amount"`
	PriceNum      *int   `json:"price_num"`
	URL           string `json:"url"`
	ImageURL      string `json:"image_url"`
	Image         string `json:"image"`
	Location      string `json:"location"`
	IsAuction     bool   `json:"is_auction"`
	ListedAt      string `json:"listed_at"`
	FetchedAt     string `json:"fetched_at"`
	IsNew         bool   `json:"is_new"`
}

// UnmarshalJSON reads a listing written under either field naming.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var raw legacyListing
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Listing{
		Identity:      firstNonEmpty(raw.Identity, raw.ID),
		TitleIdentity: raw.TitleIdentity,
		Source:        raw.Source,
		Title:         raw.Title,
		PriceDisplay:  firstNonEmpty(raw.PriceDisplay, raw.Price),
		URL:           raw.URL,
		ImageURL:      firstNonEmpty(raw.ImageURL, raw.Image),
		Location:      raw.Location,
		IsAuction:     raw.IsAuction,
		ListedAt:      raw.ListedAt,
		FetchedAt:     raw.FetchedAt,
		IsNew:         raw.IsNew,
	}
	switch {
	case raw.PriceAmount != nil:
		l.PriceAmount = *raw.PriceAmount
	case raw.PriceNum != nil:
		l.PriceAmount = *raw.PriceNum
	}
	return nil
}

// FetchedTime parses FetchedAt. Unparseable values yield the zero time so
// they sort as the oldest records.
func (l Listing) FetchedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, l.FetchedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// RawCandidate is an unnormalized record yielded by a source adapter. Only
// URL is required; every other field degrades to a documented default.
type RawCandidate struct {
	Title       string
	URL         string
	PriceText   string // description or price label scanned for a price
	PriceLabel  string // shown verbatim when PriceText holds no price
	ImageURL    string
	ImageMarkup string // raw markup searched for the first <img> when ImageURL is empty
	Location    string
	ListedAt    string
	IsAuction   bool

	// MatchText is the text surface the relevance filter runs against.
	// Empty means the title.
	MatchText string
}

// Counts summarizes one reconciliation.
type Counts struct {
	Fetched    int `json:"fetched"`
	Relevant   int `json:"relevant"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	New        int `json:"new"`
	Carried    int `json:"carried"`
	Dropped    int `json:"dropped"`
	Total      int `json:"total"`
}

// CatalogDocument is the persisted catalog envelope.
type CatalogDocument struct {
	UpdatedAt string    `json:"updated_at"`
	RunID     string    `json:"run_id,omitempty"`
	Total     int       `json:"total"`
	NewCount  int       `json:"new_count"`
	Listings  []Listing `json:"listings"`
}
