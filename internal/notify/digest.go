package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/relevance"
)

// Group is the new listings of one source.
type Group struct {
	Source   string          `json:"source"`
	Listings []model.Listing `json:"listings"`
}

// Digest is the rendered summary of one run's new listings.
type Digest struct {
	Subject      string    `json:"subject"`
	Count        int       `json:"count"`
	Groups       []Group   `json:"groups"`
	DashboardURL string    `json:"dashboard_url,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
	Text         string    `json:"-"`
	HTML         string    `json:"-"`
}

// Composer renders digests for a fixed target vehicle.
type Composer struct {
	Target       relevance.Target
	DashboardURL string
	Now          func() time.Time
}

func (c Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Compose builds the digest for listings. Groups are ordered by source name;
// listings keep their input order inside each group.
func (c Composer) Compose(listings []model.Listing) (Digest, error) {
	now := c.now()
	d := Digest{
		Count:        len(listings),
		Groups:       groupBySource(listings),
		DashboardURL: c.DashboardURL,
		GeneratedAt:  now,
		Subject:      subject(c.Target, len(listings), now),
	}
	d.Text = plainText(c.Target, listings, now)

	var buf bytes.Buffer
	err := digestTemplate.Execute(&buf, htmlData{
		Heading:      strings.ToUpper(c.Target.Model) + " HUNTER HQ",
		Date:         now.Format("January 02, 2006"),
		Summary:      fmt.Sprintf("%d new %s listing(s)", len(listings), c.Target.String()),
		SourceCount:  len(d.Groups),
		Groups:       d.Groups,
		DashboardURL: c.DashboardURL,
	})
	if err != nil {
		return Digest{}, eris.Wrap(err, "notify: render html digest")
	}
	d.HTML = buf.String()
	return d, nil
}

func subject(target relevance.Target, n int, now time.Time) string {
	noun := "Listings"
	if n == 1 {
		noun = "Listing"
	}
	return fmt.Sprintf("🚗 %d New %s %s — %s", n, target.String(), noun, now.Format("Jan 02"))
}

func plainText(target relevance.Target, listings []model.Listing, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New %s Listings — %s\n\n", target.String(), now.Format("January 02, 2006"))
	for _, l := range listings {
		fmt.Fprintf(&b, "[%s] %s — %s\n%s\n\n", l.Source, l.Title, l.PriceDisplay, l.URL)
	}
	return b.String()
}

func groupBySource(listings []model.Listing) []Group {
	idx := make(map[string]int)
	var groups []Group
	for _, l := range listings {
		i, ok := idx[l.Source]
		if !ok {
			i = len(groups)
			idx[l.Source] = i
			groups = append(groups, Group{Source: l.Source})
		}
		groups[i].Listings = append(groups[i].Listings, l)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Source < groups[b].Source })
	return groups
}

type htmlData struct {
	Heading      string
	Date         string
	Summary      string
	SourceCount  int
	Groups       []Group
	DashboardURL string
}

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"price": func(l model.Listing) string {
		if l.PriceDisplay == "" {
			return "See listing"
		}
		return l.PriceDisplay
	},
}).Parse(`<html><body style="font-family:Arial,sans-serif;max-width:680px;margin:auto;">
<div style="background:#0F0D0B;padding:24px;text-align:center;">
  <h1 style="color:#C8281E;font-size:28px;margin:0;">🚗 {{.Heading}}</h1>
  <p style="color:#888;margin:6px 0 0;">Daily Alert — {{.Date}}</p>
</div>
<div style="background:#F5F0E8;padding:24px;">
  <p><strong>{{.Summary}}</strong> found across {{.SourceCount}} source(s).</p>
{{- range .Groups}}
  <h3 style="color:#C8281E;border-bottom:2px solid #C8281E;padding-bottom:6px;">{{.Source}} ({{len .Listings}})</h3>
  {{- range .Listings}}
  <div style="background:white;border:1px solid #ddd;border-radius:6px;padding:14px;margin:10px 0;display:flex;gap:14px;align-items:center;">
    {{- if .ImageURL}}<img src="{{.ImageURL}}" style="width:120px;height:80px;object-fit:cover;border-radius:4px;flex-shrink:0;">{{end}}
    <div>
      <a href="{{.URL}}" style="font-weight:bold;color:#1a5276;">{{.Title}}</a><br>
      <span style="color:#27ae60;font-weight:bold;">{{price .}}</span>
      <span style="color:#888;font-size:12px;margin-left:8px;">{{.Source}}</span>
    </div>
  </div>
  {{- end}}
{{- end}}
{{- if .DashboardURL}}
  <div style="text-align:center;margin-top:24px;">
    <a href="{{.DashboardURL}}" style="background:#C8281E;color:white;padding:14px 28px;border-radius:4px;text-decoration:none;font-weight:bold;">VIEW ALL IN DASHBOARD →</a>
  </div>
{{- end}}
</div></body></html>
`))
