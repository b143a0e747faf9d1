package notify

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/pkg/notion"
)

// Notion database property names.
const (
	PropName     = "Name"
	PropURL      = "URL"
	PropSource   = "Source"
	PropPrice    = "Price"
	PropLocation = "Location"
	PropAuction  = "Auction"
	PropListed   = "Listed"
)

// NotionNotifier mirrors each new listing into a Notion database as a page.
// URLs already present in the database are skipped.
type NotionNotifier struct {
	client     notion.Client
	databaseID string
}

// NewNotionNotifier creates a NotionNotifier. A nil client disables it.
func NewNotionNotifier(client notion.Client, databaseID string) *NotionNotifier {
	return &NotionNotifier{client: client, databaseID: databaseID}
}

// Name implements Notifier.
func (n *NotionNotifier) Name() string { return "notion" }

// Notify implements Notifier.
func (n *NotionNotifier) Notify(ctx context.Context, listings []model.Listing) error {
	if n.client == nil || n.databaseID == "" || len(listings) == 0 {
		return nil
	}

	pages, err := notion.QueryAll(ctx, n.client, n.databaseID)
	if err != nil {
		return eris.Wrap(err, "notify: load notion pages")
	}
	existing := notion.URLValues(pages, PropURL)

	created := 0
	for _, l := range listings {
		if existing[l.URL] {
			continue
		}
		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(n.databaseID),
			},
			Properties: listingProperties(l),
		}
		if _, err := n.client.CreatePage(ctx, req); err != nil {
			return eris.Wrapf(err, "notify: create notion page for %s", l.Identity)
		}
		existing[l.URL] = true
		created++
	}

	zap.L().Debug("notify: notion pages created",
		zap.Int("created", created),
		zap.Int("skipped", len(listings)-created),
	)
	return nil
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

func listingProperties(l model.Listing) notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(l.Title),
		},
		PropURL: notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  l.URL,
		},
		PropSource: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: l.Source},
		},
		PropLocation: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(l.Location),
		},
		PropAuction: notionapi.CheckboxProperty{
			Type:     notionapi.PropertyTypeCheckbox,
			Checkbox: l.IsAuction,
		},
	}
	if l.PriceAmount > 0 {
		props[PropPrice] = notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(l.PriceAmount),
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, l.ListedAt); err == nil {
		d := notionapi.Date(t)
		props[PropListed] = notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &d},
		}
	}
	return props
}
