package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database, following pagination cursors.
func QueryAll(ctx context.Context, c Client, dbID string) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{PageSize: 100}
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			return all, nil
		}
		req = &notionapi.DatabaseQueryRequest{
			PageSize:    100,
			StartCursor: resp.NextCursor,
		}
	}
}

// URLValues collects the non-empty values of a URL property across pages.
func URLValues(pages []notionapi.Page, property string) map[string]bool {
	out := make(map[string]bool, len(pages))
	for _, p := range pages {
		switch v := p.Properties[property].(type) {
		case *notionapi.URLProperty:
			if v.URL != "" {
				out[v.URL] = true
			}
		case notionapi.URLProperty:
			if v.URL != "" {
				out[v.URL] = true
			}
		}
	}
	return out
}
