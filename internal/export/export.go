// Package export writes the persisted catalog to spreadsheet formats.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/camarohq/hunter/internal/model"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name or infers one from a file extension.
func ParseFormat(name, path string) (Format, error) {
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch Format(strings.ToLower(name)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", name)
	}
}

// Columns is the header row shared by every format.
var Columns = []string{
	"identity", "source", "title", "price_display", "price_amount", "url",
	"image_url", "location", "is_auction", "listed_at", "fetched_at", "is_new",
}

func record(l model.Listing) []string {
	return []string{
		l.Identity,
		l.Source,
		l.Title,
		l.PriceDisplay,
		strconv.Itoa(l.PriceAmount),
		l.URL,
		l.ImageURL,
		l.Location,
		strconv.FormatBool(l.IsAuction),
		l.ListedAt,
		l.FetchedAt,
		strconv.FormatBool(l.IsNew),
	}
}

// WriteCSV writes a header row and one row per listing.
func WriteCSV(w io.Writer, listings []model.Listing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, l := range listings {
		if err := cw.Write(record(l)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", l.Identity)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes a workbook with a Listings sheet and a Summary sheet.
func WriteXLSX(w io.Writer, doc model.CatalogDocument) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Listings")
	if err != nil {
		return eris.Wrap(err, "export: add listings sheet")
	}
	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}
	for _, l := range doc.Listings {
		row := sheet.AddRow()
		for i, v := range record(l) {
			cell := row.AddCell()
			if Columns[i] == "price_amount" {
				cell.SetInt(l.PriceAmount)
				continue
			}
			cell.SetString(v)
		}
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	for _, kv := range [][2]string{
		{"updated_at", doc.UpdatedAt},
		{"run_id", doc.RunID},
		{"total", strconv.Itoa(doc.Total)},
		{"new_count", strconv.Itoa(doc.NewCount)},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv[0])
		row.AddCell().SetString(kv[1])
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// ToFile writes doc to path in the given format.
func ToFile(path string, format Format, doc model.CatalogDocument) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create output dir")
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create output file")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "export: close output file")
		}
	}()

	switch format {
	case FormatCSV:
		return WriteCSV(out, doc.Listings)
	case FormatXLSX:
		return WriteXLSX(out, doc)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}
