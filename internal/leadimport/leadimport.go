// Package leadimport loads practice leads from spreadsheet exports.
package leadimport

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/model"
	"github.com/sells-group/audit-cli/internal/store"
)

// Options configures the XLSX import.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// Summary reports what an import run did.
type Summary struct {
	Imported int
	Skipped  int
}

// headerAliases maps normalized column headers to lead fields.
var headerAliases = map[string]string{
	"practice name": "practice",
	"practice":      "practice",
	"name":          "practice",
	"website":       "website",
	"url":           "website",
	"phone":         "phone",
	"phone number":  "phone",
	"city":          "city",
	"state":         "state",
	"specialty":     "specialty",
	"salesforce id": "salesforce",
	"sf id":         "salesforce",
}

// FromXLSX reads a spreadsheet of practices and creates a lead per row. The
// first row is treated as the header. Rows without a practice name are
// skipped, not fatal.
func FromXLSX(ctx context.Context, s store.Store, path string, opts Options) (*Summary, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadimport: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("leadimport: sheet is empty")
	}

	columns, err := mapHeader(sheet.Rows[0])
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for i, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "leadimport: cancelled")
		}

		lead := buildLead(row, columns)
		if lead.PracticeName == "" {
			zap.L().Warn("leadimport: skipping row without practice name", zap.Int("row", i+2))
			summary.Skipped++
			continue
		}

		if _, err := s.CreateLead(ctx, lead); err != nil {
			return summary, eris.Wrapf(err, "leadimport: row %d", i+2)
		}
		summary.Imported++
	}

	zap.L().Info("leadimport: done",
		zap.String("path", path),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("leadimport: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("leadimport: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

// mapHeader resolves recognized column headers to their index.
func mapHeader(row *xlsx.Row) (map[string]int, error) {
	columns := make(map[string]int)
	for j, cell := range row.Cells {
		key := strings.ToLower(strings.TrimSpace(cell.String()))
		if field, ok := headerAliases[key]; ok {
			columns[field] = j
		}
	}
	if _, ok := columns["practice"]; !ok {
		return nil, eris.New("leadimport: no practice name column found")
	}
	return columns, nil
}

func buildLead(row *xlsx.Row, columns map[string]int) model.Lead {
	get := func(field string) string {
		j, ok := columns[field]
		if !ok || j >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[j].String())
	}
	return model.Lead{
		PracticeName: get("practice"),
		Website:      get("website"),
		Phone:        get("phone"),
		City:         get("city"),
		State:        get("state"),
		Specialty:    get("specialty"),
		SalesforceID: get("salesforce"),
	}
}
