package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook reads a spreadsheet and extracts catalog items from the
// selected sheets. Row-level problems are collected in the result; only an
// unreadable file or an empty workbook is fatal.
func (p *Parser) ParseWorkbook(reader io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
	}
	defer f.Close()

	sheets := p.selectSheets(f)
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	result := &ParseResult{
		Items:  make([]CatalogItem, 0, 256),
		Sheets: sheets,
	}

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			result.Errors = append(result.Errors, ParseError{
				Sheet:   sheet,
				Message: fmt.Sprintf("failed to read sheet: %v", err),
			})
			continue
		}
		p.scanSheet(sheet, rows, result)
	}

	return result, nil
}

// selectSheets picks the sheet whose name contains the supplier marker, or
// falls back to every sheet when none matches.
func (p *Parser) selectSheets(f *excelize.File) []string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil
	}

	marker := strings.ToLower(strings.TrimSpace(p.config.SupplierMarker))
	if marker != "" {
		for _, sheet := range sheets {
			if strings.Contains(strings.ToLower(sheet), marker) {
				return []string{sheet}
			}
		}
	}
	return sheets
}

// scanSheet folds the classifier over the rows of one sheet, parsing item rows
// as they are recognized. The sheet name doubles as the provenance (publisher)
// label unless an explicit column overrides it per row.
func (p *Parser) scanSheet(sheet string, rows [][]string, result *ParseResult) {
	publisher := strings.TrimSpace(sheet)
	scanner := &rowScanner{}
	cm := positionalColumns()

	for i, row := range rows {
		if i < p.config.SkipRows {
			continue
		}
		rowNum := i + 1 // 1-indexed, as users see it in the spreadsheet

		switch scanner.classify(row) {
		case rowBlank, rowJunk:
			// Junk only counts once a section has been established; anything
			// above the first marker is front matter.
			if scanner.category != "" {
				result.SkippedRows++
			} else if hm, ok := detectHeaderColumns(row); ok {
				cm = hm
			}
			continue
		case rowCategoryMarker:
			continue
		case rowPreamble:
			// A non-junk pre-marker row may still be the header row of the
			// variant that names its columns.
			if hm, ok := detectHeaderColumns(row); ok {
				cm = hm
			}
			continue
		}

		result.TotalRows++

		item, noPriceTitle, err := p.parseItemRow(row, cm, scanner.category, publisher, rowNum)
		if err != nil {
			result.Errors = append(result.Errors, ParseError{
				Sheet:   sheet,
				Row:     rowNum,
				Message: err.Error(),
			})
			continue
		}
		if noPriceTitle != "" {
			result.NoPrice = append(result.NoPrice, noPriceTitle)
		}
		result.Items = append(result.Items, item)
	}
}

// FullTitle reconstructs the title as it appeared in the source row, with the
// volume suffix restored. Identity hashing uses this form so that different
// volumes of one series never share a synthetic key.
func (i CatalogItem) FullTitle() string {
	if i.Volume == "" {
		return i.Title
	}
	return strings.TrimSpace(i.Title + " " + i.Volume)
}
