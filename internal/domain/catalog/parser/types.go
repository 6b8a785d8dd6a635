// Package parser turns supplier spreadsheet workbooks into parsed catalog items.
// The source files are hand-maintained: category markers are ordinary data rows,
// ISBN cells arrive in scientific notation, and prices mix formats.
package parser

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Category is the catalog section an item belongs to, assigned by the last
// category-marker row seen before it.
type Category string

const (
	CategoryNewReleases  Category = "NEW_RELEASES"
	CategoryReprints     Category = "REPRINTS"
	CategoryOngoing      Category = "ONGOING"
	CategoryCompleted    Category = "COMPLETED"
	CategorySingleVolume Category = "SINGLE_VOLUME"
	CategoryComics       Category = "COMICS"
)

// Fatal parse errors. Row-level problems never surface here; they are collected
// in ParseResult.Errors instead.
var (
	ErrWorkbookUnreadable = errors.New("file could not be read as a spreadsheet")
	ErrNoSheets           = errors.New("workbook contains no sheets")
)

// CatalogItem is one parsed product row. UniqueKey is left empty by the parser;
// the identity resolver assigns it.
type CatalogItem struct {
	Title     string
	Volume    string
	ISBN      string // cleaned digit string, empty when absent or placeholder
	Price     *decimal.Decimal
	Category  Category
	Publisher string
	UniqueKey string
	RawRow    int // 1-indexed row in the source sheet
}

// ParseError records a recoverable problem with a single row
type ParseError struct {
	Sheet   string
	Row     int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ParseResult contains everything extracted from one workbook
type ParseResult struct {
	Items       []CatalogItem
	NoPrice     []string // titles whose price cell could not be parsed
	Errors      []ParseError
	Sheets      []string // names of the sheets that were processed
	TotalRows   int      // item rows seen (inside a known category)
	SkippedRows int      // junk/blank rows seen after the first marker
}

// Config controls sheet selection and row interpretation
type Config struct {
	// SupplierMarker selects a single sheet whose name contains it
	// (case-insensitive). When no sheet matches, all sheets are processed.
	SupplierMarker string
	// SkipRows unconditionally drops this many leading rows per sheet
	// (the source format reserves a front-matter block).
	SkipRows int
	// MinISBNLength is the minimum digit count for a cleaned ISBN cell to be
	// kept; shorter values are treated as absent.
	MinISBNLength int
}

// DefaultConfig returns the settings for the primary supplier format
func DefaultConfig() Config {
	return Config{
		SupplierMarker: "ivrea",
		SkipRows:       0,
		MinISBNLength:  10,
	}
}

// Parser converts workbooks into ParseResults
type Parser struct {
	config Config
}

// New creates a Parser with the given configuration
func New(config Config) *Parser {
	if config.MinISBNLength <= 0 {
		config.MinISBNLength = 10
	}
	return &Parser{config: config}
}
