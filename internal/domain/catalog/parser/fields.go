package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// columnMap holds the resolved column index for each field role. Negative
// means the role has no column in this sheet.
type columnMap struct {
	title     int
	isbn      int
	price     int
	volume    int
	publisher int
}

// positionalColumns is the layout of the primary supplier format: title, ISBN,
// price in the first three columns, no volume or publisher column.
func positionalColumns() columnMap {
	return columnMap{title: 0, isbn: 1, price: 2, volume: -1, publisher: -1}
}

// Header keyword lists for the format variant that carries a header row.
// Matching is case-insensitive substring, as the supplier renames columns
// freely between revisions.
var (
	titleHeaders     = []string{"nombre", "titulo", "título", "producto", "descripcion", "descripción", "manga"}
	isbnHeaders      = []string{"isbn", "ean", "código", "codigo"}
	priceHeaders     = []string{"precio", "costo", "p.v.p", "pvp", "p. final"}
	volumeHeaders    = []string{"tomo", "vol", "volumen", "nro", "numero", "número", "#"}
	publisherHeaders = []string{"sello", "editorial"}
)

// detectHeaderColumns checks whether a row is a header row and, if so, builds
// a column map from it. A row qualifies when it names a title column plus at
// least one of ISBN or price.
func detectHeaderColumns(row []string) (columnMap, bool) {
	cm := columnMap{title: -1, isbn: -1, price: -1, volume: -1, publisher: -1}

	for i, cell := range row {
		h := strings.ToLower(strings.TrimSpace(cell))
		if h == "" {
			continue
		}
		if cm.title < 0 && containsAny(h, titleHeaders) {
			cm.title = i
			continue
		}
		if cm.isbn < 0 && containsAny(h, isbnHeaders) {
			cm.isbn = i
			continue
		}
		if cm.price < 0 && containsAny(h, priceHeaders) {
			cm.price = i
			continue
		}
		if cm.volume < 0 && containsAny(h, volumeHeaders) {
			cm.volume = i
			continue
		}
		if cm.publisher < 0 && containsAny(h, publisherHeaders) {
			cm.publisher = i
		}
	}

	if cm.title >= 0 && (cm.isbn >= 0 || cm.price >= 0) {
		return cm, true
	}
	return columnMap{}, false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// cleanISBN normalizes a raw ISBN cell to a plain digit string. Spreadsheets
// store long ISBNs as floats, so scientific notation is rounded back first.
func cleanISBN(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "e+") || strings.Contains(s, "E+") {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			s = strconv.FormatFloat(n, 'f', 0, 64)
		}
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isISBNPlaceholder reports whether the cell carries "to confirm" semantics
// instead of an actual ISBN.
func isISBNPlaceholder(raw string) bool {
	u := strings.ToUpper(strings.TrimSpace(raw))
	return u == "" || u == "S/D" || strings.Contains(u, "CONFIRMAR")
}

var nonPriceChars = regexp.MustCompile(`[^0-9.,\-]`)

// parsePrice accepts a native numeric cell or a formatted string ("$ 12.500,00")
// and returns nil when the value cannot be parsed. A bad price never fails the row.
func parsePrice(raw string) *decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	s = nonPriceChars.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return nil
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		// The later separator is the decimal one; the other marks thousands.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if hasDecimalSuffix(s, ',') {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot:
		if !hasDecimalSuffix(s, '.') {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// hasDecimalSuffix reports whether the last occurrence of sep is followed by
// one or two digits only, i.e. looks like a decimal separator rather than a
// thousands separator.
func hasDecimalSuffix(value string, sep rune) bool {
	idx := strings.LastIndex(value, string(sep))
	if idx == -1 || idx == len(value)-1 {
		return false
	}
	digits := 0
	for _, r := range value[idx+1:] {
		if r < '0' || r > '9' {
			return false
		}
		digits++
		if digits > 2 {
			return false
		}
	}
	return digits > 0
}

var trailingVolume = regexp.MustCompile(`^(.*\S)\s+(\d+(?:[.,]\d+)?)$`)

// splitTitleVolume handles the common "SERIES NAME 12" pattern: a trailing
// integer (optionally decimal) is the volume, the prefix is the title.
func splitTitleVolume(raw string) (title, volume string) {
	m := trailingVolume.FindStringSubmatch(raw)
	if m == nil {
		return raw, ""
	}
	return strings.TrimSpace(m[1]), m[2]
}

// parseItemRow extracts a CatalogItem from one item row. noPriceTitle is set
// when the price cell was absent or unparseable.
func (p *Parser) parseItemRow(row []string, cm columnMap, category Category, publisher string, rowNum int) (item CatalogItem, noPriceTitle string, err error) {
	getValue := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	rawTitle := getValue(cm.title)
	if rawTitle == "" {
		return item, "", fmt.Errorf("empty title cell")
	}

	title, volume := splitTitleVolume(rawTitle)
	if v := getValue(cm.volume); v != "" {
		// Explicit volume column wins over the trailing-number heuristic.
		title, volume = rawTitle, v
	}

	rawISBN := getValue(cm.isbn)
	isbn := ""
	if !isISBNPlaceholder(rawISBN) {
		cleaned := cleanISBN(rawISBN)
		if len(cleaned) >= p.config.MinISBNLength {
			isbn = cleaned
		}
	}

	price := parsePrice(getValue(cm.price))
	if price == nil {
		noPriceTitle = title
	}

	if sello := getValue(cm.publisher); sello != "" {
		publisher = sello
	}

	return CatalogItem{
		Title:     title,
		Volume:    volume,
		ISBN:      isbn,
		Price:     price,
		Category:  category,
		Publisher: publisher,
		RawRow:    rowNum,
	}, noPriceTitle, nil
}
