package parser

import "strings"

// categoryMarkers maps marker substrings found in the first cell of a row to
// catalog categories. Matching is substring-based and case-insensitive because
// the source files vary punctuation and pluralization between revisions.
// Order matters: more specific markers come first.
var categoryMarkers = []struct {
	marker   string
	category Category
}{
	{"REIMPRESIONES", CategoryReprints},
	{"NOVEDADES", CategoryNewReleases},
	{"MANGAS EN CURSO", CategoryOngoing},
	{"MANGA EN CURSO", CategoryOngoing},
	{"MANGAS YA COMPLETOS", CategoryCompleted},
	{"TOMO ÚNICO", CategorySingleVolume},
	{"TOMO UNICO", CategorySingleVolume},
	{"COMICS", CategoryComics},
}

// detectCategory returns the category a marker row switches to, or "" when the
// cell is not a marker.
func detectCategory(firstCell string) Category {
	u := strings.ToUpper(strings.TrimSpace(firstCell))
	if u == "" {
		return ""
	}
	for _, m := range categoryMarkers {
		if strings.Contains(u, m.marker) {
			return m.category
		}
	}
	return ""
}

// junkPrefixes match boilerplate notice rows the supplier leaves in the file.
var junkPrefixes = []string{
	"POR FAVOR COMPLETAR",
	"NOTA",
	"IMPORTANTE",
	"AVISO",
}

// junkExact match literal column-header and subtotal rows.
var junkExact = map[string]struct{}{
	"TITULO":    {},
	"TÍTULO":    {},
	"TITLE":     {},
	"ISBN":      {},
	"PRECIO":    {},
	"PRICE":     {},
	"SUBTOTAL":  {},
	"SUB TOTAL": {},
}

// isJunkRow reports whether the first cell marks a header, subtotal, or
// boilerplate row that carries no item data.
func isJunkRow(firstCell string) bool {
	u := strings.ToUpper(strings.TrimSpace(firstCell))
	if u == "" {
		return true
	}
	if _, ok := junkExact[u]; ok {
		return true
	}
	for _, p := range junkPrefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

// rowKind classifies one row of a sheet scan
type rowKind int

const (
	rowBlank rowKind = iota
	rowCategoryMarker
	rowJunk
	rowPreamble // non-junk row before the first category marker
	rowItem
)

// rowScanner threads the single piece of classifier state, the active
// category, through a fold over sheet rows.
type rowScanner struct {
	category Category
}

// classify decides what to do with a row and updates the active category when
// the row is a marker.
func (s *rowScanner) classify(row []string) rowKind {
	if isBlankRow(row) {
		return rowBlank
	}

	firstCell := strings.TrimSpace(row[0])

	if cat := detectCategory(firstCell); cat != "" {
		s.category = cat
		return rowCategoryMarker
	}

	if isJunkRow(firstCell) {
		return rowJunk
	}

	if s.category == "" {
		return rowPreamble
	}

	return rowItem
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
