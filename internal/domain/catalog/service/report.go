package service

import (
	"time"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/identity"
)

// disappearedSampleLimit bounds the disappeared-titles sample in a report; the
// disappeared count itself is always exact.
const disappearedSampleLimit = 50

// ReprintMatch records how one reprint row was applied during the merge.
type ReprintMatch struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// CategoryChange records an item whose category moved between imports.
type CategoryChange struct {
	Title       string `json:"title"`
	OldCategory string `json:"oldCategory"`
	NewCategory string `json:"newCategory"`
}

// ImportReport is the structured audit result of one import. It is returned to
// the caller and persisted in the bounded import-history log.
type ImportReport struct {
	Timestamp   time.Time `json:"timestamp"`
	Sheets      []string  `json:"sheets"`
	TotalRows   int       `json:"totalRows"`
	ItemsLoaded int       `json:"itemsLoaded"`
	SkippedRows int       `json:"skippedRows"`

	NewItems         int `json:"newItems"`
	UpdatedItems     int `json:"updatedItems"`
	RecoveredItems   int `json:"recoveredItems"`
	DisappearedItems int `json:"disappearedItems"`

	ByCategory map[string]int `json:"byCategory"`

	NoValidISBN       []identity.KeyAssignment `json:"noValidIsbn"`
	ReassignedKeys    []identity.Reassignment  `json:"reassignedIsbns"`
	DuplicateISBNs    []identity.DuplicateKey  `json:"duplicateIsbns"`
	NoPrice           []string                 `json:"noPrice"`
	ReprintMatches    []ReprintMatch           `json:"reprintMatches"`
	CategoryChanges   []CategoryChange         `json:"categoryChanges"`
	DisappearedTitles []string                 `json:"disappearedTitles"`

	// ErrorCount is always present even when Errors is sampled, so a caller
	// can detect a bad import without relying on list length.
	ErrorCount int      `json:"errorCount"`
	Errors     []string `json:"errors"`
}

func newImportReport(now time.Time) *ImportReport {
	return &ImportReport{
		Timestamp:         now,
		ByCategory:        make(map[string]int),
		NoValidISBN:       []identity.KeyAssignment{},
		ReassignedKeys:    []identity.Reassignment{},
		DuplicateISBNs:    []identity.DuplicateKey{},
		NoPrice:           []string{},
		ReprintMatches:    []ReprintMatch{},
		CategoryChanges:   []CategoryChange{},
		DisappearedTitles: []string{},
		Errors:            []string{},
	}
}

func (r *ImportReport) addError(msg string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, msg)
}
