// Package identity assigns stable unique keys to parsed catalog items.
//
// Presence tracking across imports depends entirely on key stability: two
// imports of the same physical product must produce the same key, and two
// distinct products in one batch must never share one. Every key decision that
// deviates from the raw ISBN is therefore deterministic and audited.
package identity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/parser"
)

// KeyPrefix marks synthetic title-derived keys so they are visually
// distinguishable from real ISBNs.
const KeyPrefix = "TTL"

// KeyAssignment records a synthetic key generated for an item without a
// usable ISBN.
type KeyAssignment struct {
	Title        string `json:"title"`
	GeneratedKey string `json:"generatedKey"`
}

// Reassignment records a key that was re-derived, with the reason visible
// from the old/new pair.
type Reassignment struct {
	Title  string `json:"title"`
	OldKey string `json:"oldKey"`
	NewKey string `json:"newKey"`
}

// DuplicateKey lists all titles that produced the same key within one batch.
type DuplicateKey struct {
	Key    string   `json:"isbn"`
	Titles []string `json:"titles"`
}

// Resolution is the audited outcome of resolving one batch.
type Resolution struct {
	Items         []parser.CatalogItem
	NoValidISBN   []KeyAssignment
	Reassigned    []Reassignment
	DuplicateKeys []DuplicateKey
}

// Resolver computes unique keys for parsed items.
type Resolver struct {
	minISBNLength int
}

// NewResolver creates a resolver. minISBNLength guards against short digit
// strings being promoted to identity.
func NewResolver(minISBNLength int) *Resolver {
	if minISBNLength <= 0 {
		minISBNLength = 10
	}
	return &Resolver{minISBNLength: minISBNLength}
}

// TitleKey derives the deterministic synthetic key for a title. The same title
// text always yields the same token, across runs and processes.
func TitleKey(title string) string {
	sum := xxhash.Sum64String(strings.ToLower(strings.TrimSpace(title)))
	return KeyPrefix + fmt.Sprintf("%010d", sum%10_000_000_000)
}

// ValidISBN reports whether a cleaned digit string is long enough to serve
// as identity.
func (r *Resolver) ValidISBN(isbn string) bool {
	return len(isbn) >= r.minISBNLength
}

// Resolve assigns a unique key to every item, in batch order. The first
// occurrence of a key keeps it; later collisions are re-derived from the title
// plus an occurrence suffix, so re-importing the same file reproduces the same
// keys row for row.
func (r *Resolver) Resolve(items []parser.CatalogItem) *Resolution {
	res := &Resolution{
		Items: make([]parser.CatalogItem, 0, len(items)),
	}
	seen := make(map[string][]string, len(items))

	for _, item := range items {
		fullTitle := item.FullTitle()
		key := item.ISBN
		reassigned := false

		if !r.ValidISBN(key) {
			key = TitleKey(fullTitle)
			res.NoValidISBN = append(res.NoValidISBN, KeyAssignment{
				Title:        fullTitle,
				GeneratedKey: key,
			})
			reassigned = true
		}

		if titles, dup := seen[key]; dup {
			seen[key] = append(titles, fullTitle)
			oldKey := key
			key = r.rederiveKey(fullTitle, seen)
			res.Reassigned = append(res.Reassigned, Reassignment{
				Title:  fullTitle,
				OldKey: oldKey,
				NewKey: key,
			})
			reassigned = true
		}

		if !reassigned && item.ISBN != "" && item.ISBN != key {
			res.Reassigned = append(res.Reassigned, Reassignment{
				Title:  fullTitle,
				OldKey: item.ISBN,
				NewKey: key,
			})
		}

		seen[key] = append(seen[key], fullTitle)
		item.UniqueKey = key
		res.Items = append(res.Items, item)
	}

	for key, titles := range seen {
		if len(titles) > 1 {
			res.DuplicateKeys = append(res.DuplicateKeys, DuplicateKey{
				Key:    key,
				Titles: titles,
			})
		}
	}
	sort.Slice(res.DuplicateKeys, func(i, j int) bool {
		return res.DuplicateKeys[i].Key < res.DuplicateKeys[j].Key
	})

	return res
}

// rederiveKey hashes the title with an occurrence suffix until the key is
// unused in this batch. The suffix index only depends on batch order, so the
// derivation is reproducible.
func (r *Resolver) rederiveKey(fullTitle string, seen map[string][]string) string {
	for n := 2; ; n++ {
		candidate := TitleKey(fmt.Sprintf("%s#dup%d", fullTitle, n))
		if _, taken := seen[candidate]; !taken {
			return candidate
		}
	}
}
