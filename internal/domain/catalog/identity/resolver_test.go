package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/parser"
)

func TestTitleKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, TitleKey("berserk 12"), TitleKey("berserk 12"))
	})

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		assert.Equal(t, TitleKey("Berserk 12"), TitleKey("  berserk 12  "))
	})

	t.Run("format is prefix plus ten digits", func(t *testing.T) {
		key := TitleKey("one piece 103")
		require.Len(t, key, 13)
		assert.True(t, strings.HasPrefix(key, KeyPrefix))
		for _, r := range key[len(KeyPrefix):] {
			assert.True(t, r >= '0' && r <= '9')
		}
	})

	t.Run("different titles differ", func(t *testing.T) {
		assert.NotEqual(t, TitleKey("berserk 12"), TitleKey("berserk 13"))
	})
}

func TestResolver_ValidISBN(t *testing.T) {
	r := NewResolver(10)
	assert.True(t, r.ValidISBN("9789877475005"))
	assert.True(t, r.ValidISBN("0123456789"))
	assert.False(t, r.ValidISBN("123456789"))
	assert.False(t, r.ValidISBN(""))
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(10)

	t.Run("valid isbn becomes the key", func(t *testing.T) {
		res := r.Resolve([]parser.CatalogItem{
			{Title: "BERSERK", Volume: "12", ISBN: "9789877475005"},
		})

		require.Len(t, res.Items, 1)
		assert.Equal(t, "9789877475005", res.Items[0].UniqueKey)
		assert.Empty(t, res.NoValidISBN)
		assert.Empty(t, res.Reassigned)
		assert.Empty(t, res.DuplicateKeys)
	})

	t.Run("missing isbn falls back to title key", func(t *testing.T) {
		res := r.Resolve([]parser.CatalogItem{
			{Title: "BERSERK", Volume: "12"},
		})

		require.Len(t, res.Items, 1)
		assert.Equal(t, TitleKey("berserk 12"), res.Items[0].UniqueKey)
		require.Len(t, res.NoValidISBN, 1)
		assert.Equal(t, "BERSERK 12", res.NoValidISBN[0].Title)
		assert.Equal(t, res.Items[0].UniqueKey, res.NoValidISBN[0].GeneratedKey)
	})

	t.Run("volume distinguishes synthetic keys", func(t *testing.T) {
		res := r.Resolve([]parser.CatalogItem{
			{Title: "BERSERK", Volume: "12"},
			{Title: "BERSERK", Volume: "13"},
		})

		require.Len(t, res.Items, 2)
		assert.NotEqual(t, res.Items[0].UniqueKey, res.Items[1].UniqueKey)
		assert.Empty(t, res.Reassigned)
	})

	t.Run("duplicate isbn reassigns the second occurrence", func(t *testing.T) {
		res := r.Resolve([]parser.CatalogItem{
			{Title: "BERSERK", Volume: "12", ISBN: "9789877475005"},
			{Title: "ONE PIECE", Volume: "103", ISBN: "9789877475005"},
		})

		require.Len(t, res.Items, 2)
		assert.Equal(t, "9789877475005", res.Items[0].UniqueKey)
		assert.NotEqual(t, "9789877475005", res.Items[1].UniqueKey)

		require.Len(t, res.Reassigned, 1)
		assert.Equal(t, "ONE PIECE 103", res.Reassigned[0].Title)
		assert.Equal(t, "9789877475005", res.Reassigned[0].OldKey)
		assert.Equal(t, res.Items[1].UniqueKey, res.Reassigned[0].NewKey)

		require.Len(t, res.DuplicateKeys, 1)
		assert.Equal(t, "9789877475005", res.DuplicateKeys[0].Key)
		assert.Equal(t, []string{"BERSERK 12", "ONE PIECE 103"}, res.DuplicateKeys[0].Titles)
	})

	t.Run("identical rows get per occurrence keys", func(t *testing.T) {
		res := r.Resolve([]parser.CatalogItem{
			{Title: "BERSERK", Volume: "12", ISBN: "9789877475005"},
			{Title: "BERSERK", Volume: "12", ISBN: "9789877475005"},
			{Title: "BERSERK", Volume: "12", ISBN: "9789877475005"},
		})

		require.Len(t, res.Items, 3)
		keys := map[string]struct{}{}
		for _, item := range res.Items {
			keys[item.UniqueKey] = struct{}{}
		}
		assert.Len(t, keys, 3)
		assert.Len(t, res.Reassigned, 2)
	})

	t.Run("same title with and without isbn never collides", func(t *testing.T) {
		res := r.Resolve([]parser.CatalogItem{
			{Title: "TITLE A", Volume: "5", ISBN: "9789877475005"},
			{Title: "TITLE A", Volume: "5"},
		})

		require.Len(t, res.Items, 2)
		assert.Equal(t, "9789877475005", res.Items[0].UniqueKey)
		assert.Equal(t, TitleKey("title a 5"), res.Items[1].UniqueKey)
		assert.NotEqual(t, res.Items[0].UniqueKey, res.Items[1].UniqueKey)
		assert.Empty(t, res.Reassigned)
	})

	t.Run("reimport reproduces keys row for row", func(t *testing.T) {
		batch := []parser.CatalogItem{
			{Title: "BERSERK", Volume: "12", ISBN: "9789877475005"},
			{Title: "ONE PIECE", Volume: "103", ISBN: "9789877475005"},
			{Title: "SOLO LEVELING", Volume: "4"},
			{Title: "SOLO LEVELING", Volume: "4"},
		}

		first := r.Resolve(batch)
		second := r.Resolve(batch)

		require.Len(t, second.Items, len(first.Items))
		for i := range first.Items {
			assert.Equal(t, first.Items[i].UniqueKey, second.Items[i].UniqueKey)
		}
	})

	t.Run("short isbn is treated as missing", func(t *testing.T) {
		res := r.Resolve([]parser.CatalogItem{
			{Title: "BERSERK", Volume: "12", ISBN: "12345"},
		})

		require.Len(t, res.Items, 1)
		assert.Equal(t, TitleKey("berserk 12"), res.Items[0].UniqueKey)
		assert.Len(t, res.NoValidISBN, 1)
	})
}
