package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storedBook returns a valid book identified by isbn.
func storedBook(isbn int64, title string) Book {
	book := newTestBook(title)
	book.ISBN = isbn
	return book
}

// assertSameBook compares books field by field with prices compared by value.
func assertSameBook(t *testing.T, want, got Book) {
	t.Helper()
	assert.True(t, want.Price.Equal(got.Price), "price: want %s got %s", want.Price, got.Price)
	want.Price, got.Price = decimal.Zero, decimal.Zero
	assert.Equal(t, want, got)
}

func isbnsOf(books []Book) []int64 {
	isbns := make([]int64, 0, len(books))
	for _, b := range books {
		isbns = append(isbns, b.ISBN)
	}
	return isbns
}

// testBookStorage checks the behaviour every BookStorage backend shares.
// newStorage must return an empty storage.
//
//nolint:funlen
func testBookStorage(t *testing.T, newStorage func(t *testing.T) BookStorage) {
	ctx := context.Background()
	dune := storedBook(9780306406157, "Dune")
	messiah := storedBook(9780134685991, "Dune Messiah")
	patterns := storedBook(9780201633610, "Design Patterns")
	patterns.Author = "Erich Gamma"
	patterns.Genre = []string{"Programming", "Software"}
	patterns.Price = decimal.RequireFromString("54.99")

	t.Run("save and find", func(t *testing.T) {
		storage := newStorage(t)
		saved, err := storage.Save(ctx, dune)
		require.NoError(t, err)
		assertSameBook(t, dune, saved)

		got, err := storage.FindByID(ctx, dune.ISBN)
		require.NoError(t, err)
		assertSameBook(t, dune, got)

		exists, err := storage.ExistsByID(ctx, dune.ISBN)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("find missing", func(t *testing.T) {
		storage := newStorage(t)
		_, err := storage.FindByID(ctx, dune.ISBN)
		assert.ErrorIs(t, err, ErrBookNotFound)
		exists, err := storage.ExistsByID(ctx, dune.ISBN)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("save replaces and releases the old title", func(t *testing.T) {
		storage := newStorage(t)
		_, err := storage.Save(ctx, dune)
		require.NoError(t, err)

		renamed := dune
		renamed.Title = "Dune (Deluxe Edition)"
		renamed.Price = decimal.RequireFromString("19.99")
		_, err = storage.Save(ctx, renamed)
		require.NoError(t, err)

		got, err := storage.FindByID(ctx, dune.ISBN)
		require.NoError(t, err)
		assertSameBook(t, renamed, got)

		_, err = storage.Save(ctx, storedBook(messiah.ISBN, "Dune"))
		assert.NoError(t, err)
	})

	t.Run("duplicate title ignores case", func(t *testing.T) {
		storage := newStorage(t)
		_, err := storage.Save(ctx, dune)
		require.NoError(t, err)
		_, err = storage.Save(ctx, storedBook(messiah.ISBN, "DUNE"))
		assert.ErrorIs(t, err, ErrDuplicateTitle)

		exists, err := storage.ExistsByID(ctx, messiah.ISBN)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("titles compare under full case folding", func(t *testing.T) {
		storage := newStorage(t)
		_, err := storage.Save(ctx, storedBook(dune.ISBN, "Straße"))
		require.NoError(t, err)
		_, err = storage.Save(ctx, storedBook(messiah.ISBN, "STRASSE"))
		assert.ErrorIs(t, err, ErrDuplicateTitle)

		books, err := storage.FindByTitleContaining(ctx, "strasse")
		require.NoError(t, err)
		assert.Equal(t, []int64{dune.ISBN}, isbnsOf(books))
	})

	t.Run("delete", func(t *testing.T) {
		storage := newStorage(t)
		_, err := storage.Save(ctx, dune)
		require.NoError(t, err)

		require.NoError(t, storage.DeleteByID(ctx, dune.ISBN))
		_, err = storage.FindByID(ctx, dune.ISBN)
		assert.ErrorIs(t, err, ErrBookNotFound)
		assert.ErrorIs(t, storage.DeleteByID(ctx, dune.ISBN), ErrBookNotFound)

		_, err = storage.Save(ctx, storedBook(messiah.ISBN, "dune"))
		assert.NoError(t, err)
	})

	t.Run("find all", func(t *testing.T) {
		storage := newStorage(t)
		books, err := storage.FindAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, books)
		assert.Empty(t, books)

		for _, b := range []Book{dune, messiah, patterns} {
			_, err = storage.Save(ctx, b)
			require.NoError(t, err)
		}
		books, err = storage.FindAll(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{dune.ISBN, messiah.ISBN, patterns.ISBN}, isbnsOf(books))
		for _, b := range books {
			if b.ISBN == patterns.ISBN {
				assertSameBook(t, patterns, b)
			}
		}
	})

	t.Run("find by title containing", func(t *testing.T) {
		storage := newStorage(t)
		for _, b := range []Book{dune, messiah, patterns} {
			_, err := storage.Save(ctx, b)
			require.NoError(t, err)
		}
		books, err := storage.FindByTitleContaining(ctx, "dUNe")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{dune.ISBN, messiah.ISBN}, isbnsOf(books))

		books, err = storage.FindByTitleContaining(ctx, "messiah")
		require.NoError(t, err)
		assert.Equal(t, []int64{messiah.ISBN}, isbnsOf(books))

		books, err = storage.FindByTitleContaining(ctx, "foundation")
		require.NoError(t, err)
		assert.NotNil(t, books)
		assert.Empty(t, books)
	})
}
