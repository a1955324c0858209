package main

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMemoryBookService(isbns ...int64) (BookServiceProvider, BookStorage) {
	storage := NewMemoryBookStorage(zap.NewNop())
	var gen ISBNGenerator = NewISBNGenerator(DefaultISBNPrefix)
	if len(isbns) > 0 {
		gen = NewMockISBNGenerator(isbns...)
	}
	return NewBookService(zap.NewNop(), nil, gen, storage, nil), storage
}

// TestDuneScenario walks a record through its whole lifecycle.
func TestDuneScenario(t *testing.T) {
	ctx := context.Background()
	bs, _ := newMemoryBookService()

	created, err := bs.Create(ctx, newTestBook("Dune"))
	require.NoError(t, err)
	assert.True(t, IsValidISBN(created.ISBN))

	got, err := bs.GetOne(ctx, created.ISBN)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = bs.Create(ctx, newTestBook("DUNE"))
	assert.ErrorIs(t, err, ErrDuplicateTitle)

	price := decimal.RequireFromString("12.50")
	patched, err := bs.Patch(ctx, created.ISBN, BookPatch{Price: &price})
	require.NoError(t, err)
	assert.True(t, price.Equal(patched.Price))
	assert.Equal(t, created.Title, patched.Title)

	found, err := bs.Search(ctx, SearchCriteria{Title: ptr("dun")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ISBN, found[0].ISBN)

	deleted, err := bs.Delete(ctx, created.ISBN)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = bs.GetOne(ctx, created.ISBN)
	assert.ErrorIs(t, err, ErrBookNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, created.ISBN, nf.ISBN)
}

func TestCreateBook(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid book", func(t *testing.T) {
		bs, storage := newMemoryBookService()
		book := newTestBook("")
		book.Rate = 10
		_, err := bs.Create(ctx, book)
		require.ErrorIs(t, err, ErrInvalidInput)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"rate", "title"}, fieldNames(verr.Fields))
		all, _ := storage.FindAll(ctx)
		assert.Empty(t, all)
	})

	t.Run("supplied isbn is ignored", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		book := newTestBook("Dune")
		book.ISBN = 1
		created, err := bs.Create(ctx, book)
		require.NoError(t, err)
		assert.Equal(t, int64(9780306406157), created.ISBN)
	})

	t.Run("duplicate title ignores case", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157, 9780134685991)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		_, err = bs.Create(ctx, newTestBook("dune"))
		var dup *DuplicateTitleError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "dune", dup.Title)
	})

	t.Run("title containing another is not a duplicate", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157, 9780134685991)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		_, err = bs.Create(ctx, newTestBook("Dune Messiah"))
		assert.NoError(t, err)
	})

	t.Run("isbn collision regenerates", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157, 9780306406157, 9780134685991)
		first, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		second, err := bs.Create(ctx, newTestBook("Children of Dune"))
		require.NoError(t, err)
		assert.Equal(t, int64(9780306406157), first.ISBN)
		assert.Equal(t, int64(9780134685991), second.ISBN)
	})

	t.Run("isbn collisions exhaust attempts", func(t *testing.T) {
		gen := NewMockISBNGenerator(9780306406157)
		repo := &MockBookStorage{
			ExistsByIDFunc: func(ctx context.Context, isbn int64) (bool, error) { return true, nil },
		}
		config := &Config{Catalogue: CatalogueConfig{MaxISBNAttempts: 3}}
		bs := NewBookService(zap.NewNop(), config, gen, repo, nil)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 3, gen.Calls())
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := &MockBookStorage{
			SaveFunc: func(ctx context.Context, book Book) (Book, error) {
				return Book{}, errors.New("disk full")
			},
		}
		bs := NewBookService(zap.NewNop(), nil, NewMockISBNGenerator(9780306406157), repo, nil)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		assert.ErrorIs(t, err, ErrStorageFailure)
		assert.EqualError(t, errors.Unwrap(err), "disk full")
	})

	t.Run("storage rejects duplicate title", func(t *testing.T) {
		repo := &MockBookStorage{
			SaveFunc: func(ctx context.Context, book Book) (Book, error) {
				return Book{}, ErrDuplicateTitle
			},
		}
		bs := NewBookService(zap.NewNop(), nil, NewMockISBNGenerator(9780306406157), repo, nil)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		var dup *DuplicateTitleError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "Dune", dup.Title)
	})

	t.Run("mutation is published", func(t *testing.T) {
		queue := NewMockQueue()
		bs := NewBookService(zap.NewNop(), nil, NewMockISBNGenerator(9780306406157), NewMemoryBookStorage(zap.NewNop()), queue)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		op, book, err := queue.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, CreateChange, op)
		assert.Equal(t, created, book)
	})

	t.Run("failed publish does not fail creation", func(t *testing.T) {
		queue := NewMockQueue()
		queue.PushErr = errors.New("redis down")
		bs := NewBookService(zap.NewNop(), nil, NewMockISBNGenerator(9780306406157), NewMemoryBookStorage(zap.NewNop()), queue)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		assert.NoError(t, err)
	})
}

func TestUpdateBook(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces every field but isbn", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)

		replacement := newTestBook("Dune (Deluxe Edition)")
		replacement.ISBN = 9780134685991
		replacement.Author = "F. Herbert"
		replacement.Genre = []string{"Classic", "Science Fiction"}
		replacement.Cover = ""
		replacement.Display = false
		updated, err := bs.Update(ctx, created.ISBN, replacement)
		require.NoError(t, err)

		got, err := bs.GetOne(ctx, created.ISBN)
		require.NoError(t, err)
		replacement.ISBN = created.ISBN
		assert.Equal(t, replacement, got)
		assert.Equal(t, updated, got)
	})

	t.Run("unknown isbn", func(t *testing.T) {
		bs, _ := newMemoryBookService()
		_, err := bs.Update(ctx, 9780306406157, newTestBook("Dune"))
		assert.ErrorIs(t, err, ErrBookNotFound)
	})

	t.Run("invalid replacement", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		replacement := newTestBook("Dune")
		replacement.Price = decimal.Zero
		_, err = bs.Update(ctx, created.ISBN, replacement)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("keeping its own title is allowed", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		_, err = bs.Update(ctx, created.ISBN, newTestBook("DUNE"))
		assert.NoError(t, err)
	})

	t.Run("title of another book", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157, 9780134685991)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		other, err := bs.Create(ctx, newTestBook("Dune Messiah"))
		require.NoError(t, err)
		_, err = bs.Update(ctx, other.ISBN, newTestBook("dune"))
		assert.ErrorIs(t, err, ErrDuplicateTitle)
	})
}

func TestPatchBook(t *testing.T) {
	ctx := context.Background()

	t.Run("price not positive leaves the book unchanged", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)

		for _, p := range []string{"0", "-4.20"} {
			price := decimal.RequireFromString(p)
			title := "Dune Messiah"
			_, err = bs.Patch(ctx, created.ISBN, BookPatch{Title: &title, Price: &price})
			require.ErrorIs(t, err, ErrInvalidInput)
		}
		got, err := bs.GetOne(ctx, created.ISBN)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("display false is applied", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		require.True(t, created.Display)

		patched, err := bs.Patch(ctx, created.ISBN, BookPatch{Display: ptr(false)})
		require.NoError(t, err)
		assert.False(t, patched.Display)
		assert.Equal(t, created.Rate, patched.Rate)
	})

	t.Run("genre replaces the whole set", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		genres := []string{"Classic", "Adventure"}
		patched, err := bs.Patch(ctx, created.ISBN, BookPatch{Genre: &genres})
		require.NoError(t, err)
		assert.Equal(t, genres, patched.Genre)
	})

	t.Run("isbn cannot change", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		_, err = bs.Patch(ctx, created.ISBN, BookPatch{ISBN: ptr(int64(9780134685991))})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"isbn"}, fieldNames(verr.Fields))

		_, err = bs.Patch(ctx, created.ISBN, BookPatch{ISBN: ptr(created.ISBN)})
		assert.NoError(t, err)
	})

	t.Run("title of another book", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157, 9780134685991)
		_, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		other, err := bs.Create(ctx, newTestBook("Dune Messiah"))
		require.NoError(t, err)
		_, err = bs.Patch(ctx, other.ISBN, BookPatch{Title: ptr("DUNE")})
		assert.ErrorIs(t, err, ErrDuplicateTitle)
	})

	t.Run("empty patch returns the current book", func(t *testing.T) {
		saved := false
		book := newTestBook("Dune")
		book.ISBN = 9780306406157
		repo := &MockBookStorage{
			FindByIDFunc: func(ctx context.Context, isbn int64) (Book, error) { return book, nil },
			SaveFunc: func(ctx context.Context, b Book) (Book, error) {
				saved = true
				return b, nil
			},
		}
		bs := NewBookService(zap.NewNop(), nil, nil, repo, nil)
		got, err := bs.Patch(ctx, book.ISBN, BookPatch{})
		require.NoError(t, err)
		assert.Equal(t, book, got)
		assert.False(t, saved)
	})

	t.Run("unknown isbn", func(t *testing.T) {
		bs, _ := newMemoryBookService()
		_, err := bs.Patch(ctx, 9780306406157, BookPatch{Display: ptr(true)})
		assert.ErrorIs(t, err, ErrBookNotFound)
	})
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()

	t.Run("missing isbn returns false", func(t *testing.T) {
		bs, _ := newMemoryBookService()
		deleted, err := bs.Delete(ctx, 9780306406157)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("existing isbn returns true once", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		deleted, err := bs.Delete(ctx, created.ISBN)
		require.NoError(t, err)
		assert.True(t, deleted)
		deleted, err = bs.Delete(ctx, created.ISBN)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("title is released", func(t *testing.T) {
		bs, _ := newMemoryBookService(9780306406157, 9780134685991)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		_, err = bs.Delete(ctx, created.ISBN)
		require.NoError(t, err)
		_, err = bs.Create(ctx, newTestBook("Dune"))
		assert.NoError(t, err)
	})

	t.Run("deletion is published", func(t *testing.T) {
		queue := NewMockQueue()
		bs := NewBookService(zap.NewNop(), nil, NewMockISBNGenerator(9780306406157), NewMemoryBookStorage(zap.NewNop()), queue)
		created, err := bs.Create(ctx, newTestBook("Dune"))
		require.NoError(t, err)
		_, _, _ = queue.Pop(ctx)
		_, err = bs.Delete(ctx, created.ISBN)
		require.NoError(t, err)
		op, book, err := queue.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, DeleteChange, op)
		assert.Equal(t, created.ISBN, book.ISBN)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := &MockBookStorage{
			ExistsByIDFunc: func(ctx context.Context, isbn int64) (bool, error) {
				return false, errors.New("connection reset")
			},
		}
		bs := NewBookService(zap.NewNop(), nil, nil, repo, nil)
		_, err := bs.Delete(ctx, 9780306406157)
		assert.ErrorIs(t, err, ErrStorageFailure)
	})
}

func TestListAndSearchBooks(t *testing.T) {
	ctx := context.Background()
	bs, _ := newMemoryBookService(9780306406157, 9780134685991, 9780201633610)

	books, err := bs.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)

	for _, title := range []string{"Dune", "Dune Messiah", "Effective Java"} {
		_, err = bs.Create(ctx, newTestBook(title))
		require.NoError(t, err)
	}

	books, err = bs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 3)
	assert.Equal(t, "Dune", books[0].Title)

	found, err := bs.Search(ctx, SearchCriteria{Title: ptr("DUNE")})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = bs.Search(ctx, SearchCriteria{})
	require.NoError(t, err)
	assert.Equal(t, books, found)

	found, err = bs.Search(ctx, SearchCriteria{Author: ptr("Tolkien")})
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestListBooksStorageFailure(t *testing.T) {
	repo := &MockBookStorage{
		FindAllFunc: func(ctx context.Context) ([]Book, error) {
			return nil, errors.New("timeout")
		},
	}
	bs := NewBookService(zap.NewNop(), nil, nil, repo, nil)
	_, err := bs.List(context.Background())
	assert.ErrorIs(t, err, ErrStorageFailure)
	_, err = bs.Search(context.Background(), SearchCriteria{})
	assert.ErrorIs(t, err, ErrStorageFailure)
}
