package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// memoryBookStorage keeps the catalogue in process memory. Insertion order
// is preserved and title uniqueness is enforced under the write lock.
type memoryBookStorage struct {
	logger *zap.Logger
	mu     sync.RWMutex
	order  []int64
	books  map[int64]Book
	titles map[string]int64
}

// NewMemoryBookStorage provides an instance of memory-based book storage.
func NewMemoryBookStorage(logger *zap.Logger) BookStorage {
	return &memoryBookStorage{
		logger: logger,
		books:  make(map[int64]Book),
		titles: make(map[string]int64),
	}
}

// FindAll returns copies of every book in insertion order.
func (ms *memoryBookStorage) FindAll(_ context.Context) ([]Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	books := make([]Book, 0, len(ms.order))
	for _, isbn := range ms.order {
		books = append(books, cloneBook(ms.books[isbn]))
	}
	return books, nil
}

// FindByID retrieves a book record based on its isbn.
func (ms *memoryBookStorage) FindByID(_ context.Context, isbn int64) (Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	book, ok := ms.books[isbn]
	if !ok {
		return Book{}, ErrBookNotFound
	}
	return cloneBook(book), nil
}

// FindByTitleContaining returns books whose title contains substring, ignoring case.
func (ms *memoryBookStorage) FindByTitleContaining(_ context.Context, substring string) ([]Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	books := []Book{}
	for _, isbn := range ms.order {
		if b := ms.books[isbn]; containsFold(b.Title, substring) {
			books = append(books, cloneBook(b))
		}
	}
	return books, nil
}

// Save inserts or replaces a book keyed by its isbn.
func (ms *memoryBookStorage) Save(_ context.Context, book Book) (Book, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	folded := foldCase(book.Title)
	if owner, ok := ms.titles[folded]; ok && owner != book.ISBN {
		return Book{}, ErrDuplicateTitle
	}
	if old, ok := ms.books[book.ISBN]; ok {
		delete(ms.titles, foldCase(old.Title))
	} else {
		ms.order = append(ms.order, book.ISBN)
	}
	book = cloneBook(book)
	ms.books[book.ISBN] = book
	ms.titles[folded] = book.ISBN
	return cloneBook(book), nil
}

// DeleteByID removes a book record based on its isbn.
func (ms *memoryBookStorage) DeleteByID(_ context.Context, isbn int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	book, ok := ms.books[isbn]
	if !ok {
		return ErrBookNotFound
	}
	delete(ms.books, isbn)
	delete(ms.titles, foldCase(book.Title))
	for i, id := range ms.order {
		if id == isbn {
			ms.order = append(ms.order[:i], ms.order[i+1:]...)
			break
		}
	}
	return nil
}

// ExistsByID reports whether a book is stored under isbn.
func (ms *memoryBookStorage) ExistsByID(_ context.Context, isbn int64) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	_, ok := ms.books[isbn]
	return ok, nil
}

// cloneBook detaches the genre slice so callers never share storage memory.
func cloneBook(b Book) Book {
	if b.Genre != nil {
		b.Genre = append([]string(nil), b.Genre...)
	}
	return b
}
