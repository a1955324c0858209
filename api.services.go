package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// DefaultMaxISBNAttempts bounds identifier regeneration on collision.
const DefaultMaxISBNAttempts = 5

// BookServiceProvider exposes the catalogue operations to the transport layer.
type BookServiceProvider interface {
	List(ctx context.Context) ([]Book, error)
	GetOne(ctx context.Context, isbn int64) (Book, error)
	Search(ctx context.Context, criteria SearchCriteria) ([]Book, error)
	Create(ctx context.Context, book Book) (Book, error)
	Update(ctx context.Context, isbn int64, book Book) (Book, error)
	Patch(ctx context.Context, isbn int64, patch BookPatch) (Book, error)
	Delete(ctx context.Context, isbn int64) (bool, error)
}

// BookService is the catalogue manager. It validates input, enforces
// identity and title uniqueness then delegates persistence to storage.
type BookService struct {
	logger      *zap.Logger
	isbns       ISBNGenerator
	storage     BookStorage
	queue       Queuer
	maxAttempts int
}

// NewBookService provides a catalogue manager. The queue is optional and
// receives every successful mutation when set.
func NewBookService(logger *zap.Logger, config *Config, isbns ISBNGenerator, storage BookStorage, queue Queuer) BookServiceProvider {
	attempts := DefaultMaxISBNAttempts
	if config != nil && config.Catalogue.MaxISBNAttempts > 0 {
		attempts = config.Catalogue.MaxISBNAttempts
	}
	return &BookService{
		logger:      logger,
		isbns:       isbns,
		storage:     storage,
		queue:       queue,
		maxAttempts: attempts,
	}
}

// List returns every stored book.
func (bs *BookService) List(ctx context.Context) ([]Book, error) {
	books, err := bs.storage.FindAll(ctx)
	if err != nil {
		bs.logger.Error("service: failed to list books", zap.Error(err))
		return nil, &StorageError{Op: "find all", Err: err}
	}
	if books == nil {
		books = []Book{}
	}
	return books, nil
}

// GetOne returns the book identified by isbn.
func (bs *BookService) GetOne(ctx context.Context, isbn int64) (Book, error) {
	book, err := bs.storage.FindByID(ctx, isbn)
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, &NotFoundError{ISBN: isbn}
	}
	if err != nil {
		bs.logger.Error("service: failed to get book", zap.Int64("book.isbn", isbn), zap.Error(err))
		return Book{}, &StorageError{Op: "find by id", Err: err}
	}
	return book, nil
}

// Search filters the full catalogue snapshot. An empty result is not an error.
func (bs *BookService) Search(ctx context.Context, criteria SearchCriteria) ([]Book, error) {
	books, err := bs.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBooks(books, criteria), nil
}

// Create validates and stores a new book under a freshly generated isbn.
func (bs *BookService) Create(ctx context.Context, book Book) (Book, error) {
	if err := NewValidationError(ValidateBook(book)); err != nil {
		return Book{}, err
	}
	if err := bs.ensureUniqueTitle(ctx, book.Title, 0); err != nil {
		return Book{}, err
	}
	isbn, err := bs.nextISBN(ctx)
	if err != nil {
		return Book{}, err
	}
	book.ISBN = isbn

	saved, err := bs.storage.Save(ctx, book)
	if err != nil {
		bs.logger.Error("service: failed to create book", zap.Int64("book.isbn", isbn), zap.Error(err))
		return Book{}, bs.storageError("save", book, err)
	}
	bs.publish(ctx, CreateChange, saved)
	bs.logger.Info("service: book created", zap.Int64("book.isbn", saved.ISBN), zap.String("book.title", saved.Title))
	return saved, nil
}

// Update replaces every mutable field of an existing book.
func (bs *BookService) Update(ctx context.Context, isbn int64, book Book) (Book, error) {
	if _, err := bs.GetOne(ctx, isbn); err != nil {
		return Book{}, err
	}
	if err := NewValidationError(ValidateBook(book)); err != nil {
		return Book{}, err
	}
	book.ISBN = isbn
	if err := bs.ensureUniqueTitle(ctx, book.Title, isbn); err != nil {
		return Book{}, err
	}

	saved, err := bs.storage.Save(ctx, book)
	if err != nil {
		bs.logger.Error("service: failed to update book", zap.Int64("book.isbn", isbn), zap.Error(err))
		return Book{}, bs.storageError("save", book, err)
	}
	bs.publish(ctx, UpdateChange, saved)
	bs.logger.Info("service: book updated", zap.Int64("book.isbn", isbn))
	return saved, nil
}

// Patch applies the supplied fields of an existing book. Any invalid
// field rejects the whole patch.
func (bs *BookService) Patch(ctx context.Context, isbn int64, patch BookPatch) (Book, error) {
	current, err := bs.GetOne(ctx, isbn)
	if err != nil {
		return Book{}, err
	}
	fields := ValidatePatch(patch)
	if patch.ISBN != nil && *patch.ISBN != isbn {
		fields = append(fields, FieldError{Field: "isbn", Message: "cannot be modified"})
	}
	if err := NewValidationError(fields); err != nil {
		return Book{}, err
	}

	updated := patch.ApplyTo(current)
	if patch.Title != nil {
		if err := bs.ensureUniqueTitle(ctx, updated.Title, isbn); err != nil {
			return Book{}, err
		}
	}
	if patch.IsEmpty() {
		return current, nil
	}

	saved, err := bs.storage.Save(ctx, updated)
	if err != nil {
		bs.logger.Error("service: failed to patch book", zap.Int64("book.isbn", isbn), zap.Error(err))
		return Book{}, bs.storageError("save", updated, err)
	}
	bs.publish(ctx, UpdateChange, saved)
	bs.logger.Info("service: book patched", zap.Int64("book.isbn", isbn))
	return saved, nil
}

// Delete removes a book. It returns false without error when the isbn is unknown.
func (bs *BookService) Delete(ctx context.Context, isbn int64) (bool, error) {
	exists, err := bs.storage.ExistsByID(ctx, isbn)
	if err != nil {
		bs.logger.Error("service: failed to check book existence", zap.Int64("book.isbn", isbn), zap.Error(err))
		return false, &StorageError{Op: "exists by id", Err: err}
	}
	if !exists {
		bs.logger.Warn("service: no book to delete", zap.Int64("book.isbn", isbn))
		return false, nil
	}

	err = bs.storage.DeleteByID(ctx, isbn)
	if errors.Is(err, ErrBookNotFound) {
		return false, nil
	}
	if err != nil {
		bs.logger.Error("service: failed to delete book", zap.Int64("book.isbn", isbn), zap.Error(err))
		return false, &StorageError{Op: "delete by id", Err: err}
	}
	bs.publish(ctx, DeleteChange, Book{ISBN: isbn})
	bs.logger.Info("service: book deleted", zap.Int64("book.isbn", isbn))
	return true, nil
}

// ensureUniqueTitle fails when another book than self already owns title.
func (bs *BookService) ensureUniqueTitle(ctx context.Context, title string, self int64) error {
	candidates, err := bs.storage.FindByTitleContaining(ctx, title)
	if err != nil {
		bs.logger.Error("service: failed to check title uniqueness", zap.String("book.title", title), zap.Error(err))
		return &StorageError{Op: "find by title", Err: err}
	}
	for _, b := range candidates {
		if b.ISBN != self && equalFold(b.Title, title) {
			return &DuplicateTitleError{Title: title}
		}
	}
	return nil
}

// nextISBN generates identifiers until an unused one is found.
func (bs *BookService) nextISBN(ctx context.Context) (int64, error) {
	var isbn int64
	for i := 0; i < bs.maxAttempts; i++ {
		isbn = bs.isbns.Generate()
		exists, err := bs.storage.ExistsByID(ctx, isbn)
		if err != nil {
			return 0, &StorageError{Op: "exists by id", Err: err}
		}
		if !exists {
			return isbn, nil
		}
		bs.logger.Warn("service: generated isbn already in use", zap.Int64("book.isbn", isbn), zap.Int("attempt", i+1))
	}
	return 0, &ConflictError{ISBN: isbn, Reason: "could not generate an unused isbn"}
}

// storageError maps repository failures onto the catalogue taxonomy.
func (bs *BookService) storageError(op string, book Book, err error) error {
	var conflict *ConflictError
	switch {
	case errors.Is(err, ErrDuplicateTitle):
		return &DuplicateTitleError{Title: book.Title}
	case errors.As(err, &conflict):
		return conflict
	case errors.Is(err, ErrConflict):
		return &ConflictError{ISBN: book.ISBN, Reason: err.Error()}
	case errors.Is(err, ErrBookNotFound):
		return &NotFoundError{ISBN: book.ISBN}
	}
	return &StorageError{Op: op, Err: err}
}

// publish pushes a mutation onto the change queue if one is configured.
// A failed push is logged and never fails the operation.
func (bs *BookService) publish(ctx context.Context, op string, book Book) {
	if bs.queue == nil {
		return
	}
	if err := bs.queue.Push(ctx, op, book); err != nil {
		bs.logger.Error("service: failed to push book to queue", zap.String("op", op), zap.Int64("book.isbn", book.ISBN), zap.Error(err))
	}
}
