package main

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// This file contains mocks definitions needed to perform unit tests.

// MockBookStorage implements BookStorage with overridable functions.
type MockBookStorage struct {
	FindAllFunc               func(ctx context.Context) ([]Book, error)
	FindByIDFunc              func(ctx context.Context, isbn int64) (Book, error)
	FindByTitleContainingFunc func(ctx context.Context, substring string) ([]Book, error)
	SaveFunc                  func(ctx context.Context, book Book) (Book, error)
	DeleteByIDFunc            func(ctx context.Context, isbn int64) error
	ExistsByIDFunc            func(ctx context.Context, isbn int64) (bool, error)
}

func (m *MockBookStorage) FindAll(ctx context.Context) ([]Book, error) {
	return m.FindAllFunc(ctx)
}

func (m *MockBookStorage) FindByID(ctx context.Context, isbn int64) (Book, error) {
	return m.FindByIDFunc(ctx, isbn)
}

// FindByTitleContaining defaults to no match when not mocked.
func (m *MockBookStorage) FindByTitleContaining(ctx context.Context, substring string) ([]Book, error) {
	if m.FindByTitleContainingFunc == nil {
		return []Book{}, nil
	}
	return m.FindByTitleContainingFunc(ctx, substring)
}

func (m *MockBookStorage) Save(ctx context.Context, book Book) (Book, error) {
	return m.SaveFunc(ctx, book)
}

func (m *MockBookStorage) DeleteByID(ctx context.Context, isbn int64) error {
	return m.DeleteByIDFunc(ctx, isbn)
}

// ExistsByID defaults to an unknown isbn when not mocked.
func (m *MockBookStorage) ExistsByID(ctx context.Context, isbn int64) (bool, error) {
	if m.ExistsByIDFunc == nil {
		return false, nil
	}
	return m.ExistsByIDFunc(ctx, isbn)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns `Sun, 02 Jul 2023 00:00:00 UTC`.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}

// MockISBNGenerator returns the configured identifiers in turn and
// repeats the last one once exhausted.
type MockISBNGenerator struct {
	mu    sync.Mutex
	isbns []int64
	calls int
}

func NewMockISBNGenerator(isbns ...int64) *MockISBNGenerator {
	return &MockISBNGenerator{isbns: isbns}
}

func (mg *MockISBNGenerator) Generate() int64 {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	i := mg.calls
	if i >= len(mg.isbns) {
		i = len(mg.isbns) - 1
	}
	mg.calls++
	return mg.isbns[i]
}

// Calls returns the number of generated identifiers.
func (mg *MockISBNGenerator) Calls() int {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return mg.calls
}

// MockQueue implements Queuer over a buffered channel.
type MockQueue struct {
	PushErr error
	items   chan Change
}

func NewMockQueue() *MockQueue {
	return &MockQueue{items: make(chan Change, 64)}
}

func (mq *MockQueue) Push(_ context.Context, op string, book Book) error {
	if mq.PushErr != nil {
		return mq.PushErr
	}
	mq.items <- Change{Op: op, Book: book}
	return nil
}

// Pop blocks until a change is queued or ctx is done.
func (mq *MockQueue) Pop(ctx context.Context) (string, Book, error) {
	select {
	case change := <-mq.items:
		return change.Op, change.Book, nil
	case <-ctx.Done():
		return "", Book{}, ctx.Err()
	}
}

// Len returns the number of pending items.
func (mq *MockQueue) Len() int {
	return len(mq.items)
}

// newTestBook returns a book satisfying the full rule set.
func newTestBook(title string) Book {
	return Book{
		Title:           title,
		Author:          "Frank Herbert",
		Price:           decimal.RequireFromString("9.99"),
		Cover:           "https://covers.example.com/dune.jpg",
		Description:     "A desert planet and its spice.",
		PublicationDate: "1965-08-01",
		Genre:           []string{"Science Fiction"},
		Rate:            4.5,
		Display:         true,
	}
}
