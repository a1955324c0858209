package main

import (
	"context"

	"github.com/shopspring/decimal"
)

// Book represents a catalogue record. ISBN is assigned by the catalogue.
type Book struct {
	ISBN            int64           `json:"isbn"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Price           decimal.Decimal `json:"price"`
	Cover           string          `json:"cover,omitempty"`
	Description     string          `json:"description,omitempty"`
	PublicationDate string          `json:"publicationDate,omitempty"`
	Genre           []string        `json:"genre"`
	Rate            float64         `json:"rate"`
	Display         bool            `json:"display"`
}

// BookPatch carries a partial update. A nil field was not supplied.
type BookPatch struct {
	ISBN            *int64           `json:"isbn,omitempty"`
	Title           *string          `json:"title,omitempty"`
	Author          *string          `json:"author,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Cover           *string          `json:"cover,omitempty"`
	Description     *string          `json:"description,omitempty"`
	PublicationDate *string          `json:"publicationDate,omitempty"`
	Genre           *[]string        `json:"genre,omitempty"`
	Rate            *float64         `json:"rate,omitempty"`
	Display         *bool            `json:"display,omitempty"`
}

// IsEmpty reports whether no field was supplied.
func (p BookPatch) IsEmpty() bool {
	return p == (BookPatch{})
}

// ApplyTo returns a copy of book with every supplied field replaced.
// The isbn is never replaced.
func (p BookPatch) ApplyTo(book Book) Book {
	if p.Title != nil {
		book.Title = *p.Title
	}
	if p.Author != nil {
		book.Author = *p.Author
	}
	if p.Price != nil {
		book.Price = *p.Price
	}
	if p.Cover != nil {
		book.Cover = *p.Cover
	}
	if p.Description != nil {
		book.Description = *p.Description
	}
	if p.PublicationDate != nil {
		book.PublicationDate = *p.PublicationDate
	}
	if p.Genre != nil {
		book.Genre = append([]string(nil), (*p.Genre)...)
	}
	if p.Rate != nil {
		book.Rate = *p.Rate
	}
	if p.Display != nil {
		book.Display = *p.Display
	}
	return book
}

// BookStorage defines the persistence operations the catalogue relies on.
// Save inserts or replaces a record keyed by its isbn and must reject a title
// already owned by another record with ErrDuplicateTitle.
type BookStorage interface {
	FindAll(ctx context.Context) ([]Book, error)
	FindByID(ctx context.Context, isbn int64) (Book, error)
	FindByTitleContaining(ctx context.Context, substring string) ([]Book, error)
	Save(ctx context.Context, book Book) (Book, error)
	DeleteByID(ctx context.Context, isbn int64) error
	ExistsByID(ctx context.Context, isbn int64) (bool, error)
}
