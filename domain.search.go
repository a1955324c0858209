package main

import (
	"strings"

	"golang.org/x/text/cases"
)

// SearchCriteria holds independently optional filters. A nil field
// imposes no constraint and all supplied filters must match.
type SearchCriteria struct {
	Title           *string
	Author          *string
	Genre           *string
	ISBN            *int64
	Rate            *float64
	Display         *bool
	PublicationDate *string
}

// IsEmpty reports whether no filter was supplied.
func (c SearchCriteria) IsEmpty() bool {
	return c == (SearchCriteria{})
}

// Matches reports whether book satisfies every supplied filter.
func (c SearchCriteria) Matches(book Book) bool {
	if c.Title != nil && !containsFold(book.Title, *c.Title) {
		return false
	}
	if c.Author != nil && !containsFold(book.Author, *c.Author) {
		return false
	}
	if c.Genre != nil && !hasGenre(book.Genre, *c.Genre) {
		return false
	}
	if c.ISBN != nil && book.ISBN != *c.ISBN {
		return false
	}
	if c.Rate != nil && book.Rate != *c.Rate {
		return false
	}
	if c.Display != nil && book.Display != *c.Display {
		return false
	}
	if c.PublicationDate != nil && book.PublicationDate != *c.PublicationDate {
		return false
	}
	return true
}

// FilterBooks returns the books matching the criteria in their original order.
func FilterBooks(books []Book, c SearchCriteria) []Book {
	matches := []Book{}
	for _, b := range books {
		if c.Matches(b) {
			matches = append(matches, b)
		}
	}
	return matches
}

// foldCase returns the case folded form of s used for every
// case-insensitive comparison of the catalogue.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

func equalFold(a, b string) bool {
	return foldCase(a) == foldCase(b)
}

func containsFold(s, substr string) bool {
	return strings.Contains(foldCase(s), foldCase(substr))
}

func hasGenre(genres []string, genre string) bool {
	for _, g := range genres {
		if equalFold(g, genre) {
			return true
		}
	}
	return false
}
