package main

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

// Field limits of a catalogue record.
const (
	MaxTitleLength       = 255
	MaxAuthorLength      = 255
	MaxDescriptionLength = 5000
	MaxGenres            = 10
	MinRate              = 1.0
	MaxRate              = 5.0
	PublicationDateFmt   = "2006-01-02"
)

var notBlank = validation.NewStringRuleWithError(
	func(s string) bool { return strings.TrimSpace(s) != "" },
	validation.NewError("validation_not_blank", "cannot be blank"),
)

func positivePrice(value interface{}) error {
	price, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal number")
	}
	if !price.IsPositive() {
		return errors.New("must be greater than 0")
	}
	return nil
}

// uniqueGenres rejects genres equal once case folded.
func uniqueGenres(value interface{}) error {
	genres, ok := value.([]string)
	if !ok {
		return errors.New("must be a list of genres")
	}
	seen := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		key := foldCase(strings.TrimSpace(g))
		if _, dup := seen[key]; dup {
			return errors.New("must not contain duplicate genres")
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateBook applies the full rule set and returns every offending field.
// An empty result means the book is valid.
func ValidateBook(book Book) []FieldError {
	err := validation.ValidateStruct(&book,
		validation.Field(&book.Title,
			validation.Required.Error("title is required"),
			notBlank,
			validation.RuneLength(1, MaxTitleLength),
		),
		validation.Field(&book.Author,
			validation.Required.Error("author is required"),
			notBlank,
			validation.RuneLength(1, MaxAuthorLength),
		),
		validation.Field(&book.Price, validation.By(positivePrice)),
		validation.Field(&book.Cover,
			is.RequestURL.Error("must be a valid URL"),
			is.URL.Error("must be a valid URL"),
		),
		validation.Field(&book.Description, validation.RuneLength(0, MaxDescriptionLength)),
		validation.Field(&book.PublicationDate,
			validation.Date(PublicationDateFmt).Error("must be a date in YYYY-MM-DD format"),
		),
		validation.Field(&book.Genre,
			validation.Required.Error("at least one genre is required"),
			validation.Length(1, MaxGenres).Error("must contain between 1 and 10 genres"),
			validation.Each(validation.Required, notBlank),
			validation.By(uniqueGenres),
		),
		validation.Field(&book.Rate,
			validation.Required.Error("must be between 1 and 5"),
			validation.Min(MinRate).Error("must be between 1 and 5"),
			validation.Max(MaxRate).Error("must be between 1 and 5"),
		),
	)
	return toFieldErrors(err)
}

// ValidatePatch applies the partial rule set: each supplied field is checked
// against its full rule, absent fields are ignored.
func ValidatePatch(patch BookPatch) []FieldError {
	supplied := patch.suppliedFields()
	var fields []FieldError
	for _, fe := range ValidateBook(patch.ApplyTo(Book{})) {
		if supplied[fe.Field] {
			fields = append(fields, fe)
		}
	}
	return fields
}

// suppliedFields returns the json names of the fields present in the patch.
func (p BookPatch) suppliedFields() map[string]bool {
	return map[string]bool{
		"title":           p.Title != nil,
		"author":          p.Author != nil,
		"price":           p.Price != nil,
		"cover":           p.Cover != nil,
		"description":     p.Description != nil,
		"publicationDate": p.PublicationDate != nil,
		"genre":           p.Genre != nil,
		"rate":            p.Rate != nil,
		"display":         p.Display != nil,
	}
}

// toFieldErrors flattens ozzo validation errors into a stable ordered list.
func toFieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "book", Message: err.Error()}}
	}
	keys := make([]string, 0, len(verrs))
	for k := range verrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]FieldError, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, FieldError{Field: k, Message: verrs[k].Error()})
	}
	return fields
}
