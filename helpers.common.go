package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type ContextKey string

const (
	RequestIDPrefix         string     = "r"
	RequestIDContextKey     ContextKey = "request.id"
	RequestNumberContextKey ContextKey = "request.number"
	ConnContextKey          ContextKey = "http-conn"
)

// maxBodyBytes caps the size of book payloads.
const maxBodyBytes = 1 << 20

// Query parameters accepted by the books search.
const (
	QueryTitle           = "title"
	QueryAuthor          = "author"
	QueryGenre           = "genre"
	QueryISBN            = "isbn"
	QueryRate            = "rate"
	QueryDisplay         = "display"
	QueryPublicationDate = "publicationDate"
)

var errEmptyBody = errors.New("request body is empty")

// GetValueFromContext returns the value of a given key in the context
// if this key is not available, it returns an empty string.
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val, ok := ctx.Value(contextKey).(string); ok {
		return val
	}
	return ""
}

// GetRequestNumberFromContext returns the request number set in
// the context. if not previously set then it returns 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val, ok := ctx.Value(RequestNumberContextKey).(uint64); ok {
		return val
	}
	return 0
}

// decodeJSONBody reads a single json document from the request body into v.
func decodeJSONBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

// DecodeBookRequestBody reads the content of a book creation or full update request.
func DecodeBookRequestBody(r *http.Request, book *Book) error {
	return decodeJSONBody(r, book)
}

// DecodeBookPatchRequestBody reads the content of a book partial update request.
// Fields absent from the document stay nil.
func DecodeBookPatchRequestBody(r *http.Request, patch *BookPatch) error {
	return decodeJSONBody(r, patch)
}

// ParseSearchCriteria builds search criteria from the query parameters. Each
// malformed value is reported as a field error.
func ParseSearchCriteria(query url.Values) (SearchCriteria, []FieldError) {
	var c SearchCriteria
	var fields []FieldError

	text := func(key string) *string {
		if !query.Has(key) {
			return nil
		}
		v := strings.TrimSpace(query.Get(key))
		return &v
	}
	c.Title = text(QueryTitle)
	c.Author = text(QueryAuthor)
	c.Genre = text(QueryGenre)
	c.PublicationDate = text(QueryPublicationDate)

	if query.Has(QueryISBN) {
		if isbn, ok := ParseISBN(query.Get(QueryISBN)); ok {
			c.ISBN = &isbn
		} else {
			fields = append(fields, FieldError{Field: QueryISBN, Message: "must be a 13 digits isbn"})
		}
	}

	if query.Has(QueryRate) {
		if rate, err := strconv.ParseFloat(query.Get(QueryRate), 64); err == nil {
			c.Rate = &rate
		} else {
			fields = append(fields, FieldError{Field: QueryRate, Message: "must be a number"})
		}
	}

	if query.Has(QueryDisplay) {
		if display, err := strconv.ParseBool(query.Get(QueryDisplay)); err == nil {
			c.Display = &display
		} else {
			fields = append(fields, FieldError{Field: QueryDisplay, Message: "must be true or false"})
		}
	}

	return c, fields
}

// HasSearchParameters reports whether the query carries at least one search key.
func HasSearchParameters(query url.Values) bool {
	for _, key := range []string{QueryTitle, QueryAuthor, QueryGenre, QueryISBN, QueryRate, QueryDisplay, QueryPublicationDate} {
		if query.Has(key) {
			return true
		}
	}
	return false
}

// ParseISBNParam converts the isbn path parameter or returns a validation error.
func ParseISBNParam(value string) (int64, error) {
	isbn, ok := ParseISBN(value)
	if !ok {
		return 0, NewValidationError([]FieldError{{Field: "isbn", Message: fmt.Sprintf("%q is not a valid isbn", value)}})
	}
	return isbn, nil
}

// GetRequestSourceIP helps find the source IP of the caller.
func GetRequestSourceIP(r *http.Request) string {
	if ip := r.Header.Get("X-REAL-IP"); net.ParseIP(ip) != nil {
		return ip
	}

	for _, ip := range strings.Split(r.Header.Get("X-FORWARDED-FOR"), ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}

// IsAppRunningInDocker checks the existence of the .dockerenv
// file at the root directory.
func IsAppRunningInDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// SaveConnInContext is the hook used by the server under ConnContext.
// It keeps the connection for deadline updates by *CustomResponseWriter.
func SaveConnInContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, ConnContextKey, c)
}

// GetConnFromContext returns the connection saved into the context or nil.
func GetConnFromContext(ctx context.Context) net.Conn {
	c, _ := ctx.Value(ConnContextKey).(net.Conn)
	return c
}
