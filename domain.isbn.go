package main

import (
	"math/rand/v2"
	"strconv"
	"sync"
)

// DefaultISBNPrefix is the EAN prefix of every generated identifier.
const DefaultISBNPrefix = "978"

var _ ISBNGenerator = (*RandomISBNGenerator)(nil) // ensure RandomISBNGenerator implements ISBNGenerator.

// ISBNGenerator is an interface for getting a new catalogue identifier.
// Generated values are not guaranteed to be unique.
type ISBNGenerator interface {
	Generate() int64
}

// RandomISBNGenerator builds ISBN-13 identifiers from a fixed 3-digit
// prefix, 9 random digits and the EAN-13 check digit.
type RandomISBNGenerator struct {
	mu     sync.Mutex
	prefix string
	rnd    *rand.Rand
}

// NewISBNGenerator returns a ready to use generator. An invalid prefix
// falls back to DefaultISBNPrefix.
func NewISBNGenerator(prefix string) *RandomISBNGenerator {
	return NewISBNGeneratorWithSource(prefix, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewISBNGeneratorWithSource is like NewISBNGenerator with a custom source.
func NewISBNGeneratorWithSource(prefix string, src rand.Source) *RandomISBNGenerator {
	if !isDigits(prefix) || len(prefix) != 3 {
		prefix = DefaultISBNPrefix
	}
	return &RandomISBNGenerator{prefix: prefix, rnd: rand.New(src)}
}

// Generate provides a new 13-digit identifier.
func (g *RandomISBNGenerator) Generate() int64 {
	digits := make([]byte, 0, 13)
	digits = append(digits, g.prefix...)
	g.mu.Lock()
	for i := 0; i < 9; i++ {
		digits = append(digits, byte('0'+g.rnd.IntN(10)))
	}
	g.mu.Unlock()
	digits = append(digits, byte('0'+ISBNCheckDigit(string(digits))))
	isbn, _ := strconv.ParseInt(string(digits), 10, 64)
	return isbn
}

// ISBNCheckDigit computes the EAN-13 check digit of the given 12 digits.
// Even positions weigh 1 and odd positions weigh 3.
func ISBNCheckDigit(digits string) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10
}

// IsValidISBN reports whether isbn has 13 digits and a correct check digit.
func IsValidISBN(isbn int64) bool {
	s := strconv.FormatInt(isbn, 10)
	if len(s) != 13 {
		return false
	}
	return int(s[12]-'0') == ISBNCheckDigit(s[:12])
}

// ParseISBN converts a path or query value into a valid identifier.
func ParseISBN(value string) (int64, bool) {
	if len(value) != 13 || !isDigits(value) {
		return 0, false
	}
	isbn, err := strconv.ParseInt(value, 10, 64)
	if err != nil || !IsValidISBN(isbn) {
		return 0, false
	}
	return isbn, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
