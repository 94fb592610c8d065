package types

import (
	"fmt"
	"strings"
	"unicode"
)

// ISBN is the normalized digit string of a 10- or 13-digit ISBN.
type ISBN string

// NewISBN strips separators and accepts only 10 or 13 digit identifiers.
func NewISBN(raw string) (ISBN, error) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '-' || r == ' ':
			// separators are ignored
		case (r == 'x' || r == 'X') && digits.Len() == 9:
			// ISBN-10 check character
			digits.WriteRune('X')
		default:
			return "", fmt.Errorf("isbn contains invalid character %q", r)
		}
	}
	normalized := digits.String()
	if len(normalized) != 10 && len(normalized) != 13 {
		return "", fmt.Errorf("isbn must contain 10 or 13 digits, got %d", len(normalized))
	}
	return ISBN(normalized), nil
}

func (i ISBN) String() string {
	return string(i)
}
