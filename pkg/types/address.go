package types

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	maxStreetLen = 200
	maxCityLen   = 100
	maxStateLen  = 100

	// DefaultCountry is assumed when callers omit the country.
	DefaultCountry = "Denmark"
)

// Address is an immutable delivery address value object.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country"`
}

// NewAddress validates and normalizes the address fields.
func NewAddress(street, city, postalCode, state, country string) (Address, error) {
	street = strings.TrimSpace(street)
	city = strings.TrimSpace(city)
	postalCode = strings.TrimSpace(postalCode)
	state = strings.TrimSpace(state)
	country = strings.TrimSpace(country)

	if street == "" {
		return Address{}, fmt.Errorf("street is required")
	}
	if len(street) > maxStreetLen {
		return Address{}, fmt.Errorf("street exceeds %d characters", maxStreetLen)
	}
	if city == "" {
		return Address{}, fmt.Errorf("city is required")
	}
	if len(city) > maxCityLen {
		return Address{}, fmt.Errorf("city exceeds %d characters", maxCityLen)
	}
	if !isFourDigits(postalCode) {
		return Address{}, fmt.Errorf("postal code must be exactly 4 digits, got %q", postalCode)
	}
	if len(state) > maxStateLen {
		return Address{}, fmt.Errorf("state exceeds %d characters", maxStateLen)
	}
	if country == "" {
		country = DefaultCountry
	}

	return Address{
		Street:     street,
		City:       city,
		PostalCode: postalCode,
		State:      state,
		Country:    country,
	}, nil
}

// IsZero reports whether the address carries no data.
func (a Address) IsZero() bool {
	return a == Address{}
}

func isFourDigits(value string) bool {
	if len(value) != 4 {
		return false
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
