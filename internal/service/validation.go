package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"listing-service/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	titleMinLen       = 2
	titleMaxLen       = 255
	descriptionMinLen = 2
	descriptionMaxLen = 2000
	cityMinLen        = 2
	cityMaxLen        = 255
	priceScale        = 2
)

// maxPrice is the largest value the DECIMAL(12,2) price column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

func checkLength(v *domain.ValidationError, field, value string, minLen, maxLen int) {
	value = strings.TrimSpace(value)
	if value == "" {
		v.Add(field, fmt.Sprintf("%s is required", field))
		return
	}
	if n := utf8.RuneCountInString(value); n < minLen || n > maxLen {
		v.Add(field, fmt.Sprintf("%s must be between %d and %d characters", field, minLen, maxLen))
	}
}

// ValidateListingFields checks a create or update payload.
func ValidateListingFields(fields domain.ListingFields) error {
	v := domain.NewValidationError()

	checkLength(v, "title", fields.Title, titleMinLen, titleMaxLen)
	checkLength(v, "description", fields.Description, descriptionMinLen, descriptionMaxLen)
	checkLength(v, "city", fields.City, cityMinLen, cityMaxLen)

	switch {
	case fields.Price.IsNegative():
		v.Add("price", "price must be greater than or equal to 0")
	case fields.Price.GreaterThan(maxPrice):
		v.Add("price", fmt.Sprintf("price must not exceed %s", maxPrice.StringFixed(priceScale)))
	case !fields.Price.Equal(fields.Price.Truncate(priceScale)):
		v.Add("price", fmt.Sprintf("price must have at most %d decimal places", priceScale))
	}

	return v.Err()
}

// ValidateQuery checks paging and price bounds before a filter reaches the store.
func ValidateQuery(filter domain.QueryFilter) error {
	v := domain.NewValidationError()

	if filter.Page < 1 {
		v.Add("page", "page must be greater than or equal to 1")
	}
	if filter.Size < 1 || filter.Size > domain.MaxSize {
		v.Add("size", fmt.Sprintf("size must be between 1 and %d", domain.MaxSize))
	}
	if filter.PriceFrom != nil && filter.PriceFrom.IsNegative() {
		v.Add("priceFrom", "priceFrom must be greater than or equal to 0")
	}
	if filter.PriceTo != nil && filter.PriceTo.IsNegative() {
		v.Add("priceTo", "priceTo must be greater than or equal to 0")
	}
	if filter.PriceFrom != nil && filter.PriceTo != nil && filter.PriceFrom.GreaterThan(*filter.PriceTo) {
		v.Add("priceFrom", "priceFrom must not be greater than priceTo")
	}

	return v.Err()
}
