package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"silent-auction/internal/domain"
)

// CreateItemParams is the caller-supplied part of a new listing.
type CreateItemParams struct {
	SellerID      string
	Title         string
	Description   string
	Category      domain.Category
	ImageURL      string
	StartingPrice decimal.Decimal
	Deadline      time.Time
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrValidation)
}

// checkCents rejects amounts finer than a cent rather than rounding them.
func checkCents(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(2)) {
		return validationError("%s must have at most two decimal places", field)
	}
	return nil
}

// validateCreateItem normalizes p in place and rejects it if the listing
// cannot be opened at now.
func validateCreateItem(p *CreateItemParams, now time.Time) error {
	p.SellerID = strings.TrimSpace(p.SellerID)
	p.Title = strings.TrimSpace(p.Title)
	if p.Category == "" {
		p.Category = domain.CategoryArt
	}

	if p.SellerID == "" {
		return validationError("seller id is required")
	}
	if p.Title == "" {
		return validationError("title is required")
	}
	if !p.Category.Valid() {
		return validationError("unknown category %q", p.Category)
	}
	if !p.StartingPrice.IsPositive() {
		return validationError("starting price must be greater than zero")
	}
	if err := checkCents("starting price", p.StartingPrice); err != nil {
		return err
	}
	if !p.Deadline.After(now) {
		return validationError("deadline must be in the future")
	}
	return nil
}

func validateBid(itemID, bidderID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(itemID) == "" {
		return amount, validationError("item id is required")
	}
	if strings.TrimSpace(bidderID) == "" {
		return amount, validationError("bidder id is required")
	}
	if !amount.IsPositive() {
		return amount, validationError("bid amount must be greater than zero")
	}
	if err := checkCents("bid amount", amount); err != nil {
		return amount, err
	}
	return amount, nil
}
