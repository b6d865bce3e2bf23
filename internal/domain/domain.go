package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Listing struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	City        string          `json:"city"`
	Status      ListingStatus   `json:"status"`
	OwnerID     int64           `json:"ownerId"`
	OwnerEmail  string          `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ListingFields are the owner-editable attributes of a listing.
type ListingFields struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	City        string          `json:"city"`
}

// NewListing returns a PENDING listing owned by ownerID.
func NewListing(ownerID int64, fields ListingFields, now time.Time) *Listing {
	return &Listing{
		Title:       fields.Title,
		Description: fields.Description,
		Price:       fields.Price,
		City:        fields.City,
		Status:      StatusPending,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (l *Listing) IsPending() bool {
	return l.Status == StatusPending
}

func (l *Listing) IsOwnedBy(userID int64) bool {
	return userID != 0 && l.OwnerID == userID
}

// VisibleTo reports whether viewer may read the listing. A nil viewer is anonymous.
func (l *Listing) VisibleTo(viewer *Principal) bool {
	if !l.IsPending() {
		return true
	}
	if viewer == nil {
		return false
	}
	return l.IsOwnedBy(viewer.UserID) || viewer.IsAdmin()
}

// Edit replaces the editable fields. Only the owner may edit, and only while the listing is pending.
func (l *Listing) Edit(actor *Principal, fields ListingFields, now time.Time) error {
	if actor == nil || !l.IsOwnedBy(actor.UserID) {
		return fmt.Errorf("%w: you are not the owner of this listing", ErrAccessDenied)
	}
	if !l.IsPending() {
		return ErrOnlyPendingUpdatable
	}

	l.Title = fields.Title
	l.Description = fields.Description
	l.Price = fields.Price
	l.City = fields.City
	l.touch(now)
	return nil
}

func (l *Listing) CanBeDeletedBy(actor *Principal) bool {
	if actor == nil {
		return false
	}
	return l.IsOwnedBy(actor.UserID) || actor.IsAdmin()
}

// TransitionTo moves a pending listing to a moderation outcome.
func (l *Listing) TransitionTo(target ListingStatus, now time.Time) error {
	if !l.IsPending() {
		return ErrOnlyPendingUpdatable
	}
	if !CanTransition(l.Status, target) {
		return fmt.Errorf("%w: cannot move listing from %s to %s", ErrInvalidArgument, l.Status, target)
	}

	l.Status = target
	l.touch(now)
	return nil
}

func (l *Listing) touch(now time.Time) {
	if now.Before(l.CreatedAt) {
		now = l.CreatedAt
	}
	l.UpdatedAt = now
}

// ListingView is a listing as returned to a particular viewer.
type ListingView struct {
	*Listing
	IsFavorite *bool `json:"isFavorite,omitempty"`
}
