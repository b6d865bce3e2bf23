package domain

import "time"

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	ListingID int64     `json:"listingId"`
	CreatedAt time.Time `json:"createdAt"`
}
