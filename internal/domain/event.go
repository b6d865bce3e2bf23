package domain

// StatusChangedEvent is published after every successful moderation decision.
type StatusChangedEvent struct {
	Status             ListingStatus `json:"status"`
	RecipientEmail     string        `json:"recipientEmail"`
	ListingID          int64         `json:"listingId"`
	ListingTitle       string        `json:"listingTitle"`
	ListingDescription string        `json:"listingDescription"`
}

func NewStatusChangedEvent(l *Listing) StatusChangedEvent {
	return StatusChangedEvent{
		Status:             l.Status,
		RecipientEmail:     l.OwnerEmail,
		ListingID:          l.ID,
		ListingTitle:       l.Title,
		ListingDescription: l.Description,
	}
}
