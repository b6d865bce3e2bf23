package domain

import (
	"fmt"
	"strings"
)

type ListingStatus string

const (
	StatusPending  ListingStatus = "PENDING"
	StatusApproved ListingStatus = "APPROVED"
	StatusRejected ListingStatus = "REJECTED"
	StatusActive   ListingStatus = "ACTIVE"
	StatusInactive ListingStatus = "INACTIVE"
)

// LiveStatuses is the publicly browsable bucket. Approval produces APPROVED directly;
// ACTIVE is treated as the same state.
var LiveStatuses = []ListingStatus{StatusApproved, StatusActive}

var transitions = map[ListingStatus]map[ListingStatus]struct{}{
	StatusPending:  {StatusApproved: {}, StatusRejected: {}},
	StatusApproved: {StatusInactive: {}},
	StatusActive:   {StatusInactive: {}},
	StatusRejected: {},
	StatusInactive: {},
}

func ParseListingStatus(value string) (ListingStatus, error) {
	status := ListingStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown listing status %q", ErrInvalidArgument, value)
	}
	return status, nil
}

func (s ListingStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s ListingStatus) IsLive() bool {
	return s == StatusApproved || s == StatusActive
}

func (s ListingStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition returns whether a listing may move from the current status to the target status.
func CanTransition(from, to ListingStatus) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsModerationOutcome reports whether target is a status a moderator may assign.
func IsModerationOutcome(target ListingStatus) bool {
	return CanTransition(StatusPending, target)
}
