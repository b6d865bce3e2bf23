package domain

import "github.com/shopspring/decimal"

const (
	DefaultPage    = 1
	DefaultSize    = 10
	MaxSize        = 100
	DefaultSortBy  = "id"
	DefaultSortDir = "asc"
)

// QueryFilter describes a listing query. The exported fields come from the request;
// the unexported ones are assigned only by server code through the With*/For* methods.
type QueryFilter struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string

	Title       string
	Description string
	City        string
	PriceFrom   *decimal.Decimal
	PriceTo     *decimal.Decimal
	Status      *ListingStatus

	ownerID         int64
	favoritedBy     int64
	defaultStatuses []ListingStatus
	publicOnly      bool
}

func DefaultQueryFilter() QueryFilter {
	return QueryFilter{
		Page:    DefaultPage,
		Size:    DefaultSize,
		SortBy:  DefaultSortBy,
		SortDir: DefaultSortDir,
	}
}

// ZeroBasedPage converts the 1-based request page to a page index.
func (f QueryFilter) ZeroBasedPage() int {
	return max(f.Page-1, 0)
}

func (f QueryFilter) Offset() int {
	return f.ZeroBasedPage() * f.Size
}

func (f QueryFilter) WithOwner(userID int64) QueryFilter {
	f.ownerID = userID
	return f
}

func (f QueryFilter) WithFavoritesOf(userID int64) QueryFilter {
	f.favoritedBy = userID
	return f
}

// ForPublic hides pending listings and, when no status was requested, restricts to the live bucket.
func (f QueryFilter) ForPublic() QueryFilter {
	f.publicOnly = true
	f.defaultStatuses = append([]ListingStatus(nil), LiveStatuses...)
	return f
}

func (f QueryFilter) OwnerID() (int64, bool) {
	return f.ownerID, f.ownerID != 0
}

func (f QueryFilter) FavoritedBy() (int64, bool) {
	return f.favoritedBy, f.favoritedBy != 0
}

func (f QueryFilter) DefaultStatuses() []ListingStatus {
	return f.defaultStatuses
}

func (f QueryFilter) PublicOnly() bool {
	return f.publicOnly
}
