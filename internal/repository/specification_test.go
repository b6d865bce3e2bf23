package repository

import (
	"errors"
	"testing"

	"listing-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(id int64, title string, price int64, status domain.ListingStatus) *domain.Listing {
	return &domain.Listing{
		ID:          id,
		Title:       title,
		Description: title + " description",
		Price:       decimal.NewFromInt(price),
		City:        "Almaty",
		Status:      status,
		OwnerID:     1,
	}
}

func phones() []*domain.Listing {
	return []*domain.Listing{
		listing(1, "Google Pixel 8", 700, domain.StatusPending),
		listing(2, "iPhone 14", 900, domain.StatusPending),
		listing(3, "Galaxy S23", 400, domain.StatusActive),
		listing(4, "Galaxy S22", 550, domain.StatusActive),
	}
}

func titles(listings []*domain.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.Title)
	}
	return out
}

func TestBuildSpecification_Empty(t *testing.T) {
	spec, err := BuildSpecification(domain.DefaultQueryFilter(), false)
	require.NoError(t, err)

	where, args := spec.Where()
	assert.Empty(t, where)
	assert.Empty(t, args)
	assert.Empty(t, spec.Joins())
	assert.False(t, spec.Distinct())
	assert.Equal(t, "l.id ASC", spec.Order.SQL())
}

func TestBuildSpecification_PriceRange(t *testing.T) {
	price := decimal.NewFromInt(550)
	filter := domain.DefaultQueryFilter()
	filter.PriceFrom = &price
	filter.PriceTo = &price

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	where, args := spec.Where()
	assert.Equal(t, " WHERE l.price >= ? AND l.price <= ?", where)
	assert.Equal(t, []any{"550", "550"}, args)

	data := []*domain.Listing{
		listing(1, "Galaxy S22", 550, domain.StatusActive),
		listing(2, "Galaxy S23", 400, domain.StatusActive),
	}
	assert.Equal(t, []string{"Galaxy S22"}, titles(spec.Apply(data)))
}

func TestBuildSpecification_ActiveSortedByTitle(t *testing.T) {
	status := domain.StatusActive
	filter := domain.DefaultQueryFilter()
	filter.Status = &status
	filter.SortBy = "title"
	filter.SortDir = "asc"

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Galaxy S22", "Galaxy S23"}, titles(spec.Apply(phones())))
	assert.Equal(t, "l.title ASC, l.id ASC", spec.Order.SQL())
}

func TestBuildSpecification_TitleSortIgnoresCase(t *testing.T) {
	filter := domain.DefaultQueryFilter()
	filter.SortBy = "title"
	filter.SortDir = "asc"

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	data := []*domain.Listing{
		listing(1, "cherry", 100, domain.StatusActive),
		listing(2, "Banana", 100, domain.StatusActive),
		listing(3, "apple", 100, domain.StatusActive),
		listing(4, "Apple", 100, domain.StatusActive),
	}
	assert.Equal(t, []string{"apple", "Apple", "Banana", "cherry"}, titles(spec.Apply(data)))

	filter.SortDir = "desc"
	spec, err = BuildSpecification(filter, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"cherry", "Banana", "Apple", "apple"}, titles(spec.Apply(data)))
}

func TestBuildSpecification_TextFiltersAreCaseInsensitive(t *testing.T) {
	filter := domain.DefaultQueryFilter()
	filter.Title = "GALAXY"
	filter.City = "almaty"

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	where, args := spec.Where()
	assert.Equal(t, " WHERE LOWER(l.title) LIKE ? AND LOWER(l.city) LIKE ?", where)
	assert.Equal(t, []any{"%galaxy%", "%almaty%"}, args)
	assert.Len(t, spec.Apply(phones()), 2)
}

func TestBuildSpecification_BlankTextIgnored(t *testing.T) {
	filter := domain.DefaultQueryFilter()
	filter.Description = "   "

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	where, _ := spec.Where()
	assert.Empty(t, where)
}

func TestBuildSpecification_EscapesLikeMetacharacters(t *testing.T) {
	filter := domain.DefaultQueryFilter()
	filter.Title = `50%_off\`

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	_, args := spec.Where()
	assert.Equal(t, []any{`%50\%\_off\\%`}, args)

	assert.True(t, spec.Match(&domain.Listing{Title: "Now 50%_OFF\\ everything"}))
	assert.False(t, spec.Match(&domain.Listing{Title: "50 off"}))
}

func TestBuildSpecification_PublicDefaults(t *testing.T) {
	spec, err := BuildSpecification(domain.DefaultQueryFilter().ForPublic(), false)
	require.NoError(t, err)

	where, args := spec.Where()
	assert.Equal(t, " WHERE l.status IN (?, ?) AND l.status <> ?", where)
	assert.Equal(t, []any{"APPROVED", "ACTIVE", "PENDING"}, args)
	assert.Equal(t, []string{"Galaxy S23", "Galaxy S22"}, titles(spec.Apply(phones())))
}

func TestBuildSpecification_PublicPendingRequestIsEmpty(t *testing.T) {
	status := domain.StatusPending
	filter := domain.DefaultQueryFilter().ForPublic()
	filter.Status = &status

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	where, _ := spec.Where()
	assert.Equal(t, " WHERE l.status = ? AND l.status <> ?", where)
	assert.Empty(t, spec.Apply(phones()))
}

func TestBuildSpecification_OwnerAndFavorites(t *testing.T) {
	filter := domain.DefaultQueryFilter().WithOwner(7).WithFavoritesOf(9)

	spec, err := BuildSpecification(filter, false)
	require.NoError(t, err)

	where, args := spec.Where()
	assert.Equal(t, " WHERE l.owner_id = ? AND f.user_id = ?", where)
	assert.Equal(t, []any{int64(7), int64(9)}, args)
	assert.Contains(t, spec.Joins(), "user_favorite_listings")
	assert.True(t, spec.Distinct())
}

func TestBuildOrder(t *testing.T) {
	tests := []struct {
		name    string
		sortBy  string
		sortDir string
		strict  bool
		want    string
		wantErr bool
	}{
		{name: "defaults", want: "l.id ASC"},
		{name: "price desc", sortBy: "price", sortDir: "DESC", want: "l.price DESC, l.id DESC"},
		{name: "title mixed case", sortBy: "Title", sortDir: "Asc", want: "l.title ASC, l.id ASC"},
		{name: "unknown direction falls back", sortBy: "title", sortDir: "sideways", want: "l.title DESC, l.id DESC"},
		{name: "unknown direction strict", sortBy: "title", sortDir: "sideways", strict: true, wantErr: true},
		{name: "unknown field", sortBy: "createdAt", wantErr: true},
		{name: "injection attempt", sortBy: "id; DROP TABLE listings", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := BuildOrder(tt.sortBy, tt.sortDir, tt.strict)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, order.SQL())
		})
	}
}

func TestBuildSpecification_RejectsSortFieldBeforeAnythingElse(t *testing.T) {
	filter := domain.DefaultQueryFilter()
	filter.SortBy = "owner_id"

	spec, err := BuildSpecification(filter, false)
	assert.Nil(t, spec)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
