package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"listing-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	t0       = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	owner    = &domain.Principal{UserID: 1, Email: "owner@example.com", Roles: []string{domain.RoleUser}}
	stranger = &domain.Principal{UserID: 2, Email: "stranger@example.com", Roles: []string{domain.RoleUser}}
	admin    = &domain.Principal{UserID: 3, Email: "admin@example.com", Roles: []string{domain.RoleAdmin}}
)

func validFields() domain.ListingFields {
	return domain.ListingFields{
		Title:       "Test Title",
		Description: "Test Description",
		Price:       decimal.NewFromInt(100),
		City:        "Almaty",
	}
}

func storedListing(id int64, status domain.ListingStatus) *domain.Listing {
	l := domain.NewListing(owner.UserID, validFields(), t0)
	l.ID = id
	l.Status = status
	l.OwnerEmail = owner.Email
	return l
}

func newListingService(repo *memListingRepository, favorites *MockFavoriteRepository) *listingService {
	svc := NewListingService(repo, favorites, testServiceMetrics()).(*listingService)
	svc.now = fixedClock(t0.Add(time.Hour))
	return svc
}

func TestListingService_CreateIsPending(t *testing.T) {
	repo := newMemListingRepository()
	svc := newListingService(repo, new(MockFavoriteRepository))

	created, err := svc.Create(context.Background(), owner, validFields())
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "Test Title", created.Title)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, owner.UserID, created.OwnerID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
}

func TestListingService_CreateValidation(t *testing.T) {
	svc := newListingService(newMemListingRepository(), new(MockFavoriteRepository))

	_, err := svc.Create(context.Background(), owner, domain.ListingFields{
		Title: "x",
		Price: decimal.NewFromInt(-1),
		City:  "Almaty",
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "title")
	assert.Contains(t, validationErr.Fields, "description")
	assert.Contains(t, validationErr.Fields, "price")
	assert.NotContains(t, validationErr.Fields, "city")
}

func TestListingService_CreateRejectsPriceOutsideColumn(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{name: "too many decimals", price: "10.001", want: "price must have at most 2 decimal places"},
		{name: "too large", price: "10000000000", want: "price must not exceed 9999999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemListingRepository()
			svc := newListingService(repo, new(MockFavoriteRepository))
			fields := validFields()
			fields.Price = decimal.RequireFromString(tt.price)

			_, err := svc.Create(context.Background(), owner, fields)

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.want, validationErr.Fields["price"])
			assert.Empty(t, repo.listings)
		})
	}
}

func TestListingService_CreateAcceptsPriceAtColumnLimits(t *testing.T) {
	for _, price := range []string{"9999999999.99", "0.01", "12.500"} {
		svc := newListingService(newMemListingRepository(), new(MockFavoriteRepository))
		fields := validFields()
		fields.Price = decimal.RequireFromString(price)

		_, err := svc.Create(context.Background(), owner, fields)
		assert.NoError(t, err, price)
	}
}

func TestListingService_CreateRequiresPrincipal(t *testing.T) {
	svc := newListingService(newMemListingRepository(), new(MockFavoriteRepository))

	_, err := svc.Create(context.Background(), nil, validFields())
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestListingService_UpdateOnlyPendingByOwner(t *testing.T) {
	statuses := []domain.ListingStatus{
		domain.StatusPending, domain.StatusApproved, domain.StatusRejected,
		domain.StatusActive, domain.StatusInactive,
	}
	actors := map[string]*domain.Principal{"owner": owner, "stranger": stranger, "admin": admin}

	for _, status := range statuses {
		for name, actor := range actors {
			t.Run(fmt.Sprintf("%s by %s", status, name), func(t *testing.T) {
				repo := newMemListingRepository(storedListing(10, status))
				svc := newListingService(repo, new(MockFavoriteRepository))

				input := validFields()
				input.Title = "Updated Title"
				input.Price = decimal.RequireFromString("120.50")

				updated, err := svc.Update(context.Background(), 10, input, actor)

				switch {
				case actor != owner:
					assert.ErrorIs(t, err, domain.ErrAccessDenied)
					assert.Equal(t, "Test Title", repo.get(10).Title)
				case status != domain.StatusPending:
					assert.ErrorIs(t, err, domain.ErrInvalidListingState)
					assert.EqualError(t, err, "invalid listing state: only pending listings can be updated")
					assert.Equal(t, "Test Title", repo.get(10).Title)
				default:
					require.NoError(t, err)
					assert.Equal(t, "Updated Title", updated.Title)
					assert.True(t, repo.get(10).Price.Equal(decimal.RequireFromString("120.50")))
					assert.True(t, repo.get(10).UpdatedAt.After(repo.get(10).CreatedAt))
				}
			})
		}
	}
}

func TestListingService_UpdateLeavesStatusAlone(t *testing.T) {
	repo := newMemListingRepository(storedListing(10, domain.StatusPending))
	svc := newListingService(repo, new(MockFavoriteRepository))

	updated, err := svc.Update(context.Background(), 10, validFields(), owner)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, updated.Status)
	assert.Equal(t, domain.StatusPending, repo.get(10).Status)
}

func TestListingService_UpdateLosesToConcurrentApproval(t *testing.T) {
	repo := new(MockListingRepository)
	svc := NewListingService(repo, new(MockFavoriteRepository), testServiceMetrics()).(*listingService)
	svc.now = fixedClock(t0.Add(time.Hour))

	// The edit is accepted against the locked PENDING row, but the guarded write finds
	// the row already moderated.
	repo.On("Update", mock.Anything, int64(10), mock.Anything).
		Run(func(args mock.Arguments) {
			fn := args.Get(2).(func(*domain.Listing) error)
			require.NoError(t, fn(storedListing(10, domain.StatusPending)))
		}).
		Return(nil, domain.ErrOnlyPendingUpdatable)

	_, err := svc.Update(context.Background(), 10, validFields(), owner)

	assert.ErrorIs(t, err, domain.ErrInvalidListingState)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestListingService_UpdateNotFound(t *testing.T) {
	svc := newListingService(newMemListingRepository(), new(MockFavoriteRepository))

	_, err := svc.Update(context.Background(), 99, validFields(), owner)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestListingService_Delete(t *testing.T) {
	tests := []struct {
		name  string
		actor *domain.Principal
		want  error
	}{
		{name: "owner", actor: owner},
		{name: "admin", actor: admin},
		{name: "stranger", actor: stranger, want: domain.ErrAccessDenied},
		{name: "anonymous", actor: nil, want: domain.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemListingRepository(storedListing(5, domain.StatusApproved))
			svc := newListingService(repo, new(MockFavoriteRepository))

			err := svc.Delete(context.Background(), 5, tt.actor)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.NotNil(t, repo.get(5))
				return
			}
			require.NoError(t, err)
			assert.Nil(t, repo.get(5))
		})
	}
}

func TestListingService_GetVisibility(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.ListingStatus
		viewer  *domain.Principal
		visible bool
	}{
		{name: "pending owner", status: domain.StatusPending, viewer: owner, visible: true},
		{name: "pending admin", status: domain.StatusPending, viewer: admin, visible: true},
		{name: "pending stranger", status: domain.StatusPending, viewer: stranger},
		{name: "pending anonymous", status: domain.StatusPending},
		{name: "approved anonymous", status: domain.StatusApproved, visible: true},
		{name: "rejected stranger", status: domain.StatusRejected, viewer: stranger, visible: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			favorites := new(MockFavoriteRepository)
			favorites.On("Exists", mock.Anything, mock.Anything, int64(4)).Return(true, nil).Maybe()
			svc := newListingService(newMemListingRepository(storedListing(4, tt.status)), favorites)

			view, err := svc.Get(context.Background(), 4, tt.viewer)
			if !tt.visible {
				assert.ErrorIs(t, err, domain.ErrListingNotFound)
				assert.Nil(t, view)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(4), view.ID)
			if tt.viewer == nil {
				assert.Nil(t, view.IsFavorite)
			} else {
				require.NotNil(t, view.IsFavorite)
				assert.True(t, *view.IsFavorite)
			}
		})
	}
}

func TestListingService_HiddenLooksLikeMissing(t *testing.T) {
	svc := newListingService(newMemListingRepository(storedListing(4, domain.StatusPending)), new(MockFavoriteRepository))

	_, hiddenErr := svc.Get(context.Background(), 4, stranger)
	_, missingErr := svc.Get(context.Background(), 404, stranger)

	assert.Equal(t, missingErr.Error(), hiddenErr.Error())
	assert.True(t, errors.Is(hiddenErr, domain.ErrListingNotFound))
}
