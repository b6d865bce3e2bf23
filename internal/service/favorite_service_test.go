package service

import (
	"context"
	"sync"
	"testing"

	"listing-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memFavoriteRepository struct {
	mu      sync.Mutex
	members map[[2]int64]struct{}
}

func newMemFavoriteRepository() *memFavoriteRepository {
	return &memFavoriteRepository{members: make(map[[2]int64]struct{})}
}

func (r *memFavoriteRepository) Exists(_ context.Context, userID, listingID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[[2]int64{userID, listingID}]
	return ok, nil
}

func (r *memFavoriteRepository) Add(_ context.Context, userID, listingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{userID, listingID}
	if _, ok := r.members[key]; ok {
		return domain.ErrFavoriteExists
	}
	r.members[key] = struct{}{}
	return nil
}

func (r *memFavoriteRepository) Remove(_ context.Context, userID, listingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, [2]int64{userID, listingID})
	return nil
}

func (r *memFavoriteRepository) ListingIDsByUser(_ context.Context, userID int64) (map[int64]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[int64]struct{})
	for key := range r.members {
		if key[0] == userID {
			ids[key[1]] = struct{}{}
		}
	}
	return ids, nil
}

func TestFavoriteService_ToggleAlternates(t *testing.T) {
	repo := newMemListingRepository(storedListing(6, domain.StatusApproved))
	svc := NewFavoriteService(repo, newMemFavoriteRepository(), testServiceMetrics())
	ctx := context.Background()

	var got []bool
	for i := 0; i < 3; i++ {
		favorite, err := svc.Toggle(ctx, stranger, 6)
		require.NoError(t, err)
		got = append(got, favorite)
	}

	assert.Equal(t, []bool{true, false, true}, got)
}

func TestFavoriteService_ConcurrentInsertCountsAsFavorited(t *testing.T) {
	repo := newMemListingRepository(storedListing(6, domain.StatusApproved))
	favorites := new(MockFavoriteRepository)
	favorites.On("Exists", mock.Anything, stranger.UserID, int64(6)).Return(false, nil).Once()
	favorites.On("Add", mock.Anything, stranger.UserID, int64(6)).Return(domain.ErrFavoriteExists).Once()

	svc := NewFavoriteService(repo, favorites, testServiceMetrics())

	favorite, err := svc.Toggle(context.Background(), stranger, 6)
	require.NoError(t, err)
	assert.True(t, favorite)
	favorites.AssertExpectations(t)
}

func TestFavoriteService_InvisibleListing(t *testing.T) {
	repo := newMemListingRepository(storedListing(6, domain.StatusPending))
	favorites := new(MockFavoriteRepository)
	svc := NewFavoriteService(repo, favorites, testServiceMetrics())

	_, err := svc.Toggle(context.Background(), stranger, 6)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	_, err = svc.Toggle(context.Background(), stranger, 600)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	favorites.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
}

func TestFavoriteService_OwnerMayFavoritePendingListing(t *testing.T) {
	repo := newMemListingRepository(storedListing(6, domain.StatusPending))
	svc := NewFavoriteService(repo, newMemFavoriteRepository(), testServiceMetrics())

	favorite, err := svc.Toggle(context.Background(), owner, 6)
	require.NoError(t, err)
	assert.True(t, favorite)
}
