package service

import (
	"context"
	"sync"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"
	"listing-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

func testServiceMetrics() *metrics.ServiceMetrics {
	return metrics.NewServiceMetrics(metrics.NewRegistry())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type MockListingRepository struct{ mock.Mock }

func (m *MockListingRepository) Create(ctx context.Context, listing *domain.Listing) (*domain.Listing, error) {
	args := m.Called(ctx, listing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}
func (m *MockListingRepository) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}
func (m *MockListingRepository) Update(ctx context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}
func (m *MockListingRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockListingRepository) FindPage(ctx context.Context, spec *repository.Specification, page, size int) ([]*domain.Listing, int64, error) {
	args := m.Called(ctx, spec, page, size)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Listing), args.Get(1).(int64), args.Error(2)
}
func (m *MockListingRepository) BulkTransition(ctx context.Context, from []domain.ListingStatus, to domain.ListingStatus, olderThan, now time.Time) (int64, error) {
	args := m.Called(ctx, from, to, olderThan, now)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockListingRepository) ChangeStatus(ctx context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

type MockFavoriteRepository struct{ mock.Mock }

func (m *MockFavoriteRepository) Exists(ctx context.Context, userID, listingID int64) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}
func (m *MockFavoriteRepository) Add(ctx context.Context, userID, listingID int64) error {
	args := m.Called(ctx, userID, listingID)
	return args.Error(0)
}
func (m *MockFavoriteRepository) Remove(ctx context.Context, userID, listingID int64) error {
	args := m.Called(ctx, userID, listingID)
	return args.Error(0)
}
func (m *MockFavoriteRepository) ListingIDsByUser(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]struct{}), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) ListingStatusChanged(ctx context.Context, listing *domain.Listing) {
	m.Called(ctx, listing)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PublishStatusChanged(ctx context.Context, event domain.StatusChangedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
func (m *MockEventPublisher) Close() {
	m.Called()
}

// memListingRepository keeps listings in memory and evaluates specifications with
// their in-memory predicates.
type memListingRepository struct {
	mu       sync.Mutex
	listings map[int64]*domain.Listing
	nextID   int64
}

func newMemListingRepository(listings ...*domain.Listing) *memListingRepository {
	r := &memListingRepository{listings: make(map[int64]*domain.Listing)}
	for _, l := range listings {
		r.put(l)
	}
	return r
}

func (r *memListingRepository) put(l *domain.Listing) {
	if l.ID == 0 {
		r.nextID++
		l.ID = r.nextID
	} else if l.ID > r.nextID {
		r.nextID = l.ID
	}
	cp := *l
	r.listings[l.ID] = &cp
}

func (r *memListingRepository) get(id int64) *domain.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil
	}
	cp := *l
	return &cp
}

func (r *memListingRepository) Create(_ context.Context, listing *domain.Listing) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(listing)
	cp := *r.listings[listing.ID]
	return &cp, nil
}

func (r *memListingRepository) GetByID(_ context.Context, id int64) (*domain.Listing, error) {
	if l := r.get(id); l != nil {
		return l, nil
	}
	return nil, domain.ErrListingNotFound
}

// Update mirrors the guarded write: fn runs against the stored row and only the
// editable fields are written back, and only while the row is still PENDING.
func (r *memListingRepository) Update(_ context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	working := *stored
	if err := fn(&working); err != nil {
		return nil, err
	}
	if stored.Status != domain.StatusPending {
		return nil, domain.ErrOnlyPendingUpdatable
	}

	updated := *stored
	updated.Title = working.Title
	updated.Description = working.Description
	updated.Price = working.Price
	updated.City = working.City
	updated.UpdatedAt = working.UpdatedAt
	r.listings[id] = &updated
	cp := updated
	return &cp, nil
}

func (r *memListingRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(r.listings, id)
	return nil
}

func (r *memListingRepository) FindPage(_ context.Context, spec *repository.Specification, page, size int) ([]*domain.Listing, int64, error) {
	r.mu.Lock()
	all := make([]*domain.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		cp := *l
		all = append(all, &cp)
	}
	r.mu.Unlock()

	matched := spec.Apply(all)
	total := int64(len(matched))
	start := min(page*size, len(matched))
	end := min(start+size, len(matched))
	return matched[start:end], total, nil
}

func (r *memListingRepository) BulkTransition(_ context.Context, from []domain.ListingStatus, to domain.ListingStatus, olderThan, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	for _, l := range r.listings {
		for _, s := range from {
			if l.Status == s && l.CreatedAt.Before(olderThan) {
				l.Status = to
				l.UpdatedAt = now
				affected++
				break
			}
		}
	}
	return affected, nil
}

func (r *memListingRepository) ChangeStatus(_ context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	working := *stored
	if err := fn(&working); err != nil {
		return nil, err
	}
	r.listings[id] = &working
	cp := working
	return &cp, nil
}
