package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	mysqlErrDuplicateEntry   = 1062
	mysqlErrNoReferencedRow2 = 1452
)

// FavoriteRepository stores one-directional user to listing favorite memberships.
type FavoriteRepository interface {
	Exists(ctx context.Context, userID, listingID int64) (bool, error)
	Add(ctx context.Context, userID, listingID int64) error
	Remove(ctx context.Context, userID, listingID int64) error
	ListingIDsByUser(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

type mysqlFavoriteRepository struct {
	db      *sql.DB
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewMysqlFavoriteRepository(db *sql.DB, metrics *metrics.RepositoryMetrics) FavoriteRepository {
	return &mysqlFavoriteRepository{
		db:      db,
		metrics: metrics,
		tracer:  otel.Tracer("listing-service/repository"),
		now:     time.Now,
	}
}

func (r *mysqlFavoriteRepository) observe(query string, startTime time.Time, status string) {
	duration := time.Since(startTime).Seconds()
	r.metrics.QueryCount.WithLabelValues(query, status).Inc()
	r.metrics.QueryDuration.WithLabelValues(query, status).Observe(duration)
}

func mysqlErrorNumber(err error) uint16 {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number
	}
	return 0
}

func (r *mysqlFavoriteRepository) Exists(ctx context.Context, userID, listingID int64) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "Repository FavoriteExists")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("listing.id", listingID))

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("FavoriteExists", startTime, status) }()

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_favorite_listings WHERE user_id = ? AND listing_id = ?)`,
		userID, listingID).Scan(&exists)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}

	return exists, nil
}

// Add inserts the membership. A concurrent insert of the same pair surfaces as
// domain.ErrFavoriteExists, a missing listing as domain.ErrListingNotFound.
func (r *mysqlFavoriteRepository) Add(ctx context.Context, userID, listingID int64) error {
	ctx, span := r.tracer.Start(ctx, "Repository FavoriteAdd")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("listing.id", listingID))

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("FavoriteAdd", startTime, status) }()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_favorite_listings (user_id, listing_id, created_at) VALUES (?, ?, ?)`,
		userID, listingID, r.now().UTC())
	if err != nil {
		switch mysqlErrorNumber(err) {
		case mysqlErrDuplicateEntry:
			status = "conflict"
			return domain.ErrFavoriteExists
		case mysqlErrNoReferencedRow2:
			status = "not_found"
			return domain.ErrListingNotFound
		}
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	return nil
}

func (r *mysqlFavoriteRepository) Remove(ctx context.Context, userID, listingID int64) error {
	ctx, span := r.tracer.Start(ctx, "Repository FavoriteRemove")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("listing.id", listingID))

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("FavoriteRemove", startTime, status) }()

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM user_favorite_listings WHERE user_id = ? AND listing_id = ?`,
		userID, listingID); err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	return nil
}

func (r *mysqlFavoriteRepository) ListingIDsByUser(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	ctx, span := r.tracer.Start(ctx, "Repository FavoriteListingIDs")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", userID))

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("FavoriteListingIDs", startTime, status) }()

	rows, err := r.db.QueryContext(ctx,
		`SELECT listing_id FROM user_favorite_listings WHERE user_id = ?`, userID)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to retrieve favorites: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			status = "error"
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}
