package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/cache"
	"listing-service/internal/infrastructure/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) (*domain.Listing, error)
	GetByID(ctx context.Context, id int64) (*domain.Listing, error)
	Update(ctx context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error)
	Delete(ctx context.Context, id int64) error
	FindPage(ctx context.Context, spec *Specification, page, size int) ([]*domain.Listing, int64, error)
	BulkTransition(ctx context.Context, from []domain.ListingStatus, to domain.ListingStatus, olderThan, now time.Time) (int64, error)
	ChangeStatus(ctx context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const listingColumns = `l.id, l.title, l.description, l.price, l.city, l.status, l.owner_id, u.email, l.created_at, l.updated_at`

const listingFrom = ` FROM listings l JOIN users u ON u.id = l.owner_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var (
		l      domain.Listing
		status string
	)
	if err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Description,
		&l.Price,
		&l.City,
		&status,
		&l.OwnerID,
		&l.OwnerEmail,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Status = domain.ListingStatus(status)
	return &l, nil
}

type mysqlListingRepository struct {
	db      *sql.DB
	cache   *cache.ListingCache
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
}

func NewMysqlListingRepository(db *sql.DB, cache *cache.ListingCache, metrics *metrics.RepositoryMetrics) ListingRepository {
	tracer := otel.Tracer("listing-service/repository")
	return &mysqlListingRepository{
		db:      db,
		cache:   cache,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (r *mysqlListingRepository) observe(query string, startTime time.Time, status string) {
	duration := time.Since(startTime).Seconds()
	r.metrics.QueryCount.WithLabelValues(query, status).Inc()
	r.metrics.QueryDuration.WithLabelValues(query, status).Observe(duration)
}

func (r *mysqlListingRepository) findByID(ctx context.Context, q querier, id int64, suffix string) (*domain.Listing, error) {
	query := "SELECT " + listingColumns + listingFrom + " WHERE l.id = ?" + suffix
	l, err := scanListing(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrListingNotFound
	}
	return l, err
}

func (r *mysqlListingRepository) Create(ctx context.Context, listing *domain.Listing) (*domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("listing.title", listing.Title),
		attribute.Int64("listing.owner_id", listing.OwnerID),
	)

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("Create", startTime, status) }()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (title, description, price, city, status, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.Title, listing.Description, listing.Price, listing.City, string(listing.Status),
		listing.OwnerID, listing.CreatedAt, listing.UpdatedAt)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	inserted, err := r.findByID(ctx, r.db, id, "")
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch inserted listing: %w", err)
	}

	return inserted, nil
}

func (r *mysqlListingRepository) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("listing.id", id))

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Get")
	cached, err := r.cache.Get(cacheSpanCtx, id)
	cacheSpan.End()

	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		span.RecordError(err)
	}

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("GetByID", startTime, status) }()

	listing, err := r.findByID(ctx, r.db, id, "")
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			status = "not_found"
			return nil, err
		}
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get listing %d: %w", id, err)
	}

	cacheSpanCtx, cacheSpan = r.tracer.Start(ctx, "Redis Set")
	if err := r.cache.Put(cacheSpanCtx, listing); err != nil {
		cacheSpan.RecordError(err)
	}
	cacheSpan.End()

	return listing, nil
}

// Update locks the listing row, lets fn apply the owner's edit, and writes the editable
// fields back. The write never touches status and only matches a row that is still
// PENDING, so an edit cannot overwrite a moderation decision.
func (r *mysqlListingRepository) Update(ctx context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Update")
	defer span.End()

	span.SetAttributes(attribute.Int64("listing.id", id))

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("Update", startTime, status) }()

	listing, status, err := r.inLockedTx(ctx, span, id, fn, func(tx *sql.Tx, l *domain.Listing) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE listings
			SET title = ?, description = ?, price = ?, city = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, l.Title, l.Description, l.Price, l.City, l.UpdatedAt, l.ID, string(domain.StatusPending))
		if err != nil {
			return fmt.Errorf("failed to update listing: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to retrieve rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return domain.ErrOnlyPendingUpdatable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, id)

	span.SetAttributes(attribute.String("listing.title", listing.Title))
	return listing, nil
}

func (r *mysqlListingRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "Repository Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("listing.id", id))

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("Delete", startTime, status) }()

	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to retrieve rows affected: %w", err)
	}

	if rowsAffected == 0 {
		status = "not_found"
		return domain.ErrListingNotFound
	}

	r.invalidate(ctx, id)

	return nil
}

func (r *mysqlListingRepository) invalidate(ctx context.Context, id int64) {
	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Delete")
	defer cacheSpan.End()

	if err := r.cache.Invalidate(cacheSpanCtx, id); err != nil {
		cacheSpan.RecordError(err)
	}
}

func (r *mysqlListingRepository) FindPage(ctx context.Context, spec *Specification, page, size int) ([]*domain.Listing, int64, error) {
	ctx, span := r.tracer.Start(ctx, "Repository FindPage")
	defer span.End()

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("FindPage", startTime, status) }()

	where, args := spec.Where()
	from := listingFrom + spec.Joins() + where

	countExpr := "COUNT(*)"
	selectExpr := "SELECT "
	if spec.Distinct() {
		countExpr = "COUNT(DISTINCT l.id)"
		selectExpr = "SELECT DISTINCT "
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT "+countExpr+from, args...).Scan(&total); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	span.SetAttributes(
		attribute.Int("page", page),
		attribute.Int("size", size),
		attribute.Int64("total", total),
		attribute.String("order", spec.Order.SQL()),
	)

	listings := make([]*domain.Listing, 0, size)
	offset := page * size
	if total == 0 || int64(offset) >= total {
		return listings, total, nil
	}

	query := selectExpr + listingColumns + from + " ORDER BY " + spec.Order.SQL() + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, size, offset)...)
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetAttributes(attribute.String("query", query))
		return nil, 0, fmt.Errorf("failed to retrieve listings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			status = "error"
			span.RecordError(err)
			return nil, 0, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return listings, total, nil
}

// BulkTransition moves every listing in one of the from statuses created before
// olderThan to the target status in a single conditional UPDATE.
func (r *mysqlListingRepository) BulkTransition(ctx context.Context, from []domain.ListingStatus, to domain.ListingStatus, olderThan, now time.Time) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "Repository BulkTransition")
	defer span.End()

	span.SetAttributes(
		attribute.String("status.to", string(to)),
		attribute.String("older_than", olderThan.Format(time.RFC3339)),
	)

	if len(from) == 0 {
		return 0, nil
	}

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("BulkTransition", startTime, status) }()

	placeholders := make([]string, len(from))
	args := make([]any, 0, len(from)+3)
	args = append(args, string(to), now)
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	args = append(args, olderThan)

	query := `UPDATE listings SET status = ?, updated_at = ? WHERE status IN (` +
		strings.Join(placeholders, ", ") + `) AND created_at < ?`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return 0, fmt.Errorf("failed to transition listings: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return 0, fmt.Errorf("failed to retrieve rows affected: %w", err)
	}

	span.SetAttributes(attribute.Int64("rows_affected", affected))
	return affected, nil
}

// ChangeStatus locks the listing row, lets fn validate and mutate it, and writes the
// new status in the same transaction. An error from fn rolls everything back.
func (r *mysqlListingRepository) ChangeStatus(ctx context.Context, id int64, fn func(listing *domain.Listing) error) (*domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository ChangeStatus")
	defer span.End()

	span.SetAttributes(attribute.Int64("listing.id", id))

	startTime := time.Now()
	status := "success"
	defer func() { r.observe("ChangeStatus", startTime, status) }()

	listing, status, err := r.inLockedTx(ctx, span, id, fn, func(tx *sql.Tx, l *domain.Listing) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
			string(l.Status), l.UpdatedAt, l.ID); err != nil {
			return fmt.Errorf("failed to update listing status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("listing.status", string(listing.Status)))
	return listing, nil
}

// inLockedTx reads the listing with SELECT ... FOR UPDATE, bypassing the cache, applies fn
// and then write, and commits. It returns the metrics status label alongside the result.
func (r *mysqlListingRepository) inLockedTx(
	ctx context.Context,
	span trace.Span,
	id int64,
	fn func(listing *domain.Listing) error,
	write func(tx *sql.Tx, listing *domain.Listing) error,
) (*domain.Listing, string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return nil, "error", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	listing, err := r.findByID(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			return nil, "not_found", err
		}
		span.RecordError(err)
		return nil, "error", fmt.Errorf("failed to lock listing %d: %w", id, err)
	}

	if err := fn(listing); err != nil {
		return nil, "rejected", err
	}

	if err := write(tx, listing); err != nil {
		if errors.Is(err, domain.ErrInvalidListingState) {
			return nil, "rejected", err
		}
		span.RecordError(err)
		return nil, "error", err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return nil, "error", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return listing, "success", nil
}
