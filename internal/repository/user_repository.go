package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"listing-service/internal/domain"
	"listing-service/internal/infrastructure/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type UserRepository interface {
	GetOrCreate(ctx context.Context, externalID, email string) (*domain.User, error)
}

type mysqlUserRepository struct {
	db      *sql.DB
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewMysqlUserRepository(db *sql.DB, metrics *metrics.RepositoryMetrics) UserRepository {
	return &mysqlUserRepository{
		db:      db,
		metrics: metrics,
		tracer:  otel.Tracer("listing-service/repository"),
		now:     time.Now,
	}
}

// GetOrCreate resolves the local user for a token subject, inserting it on first
// sight and refreshing the stored email otherwise.
func (r *mysqlUserRepository) GetOrCreate(ctx context.Context, externalID, email string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "Repository GetOrCreateUser")
	defer span.End()

	span.SetAttributes(attribute.String("user.external_id", externalID))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("GetOrCreateUser", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("GetOrCreateUser", status).Observe(duration)
	}()

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO users (external_id, email, created_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE email = VALUES(email)`,
		externalID, email, r.now().UTC()); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var user domain.User
	if err := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, email, created_at FROM users WHERE external_id = ?`, externalID,
	).Scan(&user.ID, &user.ExternalID, &user.Email, &user.CreatedAt); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}
