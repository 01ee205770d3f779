package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a delegated-zone lookup finds no matching row.
var ErrNotFound = errors.New("delegated zone not found")

// federationRepo is the repository interface consumed by Service. Defined
// here to keep the service testable without a real DB.
type federationRepo interface {
	Create(ctx context.Context, z *DelegatedZone) error
	GetBySubjectName(ctx context.Context, subjectName string) (*DelegatedZone, error)
	GetByID(ctx context.Context, id uuid.UUID) (*DelegatedZone, error)
	List(ctx context.Context, status ZoneStatus, limit, offset int) ([]*DelegatedZone, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ZoneStatus) error
	SetIntermediateCA(ctx context.Context, id uuid.UUID, certPEM string) error
	UpdateMaxPathLen(ctx context.Context, id uuid.UUID, maxPathLen int) error
}

// Repository is the Postgres-backed implementation of federationRepo.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new Repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

// Create inserts a new delegated_zones row.
func (r *Repository) Create(ctx context.Context, z *DelegatedZone) error {
	const q = `
		INSERT INTO delegated_zones (subject_name, endpoint_url, intermediate_ca, max_path_len, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, registered_at, updated_at`

	row := r.pool.QueryRow(ctx, q,
		z.SubjectName,
		z.EndpointURL,
		z.IntermediateCA,
		z.MaxPathLen,
		string(z.Status),
	)
	return row.Scan(&z.ID, &z.RegisteredAt, &z.UpdatedAt)
}

// GetBySubjectName fetches a delegated zone by its subject_name value.
func (r *Repository) GetBySubjectName(ctx context.Context, subjectName string) (*DelegatedZone, error) {
	const q = `
		SELECT id, subject_name, endpoint_url, intermediate_ca, max_path_len, status, registered_at, updated_at
		FROM delegated_zones
		WHERE subject_name = $1`

	return r.scan(r.pool.QueryRow(ctx, q, subjectName))
}

// GetByID fetches a delegated zone by its primary key UUID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*DelegatedZone, error) {
	const q = `
		SELECT id, subject_name, endpoint_url, intermediate_ca, max_path_len, status, registered_at, updated_at
		FROM delegated_zones
		WHERE id = $1`

	return r.scan(r.pool.QueryRow(ctx, q, id))
}

// List returns delegated zones filtered by status with pagination. An empty
// status string returns all records.
func (r *Repository) List(ctx context.Context, status ZoneStatus, limit, offset int) ([]*DelegatedZone, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		const q = `
			SELECT id, subject_name, endpoint_url, intermediate_ca, max_path_len, status, registered_at, updated_at
			FROM delegated_zones
			ORDER BY registered_at DESC
			LIMIT $1 OFFSET $2`
		rows, err = r.pool.Query(ctx, q, limit, offset)
	} else {
		const q = `
			SELECT id, subject_name, endpoint_url, intermediate_ca, max_path_len, status, registered_at, updated_at
			FROM delegated_zones
			WHERE status = $1
			ORDER BY registered_at DESC
			LIMIT $2 OFFSET $3`
		rows, err = r.pool.Query(ctx, q, string(status), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list delegated zones: %w", err)
	}
	defer rows.Close()

	var result []*DelegatedZone
	for rows.Next() {
		z, scanErr := r.scanRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result = append(result, z)
	}
	return result, rows.Err()
}

// UpdateStatus changes the status of a delegated zone.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status ZoneStatus) error {
	const q = `
		UPDATE delegated_zones
		SET status = $1, updated_at = now()
		WHERE id = $2`

	tag, err := r.pool.Exec(ctx, q, string(status), id)
	if err != nil {
		return fmt.Errorf("update delegated zone status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetIntermediateCA stores the PEM-encoded intermediate CA cert for a delegated zone.
func (r *Repository) SetIntermediateCA(ctx context.Context, id uuid.UUID, certPEM string) error {
	const q = `
		UPDATE delegated_zones
		SET intermediate_ca = $1, updated_at = now()
		WHERE id = $2`

	tag, err := r.pool.Exec(ctx, q, certPEM, id)
	if err != nil {
		return fmt.Errorf("set intermediate CA: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMaxPathLen changes how many further intermediate hops a delegated
// zone may itself issue below it.
func (r *Repository) UpdateMaxPathLen(ctx context.Context, id uuid.UUID, maxPathLen int) error {
	const q = `
		UPDATE delegated_zones
		SET max_path_len = $1, updated_at = now()
		WHERE id = $2`

	tag, err := r.pool.Exec(ctx, q, maxPathLen, id)
	if err != nil {
		return fmt.Errorf("update max path len: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scan reads a single row from a pgx.Row (QueryRow result).
func (r *Repository) scan(row pgx.Row) (*DelegatedZone, error) {
	z := &DelegatedZone{}
	var status string
	err := row.Scan(
		&z.ID,
		&z.SubjectName,
		&z.EndpointURL,
		&z.IntermediateCA,
		&z.MaxPathLen,
		&status,
		&z.RegisteredAt,
		&z.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan delegated zone: %w", err)
	}
	z.Status = ZoneStatus(status)
	return z, nil
}

// scanRow reads a single row from a pgx.Rows (Query result).
func (r *Repository) scanRow(rows pgx.Rows) (*DelegatedZone, error) {
	z := &DelegatedZone{}
	var status string
	err := rows.Scan(
		&z.ID,
		&z.SubjectName,
		&z.EndpointURL,
		&z.IntermediateCA,
		&z.MaxPathLen,
		&status,
		&z.RegisteredAt,
		&z.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan delegated zone row: %w", err)
	}
	z.Status = ZoneStatus(status)
	return z, nil
}
