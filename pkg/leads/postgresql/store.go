// Package postgresql provides a PostgreSQL lead store keeping each lead as a JSONB document.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence/sqlbase"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Store implements leads.Store for PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to databaseURL and brings the schema up to date.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: database, logger: logger}, nil
}

// Insert saves a new lead, assigning an ID when missing.
func (s *Store) Insert(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate lead ID: %w", err)
		}

		lead.ID = id.String()
	}

	lead.ApplyDefaults(time.Now())

	doc, err := json.Marshal(lead.Document())
	if err != nil {
		return fmt.Errorf("failed to marshal lead %s: %w", lead.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO leads (id, email, created_at, doc) VALUES ($1, $2, $3, $4)",
		lead.ID, lead.Email, lead.CreatedAt, doc,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return leads.NewLeadError("Insert", lead.ID, leads.ErrDuplicateLead)
		}

		return leads.NewLeadError("Insert", lead.ID, err)
	}

	s.logger.DebugContext(ctx, "Lead inserted", "lead_id", lead.ID)

	return nil
}

// Find returns the leads matching filter, sorted and windowed by opts.
func (s *Store) Find(ctx context.Context, filter leads.Filter, opts leads.FindOptions) ([]*models.Lead, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	builder := &whereBuilder{}

	where, err := builder.build(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT doc FROM leads WHERE %s ORDER BY %s", where, orderBy(opts))

	if opts.Limit > 0 {
		query += " LIMIT " + builder.arg(opts.Limit)
	}

	if opts.Skip > 0 {
		query += " OFFSET " + builder.arg(opts.Skip)
	}

	rows, err := s.db.QueryContext(ctx, query, builder.args...)
	if err != nil {
		return nil, leads.NewLeadError("Find", "", err)
	}

	defer func() { _ = rows.Close() }()

	found := make([]*models.Lead, 0)

	for rows.Next() {
		var doc []byte

		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		lead, err := decodeLead(doc)
		if err != nil {
			return nil, err
		}

		found = append(found, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, leads.NewLeadError("Find", "", err)
	}

	return found, nil
}

// Count returns the number of leads matching filter.
func (s *Store) Count(ctx context.Context, filter leads.Filter) (int64, error) {
	builder := &whereBuilder{}

	where, err := builder.build(filter)
	if err != nil {
		return 0, err
	}

	var count int64

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads WHERE "+where, builder.args...).Scan(&count)
	if err != nil {
		return 0, leads.NewLeadError("Count", "", err)
	}

	return count, nil
}

// GetByID returns a lead by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	if uuid.Validate(id) != nil {
		return nil, leads.NewLeadError("GetByID", id, leads.ErrLeadNotFound)
	}

	var doc []byte

	err := s.db.QueryRowContext(ctx, "SELECT doc FROM leads WHERE id = $1", id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, leads.NewLeadError("GetByID", id, leads.ErrLeadNotFound)
		}

		return nil, leads.NewLeadError("GetByID", id, err)
	}

	return decodeLead(doc)
}

// Update overwrites an existing lead.
func (s *Store) Update(ctx context.Context, lead *models.Lead) error {
	if uuid.Validate(lead.ID) != nil {
		return leads.NewLeadError("Update", lead.ID, leads.ErrLeadNotFound)
	}

	doc, err := json.Marshal(lead.Document())
	if err != nil {
		return fmt.Errorf("failed to marshal lead %s: %w", lead.ID, err)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE leads SET email = $2, created_at = $3, doc = $4 WHERE id = $1",
		lead.ID, lead.Email, lead.CreatedAt, doc,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return leads.NewLeadError("Update", lead.ID, leads.ErrDuplicateLead)
		}

		return leads.NewLeadError("Update", lead.ID, err)
	}

	return requireAffected(result, "Update", lead.ID)
}

// Delete removes a lead by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return leads.NewLeadError("Delete", id, leads.ErrLeadNotFound)
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM leads WHERE id = $1", id)
	if err != nil {
		return leads.NewLeadError("Delete", id, err)
	}

	return requireAffected(result, "Delete", id)
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func orderBy(opts leads.FindOptions) string {
	direction := "DESC"
	if opts.SortOrder == leads.SortAsc {
		direction = "ASC"
	}

	// opts.SortField is one of leads.SortFields, so it is safe to inline.
	if opts.SortField == models.LeadFieldCreatedAt {
		return fmt.Sprintf("created_at %s, id %s", direction, direction)
	}

	return fmt.Sprintf(`doc->>'%s' COLLATE "C" %s, created_at ASC`, opts.SortField, direction)
}

func decodeLead(doc []byte) (*models.Lead, error) {
	var lead models.Lead

	if err := json.Unmarshal(doc, &lead); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead: %w", err)
	}

	return &lead, nil
}

func requireAffected(result sql.Result, op, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return leads.NewLeadError(op, id, err)
	}

	if affected == 0 {
		return leads.NewLeadError(op, id, leads.ErrLeadNotFound)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
