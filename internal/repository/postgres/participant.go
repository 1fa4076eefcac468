// ==============================================================================
// PARTICIPANT REPOSITORY - internal/repository/postgres/participant.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"

	"findebt/internal/domain"
	"findebt/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type ParticipantRepository struct {
	db *sqlx.DB
}

func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	query := `
		INSERT INTO participants (
			id, email, password_hash, display_name, phone, credit_rating,
			debt_limit, net_amount, is_active, is_clearing, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Email, p.PasswordHash, p.DisplayName, p.Phone, p.CreditRating,
		p.DebtLimit, p.NetAmount, p.IsActive, p.IsClearing, p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errors.ErrParticipantAlreadyExists
		}
		return errors.Wrap(err, "failed to create participant")
	}

	return nil
}

func (r *ParticipantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	var p domain.Participant
	query := `SELECT * FROM participants WHERE id = $1`

	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrParticipantNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find participant")
	}

	return &p, nil
}

func (r *ParticipantRepository) FindByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	var p domain.Participant
	query := `SELECT * FROM participants WHERE LOWER(email) = LOWER($1)`

	err := r.db.GetContext(ctx, &p, query, email)
	if err == sql.ErrNoRows {
		return nil, errors.ErrParticipantNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find participant by email")
	}

	return &p, nil
}

func (r *ParticipantRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Participant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM participants WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build participant query")
	}

	var participants []*domain.Participant
	err = r.db.SelectContext(ctx, &participants, r.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find participants")
	}

	return participants, nil
}

func (r *ParticipantRepository) ListActive(ctx context.Context) ([]*domain.Participant, error) {
	var participants []*domain.Participant
	query := `SELECT * FROM participants WHERE is_active = true ORDER BY id`

	err := r.db.SelectContext(ctx, &participants, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list participants")
	}

	return participants, nil
}

// FindClearing returns the active clearing participants, if any.
func (r *ParticipantRepository) FindClearing(ctx context.Context) ([]*domain.Participant, error) {
	var participants []*domain.Participant
	query := `SELECT * FROM participants WHERE is_clearing = true AND is_active = true ORDER BY id`

	err := r.db.SelectContext(ctx, &participants, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find clearing participants")
	}

	return participants, nil
}

// Summary aggregates a participant's pending position for the dashboard.
func (r *ParticipantRepository) Summary(ctx context.Context, id uuid.UUID) (*domain.ParticipantSummary, error) {
	summary := &domain.ParticipantSummary{ParticipantID: id}

	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE sender_id = $1), 0)   AS total_owed,
			COALESCE(SUM(amount) FILTER (WHERE receiver_id = $1), 0) AS total_receivable,
			COUNT(*)                                                 AS pending_count
		FROM obligations
		WHERE status = 'pending' AND (sender_id = $1 OR receiver_id = $1)
	`

	var owed, receivable decimal.Decimal
	var count int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&owed, &receivable, &count)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate participant summary")
	}

	summary.TotalOwed = owed
	summary.TotalReceivable = receivable
	summary.PendingCount = count
	summary.NetPosition = receivable.Sub(owed)

	channelQuery := `
		SELECT c.name
		FROM channels c
		JOIN participant_channels pc ON pc.channel_id = c.id
		WHERE pc.participant_id = $1 AND c.is_active = true
		ORDER BY c.name
	`
	err = r.db.SelectContext(ctx, &summary.SupportedChannels, channelQuery, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load supported channels")
	}

	return summary, nil
}
