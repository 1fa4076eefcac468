// ==============================================================================
// OBLIGATION REPOSITORY - internal/repository/postgres/obligation.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"findebt/internal/domain"
	"findebt/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ObligationRepository struct {
	db *sqlx.DB
}

func NewObligationRepository(db *sqlx.DB) *ObligationRepository {
	return &ObligationRepository{db: db}
}

func (r *ObligationRepository) Create(ctx context.Context, ob *domain.Obligation) error {
	query := `
		INSERT INTO obligations (
			id, reference, sender_id, receiver_id, amount, channel_id,
			description, status, settlement_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		ob.ID, ob.Reference, ob.SenderID, ob.ReceiverID, ob.Amount, ob.ChannelID,
		ob.Description, ob.Status, ob.SettlementID, ob.CreatedAt, ob.UpdatedAt,
	)

	return errors.Wrap(err, "failed to create obligation")
}

func (r *ObligationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Obligation, error) {
	var ob domain.Obligation
	query := `SELECT * FROM obligations WHERE id = $1`

	err := r.db.GetContext(ctx, &ob, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrObligationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find obligation")
	}

	return &ob, nil
}

// FindPendingAmong returns pending obligations whose sender and receiver
// both belong to the given participant set, oldest first. This is the
// obligation snapshot one netting run consumes.
func (r *ObligationRepository) FindPendingAmong(ctx context.Context, participantIDs []uuid.UUID) ([]*domain.Obligation, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM obligations
		WHERE status = 'pending' AND sender_id IN (?) AND receiver_id IN (?)
		ORDER BY created_at, id
	`, participantIDs, participantIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build pending obligation query")
	}

	var obligations []*domain.Obligation
	err = r.db.SelectContext(ctx, &obligations, r.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load pending obligations")
	}

	return obligations, nil
}

// HistoryFilter narrows obligation history queries.
type HistoryFilter struct {
	Status   domain.ObligationStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

// History returns obligations where the participant is sender or receiver,
// newest first.
func (r *ObligationRepository) History(ctx context.Context, participantID uuid.UUID, filter HistoryFilter) ([]*domain.Obligation, error) {
	query := `SELECT * FROM obligations WHERE (sender_id = $1 OR receiver_id = $1)`
	args := []interface{}{participantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	var obligations []*domain.Obligation
	err := r.db.SelectContext(ctx, &obligations, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load obligation history")
	}

	return obligations, nil
}

func (r *ObligationRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE obligations SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return errors.Wrap(err, "failed to cancel obligation")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check cancel result")
	}
	if rows == 0 {
		return errors.ErrObligationNotPending
	}

	return nil
}
