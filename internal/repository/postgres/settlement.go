// ==============================================================================
// SETTLEMENT REPOSITORY - internal/repository/postgres/settlement.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"

	"findebt/internal/domain"
	"findebt/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SettlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	var settlement domain.Settlement
	query := `SELECT * FROM settlements WHERE id = $1`

	err := r.db.GetContext(ctx, &settlement, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSettlementNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find settlement")
	}

	return &settlement, nil
}

// ListForParticipant returns settlements the participant initiated or whose
// obligations involved them, newest first.
func (r *SettlementRepository) ListForParticipant(ctx context.Context, participantID uuid.UUID, limit int) ([]*domain.Settlement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT DISTINCT s.* FROM settlements s
		LEFT JOIN obligations o ON o.settlement_id = s.id
		WHERE s.initiator_id = $1 OR o.sender_id = $1 OR o.receiver_id = $1
		ORDER BY s.created_at DESC
		LIMIT $2
	`

	var settlements []*domain.Settlement
	err := r.db.SelectContext(ctx, &settlements, query, participantID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list settlements")
	}

	return settlements, nil
}

// Transfers returns a settlement's transfer legs in execution order.
func (r *SettlementRepository) Transfers(ctx context.Context, settlementID uuid.UUID) ([]*domain.SettlementTransfer, error) {
	var transfers []*domain.SettlementTransfer
	query := `SELECT * FROM settlement_transfers WHERE settlement_id = $1 ORDER BY sequence`

	err := r.db.SelectContext(ctx, &transfers, query, settlementID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settlement transfers")
	}

	return transfers, nil
}
