package settlement

import (
	"context"
	"database/sql"
	"sort"

	"findebt/internal/domain"
	"findebt/internal/netting"
	"findebt/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresApplier persists a completed run in one serializable transaction:
// the settlement record, its transfer legs, the pending->settled transition
// of every subsumed obligation, and the written-back participant net
// amounts. Any failure rolls the whole unit back, so a run's output is
// never partially applied.
type PostgresApplier struct {
	db *sqlx.DB
}

func NewPostgresApplier(db *sqlx.DB) *PostgresApplier {
	return &PostgresApplier{db: db}
}

func (a *PostgresApplier) Apply(ctx context.Context, settlement *domain.Settlement, result *netting.Result) error {
	tx, err := a.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "failed to begin settlement application")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlements (
			id, reference, initiator_id, net_amount, transfer_count, status,
			unresolved, metadata, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		settlement.ID, settlement.Reference, settlement.InitiatorID,
		settlement.NetAmount, settlement.TransferCount, settlement.Status,
		settlement.Unresolved, settlement.Metadata, settlement.CompletedAt,
		settlement.CreatedAt, settlement.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create settlement")
	}

	for i, tr := range result.Transfers {
		channels := domain.StringList(tr.Channels)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settlement_transfers (id, settlement_id, sequence, route, amount, channels, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, uuid.New(), settlement.ID, i, domain.UUIDList(tr.Route), tr.Amount, channels)
		if err != nil {
			return errors.Wrap(err, "failed to record settlement transfer")
		}
	}

	if len(result.SettledObligations) > 0 {
		query, args, err := sqlx.In(`
			UPDATE obligations
			SET status = 'settled', settlement_id = ?, updated_at = NOW()
			WHERE id IN (?) AND status = 'pending'
		`, settlement.ID, result.SettledObligations)
		if err != nil {
			return errors.Wrap(err, "failed to build obligation update")
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return errors.Wrap(err, "failed to settle obligations")
		}

		// Every obligation must transition exactly once; a shortfall means
		// something settled it concurrently and the snapshot was stale.
		rows, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to check settled obligations")
		}
		if rows != int64(len(result.SettledObligations)) {
			return errors.Wrap(errors.ErrInvariantViolation, "obligation already settled")
		}
	}

	// Write back final working balances, in deterministic order to avoid
	// deadlocks with concurrent appliers.
	ids := make([]uuid.UUID, 0, len(result.Balances))
	for id := range result.Balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		_, err = tx.ExecContext(ctx, `
			UPDATE participants SET net_amount = $1, updated_at = NOW() WHERE id = $2
		`, result.Balances[id], id)
		if err != nil {
			return errors.Wrap(err, "failed to write back participant balance")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit settlement application")
}
