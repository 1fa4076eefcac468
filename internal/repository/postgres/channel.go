// ==============================================================================
// CHANNEL REPOSITORY - internal/repository/postgres/channel.go
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
)

type ChannelRepository struct {
	db *sqlx.DB
}

func NewChannelRepository(db *sqlx.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) Create(ctx context.Context, c *domain.Channel) error {
	query := `
		INSERT INTO channels (id, name, category, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Category, c.Description, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errors.ErrChannelAlreadyExists
		}
		return errors.Wrap(err, "failed to create channel")
	}

	return nil
}

func (r *ChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	var c domain.Channel
	query := `SELECT * FROM channels WHERE id = $1`

	err := r.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrChannelNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find channel")
	}

	return &c, nil
}

func (r *ChannelRepository) FindByName(ctx context.Context, name string) (*domain.Channel, error) {
	var c domain.Channel
	query := `SELECT * FROM channels WHERE name = $1`

	err := r.db.GetContext(ctx, &c, query, name)
	if err == sql.ErrNoRows {
		return nil, errors.ErrChannelNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find channel by name")
	}

	return &c, nil
}

func (r *ChannelRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Channel, error) {
	query := `SELECT * FROM channels ORDER BY name`
	if activeOnly {
		query = `SELECT * FROM channels WHERE is_active = true ORDER BY name`
	}

	var channels []*domain.Channel
	err := r.db.SelectContext(ctx, &channels, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list channels")
	}

	return channels, nil
}

// SetParticipantChannels replaces a participant's supported channel set.
func (r *ChannelRepository) SetParticipantChannels(ctx context.Context, participantID uuid.UUID, channelIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin channel update")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM participant_channels WHERE participant_id = $1`, participantID)
	if err != nil {
		return errors.Wrap(err, "failed to clear participant channels")
	}

	for _, channelID := range channelIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO participant_channels (id, participant_id, channel_id, created_at)
			VALUES ($1, $2, $3, NOW())
		`, uuid.New(), participantID, channelID)
		if err != nil {
			return errors.Wrap(err, "failed to link participant channel")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit channel update")
}

// ChannelSetsFor returns every participant's active channel names, keyed by
// participant id. Participants with no active channels get no entry; the
// snapshot loader treats a missing entry as an empty set. Inactive channels
// are filtered here so the netting core never sees them.
func (r *ChannelRepository) ChannelSetsFor(ctx context.Context, participantIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	if len(participantIDs) == 0 {
		return map[uuid.UUID][]string{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT pc.participant_id, c.name
		FROM participant_channels pc
		JOIN channels c ON c.id = pc.channel_id
		WHERE c.is_active = true AND pc.participant_id IN (?)
		ORDER BY pc.participant_id, c.name
	`, participantIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build channel set query")
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load channel sets")
	}
	defer rows.Close()

	sets := make(map[uuid.UUID][]string)
	for rows.Next() {
		var participantID uuid.UUID
		var name string
		if err := rows.Scan(&participantID, &name); err != nil {
			return nil, errors.Wrap(err, "failed to scan channel set row")
		}
		sets[participantID] = append(sets[participantID], name)
	}

	return sets, rows.Err()
}
