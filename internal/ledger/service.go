// ==============================================================================
// LEDGER SERVICE - internal/ledger/service.go
// ==============================================================================
package ledger

import (
	"context"
	"fmt"
	"time"

	"findebt/internal/domain"
	"findebt/internal/repository/postgres"
	"findebt/pkg/errors"
	"findebt/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service manages the obligation ledger around the netting engine: channels,
// pending obligations, and read access to settlement history.
type Service struct {
	participants ParticipantRepository
	channels     ChannelRepository
	obligations  ObligationRepository
	settlements  SettlementRepository
	logger       logger.Logger
}

func NewService(
	participants ParticipantRepository,
	channels ChannelRepository,
	obligations ObligationRepository,
	settlements SettlementRepository,
	log logger.Logger,
) *Service {
	return &Service{
		participants: participants,
		channels:     channels,
		obligations:  obligations,
		settlements:  settlements,
		logger:       log,
	}
}

// CreateChannelRequest captures the fields for registering a payment channel.
type CreateChannelRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Category    string `json:"category" validate:"required,channel_category"`
	Description string `json:"description" validate:"max=255"`
}

// CreateChannel registers a new payment channel.
func (s *Service) CreateChannel(ctx context.Context, req *CreateChannelRequest) (*domain.Channel, error) {
	now := time.Now()
	channel := &domain.Channel{
		ID:          uuid.New(),
		Name:        req.Name,
		Category:    domain.ChannelCategory(req.Category),
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.channels.Create(ctx, channel); err != nil {
		return nil, err
	}

	s.logger.Info("Channel created", map[string]interface{}{
		"channel_id": channel.ID,
		"name":       channel.Name,
	})

	return channel, nil
}

// ListChannels returns channels, optionally restricted to active ones.
func (s *Service) ListChannels(ctx context.Context, activeOnly bool) ([]*domain.Channel, error) {
	return s.channels.List(ctx, activeOnly)
}

// SetParticipantChannels replaces the set of channels a participant supports.
// Every channel must exist and be active.
func (s *Service) SetParticipantChannels(ctx context.Context, participantID uuid.UUID, channelIDs []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(channelIDs))
	unique := make([]uuid.UUID, 0, len(channelIDs))
	for _, id := range channelIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)

		channel, err := s.channels.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !channel.IsActive {
			return errors.Wrap(errors.ErrChannelInactive, channel.Name)
		}
	}

	return s.channels.SetParticipantChannels(ctx, participantID, unique)
}

// CreateObligationRequest captures the fields for recording a new obligation.
type CreateObligationRequest struct {
	SenderID    uuid.UUID `json:"-"`
	ReceiverID  uuid.UUID `json:"receiver_id" validate:"required"`
	Amount      string    `json:"amount" validate:"required,amount"`
	ChannelName string    `json:"channel" validate:"omitempty,min=2,max=64"`
	Description string    `json:"description" validate:"max=255"`
}

// CreateObligation records a pending obligation from sender to receiver.
func (s *Service) CreateObligation(ctx context.Context, req *CreateObligationRequest) (*domain.Obligation, error) {
	if req.SenderID == req.ReceiverID {
		return nil, errors.ErrSelfObligation
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	if _, err := s.participants.FindByID(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	var channelID *uuid.UUID
	if req.ChannelName != "" {
		channel, err := s.channels.FindByName(ctx, req.ChannelName)
		if err != nil {
			return nil, err
		}
		if !channel.IsActive {
			return nil, errors.Wrap(errors.ErrChannelInactive, channel.Name)
		}
		channelID = &channel.ID
	}

	now := time.Now()
	obligation := &domain.Obligation{
		ID:          uuid.New(),
		Reference:   generateReference(),
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Amount:      amount,
		ChannelID:   channelID,
		Description: req.Description,
		Status:      domain.ObligationStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.obligations.Create(ctx, obligation); err != nil {
		return nil, err
	}

	s.logger.Info("Obligation recorded", map[string]interface{}{
		"obligation_id": obligation.ID,
		"sender_id":     obligation.SenderID,
		"receiver_id":   obligation.ReceiverID,
		"amount":        obligation.Amount.String(),
	})

	return obligation, nil
}

// ObligationHistory returns obligations involving the participant, filtered.
func (s *Service) ObligationHistory(ctx context.Context, participantID uuid.UUID, filter postgres.HistoryFilter) ([]*domain.Obligation, error) {
	return s.obligations.History(ctx, participantID, filter)
}

// CancelObligation cancels a pending obligation. Only the sender may cancel.
func (s *Service) CancelObligation(ctx context.Context, participantID, obligationID uuid.UUID) error {
	obligation, err := s.obligations.FindByID(ctx, obligationID)
	if err != nil {
		return err
	}
	if obligation.SenderID != participantID {
		return errors.ErrObligationNotFound
	}

	return s.obligations.Cancel(ctx, obligationID)
}

// Summary returns the participant's dashboard figures.
func (s *Service) Summary(ctx context.Context, participantID uuid.UUID) (*domain.ParticipantSummary, error) {
	return s.participants.Summary(ctx, participantID)
}

// SettlementDetail pairs a settlement with its transfer rows.
type SettlementDetail struct {
	Settlement *domain.Settlement           `json:"settlement"`
	Transfers  []*domain.SettlementTransfer `json:"transfers"`
}

// GetSettlement returns a settlement and its transfers.
func (s *Service) GetSettlement(ctx context.Context, id uuid.UUID) (*SettlementDetail, error) {
	settlement, err := s.settlements.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	transfers, err := s.settlements.Transfers(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SettlementDetail{Settlement: settlement, Transfers: transfers}, nil
}

// ListSettlements returns settlements whose obligations involve the participant.
func (s *Service) ListSettlements(ctx context.Context, participantID uuid.UUID, limit int) ([]*domain.Settlement, error) {
	return s.settlements.ListForParticipant(ctx, participantID, limit)
}

func generateReference() string {
	return fmt.Sprintf("OBL-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
}

// Repository interfaces

type ParticipantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error)
	Summary(ctx context.Context, id uuid.UUID) (*domain.ParticipantSummary, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, c *domain.Channel) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
	FindByName(ctx context.Context, name string) (*domain.Channel, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Channel, error)
	SetParticipantChannels(ctx context.Context, participantID uuid.UUID, channelIDs []uuid.UUID) error
}

type ObligationRepository interface {
	Create(ctx context.Context, ob *domain.Obligation) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Obligation, error)
	History(ctx context.Context, participantID uuid.UUID, filter postgres.HistoryFilter) ([]*domain.Obligation, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type SettlementRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error)
	ListForParticipant(ctx context.Context, participantID uuid.UUID, limit int) ([]*domain.Settlement, error)
	Transfers(ctx context.Context, settlementID uuid.UUID) ([]*domain.SettlementTransfer, error)
}
