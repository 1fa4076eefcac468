// ==============================================================================
// SETTLEMENT SERVICE - internal/settlement/service.go
// ==============================================================================
package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"findebt/internal/domain"
	"findebt/internal/netting"
	"findebt/pkg/errors"
	"findebt/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	participants ParticipantRepository
	channels     ChannelRepository
	obligations  ObligationRepository
	applier      Applier
	locks        RunLocker
	engine       *netting.Engine
	logger       logger.Logger
	lockTTL      time.Duration
}

func NewService(
	participants ParticipantRepository,
	channels ChannelRepository,
	obligations ObligationRepository,
	applier Applier,
	locks RunLocker,
	engine *netting.Engine,
	log logger.Logger,
	lockTTL time.Duration,
	workerInterval time.Duration,
) *Service {
	s := &Service{
		participants: participants,
		channels:     channels,
		obligations:  obligations,
		applier:      applier,
		locks:        locks,
		engine:       engine,
		logger:       log,
		lockTTL:      lockTTL,
	}

	if workerInterval > 0 {
		go s.startNettingWorker(workerInterval)
	}

	return s
}

// startNettingWorker periodically nets all active participants.
func (s *Service) startNettingWorker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		if _, err := s.RunAll(ctx); err != nil && !errors.Is(err, errors.ErrRunInProgress) {
			s.logger.Error("Netting worker error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// RunReport summarizes one completed netting run for the caller.
type RunReport struct {
	SettlementID uuid.UUID          `json:"settlement_id,omitempty"`
	Reference    string             `json:"reference,omitempty"`
	Transfers    []netting.Transfer `json:"transfers"`
	Unresolved   []uuid.UUID        `json:"unresolved"`
	SettledCount int                `json:"settled_count"`
	Applied      bool               `json:"applied"`
}

// RunAll nets every active non-clearing participant.
func (s *Service) RunAll(ctx context.Context) (*RunReport, error) {
	active, err := s.participants.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, p := range active {
		if p.IsClearing {
			continue
		}
		ids = append(ids, p.ID)
	}

	return s.Run(ctx, uuid.Nil, ids)
}

// Run executes one netting run over the given participant set and applies
// the result atomically. The run holds a distributed lock for its duration
// so concurrent runs over the same participants are rejected with
// ErrRunInProgress rather than interleaved.
func (s *Service) Run(ctx context.Context, initiatorID uuid.UUID, participantIDs []uuid.UUID) (*RunReport, error) {
	participantIDs = dedupe(participantIDs)
	if len(participantIDs) < 2 {
		// Nothing to net; trivially successful.
		return &RunReport{}, nil
	}

	token := uuid.NewString()
	acquired, err := s.locks.AcquireRunLock(ctx, participantIDs, token, s.lockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire run lock")
	}
	if !acquired {
		return nil, errors.ErrRunInProgress
	}
	defer func() {
		if err := s.locks.ReleaseRunLock(context.Background(), participantIDs, token); err != nil {
			s.logger.Warn("Failed to release run lock", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	snapshot, err := s.loadSnapshot(ctx, participantIDs)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Run(snapshot)
	if err != nil {
		s.logger.Error("Netting run aborted", map[string]interface{}{
			"participants": len(participantIDs),
			"error":        err.Error(),
		})
		return nil, err
	}

	report := &RunReport{
		Transfers:    result.Transfers,
		Unresolved:   result.Unresolved,
		SettledCount: len(result.SettledObligations),
	}

	if len(result.Transfers) == 0 && len(result.SettledObligations) == 0 {
		s.logger.Info("Netting run produced no work", map[string]interface{}{
			"participants": len(participantIDs),
		})
		return report, nil
	}

	settlement := s.buildSettlement(initiatorID, result)
	if err := s.applier.Apply(ctx, settlement, result); err != nil {
		return nil, err
	}

	report.SettlementID = settlement.ID
	report.Reference = settlement.Reference
	report.Applied = true

	s.logger.Info("Settlement applied", map[string]interface{}{
		"settlement_id": settlement.ID,
		"reference":     settlement.Reference,
		"transfers":     len(result.Transfers),
		"settled":       len(result.SettledObligations),
		"unresolved":    len(result.Unresolved),
	})

	return report, nil
}

// loadSnapshot reads the immutable inputs for one run: the requested
// participants plus any clearing participants, their active channel sets,
// and the pending obligations among the requested set.
func (s *Service) loadSnapshot(ctx context.Context, participantIDs []uuid.UUID) (*netting.Snapshot, error) {
	loaded, err := s.participants.FindByIDs(ctx, participantIDs)
	if err != nil {
		return nil, err
	}
	if len(loaded) != len(participantIDs) {
		return nil, errors.ErrParticipantNotFound
	}

	clearing, err := s.participants.FindClearing(ctx)
	if err != nil {
		return nil, err
	}

	requested := make(map[uuid.UUID]bool, len(loaded))
	for _, p := range loaded {
		requested[p.ID] = true
	}
	for _, p := range clearing {
		if !requested[p.ID] {
			loaded = append(loaded, p)
		}
	}

	allIDs := make([]uuid.UUID, len(loaded))
	for i, p := range loaded {
		allIDs[i] = p.ID
	}

	channelSets, err := s.channels.ChannelSetsFor(ctx, allIDs)
	if err != nil {
		return nil, err
	}

	snapshot := &netting.Snapshot{}
	for _, p := range loaded {
		snapshot.Participants = append(snapshot.Participants, netting.Participant{
			ID:       p.ID,
			Channels: channelSets[p.ID],
			Clearing: p.IsClearing,
		})
	}

	pending, err := s.obligations.FindPendingAmong(ctx, participantIDs)
	if err != nil {
		return nil, err
	}
	for _, ob := range pending {
		snapshot.Obligations = append(snapshot.Obligations, netting.Obligation{
			ID:         ob.ID,
			SenderID:   ob.SenderID,
			ReceiverID: ob.ReceiverID,
			Amount:     ob.Amount,
		})
	}

	return snapshot, nil
}

func (s *Service) buildSettlement(initiatorID uuid.UUID, result *netting.Result) *domain.Settlement {
	netAmount := decimal.Zero
	for _, tr := range result.Transfers {
		netAmount = netAmount.Add(tr.Amount)
	}

	var initiator *uuid.UUID
	if initiatorID != uuid.Nil {
		initiator = &initiatorID
	}

	now := time.Now()
	settlement := &domain.Settlement{
		ID:            uuid.New(),
		Reference:     generateReference(),
		InitiatorID:   initiator,
		NetAmount:     netAmount,
		TransferCount: len(result.Transfers),
		Status:        domain.SettlementStatusCompleted,
		Unresolved:    result.Unresolved,
		Metadata:      make(domain.Metadata),
		CompletedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Residual balances of unresolved participants, for caller-side
	// reconciliation.
	if len(result.Unresolved) > 0 {
		residuals := make(map[string]string, len(result.Unresolved))
		for _, id := range result.Unresolved {
			residuals[id.String()] = result.Balances[id].String()
		}
		settlement.Metadata["residual_balances"] = residuals
	}

	return settlement
}

func generateReference() string {
	return fmt.Sprintf("NET-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Interfaces
type ParticipantRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Participant, error)
	FindClearing(ctx context.Context) ([]*domain.Participant, error)
	ListActive(ctx context.Context) ([]*domain.Participant, error)
}

type ChannelRepository interface {
	ChannelSetsFor(ctx context.Context, participantIDs []uuid.UUID) (map[uuid.UUID][]string, error)
}

type ObligationRepository interface {
	FindPendingAmong(ctx context.Context, participantIDs []uuid.UUID) ([]*domain.Obligation, error)
}

// Applier persists one run's outcome as a single atomic unit.
type Applier interface {
	Apply(ctx context.Context, settlement *domain.Settlement, result *netting.Result) error
}

// RunLocker serializes runs over overlapping participant sets.
type RunLocker interface {
	AcquireRunLock(ctx context.Context, participantIDs []uuid.UUID, token string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, participantIDs []uuid.UUID, token string) error
}
