package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"findebt/internal/domain"
	"findebt/internal/netting"
	"findebt/pkg/errors"
	"findebt/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Participant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Participant), args.Error(1)
}

func (m *MockParticipantRepository) FindClearing(ctx context.Context) ([]*domain.Participant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Participant), args.Error(1)
}

func (m *MockParticipantRepository) ListActive(ctx context.Context) ([]*domain.Participant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Participant), args.Error(1)
}

type MockChannelRepository struct {
	mock.Mock
}

func (m *MockChannelRepository) ChannelSetsFor(ctx context.Context, participantIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	args := m.Called(ctx, participantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]string), args.Error(1)
}

type MockObligationRepository struct {
	mock.Mock
}

func (m *MockObligationRepository) FindPendingAmong(ctx context.Context, participantIDs []uuid.UUID) ([]*domain.Obligation, error) {
	args := m.Called(ctx, participantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Obligation), args.Error(1)
}

type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) Apply(ctx context.Context, settlement *domain.Settlement, result *netting.Result) error {
	args := m.Called(ctx, settlement, result)
	return args.Error(0)
}

type MockRunLocker struct {
	mock.Mock
}

func (m *MockRunLocker) AcquireRunLock(ctx context.Context, participantIDs []uuid.UUID, token string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, participantIDs, token, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunLocker) ReleaseRunLock(ctx context.Context, participantIDs []uuid.UUID, token string) error {
	args := m.Called(ctx, participantIDs, token)
	return args.Error(0)
}

// Tests

func pid(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

type fixture struct {
	participants *MockParticipantRepository
	channels     *MockChannelRepository
	obligations  *MockObligationRepository
	applier      *MockApplier
	locks        *MockRunLocker
	service      *Service
}

func newFixture() *fixture {
	f := &fixture{
		participants: new(MockParticipantRepository),
		channels:     new(MockChannelRepository),
		obligations:  new(MockObligationRepository),
		applier:      new(MockApplier),
		locks:        new(MockRunLocker),
	}
	f.service = NewService(
		f.participants, f.channels, f.obligations, f.applier, f.locks,
		netting.NewEngine(logger.NewNop(), 0),
		logger.NewNop(),
		time.Minute,
		0, // no background worker in tests
	)
	return f
}

func TestRunAppliesSettlement(t *testing.T) {
	f := newFixture()
	a, b := pid(1), pid(2)
	ids := []uuid.UUID{a, b}

	f.locks.On("AcquireRunLock", mock.Anything, ids, mock.Anything, time.Minute).Return(true, nil)
	f.locks.On("ReleaseRunLock", mock.Anything, ids, mock.Anything).Return(nil)

	f.participants.On("FindByIDs", mock.Anything, ids).Return([]*domain.Participant{
		{ID: a}, {ID: b},
	}, nil)
	f.participants.On("FindClearing", mock.Anything).Return([]*domain.Participant{}, nil)
	f.channels.On("ChannelSetsFor", mock.Anything, ids).Return(map[uuid.UUID][]string{
		a: {"bank"},
		b: {"bank"},
	}, nil)
	f.obligations.On("FindPendingAmong", mock.Anything, ids).Return([]*domain.Obligation{
		{ID: pid(10), SenderID: a, ReceiverID: b, Amount: decimal.NewFromInt(50)},
	}, nil)

	f.applier.On("Apply", mock.Anything, mock.MatchedBy(func(s *domain.Settlement) bool {
		return s.Status == domain.SettlementStatusCompleted &&
			s.TransferCount == 1 &&
			s.NetAmount.Equal(decimal.NewFromInt(50))
	}), mock.Anything).Return(nil)

	report, err := f.service.Run(context.Background(), a, ids)
	require.NoError(t, err)

	assert.True(t, report.Applied)
	assert.NotEqual(t, uuid.Nil, report.SettlementID)
	require.Len(t, report.Transfers, 1)
	assert.Equal(t, []uuid.UUID{a, b}, report.Transfers[0].Route)
	assert.Equal(t, 1, report.SettledCount)
	assert.Empty(t, report.Unresolved)

	f.applier.AssertExpectations(t)
	f.locks.AssertExpectations(t)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	f := newFixture()
	ids := []uuid.UUID{pid(1), pid(2)}

	f.locks.On("AcquireRunLock", mock.Anything, ids, mock.Anything, time.Minute).Return(false, nil)

	_, err := f.service.Run(context.Background(), pid(1), ids)
	assert.True(t, errors.Is(err, errors.ErrRunInProgress))

	f.applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunTrivialParticipantSet(t *testing.T) {
	f := newFixture()

	report, err := f.service.Run(context.Background(), pid(1), []uuid.UUID{pid(1)})
	require.NoError(t, err)

	assert.False(t, report.Applied)
	assert.Empty(t, report.Transfers)
	f.locks.AssertNotCalled(t, "AcquireRunLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunNoPendingObligationsSkipsApply(t *testing.T) {
	f := newFixture()
	a, b := pid(1), pid(2)
	ids := []uuid.UUID{a, b}

	f.locks.On("AcquireRunLock", mock.Anything, ids, mock.Anything, time.Minute).Return(true, nil)
	f.locks.On("ReleaseRunLock", mock.Anything, ids, mock.Anything).Return(nil)

	f.participants.On("FindByIDs", mock.Anything, ids).Return([]*domain.Participant{
		{ID: a}, {ID: b},
	}, nil)
	f.participants.On("FindClearing", mock.Anything).Return([]*domain.Participant{}, nil)
	f.channels.On("ChannelSetsFor", mock.Anything, ids).Return(map[uuid.UUID][]string{}, nil)
	f.obligations.On("FindPendingAmong", mock.Anything, ids).Return([]*domain.Obligation{}, nil)

	report, err := f.service.Run(context.Background(), a, ids)
	require.NoError(t, err)

	assert.False(t, report.Applied)
	assert.Empty(t, report.Transfers)
	f.applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunApplyFailurePropagates(t *testing.T) {
	f := newFixture()
	a, b := pid(1), pid(2)
	ids := []uuid.UUID{a, b}

	f.locks.On("AcquireRunLock", mock.Anything, ids, mock.Anything, time.Minute).Return(true, nil)
	f.locks.On("ReleaseRunLock", mock.Anything, ids, mock.Anything).Return(nil)

	f.participants.On("FindByIDs", mock.Anything, ids).Return([]*domain.Participant{
		{ID: a}, {ID: b},
	}, nil)
	f.participants.On("FindClearing", mock.Anything).Return([]*domain.Participant{}, nil)
	f.channels.On("ChannelSetsFor", mock.Anything, ids).Return(map[uuid.UUID][]string{
		a: {"bank"},
		b: {"bank"},
	}, nil)
	f.obligations.On("FindPendingAmong", mock.Anything, ids).Return([]*domain.Obligation{
		{ID: pid(10), SenderID: a, ReceiverID: b, Amount: decimal.NewFromInt(50)},
	}, nil)

	f.applier.On("Apply", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.Wrap(errors.ErrInvariantViolation, "obligation already settled"))

	_, err := f.service.Run(context.Background(), a, ids)
	assert.True(t, errors.Is(err, errors.ErrInvariantViolation))
	f.locks.AssertExpectations(t)
}

func TestRunClearingParticipantJoinsSnapshot(t *testing.T) {
	f := newFixture()
	a, b, z := pid(1), pid(2), pid(26)
	ids := []uuid.UUID{a, b}
	allIDs := []uuid.UUID{a, b, z}

	f.locks.On("AcquireRunLock", mock.Anything, ids, mock.Anything, time.Minute).Return(true, nil)
	f.locks.On("ReleaseRunLock", mock.Anything, ids, mock.Anything).Return(nil)

	f.participants.On("FindByIDs", mock.Anything, ids).Return([]*domain.Participant{
		{ID: a}, {ID: b},
	}, nil)
	f.participants.On("FindClearing", mock.Anything).Return([]*domain.Participant{
		{ID: z, IsClearing: true},
	}, nil)
	f.channels.On("ChannelSetsFor", mock.Anything, allIDs).Return(map[uuid.UUID][]string{
		a: {"cash"},
		b: {"wallet"},
		z: {"cash", "wallet"},
	}, nil)
	f.obligations.On("FindPendingAmong", mock.Anything, ids).Return([]*domain.Obligation{
		{ID: pid(10), SenderID: a, ReceiverID: b, Amount: decimal.NewFromInt(30)},
	}, nil)

	f.applier.On("Apply", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	report, err := f.service.Run(context.Background(), a, ids)
	require.NoError(t, err)

	require.Len(t, report.Transfers, 1)
	assert.Equal(t, []uuid.UUID{a, z, b}, report.Transfers[0].Route)
	assert.Equal(t, []string{"cash", "wallet"}, report.Transfers[0].Channels)
}
