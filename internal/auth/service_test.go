package auth

import (
	"context"
	"testing"
	"time"

	"findebt/internal/domain"
	apperrors "findebt/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, participant *domain.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participant), args.Error(1)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, "test-secret", time.Hour)
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	var created *domain.Participant
	repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Participant)
	}).Return(nil)

	resp, err := svc.Register(context.Background(), &RegisterRequest{
		Email:       "alice@example.com",
		Password:    "correct horse",
		DisplayName: "Alice",
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.NotEqual(t, "correct horse", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse")))

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Empty(t, resp.Participant.PasswordHash)
	assert.True(t, resp.Participant.IsActive)
}

func TestRegisterPropagatesDuplicate(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(apperrors.ErrParticipantAlreadyExists)

	_, err := svc.Register(context.Background(), &RegisterRequest{
		Email:       "alice@example.com",
		Password:    "correct horse",
		DisplayName: "Alice",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrParticipantAlreadyExists))
}

func TestLoginWrongPassword(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)

	repo.On("FindByEmail", mock.Anything, "alice@example.com").Return(&domain.Participant{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}, nil)

	_, err = svc.Login(context.Background(), &LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestLoginInactiveParticipant(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)

	repo.On("FindByEmail", mock.Anything, "alice@example.com").Return(&domain.Participant{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		IsActive:     false,
	}, nil)

	_, err = svc.Login(context.Background(), &LoginRequest{Email: "alice@example.com", Password: "right"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestVerifyTokenRoundTrip(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)

	id := uuid.New()
	repo.On("FindByEmail", mock.Anything, "alice@example.com").Return(&domain.Participant{
		ID:           id,
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}, nil)

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: "alice@example.com", Password: "right"})
	require.NoError(t, err)

	got, err := svc.VerifyToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(new(MockRepository))

	_, err := svc.VerifyToken("not-a-token")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
}
