// Seeding tool for local development: creates demo channels, participants
// (including the clearing house), channel links, and a few pending
// obligations so a netting run has something to collapse.
//
// Reads DATABASE_URL and other core config via findebt/pkg/config.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"findebt/internal/repository/postgres"
	"findebt/pkg/config"
	"findebt/pkg/domain"
	"findebt/pkg/errors"
	"findebt/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("seed")

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	participantRepo := postgres.NewParticipantRepository(db)
	channelRepo := postgres.NewChannelRepository(db)
	obligationRepo := postgres.NewObligationRepository(db)
	ctx := context.Background()

	bank := ensureChannel(ctx, channelRepo, log, "bank_transfer", domain.ChannelCategoryBank)
	wallet := ensureChannel(ctx, channelRepo, log, "mobile_money", domain.ChannelCategoryDigital)
	cash := ensureChannel(ctx, channelRepo, log, "cash", domain.ChannelCategoryOther)

	alice := ensureParticipant(ctx, participantRepo, log, "alice@example.com", "Alice", false)
	bob := ensureParticipant(ctx, participantRepo, log, "bob@example.com", "Bob", false)
	carol := ensureParticipant(ctx, participantRepo, log, "carol@example.com", "Carol", false)
	clearing := ensureParticipant(ctx, participantRepo, log, "clearing@example.com", "Clearing House", true)

	setChannels(ctx, channelRepo, log, alice, bank, cash)
	setChannels(ctx, channelRepo, log, bob, bank)
	setChannels(ctx, channelRepo, log, carol, wallet)
	setChannels(ctx, channelRepo, log, clearing, bank, wallet, cash)

	ensureObligation(ctx, obligationRepo, log, alice, bob, "60")
	ensureObligation(ctx, obligationRepo, log, alice, carol, "40")
	ensureObligation(ctx, obligationRepo, log, bob, carol, "25")

	fmt.Println("OK: channels, participants, and obligations seeded")
}

func ensureChannel(ctx context.Context, repo *postgres.ChannelRepository, log logger.Logger, name string, category domain.ChannelCategory) uuid.UUID {
	existing, err := repo.FindByName(ctx, name)
	if err == nil {
		return existing.ID
	}
	if !errors.Is(err, errors.ErrChannelNotFound) {
		log.Fatal("FindByName failed", map[string]interface{}{"error": err.Error()})
	}

	now := time.Now()
	channel := &domain.Channel{
		ID:        uuid.New(),
		Name:      name,
		Category:  category,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, channel); err != nil {
		log.Fatal("Channel create failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Channel created", map[string]interface{}{"name": name})
	return channel.ID
}

func ensureParticipant(ctx context.Context, repo *postgres.ParticipantRepository, log logger.Logger, email, name string, clearing bool) uuid.UUID {
	existing, err := repo.FindByEmail(ctx, email)
	if err == nil {
		return existing.ID
	}
	if !errors.Is(err, errors.ErrParticipantNotFound) {
		log.Fatal("FindByEmail failed", map[string]interface{}{"error": err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Hash failed", map[string]interface{}{"error": err.Error()})
	}

	now := time.Now()
	p := &domain.Participant{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  name,
		CreditRating: domain.CreditRatingGood,
		DebtLimit:    decimal.NewFromInt(10_000),
		NetAmount:    decimal.Zero,
		IsActive:     true,
		IsClearing:   clearing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, p); err != nil {
		log.Fatal("Participant create failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Participant created", map[string]interface{}{"email": email})
	return p.ID
}

func setChannels(ctx context.Context, repo *postgres.ChannelRepository, log logger.Logger, participantID uuid.UUID, channelIDs ...uuid.UUID) {
	if err := repo.SetParticipantChannels(ctx, participantID, channelIDs); err != nil {
		log.Fatal("SetParticipantChannels failed", map[string]interface{}{"error": err.Error()})
	}
}

func ensureObligation(ctx context.Context, repo *postgres.ObligationRepository, log logger.Logger, sender, receiver uuid.UUID, amount string) {
	now := time.Now()
	ob := &domain.Obligation{
		ID:         uuid.New(),
		Reference:  fmt.Sprintf("OBL-SEED-%s", uuid.NewString()[:8]),
		SenderID:   sender,
		ReceiverID: receiver,
		Amount:     decimal.RequireFromString(amount),
		Status:     domain.ObligationStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(ctx, ob); err != nil {
		log.Fatal("Obligation create failed", map[string]interface{}{"error": err.Error()})
	}
}
