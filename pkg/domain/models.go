package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Participant represents an account that can owe and be owed money.
type Participant struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Email        string          `json:"email" db:"email"`
	PasswordHash string          `json:"-" db:"password_hash"`
	DisplayName  string          `json:"display_name" db:"display_name"`
	Phone        string          `json:"phone" db:"phone"`
	CreditRating CreditRating    `json:"credit_rating" db:"credit_rating"`
	DebtLimit    decimal.Decimal `json:"debt_limit" db:"debt_limit"`
	// NetAmount is the persisted net position from the last completed
	// settlement run. Netting never trusts it; balances are recomputed from
	// pending obligations each run and written back on apply.
	NetAmount decimal.Decimal `json:"net_amount" db:"net_amount"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	// IsClearing marks the designated clearing participant used as a
	// fallback intermediary when no compatibility route exists.
	IsClearing bool      `json:"is_clearing" db:"is_clearing"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type CreditRating string

const (
	CreditRatingExcellent CreditRating = "excellent"
	CreditRatingGood      CreditRating = "good"
	CreditRatingFair      CreditRating = "fair"
	CreditRatingPoor      CreditRating = "poor"
)

// Channel represents a named payment method. Two participants are
// compatible when they share at least one active channel.
type Channel struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Category    ChannelCategory `json:"category" db:"category"`
	Description string          `json:"description" db:"description"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type ChannelCategory string

const (
	ChannelCategoryBank    ChannelCategory = "bank"
	ChannelCategoryDigital ChannelCategory = "digital"
	ChannelCategoryCard    ChannelCategory = "card"
	ChannelCategoryCrypto  ChannelCategory = "crypto"
	ChannelCategoryOther   ChannelCategory = "other"
)

// ChannelLink records that a participant supports a channel.
type ChannelLink struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ParticipantID uuid.UUID `json:"participant_id" db:"participant_id"`
	ChannelID     uuid.UUID `json:"channel_id" db:"channel_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Obligation is a single pending promise for one participant to pay another.
type Obligation struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	Reference    string           `json:"reference" db:"reference"`
	SenderID     uuid.UUID        `json:"sender_id" db:"sender_id"`
	ReceiverID   uuid.UUID        `json:"receiver_id" db:"receiver_id"`
	Amount       decimal.Decimal  `json:"amount" db:"amount"`
	ChannelID    *uuid.UUID       `json:"channel_id,omitempty" db:"channel_id"`
	Description  string           `json:"description" db:"description"`
	Status       ObligationStatus `json:"status" db:"status"`
	SettlementID *uuid.UUID       `json:"settlement_id,omitempty" db:"settlement_id"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

type ObligationStatus string

const (
	ObligationStatusPending   ObligationStatus = "pending"
	ObligationStatusCompleted ObligationStatus = "completed"
	ObligationStatusCancelled ObligationStatus = "cancelled"
	ObligationStatusSettled   ObligationStatus = "settled"
)

// Settlement is the net-zero reconciliation produced by one netting run. It
// groups the obligations that were collapsed together and is immutable once
// created except for the status transition.
type Settlement struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Reference string    `json:"reference" db:"reference"`
	// InitiatorID is nil for runs started by the background worker.
	InitiatorID   *uuid.UUID       `json:"initiator_id,omitempty" db:"initiator_id"`
	NetAmount     decimal.Decimal  `json:"net_amount" db:"net_amount"`
	TransferCount int              `json:"transfer_count" db:"transfer_count"`
	Status        SettlementStatus `json:"status" db:"status"`
	Unresolved    UUIDList         `json:"unresolved" db:"unresolved"`
	Metadata      Metadata         `json:"metadata" db:"metadata"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
	SettlementStatusCancelled SettlementStatus = "cancelled"
)

// SettlementTransfer is one persisted transfer produced by a netting
// iteration: a route of participants and the channel used on each hop.
type SettlementTransfer struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	SettlementID uuid.UUID       `json:"settlement_id" db:"settlement_id"`
	Sequence     int             `json:"sequence" db:"sequence"`
	Route        UUIDList        `json:"route" db:"route"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Channels     StringList      `json:"channels" db:"channels"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Metadata is a JSON-compatible map stored in a jsonb column.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}

// UUIDList is a slice of UUIDs stored as a jsonb array.
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]uuid.UUID{})
	}
	return json.Marshal(l)
}

func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, l)
}

// StringList is a slice of strings stored as a jsonb array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, l)
}

// ParticipantSummary aggregates the dashboard figures for one participant.
type ParticipantSummary struct {
	ParticipantID     uuid.UUID       `json:"participant_id"`
	NetPosition       decimal.Decimal `json:"net_position"`
	TotalOwed         decimal.Decimal `json:"total_owed"`
	TotalReceivable   decimal.Decimal `json:"total_receivable"`
	PendingCount      int64           `json:"pending_count"`
	SupportedChannels []string        `json:"supported_channels"`
}
