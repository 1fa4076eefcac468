// Package domain re-exports core domain types so internal code can import
// `findebt/internal/domain` while using definitions from `findebt/pkg/domain`.
package domain

import pkg "findebt/pkg/domain"

// Participant represents an account that can owe and be owed money.
type Participant = pkg.Participant

// CreditRating grades a participant's creditworthiness.
type CreditRating = pkg.CreditRating

// Channel represents a named payment method.
type Channel = pkg.Channel

// ChannelCategory groups channels by kind.
type ChannelCategory = pkg.ChannelCategory

// ChannelLink records that a participant supports a channel.
type ChannelLink = pkg.ChannelLink

// Obligation is a pending promise for one participant to pay another.
type Obligation = pkg.Obligation

// ObligationStatus represents obligation lifecycle states.
type ObligationStatus = pkg.ObligationStatus

// Settlement is the reconciliation produced by one netting run.
type Settlement = pkg.Settlement

// SettlementStatus represents settlement lifecycle states.
type SettlementStatus = pkg.SettlementStatus

// SettlementTransfer is one persisted multi-hop transfer.
type SettlementTransfer = pkg.SettlementTransfer

// Metadata holds arbitrary key-value metadata.
type Metadata = pkg.Metadata

// UUIDList is a jsonb-backed slice of UUIDs.
type UUIDList = pkg.UUIDList

// StringList is a jsonb-backed slice of strings.
type StringList = pkg.StringList

// ParticipantSummary aggregates dashboard figures.
type ParticipantSummary = pkg.ParticipantSummary

// Re-exported credit ratings.
const (
	CreditRatingExcellent = pkg.CreditRatingExcellent
	CreditRatingGood      = pkg.CreditRatingGood
	CreditRatingFair      = pkg.CreditRatingFair
	CreditRatingPoor      = pkg.CreditRatingPoor
)

// Re-exported channel categories.
const (
	ChannelCategoryBank    = pkg.ChannelCategoryBank
	ChannelCategoryDigital = pkg.ChannelCategoryDigital
	ChannelCategoryCard    = pkg.ChannelCategoryCard
	ChannelCategoryCrypto  = pkg.ChannelCategoryCrypto
	ChannelCategoryOther   = pkg.ChannelCategoryOther
)

// Re-exported obligation statuses.
const (
	ObligationStatusPending   = pkg.ObligationStatusPending
	ObligationStatusCompleted = pkg.ObligationStatusCompleted
	ObligationStatusCancelled = pkg.ObligationStatusCancelled
	ObligationStatusSettled   = pkg.ObligationStatusSettled
)

// Re-exported settlement statuses.
const (
	SettlementStatusPending   = pkg.SettlementStatusPending
	SettlementStatusCompleted = pkg.SettlementStatusCompleted
	SettlementStatusCancelled = pkg.SettlementStatusCancelled
)
