// Package netting implements the multilateral debt netting engine: balance
// aggregation over pending obligations, a channel compatibility graph, a
// shortest-route path finder, and the iterative netting loop that collapses
// obligations into a minimal set of transfers.
package netting

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Participant is the engine's view of one account for a single run: an
// identity plus the names of the active channels it supports. The snapshot
// provider is responsible for excluding inactive channels.
type Participant struct {
	ID       uuid.UUID
	Channels []string
	// Clearing marks the designated fallback intermediary. A clearing
	// participant is kept out of the compatibility graph and consulted only
	// when the graph search finds no route.
	Clearing bool
}

// Obligation is one pending debt in the snapshot.
type Obligation struct {
	ID         uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Amount     decimal.Decimal
}

// Snapshot is the immutable input to one netting run. The engine never
// mutates it; all working state lives inside Engine.Run.
type Snapshot struct {
	Participants []Participant
	Obligations  []Obligation
}

// Transfer is one netting iteration's output: a route from a debtor to a
// creditor, the amount moved along every hop, and the channel used per hop.
// len(Channels) == len(Route)-1.
type Transfer struct {
	Route    []uuid.UUID
	Amount   decimal.Decimal
	Channels []string
}

// Result is the outcome of a completed netting run.
type Result struct {
	// Transfers in the order they were produced.
	Transfers []Transfer
	// Unresolved lists debtors for which no route existed, in the order
	// they were abandoned.
	Unresolved []uuid.UUID
	// Balances holds every participant's final working balance.
	Balances map[uuid.UUID]decimal.Decimal
	// SettledObligations identifies the obligations subsumed by this run:
	// those whose endpoints both finished at zero and were not abandoned.
	SettledObligations []uuid.UUID
	// Iterations is the number of netting loop passes executed.
	Iterations int
}
