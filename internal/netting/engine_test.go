package netting

import (
	"testing"

	"findebt/pkg/errors"
	"findebt/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(logger.NewNop(), 0)
}

func TestRunFullyConnectedSettlesToZero(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank"}},
			{ID: b, Channels: []string{"bank"}},
			{ID: c, Channels: []string{"bank"}},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("70")},
			{ID: uuid.New(), SenderID: a, ReceiverID: c, Amount: amt("30")},
			{ID: uuid.New(), SenderID: b, ReceiverID: c, Amount: amt("10")},
		},
	}

	result, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)

	assert.Empty(t, result.Unresolved)
	for id, balance := range result.Balances {
		assert.True(t, balance.IsZero(), "participant %s not settled", id)
	}
	assert.Len(t, result.SettledObligations, 3)
	assertConservation(t, result)
}

func TestRunClearingFallbackScenario(t *testing.T) {
	// A owes 100 split between B and C. A and B share "bank"; A and C share
	// nothing, but clearing participant Z bridges them.
	a, b, c, z := pid(1), pid(2), pid(3), pid(26)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank", "cash"}},
			{ID: b, Channels: []string{"bank"}},
			{ID: c, Channels: []string{"wallet"}},
			{ID: z, Channels: []string{"cash", "wallet"}, Clearing: true},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("60")},
			{ID: uuid.New(), SenderID: a, ReceiverID: c, Amount: amt("40")},
		},
	}

	result, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)
	require.Len(t, result.Transfers, 2)

	direct := result.Transfers[0]
	assert.Equal(t, []uuid.UUID{a, b}, direct.Route)
	assert.True(t, direct.Amount.Equal(amt("60")))
	assert.Equal(t, []string{"bank"}, direct.Channels)

	routed := result.Transfers[1]
	assert.Equal(t, []uuid.UUID{a, z, c}, routed.Route)
	assert.True(t, routed.Amount.Equal(amt("40")))
	assert.Equal(t, []string{"cash", "wallet"}, routed.Channels)

	assert.Empty(t, result.Unresolved)
	for _, balance := range result.Balances {
		assert.True(t, balance.IsZero())
	}
	assertConservation(t, result)
}

func TestRunFallbackRequiresClearingCompatibility(t *testing.T) {
	// Clearing participant exists but shares no channel with the creditor,
	// so the debtor stays unresolved.
	a, b, z := pid(1), pid(2), pid(26)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank"}},
			{ID: b, Channels: []string{"wallet"}},
			{ID: z, Channels: []string{"bank"}, Clearing: true},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("25")},
		},
	}

	result, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)

	assert.Empty(t, result.Transfers)
	assert.Equal(t, []uuid.UUID{a}, result.Unresolved)
	assert.True(t, result.Balances[a].Equal(amt("-25")))
	assert.True(t, result.Balances[b].Equal(amt("25")))
	assert.Empty(t, result.SettledObligations)
	assertConservation(t, result)
}

func TestRunIsolatedParticipantReportedUnresolved(t *testing.T) {
	// a-b settle between themselves; d owes c but shares no channel with
	// anyone and no clearing participant exists.
	a, b, c, d := pid(1), pid(2), pid(3), pid(4)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank"}},
			{ID: b, Channels: []string{"bank"}},
			{ID: c, Channels: []string{"bank"}},
			{ID: d, Channels: nil},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("50")},
			{ID: uuid.New(), SenderID: d, ReceiverID: c, Amount: amt("20")},
		},
	}

	result, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)

	require.Len(t, result.Transfers, 1)
	assert.Equal(t, []uuid.UUID{a, b}, result.Transfers[0].Route)
	assert.Equal(t, []uuid.UUID{d}, result.Unresolved)
	assert.True(t, result.Balances[d].Equal(amt("-20")))
	assert.True(t, result.Balances[c].Equal(amt("20")))

	// Only the a->b obligation is subsumed; d's debt stays pending.
	assert.Len(t, result.SettledObligations, 1)
	assertConservation(t, result)
}

func TestRunZeroSumCycleProducesNoTransfers(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank"}},
			{ID: b, Channels: []string{"bank"}},
			{ID: c, Channels: []string{"bank"}},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("10")},
			{ID: uuid.New(), SenderID: b, ReceiverID: c, Amount: amt("10")},
			{ID: uuid.New(), SenderID: c, ReceiverID: a, Amount: amt("10")},
		},
	}

	result, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)

	assert.Empty(t, result.Transfers)
	assert.Empty(t, result.Unresolved)
	// The cycle nets to zero without moving money, so all three obligations
	// are subsumed.
	assert.Len(t, result.SettledObligations, 3)
}

func TestRunSingleParticipant(t *testing.T) {
	a := pid(1)

	result, err := newTestEngine().Run(&Snapshot{
		Participants: []Participant{{ID: a, Channels: []string{"bank"}}},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Transfers)
	assert.Empty(t, result.Unresolved)
	assert.True(t, result.Balances[a].IsZero())
}

func TestRunEmptySnapshot(t *testing.T) {
	result, err := newTestEngine().Run(&Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, result.Transfers)
}

func TestRunDeterministic(t *testing.T) {
	a, b, c, d := pid(1), pid(2), pid(3), pid(4)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank", "wallet"}},
			{ID: b, Channels: []string{"bank"}},
			{ID: c, Channels: []string{"wallet"}},
			{ID: d, Channels: []string{"bank", "wallet"}},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("35")},
			{ID: uuid.New(), SenderID: d, ReceiverID: c, Amount: amt("15")},
			{ID: uuid.New(), SenderID: a, ReceiverID: d, Amount: amt("5")},
		},
	}

	first, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)
	second, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)

	require.Equal(t, len(first.Transfers), len(second.Transfers))
	for i := range first.Transfers {
		assert.Equal(t, first.Transfers[i].Route, second.Transfers[i].Route)
		assert.True(t, first.Transfers[i].Amount.Equal(second.Transfers[i].Amount))
		assert.Equal(t, first.Transfers[i].Channels, second.Transfers[i].Channels)
	}
	assert.Equal(t, first.Unresolved, second.Unresolved)
}

func TestRunTransferAmountsBounded(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank"}},
			{ID: b, Channels: []string{"bank"}},
			{ID: c, Channels: []string{"bank"}},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("80")},
			{ID: uuid.New(), SenderID: c, ReceiverID: b, Amount: amt("20")},
		},
	}

	result, err := newTestEngine().Run(snapshot)
	require.NoError(t, err)

	// Replay transfers against freshly aggregated balances and check every
	// amount stays within both endpoints' capacity at application time.
	balances := AggregateBalances(snapshot)
	for _, tr := range result.Transfers {
		debtor := tr.Route[0]
		creditor := tr.Route[len(tr.Route)-1]

		assert.True(t, tr.Amount.IsPositive())
		assert.True(t, tr.Amount.LessThanOrEqual(balances[debtor].Neg()))
		assert.True(t, tr.Amount.LessThanOrEqual(balances[creditor]))

		balances[debtor] = balances[debtor].Add(tr.Amount)
		balances[creditor] = balances[creditor].Sub(tr.Amount)
	}
}

func TestRunIterationCapAborts(t *testing.T) {
	a, b, c, d := pid(1), pid(2), pid(3), pid(4)

	snapshot := &Snapshot{
		Participants: []Participant{
			{ID: a, Channels: []string{"bank"}},
			{ID: b, Channels: []string{"bank"}},
			{ID: c, Channels: []string{"bank"}},
			{ID: d, Channels: []string{"bank"}},
		},
		Obligations: []Obligation{
			{ID: uuid.New(), SenderID: a, ReceiverID: b, Amount: amt("10")},
			{ID: uuid.New(), SenderID: c, ReceiverID: d, Amount: amt("10")},
		},
	}

	engine := NewEngine(logger.NewNop(), 1)
	_, err := engine.Run(snapshot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvariantViolation))
}

func assertConservation(t *testing.T, result *Result) {
	t.Helper()
	sum := decimal.Zero
	for _, balance := range result.Balances {
		sum = sum.Add(balance)
	}
	assert.True(t, sum.IsZero(), "balances must sum to zero, got %s", sum)
}
