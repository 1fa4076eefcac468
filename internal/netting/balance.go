package netting

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateBalances reduces the snapshot's pending obligations into one
// signed net balance per participant: amounts received minus amounts sent.
// Every participant in the snapshot gets an entry, zero when it has no
// pending obligations. Obligations referencing unknown participants are
// ignored; the snapshot provider scopes obligations to the participant set.
func AggregateBalances(snapshot *Snapshot) map[uuid.UUID]decimal.Decimal {
	balances := make(map[uuid.UUID]decimal.Decimal, len(snapshot.Participants))
	for _, p := range snapshot.Participants {
		balances[p.ID] = decimal.Zero
	}

	for _, ob := range snapshot.Obligations {
		sent, okSender := balances[ob.SenderID]
		received, okReceiver := balances[ob.ReceiverID]
		if !okSender || !okReceiver {
			continue
		}
		balances[ob.SenderID] = sent.Sub(ob.Amount)
		balances[ob.ReceiverID] = received.Add(ob.Amount)
	}

	return balances
}
