package netting

import (
	"fmt"
	"sort"

	"findebt/pkg/errors"
	"findebt/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine executes netting runs. One run processes one immutable snapshot
// start to finish, synchronously and without I/O; callers serialize runs
// that touch overlapping participant sets.
type Engine struct {
	logger logger.Logger
	// maxIterations caps loop passes. Zero derives n*n+n from the
	// participant count, the loop's worst-case progress bound.
	maxIterations int
}

func NewEngine(log logger.Logger, maxIterations int) *Engine {
	return &Engine{
		logger:        log,
		maxIterations: maxIterations,
	}
}

// Run nets the snapshot's pending obligations into an ordered transfer list.
//
// Each iteration selects the first remaining debtor and creditor in
// ascending id order, finds a shortest compatible route between them
// (falling back to a clearing participant when the graph is disconnected),
// and moves min(|debtor|, creditor) along it. Debtors with no route to any
// creditor are reported unresolved and dropped from further consideration.
// Conservation and overdraw invariants are verified; a violation aborts the
// run with ErrInvariantViolation and no usable output.
func (e *Engine) Run(snapshot *Snapshot) (*Result, error) {
	balances := AggregateBalances(snapshot)

	if !sumBalances(balances).IsZero() {
		return nil, errors.Wrap(errors.ErrInvariantViolation, "snapshot balances do not sum to zero")
	}

	graph := NewGraph(snapshot.Participants)
	clearing := clearingAgents(snapshot.Participants)

	limit := e.maxIterations
	if limit <= 0 {
		n := len(snapshot.Participants)
		limit = n*n + n
	}

	result := &Result{
		Balances: balances,
	}
	unroutable := make(map[uuid.UUID]bool)

	for iter := 0; ; iter++ {
		if iter > limit {
			return nil, errors.Wrap(errors.ErrInvariantViolation,
				fmt.Sprintf("netting loop exceeded %d iterations", limit))
		}

		debtors := selectSide(balances, unroutable, func(d decimal.Decimal) bool { return d.IsNegative() })
		creditors := selectSide(balances, nil, func(d decimal.Decimal) bool { return d.IsPositive() })

		if len(debtors) == 0 || len(creditors) == 0 {
			result.Iterations = iter
			break
		}

		debtor := debtors[0]
		route := e.findAnyRoute(graph, clearing, debtor, creditors)
		if route == nil {
			// This debtor cannot be settled this run; drop it and keep
			// going with the rest.
			unroutable[debtor] = true
			result.Unresolved = append(result.Unresolved, debtor)
			e.logger.Warn("Debtor unroutable", map[string]interface{}{
				"participant_id": debtor.String(),
				"balance":        balances[debtor].String(),
			})
			continue
		}

		creditor := route.Hops[len(route.Hops)-1]
		amount := decimal.Min(balances[debtor].Neg(), balances[creditor])
		if !amount.IsPositive() {
			return nil, errors.Wrap(errors.ErrInvariantViolation, "computed transfer amount not positive")
		}
		if amount.GreaterThan(balances[debtor].Neg()) || amount.GreaterThan(balances[creditor]) {
			return nil, errors.Wrap(errors.ErrInvariantViolation, "transfer amount exceeds endpoint capacity")
		}

		balances[debtor] = balances[debtor].Add(amount)
		balances[creditor] = balances[creditor].Sub(amount)

		result.Transfers = append(result.Transfers, Transfer{
			Route:    route.Hops,
			Amount:   amount,
			Channels: route.Channels,
		})
	}

	if !sumBalances(balances).IsZero() {
		return nil, errors.Wrap(errors.ErrInvariantViolation, "post-run balances do not sum to zero")
	}

	result.SettledObligations = settledObligations(snapshot, balances, unroutable)

	e.logger.Info("Netting run complete", map[string]interface{}{
		"transfers":  len(result.Transfers),
		"unresolved": len(result.Unresolved),
		"iterations": result.Iterations,
	})

	return result, nil
}

// findAnyRoute tries creditors in order through the compatibility graph.
// Only once the graph search has failed for every creditor does it fall
// back to routing through a clearing participant; the fallback is the
// alternative for a disconnected graph, not a competing code path.
func (e *Engine) findAnyRoute(graph *Graph, clearing []Participant, debtor uuid.UUID, creditors []uuid.UUID) *Route {
	for _, creditor := range creditors {
		if route, ok := graph.FindRoute(debtor, creditor); ok {
			return route
		}
	}
	for _, creditor := range creditors {
		if route, ok := clearingRoute(graph, clearing, debtor, creditor); ok {
			return route
		}
	}
	return nil
}

// clearingRoute builds a two-hop route debtor -> clearing -> creditor. The
// clearing participant is not assumed omnicompatible: both hops are
// validated against its actual channel set.
func clearingRoute(graph *Graph, clearing []Participant, debtor, creditor uuid.UUID) (*Route, bool) {
	for _, agent := range clearing {
		inbound, ok := sharedWithAgent(graph, debtor, agent)
		if !ok {
			continue
		}
		outbound, ok := sharedWithAgent(graph, creditor, agent)
		if !ok {
			continue
		}
		return &Route{
			Hops:     []uuid.UUID{debtor, agent.ID, creditor},
			Channels: []string{inbound, outbound},
		}, true
	}
	return nil, false
}

func sharedWithAgent(graph *Graph, participant uuid.UUID, agent Participant) (string, bool) {
	return firstCommon(graph.channels[participant], agent.Channels)
}

// clearingAgents returns the snapshot's clearing participants with sorted
// channel sets, ordered by id.
func clearingAgents(participants []Participant) []Participant {
	var agents []Participant
	for _, p := range participants {
		if !p.Clearing {
			continue
		}
		chans := make([]string, len(p.Channels))
		copy(chans, p.Channels)
		sort.Strings(chans)
		agents = append(agents, Participant{ID: p.ID, Channels: chans, Clearing: true})
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].ID.String() < agents[j].ID.String()
	})
	return agents
}

// selectSide returns participant ids matching the predicate in ascending id
// order, skipping excluded ids.
func selectSide(balances map[uuid.UUID]decimal.Decimal, exclude map[uuid.UUID]bool, match func(decimal.Decimal) bool) []uuid.UUID {
	var side []uuid.UUID
	for id, balance := range balances {
		if exclude[id] {
			continue
		}
		if match(balance) {
			side = append(side, id)
		}
	}
	sort.Slice(side, func(i, j int) bool {
		return side[i].String() < side[j].String()
	})
	return side
}

// settledObligations picks the obligations subsumed by this run: both
// endpoints finished at zero and neither was abandoned as unroutable.
// Obligations touching an unresolved or residual participant stay pending
// for a future run.
func settledObligations(snapshot *Snapshot, balances map[uuid.UUID]decimal.Decimal, unroutable map[uuid.UUID]bool) []uuid.UUID {
	var settled []uuid.UUID
	for _, ob := range snapshot.Obligations {
		if unroutable[ob.SenderID] || unroutable[ob.ReceiverID] {
			continue
		}
		senderBal, ok := balances[ob.SenderID]
		if !ok || !senderBal.IsZero() {
			continue
		}
		receiverBal, ok := balances[ob.ReceiverID]
		if !ok || !receiverBal.IsZero() {
			continue
		}
		settled = append(settled, ob.ID)
	}
	return settled
}

func sumBalances(balances map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b)
	}
	return sum
}
