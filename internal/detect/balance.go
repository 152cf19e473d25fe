package detect

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-alerts/internal/event"
)

// DiffBalances compares a previous balance-by-asset map against a fresh
// snapshot list and returns zero or more candidate payment events.
//
// The function is pure: identical inputs always yield identical outputs and
// nothing is mutated, so it can be re-run freely (the production service does,
// even when the balance path's dispatch is disabled).
func DiffBalances(previous map[string]event.BalanceSnapshot, current []event.BalanceSnapshot, now time.Time) []event.PaymentEvent {
	events := make([]event.PaymentEvent, 0)
	ts := now.UnixMilli()

	for _, snap := range current {
		prev, seen := previous[snap.AssetID]
		if !seen {
			// Newly tracked asset. A zero balance is just a watch-list
			// addition, not a payment.
			if snap.Balance.IsPositive() {
				events = append(events, newBalanceEvent(event.TypePaymentReceived, snap, decimal.Zero, snap.Balance, ts))
			}
			continue
		}

		switch snap.Balance.Cmp(prev.Balance) {
		case 1:
			events = append(events, newBalanceEvent(event.TypePaymentReceived, snap, prev.Balance, snap.Balance, ts))
		case -1:
			if !snap.Balance.IsNegative() {
				events = append(events, newBalanceEvent(event.TypeBalanceUpdated, snap, prev.Balance, snap.Balance, ts))
			}
		}
	}

	return events
}

func newBalanceEvent(typ event.Type, snap event.BalanceSnapshot, prevBalance, newBalance decimal.Decimal, ts int64) event.PaymentEvent {
	delta := newBalance.Sub(prevBalance).Abs()

	prev := prevBalance
	next := newBalance

	return event.PaymentEvent{
		Type:            typ,
		AssetID:         snap.AssetID,
		NetworkID:       snap.NetworkID,
		Symbol:          snap.Symbol,
		Amount:          delta,
		AmountFormatted: delta.String() + " " + snap.Symbol,
		ValueUSD:        proportionalValueUSD(delta, newBalance, snap.ValueUSD),
		Address:         snap.Address,
		Timestamp:       ts,
		PreviousBalance: &prev,
		NewBalance:      &next,
	}
}

// proportionalValueUSD prices the delta as its share of the asset's total
// valuation: (delta / total) * totalUSD. The total valuation itself must
// never be reported as the event value. Returns nil when the total balance
// is zero or no valuation is known.
func proportionalValueUSD(delta, totalBalance decimal.Decimal, totalUSD *decimal.Decimal) *decimal.Decimal {
	if totalUSD == nil || totalBalance.IsZero() {
		return nil
	}
	value := delta.Div(totalBalance).Mul(*totalUSD)
	return &value
}
