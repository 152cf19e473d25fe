package event

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a payment event semantically, not by raw diff sign.
type Type string

const (
	// TypePaymentReceived marks incoming funds (new asset funded or balance increase).
	TypePaymentReceived Type = "payment_received"
	// TypeBalanceUpdated marks a balance decrease, which may be an outgoing
	// transfer, a fee deduction, or a valuation change; the inputs do not say which.
	TypeBalanceUpdated Type = "balance_updated"
)

// PaymentEvent is the canonical record of a detected balance change,
// independent of which detector produced it. Immutable once created.
//
// Amount is always the delta relevant to the event, never an absolute balance.
type PaymentEvent struct {
	Type            Type             `json:"type"`
	AssetID         string           `json:"asset_id"`
	NetworkID       string           `json:"network_id"`
	Symbol          string           `json:"symbol"`
	Amount          decimal.Decimal  `json:"amount"`
	AmountFormatted string           `json:"amount_formatted"`
	ValueUSD        *decimal.Decimal `json:"value_usd,omitempty"`
	Address         string           `json:"address"`
	TxID            string           `json:"txid,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	PreviousBalance *decimal.Decimal `json:"previous_balance,omitempty"`
	NewBalance      *decimal.Decimal `json:"new_balance,omitempty"`
}

// Time returns the detection timestamp as a time.Time.
func (e PaymentEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// BalanceSnapshot is one asset's balance as reported by the wallet SDK.
// Read-only here; the SDK owns it.
type BalanceSnapshot struct {
	AssetID   string           `json:"asset_id"`
	NetworkID string           `json:"network_id"`
	Symbol    string           `json:"symbol"`
	Address   string           `json:"address"`
	Balance   decimal.Decimal  `json:"balance"`
	ValueUSD  *decimal.Decimal `json:"value_usd,omitempty"`
}

// SnapshotMap keys snapshots by asset id, the shape the balance-diff
// detector consumes as its "previous" side.
func SnapshotMap(snapshots []BalanceSnapshot) map[string]BalanceSnapshot {
	m := make(map[string]BalanceSnapshot, len(snapshots))
	for _, s := range snapshots {
		m[s.AssetID] = s
	}
	return m
}

// TransactionNotice is a discrete on-chain transaction observation delivered
// out-of-band by the wallet SDK. Value is the raw integer amount in the
// chain's smallest unit.
type TransactionNotice struct {
	Chain         string
	Address       string
	TxID          string
	Value         *big.Int
	Confirmations int
	BlockHeight   uint64
	Timestamp     int64
}
