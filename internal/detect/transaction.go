package detect

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-alerts/internal/chainmeta"
	"wallet-alerts/internal/event"
)

const maxDisplayDigits = 8

// Normalizer converts raw on-chain transaction notices into canonical payment
// events, using the chain metadata registry for decimals and identifiers.
type Normalizer struct {
	logger zerolog.Logger
}

// NewNormalizer constructs a transaction-notice normalizer.
func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With().Str("component", "tx_normalizer").Logger()}
}

// Normalize converts one notice into a PaymentEvent. A malformed notice
// (unknown chain, missing fields) fails that notice only; the caller logs and
// moves on, the stream is never halted.
//
// Notices carry no reliable direction flag, so the type is always
// payment_received. Known limitation; do not guess heuristics here.
func (n *Normalizer) Normalize(notice event.TransactionNotice) (event.PaymentEvent, error) {
	meta, ok := chainmeta.Lookup(notice.Chain)
	if !ok {
		return event.PaymentEvent{}, fmt.Errorf("unknown chain symbol %q", notice.Chain)
	}
	if notice.TxID == "" {
		return event.PaymentEvent{}, fmt.Errorf("notice for %s missing txid", meta.Symbol)
	}
	if notice.Value == nil {
		return event.PaymentEvent{}, fmt.Errorf("notice %s missing value", notice.TxID)
	}

	amount := decimal.NewFromBigInt(notice.Value, -meta.Decimals)

	displayDigits := meta.Decimals
	if displayDigits > maxDisplayDigits {
		displayDigits = maxDisplayDigits
	}

	// No balance context on this path, so the best available "new balance"
	// is the amount itself.
	newBalance := amount

	ev := event.PaymentEvent{
		Type:            event.TypePaymentReceived,
		AssetID:         meta.AssetID,
		NetworkID:       meta.NetworkID,
		Symbol:          meta.Symbol,
		Amount:          amount,
		AmountFormatted: amount.Round(displayDigits).String() + " " + meta.Symbol,
		Address:         notice.Address,
		TxID:            notice.TxID,
		Timestamp:       notice.Timestamp,
		NewBalance:      &newBalance,
	}

	n.logger.Debug().
		Str("txid", notice.TxID).
		Str("symbol", meta.Symbol).
		Str("amount", amount.String()).
		Msg("normalized transaction notice")

	return ev, nil
}
