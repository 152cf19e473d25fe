package detect

import (
	"math/big"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-alerts/internal/event"
)

func notice(chain, txid string, value *big.Int) event.TransactionNotice {
	return event.TransactionNotice{
		Chain:     chain,
		Address:   "0xabc",
		TxID:      txid,
		Value:     value,
		Timestamp: 1700000000000,
	}
}

func TestNormalizeScalesByDecimals(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())

	// 1.5 ETH in wei.
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	ev, err := n.Normalize(notice("eth", "0xdead", wei))
	if err != nil {
		t.Fatalf("normalize should succeed: %v", err)
	}

	if ev.Type != event.TypePaymentReceived {
		t.Fatalf("tx notices always classify as payment_received, got %s", ev.Type)
	}
	if !ev.Amount.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("amount should be 1.5, got %s", ev.Amount)
	}
	if ev.NewBalance == nil || !ev.NewBalance.Equal(ev.Amount) {
		t.Fatal("new balance should equal the amount on the transaction path")
	}
	if ev.TxID != "0xdead" {
		t.Fatalf("txid mismatch: %s", ev.TxID)
	}
	if ev.Timestamp != 1700000000000 {
		t.Fatalf("timestamp mismatch: %d", ev.Timestamp)
	}
}

func TestNormalizeDisplayDigitsCapped(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())

	// 1 wei: 18 decimals, display capped at 8 fractional digits rounds to 0.
	ev, err := n.Normalize(notice("ETH", "0x1", big.NewInt(1)))
	if err != nil {
		t.Fatalf("normalize should succeed: %v", err)
	}
	if !strings.HasSuffix(ev.AmountFormatted, "ETH") {
		t.Fatalf("display string should carry the ticker: %s", ev.AmountFormatted)
	}
	if strings.Contains(ev.AmountFormatted, "0.000000000000000001") {
		t.Fatalf("display should be capped at 8 digits: %s", ev.AmountFormatted)
	}
	// The canonical amount keeps full precision.
	if !ev.Amount.Equal(decimal.New(1, -18)) {
		t.Fatalf("canonical amount must keep full precision, got %s", ev.Amount)
	}
}

func TestNormalizeUnknownChain(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	if _, err := n.Normalize(notice("NOPECOIN", "0x1", big.NewInt(1))); err == nil {
		t.Fatal("unknown chain should fail normalization")
	}
}

func TestNormalizeMissingFields(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())

	if _, err := n.Normalize(notice("eth", "", big.NewInt(1))); err == nil {
		t.Fatal("missing txid should fail normalization")
	}
	if _, err := n.Normalize(notice("eth", "0x1", nil)); err == nil {
		t.Fatal("missing value should fail normalization")
	}
}
