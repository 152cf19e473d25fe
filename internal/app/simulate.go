package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wallet-alerts/internal/chainmeta"
	"wallet-alerts/internal/detect"
	"wallet-alerts/internal/event"
	"wallet-alerts/internal/session"
)

// SimulateOptions parameterise a simulated payment.
type SimulateOptions struct {
	Chain    string
	Address  string
	Previous decimal.Decimal
	Current  decimal.Decimal
	ValueUSD float64
	TxID     string
}

// Simulate 构造一笔虚拟入账并驱动完整的检测/去重/通知流水线。
// It runs against an in-memory session store so it never touches real
// persisted state; the configured toast channel does receive the message.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	meta, ok := chainmeta.Lookup(opts.Chain)
	if !ok {
		return fmt.Errorf("unknown chain symbol: %s", opts.Chain)
	}

	// Simulation always dispatches from the balance path; the production
	// toggle exists to silence re-pricing noise, which cannot occur here.
	eng := a.newEngine(ctx, session.NewMemory(), a.newToaster(), true)
	now := time.Now()

	prevSnap := event.BalanceSnapshot{
		AssetID:   meta.AssetID,
		NetworkID: meta.NetworkID,
		Symbol:    meta.Symbol,
		Address:   opts.Address,
		Balance:   opts.Previous,
	}

	currentSnap := event.BalanceSnapshot{
		AssetID:   meta.AssetID,
		NetworkID: meta.NetworkID,
		Symbol:    meta.Symbol,
		Address:   opts.Address,
		Balance:   opts.Current,
	}
	if opts.ValueUSD > 0 {
		value := decimal.NewFromFloat(opts.ValueUSD)
		currentSnap.ValueUSD = &value
	}

	previous := map[string]event.BalanceSnapshot{}
	if !opts.Previous.IsZero() {
		previous[meta.AssetID] = prevSnap
	}

	candidates := detect.DiffBalances(previous, []event.BalanceSnapshot{currentSnap}, now)
	a.Logger.Info().Int("candidates", len(candidates)).Msg("simulated balance diff")
	eng.balancePath.Ingest(ctx, candidates)

	if opts.TxID != "" {
		delta := opts.Current.Sub(opts.Previous)
		if delta.IsPositive() {
			raw := delta.Shift(meta.Decimals).Round(0)
			notice := event.TransactionNotice{
				Chain:     meta.Symbol,
				Address:   opts.Address,
				TxID:      opts.TxID,
				Value:     raw.BigInt(),
				Timestamp: now.UnixMilli(),
			}

			ev, err := eng.normalizer.Normalize(notice)
			if err != nil {
				return err
			}
			eng.txPath.Ingest(ctx, []event.PaymentEvent{ev})
		}
	}

	return nil
}
