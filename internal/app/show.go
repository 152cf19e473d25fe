package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"wallet-alerts/internal/history"
)

// Show prints the most recent persisted notification events.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database not configured; cannot show events")
	}

	backend, closeStore, err := a.openSessionStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	hist := history.New(ctx, backend, history.Options{Cap: a.Config.Detection.HistoryCap}, a.Logger)

	events := hist.Events()
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no events found")
		return nil
	}
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[:opts.Limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tType\tAmount\tValue USD\tAddress\tTx")

	for _, ev := range events {
		valueUSD := ""
		if ev.ValueUSD != nil {
			valueUSD = ev.ValueUSD.StringFixed(2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Time().UTC().Format(time.RFC3339),
			ev.Type,
			ev.AmountFormatted,
			valueUSD,
			ev.Address,
			ev.TxID,
		)
	}

	writer.Flush()
	return nil
}
