package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"wallet-alerts/internal/event"
	"wallet-alerts/internal/history"
)

// Export renders the persisted event history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if a.Config.Database.DSN == "" {
		return errors.New("database not configured; cannot export")
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
		a.Logger.Info().Msg("no events found for export")
		return nil
	}

	// Events() is most-recent-first; exports read better oldest-first.
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	a.Logger.Info().Int("events", len(events)).Msg("exporting event history")

	if opts.CSVPath != "" {
		if err := writeEventsCSV(opts.CSVPath, events); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeEventsPNG(opts.PNGPath, events); err != nil {
			return err
		}
	}
	return nil
}

func writeEventsCSV(path string, events []event.PaymentEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "type", "asset_id", "network_id", "symbol", "amount", "value_usd", "address", "txid"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, ev := range events {
		valueUSD := ""
		if ev.ValueUSD != nil {
			valueUSD = ev.ValueUSD.String()
		}
		record := []string{
			ev.Time().UTC().Format(time.RFC3339),
			string(ev.Type),
			ev.AssetID,
			ev.NetworkID,
			ev.Symbol,
			ev.Amount.String(),
			valueUSD,
			ev.Address,
			ev.TxID,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEventsPNG(path string, events []event.PaymentEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(events))
	amounts := make([]float64, len(events))
	values := make([]float64, len(events))

	for i, ev := range events {
		x[i] = ev.Time()
		amounts[i] = ev.Amount.InexactFloat64()
		if ev.ValueUSD != nil {
			values[i] = ev.ValueUSD.InexactFloat64()
		}
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Amount",
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Value (USD)",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Amount",
				XValues: x,
				YValues: amounts,
			},
			chart.TimeSeries{
				Name:    "Value USD",
				XValues: x,
				YValues: values,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
