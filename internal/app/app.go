package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"wallet-alerts/internal/alerting"
	"wallet-alerts/internal/config"
	"wallet-alerts/internal/detect"
	"wallet-alerts/internal/dispatch"
	"wallet-alerts/internal/history"
	"wallet-alerts/internal/scheduler"
	"wallet-alerts/internal/service"
	"wallet-alerts/internal/session"
	"wallet-alerts/internal/sound"
	"wallet-alerts/internal/wallet"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openSessionStore returns the configured session backend: Postgres when a
// DSN is set, otherwise an in-memory store that lives for the process only.
func (a *App) openSessionStore(ctx context.Context) (session.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return session.NewMemory(), nil, nil
	}

	pool, err := session.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store, err := session.NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// engine bundles the constructed detection pipeline.
type engine struct {
	history     *history.Store
	sounds      *sound.Sink
	balancePath *dispatch.Orchestrator
	txPath      *dispatch.Orchestrator
	normalizer  *detect.Normalizer
}

// newEngine wires the history store, sinks, and both orchestrators over the
// given session backend. One engine per process; the composition root here is
// what keeps the sinks single-instance, not package-level singletons.
func (a *App) newEngine(ctx context.Context, backend session.Store, toaster alerting.ToastSink, balanceDispatch bool) *engine {
	hist := history.New(ctx, backend, history.Options{Cap: a.Config.Detection.HistoryCap}, a.Logger)

	sounds := sound.NewSink(backend, a.newPlayer(), sound.Options{
		MinInterval:   a.Config.Sound.MinInterval,
		DefaultVolume: a.Config.Sound.Volume,
	}, a.Logger)
	sounds.Init(ctx)
	if a.Config.Sound.Muted {
		sounds.SetMuted(ctx, true)
	}

	balancePath := dispatch.New(dispatch.Options{
		Name:            "balance",
		Key:             history.BalanceKey,
		Window:          a.Config.Detection.BalanceDedupWindow,
		DispatchEnabled: balanceDispatch,
	}, hist, sounds, toaster, a.Logger)

	txPath := dispatch.New(dispatch.Options{
		Name:            "transaction",
		Key:             history.TransactionKey,
		Window:          a.Config.Detection.TxDedupWindow,
		DispatchEnabled: true,
	}, hist, sounds, toaster, a.Logger)

	return &engine{
		history:     hist,
		sounds:      sounds,
		balancePath: balancePath,
		txPath:      txPath,
		normalizer:  detect.NewNormalizer(a.Logger),
	}
}

func (a *App) newPlayer() sound.Player {
	if !a.Config.Sound.Enabled || a.Config.Sound.PlayerCommand == "" {
		return sound.NopPlayer{}
	}
	return sound.CommandPlayer{
		Command: a.Config.Sound.PlayerCommand,
		Args:    a.Config.Sound.PlayerArgs,
	}
}

func (a *App) newToaster() alerting.ToastSink {
	if a.Config.Toast.Telegram.Enabled {
		cfg := a.Config.Toast.Telegram
		return alerting.NewTelegramToaster(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewConsoleToaster(a.Logger)
}

// Run executes the long-running notification service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, closeStore, err := a.openSessionStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; session state will not survive restarts")
	}

	eth, err := wallet.NewEth(wallet.EthOptions{
		RPCURL:    a.Config.Wallet.RPCURL,
		WSURL:     a.Config.Wallet.WSURL,
		Chain:     a.Config.Wallet.Chain,
		Addresses: a.Config.Wallet.Addresses,
		Timeout:   a.Config.Wallet.RequestTimeout,
	}, a.Logger)
	if err != nil {
		return err
	}

	eng := a.newEngine(ctx, backend, a.newToaster(), a.Config.Detection.BalancePathEnabled)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var notices wallet.NoticeSource
	if a.Config.Wallet.WSURL != "" {
		notices = eth
	} else {
		a.Logger.Warn().Msg("wallet.ws_url not configured; transaction-notice path disabled")
	}

	svc := service.New(sched, eth, notices, eng.normalizer, eng.balancePath, eng.txPath, a.Logger)

	a.Logger.Info().
		Str("chain", a.Config.Wallet.Chain).
		Int("addresses", len(a.Config.Wallet.Addresses)).
		Bool("balance_path", a.Config.Detection.BalancePathEnabled).
		Msg("starting notification service")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("notification service stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting the event history.
type ExportOptions struct {
	PNGPath string
	CSVPath string
}
