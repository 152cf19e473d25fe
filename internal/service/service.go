package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wallet-alerts/internal/detect"
	"wallet-alerts/internal/dispatch"
	"wallet-alerts/internal/event"
	"wallet-alerts/internal/scheduler"
	"wallet-alerts/internal/wallet"
)

const noticeRetryDelay = 5 * time.Second

// Service hosts the detection engine: it drives periodic balance refreshes
// into the balance-path orchestrator and streams transaction notices into the
// transaction-path orchestrator.
//
// The service owns the "previous snapshot" the balance-diff detector needs;
// the detector itself stays stateless.
type Service struct {
	sched       *scheduler.Scheduler
	balances    wallet.BalanceFetcher
	notices     wallet.NoticeSource
	normalizer  *detect.Normalizer
	balancePath *dispatch.Orchestrator
	txPath      *dispatch.Orchestrator
	logger      zerolog.Logger

	previous map[string]event.BalanceSnapshot
	primed   bool
}

// New constructs the notification service.
func New(sched *scheduler.Scheduler, balances wallet.BalanceFetcher, notices wallet.NoticeSource, normalizer *detect.Normalizer, balancePath, txPath *dispatch.Orchestrator, logger zerolog.Logger) *Service {
	return &Service{
		sched:       sched,
		balances:    balances,
		notices:     notices,
		normalizer:  normalizer,
		balancePath: balancePath,
		txPath:      txPath,
		logger:      logger.With().Str("component", "service").Logger(),
	}
}

// Run blocks, refreshing balances on the scheduler cadence and consuming
// transaction notices, until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}

	if s.notices != nil {
		go s.consumeNotices(ctx)
	}

	return s.sched.Run(ctx, s.RefreshBalances)
}

// RefreshBalances fetches current balances, diffs them against the previous
// snapshot, and hands candidates to the balance-path orchestrator.
//
// The first successful refresh only primes the previous snapshot: wallets
// freshly added to the watch list must not notify for funds they already held.
func (s *Service) RefreshBalances(ctx context.Context, tick time.Time) error {
	if s.balances == nil {
		return nil
	}

	snapshots, err := s.balances.FetchBalances(ctx)
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	if !s.primed {
		s.previous = event.SnapshotMap(snapshots)
		s.primed = true
		s.logger.Info().Int("assets", len(snapshots)).Msg("primed balance snapshot")
		return nil
	}

	candidates := detect.DiffBalances(s.previous, snapshots, tick)
	s.previous = event.SnapshotMap(snapshots)

	if len(candidates) == 0 {
		s.logger.Debug().Time("tick", tick).Msg("no balance changes")
		return nil
	}

	s.logger.Info().Time("tick", tick).Int("candidates", len(candidates)).Msg("balance changes detected")
	s.balancePath.Ingest(ctx, candidates)
	return nil
}

// HandleNotice normalizes one transaction notice and hands it to the
// transaction-path orchestrator. Malformed notices are logged and skipped;
// one bad notice never halts the stream.
func (s *Service) HandleNotice(ctx context.Context, notice event.TransactionNotice) {
	if notice.Timestamp == 0 {
		notice.Timestamp = time.Now().UnixMilli()
	}

	ev, err := s.normalizer.Normalize(notice)
	if err != nil {
		s.logger.Warn().Err(err).Str("txid", notice.TxID).Msg("dropping malformed transaction notice")
		return
	}
	s.txPath.Ingest(ctx, []event.PaymentEvent{ev})
}

func (s *Service) consumeNotices(ctx context.Context) {
	for {
		ch, err := s.notices.Notices(ctx)
		if err != nil {
			s.logger.Error().Err(err).Dur("retry_in", noticeRetryDelay).Msg("notice subscription failed")
		} else {
			for notice := range ch {
				s.HandleNotice(ctx, notice)
			}
			s.logger.Warn().Dur("retry_in", noticeRetryDelay).Msg("notice stream closed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(noticeRetryDelay):
		}
	}
}
