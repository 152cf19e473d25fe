package wallet

import (
	"context"

	"wallet-alerts/internal/event"
)

// BalanceFetcher retrieves the current balances of the watched addresses.
type BalanceFetcher interface {
	FetchBalances(ctx context.Context) ([]event.BalanceSnapshot, error)
}

// NoticeSource delivers discrete on-chain transaction notices for the
// watched addresses. The channel closes when the source stops.
type NoticeSource interface {
	Notices(ctx context.Context) (<-chan event.TransactionNotice, error)
}
