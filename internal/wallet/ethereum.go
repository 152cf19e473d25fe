package wallet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-alerts/internal/chainmeta"
	"wallet-alerts/internal/event"
)

// EthOptions parameterise the Ethereum wallet collaborator.
type EthOptions struct {
	RPCURL    string
	WSURL     string
	Chain     string
	Addresses []string
	Timeout   time.Duration
}

// Eth reads native balances and watches new blocks for transactions to the
// configured addresses. It implements both BalanceFetcher and NoticeSource.
type Eth struct {
	opts      EthOptions
	meta      chainmeta.Metadata
	watched   map[common.Address]struct{}
	logger    zerolog.Logger
	client    *ethclient.Client
	wsClient  *ethclient.Client
	clientMux sync.Mutex
}

// NewEth builds the Ethereum collaborator. The chain symbol must be known to
// the metadata registry.
func NewEth(opts EthOptions, logger zerolog.Logger) (*Eth, error) {
	meta, ok := chainmeta.Lookup(opts.Chain)
	if !ok {
		return nil, errors.New("unknown chain symbol: " + opts.Chain)
	}
	if len(opts.Addresses) == 0 {
		return nil, errors.New("at least one wallet address is required")
	}

	watched := make(map[common.Address]struct{}, len(opts.Addresses))
	for _, addr := range opts.Addresses {
		if !common.IsHexAddress(addr) {
			return nil, errors.New("invalid wallet address: " + addr)
		}
		watched[common.HexToAddress(addr)] = struct{}{}
	}

	return &Eth{
		opts:    opts,
		meta:    meta,
		watched: watched,
		logger:  logger.With().Str("component", "eth_wallet").Logger(),
	}, nil
}

// FetchBalances reads the native balance of every watched address.
func (e *Eth) FetchBalances(ctx context.Context) ([]event.BalanceSnapshot, error) {
	if e.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	timeout := e.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := e.getClient(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]event.BalanceSnapshot, 0, len(e.watched))
	for addr := range e.watched {
		wei, err := client.BalanceAt(ctx, addr, nil)
		if err != nil {
			return nil, err
		}

		snapshots = append(snapshots, event.BalanceSnapshot{
			AssetID:   e.perAddressAssetID(addr),
			NetworkID: e.meta.NetworkID,
			Symbol:    e.meta.Symbol,
			Address:   addr.Hex(),
			Balance:   decimal.NewFromBigInt(wei, -e.meta.Decimals),
		})
	}

	return snapshots, nil
}

// perAddressAssetID suffixes the canonical asset id with the holder address
// so the same native asset diffs independently per watched wallet.
func (e *Eth) perAddressAssetID(addr common.Address) string {
	if len(e.watched) == 1 {
		return e.meta.AssetID
	}
	return e.meta.AssetID + "@" + strings.ToLower(addr.Hex())
}

// Notices subscribes to new heads over the websocket endpoint and emits one
// notice per transaction whose recipient is a watched address.
func (e *Eth) Notices(ctx context.Context) (<-chan event.TransactionNotice, error) {
	if e.opts.WSURL == "" {
		return nil, errors.New("ethereum websocket url not configured")
	}

	client, err := e.getWSClient(ctx)
	if err != nil {
		return nil, err
	}

	heads := make(chan *types.Header, 16)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return nil, err
	}

	out := make(chan event.TransactionNotice, 64)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				e.logger.Error().Err(err).Msg("head subscription failed")
				return
			case head := <-heads:
				if head == nil {
					continue
				}
				e.scanBlock(ctx, client, head, out)
			}
		}
	}()

	return out, nil
}

func (e *Eth) scanBlock(ctx context.Context, client *ethclient.Client, head *types.Header, out chan<- event.TransactionNotice) {
	block, err := client.BlockByHash(ctx, head.Hash())
	if err != nil {
		e.logger.Warn().Err(err).Str("block", head.Hash().Hex()).Msg("failed to fetch block body")
		return
	}

	for _, tx := range block.Transactions() {
		to := tx.To()
		if to == nil {
			continue
		}
		if _, ok := e.watched[*to]; !ok {
			continue
		}
		if tx.Value().Sign() <= 0 {
			continue
		}

		notice := event.TransactionNotice{
			Chain:       e.meta.Symbol,
			Address:     to.Hex(),
			TxID:        tx.Hash().Hex(),
			Value:       tx.Value(),
			BlockHeight: block.NumberU64(),
			Timestamp:   int64(block.Time()) * 1000,
		}

		select {
		case out <- notice:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Eth) getClient(ctx context.Context) (*ethclient.Client, error) {
	e.clientMux.Lock()
	defer e.clientMux.Unlock()

	if e.client != nil {
		return e.client, nil
	}

	client, err := ethclient.DialContext(ctx, e.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

func (e *Eth) getWSClient(ctx context.Context) (*ethclient.Client, error) {
	e.clientMux.Lock()
	defer e.clientMux.Unlock()

	if e.wsClient != nil {
		return e.wsClient, nil
	}

	client, err := ethclient.DialContext(ctx, e.opts.WSURL)
	if err != nil {
		return nil, err
	}
	e.wsClient = client
	return client, nil
}

var (
	_ BalanceFetcher = (*Eth)(nil)
	_ NoticeSource   = (*Eth)(nil)
)
