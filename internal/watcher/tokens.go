package watcher

import (
	"context"
	"math/big"
	"time"

	"github.com/0xsamyy/evmwatch/internal/erc20"
	"github.com/0xsamyy/evmwatch/internal/metrics"
	"github.com/0xsamyy/evmwatch/internal/network"
	"github.com/0xsamyy/evmwatch/internal/store"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// runReconcile drives token reconciliation. Cycles never overlap: a slow
// cycle delays the next tick instead of racing it.
func (w *Watcher) runReconcile(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileAll(ctx)
		}
	}
}

// reconcileAll runs one cycle on every network concurrently.
func (w *Watcher) reconcileAll(ctx context.Context) {
	var g errgroup.Group
	for _, n := range w.networks {
		n := n
		g.Go(func() error {
			_ = w.reconcile(ctx, n)
			return nil
		})
	}
	_ = g.Wait()
}

// walletLogs is the result of one Transfer query for one wallet side.
type walletLogs struct {
	wallet    store.Wallet
	addr      common.Address
	direction Direction
	logs      []types.Log
}

// reconcile queries Transfer logs touching any watched wallet over
// [cursor, current] and advances the cursor to current. If any query fails
// the cycle is dropped and the cursor stays put, so the next cycle covers
// the same range again.
func (w *Watcher) reconcile(ctx context.Context, n *network.Network) error {
	current, err := n.Client.BlockNumber(ctx)
	if err != nil {
		w.providerError(n, "block_number", err)
		return err
	}
	cursor, ok := w.Cursor(n.Name)
	if !ok {
		w.setCursor(n.Name, current)
		return nil
	}
	if current < cursor {
		w.log.Debug("height behind cursor; skipping cycle", "network", n.Name, "height", current, "cursor", cursor)
		return nil
	}

	wallets := w.wallets.List()
	results := make([]walletLogs, 0, 2*len(wallets))
	for _, wl := range wallets {
		addr := common.HexToAddress(wl.Address)
		results = append(results,
			walletLogs{wallet: wl, addr: addr, direction: Incoming},
			walletLogs{wallet: wl, addr: addr, direction: Outgoing},
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.QueryConcurrency)
	for i := range results {
		r := &results[i]
		q := transferQuery(cursor, current, r.addr, r.direction)
		g.Go(func() error {
			logs, err := n.Client.FilterLogs(gctx, q)
			if err != nil {
				return err
			}
			r.logs = logs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.providerError(n, "logs", err)
		return err
	}
	w.setCursor(n.Name, current)

	watched := index(wallets)
	meta := make(map[common.Address]erc20.Metadata)
	for _, r := range results {
		metrics.LogsScanned.WithLabelValues(n.Name).Add(float64(len(r.logs)))
		for _, l := range r.logs {
			if l.Removed {
				continue
			}
			t, ok := erc20.DecodeTransfer(l)
			if !ok {
				continue
			}
			if (r.direction == Incoming && t.To != r.addr) || (r.direction == Outgoing && t.From != r.addr) {
				continue
			}
			md, ok := meta[t.Contract]
			if !ok {
				md, err = erc20.ReadMetadata(ctx, n.Client, t.Contract)
				if err != nil {
					w.providerError(n, "token_metadata", err)
					continue
				}
				meta[t.Contract] = md
			}
			w.emit(ctx, tokenEvent(n, r, t, md, watched))
		}
	}
	return nil
}

// transferQuery filters Transfer logs to or from addr over [from, to].
func transferQuery(from, to uint64, addr common.Address, dir Direction) ethereum.FilterQuery {
	topic := []common.Hash{erc20.AddressTopic(addr)}
	topics := [][]common.Hash{{erc20.TransferTopic}, topic}
	if dir == Incoming {
		topics = [][]common.Hash{{erc20.TransferTopic}, nil, topic}
	}
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Topics:    topics,
	}
}

func tokenEvent(n *network.Network, r walletLogs, t erc20.Transfer, md erc20.Metadata, watched map[common.Address]store.Wallet) Event {
	e := Event{
		Kind:         KindToken,
		Direction:    r.direction,
		Network:      n.Name,
		NativeSymbol: n.NativeSymbol,
		WalletName:   r.wallet.Name,
		Wallet:       r.addr,
		From:         t.From,
		To:           t.To,
		Value:        t.Value,
		TxHash:       t.TxHash,
		LogIndex:     t.LogIndex,
		Block:        t.BlockNumber,
		Token:        t.Contract,
		Symbol:       md.Symbol,
		Decimals:     md.Decimals,
		TxURL:        n.TxURL(t.TxHash),
		FromURL:      n.AddressURL(t.From),
		ToURL:        n.AddressURL(t.To),
		TokenURL:     n.TokenURL(t.Contract),
	}
	e.CounterpartyName = watched[e.Counterparty()].Name
	return e
}
