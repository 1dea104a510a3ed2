package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/0xsamyy/evmwatch/internal/metrics"
	"github.com/0xsamyy/evmwatch/internal/network"
	"github.com/0xsamyy/evmwatch/internal/store"
	"github.com/0xsamyy/evmwatch/internal/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errFeedClosed = errors.New("head subscription closed")

// runFeed keeps a new-heads subscription open for n until ctx is done.
func (w *Watcher) runFeed(ctx context.Context, n *network.Network) {
	bo := util.NewBackoff(1*time.Second, 30*time.Second, 2.0, 0.2)
	log := w.log.With("network", n.Name)

	for ctx.Err() == nil {
		heads := make(chan *types.Header, 16)
		sub, err := n.Client.SubscribeNewHead(ctx, heads)
		if err != nil {
			wait := bo.Next()
			w.providerError(n, "subscribe", err)
			log.Info("resubscribing", "in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		w.setFeedOpen(n.Name, true)
		bo.Reset()
		log.Info("head feed open")

		err = w.consume(ctx, n, sub.Err(), heads)
		sub.Unsubscribe()
		w.setFeedOpen(n.Name, false)
		if err == nil {
			return
		}

		wait := bo.Next()
		log.Warn("head feed dropped", "err", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// consume processes heads until the subscription fails or ctx is done. It
// returns nil only on cancellation.
func (w *Watcher) consume(ctx context.Context, n *network.Network, errs <-chan error, heads <-chan *types.Header) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if err == nil {
				err = errFeedClosed
			}
			return err
		case h := <-heads:
			if h == nil || h.Number == nil {
				continue
			}
			w.follow(ctx, n, h.Number.Uint64())
		}
	}
}

// follow brings the network's last processed block up to head. Blocks
// skipped since the previous head are processed first, in order. A failed
// fetch stops the walk so the next head retries from the same point.
func (w *Watcher) follow(ctx context.Context, n *network.Network, head uint64) {
	start := head
	if last, ok := w.lastBlock(n.Name); ok {
		if head <= last {
			return
		}
		start = last + 1
		if head-start+1 > w.cfg.MaxCatchUp {
			skipped := head - w.cfg.MaxCatchUp + 1 - start
			w.log.Warn("gap too large; skipping ahead", "network", n.Name, "from", start, "skipped", skipped)
			start = head - w.cfg.MaxCatchUp + 1
		}
	}

	for num := start; num <= head; num++ {
		if err := w.processBlock(ctx, n, num); err != nil {
			w.providerError(n, "block", err)
			return
		}
		w.setLastBlock(n.Name, num)
	}
}

// processBlock fetches one block and emits an event for every transaction
// side that matches a watched wallet.
func (w *Watcher) processBlock(ctx context.Context, n *network.Network, number uint64) error {
	blk, err := n.Client.BlockTransactions(ctx, number)
	if err != nil {
		return err
	}
	metrics.BlocksProcessed.WithLabelValues(n.Name).Inc()

	watched := index(w.wallets.List())
	if len(watched) == 0 {
		return nil
	}
	for _, tx := range blk.Transactions {
		for _, e := range matchNative(n, blk.Number, tx, watched) {
			w.emit(ctx, e)
		}
	}
	return nil
}

// index keys wallets by address. HexToAddress ignores letter case, so lookups
// are case-insensitive.
func index(wallets []store.Wallet) map[common.Address]store.Wallet {
	out := make(map[common.Address]store.Wallet, len(wallets))
	for _, wl := range wallets {
		out[common.HexToAddress(wl.Address)] = wl
	}
	return out
}

// matchNative returns zero, one or two events for tx. Transactions without
// a sender or a recipient, such as contract creations, never match.
func matchNative(n *network.Network, block uint64, tx network.Tx, watched map[common.Address]store.Wallet) []Event {
	if tx.From == nil || tx.To == nil {
		return nil
	}
	from, to := *tx.From, *tx.To

	base := Event{
		Kind:         KindNative,
		Network:      n.Name,
		NativeSymbol: n.NativeSymbol,
		From:         from,
		To:           to,
		Value:        tx.Value,
		TxHash:       tx.Hash,
		Block:        block,
		TxURL:        n.TxURL(tx.Hash),
		FromURL:      n.AddressURL(from),
		ToURL:        n.AddressURL(to),
	}

	var out []Event
	if wl, ok := watched[from]; ok {
		e := base
		e.Direction = Outgoing
		e.Wallet = from
		e.WalletName = wl.Name
		e.CounterpartyName = watched[to].Name
		out = append(out, e)
	}
	if wl, ok := watched[to]; ok {
		e := base
		e.Direction = Incoming
		e.Wallet = to
		e.WalletName = wl.Name
		e.CounterpartyName = watched[from].Name
		out = append(out, e)
	}
	return out
}

// sleep waits for d or ctx, reporting false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
