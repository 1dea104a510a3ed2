// Package watcher follows every configured network and turns transfers that
// touch a watched wallet into notification events.
//
// Two paths run per network. The live path follows new heads and scans each
// block's transactions for native-currency transfers. The reconciliation path
// runs on a timer and queries ERC-20 Transfer logs for every wallet between
// the network's cursor and the current height.
package watcher

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xsamyy/evmwatch/internal/metrics"
	"github.com/0xsamyy/evmwatch/internal/network"
	"github.com/0xsamyy/evmwatch/internal/store"
	"golang.org/x/sync/errgroup"
)

// WalletSource is the read side of the watch-list.
type WalletSource interface {
	List() []store.Wallet
}

// Sink delivers events, typically to the bonded chat.
type Sink interface {
	Notify(ctx context.Context, e Event) error
}

// Deduper reports whether an event key is seen for the first time.
type Deduper interface {
	Claim(key string) (bool, error)
}

// Config tunes the watcher.
type Config struct {
	// PollInterval is the reconciliation cadence.
	PollInterval time.Duration
	// MaxCatchUp bounds how many missed blocks the live path replays after
	// a gap before skipping ahead.
	MaxCatchUp uint64
	// QueryConcurrency bounds in-flight log queries per network.
	QueryConcurrency int
}

// Watcher owns the per-network feeds and the reconciliation loop.
type Watcher struct {
	networks []*network.Network
	wallets  WalletSource
	sink     Sink
	dedupe   Deduper
	cfg      Config
	log      *slog.Logger

	startOnce sync.Once
	started   atomic.Bool

	mu    sync.Mutex
	state map[string]*networkState
}

type networkState struct {
	cursor    uint64
	cursorSet bool
	lastBlock uint64
	blockSeen bool
	feedOpen  bool
	lastCycle time.Time
}

// New constructs a Watcher over the registry's networks. dedupe may be nil.
func New(reg *network.Registry, wallets WalletSource, sink Sink, dedupe Deduper, cfg Config) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxCatchUp == 0 {
		cfg.MaxCatchUp = 128
	}
	if cfg.QueryConcurrency <= 0 {
		cfg.QueryConcurrency = 8
	}
	w := &Watcher{
		networks: reg.All(),
		wallets:  wallets,
		sink:     sink,
		dedupe:   dedupe,
		cfg:      cfg,
		log:      slog.With("component", "watcher"),
		state:    make(map[string]*networkState, len(reg.All())),
	}
	for _, n := range w.networks {
		w.state[n.Name] = &networkState{}
	}
	return w
}

// Start initialises the cursors and launches both paths. Only the first
// call has any effect; it reports whether this call started the watcher.
func (w *Watcher) Start(ctx context.Context) bool {
	first := false
	w.startOnce.Do(func() {
		first = true
		w.initCursors(ctx)
		for _, n := range w.networks {
			go w.runFeed(ctx, n)
		}
		go w.runReconcile(ctx)
		w.started.Store(true)
		w.log.Info("watcher started", "networks", len(w.networks), "poll", w.cfg.PollInterval)
	})
	return first
}

// Started reports whether Start has run.
func (w *Watcher) Started() bool { return w.started.Load() }

// initCursors reads every network's height concurrently. A network whose
// height cannot be read gets its cursor on the first successful cycle.
func (w *Watcher) initCursors(ctx context.Context) {
	var g errgroup.Group
	for _, n := range w.networks {
		n := n
		g.Go(func() error {
			height, err := n.Client.BlockNumber(ctx)
			if err != nil {
				w.providerError(n, "block_number", err)
				return nil
			}
			w.setCursor(n.Name, height)
			return nil
		})
	}
	_ = g.Wait()
}

// emit filters e through the journal and hands it to the sink.
func (w *Watcher) emit(ctx context.Context, e Event) {
	if w.dedupe != nil {
		first, err := w.dedupe.Claim(e.Key())
		if err != nil {
			w.log.Warn("journal claim failed; delivering anyway", "key", e.Key(), "err", err)
		} else if !first {
			w.log.Debug("duplicate event dropped", "key", e.Key())
			return
		}
	}
	if err := w.sink.Notify(ctx, e); err != nil {
		w.log.Warn("notify failed", "network", e.Network, "tx", e.TxHash.Hex(), "err", err)
		return
	}
	metrics.Notifications.WithLabelValues(e.Network, e.Kind.String(), e.Direction.String()).Inc()
}

func (w *Watcher) providerError(n *network.Network, op string, err error) {
	metrics.ProviderErrors.WithLabelValues(n.Name, op).Inc()
	w.log.Warn("provider error", "network", n.Name, "op", op, "err", err)
}

// Cursor returns the reconciliation cursor of a network.
func (w *Watcher) Cursor(name string) (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.state[name]
	if !ok {
		return 0, false
	}
	return st.cursor, st.cursorSet
}

func (w *Watcher) setCursor(name string, height uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state[name]
	st.cursor = height
	st.cursorSet = true
	st.lastCycle = time.Now()
	metrics.CursorHeight.WithLabelValues(name).Set(float64(height))
}

func (w *Watcher) lastBlock(name string) (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state[name]
	return st.lastBlock, st.blockSeen
}

func (w *Watcher) setLastBlock(name string, number uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state[name]
	st.lastBlock = number
	st.blockSeen = true
}

func (w *Watcher) setFeedOpen(name string, open bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state[name].feedOpen = open
}

// NetworkStats is a point-in-time view of one network, used by /health.
type NetworkStats struct {
	Name      string
	Cursor    uint64
	CursorSet bool
	LastBlock uint64
	BlockSeen bool
	FeedOpen  bool
	LastCycle time.Time
}

// Stats reports every network, sorted by name for stable output.
func (w *Watcher) Stats() []NetworkStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]NetworkStats, 0, len(w.state))
	for name, st := range w.state {
		out = append(out, NetworkStats{
			Name:      name,
			Cursor:    st.cursor,
			CursorSet: st.cursorSet,
			LastBlock: st.lastBlock,
			BlockSeen: st.blockSeen,
			FeedOpen:  st.feedOpen,
			LastCycle: st.lastCycle,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
