package health

import (
	"time"

	"github.com/0xsamyy/evmwatch/internal/store"
	"github.com/0xsamyy/evmwatch/internal/watcher"
)

// WalletLister is the minimal interface we need from the store.
type WalletLister interface {
	List() []store.Wallet
}

// WatcherStats is the read side of the watcher.
type WatcherStats interface {
	Started() bool
	Stats() []watcher.NetworkStats
}

// DeliveryCounter reports how many deliveries the journal remembers.
type DeliveryCounter interface {
	Count() (int, error)
}

// Health exposes a read-only snapshot of service state for the /health command.
type Health struct {
	w  WatcherStats
	st WalletLister
	jr DeliveryCounter
}

// New returns a Health aggregator. jr may be nil.
func New(w WatcherStats, st WalletLister, jr DeliveryCounter) *Health {
	return &Health{w: w, st: st, jr: jr}
}

// Report is the struct returned to the caller (Telegram handler) for formatting.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	Started  bool                   `json:"started"`
	Networks []watcher.NetworkStats `json:"networks"`
	FeedsUp  int                    `json:"feeds_open"`

	Wallets   int `json:"wallets"`
	Delivered int `json:"delivered_in_journal"`
}

// Snapshot gathers a point-in-time report. It does not block for long operations.
func (h *Health) Snapshot() Report {
	rep := Report{
		GeneratedAt: time.Now().UTC(),
		Started:     h.w.Started(),
		Networks:    h.w.Stats(),
	}
	for _, n := range rep.Networks {
		if n.FeedOpen {
			rep.FeedsUp++
		}
	}
	if h.st != nil {
		rep.Wallets = len(h.st.List())
	}
	if h.jr != nil {
		if n, err := h.jr.Count(); err == nil {
			rep.Delivered = n
		}
	}
	return rep
}
