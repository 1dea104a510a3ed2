package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xsamyy/evmwatch/internal/bond"
	"github.com/0xsamyy/evmwatch/internal/config"
	"github.com/0xsamyy/evmwatch/internal/health"
	"github.com/0xsamyy/evmwatch/internal/journal"
	"github.com/0xsamyy/evmwatch/internal/metrics"
	"github.com/0xsamyy/evmwatch/internal/network"
	"github.com/0xsamyy/evmwatch/internal/notify"
	"github.com/0xsamyy/evmwatch/internal/store"
	"github.com/0xsamyy/evmwatch/internal/telegram"
	"github.com/0xsamyy/evmwatch/internal/watcher"
	tg "github.com/go-telegram/bot"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.MustLoad()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.RFC3339,
	})))
	slog.Info(cfg.RedactedSummary())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Load(cfg.DataPath)
	if err != nil {
		fatal("store", err)
	}
	slog.Info("watch-list loaded", "path", cfg.DataPath, "wallets", len(st.List()))

	jr, err := journal.Open(cfg.JournalPath, cfg.JournalRetention)
	if err != nil {
		fatal("journal", err)
	}
	defer func() {
		if e := jr.Close(); e != nil {
			slog.Warn("journal close", "err", e)
		}
	}()

	reg, err := network.Dial(ctx, cfg.Networks, cfg.RPCURLs)
	if err != nil {
		fatal("network", err)
	}
	defer reg.Close()

	bot, err := tg.New(cfg.BotAccessToken)
	if err != nil {
		fatal("telegram init", err)
	}

	bonded := bond.New()
	sink := notify.NewSink(bot, bonded, rate.NewLimiter(rate.Limit(cfg.NotifyRate), cfg.NotifyBurst))
	w := watcher.New(reg, st, sink, jr, watcher.Config{PollInterval: cfg.PollInterval})
	router := telegram.New(bot, bonded, st, w, health.New(w, st, jr), reg.Names())

	go pruneJournal(ctx, jr)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				slog.Error("metrics server", "err", err)
			}
		}()
	}

	slog.Info("started; send /start to the bot to bond a chat")
	router.Run(ctx, bot)
	slog.Info("shutdown complete")
}

// pruneJournal drops expired delivery keys once at startup and then hourly.
func pruneJournal(ctx context.Context, jr *journal.Journal) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := jr.Prune(); err != nil {
			slog.Warn("journal prune", "err", err)
		} else if n > 0 {
			slog.Debug("journal pruned", "removed", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fatal(what string, err error) {
	slog.Error(what+" failed", "err", err)
	os.Exit(1)
}
