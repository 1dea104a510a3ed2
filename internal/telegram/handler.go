package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/0xsamyy/evmwatch/internal/bond"
	"github.com/0xsamyy/evmwatch/internal/health"
	"github.com/0xsamyy/evmwatch/internal/notify"
	"github.com/0xsamyy/evmwatch/internal/store"
	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Sender is the slice of *bot.Bot the router talks to.
type Sender interface {
	notify.Sender
	SetMyCommands(ctx context.Context, params *tg.SetMyCommandsParams) (bool, error)
}

// WalletStore is the watch-list as the router sees it.
type WalletStore interface {
	Add(ctx context.Context, w store.Wallet) error
	Remove(ctx context.Context, addr string) error
	List() []store.Wallet
}

// Starter starts the chain watcher. Only the first call has any effect.
type Starter interface {
	Start(ctx context.Context) bool
}

// Router dispatches chat commands from a static table, gated by the bond.
type Router struct {
	sender   Sender
	bond     *bond.State
	st       WalletStore
	watcher  Starter
	hlth     *health.Health
	networks []string
	log      *slog.Logger

	// root outlives individual updates; the watcher runs under it.
	root context.Context
}

// New constructs the Router. hlth may be nil, which disables /health.
func New(sender Sender, b *bond.State, st WalletStore, w Starter, hlth *health.Health, networks []string) *Router {
	return &Router{
		sender:   sender,
		bond:     b,
		st:       st,
		watcher:  w,
		hlth:     hlth,
		networks: append([]string(nil), networks...),
		log:      slog.With("component", "telegram"),
		root:     context.Background(),
	}
}

// Run registers the router on bot and long-polls until ctx is done.
func (r *Router) Run(ctx context.Context, bot *tg.Bot) {
	r.root = ctx
	bot.RegisterHandler(tg.HandlerTypeMessageText, "", tg.MatchTypePrefix, func(c context.Context, _ *tg.Bot, u *models.Update) {
		if u.Message == nil {
			return
		}
		r.Handle(c, u.Message)
	})
	r.log.Info("waiting for bonding")
	bot.Start(ctx)
}

type commandFunc func(r *Router, ctx context.Context, chatID int64, args string)

// commands is consulted on every message. Everything except /start requires
// the message to come from the bonded chat.
var commands = map[string]commandFunc{
	"/start":        (*Router).start,
	"/wallets":      (*Router).wallets,
	"/addwallet":    (*Router).addWallet,
	"/removewallet": (*Router).removeWallet,
	"/networks":     (*Router).listNetworks,
	"/health":       (*Router).healthReport,
}

// menu is what the bonded chat sees in its command list.
var menu = []models.BotCommand{
	{Command: "wallets", Description: "See stored wallets."},
	{Command: "addwallet", Description: "Add new wallet."},
	{Command: "removewallet", Description: "Remove wallet."},
	{Command: "networks", Description: "Lists all available networks."},
	{Command: "health", Description: "Show service health."},
}

// Handle dispatches one inbound message. Unknown text is ignored.
func (r *Router) Handle(ctx context.Context, m *models.Message) {
	name, args := splitCommand(m.Text)
	fn, ok := commands[name]
	if !ok {
		return
	}
	if name != "/start" && !r.bond.IsBondedTo(m.Chat.ID) {
		r.log.Debug("ignoring command from unbonded chat", "command", name, "chat", m.Chat.ID)
		return
	}
	fn(r, ctx, m.Chat.ID, args)
}

// splitCommand returns the lower-cased command word without any @botname
// suffix, and the trimmed rest of the line.
func splitCommand(text string) (string, string) {
	raw := strings.TrimSpace(text)
	if !strings.HasPrefix(raw, "/") {
		return "", ""
	}
	word, rest := cutSpace(raw)
	if idx := strings.IndexRune(word, '@'); idx != -1 {
		word = word[:idx]
	}
	return strings.ToLower(word), rest
}

// cutSpace splits s at its first run of whitespace.
func cutSpace(s string) (string, string) {
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx == -1 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx:])
}

func (r *Router) start(ctx context.Context, chatID int64, _ string) {
	err := r.bond.Bond(chatID)
	switch {
	case errors.Is(err, bond.ErrAlreadyBonded):
		r.sendHTML(ctx, chatID, "You have already bonded with this bot.")
		return
	case errors.Is(err, bond.ErrBondedElsewhere):
		r.sendHTML(ctx, chatID, "Someone else has already bonded with this bot.")
		return
	case err != nil:
		r.log.Error("bond failed", "chat", chatID, "err", err)
		return
	}
	r.log.Info("bonded", "chat", chatID)

	if _, err := r.sender.SetMyCommands(ctx, &tg.SetMyCommandsParams{
		Commands: menu,
		Scope:    &models.BotCommandScopeChat{ChatID: chatID},
	}); err != nil {
		r.log.Warn("set commands failed", "err", err)
	}
	if r.watcher != nil {
		r.watcher.Start(r.root)
	}
	r.sendHTML(ctx, chatID, "You've successfully bonded with this bot. No one else will be able to bond with it again.")
}

func (r *Router) wallets(ctx context.Context, chatID int64, _ string) {
	list := r.st.List()
	if len(list) == 0 {
		r.sendHTML(ctx, chatID, "Wallets: None. Add one with <code>/addwallet [wallet_address] [wallet_name]</code>")
		return
	}
	var b strings.Builder
	b.WriteString("Wallets:")
	for _, w := range list {
		b.WriteString("\n")
		b.WriteString(notify.EscapeHTML(w.Name))
		b.WriteString("   \t <code>")
		b.WriteString(notify.EscapeHTML(w.Address))
		b.WriteString("</code>")
	}
	r.sendHTML(ctx, chatID, b.String())
}

const (
	addUsage    = "To add a wallet, write <code>/addwallet [wallet_address] [wallet_name]</code>"
	removeUsage = "To remove a wallet, write <code>/removewallet [wallet_address]</code>"
	badAddress  = "The wallet address you provided is not an EVM address."
)

func (r *Router) addWallet(ctx context.Context, chatID int64, args string) {
	addr, name := cutSpace(args)
	if addr == "" || name == "" {
		r.sendHTML(ctx, chatID, addUsage)
		return
	}
	w := store.Wallet{Address: addr, Name: name}
	if err := r.st.Add(ctx, w); err != nil {
		r.replyStoreError(ctx, chatID, err)
		return
	}
	r.log.Info("wallet added", "address", addr, "name", name)
	r.sendHTML(ctx, chatID, fmt.Sprintf("Wallet added: <code>%s</code> (%s)", notify.EscapeHTML(addr), notify.EscapeHTML(name)))
}

func (r *Router) removeWallet(ctx context.Context, chatID int64, args string) {
	addr, _ := cutSpace(args)
	if addr == "" {
		r.sendHTML(ctx, chatID, removeUsage)
		return
	}
	if err := r.st.Remove(ctx, addr); err != nil {
		r.replyStoreError(ctx, chatID, err)
		return
	}
	r.log.Info("wallet removed", "address", addr)
	r.sendHTML(ctx, chatID, "Wallet removed.")
}

func (r *Router) replyStoreError(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, store.ErrInvalidAddress) {
		r.sendHTML(ctx, chatID, badAddress)
		return
	}
	r.log.Error("store write failed", "err", err)
	r.sendHTML(ctx, chatID, fmt.Sprintf("Could not save the watch-list: <code>%s</code>", notify.EscapeHTML(err.Error())))
}

func (r *Router) listNetworks(ctx context.Context, chatID int64, _ string) {
	var b strings.Builder
	b.WriteString("Monitored networks:")
	for _, n := range r.networks {
		b.WriteString("\n  * ")
		b.WriteString(notify.EscapeHTML(n))
	}
	r.sendHTML(ctx, chatID, b.String())
}

func (r *Router) healthReport(ctx context.Context, chatID int64, _ string) {
	if r.hlth == nil {
		return
	}
	r.sendHTML(ctx, chatID, formatHealth(r.hlth.Snapshot()))
}

func formatHealth(rep health.Report) string {
	var b strings.Builder
	b.WriteString("📊 <b>Health Report</b>\n")
	state := "waiting for bond"
	if rep.Started {
		state = "running"
	}
	fmt.Fprintf(&b, "- Watcher: <code>%s</code>\n", state)
	fmt.Fprintf(&b, "- Wallets: <code>%d</code>\n", rep.Wallets)
	fmt.Fprintf(&b, "- Block feeds open: <code>%d/%d</code>\n", rep.FeedsUp, len(rep.Networks))
	fmt.Fprintf(&b, "- Journal entries: <code>%d</code>\n", rep.Delivered)
	for _, n := range rep.Networks {
		cursor := "unset"
		if n.CursorSet {
			cursor = fmt.Sprintf("%d", n.Cursor)
		}
		block := "none"
		if n.BlockSeen {
			block = fmt.Sprintf("%d", n.LastBlock)
		}
		feed := "down"
		if n.FeedOpen {
			feed = "up"
		}
		fmt.Fprintf(&b, "  • %s: feed <code>%s</code>, block <code>%s</code>, cursor <code>%s</code>\n",
			notify.EscapeHTML(n.Name), feed, block, cursor)
	}
	fmt.Fprintf(&b, "- Time: <code>%s</code>", rep.GeneratedAt.Format(time.RFC3339))
	return b.String()
}

func (r *Router) sendHTML(ctx context.Context, chatID int64, html string) {
	if err := notify.SendHTML(ctx, r.sender, chatID, html); err != nil {
		r.log.Warn("send failed", "chat", chatID, "err", err)
	}
}
