// Package notify renders watcher events as Telegram HTML and delivers them
// to the bonded chat.
package notify

import (
	"strings"

	"github.com/0xsamyy/evmwatch/internal/erc20"
	"github.com/0xsamyy/evmwatch/internal/watcher"
	"github.com/ethereum/go-ethereum/common"
)

// Format renders e as HTML. Native transfers list both parties on their own
// line; token transfers read as a sentence from the watched wallet's side.
func Format(e watcher.Event) string {
	var lines []string
	if e.Direction == watcher.Outgoing {
		lines = append(lines, "<strong>🟥 OUTGOING</strong> · "+EscapeHTML(e.Network))
	} else {
		lines = append(lines, "<strong>🟩 INCOMING</strong> · "+EscapeHTML(e.Network))
	}

	wallet := link(walletURL(e), displayName(e.WalletName, e.Wallet))
	other := link(counterpartyURL(e), displayName(e.CounterpartyName, e.Counterparty()))

	if e.Kind == watcher.KindToken {
		amount := erc20.FormatUnits(e.Value, e.Decimals) + " " + link(e.TokenURL, tokenLabel(e))
		lines = append(lines, wallet)
		if e.Direction == watcher.Outgoing {
			lines = append(lines, "sent "+amount, "to "+other+".")
		} else {
			lines = append(lines, "received "+amount, "from "+other+".")
		}
	} else {
		from, to := wallet, other
		if e.Direction == watcher.Incoming {
			from, to = other, wallet
		}
		lines = append(lines,
			"From: "+from,
			"To:   "+to,
			"Amount: "+erc20.FormatEther(e.Value)+" "+EscapeHTML(e.NativeSymbol),
		)
	}

	lines = append(lines, link(e.TxURL, "Tx Hash"))
	return strings.Join(lines, "\n")
}

func walletURL(e watcher.Event) string {
	if e.Direction == watcher.Outgoing {
		return e.FromURL
	}
	return e.ToURL
}

func counterpartyURL(e watcher.Event) string {
	if e.Direction == watcher.Outgoing {
		return e.ToURL
	}
	return e.FromURL
}

func tokenLabel(e watcher.Event) string {
	if e.Symbol != "" {
		return EscapeHTML(e.Symbol)
	}
	return PrettyAddress(e.Token.Hex())
}

// displayName prefers the registered name and falls back to the shortened
// address. The result is HTML-safe.
func displayName(name string, a common.Address) string {
	if strings.TrimSpace(name) != "" {
		return EscapeHTML(name)
	}
	return PrettyAddress(a.Hex())
}

func link(href, text string) string {
	if href == "" {
		return text
	}
	return `<a href="` + EscapeHTML(href) + `">` + text + `</a>`
}

// PrettyAddress shortens a hex address to its first 6 and last 4
// characters: 0x1234...abcd.
func PrettyAddress(a string) string {
	if len(a) <= 10 {
		return a
	}
	return a[:6] + "..." + a[len(a)-4:]
}

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapes the characters Telegram's HTML parse mode reserves.
func EscapeHTML(s string) string { return htmlEscaper.Replace(s) }
