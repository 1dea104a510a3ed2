package watcher

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Kind separates native-currency transfers from token transfers.
type Kind int

const (
	KindNative Kind = iota
	KindToken
)

func (k Kind) String() string {
	if k == KindToken {
		return "token"
	}
	return "native"
}

// Direction is relative to the watched wallet.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// Event is one notification-worthy transfer for one watched wallet.
type Event struct {
	Kind      Kind
	Direction Direction

	Network      string
	NativeSymbol string

	WalletName string
	Wallet     common.Address
	From       common.Address
	To         common.Address
	Value      *big.Int

	// CounterpartyName is set when the other side is also watched.
	CounterpartyName string

	TxHash   common.Hash
	LogIndex uint
	Block    uint64

	// Token transfers only.
	Token    common.Address
	Symbol   string
	Decimals uint8

	TxURL    string
	FromURL  string
	ToURL    string
	TokenURL string
}

// Counterparty is the side of the transfer that is not the watched wallet.
func (e Event) Counterparty() common.Address {
	if e.Direction == Outgoing {
		return e.To
	}
	return e.From
}

// Key identifies the delivery: the same transfer seen by two wallets, or by
// one wallet on both sides, yields distinct keys.
func (e Event) Key() string {
	return fmt.Sprintf("%s/%s/%s/%d/%s/%s",
		e.Network, e.Kind, e.TxHash.Hex(), e.LogIndex, e.Direction, strings.ToLower(e.Wallet.Hex()))
}
