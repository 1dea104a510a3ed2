// Package erc20 decodes ERC-20 Transfer logs and reads token metadata.
package erc20

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const abiJSON = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

var (
	// ABI is the subset of the ERC-20 interface the watcher needs.
	ABI = mustParse(abiJSON)
	// TransferTopic is keccak256("Transfer(address,address,uint256)").
	TransferTopic = ABI.Events["Transfer"].ID
)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("erc20: parse abi: %v", err))
	}
	return parsed
}

// Transfer is a decoded Transfer log.
type Transfer struct {
	Contract    common.Address
	From        common.Address
	To          common.Address
	Value       *big.Int
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

// DecodeTransfer turns a raw log into a Transfer. It reports false when any
// of from, to or value cannot be decoded, which includes ERC-721 transfers
// (three indexed arguments, no data).
func DecodeTransfer(l types.Log) (Transfer, bool) {
	if len(l.Topics) != 3 || l.Topics[0] != TransferTopic {
		return Transfer{}, false
	}
	if !isAddressTopic(l.Topics[1]) || !isAddressTopic(l.Topics[2]) {
		return Transfer{}, false
	}
	out, err := ABI.Unpack("Transfer", l.Data)
	if err != nil || len(out) != 1 {
		return Transfer{}, false
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return Transfer{}, false
	}
	return Transfer{
		Contract:    l.Address,
		From:        common.BytesToAddress(l.Topics[1].Bytes()),
		To:          common.BytesToAddress(l.Topics[2].Bytes()),
		Value:       value,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
		BlockNumber: l.BlockNumber,
	}, true
}

// isAddressTopic reports whether the upper 12 bytes of an indexed address
// argument are zero.
func isAddressTopic(h common.Hash) bool {
	return bytes.Equal(h[:12], make([]byte, 12))
}

// AddressTopic left-pads addr into a topic filter value.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// Caller is the contract-read half of ethclient.Client.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Metadata is what a notification needs to render a token amount.
type Metadata struct {
	Symbol   string
	Decimals uint8
}

// ReadMetadata calls symbol() and decimals() on token concurrently.
func ReadMetadata(ctx context.Context, c Caller, token common.Address) (Metadata, error) {
	var meta Metadata
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sym, err := readSymbol(gctx, c, token)
		if err != nil {
			return err
		}
		meta.Symbol = sym
		return nil
	})
	g.Go(func() error {
		dec, err := readDecimals(gctx, c, token)
		if err != nil {
			return err
		}
		meta.Decimals = dec
		return nil
	})
	if err := g.Wait(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func call(ctx context.Context, c Caller, token common.Address, method string) ([]byte, error) {
	input, err := ABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("erc20: pack %s: %w", method, err)
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("erc20: call %s on %s: %w", method, token.Hex(), err)
	}
	return out, nil
}

func readSymbol(ctx context.Context, c Caller, token common.Address) (string, error) {
	out, err := call(ctx, c, token, "symbol")
	if err != nil {
		return "", err
	}
	vals, err := ABI.Unpack("symbol", out)
	if err == nil && len(vals) == 1 {
		if s, ok := vals[0].(string); ok {
			return s, nil
		}
	}
	// Some early tokens (MKR, SAI) return bytes32.
	if len(out) == 32 {
		return string(bytes.TrimRight(out, "\x00")), nil
	}
	return "", fmt.Errorf("erc20: decode symbol of %s: unexpected %d-byte result", token.Hex(), len(out))
}

func readDecimals(ctx context.Context, c Caller, token common.Address) (uint8, error) {
	out, err := call(ctx, c, token, "decimals")
	if err != nil {
		return 0, err
	}
	vals, err := ABI.Unpack("decimals", out)
	if err != nil || len(vals) != 1 {
		return 0, fmt.Errorf("erc20: decode decimals of %s: %v", token.Hex(), err)
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("erc20: decode decimals of %s: got %T", token.Hex(), vals[0])
	}
	return d, nil
}

// FormatUnits renders value scaled down by 10^decimals without rounding,
// trailing zeros trimmed: FormatUnits(1500000, 6) == "1.5".
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// FormatEther is FormatUnits with 18 decimals.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}
