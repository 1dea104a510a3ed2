package erc20

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	from  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	to    = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func transferData(t *testing.T, v *big.Int) []byte {
	t.Helper()
	data, err := ABI.Events["Transfer"].Inputs.NonIndexed().Pack(v)
	require.NoError(t, err)
	return data
}

func TestTransferTopic(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")), TransferTopic)
}

func TestDecodeTransfer(t *testing.T) {
	l := types.Log{
		Address:     token,
		Topics:      []common.Hash{TransferTopic, AddressTopic(from), AddressTopic(to)},
		Data:        transferData(t, big.NewInt(1_500_000)),
		TxHash:      common.HexToHash("0x01"),
		Index:       7,
		BlockNumber: 101,
	}

	tr, ok := DecodeTransfer(l)
	require.True(t, ok)
	assert.Equal(t, token, tr.Contract)
	assert.Equal(t, from, tr.From)
	assert.Equal(t, to, tr.To)
	assert.Equal(t, 0, tr.Value.Cmp(big.NewInt(1_500_000)))
	assert.Equal(t, uint(7), tr.LogIndex)
	assert.Equal(t, uint64(101), tr.BlockNumber)
}

func TestDecodeTransfer_Rejects(t *testing.T) {
	value := transferData(t, big.NewInt(1))
	tests := []struct {
		name string
		log  types.Log
	}{
		{"missing to topic", types.Log{Topics: []common.Hash{TransferTopic, AddressTopic(from)}, Data: value}},
		{"erc721 token id topic", types.Log{Topics: []common.Hash{TransferTopic, AddressTopic(from), AddressTopic(to), common.HexToHash("0x05")}}},
		{"empty data", types.Log{Topics: []common.Hash{TransferTopic, AddressTopic(from), AddressTopic(to)}}},
		{"other event", types.Log{Topics: []common.Hash{common.HexToHash("0x1234"), AddressTopic(from), AddressTopic(to)}, Data: value}},
		{"dirty address topic", types.Log{Topics: []common.Hash{TransferTopic, common.HexToHash("0xff" + strings.Repeat("0", 22) + strings.Repeat("a", 40)), AddressTopic(to)}, Data: value}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DecodeTransfer(tt.log)
			assert.False(t, ok)
		})
	}
}

type fakeCaller struct {
	symbol   []byte
	decimals []byte
	err      error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch {
	case bytes.Equal(msg.Data, ABI.Methods["symbol"].ID):
		return f.symbol, nil
	case bytes.Equal(msg.Data, ABI.Methods["decimals"].ID):
		return f.decimals, nil
	}
	return nil, errors.New("unexpected call")
}

func packed(t *testing.T, method string, v any) []byte {
	t.Helper()
	out, err := ABI.Methods[method].Outputs.Pack(v)
	require.NoError(t, err)
	return out
}

func TestReadMetadata(t *testing.T) {
	c := &fakeCaller{symbol: packed(t, "symbol", "USDC"), decimals: packed(t, "decimals", uint8(6))}

	meta, err := ReadMetadata(context.Background(), c, token)
	require.NoError(t, err)
	assert.Equal(t, Metadata{Symbol: "USDC", Decimals: 6}, meta)
}

func TestReadMetadata_Bytes32Symbol(t *testing.T) {
	sym := make([]byte, 32)
	copy(sym, "MKR")
	c := &fakeCaller{symbol: sym, decimals: packed(t, "decimals", uint8(18))}

	meta, err := ReadMetadata(context.Background(), c, token)
	require.NoError(t, err)
	assert.Equal(t, "MKR", meta.Symbol)
}

func TestReadMetadata_CallError(t *testing.T) {
	c := &fakeCaller{err: errors.New("execution reverted")}

	_, err := ReadMetadata(context.Background(), c, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestFormatUnits(t *testing.T) {
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	half := new(big.Int).Div(oneEth, big.NewInt(2))

	assert.Equal(t, "1", FormatEther(oneEth))
	assert.Equal(t, "0.5", FormatEther(half))
	assert.Equal(t, "0.000000000000000001", FormatEther(big.NewInt(1)))
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "42", FormatUnits(big.NewInt(42), 0))
	assert.Equal(t, "0", FormatUnits(nil, 6))
}
