package network

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Block is a produced block reduced to the fields native-transfer matching
// reads.
type Block struct {
	Number       uint64
	Hash         common.Hash
	Transactions []Tx
}

// Tx is one transaction as reported by the provider. From and To are nil
// when the provider omits them; To is nil for contract creation.
type Tx struct {
	Hash  common.Hash
	From  *common.Address
	To    *common.Address
	Value *big.Int
}

// rpcBlock mirrors eth_getBlockByNumber with full transactions. Decoding
// only these fields keeps blocks readable on chains whose transaction types
// go-ethereum does not know (OP-stack deposits, zkSync system txs).
type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	Transactions []rpcTx        `json:"transactions"`
}

type rpcTx struct {
	Hash  common.Hash     `json:"hash"`
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

func (b *rpcBlock) block() *Block {
	out := &Block{
		Number:       uint64(b.Number),
		Hash:         b.Hash,
		Transactions: make([]Tx, 0, len(b.Transactions)),
	}
	for _, t := range b.Transactions {
		tx := Tx{Hash: t.Hash, From: t.From, To: t.To, Value: new(big.Int)}
		if t.Value != nil {
			tx.Value = t.Value.ToInt()
		}
		out.Transactions = append(out.Transactions, tx)
	}
	return out
}

// rpcClient is an ethclient.Client plus the raw block read.
type rpcClient struct {
	*ethclient.Client
	rpc *rpc.Client
}

// BlockTransactions fetches block number with its transactions.
func (c *rpcClient) BlockTransactions(ctx context.Context, number uint64) (*Block, error) {
	var raw *rpcBlock
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", number, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", number, ethereum.NotFound)
	}
	return raw.block(), nil
}
