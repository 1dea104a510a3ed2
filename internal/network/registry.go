// Package network holds the compiled-in chain catalog and the live RPC
// clients for the networks selected at startup.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
)

// Client is what the watcher needs from a chain data provider.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	BlockTransactions(ctx context.Context, number uint64) (*Block, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Chain is static metadata for one EVM network.
type Chain struct {
	Name         string
	ChainID      int64
	NativeSymbol string
	ExplorerURL  string
	DefaultRPC   string
}

// Catalog lists every network the bot knows how to watch.
var Catalog = []Chain{
	{Name: "mainnet", ChainID: 1, NativeSymbol: "ETH", ExplorerURL: "https://etherscan.io", DefaultRPC: "wss://ethereum-rpc.publicnode.com"},
	{Name: "base", ChainID: 8453, NativeSymbol: "ETH", ExplorerURL: "https://basescan.org", DefaultRPC: "wss://base-rpc.publicnode.com"},
	{Name: "linea", ChainID: 59144, NativeSymbol: "ETH", ExplorerURL: "https://lineascan.build", DefaultRPC: "wss://linea-rpc.publicnode.com"},
	{Name: "zkSync", ChainID: 324, NativeSymbol: "ETH", ExplorerURL: "https://explorer.zksync.io", DefaultRPC: "wss://mainnet.era.zksync.io/ws"},
	{Name: "scroll", ChainID: 534352, NativeSymbol: "ETH", ExplorerURL: "https://scrollscan.com", DefaultRPC: "wss://scroll-rpc.publicnode.com"},
	{Name: "bsc", ChainID: 56, NativeSymbol: "BNB", ExplorerURL: "https://bscscan.com", DefaultRPC: "wss://bsc-rpc.publicnode.com"},
	{Name: "arbitrum", ChainID: 42161, NativeSymbol: "ETH", ExplorerURL: "https://arbiscan.io", DefaultRPC: "wss://arbitrum-one-rpc.publicnode.com"},
	{Name: "arbitrumNova", ChainID: 42170, NativeSymbol: "ETH", ExplorerURL: "https://nova.arbiscan.io", DefaultRPC: "wss://arbitrum-nova-rpc.publicnode.com"},
	{Name: "polygon", ChainID: 137, NativeSymbol: "POL", ExplorerURL: "https://polygonscan.com", DefaultRPC: "wss://polygon-bor-rpc.publicnode.com"},
}

// Lookup finds a catalog entry by name, case-insensitively.
func Lookup(name string) (Chain, bool) {
	for _, c := range Catalog {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Chain{}, false
}

// Network is a catalog entry bound to a live client.
type Network struct {
	Chain
	Client Client
}

// New binds c to client.
func New(c Chain, client Client) *Network {
	return &Network{Chain: c, Client: client}
}

// TxURL links a transaction on the network's block explorer.
func (n *Network) TxURL(h common.Hash) string { return n.ExplorerURL + "/tx/" + h.Hex() }

// AddressURL links an account page.
func (n *Network) AddressURL(a common.Address) string { return n.ExplorerURL + "/address/" + a.Hex() }

// TokenURL links a token contract page.
func (n *Network) TokenURL(a common.Address) string { return n.ExplorerURL + "/token/" + a.Hex() }

// Registry is the fixed set of active networks.
type Registry struct {
	networks []*Network
}

// NewRegistry wraps already-constructed networks, in order.
func NewRegistry(networks ...*Network) *Registry {
	return &Registry{networks: networks}
}

// All returns the active networks in configuration order.
func (r *Registry) All() []*Network { return r.networks }

// Names returns the active network names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n.Name)
	}
	return out
}

// Close closes every client.
func (r *Registry) Close() {
	for _, n := range r.networks {
		n.Client.Close()
	}
}

var wsDialer = websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 15 * time.Second,
	ReadBufferSize:   1 << 16,
	WriteBufferSize:  1 << 12,
}

// Dial connects to every named network. overrides maps a network name to a
// websocket RPC URL replacing the catalog default. Each endpoint's chain id is
// checked against the catalog so a misconfigured URL fails at startup.
func Dial(ctx context.Context, names []string, overrides map[string]string) (*Registry, error) {
	reg := &Registry{}
	for _, name := range names {
		c, ok := Lookup(name)
		if !ok {
			reg.Close()
			return nil, fmt.Errorf("network: unknown network %q (known: %s)", name, strings.Join(catalogNames(), ", "))
		}
		url := c.DefaultRPC
		if u, ok := overrides[name]; ok && u != "" {
			url = u
		}

		client, err := dial(ctx, c, url)
		if err != nil {
			reg.Close()
			return nil, err
		}
		reg.networks = append(reg.networks, New(c, client))
		slog.Info("network connected", "component", "network", "network", c.Name, "chain_id", c.ChainID)
	}
	return reg, nil
}

func dial(ctx context.Context, c Chain, url string) (*rpcClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	rc, err := rpc.DialOptions(dialCtx, url, rpc.WithWebsocketDialer(wsDialer))
	if err != nil {
		return nil, fmt.Errorf("network %s: dial: %w", c.Name, err)
	}
	client := ethclient.NewClient(rc)

	id, err := client.ChainID(dialCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("network %s: chain id: %w", c.Name, err)
	}
	if id.Int64() != c.ChainID {
		client.Close()
		return nil, fmt.Errorf("network %s: endpoint reports chain id %s, want %d", c.Name, id, c.ChainID)
	}
	return &rpcClient{Client: client, rpc: rc}, nil
}

func catalogNames() []string {
	out := make([]string, 0, len(Catalog))
	for _, c := range Catalog {
		out = append(out, c.Name)
	}
	return out
}
