package network

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	c, ok := Lookup("ARBITRUMNOVA")
	require.True(t, ok)
	assert.Equal(t, "arbitrumNova", c.Name)
	assert.Equal(t, int64(42170), c.ChainID)

	_, ok = Lookup("zkFair")
	assert.False(t, ok)
}

func TestCatalog_UniqueNamesAndIDs(t *testing.T) {
	names := map[string]bool{}
	ids := map[int64]bool{}
	for _, c := range Catalog {
		assert.False(t, names[c.Name], c.Name)
		assert.False(t, ids[c.ChainID], c.Name)
		names[c.Name] = true
		ids[c.ChainID] = true
		assert.NotEmpty(t, c.ExplorerURL)
		assert.Regexp(t, `^wss://`, c.DefaultRPC)
	}
}

func TestNetwork_ExplorerLinks(t *testing.T) {
	c, _ := Lookup("mainnet")
	n := New(c, nil)

	h := common.HexToHash("0xabc")
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	assert.Equal(t, "https://etherscan.io/tx/"+h.Hex(), n.TxURL(h))
	assert.Equal(t, "https://etherscan.io/address/"+a.Hex(), n.AddressURL(a))
	assert.Equal(t, "https://etherscan.io/token/"+a.Hex(), n.TokenURL(a))
}

func TestRegistry_Names(t *testing.T) {
	mainnet, _ := Lookup("mainnet")
	base, _ := Lookup("base")
	reg := NewRegistry(New(mainnet, nil), New(base, nil))
	assert.Equal(t, []string{"mainnet", "base"}, reg.Names())
}

func TestDial_UnknownNetwork(t *testing.T) {
	_, err := Dial(context.Background(), []string{"nosuchchain"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown network "nosuchchain"`)
}
