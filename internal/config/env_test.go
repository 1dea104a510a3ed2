package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "123456:abcdef")

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "data.json", cfg.DataPath)
	assert.Equal(t, "evmwatch.db", cfg.JournalPath)
	assert.Equal(t, []string{"mainnet"}, cfg.Networks)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.JournalRetention)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1.0, cfg.NotifyRate)
	assert.Equal(t, 5, cfg.NotifyBurst)
	assert.Empty(t, cfg.RPCURLs)
}

func TestParse_RejectsNotifyPacing(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "123456:abcdef")
	t.Setenv("NOTIFY_RATE", "0")
	t.Setenv("NOTIFY_BURST", "0")

	_, err := parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTIFY_RATE must be positive")
	assert.Contains(t, err.Error(), "NOTIFY_BURST must be at least 1")
}

func TestParse_MissingCredential(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "  ")

	_, err := parse()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Contains(t, err.Error(), "BOT_ACCESS_TOKEN is required")
}

func TestParse_CollectsAllProblems(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("POLL_INTERVAL", "0s")

	_, err := parse()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
}

func TestParse_NetworksAndRPCOverrides(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "123456:abcdef")
	t.Setenv("NETWORKS", "mainnet, base,,mainnet")
	t.Setenv("BASE_RPC_URL", "wss://base.example.org/v2/0123456789abcdef0123")

	cfg, err := parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"mainnet", "base"}, cfg.Networks)
	assert.Equal(t, "wss://base.example.org/v2/0123456789abcdef0123", cfg.RPCURLs["base"])
	assert.NotContains(t, cfg.RedactedSummary(), "0123456789abcdef0123")
}

func TestParse_RejectsHTTPRPC(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "123456:abcdef")
	t.Setenv("MAINNET_RPC_URL", "https://eth.example.org")

	_, err := parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAINNET_RPC_URL must start with wss://")
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "(empty)", redactToken(""))
	assert.Equal(t, "***", redactToken("abc"))
	assert.Equal(t, "123456...(redacted)", redactToken("123456:secret"))
}

func TestRPCURLVar(t *testing.T) {
	assert.Equal(t, "ARBITRUMNOVA_RPC_URL", RPCURLVar("arbitrumNova"))
}
