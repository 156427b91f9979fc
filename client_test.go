package diag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iwtcode/diagAdapter/console"
	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Serial:         "FOC2231X0QZ",
		CommandTimeout: 200 * time.Millisecond,
		RetryAttempts:  2,
		RetryBackoff:   time.Millisecond,
		SettleDelay:    time.Millisecond,
		LogLevel:       "off",
	}
}

func newSimClient(t *testing.T, sim *console.SimTransport, opts ...Option) *Client {
	t.Helper()
	c, err := New(testConfig(), append([]Option{WithTransport(sim)}, opts...)...)
	require.NoError(t, err, "Не удалось создать клиента")
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLoad(t *testing.T) {
	t.Setenv("UUT_ADDRESS", "10.1.2.3:2033")
	t.Setenv("UUT_SERIAL", "FOC2231X0QZ")
	t.Setenv("UUT_COMMAND_TIMEOUT_MS", "2500")
	t.Setenv("UUT_RETRY_ATTEMPTS", "bogus")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()
	assert.Equal(t, "10.1.2.3:2033", cfg.Address)
	assert.Equal(t, "FOC2231X0QZ", cfg.Serial)
	assert.Equal(t, 2500*time.Millisecond, cfg.CommandTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewRejectsBadPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.Prompt = "(["
	_, err := New(cfg, WithTransport(console.NewSimTransport("")))
	assert.Error(t, err)
}

func TestExec(t *testing.T) {
	sim := console.NewSimTransport("").Handle("GetTemp", "Inlet Temperature: 30 C")
	c := newSimClient(t, sim)

	out, err := c.Exec(context.Background(), console.CmdGetTemp)
	require.NoError(t, err)
	assert.Contains(t, out, "Inlet Temperature: 30 C")
}

func TestExecRetriesTimeouts(t *testing.T) {
	sim := console.NewSimTransport("").Stall("GetTemp", "")
	c := newSimClient(t, sim)

	_, err := c.Exec(context.Background(), console.CmdGetTemp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagerr.ErrTimeout))
	assert.Contains(t, err.Error(), "gave up after 2 attempts")
	assert.Equal(t, []string{"GetTemp", "GetTemp"}, sim.Commands())
}

func TestCustomPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.Prompt = `(?m)^switch#\s*$`
	sim := console.NewSimTransport("switch# ").Handle("sysinit 1", "init ok")

	c, err := New(cfg, WithTransport(sim))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SysInit(context.Background(), 1))
	assert.Equal(t, []string{"sysinit 1"}, sim.Commands())
}

func TestSimScriptTransport(t *testing.T) {
	cfg := testConfig()
	cfg.SimScript = "testdata/uut.yaml"

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	temps, err := c.ReadTemperatures(context.Background())
	require.NoError(t, err)
	assert.Len(t, temps, 2)
}
