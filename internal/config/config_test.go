package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwtcode/diagAdapter/margin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfiguration_Env(t *testing.T) {
	t.Setenv("PROFILE_PATH", "/etc/uut/profile.yaml")
	t.Setenv("METRICS_PORT", "9105")
	t.Setenv("KAFKA_BROKER", "kafka:9092")
	t.Setenv("LOGGER_ENABLE", "false")
	t.Setenv("LOGGER_SAVING_DAYS", "bad")

	cfg, err := LoadConfiguration()
	require.NoError(t, err)
	assert.Equal(t, "/etc/uut/profile.yaml", cfg.ProfilePath)
	assert.Equal(t, 9105, cfg.MetricsPort)
	assert.Equal(t, "kafka:9092", cfg.KafkaBroker)
	assert.Equal(t, "uut_diag_results", cfg.KafkaTopic)
	assert.False(t, cfg.Logging.Enable)
	assert.Equal(t, 7, cfg.Logging.SavingDays, "некорректное число заменяется значением по умолчанию")
}

func TestLoadProfile_Sample(t *testing.T) {
	p, err := LoadProfile(&AppConfig{ProfilePath: filepath.Join("..", "..", "configs", "profile.yaml")})
	require.NoError(t, err)

	require.NotEmpty(t, p.Steps)
	assert.Equal(t, StepVoltage, p.Steps[0].Name)
	assert.Equal(t, 2, p.SysInitLevel)

	v, err := p.VoltageConfig()
	require.NoError(t, err)
	assert.Equal(t, []margin.Level{margin.Nominal, margin.High, margin.Low}, v.Levels)
	assert.InDelta(t, 0.9, v.Limits["VDD_CORE"].Nominal, 1e-9)

	temp, err := p.TemperatureConfig()
	require.NoError(t, err)
	assert.Equal(t, "idle", temp.OperationalState)
	require.NotNil(t, temp.Limits["Inlet"].Delta)
	assert.InDelta(t, 20, *temp.Limits["Inlet"].Delta, 1e-9)
	assert.Nil(t, temp.Limits["Exhaust"].Delta)

	poe := p.PoEConfig()
	assert.Equal(t, 2*time.Second, poe.SettleTime)
	assert.Equal(t, 30.0, p.PoE.PortWatts["POE+"])

	batch := p.BatchConfig()
	assert.Equal(t, 10*time.Minute, batch.Runner.Timeout)

	require.Len(t, p.FPGA.Registers, 1)
	assert.Equal(t, uint32(0xff000000), p.FPGA.Registers[0].Mask)
}

func TestLoadProfile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadProfile(&AppConfig{ProfilePath: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps:\n  - name: selftest\n    enabled: true\n"), 0644))
	_, err = LoadProfile(&AppConfig{ProfilePath: bad})
	assert.ErrorContains(t, err, "selftest")
}

func TestProfile_RTCDefaults(t *testing.T) {
	p := &Profile{RTC: RTCProfile{SeverityAllowedSec: 1.5}}
	cfg := p.RTCConfig()
	assert.Equal(t, 1500*time.Millisecond, cfg.SeverityAllowed)
	assert.Equal(t, 2*time.Second, cfg.BaseMargin)
	assert.Equal(t, 3, cfg.MaxProgramAttempts)
}
