package config

import (
	"fmt"
	"os"
	"time"

	diag "github.com/iwtcode/diagAdapter"
	"github.com/iwtcode/diagAdapter/batch"
	"github.com/iwtcode/diagAdapter/margin"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/rtc"
	"gopkg.in/yaml.v3"
)

// Имена шагов профиля.
const (
	StepVoltage     = "voltage_margin"
	StepTemperature = "temperature"
	StepPortLink    = "port_link"
	StepECID        = "asic_ecid"
	StepPoE         = "poe"
	StepRTC         = "rtc"
	StepBatch       = "batch"
	StepFPGA        = "fpga_registers"
	StepStack       = "stack_ring"
)

// Profile - тестовый профиль изделия: пределы, таблицы и порядок шагов.
type Profile struct {
	SysInitLevel int            `yaml:"sysinit_level"`
	Steps        []StepEntry    `yaml:"steps"`
	Voltage      VoltageProfile `yaml:"voltage"`
	Temperature  TempProfile    `yaml:"temperature"`
	Ports        PortsProfile   `yaml:"ports"`
	PoE          PoEProfile     `yaml:"poe"`
	RTC          RTCProfile     `yaml:"rtc"`
	ECID         ECIDProfile    `yaml:"ecid"`
	Batch        BatchProfile   `yaml:"batch"`
	FPGA         FPGAProfile    `yaml:"fpga"`
}

type StepEntry struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

type VoltageProfile struct {
	Instance int               `yaml:"instance"`
	Levels   []string          `yaml:"levels"`
	Rails    []string          `yaml:"rails"`
	Limits   models.LimitTable `yaml:"limits"`
	Bins     map[string]int    `yaml:"bins"`
}

type TempProfile struct {
	Corner           string                       `yaml:"corner"`
	OperationalState string                       `yaml:"operational_state"`
	States           map[string]models.LimitTable `yaml:"states"`
}

type PortsProfile struct {
	Targets           []int `yaml:"targets"`
	LoopbacksRequired bool  `yaml:"loopbacks_required"`
}

type PoEProfile struct {
	Ports         []int              `yaml:"ports"`
	Type          string             `yaml:"type"`
	MinPowerMilli int                `yaml:"min_power_mw"`
	SettleMs      int                `yaml:"settle_ms"`
	PortWatts     map[string]float64 `yaml:"port_watts"`
}

type RTCProfile struct {
	BaseMarginSec      float64 `yaml:"base_margin_s"`
	OscAccuracy        float64 `yaml:"osc_accuracy"`
	SeverityAllowedSec float64 `yaml:"severity_allowed_s"`
	MaxProgramAttempts int     `yaml:"max_program_attempts"`
}

type ECIDProfile struct {
	Devices int `yaml:"devices"`
}

type BatchProfile struct {
	Script     string `yaml:"script"`
	Dir        string `yaml:"dir"`
	TimeoutSec int    `yaml:"timeout_s"`
	BeginLabel string `yaml:"begin_label"`
	EndMarker  string `yaml:"end_marker"`
	DoneMarker string `yaml:"done_marker"`
}

type FPGAProfile struct {
	Registers []diag.RegisterCheck `yaml:"registers"`
}

// LoadProfile читает профиль из YAML. Проверяются только наличие и типы полей.
func LoadProfile(cfg *AppConfig) (*Profile, error) {
	data, err := os.ReadFile(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать профиль %s: %w", cfg.ProfilePath, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("не удалось разобрать профиль %s: %w", cfg.ProfilePath, err)
	}
	for _, s := range p.Steps {
		if !knownStep(s.Name) {
			return nil, fmt.Errorf("неизвестный шаг профиля: %q", s.Name)
		}
	}
	return &p, nil
}

func knownStep(name string) bool {
	switch name {
	case StepVoltage, StepTemperature, StepPortLink, StepECID, StepPoE, StepRTC, StepBatch, StepFPGA, StepStack:
		return true
	}
	return false
}

// VoltageConfig переводит профиль в параметры шага.
func (p *Profile) VoltageConfig() (diag.VoltageTestConfig, error) {
	levels := make([]margin.Level, 0, len(p.Voltage.Levels))
	for _, s := range p.Voltage.Levels {
		l, err := margin.ParseLevel(s)
		if err != nil {
			return diag.VoltageTestConfig{}, err
		}
		levels = append(levels, l)
	}
	return diag.VoltageTestConfig{
		Instance: p.Voltage.Instance,
		Levels:   levels,
		Rails:    p.Voltage.Rails,
		Limits:   p.Voltage.Limits,
		Bins:     p.Voltage.Bins,
	}, nil
}

// TemperatureConfig выбирает пределы для рабочего состояния.
func (p *Profile) TemperatureConfig() (margin.TemperatureTestConfig, error) {
	corner, err := margin.ParseLevel(p.Temperature.Corner)
	if err != nil {
		return margin.TemperatureTestConfig{}, err
	}
	return margin.TemperatureTestConfig{
		Corner:           corner,
		OperationalState: p.Temperature.OperationalState,
		Limits:           p.Temperature.States[p.Temperature.OperationalState],
	}, nil
}

func (p *Profile) PortConfig() diag.PortTestConfig {
	return diag.PortTestConfig{Targets: p.Ports.Targets, LoopbacksRequired: p.Ports.LoopbacksRequired}
}

func (p *Profile) PoEConfig() diag.PoETestConfig {
	return diag.PoETestConfig{
		Ports:         p.PoE.Ports,
		Type:          p.PoE.Type,
		MinPowerMilli: p.PoE.MinPowerMilli,
		SettleTime:    time.Duration(p.PoE.SettleMs) * time.Millisecond,
	}
}

// RTCConfig дополняет незаданные поля значениями по умолчанию.
func (p *Profile) RTCConfig() rtc.Config {
	cfg := rtc.DefaultConfig()
	if p.RTC.BaseMarginSec > 0 {
		cfg.BaseMargin = seconds(p.RTC.BaseMarginSec)
	}
	if p.RTC.OscAccuracy > 0 {
		cfg.OscAccuracy = p.RTC.OscAccuracy
	}
	if p.RTC.SeverityAllowedSec > 0 {
		cfg.SeverityAllowed = seconds(p.RTC.SeverityAllowedSec)
	}
	if p.RTC.MaxProgramAttempts > 0 {
		cfg.MaxProgramAttempts = p.RTC.MaxProgramAttempts
	}
	return cfg
}

func (p *Profile) BatchConfig() diag.BatchTestConfig {
	return diag.BatchTestConfig{
		Script: p.Batch.Script,
		Dir:    p.Batch.Dir,
		Runner: batch.Config{
			BeginLabel: p.Batch.BeginLabel,
			EndMarker:  p.Batch.EndMarker,
			DoneMarker: p.Batch.DoneMarker,
			Timeout:    time.Duration(p.Batch.TimeoutSec) * time.Second,
		},
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
