// Package rtc проверяет часы реального времени UUT относительно сервера,
// учитывая дрейф осциллятора с момента последней установки, и при
// необходимости перепрограммирует их.
package rtc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/iwtcode/diagAdapter/models"
	"github.com/sirupsen/logrus"
)

const (
	year    = 365 * 24 * time.Hour
	hour    = time.Hour
	twoMins = 2 * time.Minute
)

// UUTClock - часы устройства.
type UUTClock interface {
	ReadTime(ctx context.Context) (time.Time, error)
	SetTime(ctx context.Context, t time.Time) error
}

// ReferenceStore хранит время сервера, использованное при последней установке часов.
// LoadReference возвращает nil, если UUT еще не программировался.
type ReferenceStore interface {
	LoadReference(ctx context.Context, serial string) (*time.Time, error)
	SaveReference(ctx context.Context, serial string, t time.Time) error
}

// Config - константы проверки часов.
type Config struct {
	BaseMargin time.Duration `yaml:"base_margin"`
	// OscAccuracy - дрейф осциллятора в секундах за час.
	OscAccuracy float64 `yaml:"osc_accuracy"`
	// SeverityAllowed - допуск, при котором FAIL без опорного времени понижается до PROG.
	SeverityAllowed    time.Duration `yaml:"severity_allowed"`
	MaxProgramAttempts int           `yaml:"max_program_attempts"`
	Samples            int           `yaml:"samples"`
}

// DefaultConfig: 2 с базовый допуск, 20 ppm (0.072 с/ч), 3 попытки, 3 замера.
func DefaultConfig() Config {
	return Config{
		BaseMargin:         2 * time.Second,
		OscAccuracy:        0.072,
		MaxProgramAttempts: 3,
		Samples:            3,
	}
}

// Outcome - итог проверки часов.
type Outcome struct {
	Verdict     models.RtcVerdict `json:"verdict"`
	Sample      models.RtcSample  `json:"sample"`
	Programmed  int               `json:"programmed"`
	Message     string            `json:"message,omitempty"`
	Catastrophe bool              `json:"catastrophe,omitempty"`
}

// Synchronizer выполняет цикл CHECK -> PROGRAM -> DONE.
type Synchronizer struct {
	clock  UUTClock
	store  ReferenceStore
	cfg    Config
	logger *logrus.Entry
	now    func() time.Time
}

// NewSynchronizer создает синхронизатор. store может быть nil: тогда
// опорное время неизвестно и дрейф не учитывается.
func NewSynchronizer(clock UUTClock, store ReferenceStore, cfg Config, logger *logrus.Entry) *Synchronizer {
	if cfg.MaxProgramAttempts <= 0 {
		cfg.MaxProgramAttempts = 3
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 3
	}
	return &Synchronizer{clock: clock, store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Sample снимает несколько пар (сервер, UUT) подряд и возвращает пару
// с минимальным |delta|.
func (s *Synchronizer) Sample(ctx context.Context) (models.RtcSample, error) {
	var best models.RtcSample
	for i := 0; i < s.cfg.Samples; i++ {
		uut, err := s.clock.ReadTime(ctx)
		if err != nil {
			return models.RtcSample{}, fmt.Errorf("rtc: read uut clock: %w", err)
		}
		server := s.now()

		sample := models.RtcSample{
			ServerTime: epoch(server),
			UUTTime:    epoch(uut),
		}
		sample.Delta = sample.ServerTime - sample.UUTTime
		if i == 0 || math.Abs(sample.Delta) < math.Abs(best.Delta) {
			best = sample
		}
	}
	return best, nil
}

// Window возвращает допустимое отклонение в секундах: 2*base + дрейф
// с момента установки опорного времени.
func (s *Synchronizer) Window(serverTime float64, reference *float64) float64 {
	drift := 0.0
	if reference != nil {
		drift = math.Max(0, (serverTime-*reference)*s.cfg.OscAccuracy/3600)
	}
	return 2*s.cfg.BaseMargin.Seconds() + drift
}

// Classify относит замер к PASS, PROG или FAIL. tighten включает
// перепрограммирование часов, которые проходят по окну, но уже ушли
// дальше базового допуска.
func (s *Synchronizer) Classify(sample models.RtcSample, reference *float64, tighten bool) (models.RtcVerdict, string) {
	abs := math.Abs(sample.Delta)
	tight := 2 * s.cfg.BaseMargin.Seconds()
	window := s.Window(sample.ServerTime, reference)

	var verdict models.RtcVerdict
	var reason string
	switch {
	case abs <= window:
		if tighten && abs > tight {
			return models.RtcProg, fmt.Sprintf("delta %.1fs within window %.1fs but above base margin %.1fs", abs, window, tight)
		}
		return models.RtcPass, fmt.Sprintf("delta %.1fs within window %.1fs", abs, window)
	case abs > year.Seconds():
		if reference == nil {
			return models.RtcProg, fmt.Sprintf("delta %.0fs exceeds one year, clock never set", abs)
		}
		return models.RtcFail, fmt.Sprintf("delta %.0fs exceeds one year on a previously set unit", abs)
	case abs > hour.Seconds():
		verdict, reason = models.RtcFail, fmt.Sprintf("delta %.0fs exceeds one hour", abs)
	case abs > twoMins.Seconds():
		verdict, reason = models.RtcFail, fmt.Sprintf("delta %.0fs exceeds two minutes", abs)
	default:
		return models.RtcProg, fmt.Sprintf("delta %.1fs outside window %.1fs", abs, window)
	}

	if reference == nil && abs <= s.cfg.SeverityAllowed.Seconds() {
		return models.RtcProg, reason + ", allowed without reference"
	}
	return verdict, reason
}

// Run проверяет часы и при вердикте PROG программирует их до
// MaxProgramAttempts раз.
func (s *Synchronizer) Run(ctx context.Context, serial string) (Outcome, error) {
	reference, err := s.loadReference(ctx, serial)
	if err != nil {
		return Outcome{}, err
	}

	sample, err := s.Sample(ctx)
	if err != nil {
		return Outcome{}, err
	}
	verdict, reason := s.Classify(sample, reference, true)
	log := s.logger.WithFields(logrus.Fields{"serial": serial, "delta": sample.Delta})
	log.WithField("verdict", verdict).Info(reason)

	switch verdict {
	case models.RtcPass:
		return Outcome{Verdict: verdict, Sample: sample, Message: reason}, nil
	case models.RtcFail:
		out := Outcome{Verdict: verdict, Sample: sample, Message: reason}
		if math.Abs(sample.Delta) > year.Seconds() {
			out.Catastrophe = true
			out.Message = reason + ": check RTC battery"
		}
		return out, nil
	}

	for attempt := 1; attempt <= s.cfg.MaxProgramAttempts; attempt++ {
		now := s.now()
		if err := s.clock.SetTime(ctx, now); err != nil {
			return Outcome{}, fmt.Errorf("rtc: program uut clock: %w", err)
		}
		if s.store != nil {
			if err := s.store.SaveReference(ctx, serial, now); err != nil {
				return Outcome{}, fmt.Errorf("rtc: save reference: %w", err)
			}
		}
		ref := epoch(now)

		sample, err = s.Sample(ctx)
		if err != nil {
			return Outcome{}, err
		}
		verdict, reason = s.Classify(sample, &ref, false)
		log.WithFields(logrus.Fields{"attempt": attempt, "verdict": verdict, "delta": sample.Delta}).Info("rtc programmed")

		if verdict == models.RtcPass {
			return Outcome{Verdict: verdict, Sample: sample, Programmed: attempt, Message: reason}, nil
		}
	}

	msg := fmt.Sprintf("RTC still off by %.1fs after %d programming attempts: check battery/RTC hardware",
		math.Abs(sample.Delta), s.cfg.MaxProgramAttempts)
	log.Error(msg)
	return Outcome{Verdict: models.RtcFail, Sample: sample, Programmed: s.cfg.MaxProgramAttempts, Message: msg}, nil
}

func (s *Synchronizer) loadReference(ctx context.Context, serial string) (*float64, error) {
	if s.store == nil {
		return nil, nil
	}
	t, err := s.store.LoadReference(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("rtc: load reference: %w", err)
	}
	if t == nil {
		return nil, nil
	}
	ref := epoch(*t)
	return &ref, nil
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
