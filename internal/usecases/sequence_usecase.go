package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	diag "github.com/iwtcode/diagAdapter"
	"github.com/iwtcode/diagAdapter/internal/config"
	"github.com/iwtcode/diagAdapter/internal/interfaces"
	"github.com/iwtcode/diagAdapter/internal/middleware/logging"
	"github.com/iwtcode/diagAdapter/models"
)

type Usecase struct {
	diagSvc  interfaces.DiagService
	profile  *config.Profile
	repo     interfaces.ResultRepository
	producer interfaces.KafkaService
	recorder interfaces.StepRecorder
	logger   *logging.Logger
}

func NewUsecase(
	diagSvc interfaces.DiagService,
	profile *config.Profile,
	repo interfaces.ResultRepository,
	producer interfaces.KafkaService,
	recorder interfaces.StepRecorder,
	logger *logging.Logger,
) *Usecase {
	return &Usecase{
		diagSvc:  diagSvc,
		profile:  profile,
		repo:     repo,
		producer: producer,
		recorder: recorder,
		logger:   logger.WithPrefix("sequence"),
	}
}

// message - конверт, публикуемый в Kafka.
type message struct {
	Type     string             `json:"type"`
	RunID    string             `json:"run_id,omitempty"`
	Serial   string             `json:"serial"`
	Step     *models.StepResult `json:"step,omitempty"`
	Run      *models.RunReport  `json:"run,omitempty"`
	Snapshot *models.Snapshot   `json:"snapshot,omitempty"`
}

// RunSequence выполняет шаги профиля по порядку. Отключенные шаги дают
// DISABLED без обращения к консоли. Прогон FAIL, если упал хотя бы один шаг.
func (u *Usecase) RunSequence(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:   uuid.NewString(),
		Serial:  u.diagSvc.Serial(),
		Status:  models.StepPass,
		Started: time.Now(),
	}
	log := u.logger.WithPrefix(report.RunID[:8])
	log.Info("Run started", "serial", report.Serial, "steps", len(u.profile.Steps))

	if u.profile.SysInitLevel > 0 {
		if err := u.diagSvc.SysInit(ctx, u.profile.SysInitLevel); err != nil {
			return nil, fmt.Errorf("sysinit %d: %w", u.profile.SysInitLevel, err)
		}
	}

	for _, entry := range u.profile.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var result models.StepResult
		if entry.Enabled {
			result = u.runStep(ctx, entry.Name)
		} else {
			result = diag.DisabledStep(entry.Name)
		}

		report.Steps = append(report.Steps, result)
		if result.Status == models.StepFail {
			report.Status = models.StepFail
		}
		u.recorder.StepFinished(result)
		u.publish(ctx, message{Type: "step", RunID: report.RunID, Serial: report.Serial, Step: &result})
	}

	report.Finished = time.Now()
	u.recorder.RunFinished(report.Status)
	u.publish(ctx, message{Type: "run", RunID: report.RunID, Serial: report.Serial, Run: report})

	if err := u.repo.SaveRun(ctx, report); err != nil {
		return report, fmt.Errorf("save run: %w", err)
	}

	log.Info("Run finished", "status", report.Status, "duration", report.Finished.Sub(report.Started).Round(time.Millisecond))
	return report, nil
}

func (u *Usecase) runStep(ctx context.Context, name string) models.StepResult {
	switch name {
	case config.StepVoltage:
		cfg, err := u.profile.VoltageConfig()
		if err != nil {
			return configFailure(name, err)
		}
		return u.diagSvc.VoltageStep(ctx, cfg)
	case config.StepTemperature:
		cfg, err := u.profile.TemperatureConfig()
		if err != nil {
			return configFailure(name, err)
		}
		return u.diagSvc.TemperatureStep(ctx, cfg)
	case config.StepPortLink:
		return u.diagSvc.PortLinkStep(ctx, u.profile.PortConfig())
	case config.StepECID:
		return u.diagSvc.ECIDStep(ctx, u.profile.ECID.Devices)
	case config.StepPoE:
		return u.diagSvc.PoEStep(ctx, u.profile.PoEConfig())
	case config.StepRTC:
		return u.diagSvc.RTCStep(ctx, u.profile.RTCConfig())
	case config.StepBatch:
		return u.diagSvc.BatchStep(ctx, u.profile.BatchConfig())
	case config.StepFPGA:
		return u.diagSvc.FPGAStep(ctx, u.profile.FPGA.Registers)
	case config.StepStack:
		return u.diagSvc.StackStep(ctx)
	}
	return configFailure(name, fmt.Errorf("unknown step"))
}

func configFailure(name string, err error) models.StepResult {
	now := time.Now()
	return models.StepResult{
		Name:     name,
		Status:   models.StepFail,
		Message:  fmt.Sprintf("profile error: %v", err),
		Started:  now,
		Finished: now,
	}
}

// PollSnapshots публикует сводки UUT до отмены контекста.
func (u *Usecase) PollSnapshots(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("некорректный интервал опроса: %s", interval)
	}
	serial := u.diagSvc.Serial()

	for res := range u.diagSvc.StartPolling(ctx, interval) {
		if res.Err != nil {
			u.logger.Warn("Snapshot failed", "error", res.Err)
			continue
		}
		for _, w := range res.Data.Warnings {
			u.logger.Warn("Snapshot warning", "warning", w)
		}
		u.publish(ctx, message{Type: "snapshot", Serial: serial, Snapshot: res.Data})
	}
	return ctx.Err()
}

func (u *Usecase) publish(ctx context.Context, msg message) {
	value, err := json.Marshal(msg)
	if err != nil {
		u.logger.Error("Failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	if err := u.producer.Produce(ctx, []byte(msg.Serial), value); err != nil {
		u.logger.Error("Failed to publish message", "type", msg.Type, "error", err)
	}
}
