package interfaces

import (
	"context"
	"time"

	diag "github.com/iwtcode/diagAdapter"
	"github.com/iwtcode/diagAdapter/margin"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/rtc"
)

// DiagService - шаги диагностики, выполняемые на консоли UUT.
type DiagService interface {
	Serial() string
	SysInit(ctx context.Context, level int) error
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	StartPolling(ctx context.Context, interval time.Duration) <-chan diag.PollingResult

	VoltageStep(ctx context.Context, cfg diag.VoltageTestConfig) models.StepResult
	TemperatureStep(ctx context.Context, cfg margin.TemperatureTestConfig) models.StepResult
	PortLinkStep(ctx context.Context, cfg diag.PortTestConfig) models.StepResult
	ECIDStep(ctx context.Context, devices int) models.StepResult
	PoEStep(ctx context.Context, cfg diag.PoETestConfig) models.StepResult
	RTCStep(ctx context.Context, cfg rtc.Config) models.StepResult
	BatchStep(ctx context.Context, cfg diag.BatchTestConfig) models.StepResult
	FPGAStep(ctx context.Context, checks []diag.RegisterCheck) models.StepResult
	StackStep(ctx context.Context) models.StepResult
}

// StepRecorder учитывает завершенные шаги и прогоны (метрики).
type StepRecorder interface {
	StepFinished(result models.StepResult)
	RunFinished(status models.StepStatus)
}
