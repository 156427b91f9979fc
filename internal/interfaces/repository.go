package interfaces

import (
	"context"
	"time"

	"github.com/iwtcode/diagAdapter/models"
)

// ResultRepository определяет контракт для хранения прогонов и шагов
type ResultRepository interface {
	SaveRun(ctx context.Context, report *models.RunReport) error
	SaveStepResult(ctx context.Context, runID, serial string, result models.StepResult) error
	GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error)
}

// Repository - агрегирующий интерфейс локального хранилища стенда
type Repository interface {
	ResultRepository
	LoadReference(ctx context.Context, serial string) (*time.Time, error)
	SaveReference(ctx context.Context, serial string, t time.Time) error
	SaveECIDs(ctx context.Context, serial string, records []models.ECIDRecord) error
	GetECIDs(ctx context.Context, serial string) ([]models.ECIDRecord, error)
	Close() error
}
