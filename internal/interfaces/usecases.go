package interfaces

import (
	"context"
	"time"

	"github.com/iwtcode/diagAdapter/models"
)

// Usecases - это агрегирующий интерфейс для всех use cases
type Usecases interface {
	RunSequence(ctx context.Context) (*models.RunReport, error)
	PollSnapshots(ctx context.Context, interval time.Duration) error
}
