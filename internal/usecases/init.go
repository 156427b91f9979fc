package usecases

import (
	"github.com/iwtcode/diagAdapter/internal/config"
	"github.com/iwtcode/diagAdapter/internal/interfaces"
	"github.com/iwtcode/diagAdapter/internal/middleware/logging"
)

// NewUsecases - конструктор для fx
func NewUsecases(
	diagSvc interfaces.DiagService,
	profile *config.Profile,
	repo interfaces.Repository,
	producer interfaces.KafkaService,
	recorder interfaces.StepRecorder,
	logger *logging.Logger,
) interfaces.Usecases {
	return NewUsecase(diagSvc, profile, repo, producer, recorder, logger)
}
