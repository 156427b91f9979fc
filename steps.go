package diag

import (
	"errors"
	"fmt"
	"time"

	"github.com/iwtcode/diagAdapter/models"
	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
	"github.com/sirupsen/logrus"
)

func newStep(name string) models.StepResult {
	return models.StepResult{Name: name, Started: time.Now()}
}

// DisabledStep возвращает результат отключенного шага. Консоль не используется.
func DisabledStep(name string) models.StepResult {
	now := time.Now()
	return models.StepResult{Name: name, Status: models.StepDisabled, Started: now, Finished: now}
}

func (c *Client) finish(r models.StepResult, status models.StepStatus, format string, args ...any) models.StepResult {
	r.Status = status
	r.Message = fmt.Sprintf(format, args...)
	r.Finished = time.Now()

	entry := c.logger.WithFields(logrus.Fields{"step": r.Name, "status": status})
	if status == models.StepFail {
		entry.Error(r.Message)
	} else {
		entry.Info(r.Message)
	}
	return r
}

// failErr превращает ошибку в FAIL. Для ошибок с сообщением оператору
// используется это сообщение.
func (c *Client) failErr(r models.StepResult, err error) models.StepResult {
	var de *diagerr.DiagError
	if errors.As(err, &de) && de.IsUserFacing {
		return c.finish(r, models.StepFail, "%s", de.Message)
	}
	return c.finish(r, models.StepFail, "%v", err)
}
