package diag

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwtcode/diagAdapter/batch"
	"github.com/iwtcode/diagAdapter/models"
	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
)

// BatchTestConfig - параметры пакетного прогона. Если Script пуст,
// берется самый новый сценарий из Dir.
type BatchTestConfig struct {
	Script string
	Dir    string
	Runner batch.Config
}

// RunBatch выполняет пакетный сценарий.
func (c *Client) RunBatch(ctx context.Context, cfg BatchTestConfig) (*models.BatchResult, error) {
	runner, err := batch.NewRunner(c.session, cfg.Runner, c.logger.WithField("component", "batch"))
	if err != nil {
		return nil, err
	}
	if cfg.Script == "" {
		return runner.RunLatest(ctx, cfg.Dir)
	}
	return runner.Run(ctx, cfg.Script)
}

// BatchStep выполняет сценарий и переводит итог в результат шага.
func (c *Client) BatchStep(ctx context.Context, cfg BatchTestConfig) models.StepResult {
	r := newStep("batch")

	res, err := c.RunBatch(ctx, cfg)
	switch {
	case errors.Is(err, batch.ErrNoScript):
		return c.finish(r, models.StepSkipped, "%v", err)
	case errors.Is(err, diagerr.ErrBatchHung):
		return c.finish(r, models.StepFail, "batch session hung: %v", err)
	case err != nil:
		return c.failErr(r, err)
	}

	switch {
	case res.EarlyTermination:
		return c.finish(r, models.StepFail, "%s terminated before begin label", res.Script)
	case len(res.Failures) > 0:
		return c.finish(r, models.StepFail, "%s: %d failures, first: %s", res.Script, len(res.Failures), res.Failures[0])
	}
	return c.finish(r, models.StepPass, "%s completed, %s", res.Script, commandsRun(res.Commands))
}

func commandsRun(n int) string {
	if n == 1 {
		return "1 command"
	}
	return fmt.Sprintf("%d commands", n)
}
