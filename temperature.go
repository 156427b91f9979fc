package diag

import (
	"context"
	"fmt"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/margin"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
)

// ReadTemperatures читает показания датчиков температуры.
func (c *Client) ReadTemperatures(ctx context.Context) (models.ReadingSet, error) {
	out, err := c.Exec(ctx, console.CmdGetTemp)
	if err != nil {
		return nil, fmt.Errorf("failed to read temperatures: %w", err)
	}
	return parser.ParseTemperatures(out), nil
}

// TemperatureStep сравнивает датчики с пределами для угла и рабочего состояния.
func (c *Client) TemperatureStep(ctx context.Context, cfg margin.TemperatureTestConfig) models.StepResult {
	r := newStep("temperature")

	readings, err := c.ReadTemperatures(ctx)
	if err != nil {
		return c.failErr(r, err)
	}
	if len(readings) == 0 {
		return c.finish(r, models.StepSkipped, "no temperature sensors reported")
	}

	r.Margins = c.verifier.CheckTemperatures(readings, cfg)
	if !margin.AllPass(r.Margins) {
		return c.finish(r, models.StepFail, "%d sensors out of limits (%s, %s)",
			countFailed(r.Margins), cfg.Corner, cfg.OperationalState)
	}
	return c.finish(r, models.StepPass, "%d sensors within limits (%s, %s)",
		len(r.Margins), cfg.Corner, cfg.OperationalState)
}
