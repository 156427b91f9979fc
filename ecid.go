package diag

import (
	"context"
	"fmt"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
)

// ReadECIDs читает ECID всех ядер ASIC (без дедупликации).
func (c *Client) ReadECIDs(ctx context.Context) ([]models.ECIDRecord, error) {
	out, err := c.Exec(ctx, console.CmdReadECID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ECID: %w", err)
	}
	return parser.ParseECIDs(out), nil
}

// ECIDStep читает ECID, сверяет число ASIC с ожидаемым и сохраняет записи.
func (c *Client) ECIDStep(ctx context.Context, devices int) models.StepResult {
	r := newStep("asic_ecid")

	records, err := c.ReadECIDs(ctx)
	if err != nil {
		return c.failErr(r, err)
	}
	if len(records) == 0 {
		return c.finish(r, models.StepSkipped, "no ASIC ECID reported")
	}

	aligned, err := parser.AlignECIDs(records, devices)
	if err != nil {
		return c.failErr(r, err)
	}

	switch {
	case c.ecids == nil:
	case c.config.Serial == "":
		c.logger.Warn("UUT_SERIAL is empty, ECIDs are not persisted")
	default:
		if err := c.ecids.SaveECIDs(ctx, c.config.Serial, aligned); err != nil {
			return c.failErr(r, fmt.Errorf("failed to persist ECID: %w", err))
		}
	}
	return c.finish(r, models.StepPass, "%d ASIC ECIDs recorded", len(aligned))
}
