package diag

import (
	"context"
	"fmt"
	"sort"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/margin"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
)

// VoltageTestConfig - параметры проверки шин питания.
type VoltageTestConfig struct {
	Instance int
	Levels   []margin.Level
	// Rails - шины для маржинирования; пусто - все шины из Limits.
	Rails  []string
	Limits models.LimitTable
	// Bins - индекс бина ASIC по шине.
	Bins map[string]int
}

// ReadVoltages читает таблицу шин для экземпляра устройства.
func (c *Client) ReadVoltages(ctx context.Context, instance int) (models.ReadingSet, error) {
	out, err := c.Exec(ctx, console.CmdGetVoltMarg)
	if err != nil {
		return nil, fmt.Errorf("failed to read voltages: %w", err)
	}
	return parser.ParseVoltages(out, instance), nil
}

// SetVoltageMargin переводит шину в заданный уровень.
func (c *Client) SetVoltageMargin(ctx context.Context, rail string, level margin.Level, instance int) error {
	if _, err := c.Exec(ctx, console.SetVoltMarg(rail, level.String(), instance)); err != nil {
		return fmt.Errorf("failed to set %s margin on %s: %w", level, rail, err)
	}
	return nil
}

// VoltageStep проверяет шины на каждом уровне и всегда возвращает их в NOMINAL.
func (c *Client) VoltageStep(ctx context.Context, cfg VoltageTestConfig) models.StepResult {
	r := newStep("voltage_margin")

	levels := cfg.Levels
	if len(levels) == 0 {
		levels = []margin.Level{margin.Nominal}
	}
	rails := cfg.Rails
	if len(rails) == 0 {
		for rail := range cfg.Limits {
			rails = append(rails, rail)
		}
		sort.Strings(rails)
	}

	margined := false
	defer func() {
		if margined {
			c.restoreNominal(ctx, rails, cfg.Instance)
		}
	}()

	checked := 0
	for _, level := range levels {
		// после HIGH/LOW уровень NOMINAL тоже выставляется явно
		if level != margin.Nominal || margined {
			margined = true
			for _, rail := range rails {
				if err := c.SetVoltageMargin(ctx, rail, level, cfg.Instance); err != nil {
					return c.failErr(r, err)
				}
			}
			margined = level != margin.Nominal
		}

		readings, err := c.ReadVoltages(ctx, cfg.Instance)
		if err != nil {
			return c.failErr(r, err)
		}
		if len(readings) == 0 {
			return c.finish(r, models.StepSkipped, "no voltage rails reported for instance %d", cfg.Instance)
		}

		limits := cfg.Limits
		if level != margin.Nominal {
			limits = railLimits(cfg.Limits, rails)
		}
		results := c.verifier.CheckSetBinned(readings, limits, cfg.Bins, level)
		r.Margins = append(r.Margins, results...)
		checked += len(results)
	}

	if !margin.AllPass(r.Margins) {
		return c.finish(r, models.StepFail, "%d of %d rail checks out of limits", countFailed(r.Margins), checked)
	}
	return c.finish(r, models.StepPass, "%d rail checks within limits", checked)
}

func (c *Client) restoreNominal(ctx context.Context, rails []string, instance int) {
	for _, rail := range rails {
		if err := c.SetVoltageMargin(ctx, rail, margin.Nominal, instance); err != nil {
			c.logger.WithField("rail", rail).Errorf("failed to restore nominal voltage: %v", err)
		}
	}
}

// railLimits оставляет пределы только для маржинируемых шин.
func railLimits(limits models.LimitTable, rails []string) models.LimitTable {
	out := make(models.LimitTable, len(rails))
	for _, rail := range rails {
		if e, ok := limits[rail]; ok {
			out[rail] = e
		}
	}
	return out
}

func countFailed(results []models.MarginResult) int {
	n := 0
	for _, res := range results {
		if !res.Pass {
			n++
		}
	}
	return n
}
