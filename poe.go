package diag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
	"github.com/iwtcode/diagAdapter/poe"
)

// PoETestConfig - параметры проверки PoE.
type PoETestConfig struct {
	Ports         []int
	Type          string
	MinPowerMilli int
	SettleTime    time.Duration
}

// ReadPSUs читает таблицу блоков питания.
func (c *Client) ReadPSUs(ctx context.Context) ([]models.PSURecord, error) {
	out, err := c.Exec(ctx, console.CmdPsuStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to read PSU status: %w", err)
	}
	return parser.ParsePSUs(out), nil
}

// ReadPoEStatus читает состояние PoE по портам.
func (c *Client) ReadPoEStatus(ctx context.Context) (map[int]models.PoEPortStatus, error) {
	out, err := c.Exec(ctx, console.CmdPoEGet)
	if err != nil {
		return nil, fmt.Errorf("failed to read PoE status: %w", err)
	}
	return parser.ParsePoEStatus(out), nil
}

// PlanPoE строит план групп по мощности установленных БП.
func (c *Client) PlanPoE(ctx context.Context, ports []int, portType string) (*models.PoeBudgetPlan, error) {
	psus, err := c.ReadPSUs(ctx)
	if err != nil {
		c.logger.Warnf("PSU status unavailable: %v", err)
	}
	return c.planner.Plan(ports, portType, poe.PowerAvailable(psus, c.logger.WithField("component", "poe")))
}

// InvalidatePoEPlan сбрасывает план после выключения питания UUT.
func (c *Client) InvalidatePoEPlan() {
	c.planner.Invalidate()
}

// PoEStep поочередно включает группы портов, проверяет выданную мощность
// и выключает группу.
func (c *Client) PoEStep(ctx context.Context, cfg PoETestConfig) models.StepResult {
	r := newStep("poe")
	if len(cfg.Ports) == 0 {
		return c.finish(r, models.StepSkipped, "no PoE ports configured")
	}

	plan, err := c.PlanPoE(ctx, cfg.Ports, cfg.Type)
	if err != nil {
		return c.failErr(r, err)
	}

	var failures []string
	for i, group := range plan.PortsPerGroup {
		if _, err := c.Exec(ctx, console.PoESet(group, true)); err != nil {
			return c.failErr(r, err)
		}

		if cfg.SettleTime > 0 {
			select {
			case <-ctx.Done():
				return c.failErr(r, ctx.Err())
			case <-time.After(cfg.SettleTime):
			}
		}

		status, err := c.ReadPoEStatus(ctx)
		if err == nil {
			failures = append(failures, checkPoEGroup(group, status, cfg.MinPowerMilli)...)
		}

		if _, offErr := c.Exec(ctx, console.PoESet(group, false)); offErr != nil {
			c.logger.WithField("group", i+1).Errorf("failed to power off PoE group: %v", offErr)
		}
		if err != nil {
			return c.failErr(r, err)
		}
	}

	if len(failures) > 0 {
		return c.finish(r, models.StepFail, "PoE failures: %s", strings.Join(failures, "; "))
	}
	return c.finish(r, models.StepPass, "%d ports in %d groups delivered power", len(cfg.Ports)-len(plan.Dropped), plan.GroupCount)
}

func checkPoEGroup(group []int, status map[int]models.PoEPortStatus, minMilli int) []string {
	var failures []string
	for _, port := range group {
		st, ok := status[port]
		switch {
		case !ok:
			failures = append(failures, fmt.Sprintf("port %d missing from POEGET", port))
		case st.Status != "ON":
			failures = append(failures, fmt.Sprintf("port %d status %s", port, st.Status))
		case st.PowerMilli < minMilli:
			failures = append(failures, fmt.Sprintf("port %d delivers %d mW < %d mW", port, st.PowerMilli, minMilli))
		}
	}
	return failures
}
