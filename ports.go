package diag

import (
	"context"
	"fmt"
	"sort"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
)

// PortTestConfig - параметры проверки линков.
type PortTestConfig struct {
	Targets           []int
	LoopbacksRequired bool
}

// ReadPortStatus опрашивает таблицу портов. Набор не сливается с предыдущими опросами.
func (c *Client) ReadPortStatus(ctx context.Context, targets []int) (models.PortStatus, error) {
	out, err := c.Exec(ctx, console.CmdPortStatus)
	if err != nil {
		return models.PortStatus{}, fmt.Errorf("failed to read port status: %w", err)
	}
	return parser.ParsePortStatus(out, targets), nil
}

// DownRatio возвращает долю целевых портов не в состоянии UP. Отсутствующий
// в таблице порт считается упавшим. Без targets учитываются все записи.
func DownRatio(status models.PortStatus, targets []int) float64 {
	ids := targets
	if len(ids) == 0 {
		for id := range status.Records {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0
	}

	down := 0
	for _, id := range ids {
		if rec, ok := status.Records[id]; !ok || rec.LinkState != "UP" {
			down++
		}
	}
	return float64(down) / float64(len(ids))
}

// EvaluateLinks выносит вердикт по таблице портов:
// нет данных - SKIPPED; ошибка на целевом порту - FAIL;
// все порты DOWN без требования шлейфов - SKIPPED;
// хотя бы один DOWN при обязательных шлейфах - FAIL.
func EvaluateLinks(status models.PortStatus, cfg PortTestConfig) (models.StepStatus, string) {
	if len(status.Errors) > 0 {
		ports := make([]int, 0, len(status.Errors))
		for p := range status.Errors {
			ports = append(ports, p)
		}
		sort.Ints(ports)
		return models.StepFail, fmt.Sprintf("port errors reported on %v: %s", ports, status.Errors[ports[0]])
	}
	if len(status.Records) == 0 {
		return models.StepSkipped, "no port status reported"
	}

	ratio := DownRatio(status, cfg.Targets)
	switch {
	case ratio == 1.0 && !cfg.LoopbacksRequired:
		return models.StepSkipped, "all ports down and no loopbacks required"
	case ratio > 0 && cfg.LoopbacksRequired:
		return models.StepFail, fmt.Sprintf("%.0f%% of ports down with loopbacks installed", ratio*100)
	}
	return models.StepPass, fmt.Sprintf("%.0f%% of ports up", (1-ratio)*100)
}

// PortLinkStep проверяет линки целевых портов.
func (c *Client) PortLinkStep(ctx context.Context, cfg PortTestConfig) models.StepResult {
	r := newStep("port_link")

	status, err := c.ReadPortStatus(ctx, cfg.Targets)
	if err != nil {
		return c.failErr(r, err)
	}
	verdict, msg := EvaluateLinks(status, cfg)
	return c.finish(r, verdict, "%s", msg)
}
