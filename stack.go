package diag

import (
	"context"
	"fmt"
	"strings"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
)

// ReadStackRing читает состояние стекового кольца.
func (c *Client) ReadStackRing(ctx context.Context) ([]models.StackPort, error) {
	out, err := c.Exec(ctx, console.CmdStackRAC)
	if err != nil {
		return nil, fmt.Errorf("failed to read stack ring: %w", err)
	}
	return parser.ParseStackRing(out), nil
}

// StackStep требует, чтобы все порты кольца были UP без ошибок.
func (c *Client) StackStep(ctx context.Context) models.StepResult {
	r := newStep("stack_ring")

	ports, err := c.ReadStackRing(ctx)
	if err != nil {
		return c.failErr(r, err)
	}
	if len(ports) == 0 {
		return c.finish(r, models.StepSkipped, "stacking not present")
	}

	var bad []string
	for _, p := range ports {
		if p.State != "UP" || p.Errors > 0 {
			bad = append(bad, fmt.Sprintf("%s->%s %s errors=%d", p.Port, p.Neighbor, p.State, p.Errors))
		}
	}
	if len(bad) > 0 {
		return c.finish(r, models.StepFail, "stack ring degraded: %s", strings.Join(bad, "; "))
	}
	return c.finish(r, models.StepPass, "%d stack ports up", len(ports))
}
