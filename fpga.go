package diag

import (
	"context"
	"fmt"
	"strings"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
)

// RegisterCheck - ожидаемое значение регистра FPGA под маской.
type RegisterCheck struct {
	Name   string `yaml:"name"`
	Addr   uint32 `yaml:"addr"`
	Mask   uint32 `yaml:"mask"`
	Expect uint32 `yaml:"expect"`
}

// ReadFPGA читает count регистров начиная с addr.
func (c *Client) ReadFPGA(ctx context.Context, addr uint32, count int) (map[uint32]uint32, error) {
	out, err := c.Exec(ctx, console.FpgaDump(addr, count))
	if err != nil {
		return nil, fmt.Errorf("failed to dump FPGA registers: %w", err)
	}
	return parser.ParseFPGADump(out), nil
}

// FPGAStep сверяет регистры с ожиданиями. Нулевая маска означает все биты.
func (c *Client) FPGAStep(ctx context.Context, checks []RegisterCheck) models.StepResult {
	r := newStep("fpga_registers")
	if len(checks) == 0 {
		return c.finish(r, models.StepSkipped, "no FPGA register checks configured")
	}

	var mismatches []string
	read := 0
	for _, chk := range checks {
		regs, err := c.ReadFPGA(ctx, chk.Addr, 1)
		if err != nil {
			return c.failErr(r, err)
		}
		val, ok := regs[chk.Addr]
		if !ok {
			continue
		}
		read++

		mask := chk.Mask
		if mask == 0 {
			mask = 0xffffffff
		}
		if val&mask != chk.Expect&mask {
			mismatches = append(mismatches, fmt.Sprintf("%s@0x%04x=0x%08x want 0x%08x/0x%08x", chk.Name, chk.Addr, val, chk.Expect, mask))
		}
	}

	switch {
	case read == 0:
		return c.finish(r, models.StepSkipped, "FPGA registers not readable")
	case len(mismatches) > 0:
		return c.finish(r, models.StepFail, "FPGA register mismatch: %s", strings.Join(mismatches, "; "))
	}
	return c.finish(r, models.StepPass, "%d FPGA registers match", read)
}
