package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/iwtcode/diagAdapter/models"
)

// Snapshot собирает сводку об UUT последовательно. Напряжения обязательны,
// остальные разделы при ошибке заменяются предупреждением.
func (c *Client) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		Serial:    c.config.Serial,
		Timestamp: time.Now().UTC(),
	}

	// 1. Шины питания
	voltages, err := c.ReadVoltages(ctx, -1)
	if err != nil {
		return nil, err
	}
	snap.Voltages = voltages

	// 2. Температура
	temps, err := c.ReadTemperatures(ctx)
	if err != nil {
		c.warn(snap, "temperatures", err)
	}
	snap.Temperatures = temps

	// 3. Блоки питания
	psus, err := c.ReadPSUs(ctx)
	if err != nil {
		c.warn(snap, "psus", err)
	}
	snap.PSUs = psus

	// 4. Порты
	ports, err := c.ReadPortStatus(ctx, nil)
	if err != nil {
		c.warn(snap, "ports", err)
	}
	snap.Ports = ports.Records

	return snap, nil
}

func (c *Client) warn(snap *models.Snapshot, section string, err error) {
	msg := fmt.Sprintf("failed to read %s: %v", section, err)
	c.logger.Warn(msg)
	snap.Warnings = append(snap.Warnings, msg)
}
