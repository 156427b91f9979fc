package diag

import (
	"context"
	"time"

	"github.com/iwtcode/diagAdapter/models"
)

// PollingResult содержит сводку или ошибку от одной попытки опроса.
type PollingResult struct {
	Data *models.Snapshot
	Err  error
}

// StartPolling периодически снимает Snapshot. Опросы выполняются строго по
// одному, тик во время опроса пропускается. Опрос прекращается при отмене контекста.
func (c *Client) StartPolling(ctx context.Context, interval time.Duration) <-chan PollingResult {
	results := make(chan PollingResult)

	go func() {
		defer close(results)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("polling stopped: context cancelled")
				return
			case <-ticker.C:
				data, err := c.Snapshot(ctx)
				select {
				case results <- PollingResult{Data: data, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results
}
