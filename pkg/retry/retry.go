// Package retry содержит комбинатор повторов с фиксированной задержкой.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
)

// Policy задает число попыток и паузу между ними.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Retryable решает, стоит ли повторять после ошибки.
	// По умолчанию повторяются только таймауты.
	Retryable func(error) bool
	// OnRetry вызывается перед каждой повторной попыткой.
	OnRetry func(attempt int, err error)
}

// IsTransient сообщает, является ли ошибка временной ошибкой сессии.
func IsTransient(err error) bool {
	return errors.Is(err, diagerr.ErrTimeout)
}

// Do выполняет fn до p.MaxAttempts раз. Неповторяемые ошибки возвращаются сразу,
// исчерпание попыток возвращает последнюю ошибку, обернутую с числом попыток.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.Backoff):
		}
	}

	return zero, fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}
