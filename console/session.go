// Package console реализует командную сессию с диагностической оболочкой UUT:
// отправка команды, ожидание приглашения или шаблона, накопленный буфер вывода.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/iwtcode/diagAdapter/models"
	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
	"github.com/sirupsen/logrus"
)

// IdleMatch возвращается WaitFor, когда вывод затих дольше idleTimeout.
const IdleMatch = -1

const (
	readChunkSize = 4096
	tailSize      = 240
)

// Transport - низкоуровневый канал консоли (telnet, последовательный порт, симулятор).
type Transport interface {
	io.ReadWriteCloser
}

// Session - командная сессия с UUT. Захватывается один раз на прогон теста
// и не закрывается посреди теста. Одновременно выполняется не более одной команды.
type Session struct {
	transport Transport
	opts      options
	logger    *logrus.Entry

	cmdMu sync.Mutex

	mu       sync.Mutex
	buf      strings.Builder
	lastData time.Time
	readErr  error

	notify chan struct{}
	done   chan struct{}
}

// NewSession запускает чтение из транспорта в фоне и возвращает сессию.
func NewSession(t Transport, userOpts ...Option) *Session {
	opts := defaultOptions()
	for _, o := range userOpts {
		o(&opts)
	}

	s := &Session{
		transport: t,
		opts:      opts,
		logger:    opts.logger,
		lastData:  time.Now(),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Session) readLoop() {
	defer close(s.done)

	chunk := make([]byte, readChunkSize)
	for {
		n, err := s.transport.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.lastData = time.Now()
			s.mu.Unlock()
			s.signal()
		}
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			s.signal()
			return
		}
	}
}

func (s *Session) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Send записывает команду как есть и ждет появления expect в буфере.
// Пустой expect означает "не ждать". timeout <= 0 берет значение по умолчанию.
func (s *Session) Send(ctx context.Context, command string, expect Pattern, timeout time.Duration) (*models.CommandResult, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	if err := s.write(command); err != nil {
		return nil, err
	}

	result := &models.CommandResult{SentCommand: command}
	if expect.IsZero() {
		result.RawOutput = s.Buffer()
		return result, nil
	}

	_, err := s.wait(ctx, command, []Pattern{expect}, timeout, 0)
	result.RawOutput = s.Buffer()
	if err != nil {
		return result, err
	}
	result.PromptMatched = true
	return result, nil
}

// WaitFor ждет любой из шаблонов и возвращает его индекс. Если idleTimeout > 0
// и новых данных не было дольше idleTimeout, возвращает IdleMatch без ошибки.
func (s *Session) WaitFor(ctx context.Context, patterns []Pattern, timeout, idleTimeout time.Duration) (int, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	return s.wait(ctx, "", patterns, timeout, idleTimeout)
}

// Buffer возвращает накопленный вывод.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// ClearBuffer очищает буфер после короткой паузы, чтобы не гоняться
// с устройством, которое еще передает.
func (s *Session) ClearBuffer() {
	if s.opts.settleDelay > 0 {
		time.Sleep(s.opts.settleDelay)
	}
	s.mu.Lock()
	s.buf.Reset()
	s.mu.Unlock()
}

// Close закрывает транспорт.
func (s *Session) Close() error {
	err := s.transport.Close()
	select {
	case <-s.done:
	case <-time.After(time.Second):
		s.logger.Warn("console reader did not stop after close")
	}
	return err
}

func (s *Session) write(command string) error {
	s.mu.Lock()
	rerr := s.readErr
	s.mu.Unlock()
	if rerr != nil {
		return fmt.Errorf("%w: %v", diagerr.ErrSessionClosed, rerr)
	}

	if _, err := io.WriteString(s.transport, command); err != nil {
		return fmt.Errorf("console: write %q: %w", trimCommand(command), err)
	}

	s.logger.WithField("command", trimCommand(command)).Debug("command sent")
	if s.opts.observer != nil {
		s.opts.observer.CommandSent(commandName(command))
	}
	return nil
}

func (s *Session) wait(ctx context.Context, command string, patterns []Pattern, timeout, idle time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = s.opts.timeout
	}
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		s.mu.Lock()
		text := s.buf.String()
		last := s.lastData
		rerr := s.readErr
		s.mu.Unlock()

		for i, p := range patterns {
			if p.Match(text) {
				return i, nil
			}
		}
		if rerr != nil {
			return IdleMatch, fmt.Errorf("%w: %v", diagerr.ErrSessionClosed, rerr)
		}

		now := time.Now()
		if now.After(deadline) {
			name := commandName(command)
			if name == "" {
				name = "wait"
			}
			if s.opts.observer != nil {
				s.opts.observer.CommandTimedOut(name)
			}
			s.logger.WithFields(logrus.Fields{
				"command": trimCommand(command),
				"pattern": describe(patterns),
				"timeout": timeout,
			}).Warn("timed out waiting for console output")

			return IdleMatch, &diagerr.TimeoutError{
				Command: trimCommand(command),
				Pattern: describe(patterns),
				Timeout: timeout,
				Tail:    tail(text, tailSize),
			}
		}

		if idle > 0 {
			if last.Before(start) {
				last = start
			}
			if now.Sub(last) >= idle {
				return IdleMatch, nil
			}
		}

		timer := time.NewTimer(min(s.opts.pollInterval, deadline.Sub(now)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return IdleMatch, ctx.Err()
		case <-s.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func trimCommand(command string) string {
	return strings.TrimRight(command, "\r\n")
}

func commandName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
