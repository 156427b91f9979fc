package console

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Observer получает уведомления об отправленных командах и таймаутах.
type Observer interface {
	CommandSent(command string)
	CommandTimedOut(command string)
}

type options struct {
	timeout      time.Duration
	pollInterval time.Duration
	settleDelay  time.Duration
	logger       *logrus.Entry
	observer     Observer
}

// Option настраивает Session, созданную NewSession.
type Option func(*options)

// WithTimeout задает таймаут ожидания по умолчанию.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithPollInterval задает интервал опроса буфера.
// Значения меньше 5ms поднимаются до 5ms.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = max(d, minPollInterval)
	}
}

// WithSettleDelay задает паузу перед очисткой буфера.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settleDelay = d
	}
}

// WithLogger передает логгер сессии.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver подключает наблюдателя (метрики).
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

const (
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 50 * time.Millisecond
	defaultSettleDelay  = 100 * time.Millisecond
	minPollInterval     = 5 * time.Millisecond
)

func defaultOptions() options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	return options{
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		settleDelay:  defaultSettleDelay,
		logger:       logrus.NewEntry(discard),
	}
}
