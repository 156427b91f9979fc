package diag

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/margin"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/pkg/retry"
	"github.com/iwtcode/diagAdapter/poe"
	"github.com/iwtcode/diagAdapter/rtc"
	"github.com/sirupsen/logrus"
)

// ECIDRepository сохраняет идентификаторы кристаллов UUT.
type ECIDRepository interface {
	SaveECIDs(ctx context.Context, serial string, records []models.ECIDRecord) error
}

// Client является основной точкой входа для работы с диагностической консолью UUT.
type Client struct {
	session  *console.Session
	prompt   console.Pattern
	config   *Config
	logger   *logrus.Logger
	verifier *margin.Verifier
	planner  *poe.Planner
	refs     rtc.ReferenceStore
	ecids    ECIDRepository
}

type clientOptions struct {
	transport console.Transport
	logger    *logrus.Logger
	refs      rtc.ReferenceStore
	ecids     ECIDRepository
	observer  console.Observer
	portWatts map[string]float64
}

// Option настраивает Client.
type Option func(*clientOptions)

// WithTransport подставляет готовый транспорт (например, console.SimTransport).
func WithTransport(t console.Transport) Option {
	return func(o *clientOptions) { o.transport = t }
}

// WithLogger заменяет логгер, построенный по Config.LogLevel.
func WithLogger(l *logrus.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithReferenceStore подключает хранилище опорного времени RTC.
func WithReferenceStore(s rtc.ReferenceStore) Option {
	return func(o *clientOptions) { o.refs = s }
}

// WithECIDRepository подключает хранилище ECID.
func WithECIDRepository(r ECIDRepository) Option {
	return func(o *clientOptions) { o.ecids = r }
}

// WithObserver подключает наблюдателя команд (метрики).
func WithObserver(obs console.Observer) Option {
	return func(o *clientOptions) { o.observer = obs }
}

// WithPortWatts задает таблицу мощности PoE на порт по типу.
func WithPortWatts(w map[string]float64) Option {
	return func(o *clientOptions) { o.portWatts = w }
}

// NewLogger создает логгер по уровню из конфигурации.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()

	if level == "off" || level == "none" {
		logger.SetOutput(io.Discard)
	} else {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		logger.SetLevel(lvl)
		logger.SetOutput(os.Stdout)
	}

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

// New создает клиента и открывает сессию с консолью UUT.
func New(cfg *Config, opts ...Option) (*Client, error) {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = NewLogger(cfg.LogLevel)
	}

	prompt := console.DefaultPrompt
	if cfg.Prompt != "" {
		p, err := console.Compile(cfg.Prompt, true)
		if err != nil {
			return nil, fmt.Errorf("invalid UUT_PROMPT: %w", err)
		}
		prompt = p
	}

	transport := o.transport
	if transport == nil {
		t, err := openTransport(cfg, logger)
		if err != nil {
			return nil, err
		}
		transport = t
	}

	sessionOpts := []console.Option{
		console.WithTimeout(cfg.CommandTimeout),
		console.WithSettleDelay(cfg.SettleDelay),
		console.WithLogger(logger.WithField("component", "console")),
	}
	if o.observer != nil {
		sessionOpts = append(sessionOpts, console.WithObserver(o.observer))
	}

	return &Client{
		session:  console.NewSession(transport, sessionOpts...),
		prompt:   prompt,
		config:   cfg,
		logger:   logger,
		verifier: margin.NewVerifier(logger.WithField("component", "margin")),
		planner:  poe.NewPlanner(o.portWatts, logger.WithField("component", "poe")),
		refs:     o.refs,
		ecids:    o.ecids,
	}, nil
}

func openTransport(cfg *Config, logger *logrus.Logger) (console.Transport, error) {
	if cfg.SimScript != "" {
		script, err := console.LoadSimScript(cfg.SimScript)
		if err != nil {
			return nil, err
		}
		logger.WithField("script", cfg.SimScript).Warn("using simulated UUT console")
		return console.NewSimTransportFromScript(script), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	t, err := console.Dial(ctx, cfg.Address, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to UUT console: %w", err)
	}
	logger.WithField("address", cfg.Address).Info("connected to UUT console")
	return t, nil
}

// Close закрывает сессию с консолью.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// GetLogger возвращает используемый логгер.
func (c *Client) GetLogger() *logrus.Logger {
	return c.logger
}

// Session возвращает командную сессию для операций, не покрытых клиентом.
func (c *Client) Session() *console.Session {
	return c.session
}

// Serial возвращает серийный номер UUT из конфигурации.
func (c *Client) Serial() string {
	return c.config.Serial
}

// Exec очищает буфер, отправляет команду и ждет приглашения. Таймауты
// повторяются до RetryAttempts раз с фиксированной паузой.
func (c *Client) Exec(ctx context.Context, command string) (string, error) {
	policy := retry.Policy{
		MaxAttempts: c.config.RetryAttempts,
		Backoff:     c.config.RetryBackoff,
		OnRetry: func(attempt int, err error) {
			c.logger.WithFields(logrus.Fields{
				"command": command,
				"attempt": attempt,
			}).Warnf("command timed out, retrying: %v", err)
		},
	}

	res, err := retry.Do(ctx, policy, func(ctx context.Context) (*models.CommandResult, error) {
		c.session.ClearBuffer()
		return c.session.Send(ctx, command, c.prompt, c.config.CommandTimeout)
	})
	if err != nil {
		return "", err
	}
	return res.RawOutput, nil
}

// SysInit инициализирует подсистемы UUT.
func (c *Client) SysInit(ctx context.Context, level int) error {
	_, err := c.Exec(ctx, console.SysInit(level))
	return err
}
