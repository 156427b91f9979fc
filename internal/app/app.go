package app

import (
	"context"
	"time"

	diag "github.com/iwtcode/diagAdapter"
	"github.com/iwtcode/diagAdapter/internal/adapters/repositories/sqlite"
	"github.com/iwtcode/diagAdapter/internal/config"
	"github.com/iwtcode/diagAdapter/internal/interfaces"
	"github.com/iwtcode/diagAdapter/internal/middleware/logging"
	"github.com/iwtcode/diagAdapter/internal/monitor"
	"github.com/iwtcode/diagAdapter/internal/services/kafka"
	"github.com/iwtcode/diagAdapter/internal/usecases"
	"github.com/iwtcode/diagAdapter/models"

	"go.uber.org/fx"
)

// New создает новый экземпляр fx.App
func New() *fx.App {
	return fx.New(Options())
}

// Options собирает все модули приложения.
func Options() fx.Option {
	return fx.Options(
		ConfigModule,
		LoggingModule,
		RepositoryModule,
		ProducerModule,
		MonitorModule,
		ServiceModule,
		UsecaseModule,
		// Invoke-функции для запуска фоновых задач и хуков жизненного цикла
		fx.Invoke(InvokeMetricsServer),
		fx.Invoke(InvokeRunSequence),
	)
}

var _ interfaces.DiagService = (*diag.Client)(nil)

// --- Модули FX ---

var ConfigModule = fx.Module("config_module",
	fx.Provide(config.LoadConfiguration, config.LoadProfile),
)

func ProvideLogger(lc fx.Lifecycle, cfg *config.AppConfig) *logging.Logger {
	loggerCfg := &logging.Config{
		Enabled:    cfg.Logging.Enable,
		Level:      cfg.Logging.Level,
		LogsDir:    cfg.Logging.LogsDir,
		SavingDays: uint(cfg.Logging.SavingDays),
	}
	logger := logging.NewLogger(loggerCfg, "DiagAdapterApp")
	lc.Append(fx.StopHook(logger.Close))
	return logger
}

var LoggingModule = fx.Module("logging_module",
	fx.Provide(ProvideLogger),
)

func ProvideRepository(lc fx.Lifecycle, cfg *config.AppConfig, logger *logging.Logger) (interfaces.Repository, error) {
	repo, err := sqlite.NewRepository(cfg, logger.WithPrefix("storage"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(repo.Close))
	return repo, nil
}

var RepositoryModule = fx.Module("repository_module",
	fx.Provide(ProvideRepository),
)

func ProvideProducer(lc fx.Lifecycle, cfg *config.AppConfig, logger *logging.Logger) (interfaces.KafkaService, error) {
	producer, err := kafka.NewKafkaProducer(cfg, logger.WithPrefix("kafka"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(producer.Close))
	return producer, nil
}

var ProducerModule = fx.Module("producer_module",
	fx.Provide(ProvideProducer),
)

func ProvideMonitor(logger *logging.Logger) *monitor.Monitor {
	return monitor.NewMonitor(logger.WithPrefix("metrics"))
}

func ProvideStepRecorder(m *monitor.Monitor) interfaces.StepRecorder {
	return m
}

var MonitorModule = fx.Module("monitor_module",
	fx.Provide(ProvideMonitor, ProvideStepRecorder),
)

// ProvideDiagClient открывает сессию с консолью UUT по переменным UUT_*.
func ProvideDiagClient(
	lc fx.Lifecycle,
	profile *config.Profile,
	repo interfaces.Repository,
	m *monitor.Monitor,
	logger *logging.Logger,
) (interfaces.DiagService, error) {
	client, err := diag.New(diag.Load(),
		diag.WithLogger(logger.Logrus()),
		diag.WithReferenceStore(repo),
		diag.WithECIDRepository(repo),
		diag.WithObserver(m),
		diag.WithPortWatts(profile.PoE.PortWatts),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(client.Close))
	return client, nil
}

var ServiceModule = fx.Module("service_module",
	fx.Provide(ProvideDiagClient),
)

var UsecaseModule = fx.Module("usecases_module",
	fx.Provide(usecases.NewUsecases),
)

// InvokeMetricsServer поднимает /metrics, если задан METRICS_PORT.
func InvokeMetricsServer(lc fx.Lifecycle, cfg *config.AppConfig, m *monitor.Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			m.StartMetricsServer(cfg)
			return nil
		},
		OnStop: m.Stop,
	})
}

// InvokeRunSequence прогоняет профиль после старта, при POLL_INTERVAL_SEC > 0
// продолжает публиковать сводки, затем останавливает приложение.
// Код выхода 1, если прогон завершился FAIL или ошибкой.
func InvokeRunSequence(lc fx.Lifecycle, sd fx.Shutdowner, uc interfaces.Usecases, cfg *config.AppConfig, logger *logging.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0

				report, err := uc.RunSequence(ctx)
				switch {
				case err != nil:
					logger.Error("Run failed", "error", err)
					code = 1
				case report.Status == models.StepFail:
					code = 1
				}

				if cfg.PollInterval > 0 && ctx.Err() == nil {
					interval := time.Duration(cfg.PollInterval) * time.Second
					logger.Info("Starting snapshot polling", "interval", interval)
					_ = uc.PollSnapshots(ctx, interval)
				}

				if ctx.Err() == nil {
					_ = sd.Shutdown(fx.ExitCode(code))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				logger.Warn("Run did not stop in time")
			}
			return nil
		},
	})
}
