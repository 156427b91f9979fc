package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Enabled    bool   // Включено ли логирование
	Level      string // DEBUG, INFO, WARN, ERROR
	LogsDir    string // Директория для логов
	SavingDays uint   // Сколько дней хранить логи
}

// Logger - логгер стенда поверх logrus: консоль плюс суточный файл в LogsDir.
type Logger struct {
	config *Config
	base   *logrus.Logger
	entry  *logrus.Entry
	file   *os.File
	stop   chan struct{}
}

func NewLogger(cfg *Config, prefix string) *Logger {
	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetLevel(parseLevel(cfg.Level))

	l := &Logger{config: cfg, base: base}

	var output io.Writer = os.Stdout
	if !cfg.Enabled {
		output = io.Discard
	} else if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0755); err == nil {
			logFile := filepath.Join(cfg.LogsDir, time.Now().Format("2006-01-02")+".log")
			if file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
				l.file = file
				output = io.MultiWriter(os.Stdout, file)
			}
		}
	}
	base.SetOutput(output)

	l.entry = logrus.NewEntry(base)
	if prefix != "" {
		l.entry = l.entry.WithField("component", prefix)
	}

	if cfg.Enabled && cfg.SavingDays > 0 && cfg.LogsDir != "" {
		l.stop = make(chan struct{})
		go l.cleanLoop()
	}

	return l
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// WithPrefix возвращает логгер с вложенным именем компонента: "app.storage".
func (l *Logger) WithPrefix(prefix string) *Logger {
	component := prefix
	if parent, ok := l.entry.Data["component"]; ok {
		component = fmt.Sprint(parent) + "." + prefix
	}

	return &Logger{
		config: l.config,
		base:   l.base,
		entry:  l.entry.WithField("component", component),
		file:   l.file,
	}
}

// Logrus отдает общий *logrus.Logger для пакетов, которые принимают его напрямую.
func (l *Logger) Logrus() *logrus.Logger { return l.base }

// Entry отдает запись с полями компонента.
func (l *Logger) Entry() *logrus.Entry { return l.entry }

func (l *Logger) cleanLoop() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	l.cleanOldLogs(time.Now())
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.cleanOldLogs(now)
		}
	}
}

func (l *Logger) cleanOldLogs(now time.Time) {
	files, err := os.ReadDir(l.config.LogsDir)
	if err != nil {
		l.Error("Failed to read logs directory", "error", err)
		return
	}

	cutoff := now.AddDate(0, 0, -int(l.config.SavingDays))
	for _, file := range files {
		if info, err := file.Info(); err == nil && !file.IsDir() && info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(l.config.LogsDir, file.Name())); err != nil {
				l.Error("Failed to delete old log file", "file", file.Name(), "error", err)
			}
		}
	}
}

func (l *Logger) fields(kv []interface{}) *logrus.Entry {
	if len(kv) == 0 {
		return l.entry
	}
	f := make(logrus.Fields, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 < len(kv) {
			f[key] = kv[i+1]
		} else {
			f[key] = "?"
		}
	}
	return l.entry.WithFields(f)
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.fields(fields).Debug(msg) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.fields(fields).Info(msg) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.fields(fields).Warn(msg) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.fields(fields).Error(msg) }

func (l *Logger) Close() error {
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
