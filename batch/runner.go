// Package batch запускает пакетный сценарий диагностики на UUT и
// классифицирует потоковый вывод по мере поступления новых строк.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNoScript - в каталоге нет сценариев.
var ErrNoScript = errors.New("no batch script found")

// Console - часть командной сессии, нужная раннеру.
type Console interface {
	Send(ctx context.Context, command string, expect console.Pattern, timeout time.Duration) (*models.CommandResult, error)
	Buffer() string
	ClearBuffer()
}

// Config - параметры пакетного прогона.
type Config struct {
	BeginLabel     string        `yaml:"begin_label"`
	EndMarker      string        `yaml:"end_marker"`
	DoneMarker     string        `yaml:"done_marker"`
	Timeout        time.Duration `yaml:"timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PromptPattern  string        `yaml:"prompt_pattern"`
	FailurePattern string        `yaml:"failure_pattern"`
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		BeginLabel:     "BATCH BEGIN",
		EndMarker:      "BATCH END",
		DoneMarker:     "Done",
		Timeout:        10 * time.Minute,
		PollInterval:   500 * time.Millisecond,
		PromptPattern:  `^\s*\S*[Dd][Ii][Aa][Gg]\S*>\s*\S+`,
		FailurePattern: `(?i)error|fail|usage|\*\*\*ERR`,
	}
}

// Runner выполняет сценарии через консоль.
type Runner struct {
	con     Console
	cfg     Config
	prompt  *regexp.Regexp
	failure *regexp.Regexp
	logger  *logrus.Entry
}

// NewRunner проверяет конфигурацию и создает раннер. Незаданные поля
// берутся из DefaultConfig.
func NewRunner(con Console, cfg Config, logger *logrus.Entry) (*Runner, error) {
	def := DefaultConfig()
	if cfg.BeginLabel == "" {
		cfg.BeginLabel = def.BeginLabel
	}
	if cfg.EndMarker == "" {
		cfg.EndMarker = def.EndMarker
	}
	if cfg.DoneMarker == "" {
		cfg.DoneMarker = def.DoneMarker
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PromptPattern == "" {
		cfg.PromptPattern = def.PromptPattern
	}
	if cfg.FailurePattern == "" {
		cfg.FailurePattern = def.FailurePattern
	}

	prompt, err := regexp.Compile(cfg.PromptPattern)
	if err != nil {
		return nil, fmt.Errorf("batch: prompt pattern: %w", err)
	}
	failure, err := regexp.Compile(cfg.FailurePattern)
	if err != nil {
		return nil, fmt.Errorf("batch: failure pattern: %w", err)
	}
	return &Runner{con: con, cfg: cfg, prompt: prompt, failure: failure, logger: logger}, nil
}

// Run запускает сценарий и ждет маркера завершения. Найденные ошибки не
// прерывают прогон, но делают результат FAIL. Превышение числа итераций
// (Timeout / PollInterval) - жесткий отказ ErrBatchHung.
func (r *Runner) Run(ctx context.Context, script string) (*models.BatchResult, error) {
	r.con.ClearBuffer()
	if _, err := r.con.Send(ctx, console.RunBatch(script), console.Pattern{}, 0); err != nil {
		return nil, fmt.Errorf("batch: start %s: %w", script, err)
	}

	log := r.logger.WithField("script", script)
	log.Info("batch started")

	result := &models.BatchResult{Script: script, Status: models.StepFail}
	var lines lineTracker
	beginSeen := false
	echo := strings.TrimSpace(console.RunBatch(script))
	echoSeen := false
	maxIter := int(r.cfg.Timeout / r.cfg.PollInterval)

	terminal := func(line string) bool {
		return strings.Contains(line, r.cfg.EndMarker) || (!beginSeen && strings.Contains(line, r.cfg.DoneMarker))
	}

	for iter := 0; ; iter++ {
		done := false
		for _, line := range lines.next(r.con.Buffer(), terminal) {
			// эхо команды batch содержит имя сценария и не классифицируется
			if !echoSeen && strings.HasSuffix(strings.TrimSpace(line), echo) {
				echoSeen = true
				continue
			}
			if strings.Contains(line, r.cfg.BeginLabel) {
				beginSeen = true
			}
			if r.prompt.MatchString(line) {
				result.Commands++
				log.WithField("commands", result.Commands).Debug("batch progress")
			}
			if r.failure.MatchString(line) {
				result.Failures = append(result.Failures, strings.TrimSpace(line))
				log.WithField("line", strings.TrimSpace(line)).Error("batch failure detected")
			}
			if strings.Contains(line, r.cfg.EndMarker) {
				result.Completed = true
				done = true
				break
			}
			if !beginSeen && strings.Contains(line, r.cfg.DoneMarker) {
				result.EarlyTermination = true
				done = true
				break
			}
		}
		if done {
			break
		}

		if iter >= maxIter {
			log.WithField("iterations", iter).Error("batch session hung")
			return result, fmt.Errorf("%w: %s produced no end marker within %v", diagerr.ErrBatchHung, script, r.cfg.Timeout)
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}

	if result.EarlyTermination {
		log.Warn("batch terminated before begin label")
	}
	if result.Completed && len(result.Failures) == 0 {
		result.Status = models.StepPass
	}
	log.WithFields(logrus.Fields{
		"status":   result.Status,
		"commands": result.Commands,
		"failures": len(result.Failures),
	}).Info("batch finished")
	return result, nil
}

// Latest возвращает путь к самому новому сценарию в каталоге.
func (r *Runner) Latest(ctx context.Context, dir string) (string, error) {
	r.con.ClearBuffer()
	res, err := r.con.Send(ctx, console.ListDir(dir), console.DefaultPrompt, 0)
	if err != nil {
		return "", fmt.Errorf("batch: list %s: %w", dir, err)
	}
	names := parser.ParseListing(res.RawOutput)
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoScript, dir)
	}
	return path.Join(dir, names[0]), nil
}

// RunLatest запускает самый новый сценарий из каталога.
func (r *Runner) RunLatest(ctx context.Context, dir string) (*models.BatchResult, error) {
	script, err := r.Latest(ctx, dir)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, script)
}

// lineTracker держит пару указателей head/tail над растущим буфером и
// возвращает только новые завершенные строки.
type lineTracker struct {
	head int
	tail int
}

// next возвращает строки между прошлым и текущим концом последней полной
// строки. Незавершенная строка отдается, только если она терминальная.
func (t *lineTracker) next(buf string, terminal func(string) bool) []string {
	if len(buf) < t.tail {
		// буфер очищен
		t.head, t.tail = 0, 0
	}
	t.head = t.tail

	chunk := buf[t.head:]
	var lines []string
	if last := strings.LastIndexByte(chunk, '\n'); last >= 0 {
		t.tail = t.head + last + 1
		for _, l := range strings.Split(chunk[:last], "\n") {
			lines = append(lines, strings.TrimRight(l, "\r"))
		}
		chunk = chunk[last+1:]
	}
	if pending := strings.TrimRight(chunk, "\r"); pending != "" && terminal(pending) {
		lines = append(lines, pending)
	}
	return lines
}
