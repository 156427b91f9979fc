package console

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SimResponse - ответ симулятора на команду.
type SimResponse struct {
	Match  string `yaml:"match"`
	Regex  bool   `yaml:"regex"`
	Output string `yaml:"output"`
	// Stall: вывод без приглашения, команда "зависает".
	Stall bool `yaml:"stall"`
}

// SimScript описывает поведение симулированной консоли.
type SimScript struct {
	Prompt    string        `yaml:"prompt"`
	Banner    string        `yaml:"banner"`
	Responses []SimResponse `yaml:"responses"`
}

// LoadSimScript читает сценарий симулятора из YAML.
func LoadSimScript(path string) (*SimScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("console: read sim script: %w", err)
	}

	var script SimScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("console: parse sim script %s: %w", path, err)
	}
	if script.Prompt == "" {
		script.Prompt = DefaultSimPrompt
	}
	for _, r := range script.Responses {
		if r.Regex {
			if _, err := regexp.Compile(r.Match); err != nil {
				return nil, fmt.Errorf("console: sim script %s: %w", path, err)
			}
		}
	}
	return &script, nil
}

// DefaultSimPrompt - приглашение симулятора по умолчанию.
const DefaultSimPrompt = "Diag> "

type simHandler struct {
	match string
	re    *regexp.Regexp
	fn    func(cmd string) string
	stall bool
}

func (h simHandler) matches(cmd string) bool {
	if h.re != nil {
		return h.re.MatchString(cmd)
	}
	return h.match == cmd
}

// SimTransport - программируемая консоль UUT в памяти. Эхо команды,
// ответ и приглашение выдаются так же, как это делает реальная оболочка.
type SimTransport struct {
	mu       sync.Mutex
	cond     *sync.Cond
	prompt   string
	handlers []simHandler
	pending  []byte
	line     []byte
	commands []string
	closed   bool
}

// NewSimTransport создает симулятор с указанным приглашением.
func NewSimTransport(prompt string) *SimTransport {
	if prompt == "" {
		prompt = DefaultSimPrompt
	}
	t := &SimTransport{prompt: prompt}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// NewSimTransportFromScript создает симулятор по сценарию и выдает баннер с приглашением.
func NewSimTransportFromScript(script *SimScript) *SimTransport {
	t := NewSimTransport(script.Prompt)
	for _, r := range script.Responses {
		h := simHandler{match: r.Match, stall: r.Stall}
		output := r.Output
		h.fn = func(string) string { return output }
		if r.Regex {
			h.re = regexp.MustCompile(r.Match)
		}
		t.handlers = append(t.handlers, h)
	}
	if script.Banner != "" {
		t.Inject(strings.TrimRight(script.Banner, "\r\n") + "\n")
	}
	t.Inject(t.prompt)
	return t
}

// Handle отвечает output на команду, равную match (без \r).
func (t *SimTransport) Handle(match, output string) *SimTransport {
	return t.add(simHandler{match: match, fn: func(string) string { return output }})
}

// HandleRegexp отвечает output на команды, совпавшие с expr.
func (t *SimTransport) HandleRegexp(expr, output string) *SimTransport {
	return t.add(simHandler{re: regexp.MustCompile(expr), fn: func(string) string { return output }})
}

// HandleFunc вычисляет ответ на команды, совпавшие с expr.
// fn не должна вызывать методы транспорта синхронно.
func (t *SimTransport) HandleFunc(expr string, fn func(cmd string) string) *SimTransport {
	return t.add(simHandler{re: regexp.MustCompile(expr), fn: fn})
}

// Stall отвечает output на команду без последующего приглашения.
func (t *SimTransport) Stall(match, output string) *SimTransport {
	return t.add(simHandler{match: match, stall: true, fn: func(string) string { return output }})
}

func (t *SimTransport) add(h simHandler) *SimTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	// последний зарегистрированный обработчик имеет приоритет
	t.handlers = append([]simHandler{h}, t.handlers...)
	return t
}

// Inject выдает произвольный текст в поток консоли.
func (t *SimTransport) Inject(output string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, crlf(output)...)
	t.cond.Broadcast()
}

// Commands возвращает полученные команды в порядке поступления.
func (t *SimTransport) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.commands...)
}

func (t *SimTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.pending) == 0 && !t.closed {
		t.cond.Wait()
	}
	if len(t.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *SimTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	var lines []string
	for _, b := range p {
		if b == '\r' || b == '\n' {
			if b == '\n' && len(t.line) == 0 {
				continue
			}
			lines = append(lines, string(t.line))
			t.line = t.line[:0]
			continue
		}
		t.line = append(t.line, b)
	}
	t.commands = append(t.commands, lines...)
	handlers := append([]simHandler(nil), t.handlers...)
	t.mu.Unlock()

	for _, cmd := range lines {
		out := t.respond(handlers, cmd)
		t.mu.Lock()
		t.pending = append(t.pending, out...)
		t.cond.Broadcast()
		t.mu.Unlock()
	}
	return len(p), nil
}

func (t *SimTransport) respond(handlers []simHandler, cmd string) string {
	out := cmd + "\r\n"
	if strings.TrimSpace(cmd) == "" {
		return out + t.prompt
	}
	for _, h := range handlers {
		if !h.matches(cmd) {
			continue
		}
		if body := h.fn(cmd); body != "" {
			out += crlf(body)
			if !strings.HasSuffix(out, "\r\n") {
				out += "\r\n"
			}
		}
		if h.stall {
			return out
		}
		return out + t.prompt
	}
	return out + "% Unknown command: " + cmd + "\r\n" + t.prompt
}

func (t *SimTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.cond.Broadcast()
	return nil
}

func crlf(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}
