package console

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPromptExpr соответствует приглашению диагностической оболочки
// ("Diag> ", "UUT-DIAG> ") в конце строки.
const DefaultPromptExpr = `(?m)^\S*[Dd][Ii][Aa][Gg]\S*>[ \t\r]*$`

// DefaultPrompt - скомпилированное приглашение по умолчанию.
var DefaultPrompt = Regexp(DefaultPromptExpr)

// Pattern - ожидаемый шаблон в накопленном выводе: подстрока или регулярное выражение.
type Pattern struct {
	expr string
	re   *regexp.Regexp
}

// Literal возвращает шаблон, совпадающий с подстрокой.
func Literal(s string) Pattern {
	return Pattern{expr: s}
}

// Regexp возвращает шаблон по регулярному выражению.
// Некорректное выражение вызывает панику.
func Regexp(expr string) Pattern {
	return Pattern{expr: expr, re: regexp.MustCompile(expr)}
}

// Compile строит шаблон из строки конфигурации.
func Compile(expr string, useRegex bool) (Pattern, error) {
	if !useRegex {
		return Literal(expr), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("console: invalid pattern %q: %w", expr, err)
	}
	return Pattern{expr: expr, re: re}, nil
}

// IsZero сообщает, что шаблон не задан.
func (p Pattern) IsZero() bool {
	return p.expr == "" && p.re == nil
}

// Match проверяет накопленный текст.
func (p Pattern) Match(text string) bool {
	if p.re != nil {
		return p.re.MatchString(text)
	}
	return strings.Contains(text, p.expr)
}

func (p Pattern) String() string {
	if p.re != nil {
		return fmt.Sprintf("regexp %q", p.expr)
	}
	return fmt.Sprintf("text %q", p.expr)
}

func describe(patterns []Pattern) string {
	descs := make([]string, 0, len(patterns))
	for _, p := range patterns {
		descs = append(descs, p.String())
	}
	if len(descs) == 1 {
		return descs[0]
	}
	return "any of: " + strings.Join(descs, ", ")
}
