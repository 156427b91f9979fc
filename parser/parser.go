// Package parser извлекает типизированные записи из текстового вывода
// диагностической оболочки UUT. Все функции чистые: пустой результат
// означает "функция отсутствует на устройстве" и не является ошибкой.
package parser

import (
	"strconv"
	"strings"
)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func normalize(raw string) string {
	return lineBreaks.Replace(raw)
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}
