package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iwtcode/diagAdapter/models"
)

var (
	boardScope = regexp.MustCompile(`^(?:BOARD|Main Board)$`)
	fruScope   = regexp.MustCompile(`^FRU`)
	anyScope   = regexp.MustCompile(`.*`)
)

// ScopeFor возвращает фильтр колонки "Scope" для экземпляра устройства:
// 0 - основная плата, >0 - FRU, <0 - все строки.
func ScopeFor(instance int) *regexp.Regexp {
	switch {
	case instance == 0:
		return boardScope
	case instance > 0:
		return fruScope
	default:
		return anyScope
	}
}

// ParseVoltages разбирает таблицу GetVoltMarg:
//
//	| Rail     | Nominal | Actual | Scope      |
//	|----------|---------|--------|------------|
//	| VDD_CORE | 0.900   | 0.903  | BOARD      |
//	| VDD_3V3  | 3.300   | NA     | Main Board |
//
// Строки отбираются по последней колонке. Нечисловые значения сохраняются строкой.
func ParseVoltages(raw string, instance int) models.ReadingSet {
	scope := ScopeFor(instance)
	set := models.ReadingSet{}

	for _, line := range strings.Split(normalize(raw), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		cells := strings.Split(strings.Trim(line, "|"), "|")
		if len(cells) < 4 {
			continue
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}

		// заголовок и разделитель отсекаются по числовой колонке Nominal
		if _, err := strconv.ParseFloat(cells[1], 64); err != nil {
			continue
		}
		if !scope.MatchString(cells[len(cells)-1]) {
			continue
		}
		set[cells[0]] = models.NewReading(cells[0], cells[2])
	}
	return set
}
