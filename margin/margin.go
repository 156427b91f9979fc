// Package margin сравнивает показания с таблицей пределов с учетом
// уровня маржинирования, защитной полосы и бинов ASIC.
package margin

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iwtcode/diagAdapter/models"
	"github.com/sirupsen/logrus"
)

// Level - уровень маржинирования.
type Level int

const (
	Nominal Level = iota
	High
	Low
)

func (l Level) String() string {
	switch l {
	case High:
		return "HIGH"
	case Low:
		return "LOW"
	default:
		return "NOMINAL"
	}
}

// ParseLevel разбирает имя уровня без учета регистра.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NOMINAL", "":
		return Nominal, nil
	case "HIGH":
		return High, nil
	case "LOW":
		return Low, nil
	}
	return Nominal, fmt.Errorf("unknown margin level %q", s)
}

func (l Level) sign() float64 {
	switch l {
	case High:
		return 1
	case Low:
		return -1
	}
	return 0
}

func (l Level) fraction(e models.LimitEntry) float64 {
	switch l {
	case High:
		return e.MarginHigh
	case Low:
		return e.MarginLow
	}
	return 0
}

// ExhaustLabel - датчик, относительно которого считается правило delta.
const ExhaustLabel = "Exhaust"

// Center возвращает центр окна для уровня.
func Center(e models.LimitEntry, level Level) float64 {
	return (e.Nominal + e.Trim) * (1 + level.sign()*level.fraction(e))
}

// Bounds вычисляет нижнюю и верхнюю границы, округленные до 3 знаков.
// Для отрицательных шин границы меняются местами.
func Bounds(e models.LimitEntry, level Level) (lower, upper float64) {
	center := Center(e, level)
	upper = round3(center * (1 + e.GuardBand))
	lower = round3(center * (1 - e.GuardBand))
	if lower > upper {
		lower, upper = upper, lower
	}
	return lower, upper
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// TemperatureTestConfig - параметры температурной проверки.
type TemperatureTestConfig struct {
	Corner           Level
	OperationalState string
	Limits           models.LimitTable
}

// Verifier выполняет проверки. Состояния не хранит.
type Verifier struct {
	logger *logrus.Entry
}

// NewVerifier создает проверяющего с логгером.
func NewVerifier(logger *logrus.Entry) *Verifier {
	return &Verifier{logger: logger}
}

// Check сравнивает одно показание с пределом. Нечисловое показание
// проходит без проверки.
func (v *Verifier) Check(r models.Reading, e models.LimitEntry, level Level) models.MarginResult {
	actual, ok := r.Float()
	if !ok {
		return models.MarginResult{Label: r.Label, Level: level.String(), Pass: true, Note: fmt.Sprintf("not applicable: %q", r.Raw)}
	}

	lower, upper := Bounds(e, level)
	res := models.MarginResult{
		Label:  r.Label,
		Level:  level.String(),
		Actual: actual,
		Lower:  lower,
		Upper:  upper,
		Pass:   lower <= actual && actual <= upper,
	}
	if !res.Pass {
		v.logFailure(res, level)
	}
	return res
}

// CheckBinned выбирает предел по индексу бина. Отсутствующий бин - без проверки.
func (v *Verifier) CheckBinned(r models.Reading, e models.LimitEntry, bin int, level Level) models.MarginResult {
	binned, ok := e.BinTable[bin]
	if !ok {
		return models.MarginResult{Label: r.Label, Level: level.String(), Pass: true, Note: fmt.Sprintf("no limit for bin %d", bin)}
	}
	return v.Check(r, binned, level)
}

// CheckSet проверяет все метки, присутствующие и в показаниях, и в таблице.
// Метки без пары с любой стороны игнорируются.
func (v *Verifier) CheckSet(readings models.ReadingSet, limits models.LimitTable, level Level) []models.MarginResult {
	return v.CheckSetBinned(readings, limits, nil, level)
}

// CheckSetBinned - как CheckSet, но для меток из bins предел берется из BinTable.
func (v *Verifier) CheckSetBinned(readings models.ReadingSet, limits models.LimitTable, bins map[string]int, level Level) []models.MarginResult {
	labels := commonLabels(readings, limits)
	results := make([]models.MarginResult, 0, len(labels))
	for _, label := range labels {
		if bin, ok := bins[label]; ok {
			results = append(results, v.CheckBinned(readings[label], limits[label], bin, level))
			continue
		}
		results = append(results, v.Check(readings[label], limits[label], level))
	}
	return results
}

// CheckTemperatures - составная температурная проверка. Если у предела задан
// delta, вместо окна проверяется |показание - Exhaust| < delta.
func (v *Verifier) CheckTemperatures(readings models.ReadingSet, cfg TemperatureTestConfig) []models.MarginResult {
	labels := commonLabels(readings, cfg.Limits)
	results := make([]models.MarginResult, 0, len(labels))

	for _, label := range labels {
		e := cfg.Limits[label]
		if e.Delta == nil {
			results = append(results, v.Check(readings[label], e, cfg.Corner))
			continue
		}
		results = append(results, v.checkDelta(readings, label, *e.Delta, cfg.Corner))
	}
	return results
}

func (v *Verifier) checkDelta(readings models.ReadingSet, label string, delta float64, corner Level) models.MarginResult {
	r := readings[label]
	actual, ok := r.Float()
	if !ok {
		return models.MarginResult{Label: label, Level: corner.String(), Pass: true, Note: fmt.Sprintf("not applicable: %q", r.Raw)}
	}
	exhaust, ok := readings[ExhaustLabel].Float()
	if !ok {
		return models.MarginResult{Label: label, Level: corner.String(), Actual: actual, Pass: true, Note: "no exhaust reading"}
	}

	diff := math.Abs(actual - exhaust)
	res := models.MarginResult{
		Label:  label,
		Level:  corner.String(),
		Actual: actual,
		Lower:  round3(exhaust - delta),
		Upper:  round3(exhaust + delta),
		Pass:   diff < delta,
		Note:   fmt.Sprintf("delta to %s %.3f (limit %.3f)", ExhaustLabel, diff, delta),
	}
	if !res.Pass {
		v.logFailure(res, corner)
	}
	return res
}

func (v *Verifier) logFailure(res models.MarginResult, level Level) {
	v.logger.WithFields(logrus.Fields{
		"label":  res.Label,
		"actual": res.Actual,
		"lower":  res.Lower,
		"upper":  res.Upper,
		"level":  level.String(),
	}).Error("reading out of limits")
}

// AllPass сообщает, что все результаты успешны.
func AllPass(results []models.MarginResult) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func commonLabels(readings models.ReadingSet, limits models.LimitTable) []string {
	var labels []string
	for label := range readings {
		if _, ok := limits[label]; ok {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}
