package parser

import (
	"regexp"
	"strings"

	"github.com/iwtcode/diagAdapter/models"
)

// "Inlet Temperature: 31.5 C", "ASIC0 Die Thermal Sensor: -4C"
var temperatureRe = regexp.MustCompile(`(?m)^\s*([A-Za-z][\w./-]*(?: [\w./-]+)*?)\s+(?:Thermal|Temperature)\b[^:\n]*:\s*([-+]?\d+(?:\.\d+)?)\s*C\b`)

// ParseTemperatures возвращает показания датчиков по метке.
func ParseTemperatures(raw string) models.ReadingSet {
	set := models.ReadingSet{}
	for _, m := range temperatureRe.FindAllStringSubmatch(normalize(raw), -1) {
		label := strings.TrimSpace(m[1])
		set[label] = models.NewReading(label, m[2])
	}
	return set
}
