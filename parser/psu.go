package parser

import (
	"regexp"
	"strconv"

	"github.com/iwtcode/diagAdapter/models"
)

// "1    PWR-C1-1100WAC LIT2123ABCD   1100      OK"
var psuRowRe = regexp.MustCompile(`(?m)^\s*(\d+)\s+(\S+)\s+(\S+)\s+(\d+(?:\.\d+)?)\s+(\S+)\s*$`)

// ParsePSUs разбирает таблицу PsuStatus. Пустые слоты ("NOT PRESENT") не попадают в результат.
func ParsePSUs(raw string) []models.PSURecord {
	var psus []models.PSURecord
	for _, m := range psuRowRe.FindAllStringSubmatch(normalize(raw), -1) {
		watts, _ := strconv.ParseFloat(m[4], 64)
		psus = append(psus, models.PSURecord{
			Slot:       atoi(m[1]),
			Model:      m[2],
			Serial:     m[3],
			RatedWatts: watts,
			Status:     m[5],
		})
	}
	return psus
}
