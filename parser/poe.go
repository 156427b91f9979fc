package parser

import (
	"regexp"
	"strings"

	"github.com/iwtcode/diagAdapter/models"
)

// "1     4      25500      ON"
var poeRowRe = regexp.MustCompile(`(?m)^\s*(\d+)\s+(\d+)\s+(\d+)\s+([A-Za-z_]+)\s*$`)

// ParsePoEStatus разбирает вывод Alchemy POEGET по номеру порта.
func ParsePoEStatus(raw string) map[int]models.PoEPortStatus {
	out := map[int]models.PoEPortStatus{}
	for _, m := range poeRowRe.FindAllStringSubmatch(normalize(raw), -1) {
		port := atoi(m[1])
		out[port] = models.PoEPortStatus{
			Port:       port,
			Class:      atoi(m[2]),
			PowerMilli: atoi(m[3]),
			Status:     strings.ToUpper(m[4]),
		}
	}
	return out
}
