package parser

import (
	"regexp"

	"github.com/iwtcode/diagAdapter/models"
)

// "A     sw2/B      UP     0"
var stackRowRe = regexp.MustCompile(`(?m)^\s*(\w)\s+(\S+)\s+([A-Z]+)\s+(\d+)\s*$`)

// ParseStackRing разбирает таблицу StackRAC.
func ParseStackRing(raw string) []models.StackPort {
	var ports []models.StackPort
	for _, m := range stackRowRe.FindAllStringSubmatch(normalize(raw), -1) {
		ports = append(ports, models.StackPort{
			Port:     m[1],
			Neighbor: m[2],
			State:    m[3],
			Errors:   atoi(m[4]),
		})
	}
	return ports
}
