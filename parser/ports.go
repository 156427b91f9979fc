package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iwtcode/diagAdapter/models"
)

var (
	// " 1:  1000  FULL     N/A     DISABLED   UP"
	portRowRe = regexp.MustCompile(`(?m)^\s*(\d+):\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)\s*$`)
	portRefRe = regexp.MustCompile(`Port/(\d+)`)
)

// ParsePortStatus разбирает таблицу PortStatus. Если targets не пуст,
// в результат попадают только целевые порты.
//
// Строки с ERR, не называющие ни одного целевого порта, считаются известным
// безобидным предупреждением и отбрасываются. Если ERR называет целевой
// порт ("Port/12"), запись этого порта исключается, а текст ошибки
// попадает в Errors.
func ParsePortStatus(raw string, targets []int) models.PortStatus {
	text := normalize(raw)
	wanted := make(map[int]bool, len(targets))
	for _, p := range targets {
		wanted[p] = true
	}

	status := models.PortStatus{Records: models.PortSet{}}
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "ERR") {
			continue
		}
		for _, ref := range portRefRe.FindAllStringSubmatch(line, -1) {
			port, _ := strconv.Atoi(ref[1])
			if len(wanted) > 0 && !wanted[port] {
				continue
			}
			if status.Errors == nil {
				status.Errors = map[int]string{}
			}
			status.Errors[port] = strings.TrimSpace(line)
		}
	}

	for _, m := range portRowRe.FindAllStringSubmatch(text, -1) {
		id := atoi(m[1])
		if len(wanted) > 0 && !wanted[id] {
			continue
		}
		if _, failed := status.Errors[id]; failed {
			continue
		}
		status.Records[id] = models.PortRecord{
			PortID:    id,
			Speed:     m[2],
			Duplex:    m[3],
			Crossover: m[4],
			Loopback:  m[5],
			LinkState: strings.ToUpper(m[6]),
		}
	}
	return status
}
