package parser

import (
	"regexp"
	"time"
)

var rtcRe = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+(\d{2}:\d{2}:\d{2})`)

// ParseRTC извлекает время из вывода getrtc ("Current RTC time: 10/19/2026 14:03:22").
// Часы UUT хранят UTC.
func ParseRTC(raw string) (time.Time, bool) {
	m := rtcRe.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("01/02/2006 15:04:05", m[1]+" "+m[2], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
