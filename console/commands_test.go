package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandStrings(t *testing.T) {
	at := time.Date(2026, 3, 7, 9, 4, 5, 0, time.UTC)

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"SetVoltMarg", SetVoltMarg("VDD_CORE", "HIGH", 0), "SetVoltMarg VDD_CORE HIGH -f:0\r"},
		{"SetVoltMargFRU", SetVoltMarg("VDD_3V3", "NOMINAL", 2), "SetVoltMarg VDD_3V3 NOMINAL -f:2\r"},
		{"SysInit", SysInit(2), "sysinit 2\r"},
		{"PoESetOn", PoESet([]int{1, 2, 3}, true), "Alchemy POESET -p:1,2,3 -s:ON\r"},
		{"PoESetOff", PoESet([]int{7}, false), "Alchemy POESET -p:7 -s:OFF\r"},
		{"SetRTCDate", SetRTCDate(at), "setrtc -date:03/07/2026\r"},
		{"SetRTCTime", SetRTCTime(at), "setrtc -time:09:04:05\r"},
		{"FpgaDump", FpgaDump(0x1a, 4), "FpgaDump 0x001a 4\r"},
		{"ListDir", ListDir("/flash/scripts"), "ls /flash/scripts\r"},
		{"RunBatch", RunBatch("burnin_v3.bat"), "batch burnin_v3.bat\r"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestSetRTCConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2026, 1, 1, 1, 30, 0, 0, loc)

	assert.Equal(t, "setrtc -date:12/31/2025\r", SetRTCDate(at))
	assert.Equal(t, "setrtc -time:22:30:00\r", SetRTCTime(at))
}
