package parser

import (
	"regexp"
	"strconv"
)

// "0x0010: 0x0000beef"
var fpgaRowRe = regexp.MustCompile(`(?m)^\s*0x([0-9A-Fa-f]+)\s*:\s*0x([0-9A-Fa-f]+)`)

// ParseFPGADump возвращает значения регистров по адресу.
func ParseFPGADump(raw string) map[uint32]uint32 {
	regs := map[uint32]uint32{}
	for _, m := range fpgaRowRe.FindAllStringSubmatch(normalize(raw), -1) {
		addr, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			continue
		}
		val, err := strconv.ParseUint(m[2], 16, 32)
		if err != nil {
			continue
		}
		regs[uint32(addr)] = uint32(val)
	}
	return regs
}
