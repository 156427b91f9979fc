package parser

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/iwtcode/diagAdapter/models"
	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
)

var (
	ecidHeaderRe  = regexp.MustCompile(`(?m)^\s*ASIC\s+(\d+)\s+Core\s+(\d+)\s*:`)
	ecidTypeRe    = regexp.MustCompile(`Type\s*=\s*(\S+)`)
	ecidVersionRe = regexp.MustCompile(`Version\s*=\s*(\S+)`)
	ecidDieRe     = regexp.MustCompile(`Die ID\s*=\s*(\S+)`)
	ecidFreqRe    = regexp.MustCompile(`Core frequency\s*=\s*(\d+)`)
)

// ParseECIDs разбирает вывод AsicEcid. Блок без Type, Version или Die ID пропускается.
func ParseECIDs(raw string) []models.ECIDRecord {
	text := normalize(raw)
	headers := ecidHeaderRe.FindAllStringSubmatchIndex(text, -1)

	var records []models.ECIDRecord
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		block := text[h[1]:end]

		typ := ecidTypeRe.FindStringSubmatch(block)
		ver := ecidVersionRe.FindStringSubmatch(block)
		die := ecidDieRe.FindStringSubmatch(block)
		if typ == nil || ver == nil || die == nil {
			continue
		}

		rec := models.ECIDRecord{
			ASIC:    atoi(text[h[2]:h[3]]),
			Core:    atoi(text[h[4]:h[5]]),
			Type:    typ[1],
			Version: ver[1],
			DieID:   die[1],
		}
		if f := ecidFreqRe.FindStringSubmatch(block); f != nil {
			rec.CoreFreqMHz = atoi(f[1])
		}
		records = append(records, rec)
	}
	return records
}

// DedupeECIDs оставляет одну запись на кристалл: ядра одного ASIC
// отдают одинаковый Die ID.
func DedupeECIDs(records []models.ECIDRecord) []models.ECIDRecord {
	type key struct {
		asic int
		die  string
	}
	seen := make(map[key]bool, len(records))
	out := make([]models.ECIDRecord, 0, len(records))
	for _, r := range records {
		k := key{r.ASIC, r.DieID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// AlignECIDs проверяет, что после дедупликации число ASIC совпадает
// с ожидаемым числом устройств. Несовпадение необратимо.
func AlignECIDs(records []models.ECIDRecord, devices int) ([]models.ECIDRecord, error) {
	unique := DedupeECIDs(records)

	asics := map[int]int{}
	for _, r := range unique {
		asics[r.ASIC]++
	}
	if len(asics) != devices || len(unique) != devices {
		return nil, diagerr.Catastrophic("ecid",
			fmt.Sprintf("ASIC alignment mismatch: %d ECID records for %d ASICs, expected %d devices",
				len(unique), len(asics), devices))
	}

	sort.Slice(unique, func(i, j int) bool { return unique[i].ASIC < unique[j].ASIC })
	return unique, nil
}
