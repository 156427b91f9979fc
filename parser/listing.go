package parser

import (
	"sort"
	"strings"
)

// ParseListing возвращает имена файлов из вывода ls без "." и "..",
// в обратном лексикографическом порядке: имена содержат дату сборки,
// поэтому первым идет самый новый. Строки эха и приглашения пропускаются.
func ParseListing(raw string) []string {
	var names []string
	for _, line := range strings.Split(normalize(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "ls ") || strings.Contains(line, ">") || strings.HasPrefix(line, "%") {
			continue
		}
		for _, name := range strings.Fields(line) {
			if name == "." || name == ".." {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names
}
