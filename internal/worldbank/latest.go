package worldbank

import (
	"sort"
	"strconv"
)

// Latest returns the value of the most recent observation that has one.
// Observations whose date has no leading 4-digit year are skipped; among equal
// years the first in provider order wins. No usable observation yields nil.
func Latest(obs []Observation) *float64 {
	type dated struct {
		year  int
		value float64
	}
	valid := make([]dated, 0, len(obs))
	for _, o := range obs {
		if o.Value == nil {
			continue
		}
		year, ok := parseYear(o.Date)
		if !ok {
			continue
		}
		valid = append(valid, dated{year: year, value: *o.Value})
	}
	if len(valid) == 0 {
		return nil
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].year > valid[j].year })
	v := valid[0].value
	return &v
}

func parseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}
