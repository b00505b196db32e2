package rateplan

import (
	"fmt"
	"strconv"
	"strings"
)

// AgeBand is an inclusive age range as filed in a rate table.
// A single-age band has Lo == Hi.
type AgeBand struct {
	Label string
	Lo    int
	Hi    int
}

// Contains reports whether age falls inside the band
func (b AgeBand) Contains(age int) bool {
	return age >= b.Lo && age <= b.Hi
}

// ParseAgeBand parses "50" or "45-49"
func ParseAgeBand(label string) (AgeBand, error) {
	label = strings.TrimSpace(label)
	lo, hi, isRange := strings.Cut(label, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return AgeBand{}, fmt.Errorf("invalid age band %q", label)
	}
	to := from
	if isRange {
		to, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return AgeBand{}, fmt.Errorf("invalid age band %q", label)
		}
	}
	if from < 0 || to < from {
		return AgeBand{}, fmt.Errorf("invalid age band %q", label)
	}
	return AgeBand{Label: label, Lo: from, Hi: to}, nil
}
