package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativeDays maps the phrases users actually type to day offsets from
// the reference date.
var relativeDays = map[string]int{
	"today":                0,
	"yesterday":            -1,
	"day before yesterday": -2,
	"tomorrow":             1,
	"day after tomorrow":   2,
}

var daysAgoRe = regexp.MustCompile(`(\d+)\s*days?\s*(back|ago)`)

// ResolveRelativeDate maps a natural-language relative date phrase to a
// YYYY-MM-DD string relative to ref. Unrecognized input is returned
// unchanged; the caller treats it as already in final form. The function
// never fails.
func ResolveRelativeDate(raw string, ref time.Time) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	if offset, ok := relativeDays[s]; ok {
		return ref.AddDate(0, 0, offset).Format(DateLayout)
	}

	if m := daysAgoRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return ref.AddDate(0, 0, -n).Format(DateLayout)
		}
	}

	return raw
}
