package normalize

import (
	"regexp"
	"strings"
)

// Days is the set of weekdays a meeting happens on.
type Days uint8

const (
	Monday Days = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
)

var dayTokens = []struct {
	day   Days
	token string
}{
	{Monday, "M"},
	{Tuesday, "T"},
	{Wednesday, "W"},
	{Thursday, "Th"},
	{Friday, "F"},
}

var daysRegex = regexp.MustCompile(`^(M?)(T?)(W?)((?:Th)?)(F?)$`)

// ParseDays reads the upstream day string, e.g. "MWF" or "T Th". Tokens
// must come in weekday order, spaces and commas between them are ignored.
func ParseDays(s string) (Days, error) {
	compact := strings.NewReplacer(" ", "", ",", "", "\t", "").Replace(s)
	groups := daysRegex.FindStringSubmatch(compact)
	if groups == nil {
		return 0, invalid("days", s, "expected a subsequence of M T W Th F")
	}
	var days Days
	for i, t := range dayTokens {
		if groups[i+1] != "" {
			days |= t.day
		}
	}
	return days, nil
}

// dayFromToken accepts the single day tokens of the feed, which is not
// consistent about the case of "Th".
func dayFromToken(token string) (Days, bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "M":
		return Monday, true
	case "T":
		return Tuesday, true
	case "W":
		return Wednesday, true
	case "TH", "R":
		return Thursday, true
	case "F":
		return Friday, true
	}
	return 0, false
}

func (d Days) Has(day Days) bool {
	return d&day != 0
}

// String renders the set in the canonical "MTWThF" form.
func (d Days) String() string {
	var out strings.Builder
	for _, t := range dayTokens {
		if d.Has(t.day) {
			out.WriteString(t.token)
		}
	}
	return out.String()
}
