package timezone

import (
	"time"

	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

// the registrar publishes every date and clock time in eastern time,
// pin to it so a scrape run from another zone stores the same values.
func Now() time.Time {
	return time.Now().In(Location)
}

const DateLayout = "2006-01-02"

// ParseDate parses a feed date of the form YYYY-MM-DD as midnight
// in the registrar's timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Location)
}

func FormatDate(t time.Time) string {
	return t.In(Location).Format(DateLayout)
}
