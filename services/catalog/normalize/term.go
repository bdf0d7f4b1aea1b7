package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"easypce-backend/lib/scrapers/webfeeds"
	"easypce-backend/lib/timezone"
)

type Season string

const (
	Spring Season = "S"
	Summer Season = "SU"
	Fall   Season = "F"
)

func (s Season) Name() string {
	switch s {
	case Spring:
		return "Spring"
	case Summer:
		return "Summer"
	case Fall:
		return "Fall"
	}
	return ""
}

type Term struct {
	Code      int
	Suffix    string
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Season is derived from the suffix, it has no storage of its own.
func (t Term) Season() Season {
	season, _, _ := ParseSuffix(t.Suffix)
	return season
}

func (t Term) Year() int {
	_, year, _ := ParseSuffix(t.Suffix)
	return year
}

var suffixRegex = regexp.MustCompile(`^(S|SU|F)(\d{4})$`)
var termNameRegex = regexp.MustCompile(`^(?:Fall|Spring|Summer) \d{4}$`)

// ParseSuffix splits a term suffix like "F2016" into its season and year.
func ParseSuffix(suffix string) (Season, int, error) {
	groups := suffixRegex.FindStringSubmatch(suffix)
	if groups == nil {
		return "", 0, invalid("term suffix", suffix, "expected S, SU or F followed by a 4 digit year")
	}
	year, err := strconv.Atoi(groups[2])
	if err != nil {
		return "", 0, invalid("term suffix", suffix, err.Error())
	}
	if year < 2000 || year > 3000 {
		return "", 0, invalid("term suffix", suffix, "year out of range")
	}
	return Season(groups[1]), year, nil
}

func parseTermCode(code string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return 0, invalid("term code", code, "not an integer")
	}
	if value < 1000 || value > 10000 {
		return 0, invalid("term code", code, "out of range")
	}
	return value, nil
}

func parseDate(field, value string) (time.Time, error) {
	date, err := timezone.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalid(field, value, "expected YYYY-MM-DD")
	}
	return date, nil
}

func FromTerm(record webfeeds.TermRecord) (Term, error) {
	code, err := parseTermCode(record.Code.String())
	if err != nil {
		return Term{}, err
	}
	suffix := strings.TrimSpace(record.Suffix)
	_, _, err = ParseSuffix(suffix)
	if err != nil {
		return Term{}, err
	}
	name := strings.TrimSpace(record.CalName)
	if !termNameRegex.MatchString(name) {
		return Term{}, invalid("term name", record.CalName, "expected season and year")
	}
	start, err := parseDate("term start date", record.StartDate)
	if err != nil {
		return Term{}, err
	}
	end, err := parseDate("term end date", record.EndDate)
	if err != nil {
		return Term{}, err
	}
	if end.Before(start) {
		return Term{}, invalid("term end date", record.EndDate, "before start date")
	}

	return Term{
		Code:      code,
		Suffix:    suffix,
		Name:      name,
		StartDate: start,
		EndDate:   end,
	}, nil
}

type Subject struct {
	Code string
	Name string
}

var subjectCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

func parseSubjectCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if !subjectCodeRegex.MatchString(code) {
		return "", invalid("subject code", code, "expected 3 uppercase letters")
	}
	return code, nil
}

func FromSubject(record webfeeds.SubjectRecord) (Subject, error) {
	code, err := parseSubjectCode(record.Code)
	if err != nil {
		return Subject{}, err
	}
	name := strings.TrimSpace(record.Name)
	if name == "" {
		return Subject{}, invalid("subject name", record.Name, "missing")
	}
	return Subject{Code: code, Name: name}, nil
}
