package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"easypce-backend/lib/scrapers/webfeeds"
	"easypce-backend/lib/textutil"
)

type CourseNumber struct {
	Subject string
	Number  string
}

func (n CourseNumber) String() string {
	return fmt.Sprintf("%s %s", n.Subject, n.Number)
}

type Instructor struct {
	Emplid    string
	FirstName string
	LastName  string
}

type Meeting struct {
	// 24 hour "15:04"
	Start    string
	End      string
	Days     Days
	Location string
}

type Section struct {
	ClassId    string
	Name       string
	Type       SectionType
	Status     SectionStatus
	Enrollment int
	Capacity   int
	Meetings   []Meeting
}

// Offering is one course as listed in one term under one of its numbers.
type Offering struct {
	TermCode    int
	CourseId    string
	Title       string
	Description string
	// the number the course was listed under in this feed response
	Listing       CourseNumber
	CrossListings []CourseNumber
	Instructors   []Instructor
	Sections      []Section
	// sections, cross-listings and instructors left out for failing
	// validation
	Rejected []error
}

// Numbers returns the listing followed by every cross-listing.
func (o Offering) Numbers() []CourseNumber {
	return append([]CourseNumber{o.Listing}, o.CrossListings...)
}

var catalogNumberRegex = regexp.MustCompile(`^[0-9]{3}[A-Z]?$`)
var sectionNameRegex = regexp.MustCompile(`^[A-Z]\d\d[A-Z]?$`)
var classIdRegex = regexp.MustCompile(`^\d+$`)

func parseCourseNumber(subject, number string) (CourseNumber, error) {
	code, err := parseSubjectCode(subject)
	if err != nil {
		return CourseNumber{}, err
	}
	number = strings.ToUpper(strings.TrimSpace(number))
	if !catalogNumberRegex.MatchString(number) {
		return CourseNumber{}, invalid("catalog number", number, "expected 3 digits and an optional letter")
	}
	return CourseNumber{Subject: code, Number: number}, nil
}

func parseCount(field, value string) (int, error) {
	count, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid(field, value, "not an integer")
	}
	if count < 0 {
		return 0, invalid(field, value, "negative")
	}
	return count, nil
}

var clockLayouts = []string{"3:04 PM", "3:04PM", "3:04 pm", "3:04pm", "15:04", "15:04:05"}

const ClockLayout = "15:04"

func parseClock(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", invalid(field, value, "unrecognized time of day")
}

func fromMeeting(record webfeeds.MeetingRecord) (Meeting, bool, error) {
	if strings.TrimSpace(record.StartTime) == "" && strings.TrimSpace(record.EndTime) == "" {
		// to be announced
		return Meeting{}, false, nil
	}
	start, err := parseClock("meeting start", record.StartTime)
	if err != nil {
		return Meeting{}, false, err
	}
	end, err := parseClock("meeting end", record.EndTime)
	if err != nil {
		return Meeting{}, false, err
	}
	// both are zero padded so they compare lexically
	if end < start {
		return Meeting{}, false, invalid("meeting end", record.EndTime, "before start")
	}

	var days Days
	for _, token := range record.Days {
		day, ok := dayFromToken(token)
		if !ok {
			return Meeting{}, false, invalid("days", strings.Join(record.Days, " "), "unknown day")
		}
		days |= day
	}

	location := textutil.Collapse(record.Building.Name + " " + record.Room)
	return Meeting{
		Start:    start,
		End:      end,
		Days:     days,
		Location: location,
	}, true, nil
}

func fromClass(record webfeeds.ClassRecord) (Section, error) {
	classId := strings.TrimSpace(record.ClassNumber.String())
	if !classIdRegex.MatchString(classId) {
		return Section{}, invalid("class id", classId, "expected digits")
	}
	name := strings.TrimSpace(record.Section)
	if !sectionNameRegex.MatchString(name) {
		return Section{}, invalid("section name", name, "expected a letter, 2 digits and an optional letter")
	}
	sectionType, err := ParseSectionType(record.TypeName)
	if err != nil {
		return Section{}, err
	}
	status, err := ParseSectionStatus(record.Status)
	if err != nil {
		return Section{}, err
	}
	enrollment, err := parseCount("enrollment", record.Enrollment.String())
	if err != nil {
		return Section{}, err
	}
	capacity, err := parseCount("capacity", record.Capacity.String())
	if err != nil {
		return Section{}, err
	}

	section := Section{
		ClassId:    classId,
		Name:       name,
		Type:       sectionType,
		Status:     status,
		Enrollment: enrollment,
		Capacity:   capacity,
	}
	for _, m := range record.Schedule.Meetings {
		meeting, ok, err := fromMeeting(m)
		if err != nil {
			return Section{}, fmt.Errorf("section %s: %w", name, err)
		}
		if ok {
			section.Meetings = append(section.Meetings, meeting)
		}
	}
	return section, nil
}

// splitName splits a display name on its last space, everything before
// it is the first name.
func splitName(full string) (string, string) {
	full = textutil.Collapse(full)
	idx := strings.LastIndex(full, " ")
	if idx < 0 {
		return "", full
	}
	return full[:idx], full[idx+1:]
}

func fromInstructor(record webfeeds.InstructorRecord) (Instructor, error) {
	emplid := strings.TrimSpace(record.Emplid)
	if !classIdRegex.MatchString(emplid) {
		return Instructor{}, invalid("instructor emplid", emplid, "expected digits")
	}
	first := textutil.Collapse(record.FirstName)
	last := textutil.Collapse(record.LastName)
	if first == "" && last == "" {
		first, last = splitName(record.FullName)
	}
	if last == "" {
		return Instructor{}, invalid("instructor name", record.FullName, "missing")
	}
	return Instructor{Emplid: emplid, FirstName: first, LastName: last}, nil
}

// FromCourse validates a feed course. The offering as a whole is rejected
// only when its own identity is unusable, a bad section, cross-listing or
// instructor is left out and recorded in Rejected instead.
func FromCourse(record webfeeds.CourseRecord) (Offering, error) {
	termCode, err := parseTermCode(record.TermCode)
	if err != nil {
		return Offering{}, err
	}
	courseId := strings.TrimSpace(record.CourseId)
	if courseId == "" {
		return Offering{}, invalid("course id", record.CourseId, "missing")
	}
	listing, err := parseCourseNumber(record.SubjectCode, record.CatalogNumber)
	if err != nil {
		return Offering{}, err
	}
	title := textutil.Collapse(record.Title)
	if title == "" {
		return Offering{}, invalid("title", record.Title, "missing")
	}

	offering := Offering{
		TermCode:    termCode,
		CourseId:    courseId,
		Title:       title,
		Description: strings.TrimSpace(record.Detail.Description),
		Listing:     listing,
	}

	seen := map[CourseNumber]struct{}{listing: {}}
	for _, cl := range record.Crosslistings {
		number, err := parseCourseNumber(cl.Subject, cl.CatalogNumber)
		if err != nil {
			offering.Rejected = append(offering.Rejected, fmt.Errorf("cross-listing: %w", err))
			continue
		}
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		offering.CrossListings = append(offering.CrossListings, number)
	}

	seenInstructors := map[string]struct{}{}
	for _, i := range record.Instructors {
		instructor, err := fromInstructor(i)
		if err != nil {
			offering.Rejected = append(offering.Rejected, err)
			continue
		}
		if _, ok := seenInstructors[instructor.Emplid]; ok {
			continue
		}
		seenInstructors[instructor.Emplid] = struct{}{}
		offering.Instructors = append(offering.Instructors, instructor)
	}

	seenClasses := map[string]struct{}{}
	for _, c := range record.Classes {
		section, err := fromClass(c)
		if err != nil {
			offering.Rejected = append(offering.Rejected, err)
			continue
		}
		if _, ok := seenClasses[section.ClassId]; ok {
			offering.Rejected = append(offering.Rejected, invalid("class id", section.ClassId, "duplicate"))
			continue
		}
		seenClasses[section.ClassId] = struct{}{}
		offering.Sections = append(offering.Sections, section)
	}

	return offering, nil
}
