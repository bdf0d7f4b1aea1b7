package normalize

import (
	"strings"

	"easypce-backend/lib/scrapers/evals"
	"easypce-backend/lib/scrapers/registrar"
	"easypce-backend/lib/scrapers/webfeeds"
	"easypce-backend/lib/textutil"
)

var distReqs = map[string]struct{}{
	"EC": {}, "EM": {}, "HA": {}, "LA": {},
	"QR": {}, "SA": {}, "STL": {}, "STN": {},
}

func ParseDistReq(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	if _, ok := distReqs[code]; !ok {
		return "", invalid("distribution requirement", code, "unknown code")
	}
	return code, nil
}

// ClassUpdate is what a details page says about one existing section,
// figures the page leaves out are nil.
type ClassUpdate struct {
	ClassId    string
	Enrollment *int
	Capacity   *int
	Status     SectionStatus
}

type Details struct {
	// false when the registrar has no page for the course
	Found          bool
	AdditionalInfo string
	Audit          *bool
	Pdf            *bool
	PdfOnly        *bool
	DistReq        string
	// empty when the page lists nobody, the existing set is kept then
	Instructors []Instructor
	Classes     []ClassUpdate
}

func known(value int) *int {
	if value == registrar.Unknown {
		return nil
	}
	return &value
}

// FromDetails never rejects a page, only the values in it that fail
// validation. Those are dropped and returned alongside.
func FromDetails(record registrar.DetailRecord) (Details, []error) {
	details := Details{
		Found:          record.Found,
		AdditionalInfo: record.AdditionalInfo,
		Audit:          record.Audit,
		Pdf:            record.Pdf,
		PdfOnly:        record.PdfOnly,
	}
	var rejected []error

	distReq, err := ParseDistReq(record.DistReq)
	if err != nil {
		rejected = append(rejected, err)
	}
	details.DistReq = distReq

	for _, ref := range record.Instructors {
		first, last := splitName(ref.Name)
		instructor, err := fromInstructor(webfeeds.InstructorRecord{
			Emplid:    ref.Emplid,
			FirstName: first,
			LastName:  last,
		})
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		details.Instructors = append(details.Instructors, instructor)
	}

	seenClasses := map[string]struct{}{}
	for _, row := range record.Classes {
		if !classIdRegex.MatchString(row.ClassId) {
			rejected = append(rejected, invalid("class id", row.ClassId, "expected digits"))
			continue
		}
		if _, ok := seenClasses[row.ClassId]; ok {
			rejected = append(rejected, invalid("class id", row.ClassId, "duplicate"))
			continue
		}
		seenClasses[row.ClassId] = struct{}{}
		update := ClassUpdate{
			ClassId:    row.ClassId,
			Enrollment: known(row.Enrollment.Count),
			Capacity:   known(row.Enrollment.Max),
		}
		if row.Status != "" {
			status, err := ParseSectionStatus(row.Status)
			if err != nil {
				rejected = append(rejected, err)
			} else {
				update.Status = status
			}
		}
		details.Classes = append(details.Classes, update)
	}

	return details, rejected
}

type Evaluation struct {
	Label   string
	Average float64
}

type EvalSet struct {
	Evaluations []Evaluation
	Advice      []string
}

// FromEvaluations validates chart statistics and comments. A label seen
// twice keeps its first position and its last value.
func FromEvaluations(stats evals.Stats, comments []string) (EvalSet, []error) {
	var set EvalSet
	var rejected []error

	index := map[string]int{}
	for _, stat := range stats {
		label := textutil.Collapse(stat.Label)
		if label == "" {
			rejected = append(rejected, invalid("evaluation label", stat.Label, "missing"))
			continue
		}
		// written so NaN fails too
		if !(stat.Value >= 0 && stat.Value <= 5) {
			rejected = append(rejected, invalid("evaluation average", label, "outside 0 to 5"))
			continue
		}
		if i, ok := index[label]; ok {
			set.Evaluations[i].Average = stat.Value
			continue
		}
		index[label] = len(set.Evaluations)
		set.Evaluations = append(set.Evaluations, Evaluation{Label: label, Average: stat.Value})
	}

	for _, comment := range comments {
		text := textutil.Collapse(comment)
		if text == "" {
			continue
		}
		set.Advice = append(set.Advice, text)
	}

	return set, rejected
}
