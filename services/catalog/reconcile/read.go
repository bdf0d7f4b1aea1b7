package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"easypce-backend/lib/timezone"
	"easypce-backend/services/catalog/normalize"
)

func (s *Store) ListTerms(ctx context.Context) ([]normalize.Term, error) {
	rows, err := s.qry.ListTerms(ctx)
	if err != nil {
		return nil, err
	}
	terms := make([]normalize.Term, 0, len(rows))
	for _, row := range rows {
		start, err := timezone.ParseDate(row.StartDate)
		if err != nil {
			return nil, fmt.Errorf("term %d start: %w", row.Code, err)
		}
		end, err := timezone.ParseDate(row.EndDate)
		if err != nil {
			return nil, fmt.Errorf("term %d end: %w", row.Code, err)
		}
		terms = append(terms, normalize.Term{
			Code:      int(row.Code),
			Suffix:    row.Suffix,
			Name:      row.Name,
			StartDate: start,
			EndDate:   end,
		})
	}
	return terms, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]normalize.Subject, error) {
	rows, err := s.qry.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	subjects := make([]normalize.Subject, len(rows))
	for i, row := range rows {
		subjects[i] = normalize.Subject{Code: row.Code, Name: row.Name}
	}
	return subjects, nil
}

// RequireScope fails unless the term, and the subject when given, are in
// the store.
func (s *Store) RequireScope(ctx context.Context, termCode int, subject string) error {
	_, err := s.qry.GetTermByCode(ctx, int64(termCode))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrMissingTerm, termCode)
	}
	if err != nil {
		return err
	}
	if subject == "" {
		return nil
	}
	_, err = s.qry.GetSubjectByCode(ctx, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrMissingSubject, subject)
	}
	return err
}

type KeyState struct {
	Key            Key
	DetailsScraped bool
	EvalsScraped   bool
}

func (s *Store) ListOfferingKeys(ctx context.Context) ([]KeyState, error) {
	rows, err := s.qry.ListOfferingKeys(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]KeyState, len(rows))
	for i, row := range rows {
		states[i] = KeyState{
			Key:            Key{TermCode: int(row.TermCode), CourseId: row.CourseID},
			DetailsScraped: row.DetailsScraped,
			EvalsScraped:   row.EvalsScraped,
		}
	}
	return states, nil
}

// OfferingView is an offering with everything hanging off it, as the
// surrounding application reads it.
type OfferingView struct {
	Key            Key
	Title          string
	Description    string
	AdditionalInfo string
	Primary        normalize.CourseNumber
	CrossListings  []normalize.CourseNumber
	Instructors    []normalize.Instructor
	Sections       []normalize.Section
	// enrollment per class as the details page reports it, the feed's
	// figures are in Sections
	Registrar []normalize.ClassUpdate
	// nil means the registrar does not say
	Pdf            *bool
	PdfOnly        *bool
	Audit          *bool
	DistReq        string
	LastUpdated    time.Time
	DetailsScraped bool
	EvalsScraped   bool
	Evaluations    []normalize.Evaluation
	Advice         []string
}

func boolPtr(value sql.NullBool) *bool {
	if !value.Valid {
		return nil
	}
	b := value.Bool
	return &b
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	i := int(value.Int64)
	return &i
}

func (s *Store) GetOffering(ctx context.Context, key Key) (OfferingView, error) {
	ctx, span := tracer.Start(ctx, "GetOffering")
	defer span.End()

	offering, err := s.offeringByKey(ctx, s.qry, span, key)
	if err != nil {
		return OfferingView{}, err
	}
	view := OfferingView{
		Key:            key,
		Title:          offering.Title,
		Description:    offering.Description,
		AdditionalInfo: offering.AdditionalInfo,
		Pdf:            boolPtr(offering.Pdf),
		PdfOnly:        boolPtr(offering.PdfOnly),
		Audit:          boolPtr(offering.Audit),
		DistReq:        offering.DistReq,
		LastUpdated:    time.Unix(offering.LastUpdated, 0).In(timezone.Location),
		DetailsScraped: offering.DetailsScraped,
		EvalsScraped:   offering.EvalsScraped,
	}

	primary, err := s.qry.GetCourseNumberByID(ctx, offering.PrimaryNumberID)
	if err != nil {
		return OfferingView{}, recordError(span, err, "failed to get primary number")
	}
	view.Primary = normalize.CourseNumber{Subject: primary.SubjectCode, Number: primary.Number}

	crossListings, err := s.qry.ListCrossListings(ctx, offering.ID)
	if err != nil {
		return OfferingView{}, recordError(span, err, "failed to list cross-listings")
	}
	for _, row := range crossListings {
		view.CrossListings = append(view.CrossListings, normalize.CourseNumber{
			Subject: row.SubjectCode,
			Number:  row.Number,
		})
	}

	instructors, err := s.qry.ListOfferingInstructors(ctx, offering.ID)
	if err != nil {
		return OfferingView{}, recordError(span, err, "failed to list instructors")
	}
	for _, row := range instructors {
		view.Instructors = append(view.Instructors, normalize.Instructor{
			Emplid:    row.Emplid,
			FirstName: row.FirstName,
			LastName:  row.LastName,
		})
	}

	view.Sections, err = s.sectionsOf(ctx, offering.ID)
	if err != nil {
		return OfferingView{}, recordError(span, err, "failed to list sections")
	}

	classes, err := s.qry.ListRegistrarClasses(ctx, offering.ID)
	if err != nil {
		return OfferingView{}, recordError(span, err, "failed to list registrar classes")
	}
	for _, row := range classes {
		view.Registrar = append(view.Registrar, normalize.ClassUpdate{
			ClassId:    row.ClassID,
			Enrollment: intPtr(row.Enrollment),
			Capacity:   intPtr(row.Capacity),
			Status:     normalize.SectionStatus(row.Status.String),
		})
	}

	evaluations, err := s.qry.ListEvaluations(ctx, offering.ID)
	if err != nil {
		return OfferingView{}, recordError(span, err, "failed to list evaluations")
	}
	for _, row := range evaluations {
		view.Evaluations = append(view.Evaluations, normalize.Evaluation{Label: row.Label, Average: row.Average})
	}
	advice, err := s.qry.ListAdvice(ctx, offering.ID)
	if err != nil {
		return OfferingView{}, recordError(span, err, "failed to list advice")
	}
	for _, row := range advice {
		view.Advice = append(view.Advice, row.Text)
	}

	return view, nil
}

func (s *Store) sectionsOf(ctx context.Context, offeringId int64) ([]normalize.Section, error) {
	sections, err := s.qry.ListSections(ctx, offeringId)
	if err != nil {
		return nil, err
	}
	meetings, err := s.qry.ListMeetingsForOffering(ctx, offeringId)
	if err != nil {
		return nil, err
	}

	views := make([]normalize.Section, len(sections))
	index := make(map[int64]int, len(sections))
	for i, section := range sections {
		index[section.ID] = i
		views[i] = normalize.Section{
			ClassId:    section.ClassID,
			Name:       section.Name,
			Type:       normalize.SectionType(section.Type),
			Status:     normalize.SectionStatus(section.Status),
			Enrollment: int(section.Enrollment),
			Capacity:   int(section.Capacity),
		}
	}
	for _, meeting := range meetings {
		i, ok := index[meeting.SectionID]
		if !ok {
			continue
		}
		views[i].Meetings = append(views[i].Meetings, normalize.Meeting{
			Start:    meeting.StartTime,
			End:      meeting.EndTime,
			Days:     normalize.Days(meeting.Days),
			Location: meeting.Location,
		})
	}
	return views, nil
}

// ListOfferings returns every offering of a term ordered by course id.
func (s *Store) ListOfferings(ctx context.Context, termCode int) ([]OfferingView, error) {
	err := s.RequireScope(ctx, termCode, "")
	if err != nil {
		return nil, err
	}

	keys, err := s.ListOfferingKeys(ctx)
	if err != nil {
		return nil, err
	}
	var views []OfferingView
	for _, state := range keys {
		if state.Key.TermCode != termCode {
			continue
		}
		view, err := s.GetOffering(ctx, state.Key)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}
