package reconcile

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"easypce-backend/services/catalog/db"
	"easypce-backend/services/catalog/normalize"

	"go.opentelemetry.io/otel/attribute"
)

type OfferingResult struct {
	Key     Key
	Created bool
	// false when the offering already held exactly what was imported
	Changed bool
	// the follow-up scrapes that already completed for the offering
	DetailsScraped bool
	EvalsScraped   bool
	// cross-listings that were skipped, their subject is not in the store
	Notes []string
}

type sectionRow struct {
	ClassId    string
	Name       string
	Type       string
	Status     string
	Enrollment int64
	Capacity   int64
}

type meetingRow struct {
	ClassId  string
	Start    string
	End      string
	Days     int64
	Location string
}

func compareSections(a, b sectionRow) int {
	return cmp.Compare(a.ClassId, b.ClassId)
}

func compareMeetings(a, b meetingRow) int {
	return cmp.Or(
		cmp.Compare(a.ClassId, b.ClassId),
		cmp.Compare(a.Start, b.Start),
		cmp.Compare(a.Days, b.Days),
		cmp.Compare(a.End, b.End),
		cmp.Compare(a.Location, b.Location),
	)
}

func scheduleFromSections(sections []normalize.Section) ([]sectionRow, []meetingRow) {
	var srows []sectionRow
	var mrows []meetingRow
	for _, section := range sections {
		srows = append(srows, sectionRow{
			ClassId:    section.ClassId,
			Name:       section.Name,
			Type:       string(section.Type),
			Status:     string(section.Status),
			Enrollment: int64(section.Enrollment),
			Capacity:   int64(section.Capacity),
		})
		for _, meeting := range section.Meetings {
			mrows = append(mrows, meetingRow{
				ClassId:  section.ClassId,
				Start:    meeting.Start,
				End:      meeting.End,
				Days:     int64(meeting.Days),
				Location: meeting.Location,
			})
		}
	}
	slices.SortFunc(srows, compareSections)
	slices.SortFunc(mrows, compareMeetings)
	return srows, mrows
}

func storedSchedule(ctx context.Context, qry *db.Queries, offeringId int64) ([]sectionRow, []meetingRow, error) {
	sections, err := qry.ListSections(ctx, offeringId)
	if err != nil {
		return nil, nil, err
	}
	meetings, err := qry.ListMeetingsForOffering(ctx, offeringId)
	if err != nil {
		return nil, nil, err
	}

	classIds := map[int64]string{}
	var srows []sectionRow
	for _, section := range sections {
		classIds[section.ID] = section.ClassID
		srows = append(srows, sectionRow{
			ClassId:    section.ClassID,
			Name:       section.Name,
			Type:       section.Type,
			Status:     section.Status,
			Enrollment: section.Enrollment,
			Capacity:   section.Capacity,
		})
	}
	var mrows []meetingRow
	for _, meeting := range meetings {
		mrows = append(mrows, meetingRow{
			ClassId:  classIds[meeting.SectionID],
			Start:    meeting.StartTime,
			End:      meeting.EndTime,
			Days:     meeting.Days,
			Location: meeting.Location,
		})
	}
	slices.SortFunc(srows, compareSections)
	slices.SortFunc(mrows, compareMeetings)
	return srows, mrows, nil
}

func replaceSchedule(ctx context.Context, qry *db.Queries, offeringId int64, sections []normalize.Section) error {
	err := qry.DeleteMeetingsForOffering(ctx, offeringId)
	if err != nil {
		return err
	}
	err = qry.DeleteSections(ctx, offeringId)
	if err != nil {
		return err
	}
	for _, section := range sections {
		sectionId, err := qry.CreateSection(ctx, db.CreateSectionParams{
			OfferingID: offeringId,
			ClassID:    section.ClassId,
			Name:       section.Name,
			Type:       string(section.Type),
			Status:     string(section.Status),
			Enrollment: int64(section.Enrollment),
			Capacity:   int64(section.Capacity),
		})
		if err != nil {
			return fmt.Errorf("section %s: %w", section.ClassId, err)
		}
		for _, meeting := range section.Meetings {
			err = qry.CreateMeeting(ctx, db.CreateMeetingParams{
				SectionID: sectionId,
				StartTime: meeting.Start,
				EndTime:   meeting.End,
				Days:      int64(meeting.Days),
				Location:  meeting.Location,
			})
			if err != nil {
				return fmt.Errorf("meeting of %s: %w", section.ClassId, err)
			}
		}
	}
	return nil
}

func sortedIds(ids []int64) []int64 {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	return slices.Compact(ids)
}

func storedCrossListings(ctx context.Context, qry *db.Queries, offeringId int64) ([]int64, error) {
	rows, err := qry.ListCrossListings(ctx, offeringId)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.CourseNumberID
	}
	return sortedIds(ids), nil
}

// instructor rows are tagged with the source that listed them
const (
	sourceFeed      = "feed"
	sourceRegistrar = "registrar"
)

// replaceInstructors swaps the instructors one source listed for ids when
// the two differ and reports whether it did. Rows of the other source are
// left alone.
func replaceInstructors(ctx context.Context, qry *db.Queries, offeringId int64, source string, ids []int64) (bool, error) {
	existing, err := qry.ListSourceInstructorIds(ctx, db.ListSourceInstructorIdsParams{
		OfferingID: offeringId,
		Source:     source,
	})
	if err != nil {
		return false, err
	}
	if slices.Equal(sortedIds(existing), ids) {
		return false, nil
	}
	err = qry.DeleteSourceInstructors(ctx, db.DeleteSourceInstructorsParams{
		OfferingID: offeringId,
		Source:     source,
	})
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		err = qry.CreateOfferingInstructor(ctx, db.CreateOfferingInstructorParams{
			OfferingID:   offeringId,
			InstructorID: id,
			Source:       source,
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func upsertInstructors(ctx context.Context, qry *db.Queries, instructors []normalize.Instructor) ([]int64, error) {
	ids := make([]int64, 0, len(instructors))
	for _, instructor := range instructors {
		row, _, err := upsertInstructor(ctx, qry, instructor)
		if err != nil {
			return nil, fmt.Errorf("instructor %s: %w", instructor.Emplid, err)
		}
		ids = append(ids, row.ID)
	}
	return sortedIds(ids), nil
}

// claimNumber points a course number's back-reference at the offering
// unless it already names an offering in a later term.
func claimNumber(ctx context.Context, qry *db.Queries, numberId, offeringId int64, termCode int) error {
	number, err := qry.GetCourseNumberByID(ctx, numberId)
	if err != nil {
		return err
	}
	if number.OfferingID.Valid {
		if number.OfferingID.Int64 == offeringId {
			return nil
		}
		current, err := qry.GetOfferingTermCode(ctx, number.OfferingID.Int64)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil && current > int64(termCode) {
			return nil
		}
	}
	return qry.SetCourseNumberOffering(ctx, db.SetCourseNumberOfferingParams{
		OfferingID: sql.NullInt64{Int64: offeringId, Valid: true},
		ID:         numberId,
	})
}

// releaseNumber clears a former primary number's back-reference when it
// still names the offering.
func releaseNumber(ctx context.Context, qry *db.Queries, numberId, offeringId int64) error {
	number, err := qry.GetCourseNumberByID(ctx, numberId)
	if err != nil {
		return err
	}
	if !number.OfferingID.Valid || number.OfferingID.Int64 != offeringId {
		return nil
	}
	return qry.SetCourseNumberOffering(ctx, db.SetCourseNumberOfferingParams{
		ID: numberId,
	})
}

// ImportOffering merges one offering from the course feed into the store in
// a single transaction. Scalar listing fields are overwritten, cross
// listings, feed instructors and the section schedule are replaced
// wholesale, and nothing is written when the stored offering already
// matches. What the details page wrote is never touched.
func (s *Store) ImportOffering(ctx context.Context, offering normalize.Offering) (OfferingResult, error) {
	ctx, span := tracer.Start(ctx, "ImportOffering")
	defer span.End()

	key := Key{TermCode: offering.TermCode, CourseId: offering.CourseId}
	span.SetAttributes(attribute.String("key", key.String()))
	result := OfferingResult{Key: key}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, recordError(span, err, "failed to begin transaction")
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	term, err := txqry.GetTermByCode(ctx, int64(offering.TermCode))
	if errors.Is(err, sql.ErrNoRows) {
		return result, recordError(span, fmt.Errorf("%w: %d", ErrMissingTerm, offering.TermCode), "missing term")
	}
	if err != nil {
		return result, recordError(span, err, "failed to get term")
	}

	listingSubject, err := txqry.GetSubjectByCode(ctx, offering.Listing.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return result, recordError(span, fmt.Errorf("%w: %s", ErrMissingSubject, offering.Listing.Subject), "missing subject")
	}
	if err != nil {
		return result, recordError(span, err, "failed to get subject")
	}

	course, _, err := upsertCourse(ctx, txqry, offering.CourseId)
	if err != nil {
		return result, recordError(span, err, "failed to upsert course")
	}

	listing, _, err := upsertCourseNumber(ctx, txqry, listingSubject.ID, offering.Listing.Number)
	if err != nil {
		return result, recordError(span, err, "failed to upsert listing number")
	}
	numberIds := []int64{listing.ID}
	for _, number := range offering.CrossListings {
		subject, err := txqry.GetSubjectByCode(ctx, number.Subject)
		if errors.Is(err, sql.ErrNoRows) {
			note := fmt.Sprintf("skipped cross-listing %s: subject is not in the store", number)
			slog.WarnContext(ctx, "skipped cross-listing", "key", key.String(), "number", number.String())
			result.Notes = append(result.Notes, note)
			continue
		}
		if err != nil {
			return result, recordError(span, err, "failed to get cross-listed subject")
		}
		row, _, err := upsertCourseNumber(ctx, txqry, subject.ID, number.Number)
		if err != nil {
			return result, recordError(span, err, "failed to upsert cross-listed number")
		}
		numberIds = append(numberIds, row.ID)
	}
	numberIds = sortedIds(numberIds)

	instructorIds, err := upsertInstructors(ctx, txqry, offering.Instructors)
	if err != nil {
		return result, recordError(span, err, "failed to upsert instructors")
	}

	now := s.now()
	existing, err := txqry.GetOffering(ctx, db.GetOfferingParams{CourseID: course.ID, TermID: term.ID})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return result, recordError(span, err, "failed to get offering")
	}
	if errors.Is(err, sql.ErrNoRows) {
		existing, err = txqry.CreateOffering(ctx, db.CreateOfferingParams{
			CourseID:        course.ID,
			TermID:          term.ID,
			Title:           offering.Title,
			PrimaryNumberID: listing.ID,
			Description:     offering.Description,
			LastUpdated:     now,
		})
		if err != nil {
			return result, recordError(span, err, "failed to create offering")
		}
		result.Created = true
		result.Changed = true
	}

	// the primary number only moves when the feed stops listing it
	primary := listing.ID
	if slices.Contains(numberIds, existing.PrimaryNumberID) {
		primary = existing.PrimaryNumberID
	}
	if primary != existing.PrimaryNumberID {
		err = releaseNumber(ctx, txqry, existing.PrimaryNumberID, existing.ID)
		if err != nil {
			return result, recordError(span, err, "failed to release primary number")
		}
	}
	err = claimNumber(ctx, txqry, primary, existing.ID, offering.TermCode)
	if err != nil {
		return result, recordError(span, err, "failed to claim primary number")
	}

	listingChanged := existing.Title != offering.Title ||
		existing.Description != offering.Description ||
		existing.PrimaryNumberID != primary

	crossIds := slices.DeleteFunc(slices.Clone(numberIds), func(id int64) bool {
		return id == primary
	})
	storedCross, err := storedCrossListings(ctx, txqry, existing.ID)
	if err != nil {
		return result, recordError(span, err, "failed to list cross-listings")
	}
	if !slices.Equal(storedCross, crossIds) {
		err = txqry.DeleteCrossListings(ctx, existing.ID)
		if err != nil {
			return result, recordError(span, err, "failed to delete cross-listings")
		}
		for _, id := range crossIds {
			err = txqry.CreateCrossListing(ctx, db.CreateCrossListingParams{
				OfferingID:     existing.ID,
				CourseNumberID: id,
			})
			if err != nil {
				return result, recordError(span, err, "failed to create cross-listing")
			}
		}
		result.Changed = true
	}

	replaced, err := replaceInstructors(ctx, txqry, existing.ID, sourceFeed, instructorIds)
	if err != nil {
		return result, recordError(span, err, "failed to replace instructors")
	}
	result.Changed = result.Changed || replaced

	wantSections, wantMeetings := scheduleFromSections(offering.Sections)
	haveSections, haveMeetings, err := storedSchedule(ctx, txqry, existing.ID)
	if err != nil {
		return result, recordError(span, err, "failed to read schedule")
	}
	if !slices.Equal(wantSections, haveSections) || !slices.Equal(wantMeetings, haveMeetings) {
		err = replaceSchedule(ctx, txqry, existing.ID, offering.Sections)
		if err != nil {
			return result, recordError(span, err, "failed to replace schedule")
		}
		result.Changed = true
	}

	if listingChanged || (result.Changed && !result.Created) {
		err = txqry.UpdateOfferingListing(ctx, db.UpdateOfferingListingParams{
			Title:           offering.Title,
			PrimaryNumberID: primary,
			Description:     offering.Description,
			LastUpdated:     now,
			ID:              existing.ID,
		})
		if err != nil {
			return result, recordError(span, err, "failed to update offering")
		}
		result.Changed = true
	}

	err = tx.Commit()
	if err != nil {
		return result, recordError(span, err, "failed to commit")
	}

	result.DetailsScraped = existing.DetailsScraped
	result.EvalsScraped = existing.EvalsScraped
	span.SetAttributes(
		attribute.Bool("created", result.Created),
		attribute.Bool("changed", result.Changed),
	)
	return result, nil
}
