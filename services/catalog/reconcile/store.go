package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"easypce-backend/lib/telemetry"
	"easypce-backend/lib/timezone"
	"easypce-backend/services/catalog/db"
	"easypce-backend/services/catalog/normalize"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("easypce.services.catalog.reconcile")

// precondition failures, they mean a unit ran before the one that was
// supposed to create its parents.
var (
	ErrMissingTerm     = errors.New("term is not in the store")
	ErrMissingSubject  = errors.New("subject is not in the store")
	ErrMissingOffering = errors.New("offering is not in the store")
)

// ErrTermConflict rejects a new term that reuses the suffix, name or
// dates of another term.
var ErrTermConflict = errors.New("term collides with a stored term")

type Options struct {
	// when true a details page without enrollment flags or a distribution
	// requirement clears the stored ones, otherwise they are preserved.
	ClearMissingEnrollParams bool
	// defaults to timezone.Now
	Now func() time.Time
}

// Key is the natural key of an offering, every stage of the pipeline joins
// on it.
type Key struct {
	TermCode int
	CourseId string
}

func (k Key) String() string {
	return strconv.Itoa(k.TermCode) + "/" + k.CourseId
}

type Store struct {
	db   *sql.DB
	qry  *db.Queries
	opts Options
}

func NewStore(database *sql.DB, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = timezone.Now
	}
	return &Store{
		db:   database,
		qry:  db.New(database),
		opts: opts,
	}
}

func (s *Store) now() int64 {
	return s.opts.Now().Unix()
}

func recordError(span trace.Span, err error, message string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return err
}

// upsert looks a row up by its natural key and only creates it, from the
// defaults captured by create, when it is absent. An existing row is
// returned untouched.
func upsert[K any, V any](
	ctx context.Context,
	key K,
	find func(context.Context, K) (V, error),
	create func(context.Context) (V, error),
) (V, bool, error) {
	existing, err := find(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		var zero V
		return zero, false, err
	}
	created, err := create(ctx)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return created, true, nil
}

func upsertTerm(ctx context.Context, qry *db.Queries, term normalize.Term) (db.Term, bool, error) {
	return upsert(ctx, int64(term.Code), qry.GetTermByCode, func(ctx context.Context) (db.Term, error) {
		return qry.CreateTerm(ctx, db.CreateTermParams{
			Code:      int64(term.Code),
			Suffix:    term.Suffix,
			Name:      term.Name,
			StartDate: timezone.FormatDate(term.StartDate),
			EndDate:   timezone.FormatDate(term.EndDate),
		})
	})
}

func upsertSubject(ctx context.Context, qry *db.Queries, subject normalize.Subject) (db.Subject, bool, error) {
	return upsert(ctx, subject.Code, qry.GetSubjectByCode, func(ctx context.Context) (db.Subject, error) {
		return qry.CreateSubject(ctx, db.CreateSubjectParams{
			Code: subject.Code,
			Name: subject.Name,
		})
	})
}

func upsertCourse(ctx context.Context, qry *db.Queries, courseId string) (db.Course, bool, error) {
	return upsert(ctx, courseId, qry.GetCourseByCourseId, func(ctx context.Context) (db.Course, error) {
		return qry.CreateCourse(ctx, courseId)
	})
}

func upsertInstructor(ctx context.Context, qry *db.Queries, instructor normalize.Instructor) (db.Instructor, bool, error) {
	return upsert(ctx, instructor.Emplid, qry.GetInstructorByEmplid, func(ctx context.Context) (db.Instructor, error) {
		return qry.CreateInstructor(ctx, db.CreateInstructorParams{
			Emplid:    instructor.Emplid,
			FirstName: instructor.FirstName,
			LastName:  instructor.LastName,
		})
	})
}

func upsertCourseNumber(ctx context.Context, qry *db.Queries, subjectId int64, number string) (db.CourseNumber, bool, error) {
	key := db.GetCourseNumberParams{SubjectID: subjectId, Number: number}
	return upsert(ctx, key, qry.GetCourseNumber, func(ctx context.Context) (db.CourseNumber, error) {
		return qry.CreateCourseNumber(ctx, db.CreateCourseNumberParams{
			SubjectID: subjectId,
			Number:    number,
		})
	})
}

func (s *Store) UpsertTerm(ctx context.Context, term normalize.Term) (db.Term, bool, error) {
	return upsertTerm(ctx, s.qry, term)
}

func (s *Store) UpsertSubject(ctx context.Context, subject normalize.Subject) (db.Subject, bool, error) {
	return upsertSubject(ctx, s.qry, subject)
}

func (s *Store) UpsertCourse(ctx context.Context, courseId string) (db.Course, bool, error) {
	return upsertCourse(ctx, s.qry, courseId)
}

func (s *Store) UpsertInstructor(ctx context.Context, instructor normalize.Instructor) (db.Instructor, bool, error) {
	return upsertInstructor(ctx, s.qry, instructor)
}

// UpsertCourseNumber requires the subject to exist already.
func (s *Store) UpsertCourseNumber(ctx context.Context, number normalize.CourseNumber) (db.CourseNumber, bool, error) {
	subject, err := s.qry.GetSubjectByCode(ctx, number.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return db.CourseNumber{}, false, fmt.Errorf("%w: %s", ErrMissingSubject, number.Subject)
	}
	if err != nil {
		return db.CourseNumber{}, false, err
	}
	return upsertCourseNumber(ctx, s.qry, subject.ID, number.Number)
}

type MetaResult struct {
	TermsCreated    int
	SubjectsCreated int
	// terms left out, each wraps ErrTermConflict
	Rejected []error
}

// conflictingTerm reports the stored term a new term would collide with
// on a unique column.
func conflictingTerm(ctx context.Context, qry *db.Queries, term normalize.Term) error {
	other, err := qry.GetConflictingTerm(ctx, db.GetConflictingTermParams{
		Code:      int64(term.Code),
		Suffix:    term.Suffix,
		Name:      term.Name,
		StartDate: timezone.FormatDate(term.StartDate),
		EndDate:   timezone.FormatDate(term.EndDate),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: term %d and term %d (%s)", ErrTermConflict, term.Code, other.Code, other.Suffix)
}

// ImportMeta gets or creates every term and subject in one transaction.
// A new term that collides with a stored one is rejected on its own.
func (s *Store) ImportMeta(ctx context.Context, terms []normalize.Term, subjects []normalize.Subject) (MetaResult, error) {
	ctx, span := tracer.Start(ctx, "ImportMeta")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MetaResult{}, recordError(span, err, "failed to begin transaction")
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	var result MetaResult
	for _, term := range terms {
		_, err := txqry.GetTermByCode(ctx, int64(term.Code))
		if errors.Is(err, sql.ErrNoRows) {
			err = conflictingTerm(ctx, txqry, term)
			if errors.Is(err, ErrTermConflict) {
				slog.WarnContext(ctx, "rejecting term", "err", err)
				result.Rejected = append(result.Rejected, err)
				continue
			}
		}
		if err != nil {
			return MetaResult{}, recordError(span, fmt.Errorf("term %d: %w", term.Code, err), "failed to get term")
		}
		_, created, err := upsertTerm(ctx, txqry, term)
		if err != nil {
			return MetaResult{}, recordError(span, fmt.Errorf("term %d: %w", term.Code, err), "failed to upsert term")
		}
		if created {
			result.TermsCreated++
		}
	}
	for _, subject := range subjects {
		_, created, err := upsertSubject(ctx, txqry, subject)
		if err != nil {
			return MetaResult{}, recordError(span, fmt.Errorf("subject %s: %w", subject.Code, err), "failed to upsert subject")
		}
		if created {
			result.SubjectsCreated++
		}
	}

	err = tx.Commit()
	if err != nil {
		return MetaResult{}, recordError(span, err, "failed to commit")
	}
	return result, nil
}
