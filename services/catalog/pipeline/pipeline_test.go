package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"easypce-backend/lib/scrapers/core"
	"easypce-backend/lib/scrapers/evals"
	"easypce-backend/lib/scrapers/registrar"
	"easypce-backend/lib/scrapers/webfeeds"
	"easypce-backend/lib/testutil"
	"easypce-backend/lib/timezone"
	"easypce-backend/services/catalog/db"
	"easypce-backend/services/catalog/reconcile"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const termCode = 1174

var cos217 = reconcile.Key{TermCode: termCode, CourseId: "002051"}
var egr191 = reconcile.Key{TermCode: termCode, CourseId: "012345"}

type fakeFeed struct {
	mutex   sync.Mutex
	courses map[string][]webfeeds.CourseRecord
	// transport failures left before a subject's courses are served, a
	// negative count fails forever
	failures map[string]int
	calls    map[string]int
	// when set, Terms blocks until it is closed
	gate chan struct{}
	// when set, closed once Terms is called
	entered  chan struct{}
	once     sync.Once
	termsErr error
}

func newFakeFeed() *fakeFeed {
	lecture := webfeeds.ClassRecord{
		ClassNumber: "41019",
		Section:     "L01",
		Status:      "Open",
		TypeName:    "Lecture",
		Capacity:    "200",
		Enrollment:  "180",
		Schedule: webfeeds.Schedule{Meetings: []webfeeds.MeetingRecord{{
			StartTime: "10:00 AM",
			EndTime:   "10:50 AM",
			Days:      []string{"T", "TH"},
			Room:      "50",
			Building:  webfeeds.Building{Name: "McCosh Hall"},
		}}},
	}
	instructors := []webfeeds.InstructorRecord{
		{Emplid: "010004997", FirstName: "Robert M.", LastName: "Dondero"},
	}
	return &fakeFeed{
		courses: map[string][]webfeeds.CourseRecord{
			"COS": {{
				CourseId:      "002051",
				CatalogNumber: "217",
				Title:         "Introduction to Programming Systems",
				Instructors:   instructors,
				Crosslistings: []webfeeds.CrosslistRecord{{Subject: "EGR", CatalogNumber: "217"}},
				Classes:       []webfeeds.ClassRecord{lecture},
			}},
			"EGR": {
				{
					CourseId:      "002051",
					CatalogNumber: "217",
					Title:         "Introduction to Programming Systems",
					Instructors:   instructors,
					Crosslistings: []webfeeds.CrosslistRecord{{Subject: "COS", CatalogNumber: "217"}},
					Classes:       []webfeeds.ClassRecord{lecture},
				},
				{
					CourseId:      "012345",
					CatalogNumber: "191",
					Title:         "An Integrated Introduction to Engineering",
				},
			},
		},
		failures: map[string]int{},
		calls:    map[string]int{},
	}
}

func (f *fakeFeed) Terms(ctx context.Context, sel string) ([]webfeeds.TermRecord, error) {
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.termsErr != nil {
		return nil, f.termsErr
	}
	return []webfeeds.TermRecord{{
		Code:      "1174",
		Suffix:    "S2017",
		Name:      "17-18 Spr",
		CalName:   "Spring 2017",
		RegName:   "17-18 Spr",
		StartDate: "2017-02-06",
		EndDate:   "2017-05-16",
	}}, nil
}

func (f *fakeFeed) Subjects(ctx context.Context, sel string) ([]webfeeds.SubjectRecord, error) {
	return []webfeeds.SubjectRecord{
		{Code: "COS", Name: "Computer Science"},
		{Code: "EGR", Name: "Engineering"},
		{Code: "bad", Name: "Rejected"},
	}, nil
}

func (f *fakeFeed) Courses(ctx context.Context, term, subject string) ([]webfeeds.CourseRecord, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.calls[subject]++
	if left := f.failures[subject]; left != 0 {
		f.failures[subject] = left - 1
		return nil, fmt.Errorf("%w: GET courses: connection reset", core.ErrTransport)
	}

	var courses []webfeeds.CourseRecord
	for _, course := range f.courses[subject] {
		course.TermCode = term
		course.SubjectCode = subject
		courses = append(courses, course)
	}
	return courses, nil
}

func (f *fakeFeed) callCount(subject string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls[subject]
}

type fakeDetails struct {
	mutex sync.Mutex
	errs  map[string]error
	// served once each, in order, before the page
	transient map[string][]error
	// courses whose page never arrives
	hang        map[string]bool
	classes     []registrar.ClassRow
	instructors []registrar.InstructorRef
}

func flag(value bool) *bool {
	return &value
}

func (f *fakeDetails) CourseDetails(ctx context.Context, term, courseId string) (registrar.DetailRecord, error) {
	f.mutex.Lock()
	hang := f.hang[courseId]
	err := f.errs[courseId]
	if queue := f.transient[courseId]; len(queue) > 0 {
		err = queue[0]
		f.transient[courseId] = queue[1:]
	}
	f.mutex.Unlock()

	if hang {
		<-ctx.Done()
		return registrar.DetailRecord{}, ctx.Err()
	}
	if err != nil {
		return registrar.DetailRecord{}, err
	}
	return registrar.DetailRecord{
		Found:          true,
		AdditionalInfo: "Two midterm exams.",
		Classes:        f.classes,
		Pdf:            flag(false),
		Audit:          flag(true),
		DistReq:        "QR",
		Instructors:    f.instructors,
	}, nil
}

type fakeEvals struct{}

func (fakeEvals) Evaluations(ctx context.Context, term, courseId string) (evals.Stats, []string, error) {
	return evals.Stats{
		{Label: "Quality of course", Value: 4.41},
		{Label: "Quality of lectures", Value: 4.2},
	}, []string{"Start early.", ""}, nil
}

type harness struct {
	store    *reconcile.Store
	db       *sql.DB
	feed     *fakeFeed
	details  *fakeDetails
	evals    fakeEvals
	defaults Options
}

func setup(t *testing.T) *harness {
	res := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "pipeline",
		DbSchema: db.Schema,
	})
	return &harness{
		store:   reconcile.NewStore(res.DB, reconcile.Options{}),
		db:      res.DB,
		feed:    newFakeFeed(),
		details: &fakeDetails{
			errs:      map[string]error{},
			transient: map[string][]error{},
			hang:      map[string]bool{},
		},
		defaults: Options{
			Workers:       4,
			UnitTimeout:   5 * time.Second,
			RetryInterval: time.Millisecond,
		},
	}
}

func (h *harness) pipeline(t *testing.T, opts Options) *Pipeline {
	if opts.Workers == 0 {
		opts.Workers = h.defaults.Workers
	}
	if opts.UnitTimeout == 0 {
		opts.UnitTimeout = h.defaults.UnitTimeout
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = h.defaults.RetryInterval
	}
	p, err := New(context.Background(), Deps{
		Feed:    h.feed,
		Details: h.details,
		Evals:   h.evals,
		Store:   h.store,
	}, opts)
	require.NoError(t, err)
	return p
}

func wait(t *testing.T, p *Pipeline) Report {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report := p.Wait(ctx)
	require.NoError(t, ctx.Err(), "run did not finish")
	return report
}

func scrapeAll(t *testing.T, p *Pipeline) Report {
	meta := p.ScrapeMeta()
	p.ScrapeCoursesInTerm(termCode, meta)
	return wait(t, p)
}

func unitsOf(report Report, kind Kind) []Unit {
	var units []Unit
	for _, u := range report.Units {
		if u.Kind == kind {
			units = append(units, u)
		}
	}
	return units
}

func TestScrapeAll(t *testing.T) {
	h := setup(t)
	report := scrapeAll(t, h.pipeline(t, Options{}))

	require.Empty(t, report.Failed())
	require.Len(t, report.Units, 8)
	require.Equal(t, 8, report.Count(Succeeded))
	require.Len(t, unitsOf(report, KindCoursesInSubject), 2)
	// the cross-listed course is listed by both subjects but scraped once
	require.Len(t, unitsOf(report, KindDetails), 2)
	require.Len(t, unitsOf(report, KindEvaluations), 2)

	meta := unitsOf(report, KindMeta)[0]
	require.Contains(t, meta.Notes, "1 new terms, 2 new subjects")
	require.Len(t, meta.Notes, 2, "the malformed subject is noted")

	ctx := context.Background()
	view, err := h.store.GetOffering(ctx, cos217)
	require.NoError(t, err)
	// whichever subject imported the course first holds the primary number
	require.Len(t, view.CrossListings, 1)
	require.ElementsMatch(t, []string{"COS", "EGR"}, []string{view.Primary.Subject, view.CrossListings[0].Subject})
	require.Len(t, view.Sections, 1)
	require.Len(t, view.Sections[0].Meetings, 1)
	require.Equal(t, "McCosh Hall 50", view.Sections[0].Meetings[0].Location)

	// details and evaluations own disjoint fields, neither clobbers the other
	require.True(t, view.DetailsScraped)
	require.True(t, view.EvalsScraped)
	require.Equal(t, "QR", view.DistReq)
	require.Equal(t, flag(true), view.Audit)
	require.Len(t, view.Evaluations, 2)
	require.Equal(t, []string{"Start early."}, view.Advice)
}

// dump reads every row of every table so two states can be compared.
func dump(t *testing.T, database *sql.DB) map[string][][]any {
	tables := []string{
		"term", "subject", "course", "instructor", "course_number", "offering",
		"cross_listing", "offering_instructor", "section", "registrar_class", "meeting", "evaluation", "advice",
	}
	state := map[string][][]any{}
	for _, table := range tables {
		rows, err := database.Query(fmt.Sprintf("select * from %s order by 1, 2", table))
		require.NoError(t, err)
		columns, err := rows.Columns()
		require.NoError(t, err)
		for rows.Next() {
			values := make([]any, len(columns))
			pointers := make([]any, len(columns))
			for i := range values {
				pointers[i] = &values[i]
			}
			require.NoError(t, rows.Scan(pointers...))
			state[table] = append(state[table], values)
		}
		require.NoError(t, rows.Err())
		rows.Close()
	}
	return state
}

func TestScrapeAllTwice(t *testing.T) {
	h := setup(t)
	scrapeAll(t, h.pipeline(t, Options{}))
	before := dump(t, h.db)

	report := scrapeAll(t, h.pipeline(t, Options{}))
	require.Empty(t, report.Failed())
	if diff := cmp.Diff(before, dump(t, h.db)); diff != "" {
		t.Fatalf("second run changed the store (-before +after):\n%s", diff)
	}
}

func TestScrapeAllTwiceWithDisagreeingSources(t *testing.T) {
	h := setup(t)
	// every write that bumps last_updated is visible in the dump
	var clockMutex sync.Mutex
	clock := time.Date(2017, time.January, 1, 0, 0, 0, 0, timezone.Location)
	h.store = reconcile.NewStore(h.db, reconcile.Options{Now: func() time.Time {
		clockMutex.Lock()
		defer clockMutex.Unlock()
		clock = clock.Add(time.Hour)
		return clock
	}})
	// the page counts one more student than the feed and lists another
	// instructor
	h.details.classes = []registrar.ClassRow{{
		ClassId:    "41019",
		Section:    "L01",
		Enrollment: registrar.Enrollment{Count: 181, Max: 200},
		Status:     "Open",
	}}
	h.details.instructors = []registrar.InstructorRef{{Emplid: "960041234", Name: "Xiaoyan Li"}}

	scrapeAll(t, h.pipeline(t, Options{}))
	before := dump(t, h.db)

	report := scrapeAll(t, h.pipeline(t, Options{}))
	require.Empty(t, report.Failed())
	if diff := cmp.Diff(before, dump(t, h.db)); diff != "" {
		t.Fatalf("second run changed the store (-before +after):\n%s", diff)
	}

	view, err := h.store.GetOffering(context.Background(), cos217)
	require.NoError(t, err)
	require.Equal(t, 180, view.Sections[0].Enrollment)
	require.Len(t, view.Registrar, 1)
	require.Equal(t, 181, *view.Registrar[0].Enrollment)
	require.Len(t, view.Instructors, 2)
}

func TestIncremental(t *testing.T) {
	h := setup(t)
	scrapeAll(t, h.pipeline(t, Options{}))

	report := scrapeAll(t, h.pipeline(t, Options{Incremental: true}))
	require.Empty(t, unitsOf(report, KindDetails))
	require.Empty(t, unitsOf(report, KindEvaluations))
	require.Len(t, report.Units, 4)
}

func TestFailureIsolation(t *testing.T) {
	h := setup(t)
	h.details.errs["012345"] = core.StatusError{Method: "GET", Url: "details", Code: 403}

	report := scrapeAll(t, h.pipeline(t, Options{}))
	failed := report.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, KindDetails, failed[0].Kind)
	require.Equal(t, "012345", failed[0].CourseId)
	require.Equal(t, 1, failed[0].Attempts, "a status error is not retried")
	require.Equal(t, 7, report.Count(Succeeded))

	ctx := context.Background()
	view, err := h.store.GetOffering(ctx, egr191)
	require.NoError(t, err)
	require.False(t, view.DetailsScraped)
	require.True(t, view.EvalsScraped)
	view, err = h.store.GetOffering(ctx, cos217)
	require.NoError(t, err)
	require.True(t, view.DetailsScraped)
}

func TestRetryTransportFailure(t *testing.T) {
	h := setup(t)
	h.feed.failures["COS"] = 2

	report := scrapeAll(t, h.pipeline(t, Options{MaxAttempts: 3}))
	require.Empty(t, report.Failed())
	for _, u := range unitsOf(report, KindCoursesInSubject) {
		if u.Subject == "COS" {
			require.Equal(t, 3, u.Attempts)
		}
	}
	require.Equal(t, 3, h.feed.callCount("COS"))
}

func TestRetryExhausted(t *testing.T) {
	h := setup(t)
	h.feed.failures["EGR"] = -1

	report := scrapeAll(t, h.pipeline(t, Options{MaxAttempts: 2}))
	failed := report.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, "EGR", failed[0].Subject)
	require.Equal(t, 2, failed[0].Attempts)
	require.ErrorIs(t, failed[0].Err, core.ErrTransport)

	// COS still imported the cross-listed course, the EGR only one is absent
	_, err := h.store.GetOffering(context.Background(), cos217)
	require.NoError(t, err)
	_, err = h.store.GetOffering(context.Background(), egr191)
	require.ErrorIs(t, err, reconcile.ErrMissingOffering)
}

func TestUnitDeadline(t *testing.T) {
	h := setup(t)
	h.details.hang["012345"] = true

	report := scrapeAll(t, h.pipeline(t, Options{UnitTimeout: 200 * time.Millisecond}))
	failed := report.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, KindDetails, failed[0].Kind)
	require.Equal(t, "012345", failed[0].CourseId)
	require.ErrorIs(t, failed[0].Err, context.DeadlineExceeded)
	require.Equal(t, 1, failed[0].Attempts, "an expired deadline is not retried")
	require.Equal(t, 7, report.Count(Succeeded))
}

func TestRetryTransportTimeout(t *testing.T) {
	h := setup(t)
	h.details.transient["002051"] = []error{
		fmt.Errorf("%w: GET details: %w", core.ErrTransport, context.DeadlineExceeded),
	}

	report := scrapeAll(t, h.pipeline(t, Options{MaxAttempts: 3}))
	require.Empty(t, report.Failed())
	for _, u := range unitsOf(report, KindDetails) {
		if u.CourseId == "002051" {
			require.Equal(t, 2, u.Attempts)
		}
	}
}

func TestMissingSubject(t *testing.T) {
	h := setup(t)
	p := h.pipeline(t, Options{})
	meta := p.ScrapeMeta()
	p.ScrapeCoursesInSubject(termCode, "MAT", meta)
	report := wait(t, p)

	failed := report.Failed()
	require.Len(t, failed, 1)
	require.ErrorIs(t, failed[0].Err, reconcile.ErrMissingSubject)
	require.Equal(t, 1, failed[0].Attempts)
	require.Zero(t, h.feed.callCount("MAT"), "nothing is fetched for a subject that is not in the store")
}

func TestDependencyFailure(t *testing.T) {
	h := setup(t)
	h.feed.termsErr = fmt.Errorf("%w: unexpected document", webfeeds.ErrMalformed)

	report := scrapeAll(t, h.pipeline(t, Options{}))
	require.Len(t, report.Units, 2)
	require.Equal(t, 2, report.Count(Failed))

	term := unitsOf(report, KindCoursesInTerm)[0]
	require.ErrorIs(t, term.Err, ErrDependencyFailed)
	require.Zero(t, term.Attempts)
	require.Equal(t, []int{1}, term.DependsOn)
}

func TestCancel(t *testing.T) {
	h := setup(t)
	h.feed.gate = make(chan struct{})

	p := h.pipeline(t, Options{})
	meta := p.ScrapeMeta()
	term := p.ScrapeCoursesInTerm(termCode, meta)

	require.True(t, p.Cancel(term))
	require.False(t, p.Cancel(term), "a unit is only cancelled once")
	require.False(t, p.Cancel(42))
	close(h.feed.gate)

	report := wait(t, p)
	require.Len(t, report.Units, 2)
	require.Equal(t, Succeeded, report.Units[0].State)
	require.Equal(t, Cancelled, report.Units[1].State)
	require.False(t, p.Cancel(meta), "finished units cannot be cancelled")
}

func TestCancelAll(t *testing.T) {
	h := setup(t)
	h.feed.gate = make(chan struct{})
	h.feed.entered = make(chan struct{})

	p := h.pipeline(t, Options{})
	meta := p.ScrapeMeta()
	p.ScrapeCoursesInTerm(termCode, meta)
	<-h.feed.entered
	p.CancelAll()

	report := wait(t, p)
	require.Len(t, report.Units, 2)
	require.Equal(t, Failed, report.Units[0].State, "the running unit is interrupted")
	require.Equal(t, Cancelled, report.Units[1].State)
}

func TestResubmitAfterFailure(t *testing.T) {
	h := setup(t)
	h.details.errs["012345"] = core.StatusError{Method: "GET", Url: "details", Code: 403}

	p := h.pipeline(t, Options{SkipFollowUps: true})
	scrapeAll(t, p)
	first := p.ScrapeDetails(egr191)
	wait(t, p)

	delete(h.details.errs, "012345")
	require.Equal(t, first, p.ScrapeDetails(cos217)-1, "a different scope is a new unit")
	second := p.ScrapeDetails(egr191)
	require.NotEqual(t, first, second, "a failed unit can be scheduled again")
	require.Equal(t, second, p.ScrapeDetails(egr191), "a queued unit is not scheduled twice")

	report := wait(t, p)
	require.Equal(t, Failed, report.Units[first-1].State)
	require.Equal(t, Succeeded, report.Units[second-1].State)
}

func TestKeyLock(t *testing.T) {
	locks := newKeyLock()
	var holders, maxHolders atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(context.Background(), "1174/002051")
			if err != nil {
				t.Error(err)
				return
			}
			n := holders.Add(1)
			for {
				current := maxHolders.Load()
				if n <= current || maxHolders.CompareAndSwap(current, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			holders.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxHolders.Load())
	require.Empty(t, locks.locks)
}

func TestKeyLockCancel(t *testing.T) {
	locks := newKeyLock()
	unlock, err := locks.Lock(context.Background(), "1174/002051")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "1174/002051")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	require.Empty(t, locks.locks, "a waiter that gave up leaves nothing behind")

	unlock, err = locks.Lock(context.Background(), "1174/002051")
	require.NoError(t, err)
	unlock()
}
