package pipeline

import (
	"context"
	"strconv"

	"easypce-backend/lib/scrapers/webfeeds"
	"easypce-backend/services/catalog/normalize"
	"easypce-backend/services/catalog/reconcile"
)

// ScrapeMeta schedules the import of every term and subject the feed
// knows about.
func (p *Pipeline) ScrapeMeta(after ...int) int {
	t := p.submit(Unit{Kind: KindMeta}, p.lookup(after), p.runMeta)
	return t.unit.Id
}

// ScrapeCoursesInTerm schedules one courses unit per subject in the store
// once it runs, so it should come after ScrapeMeta.
func (p *Pipeline) ScrapeCoursesInTerm(termCode int, after ...int) int {
	t := p.submit(Unit{Kind: KindCoursesInTerm, TermCode: termCode}, p.lookup(after), p.runCoursesInTerm)
	return t.unit.Id
}

func (p *Pipeline) ScrapeCoursesInSubject(termCode int, subject string, after ...int) int {
	t := p.submit(Unit{
		Kind:     KindCoursesInSubject,
		TermCode: termCode,
		Subject:  subject,
	}, p.lookup(after), p.runCoursesInSubject)
	return t.unit.Id
}

func (p *Pipeline) ScrapeDetails(key reconcile.Key, after ...int) int {
	t := p.submit(Unit{
		Kind:     KindDetails,
		TermCode: key.TermCode,
		CourseId: key.CourseId,
	}, p.lookup(after), p.runDetails)
	return t.unit.Id
}

func (p *Pipeline) ScrapeEvaluations(key reconcile.Key, after ...int) int {
	t := p.submit(Unit{
		Kind:     KindEvaluations,
		TermCode: key.TermCode,
		CourseId: key.CourseId,
	}, p.lookup(after), p.runEvaluations)
	return t.unit.Id
}

func (p *Pipeline) runMeta(ctx context.Context, t *task) error {
	termRecords, err := p.deps.Feed.Terms(ctx, webfeeds.AllTerms)
	if err != nil {
		return err
	}
	subjectRecords, err := p.deps.Feed.Subjects(ctx, webfeeds.AllTerms)
	if err != nil {
		return err
	}

	var terms []normalize.Term
	for _, record := range termRecords {
		term, err := normalize.FromTerm(record)
		if err != nil {
			p.note(t, "rejected term %s: %v", record.Suffix, err)
			continue
		}
		terms = append(terms, term)
	}
	var subjects []normalize.Subject
	for _, record := range subjectRecords {
		subject, err := normalize.FromSubject(record)
		if err != nil {
			p.note(t, "rejected subject %s: %v", record.Code, err)
			continue
		}
		subjects = append(subjects, subject)
	}

	result, err := p.deps.Store.ImportMeta(ctx, terms, subjects)
	if err != nil {
		return err
	}
	for _, err := range result.Rejected {
		p.note(t, "%v", err)
	}
	p.note(t, "%d new terms, %d new subjects", result.TermsCreated, result.SubjectsCreated)
	return nil
}

func (p *Pipeline) runCoursesInTerm(ctx context.Context, t *task) error {
	termCode := t.unit.TermCode
	err := p.deps.Store.RequireScope(ctx, termCode, "")
	if err != nil {
		return err
	}
	subjects, err := p.deps.Store.ListSubjects(ctx)
	if err != nil {
		return err
	}
	for _, subject := range subjects {
		p.submit(Unit{
			Kind:     KindCoursesInSubject,
			TermCode: termCode,
			Subject:  subject.Code,
		}, []*task{t}, p.runCoursesInSubject)
	}
	return nil
}

func (p *Pipeline) runCoursesInSubject(ctx context.Context, t *task) error {
	termCode, subject := t.unit.TermCode, t.unit.Subject
	// refuse before fetching, a missing subject is an ordering mistake and
	// must not be papered over with a placeholder
	err := p.deps.Store.RequireScope(ctx, termCode, subject)
	if err != nil {
		return err
	}

	records, err := p.deps.Feed.Courses(ctx, strconv.Itoa(termCode), subject)
	if err != nil {
		return err
	}

	for _, record := range records {
		offering, err := normalize.FromCourse(record)
		if err != nil {
			p.note(t, "rejected course %s %s: %v", record.SubjectCode, record.CatalogNumber, err)
			continue
		}
		for _, rejected := range offering.Rejected {
			p.note(t, "%s: %v", offering.Listing, rejected)
		}

		key := reconcile.Key{TermCode: offering.TermCode, CourseId: offering.CourseId}
		unlock, err := p.keys.Lock(ctx, key.String())
		if err != nil {
			return err
		}
		result, err := p.deps.Store.ImportOffering(ctx, offering)
		unlock()
		if err != nil {
			return err
		}
		for _, note := range result.Notes {
			p.note(t, "%s: %s", offering.Listing, note)
		}

		if p.opts.SkipFollowUps {
			continue
		}
		if !p.opts.Incremental || !result.DetailsScraped {
			p.submit(Unit{Kind: KindDetails, TermCode: key.TermCode, CourseId: key.CourseId}, []*task{t}, p.runDetails)
		}
		if !p.opts.Incremental || !result.EvalsScraped {
			p.submit(Unit{Kind: KindEvaluations, TermCode: key.TermCode, CourseId: key.CourseId}, []*task{t}, p.runEvaluations)
		}
	}
	return nil
}

func (p *Pipeline) runDetails(ctx context.Context, t *task) error {
	key := reconcile.Key{TermCode: t.unit.TermCode, CourseId: t.unit.CourseId}

	record, err := p.deps.Details.CourseDetails(ctx, strconv.Itoa(key.TermCode), key.CourseId)
	if err != nil {
		return err
	}
	if record.RejectedRows > 0 {
		p.note(t, "%d schedule rows with irregular columns", record.RejectedRows)
	}
	details, rejected := normalize.FromDetails(record)
	for _, err := range rejected {
		p.note(t, "%v", err)
	}

	unlock, err := p.keys.Lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer unlock()
	result, err := p.deps.Store.ApplyDetails(ctx, key, details)
	if err != nil {
		return err
	}
	for _, classId := range result.UnknownClasses {
		p.note(t, "class %s is not a known section", classId)
	}
	return nil
}

func (p *Pipeline) runEvaluations(ctx context.Context, t *task) error {
	key := reconcile.Key{TermCode: t.unit.TermCode, CourseId: t.unit.CourseId}

	stats, comments, err := p.deps.Evals.Evaluations(ctx, strconv.Itoa(key.TermCode), key.CourseId)
	if err != nil {
		return err
	}
	set, rejected := normalize.FromEvaluations(stats, comments)
	for _, err := range rejected {
		p.note(t, "%v", err)
	}

	unlock, err := p.keys.Lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer unlock()
	_, err = p.deps.Store.ReplaceEvaluations(ctx, key, set)
	return err
}
