package webfeeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"easypce-backend/lib/scrapers/core"
	"easypce-backend/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("easypce.lib.scrapers.webfeeds")

// ErrMalformed is returned when the feed answers with something that is
// not a feed document. It is never worth retrying.
var ErrMalformed = errors.New("malformed feed document")

// AllTerms selects every term the feed knows about.
const AllTerms = "all"

type Client struct {
	endpoint string
	core     *core.Client
}

func NewClient(endpoint string, opts core.ClientOptions) *Client {
	if opts.TracerName == "" {
		opts.TracerName = "easypce.lib.scrapers.webfeeds.http"
	}
	return &Client{endpoint: endpoint, core: core.NewClient(opts)}
}

func (c *Client) fetch(ctx context.Context, params map[string]string) ([]TermRecord, error) {
	params["fmt"] = "json"
	res, err := c.core.Get(ctx, c.endpoint, params)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "feed resource not found", "params", params)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc document
	err = json.Unmarshal(res.Body(), &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return doc.Terms, nil
}

// Terms returns the term selected by sel, a numeric term code, or every
// term when sel is AllTerms.
func (c *Client) Terms(ctx context.Context, sel string) ([]TermRecord, error) {
	ctx, span := tracer.Start(ctx, "client:Terms")
	defer span.End()
	span.SetAttributes(attribute.String("term", sel))

	terms, err := c.fetch(ctx, map[string]string{"term": sel})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch terms")
		return nil, err
	}
	return terms, nil
}

// Subjects returns every subject offered in the selected terms, a subject
// appearing in more than one term is only returned once (first wins).
func (c *Client) Subjects(ctx context.Context, sel string) ([]SubjectRecord, error) {
	ctx, span := tracer.Start(ctx, "client:Subjects")
	defer span.End()
	span.SetAttributes(attribute.String("term", sel))

	terms, err := c.fetch(ctx, map[string]string{
		"term":    sel,
		"subject": "list",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch subjects")
		return nil, err
	}

	seen := map[string]struct{}{}
	var subjects []SubjectRecord
	for _, term := range terms {
		for _, subject := range term.Subjects {
			if _, ok := seen[subject.Code]; ok {
				continue
			}
			seen[subject.Code] = struct{}{}
			subjects = append(subjects, subject)
		}
	}
	return subjects, nil
}

// Courses returns every course of a subject in a term, each annotated with
// the codes of the term and subject it was listed under.
func (c *Client) Courses(ctx context.Context, term, subject string) ([]CourseRecord, error) {
	ctx, span := tracer.Start(ctx, "client:Courses")
	defer span.End()
	span.SetAttributes(
		attribute.String("term", term),
		attribute.String("subject", subject),
	)

	terms, err := c.fetch(ctx, map[string]string{
		"term":    term,
		"subject": subject,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch courses")
		return nil, err
	}

	var courses []CourseRecord
	for _, t := range terms {
		for _, s := range t.Subjects {
			for _, course := range s.Courses {
				course.TermCode = t.Code.String()
				course.TermName = t.RegName
				course.SubjectCode = s.Code
				course.SubjectName = s.Name
				courses = append(courses, course)
			}
		}
	}
	span.SetAttributes(attribute.Int("courses", len(courses)))
	return courses, nil
}
