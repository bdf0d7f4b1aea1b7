package registrar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"easypce-backend/lib/htmlutil"
	"easypce-backend/lib/scrapers/core"
	"easypce-backend/lib/telemetry"
	"easypce-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = telemetry.Tracer("easypce.lib.scrapers.registrar")

const scheduleHeader = "Schedule/Classroom assignment:"

// Unknown is the sentinel for an enrollment figure the page leaves out.
const Unknown = -1

type Enrollment struct {
	Count int
	Max   int
}

// ClassRow is one row of the schedule table, cells are taken in column
// order: class id, section, time, days, room, enrollment, status.
type ClassRow struct {
	ClassId    string
	Section    string
	Time       string
	Days       string
	Room       string
	Enrollment Enrollment
	Status     string
}

const classColumns = 7

type DetailRecord struct {
	// false when the registrar has no page for the course
	Found          bool
	AdditionalInfo string
	Classes        []ClassRow
	// rows of the schedule table with an irregular number of cells
	RejectedRows int
	// nil means the page does not say
	Audit       *bool
	Pdf         *bool
	PdfOnly     *bool
	DistReq     string
	Instructors []InstructorRef
}

// InstructorRef is a link to an instructor's directory entry.
type InstructorRef struct {
	Emplid string
	Name   string
}

type Client struct {
	endpoint string
	core     *core.Client
}

func NewClient(endpoint string, opts core.ClientOptions) *Client {
	if opts.TracerName == "" {
		opts.TracerName = "easypce.lib.scrapers.registrar.http"
	}
	return &Client{endpoint: endpoint, core: core.NewClient(opts)}
}

func (c *Client) CourseDetails(ctx context.Context, term, courseId string) (DetailRecord, error) {
	ctx, span := tracer.Start(ctx, "client:CourseDetails")
	defer span.End()
	span.SetAttributes(
		attribute.String("term", term),
		attribute.String("course_id", courseId),
	)

	res, err := c.core.Get(ctx, c.endpoint, map[string]string{
		"term":     term,
		"courseid": courseId,
	})
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "course details page not found", "term", term, "course_id", courseId)
		return DetailRecord{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch course details")
		return DetailRecord{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return DetailRecord{}, fmt.Errorf("parse course details: %w", err)
	}
	return ParseDetails(ctx, doc), nil
}

// ParseDetails extracts everything it can from a details page, a missing
// fragment leaves its field empty.
func ParseDetails(ctx context.Context, doc *goquery.Document) DetailRecord {
	ctx, span := tracer.Start(ctx, "ParseDetails")
	defer span.End()

	record := DetailRecord{
		Found:          true,
		AdditionalInfo: parseAdditionalInfo(ctx, doc),
		Instructors:    parseInstructors(ctx, doc),
	}
	record.Classes, record.RejectedRows = parseClasses(ctx, doc)

	em := doc.Find("em").First()
	if em.Length() > 0 {
		record.Audit, record.Pdf, record.PdfOnly = parseEnrollParams(em.Text())
		record.DistReq = parseDistReq(em.Nodes[0])
	} else {
		slog.DebugContext(ctx, "no enrollment parameters on page")
	}

	span.SetAttributes(
		attribute.Int("classes", len(record.Classes)),
		attribute.Int("rejected_rows", record.RejectedRows),
		attribute.Int("instructors", len(record.Instructors)),
	)
	return record
}

func scheduleHeaderNode(doc *goquery.Document) *html.Node {
	return htmlutil.FindElementWithText(doc.Find("strong"), scheduleHeader)
}

// the additional info is all markup between the description and the
// schedule header, both of which must share a parent.
func parseAdditionalInfo(ctx context.Context, doc *goquery.Document) string {
	descr := doc.Find("#descr").First()
	end := scheduleHeaderNode(doc)
	if descr.Length() == 0 || end == nil {
		slog.DebugContext(ctx, "additional info markers not found")
		return ""
	}
	start := descr.Nodes[0]
	if start.Parent != end.Parent {
		slog.DebugContext(ctx, "additional info markers are not siblings")
		return ""
	}

	var between []*html.Node
	current := start.NextSibling
	for current != nil && current != end {
		between = append(between, current)
		current = current.NextSibling
	}
	if current == nil {
		return ""
	}

	rendered, err := htmlutil.Render(between)
	if err != nil {
		slog.WarnContext(ctx, "failed to render additional info", "err", err)
		return ""
	}
	return strings.TrimSpace(rendered)
}

func parseClasses(ctx context.Context, doc *goquery.Document) ([]ClassRow, int) {
	header := scheduleHeaderNode(doc)
	if header == nil {
		slog.DebugContext(ctx, "schedule header not found")
		return nil, 0
	}
	table := htmlutil.NextElement(header, "table")
	if table == nil {
		slog.DebugContext(ctx, "schedule table not found")
		return nil, 0
	}

	var classes []ClassRow
	rejected := 0
	goquery.NewDocumentFromNode(table).Find("tr").Each(func(i int, row *goquery.Selection) {
		// first row is the header
		if i == 0 {
			return
		}
		var cells []string
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, textutil.Collapse(cell.Text()))
		})
		if len(cells) != classColumns {
			slog.DebugContext(ctx, "rejected schedule row", "cells", len(cells))
			rejected++
			return
		}
		classes = append(classes, ClassRow{
			ClassId:    cells[0],
			Section:    cells[1],
			Time:       cells[2],
			Days:       cells[3],
			Room:       cells[4],
			Enrollment: ParseEnrollment(cells[5]),
			Status:     cells[6],
		})
	})
	return classes, rejected
}

var enrolledRegex = regexp.MustCompile(`Enrolled:\s*(\d+)`)
var limitRegex = regexp.MustCompile(`Limit:\s*(\d+)`)

func matchInt(re *regexp.Regexp, s string) int {
	groups := re.FindStringSubmatch(s)
	if len(groups) < 2 {
		return Unknown
	}
	value, err := strconv.Atoi(groups[1])
	if err != nil {
		return Unknown
	}
	return value
}

// ParseEnrollment reads a string of the form "Enrolled: N Limit: M", each
// figure that is missing comes back as Unknown.
func ParseEnrollment(s string) Enrollment {
	return Enrollment{
		Count: matchInt(enrolledRegex, s),
		Max:   matchInt(limitRegex, s),
	}
}

func flag(value bool) *bool {
	return &value
}

func parseEnrollParams(text string) (audit, pdf, pdfOnly *bool) {
	text = strings.TrimSpace(text)

	switch {
	case strings.Contains(text, "No Audit"), strings.Contains(text, "na"):
		audit = flag(false)
	case strings.Contains(text, "Audit"):
		audit = flag(true)
	}

	switch {
	case strings.Contains(text, "No Pass/D/Fail"), strings.Contains(text, "npdf"):
		pdf = flag(false)
	case strings.Contains(text, "P/D/F"):
		pdf = flag(true)
	}

	if strings.Contains(text, "P/D/F Only") {
		pdfOnly = flag(true)
	}
	return audit, pdf, pdfOnly
}

var distReqRegex = regexp.MustCompile(`^\(([A-Z]{2,3})\)$`)

// the distribution requirement is the bare text right before the
// enrollment parameters, e.g. "(QR)".
func parseDistReq(em *html.Node) string {
	text, ok := htmlutil.PreviousText(em)
	if !ok {
		return ""
	}
	groups := distReqRegex.FindStringSubmatch(strings.TrimSpace(text))
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

var instructorRegex = regexp.MustCompile(`dirinfo\.xml\?uid=(\d+)`)

func parseInstructors(ctx context.Context, doc *goquery.Document) []InstructorRef {
	var refs []InstructorRef
	seen := map[string]struct{}{}
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a[href]")) {
		groups := instructorRegex.FindStringSubmatch(anchor.Href)
		if len(groups) < 2 {
			continue
		}
		if _, ok := seen[groups[1]]; ok {
			continue
		}
		seen[groups[1]] = struct{}{}
		refs = append(refs, InstructorRef{Emplid: groups[1], Name: anchor.Name})
	}
	return refs
}
