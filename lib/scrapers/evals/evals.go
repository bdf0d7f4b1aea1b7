package evals

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"easypce-backend/lib/scrapers/core"
	"easypce-backend/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("easypce.lib.scrapers.evals")

// pages with fewer tables than this have no comments section
const minCommentTables = 6

type Stat struct {
	Label string
	Value float64
}

// Stats keeps the chart order, labels and values are only correlated by
// their position in the payload.
type Stats []Stat

type Client struct {
	endpoint string
	core     *core.Client
}

func NewClient(endpoint string, opts core.ClientOptions) *Client {
	if opts.TracerName == "" {
		opts.TracerName = "easypce.lib.scrapers.evals.http"
	}
	return &Client{endpoint: endpoint, core: core.NewClient(opts)}
}

func (c *Client) Evaluations(ctx context.Context, term, courseId string) (Stats, []string, error) {
	ctx, span := tracer.Start(ctx, "client:Evaluations")
	defer span.End()
	span.SetAttributes(
		attribute.String("term", term),
		attribute.String("course_id", courseId),
	)

	res, err := c.core.Get(ctx, c.endpoint, map[string]string{
		"terminfo":   term,
		"courseinfo": courseId,
	})
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "evaluations page not found", "term", term, "course_id", courseId)
		return nil, nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch evaluations")
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, nil, fmt.Errorf("parse evaluations: %w", err)
	}
	stats, comments := Parse(ctx, doc)
	return stats, comments, nil
}

// Parse reads the chart statistics and the comments off an evaluation
// page. Neither ever fails, a page without them yields empty values.
func Parse(ctx context.Context, doc *goquery.Document) (Stats, []string) {
	return parseStats(ctx, doc), parseComments(doc)
}

type chartPayload struct {
	PlotArea struct {
		XAxis struct {
			Items []struct {
				Text string `json:"Text"`
			} `json:"Items"`
		} `json:"XAxis"`
		ListOfSeries []struct {
			Items []struct {
				YValue any `json:"YValue"`
			} `json:"Items"`
		} `json:"ListOfSeries"`
	} `json:"PlotArea"`
}

func toFloat(value any) (float64, error) {
	var parsed float64
	switch v := value.(type) {
	case float64:
		parsed = v
	case string:
		var err error
		parsed, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unexpected value %v", value)
	}
	// ParseFloat accepts "NaN" and "Inf"
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("not a finite number: %v", value)
	}
	return parsed, nil
}

func decodePayload(encoded string) (chartPayload, error) {
	encoded = strings.TrimSpace(encoded)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return chartPayload{}, err
		}
	}
	var payload chartPayload
	err = json.Unmarshal(raw, &payload)
	return payload, err
}

func parseStats(ctx context.Context, doc *goquery.Document) Stats {
	encoded, ok := doc.Find("#chart input").First().Attr("value")
	if !ok {
		slog.DebugContext(ctx, "no evaluation chart on page")
		return nil
	}

	payload, err := decodePayload(encoded)
	if err != nil {
		slog.WarnContext(ctx, "failed to decode evaluation chart", "err", err)
		return nil
	}
	if len(payload.PlotArea.ListOfSeries) == 0 {
		slog.WarnContext(ctx, "evaluation chart has no series")
		return nil
	}

	labels := payload.PlotArea.XAxis.Items
	values := payload.PlotArea.ListOfSeries[0].Items
	if len(labels) != len(values) {
		slog.WarnContext(
			ctx, "evaluation chart labels and values differ in length",
			"labels", len(labels),
			"values", len(values),
		)
		return nil
	}

	stats := make(Stats, 0, len(labels))
	for i := range labels {
		// pairs stay aligned by position, a bad value only drops its own
		value, err := toFloat(values[i].YValue)
		if err != nil {
			slog.WarnContext(ctx, "bad evaluation value", "label", labels[i].Text, "err", err)
			continue
		}
		stats = append(stats, Stat{Label: labels[i].Text, Value: value})
	}
	return stats
}

func parseComments(doc *goquery.Document) []string {
	tables := doc.Find("table")
	if tables.Length() < minCommentTables {
		return nil
	}
	var comments []string
	tables.Last().Find("td").Each(func(_ int, cell *goquery.Selection) {
		comments = append(comments, strings.TrimSpace(cell.Text()))
	})
	return comments
}
