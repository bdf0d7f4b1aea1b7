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
	"go.opentelemetry.io/otel/trace"
)

func (s *Store) offeringByKey(ctx context.Context, qry *db.Queries, span trace.Span, key Key) (db.Offering, error) {
	offering, err := qry.GetOfferingByKey(ctx, db.GetOfferingByKeyParams{
		TermCode: int64(key.TermCode),
		CourseID: key.CourseId,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return db.Offering{}, recordError(span, fmt.Errorf("%w: %s", ErrMissingOffering, key), "missing offering")
	}
	if err != nil {
		return db.Offering{}, recordError(span, err, "failed to get offering")
	}
	return offering, nil
}

func nullBool(value *bool) sql.NullBool {
	if value == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *value, Valid: true}
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

type DetailsResult struct {
	Changed bool
	// the page's enrollment figures differed from the stored ones
	ClassesReplaced bool
	// class ids on the page that match no stored section
	UnknownClasses []string
}

// mergeFlag keeps the stored value of a flag the page does not mention
// unless missing flags are configured to clear.
func (s *Store) mergeFlag(stored sql.NullBool, scraped *bool) sql.NullBool {
	if scraped == nil && !s.opts.ClearMissingEnrollParams {
		return stored
	}
	return nullBool(scraped)
}

// ApplyDetails writes what a registrar details page says about an existing
// offering. It owns the offering's additional info, enrollment flags,
// distribution requirement, the registrar's instructor rows when the page
// lists any, and the page's per-class enrollment. Section rows belong to
// the feed and are never written here.
func (s *Store) ApplyDetails(ctx context.Context, key Key, details normalize.Details) (DetailsResult, error) {
	ctx, span := tracer.Start(ctx, "ApplyDetails")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	var result DetailsResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, recordError(span, err, "failed to begin transaction")
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	offering, err := s.offeringByKey(ctx, txqry, span, key)
	if err != nil {
		return result, err
	}

	if details.Found {
		params := db.UpdateOfferingDetailsParams{
			AdditionalInfo: details.AdditionalInfo,
			Pdf:            s.mergeFlag(offering.Pdf, details.Pdf),
			PdfOnly:        s.mergeFlag(offering.PdfOnly, details.PdfOnly),
			Audit:          s.mergeFlag(offering.Audit, details.Audit),
			DistReq:        details.DistReq,
			LastUpdated:    offering.LastUpdated,
			ID:             offering.ID,
		}
		if details.DistReq == "" && !s.opts.ClearMissingEnrollParams {
			params.DistReq = offering.DistReq
		}
		scalarChanged := params.AdditionalInfo != offering.AdditionalInfo ||
			params.Pdf != offering.Pdf ||
			params.PdfOnly != offering.PdfOnly ||
			params.Audit != offering.Audit ||
			params.DistReq != offering.DistReq
		if scalarChanged {
			err = txqry.UpdateOfferingDetails(ctx, params)
			if err != nil {
				return result, recordError(span, err, "failed to update offering details")
			}
			result.Changed = true
		}

		if len(details.Instructors) > 0 {
			ids, err := upsertInstructors(ctx, txqry, details.Instructors)
			if err != nil {
				return result, recordError(span, err, "failed to upsert instructors")
			}
			replaced, err := replaceInstructors(ctx, txqry, offering.ID, sourceRegistrar, ids)
			if err != nil {
				return result, recordError(span, err, "failed to replace instructors")
			}
			result.Changed = result.Changed || replaced
		}

		replaced, unknown, err := replaceRegistrarClasses(ctx, txqry, offering.ID, details.Classes)
		if err != nil {
			return result, recordError(span, err, "failed to replace registrar classes")
		}
		result.ClassesReplaced = replaced
		result.UnknownClasses = unknown
		result.Changed = result.Changed || replaced
		if len(unknown) > 0 {
			slog.DebugContext(ctx, "details page lists unknown classes", "key", key.String(), "classes", unknown)
		}
	} else {
		slog.InfoContext(ctx, "no details page, only marking the offering scraped", "key", key.String())
	}

	if result.Changed {
		err = txqry.TouchOffering(ctx, db.TouchOfferingParams{LastUpdated: s.now(), ID: offering.ID})
		if err != nil {
			return result, recordError(span, err, "failed to touch offering")
		}
	}
	if !offering.DetailsScraped {
		err = txqry.SetDetailsScraped(ctx, db.SetDetailsScrapedParams{DetailsScraped: true, ID: offering.ID})
		if err != nil {
			return result, recordError(span, err, "failed to mark details scraped")
		}
	}

	err = tx.Commit()
	if err != nil {
		return result, recordError(span, err, "failed to commit")
	}
	return result, nil
}

func registrarClassRows(offeringId int64, classes []normalize.ClassUpdate) []db.RegistrarClass {
	rows := make([]db.RegistrarClass, 0, len(classes))
	for _, class := range classes {
		row := db.RegistrarClass{
			OfferingID: offeringId,
			ClassID:    class.ClassId,
			Enrollment: nullInt(class.Enrollment),
			Capacity:   nullInt(class.Capacity),
		}
		if class.Status != "" {
			row.Status = sql.NullString{String: string(class.Status), Valid: true}
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b db.RegistrarClass) int {
		return cmp.Compare(a.ClassID, b.ClassID)
	})
	return rows
}

// replaceRegistrarClasses swaps the page's per-class figures when they
// differ from the stored ones. It also returns the page's class ids that
// match no section the feed imported.
func replaceRegistrarClasses(ctx context.Context, qry *db.Queries, offeringId int64, classes []normalize.ClassUpdate) (bool, []string, error) {
	sections, err := qry.ListSections(ctx, offeringId)
	if err != nil {
		return false, nil, err
	}
	known := make(map[string]struct{}, len(sections))
	for _, section := range sections {
		known[section.ClassID] = struct{}{}
	}
	var unknown []string
	for _, class := range classes {
		if _, ok := known[class.ClassId]; !ok {
			unknown = append(unknown, class.ClassId)
		}
	}

	want := registrarClassRows(offeringId, classes)
	have, err := qry.ListRegistrarClasses(ctx, offeringId)
	if err != nil {
		return false, nil, err
	}
	if slices.Equal(want, have) {
		return false, unknown, nil
	}

	err = qry.DeleteRegistrarClasses(ctx, offeringId)
	if err != nil {
		return false, nil, err
	}
	for _, row := range want {
		err = qry.CreateRegistrarClass(ctx, db.CreateRegistrarClassParams{
			OfferingID: row.OfferingID,
			ClassID:    row.ClassID,
			Enrollment: row.Enrollment,
			Capacity:   row.Capacity,
			Status:     row.Status,
		})
		if err != nil {
			return false, nil, fmt.Errorf("class %s: %w", row.ClassID, err)
		}
	}
	return true, unknown, nil
}

// ReplaceEvaluations swaps an offering's evaluations and advice for the
// scraped set and marks its evaluations scraped. An empty set is valid, it
// means the course has no evaluations.
func (s *Store) ReplaceEvaluations(ctx context.Context, key Key, set normalize.EvalSet) (bool, error) {
	ctx, span := tracer.Start(ctx, "ReplaceEvaluations")
	defer span.End()
	span.SetAttributes(
		attribute.String("key", key.String()),
		attribute.Int("evaluations", len(set.Evaluations)),
		attribute.Int("advice", len(set.Advice)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, recordError(span, err, "failed to begin transaction")
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	offering, err := s.offeringByKey(ctx, txqry, span, key)
	if err != nil {
		return false, err
	}

	storedEvals, err := txqry.ListEvaluations(ctx, offering.ID)
	if err != nil {
		return false, recordError(span, err, "failed to list evaluations")
	}
	storedAdvice, err := txqry.ListAdvice(ctx, offering.ID)
	if err != nil {
		return false, recordError(span, err, "failed to list advice")
	}

	sameEvals := slices.EqualFunc(storedEvals, set.Evaluations, func(a db.Evaluation, b normalize.Evaluation) bool {
		return a.Label == b.Label && a.Average == b.Average
	})
	sameAdvice := slices.EqualFunc(storedAdvice, set.Advice, func(a db.Advice, b string) bool {
		return a.Text == b
	})
	changed := !sameEvals || !sameAdvice

	if changed {
		err = txqry.DeleteEvaluations(ctx, offering.ID)
		if err != nil {
			return false, recordError(span, err, "failed to delete evaluations")
		}
		err = txqry.DeleteAdvice(ctx, offering.ID)
		if err != nil {
			return false, recordError(span, err, "failed to delete advice")
		}
		for _, evaluation := range set.Evaluations {
			err = txqry.CreateEvaluation(ctx, db.CreateEvaluationParams{
				OfferingID: offering.ID,
				Label:      evaluation.Label,
				Average:    evaluation.Average,
			})
			if err != nil {
				return false, recordError(span, err, "failed to create evaluation")
			}
		}
		for i, text := range set.Advice {
			err = txqry.CreateAdvice(ctx, db.CreateAdviceParams{
				OfferingID: offering.ID,
				Position:   int64(i),
				Text:       text,
			})
			if err != nil {
				return false, recordError(span, err, "failed to create advice")
			}
		}
		err = txqry.TouchOffering(ctx, db.TouchOfferingParams{LastUpdated: s.now(), ID: offering.ID})
		if err != nil {
			return false, recordError(span, err, "failed to touch offering")
		}
	}
	if !offering.EvalsScraped {
		err = txqry.SetEvalsScraped(ctx, db.SetEvalsScrapedParams{EvalsScraped: true, ID: offering.ID})
		if err != nil {
			return false, recordError(span, err, "failed to mark evaluations scraped")
		}
	}

	err = tx.Commit()
	if err != nil {
		return false, recordError(span, err, "failed to commit")
	}
	return changed, nil
}
