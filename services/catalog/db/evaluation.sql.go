package db

import (
	"context"
)

const listEvaluations = `-- name: ListEvaluations :many
select id, offering_id, label, average from evaluation
where offering_id = ?
order by id
`

func (q *Queries) ListEvaluations(ctx context.Context, offeringID int64) ([]Evaluation, error) {
	rows, err := q.db.QueryContext(ctx, listEvaluations, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Evaluation
	for rows.Next() {
		var i Evaluation
		if err := rows.Scan(&i.ID, &i.OfferingID, &i.Label, &i.Average); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createEvaluation = `-- name: CreateEvaluation :exec
insert into evaluation(offering_id, label, average) values (?, ?, ?)
`

type CreateEvaluationParams struct {
	OfferingID int64
	Label      string
	Average    float64
}

func (q *Queries) CreateEvaluation(ctx context.Context, arg CreateEvaluationParams) error {
	_, err := q.db.ExecContext(ctx, createEvaluation, arg.OfferingID, arg.Label, arg.Average)
	return err
}

const deleteEvaluations = `-- name: DeleteEvaluations :exec
delete from evaluation where offering_id = ?
`

func (q *Queries) DeleteEvaluations(ctx context.Context, offeringID int64) error {
	_, err := q.db.ExecContext(ctx, deleteEvaluations, offeringID)
	return err
}

const listAdvice = `-- name: ListAdvice :many
select id, offering_id, position, text from advice
where offering_id = ?
order by position
`

func (q *Queries) ListAdvice(ctx context.Context, offeringID int64) ([]Advice, error) {
	rows, err := q.db.QueryContext(ctx, listAdvice, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Advice
	for rows.Next() {
		var i Advice
		if err := rows.Scan(&i.ID, &i.OfferingID, &i.Position, &i.Text); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createAdvice = `-- name: CreateAdvice :exec
insert into advice(offering_id, position, text) values (?, ?, ?)
`

type CreateAdviceParams struct {
	OfferingID int64
	Position   int64
	Text       string
}

func (q *Queries) CreateAdvice(ctx context.Context, arg CreateAdviceParams) error {
	_, err := q.db.ExecContext(ctx, createAdvice, arg.OfferingID, arg.Position, arg.Text)
	return err
}

const deleteAdvice = `-- name: DeleteAdvice :exec
delete from advice where offering_id = ?
`

func (q *Queries) DeleteAdvice(ctx context.Context, offeringID int64) error {
	_, err := q.db.ExecContext(ctx, deleteAdvice, offeringID)
	return err
}
