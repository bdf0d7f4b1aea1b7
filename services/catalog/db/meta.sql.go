package db

import (
	"context"
)

const getTermByCode = `-- name: GetTermByCode :one
select id, code, suffix, name, start_date, end_date from term
where code = ?
`

func (q *Queries) GetTermByCode(ctx context.Context, code int64) (Term, error) {
	row := q.db.QueryRowContext(ctx, getTermByCode, code)
	var i Term
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Suffix,
		&i.Name,
		&i.StartDate,
		&i.EndDate,
	)
	return i, err
}

const getConflictingTerm = `-- name: GetConflictingTerm :one
select id, code, suffix, name, start_date, end_date from term
where code != ? and (suffix = ? or name = ? or start_date = ? or end_date = ?)
limit 1
`

type GetConflictingTermParams struct {
	Code      int64
	Suffix    string
	Name      string
	StartDate string
	EndDate   string
}

func (q *Queries) GetConflictingTerm(ctx context.Context, arg GetConflictingTermParams) (Term, error) {
	row := q.db.QueryRowContext(ctx, getConflictingTerm,
		arg.Code,
		arg.Suffix,
		arg.Name,
		arg.StartDate,
		arg.EndDate,
	)
	var i Term
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Suffix,
		&i.Name,
		&i.StartDate,
		&i.EndDate,
	)
	return i, err
}

const createTerm = `-- name: CreateTerm :one
insert into term(code, suffix, name, start_date, end_date)
values (?, ?, ?, ?, ?)
returning id, code, suffix, name, start_date, end_date
`

type CreateTermParams struct {
	Code      int64
	Suffix    string
	Name      string
	StartDate string
	EndDate   string
}

func (q *Queries) CreateTerm(ctx context.Context, arg CreateTermParams) (Term, error) {
	row := q.db.QueryRowContext(ctx, createTerm,
		arg.Code,
		arg.Suffix,
		arg.Name,
		arg.StartDate,
		arg.EndDate,
	)
	var i Term
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Suffix,
		&i.Name,
		&i.StartDate,
		&i.EndDate,
	)
	return i, err
}

const listTerms = `-- name: ListTerms :many
select id, code, suffix, name, start_date, end_date from term
order by code
`

func (q *Queries) ListTerms(ctx context.Context) ([]Term, error) {
	rows, err := q.db.QueryContext(ctx, listTerms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Term
	for rows.Next() {
		var i Term
		if err := rows.Scan(
			&i.ID,
			&i.Code,
			&i.Suffix,
			&i.Name,
			&i.StartDate,
			&i.EndDate,
		); err != nil {
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

const getSubjectByCode = `-- name: GetSubjectByCode :one
select id, code, name from subject
where code = ?
`

func (q *Queries) GetSubjectByCode(ctx context.Context, code string) (Subject, error) {
	row := q.db.QueryRowContext(ctx, getSubjectByCode, code)
	var i Subject
	err := row.Scan(&i.ID, &i.Code, &i.Name)
	return i, err
}

const createSubject = `-- name: CreateSubject :one
insert into subject(code, name) values (?, ?)
returning id, code, name
`

type CreateSubjectParams struct {
	Code string
	Name string
}

func (q *Queries) CreateSubject(ctx context.Context, arg CreateSubjectParams) (Subject, error) {
	row := q.db.QueryRowContext(ctx, createSubject, arg.Code, arg.Name)
	var i Subject
	err := row.Scan(&i.ID, &i.Code, &i.Name)
	return i, err
}

const listSubjects = `-- name: ListSubjects :many
select id, code, name from subject
order by code
`

func (q *Queries) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := q.db.QueryContext(ctx, listSubjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subject
	for rows.Next() {
		var i Subject
		if err := rows.Scan(&i.ID, &i.Code, &i.Name); err != nil {
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
