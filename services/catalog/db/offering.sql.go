package db

import (
	"context"
	"database/sql"
)

const offeringColumns = `offering.id, offering.course_id, offering.term_id, offering.title,
offering.primary_number_id, offering.description, offering.additional_info,
offering.pdf, offering.pdf_only, offering.audit, offering.dist_req,
offering.last_updated, offering.details_scraped, offering.evals_scraped`

type scanner interface {
	Scan(dest ...any) error
}

func scanOffering(row scanner) (Offering, error) {
	var i Offering
	err := row.Scan(
		&i.ID,
		&i.CourseID,
		&i.TermID,
		&i.Title,
		&i.PrimaryNumberID,
		&i.Description,
		&i.AdditionalInfo,
		&i.Pdf,
		&i.PdfOnly,
		&i.Audit,
		&i.DistReq,
		&i.LastUpdated,
		&i.DetailsScraped,
		&i.EvalsScraped,
	)
	return i, err
}

const getOffering = `-- name: GetOffering :one
select ` + offeringColumns + ` from offering
where course_id = ? and term_id = ?
`

type GetOfferingParams struct {
	CourseID int64
	TermID   int64
}

func (q *Queries) GetOffering(ctx context.Context, arg GetOfferingParams) (Offering, error) {
	row := q.db.QueryRowContext(ctx, getOffering, arg.CourseID, arg.TermID)
	return scanOffering(row)
}

const getOfferingByKey = `-- name: GetOfferingByKey :one
select ` + offeringColumns + ` from offering
inner join term on term.id = offering.term_id
inner join course on course.id = offering.course_id
where term.code = ? and course.course_id = ?
`

type GetOfferingByKeyParams struct {
	TermCode int64
	CourseID string
}

func (q *Queries) GetOfferingByKey(ctx context.Context, arg GetOfferingByKeyParams) (Offering, error) {
	row := q.db.QueryRowContext(ctx, getOfferingByKey, arg.TermCode, arg.CourseID)
	return scanOffering(row)
}

const getOfferingTermCode = `-- name: GetOfferingTermCode :one
select term.code from offering
inner join term on term.id = offering.term_id
where offering.id = ?
`

func (q *Queries) GetOfferingTermCode(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, getOfferingTermCode, id)
	var code int64
	err := row.Scan(&code)
	return code, err
}

const createOffering = `-- name: CreateOffering :one
insert into offering(course_id, term_id, title, primary_number_id, description, last_updated)
values (?, ?, ?, ?, ?, ?)
returning id, course_id, term_id, title, primary_number_id, description, additional_info,
pdf, pdf_only, audit, dist_req, last_updated, details_scraped, evals_scraped
`

type CreateOfferingParams struct {
	CourseID        int64
	TermID          int64
	Title           string
	PrimaryNumberID int64
	Description     string
	LastUpdated     int64
}

func (q *Queries) CreateOffering(ctx context.Context, arg CreateOfferingParams) (Offering, error) {
	row := q.db.QueryRowContext(ctx, createOffering,
		arg.CourseID,
		arg.TermID,
		arg.Title,
		arg.PrimaryNumberID,
		arg.Description,
		arg.LastUpdated,
	)
	return scanOffering(row)
}

const updateOfferingListing = `-- name: UpdateOfferingListing :exec
update offering set title = ?, primary_number_id = ?, description = ?, last_updated = ?
where id = ?
`

type UpdateOfferingListingParams struct {
	Title           string
	PrimaryNumberID int64
	Description     string
	LastUpdated     int64
	ID              int64
}

func (q *Queries) UpdateOfferingListing(ctx context.Context, arg UpdateOfferingListingParams) error {
	_, err := q.db.ExecContext(ctx, updateOfferingListing,
		arg.Title,
		arg.PrimaryNumberID,
		arg.Description,
		arg.LastUpdated,
		arg.ID,
	)
	return err
}

const updateOfferingDetails = `-- name: UpdateOfferingDetails :exec
update offering set additional_info = ?, pdf = ?, pdf_only = ?, audit = ?, dist_req = ?, last_updated = ?
where id = ?
`

type UpdateOfferingDetailsParams struct {
	AdditionalInfo string
	Pdf            sql.NullBool
	PdfOnly        sql.NullBool
	Audit          sql.NullBool
	DistReq        string
	LastUpdated    int64
	ID             int64
}

func (q *Queries) UpdateOfferingDetails(ctx context.Context, arg UpdateOfferingDetailsParams) error {
	_, err := q.db.ExecContext(ctx, updateOfferingDetails,
		arg.AdditionalInfo,
		arg.Pdf,
		arg.PdfOnly,
		arg.Audit,
		arg.DistReq,
		arg.LastUpdated,
		arg.ID,
	)
	return err
}

const touchOffering = `-- name: TouchOffering :exec
update offering set last_updated = ?
where id = ?
`

type TouchOfferingParams struct {
	LastUpdated int64
	ID          int64
}

func (q *Queries) TouchOffering(ctx context.Context, arg TouchOfferingParams) error {
	_, err := q.db.ExecContext(ctx, touchOffering, arg.LastUpdated, arg.ID)
	return err
}

const setDetailsScraped = `-- name: SetDetailsScraped :exec
update offering set details_scraped = ?
where id = ?
`

type SetDetailsScrapedParams struct {
	DetailsScraped bool
	ID             int64
}

func (q *Queries) SetDetailsScraped(ctx context.Context, arg SetDetailsScrapedParams) error {
	_, err := q.db.ExecContext(ctx, setDetailsScraped, arg.DetailsScraped, arg.ID)
	return err
}

const setEvalsScraped = `-- name: SetEvalsScraped :exec
update offering set evals_scraped = ?
where id = ?
`

type SetEvalsScrapedParams struct {
	EvalsScraped bool
	ID           int64
}

func (q *Queries) SetEvalsScraped(ctx context.Context, arg SetEvalsScrapedParams) error {
	_, err := q.db.ExecContext(ctx, setEvalsScraped, arg.EvalsScraped, arg.ID)
	return err
}

const listOfferingKeys = `-- name: ListOfferingKeys :many
select term.code, course.course_id, offering.details_scraped, offering.evals_scraped
from offering
inner join term on term.id = offering.term_id
inner join course on course.id = offering.course_id
order by term.code, course.course_id
`

type ListOfferingKeysRow struct {
	TermCode       int64
	CourseID       string
	DetailsScraped bool
	EvalsScraped   bool
}

func (q *Queries) ListOfferingKeys(ctx context.Context) ([]ListOfferingKeysRow, error) {
	rows, err := q.db.QueryContext(ctx, listOfferingKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOfferingKeysRow
	for rows.Next() {
		var i ListOfferingKeysRow
		if err := rows.Scan(
			&i.TermCode,
			&i.CourseID,
			&i.DetailsScraped,
			&i.EvalsScraped,
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

const listOfferingsInTerm = `-- name: ListOfferingsInTerm :many
select ` + offeringColumns + ` from offering
where term_id = ?
order by id
`

func (q *Queries) ListOfferingsInTerm(ctx context.Context, termID int64) ([]Offering, error) {
	rows, err := q.db.QueryContext(ctx, listOfferingsInTerm, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Offering
	for rows.Next() {
		i, err := scanOffering(rows)
		if err != nil {
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

const listCrossListings = `-- name: ListCrossListings :many
select course_number.id, subject.code, course_number.number
from cross_listing
inner join course_number on course_number.id = cross_listing.course_number_id
inner join subject on subject.id = course_number.subject_id
where cross_listing.offering_id = ?
order by subject.code, course_number.number
`

type ListCrossListingsRow struct {
	CourseNumberID int64
	SubjectCode    string
	Number         string
}

func (q *Queries) ListCrossListings(ctx context.Context, offeringID int64) ([]ListCrossListingsRow, error) {
	rows, err := q.db.QueryContext(ctx, listCrossListings, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListCrossListingsRow
	for rows.Next() {
		var i ListCrossListingsRow
		if err := rows.Scan(&i.CourseNumberID, &i.SubjectCode, &i.Number); err != nil {
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

const deleteCrossListings = `-- name: DeleteCrossListings :exec
delete from cross_listing where offering_id = ?
`

func (q *Queries) DeleteCrossListings(ctx context.Context, offeringID int64) error {
	_, err := q.db.ExecContext(ctx, deleteCrossListings, offeringID)
	return err
}

const createCrossListing = `-- name: CreateCrossListing :exec
insert into cross_listing(offering_id, course_number_id) values (?, ?)
`

type CreateCrossListingParams struct {
	OfferingID     int64
	CourseNumberID int64
}

func (q *Queries) CreateCrossListing(ctx context.Context, arg CreateCrossListingParams) error {
	_, err := q.db.ExecContext(ctx, createCrossListing, arg.OfferingID, arg.CourseNumberID)
	return err
}

const listOfferingInstructors = `-- name: ListOfferingInstructors :many
select distinct instructor.id, instructor.emplid, instructor.first_name, instructor.last_name
from offering_instructor
inner join instructor on instructor.id = offering_instructor.instructor_id
where offering_instructor.offering_id = ?
order by instructor.emplid
`

func (q *Queries) ListOfferingInstructors(ctx context.Context, offeringID int64) ([]Instructor, error) {
	rows, err := q.db.QueryContext(ctx, listOfferingInstructors, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Instructor
	for rows.Next() {
		var i Instructor
		if err := rows.Scan(&i.ID, &i.Emplid, &i.FirstName, &i.LastName); err != nil {
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

const listSourceInstructorIds = `-- name: ListSourceInstructorIds :many
select instructor_id from offering_instructor
where offering_id = ? and source = ?
order by instructor_id
`

type ListSourceInstructorIdsParams struct {
	OfferingID int64
	Source     string
}

func (q *Queries) ListSourceInstructorIds(ctx context.Context, arg ListSourceInstructorIdsParams) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listSourceInstructorIds, arg.OfferingID, arg.Source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteSourceInstructors = `-- name: DeleteSourceInstructors :exec
delete from offering_instructor where offering_id = ? and source = ?
`

type DeleteSourceInstructorsParams struct {
	OfferingID int64
	Source     string
}

func (q *Queries) DeleteSourceInstructors(ctx context.Context, arg DeleteSourceInstructorsParams) error {
	_, err := q.db.ExecContext(ctx, deleteSourceInstructors, arg.OfferingID, arg.Source)
	return err
}

const createOfferingInstructor = `-- name: CreateOfferingInstructor :exec
insert into offering_instructor(offering_id, instructor_id, source) values (?, ?, ?)
`

type CreateOfferingInstructorParams struct {
	OfferingID   int64
	InstructorID int64
	Source       string
}

func (q *Queries) CreateOfferingInstructor(ctx context.Context, arg CreateOfferingInstructorParams) error {
	_, err := q.db.ExecContext(ctx, createOfferingInstructor, arg.OfferingID, arg.InstructorID, arg.Source)
	return err
}
