package db

import (
	"context"
	"database/sql"
)

const listSections = `-- name: ListSections :many
select id, offering_id, class_id, name, type, status, enrollment, capacity from section
where offering_id = ?
order by class_id
`

func (q *Queries) ListSections(ctx context.Context, offeringID int64) ([]Section, error) {
	rows, err := q.db.QueryContext(ctx, listSections, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Section
	for rows.Next() {
		var i Section
		if err := rows.Scan(
			&i.ID,
			&i.OfferingID,
			&i.ClassID,
			&i.Name,
			&i.Type,
			&i.Status,
			&i.Enrollment,
			&i.Capacity,
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

const createSection = `-- name: CreateSection :one
insert into section(offering_id, class_id, name, type, status, enrollment, capacity)
values (?, ?, ?, ?, ?, ?, ?)
returning id
`

type CreateSectionParams struct {
	OfferingID int64
	ClassID    string
	Name       string
	Type       string
	Status     string
	Enrollment int64
	Capacity   int64
}

func (q *Queries) CreateSection(ctx context.Context, arg CreateSectionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createSection,
		arg.OfferingID,
		arg.ClassID,
		arg.Name,
		arg.Type,
		arg.Status,
		arg.Enrollment,
		arg.Capacity,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const deleteSections = `-- name: DeleteSections :exec
delete from section where offering_id = ?
`

func (q *Queries) DeleteSections(ctx context.Context, offeringID int64) error {
	_, err := q.db.ExecContext(ctx, deleteSections, offeringID)
	return err
}

const listRegistrarClasses = `-- name: ListRegistrarClasses :many
select offering_id, class_id, enrollment, capacity, status from registrar_class
where offering_id = ?
order by class_id
`

func (q *Queries) ListRegistrarClasses(ctx context.Context, offeringID int64) ([]RegistrarClass, error) {
	rows, err := q.db.QueryContext(ctx, listRegistrarClasses, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RegistrarClass
	for rows.Next() {
		var i RegistrarClass
		if err := rows.Scan(
			&i.OfferingID,
			&i.ClassID,
			&i.Enrollment,
			&i.Capacity,
			&i.Status,
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

const deleteRegistrarClasses = `-- name: DeleteRegistrarClasses :exec
delete from registrar_class where offering_id = ?
`

func (q *Queries) DeleteRegistrarClasses(ctx context.Context, offeringID int64) error {
	_, err := q.db.ExecContext(ctx, deleteRegistrarClasses, offeringID)
	return err
}

const createRegistrarClass = `-- name: CreateRegistrarClass :exec
insert into registrar_class(offering_id, class_id, enrollment, capacity, status)
values (?, ?, ?, ?, ?)
`

type CreateRegistrarClassParams struct {
	OfferingID int64
	ClassID    string
	Enrollment sql.NullInt64
	Capacity   sql.NullInt64
	Status     sql.NullString
}

func (q *Queries) CreateRegistrarClass(ctx context.Context, arg CreateRegistrarClassParams) error {
	_, err := q.db.ExecContext(ctx, createRegistrarClass,
		arg.OfferingID,
		arg.ClassID,
		arg.Enrollment,
		arg.Capacity,
		arg.Status,
	)
	return err
}

const listMeetingsForOffering = `-- name: ListMeetingsForOffering :many
select meeting.id, meeting.section_id, meeting.start_time, meeting.end_time, meeting.days, meeting.location
from meeting
inner join section on section.id = meeting.section_id
where section.offering_id = ?
order by section.class_id, meeting.start_time, meeting.days, meeting.end_time, meeting.location
`

func (q *Queries) ListMeetingsForOffering(ctx context.Context, offeringID int64) ([]Meeting, error) {
	rows, err := q.db.QueryContext(ctx, listMeetingsForOffering, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Meeting
	for rows.Next() {
		var i Meeting
		if err := rows.Scan(
			&i.ID,
			&i.SectionID,
			&i.StartTime,
			&i.EndTime,
			&i.Days,
			&i.Location,
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

const createMeeting = `-- name: CreateMeeting :exec
insert into meeting(section_id, start_time, end_time, days, location)
values (?, ?, ?, ?, ?)
`

type CreateMeetingParams struct {
	SectionID int64
	StartTime string
	EndTime   string
	Days      int64
	Location  string
}

func (q *Queries) CreateMeeting(ctx context.Context, arg CreateMeetingParams) error {
	_, err := q.db.ExecContext(ctx, createMeeting,
		arg.SectionID,
		arg.StartTime,
		arg.EndTime,
		arg.Days,
		arg.Location,
	)
	return err
}

const deleteMeetingsForOffering = `-- name: DeleteMeetingsForOffering :exec
delete from meeting
where section_id in (select id from section where offering_id = ?)
`

func (q *Queries) DeleteMeetingsForOffering(ctx context.Context, offeringID int64) error {
	_, err := q.db.ExecContext(ctx, deleteMeetingsForOffering, offeringID)
	return err
}
