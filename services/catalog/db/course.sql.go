package db

import (
	"context"
	"database/sql"
)

const getCourseByCourseId = `-- name: GetCourseByCourseId :one
select id, course_id from course
where course_id = ?
`

func (q *Queries) GetCourseByCourseId(ctx context.Context, courseID string) (Course, error) {
	row := q.db.QueryRowContext(ctx, getCourseByCourseId, courseID)
	var i Course
	err := row.Scan(&i.ID, &i.CourseID)
	return i, err
}

const createCourse = `-- name: CreateCourse :one
insert into course(course_id) values (?)
returning id, course_id
`

func (q *Queries) CreateCourse(ctx context.Context, courseID string) (Course, error) {
	row := q.db.QueryRowContext(ctx, createCourse, courseID)
	var i Course
	err := row.Scan(&i.ID, &i.CourseID)
	return i, err
}

const getInstructorByEmplid = `-- name: GetInstructorByEmplid :one
select id, emplid, first_name, last_name from instructor
where emplid = ?
`

func (q *Queries) GetInstructorByEmplid(ctx context.Context, emplid string) (Instructor, error) {
	row := q.db.QueryRowContext(ctx, getInstructorByEmplid, emplid)
	var i Instructor
	err := row.Scan(&i.ID, &i.Emplid, &i.FirstName, &i.LastName)
	return i, err
}

const createInstructor = `-- name: CreateInstructor :one
insert into instructor(emplid, first_name, last_name) values (?, ?, ?)
returning id, emplid, first_name, last_name
`

type CreateInstructorParams struct {
	Emplid    string
	FirstName string
	LastName  string
}

func (q *Queries) CreateInstructor(ctx context.Context, arg CreateInstructorParams) (Instructor, error) {
	row := q.db.QueryRowContext(ctx, createInstructor, arg.Emplid, arg.FirstName, arg.LastName)
	var i Instructor
	err := row.Scan(&i.ID, &i.Emplid, &i.FirstName, &i.LastName)
	return i, err
}

const getCourseNumber = `-- name: GetCourseNumber :one
select id, subject_id, number, offering_id from course_number
where subject_id = ? and number = ?
`

type GetCourseNumberParams struct {
	SubjectID int64
	Number    string
}

func (q *Queries) GetCourseNumber(ctx context.Context, arg GetCourseNumberParams) (CourseNumber, error) {
	row := q.db.QueryRowContext(ctx, getCourseNumber, arg.SubjectID, arg.Number)
	var i CourseNumber
	err := row.Scan(&i.ID, &i.SubjectID, &i.Number, &i.OfferingID)
	return i, err
}

const createCourseNumber = `-- name: CreateCourseNumber :one
insert into course_number(subject_id, number) values (?, ?)
returning id, subject_id, number, offering_id
`

type CreateCourseNumberParams struct {
	SubjectID int64
	Number    string
}

func (q *Queries) CreateCourseNumber(ctx context.Context, arg CreateCourseNumberParams) (CourseNumber, error) {
	row := q.db.QueryRowContext(ctx, createCourseNumber, arg.SubjectID, arg.Number)
	var i CourseNumber
	err := row.Scan(&i.ID, &i.SubjectID, &i.Number, &i.OfferingID)
	return i, err
}

const setCourseNumberOffering = `-- name: SetCourseNumberOffering :exec
update course_number set offering_id = ?
where id = ?
`

type SetCourseNumberOfferingParams struct {
	OfferingID sql.NullInt64
	ID         int64
}

func (q *Queries) SetCourseNumberOffering(ctx context.Context, arg SetCourseNumberOfferingParams) error {
	_, err := q.db.ExecContext(ctx, setCourseNumberOffering, arg.OfferingID, arg.ID)
	return err
}

const getCourseNumberByID = `-- name: GetCourseNumberByID :one
select course_number.id, subject.code, course_number.number, course_number.offering_id
from course_number
inner join subject on subject.id = course_number.subject_id
where course_number.id = ?
`

type GetCourseNumberByIDRow struct {
	ID          int64
	SubjectCode string
	Number      string
	OfferingID  sql.NullInt64
}

func (q *Queries) GetCourseNumberByID(ctx context.Context, id int64) (GetCourseNumberByIDRow, error) {
	row := q.db.QueryRowContext(ctx, getCourseNumberByID, id)
	var i GetCourseNumberByIDRow
	err := row.Scan(&i.ID, &i.SubjectCode, &i.Number, &i.OfferingID)
	return i, err
}
