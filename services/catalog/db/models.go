package db

import (
	"database/sql"
)

type Term struct {
	ID        int64
	Code      int64
	Suffix    string
	Name      string
	StartDate string
	EndDate   string
}

type Subject struct {
	ID   int64
	Code string
	Name string
}

type Course struct {
	ID       int64
	CourseID string
}

type Instructor struct {
	ID        int64
	Emplid    string
	FirstName string
	LastName  string
}

type CourseNumber struct {
	ID         int64
	SubjectID  int64
	Number     string
	OfferingID sql.NullInt64
}

type Offering struct {
	ID              int64
	CourseID        int64
	TermID          int64
	Title           string
	PrimaryNumberID int64
	Description     string
	AdditionalInfo  string
	Pdf             sql.NullBool
	PdfOnly         sql.NullBool
	Audit           sql.NullBool
	DistReq         string
	LastUpdated     int64
	DetailsScraped  bool
	EvalsScraped    bool
}

type Section struct {
	ID         int64
	OfferingID int64
	ClassID    string
	Name       string
	Type       string
	Status     string
	Enrollment int64
	Capacity   int64
}

type RegistrarClass struct {
	OfferingID int64
	ClassID    string
	Enrollment sql.NullInt64
	Capacity   sql.NullInt64
	Status     sql.NullString
}

type Meeting struct {
	ID        int64
	SectionID int64
	StartTime string
	EndTime   string
	Days      int64
	Location  string
}

type Evaluation struct {
	ID         int64
	OfferingID int64
	Label      string
	Average    float64
}

type Advice struct {
	ID         int64
	OfferingID int64
	Position   int64
	Text       string
}
