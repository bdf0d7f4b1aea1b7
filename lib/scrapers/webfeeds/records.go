package webfeeds

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Number holds a numeric feed field. The feed is inconsistent about
// quoting numbers and sometimes leaves them empty, all three forms are
// accepted here and validated later.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	err := json.Unmarshal(data, &num)
	if err != nil {
		return err
	}
	*n = Number(num)
	return nil
}

func (n Number) String() string {
	return string(n)
}

type document struct {
	Terms []TermRecord `json:"term"`
}

type TermRecord struct {
	Code      Number          `json:"code"`
	Suffix    string          `json:"suffix"`
	Name      string          `json:"name"`
	CalName   string          `json:"cal_name"`
	RegName   string          `json:"reg_name"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Subjects  []SubjectRecord `json:"subjects"`
}

type SubjectRecord struct {
	Code    string         `json:"code"`
	Name    string         `json:"name"`
	Courses []CourseRecord `json:"courses"`
}

type CourseRecord struct {
	Guid          string             `json:"guid"`
	CourseId      string             `json:"course_id"`
	CatalogNumber string             `json:"catalog_number"`
	Title         string             `json:"title"`
	Detail        CourseDetail       `json:"detail"`
	Instructors   []InstructorRecord `json:"instructors"`
	Crosslistings []CrosslistRecord  `json:"crosslistings"`
	Classes       []ClassRecord      `json:"classes"`

	// filled in by the client from the enclosing term and subject
	TermCode    string `json:"-"`
	TermName    string `json:"-"`
	SubjectCode string `json:"-"`
	SubjectName string `json:"-"`
}

type CourseDetail struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Track       string `json:"track"`
	Description string `json:"description"`
}

type InstructorRecord struct {
	Emplid    string `json:"emplid"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

type CrosslistRecord struct {
	Subject       string `json:"subject"`
	CatalogNumber string `json:"catalog_number"`
}

type ClassRecord struct {
	ClassNumber Number   `json:"class_number"`
	Section     string   `json:"section"`
	Status      string   `json:"status"`
	TypeName    string   `json:"type_name"`
	Capacity    Number   `json:"capacity"`
	Enrollment  Number   `json:"enrollment"`
	Schedule    Schedule `json:"schedule"`
}

type Schedule struct {
	Meetings []MeetingRecord `json:"meetings"`
}

type Building struct {
	Name string `json:"name"`
}

type MeetingRecord struct {
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Days      []string `json:"days"`
	Room      string   `json:"room"`
	Building  Building `json:"building"`
}
