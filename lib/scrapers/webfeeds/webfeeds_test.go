package webfeeds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"easypce-backend/lib/scrapers/core"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type feedServer struct {
	mutex    sync.Mutex
	requests []map[string]string
}

func (s *feedServer) Requests() []map[string]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.requests
}

func (s *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.mutex.Lock()
	s.requests = append(s.requests, map[string]string{
		"term":    query.Get("term"),
		"subject": query.Get("subject"),
		"fmt":     query.Get("fmt"),
	})
	s.mutex.Unlock()

	var fixture string
	switch {
	case query.Get("term") == "9999":
		w.WriteHeader(http.StatusNotFound)
		return
	case query.Get("term") == "garbage":
		w.Write([]byte("<html>not json</html>"))
		return
	case query.Get("subject") == "list":
		fixture = "subjects.json"
	case query.Get("subject") != "":
		fixture = "courses.json"
	default:
		fixture = "terms.json"
	}
	contents, err := os.ReadFile(filepath.Join("testdata", fixture))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "application/json")
	w.Write(contents)
}

func setup(t testing.TB) (*Client, *feedServer) {
	handler := &feedServer{}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, core.ClientOptions{}), handler
}

func TestTerms(t *testing.T) {
	client, server := setup(t)

	terms, err := client.Terms(context.Background(), AllTerms)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	require.Equal(t, "1172", terms[0].Code.String())
	require.Equal(t, "1164", terms[1].Code.String())
	require.Equal(t, "SU2016", terms[1].Suffix)
	require.Equal(t, "2016-06-01", terms[1].StartDate)

	require.Equal(t, []map[string]string{
		{"term": "all", "subject": "", "fmt": "json"},
	}, server.Requests())
}

func TestSubjectsDeduplicated(t *testing.T) {
	client, _ := setup(t)

	subjects, err := client.Subjects(context.Background(), AllTerms)
	require.NoError(t, err)

	expected := []SubjectRecord{
		{Code: "COS", Name: "Computer Science"},
		{Code: "EGR", Name: "Engineering"},
		{Code: "MAT", Name: "Mathematics"},
	}
	if diff := cmp.Diff(expected, subjects); diff != "" {
		t.Fatal(diff)
	}
}

func TestCourses(t *testing.T) {
	client, server := setup(t)

	courses, err := client.Courses(context.Background(), "1172", "COS")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, []map[string]string{
		{"term": "1172", "subject": "COS", "fmt": "json"},
	}, server.Requests())

	course := courses[0]
	require.Equal(t, "002051", course.CourseId)
	require.Equal(t, "1172", course.TermCode)
	require.Equal(t, "COS", course.SubjectCode)
	require.Equal(t, "Computer Science", course.SubjectName)
	require.Equal(t, []CrosslistRecord{{Subject: "EGR", CatalogNumber: "217"}}, course.Crosslistings)
	require.Equal(t, "Dondero", course.Instructors[0].LastName)

	require.Len(t, course.Classes, 1)
	class := course.Classes[0]
	require.Equal(t, "41019", class.ClassNumber.String())
	require.Equal(t, "180", class.Capacity.String())
	require.Equal(t, []string{"M", "W"}, class.Schedule.Meetings[0].Days)
	require.Equal(t, "Friend Center", class.Schedule.Meetings[0].Building.Name)
}

func TestNotFoundIsEmpty(t *testing.T) {
	client, _ := setup(t)

	courses, err := client.Courses(context.Background(), "9999", "COS")
	require.NoError(t, err)
	require.Empty(t, courses)

	terms, err := client.Terms(context.Background(), "9999")
	require.NoError(t, err)
	require.Empty(t, terms)
}

func TestMalformed(t *testing.T) {
	client, _ := setup(t)

	_, err := client.Terms(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrMalformed)
	require.False(t, core.IsRetryable(err))
}

func TestNumberForms(t *testing.T) {
	var out struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 12, "b": " 34 ", "c": "", "d": null}`), &out)
	require.NoError(t, err)
	require.Equal(t, Number("12"), out.A)
	require.Equal(t, Number("34"), out.B)
	require.Equal(t, Number(""), out.C)
	require.Equal(t, Number(""), out.D)
}
