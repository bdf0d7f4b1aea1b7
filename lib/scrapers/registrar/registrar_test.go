package registrar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"easypce-backend/lib/scrapers/core"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func readFixture(t testing.TB, name string) *goquery.Document {
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestParseEnrollment(t *testing.T) {
	testCases := []struct {
		input    string
		expected Enrollment
	}{
		{"Enrolled: 42 Limit: 50", Enrollment{Count: 42, Max: 50}},
		{"Limit: 50", Enrollment{Count: Unknown, Max: 50}},
		{"Enrolled:7", Enrollment{Count: 7, Max: Unknown}},
		{"Enrolled:\n0\nLimit:\t12", Enrollment{Count: 0, Max: 12}},
		{"", Enrollment{Count: Unknown, Max: Unknown}},
		{"Limit: none", Enrollment{Count: Unknown, Max: Unknown}},
	}
	for _, test := range testCases {
		t.Run(test.input, func(t *testing.T) {
			require.Equal(t, test.expected, ParseEnrollment(test.input))
		})
	}
}

func TestParseDetails(t *testing.T) {
	record := ParseDetails(context.Background(), readFixture(t, "details.html"))

	require.True(t, record.Found)
	require.Equal(
		t,
		"<p><strong>Sample reading list:</strong> The C Programming Language</p>\n  <p>Other information: Lab every week.</p>",
		record.AdditionalInfo,
	)
	require.Equal(t, "QR", record.DistReq)
	require.Equal(t, []InstructorRef{
		{Emplid: "010004997", Name: "Robert M. Dondero"},
		{Emplid: "960041234", Name: "Xiaoyan Li"},
	}, record.Instructors)

	require.NotNil(t, record.Audit)
	require.True(t, *record.Audit)
	require.NotNil(t, record.Pdf)
	require.True(t, *record.Pdf)
	require.Nil(t, record.PdfOnly)

	expected := []ClassRow{
		{
			ClassId:    "41019",
			Section:    "L01",
			Time:       "10:00 am - 10:50 am",
			Days:       "M W",
			Room:       "Friend Center 101",
			Enrollment: Enrollment{Count: 160, Max: 180},
			Status:     "Open",
		},
		{
			ClassId:    "41020",
			Section:    "P01",
			Time:       "1:30 pm - 2:20 pm",
			Days:       "Th",
			Room:       "CS 105",
			Enrollment: Enrollment{Count: Unknown, Max: 18},
			Status:     "Closed",
		},
	}
	if diff := cmp.Diff(expected, record.Classes); diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, 1, record.RejectedRows)
}

func TestParseDetailsDegrades(t *testing.T) {
	record := ParseDetails(context.Background(), readFixture(t, "details_sparse.html"))
	require.Equal(t, DetailRecord{Found: true}, record)

	record = ParseDetails(context.Background(), readFixture(t, "details_no_audit.html"))
	require.Empty(t, record.AdditionalInfo)
	require.Empty(t, record.Classes)
	require.Empty(t, record.DistReq)
	require.False(t, *record.Audit)
	require.False(t, *record.Pdf)
	require.Nil(t, record.PdfOnly)

	record = ParseDetails(context.Background(), readFixture(t, "details_pdf_only.html"))
	require.Empty(t, record.DistReq)
	require.False(t, *record.Audit)
	require.True(t, *record.Pdf)
	require.True(t, *record.PdfOnly)
}

func TestCourseDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("term") != "1172" || query.Get("courseid") != "002051" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, filepath.Join("testdata", "details.html"))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/course_details.xml", core.ClientOptions{})

	record, err := client.CourseDetails(context.Background(), "1172", "002051")
	require.NoError(t, err)
	require.True(t, record.Found)
	require.Len(t, record.Classes, 2)

	record, err = client.CourseDetails(context.Background(), "1172", "000000")
	require.NoError(t, err)
	require.False(t, record.Found)
}
