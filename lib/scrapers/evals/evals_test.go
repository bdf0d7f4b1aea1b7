package evals

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

var expectedStats = Stats{
	{Label: "Overall Quality of the Course", Value: 4.41},
	{Label: "Lectures", Value: 4.2},
	{Label: "Readings", Value: 3.9},
}

func TestParse(t *testing.T) {
	stats, comments := Parse(context.Background(), readFixture(t, "evals.html"))
	if diff := cmp.Diff(expectedStats, stats); diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, []string{
		"Great course, start the assignments early.",
		"Precepts were\n very helpful.",
		"",
	}, comments)
}

func TestParseFiveTables(t *testing.T) {
	stats, comments := Parse(context.Background(), readFixture(t, "evals_five_tables.html"))
	require.Len(t, stats, 3)
	require.Empty(t, comments)
}

func TestParseDegrades(t *testing.T) {
	for _, name := range []string{
		"evals_no_chart.html",
		"evals_mismatched.html",
		"evals_corrupt.html",
	} {
		t.Run(name, func(t *testing.T) {
			stats, comments := Parse(context.Background(), readFixture(t, name))
			require.Empty(t, stats)
			require.Empty(t, comments)
		})
	}
}

func TestParseDropsBadValues(t *testing.T) {
	stats, _ := Parse(context.Background(), readFixture(t, "evals_not_finite.html"))
	require.Equal(t, Stats{{Label: "Lectures", Value: 4}}, stats)
}

func TestEvaluations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("terminfo") == "1172" && query.Get("courseinfo") == "002051":
			http.ServeFile(w, r, filepath.Join("testdata", "evals.html"))
		case query.Get("courseinfo") == "500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/chart/index.php", core.ClientOptions{})

	stats, comments, err := client.Evaluations(context.Background(), "1172", "002051")
	require.NoError(t, err)
	require.Len(t, stats, 3)
	require.Len(t, comments, 3)

	stats, comments, err = client.Evaluations(context.Background(), "1172", "000000")
	require.NoError(t, err)
	require.Empty(t, stats)
	require.Empty(t, comments)

	_, _, err = client.Evaluations(context.Background(), "1172", "500")
	require.True(t, core.IsRetryable(err))
}
