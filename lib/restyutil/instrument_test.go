package restyutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain")
		fmt.Fprintf(w, "hello %s", r.URL.Query().Get("name"))
	}))
	defer server.Close()

	output := NewMemoryOutput()
	client := resty.New()
	InstrumentClient(client, nil, output)

	for _, name := range []string{"first", "second"} {
		res, err := client.R().
			SetQueryParam("name", name).
			Get(server.URL)
		require.NoError(t, err)
		require.Equal(t, "hello "+name, res.String())
	}

	require.Len(t, output.Messages, 2)
	message := output.Messages["2"]
	require.True(t, strings.HasPrefix(message, "---- REQUEST ----"))
	require.Contains(t, message, "name=second")
	require.Contains(t, message, "---- RESPONSE ----")
	require.Contains(t, message, "200")
	require.Contains(t, message, "hello second")
}

func TestFormatHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Add("B", "2")
	headers.Add("A", "1")
	headers.Add("A", "3")
	require.Equal(t, "A: 1\nA: 3\nB: 2", formatHeaders(headers))
	require.Equal(t, "", formatHeaders(http.Header{}))
}
