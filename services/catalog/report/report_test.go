package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"easypce-backend/lib/testutil"
	"easypce-backend/services/catalog/pipeline"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func sampleReport() pipeline.Report {
	started := time.Date(2017, time.February, 1, 12, 0, 0, 0, time.UTC)
	return pipeline.Report{
		RunId:    "a1b2c3d4e5",
		Started:  started,
		Finished: started.Add(90 * time.Second),
		Units: []pipeline.Unit{
			{
				Id:       1,
				Kind:     pipeline.KindMeta,
				State:    pipeline.Succeeded,
				Attempts: 1,
				Started:  started,
				Finished: started.Add(2 * time.Second),
				Notes:    []string{"1 new terms, 2 new subjects"},
			},
			{
				Id:        2,
				Kind:      pipeline.KindCoursesInSubject,
				TermCode:  1174,
				Subject:   "EGR",
				DependsOn: []int{1},
				State:     pipeline.Failed,
				Attempts:  3,
				Started:   started.Add(2 * time.Second),
				Finished:  started.Add(10 * time.Second),
				Err:       errors.New("transport failure: GET courses: connection reset"),
			},
			{
				Id:       3,
				Kind:     pipeline.KindDetails,
				TermCode: 1174,
				CourseId: "002051",
				State:    pipeline.Cancelled,
			},
		},
	}
}

func TestSummary(t *testing.T) {
	require.Equal(
		t,
		"run a1b2c3d4e5: 3 units, 1 succeeded, 1 failed, 1 cancelled in 1m30s",
		Summary(sampleReport()),
	)
}

func TestRender(t *testing.T) {
	out := &bytes.Buffer{}
	Render(out, sampleReport(), Options{})
	rendered := out.String()

	require.Contains(t, rendered, "1174/EGR")
	require.Contains(t, rendered, "1174/002051")
	require.Contains(t, rendered, "connection reset")
	require.Contains(t, rendered, "(1 notes)")
	require.NotContains(t, rendered, "new subjects")

	out.Reset()
	Render(out, sampleReport(), Options{FailuresOnly: true, Verbose: true})
	rendered = out.String()
	require.NotContains(t, rendered, "meta")
	require.Contains(t, rendered, "cancelled")
}

func TestConfigEnabled(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.False(t, Config{Smtp: SmtpConfig{Server: "localhost"}}.Enabled())
	require.True(t, Config{Smtp: SmtpConfig{Server: "localhost"}, Recipients: []string{"a@b.c"}}.Enabled())
}

func TestMailerSend(t *testing.T) {
	testutil.SetupService(t, testutil.ServiceParams{Name: "report"})
	ctx := context.Background()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	smtp, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	if err != nil {
		t.Skipf("no container provider: %v", err)
	}
	t.Cleanup(func() {
		err := smtp.Terminate(context.Background())
		if err != nil {
			t.Error(err)
		}
	})

	host, err := smtp.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := smtp.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := smtp.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	mailer := NewMailer(Config{
		Smtp: SmtpConfig{
			Server:       host,
			Port:         smtpPort.Int(),
			EmailAddress: "scraper@example.com",
			Password:     "default",
		},
		Recipients: []string{"maintainers@example.com"},
	})
	err = mailer.Send(ctx, sampleReport())
	require.NoError(t, err)

	res, err := resty.New().R().
		SetContext(ctx).
		Get(fmt.Sprintf("http://%s:%d/api/emails", host, webPort.Int()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "Catalog scrape a1b2c3d4e5: 1 failed of 3")
}
