package report

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"easypce-backend/lib/telemetry"
	"easypce-backend/services/catalog/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("easypce.services.catalog.report")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Config struct {
	Smtp       SmtpConfig `json:"smtp"`
	Recipients []string   `json:"recipients"`
}

// Enabled reports whether there is anyone to send a report to.
func (c Config) Enabled() bool {
	return c.Smtp.Server != "" && len(c.Recipients) > 0
}

type Mailer struct {
	config Config
}

func NewMailer(config Config) Mailer {
	return Mailer{config: config}
}

func (m Mailer) compose(r pipeline.Report) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Catalog Scraper <%s>", m.config.Smtp.EmailAddress)
	mail.To = m.config.Recipients
	mail.Subject = fmt.Sprintf(
		"Catalog scrape %s: %d failed of %d",
		r.RunId, r.Count(pipeline.Failed), len(r.Units),
	)

	body := &strings.Builder{}
	body.WriteString(Summary(r))
	body.WriteString("\n\n")
	if r.Count(pipeline.Failed)+r.Count(pipeline.Cancelled) > 0 {
		body.WriteString(Table(r, Options{FailuresOnly: true, Style: table.StyleLight}).Render())
		body.WriteString("\n")
	}
	mail.Text = []byte(body.String())
	return mail
}

// Send mails the report to the configured recipients, falling back to an
// unauthenticated session when the server does not offer AUTH.
func (m Mailer) Send(ctx context.Context, r pipeline.Report) error {
	ctx, span := tracer.Start(ctx, "Send")
	defer span.End()

	mail := m.compose(r)
	addr := fmt.Sprintf("%s:%d", m.config.Smtp.Server, m.config.Smtp.Port)

	err := mail.Send(
		addr,
		smtp.PlainAuth("", m.config.Smtp.EmailAddress, m.config.Smtp.Password, m.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
