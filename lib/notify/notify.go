// Package notify mails a summary of a finished batch run.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"cetracker/lib/compliance"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.notify")

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

// Enabled reports whether enough is configured to send mail.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && c.EmailAddress != "" && len(c.Recipients) > 0
}

// Summary is what a run reports once it has finished.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Records    [][]compliance.Record
	Results    []compliance.RunResult
}

type Mailer struct {
	Config SmtpConfig
	// Policy classifies records, nil means compliance.DefaultRiskPolicy.
	Policy compliance.RiskPolicy
}

func (m Mailer) policy() compliance.RiskPolicy {
	if m.Policy == nil {
		return compliance.DefaultRiskPolicy
	}
	return m.Policy
}

// Subject is the subject line of the summary mail.
func (m Mailer) Subject(s Summary) string {
	counts := map[compliance.Status]int{}
	for _, res := range s.Results {
		counts[res.Status]++
	}
	failed := counts[compliance.StatusFailed] + counts[compliance.StatusLoginError]
	return fmt.Sprintf(
		"CE compliance run %s: %d succeeded, %d failed",
		s.StartedAt.Format(time.DateOnly),
		counts[compliance.StatusSuccess],
		failed,
	)
}

// Body renders the plain text of the summary mail. Only records that need
// attention are listed.
func (m Mailer) Body(s Summary) string {
	policy := m.policy()
	now := s.FinishedAt

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished at %s.\n\n", s.RunID, s.FinishedAt.Format(time.DateTime))

	records := table.NewWriter()
	records.SetStyle(table.StyleDefault)
	records.AppendHeader(table.Row{"Provider", "Site", "License", "Deadline", "Remaining", "Risk"})
	attention := 0
	for _, group := range s.Records {
		for _, r := range group {
			if r.IsPlaceholder() {
				continue
			}
			risk := policy(r, now)
			if risk != compliance.RiskAtRisk && risk != compliance.RiskOverdue {
				continue
			}
			attention++
			records.AppendRow(table.Row{
				r.ProviderName,
				r.SiteID,
				strings.TrimSpace(r.CredentialType + " " + r.CredentialNumber),
				r.RenewalDeadline,
				formatHours(r.HoursRemaining),
				string(risk),
			})
		}
	}
	if attention == 0 {
		b.WriteString("No licenses are at risk.\n")
	} else {
		fmt.Fprintf(&b, "%d licenses need attention:\n\n", attention)
		b.WriteString(records.Render())
		b.WriteString("\n")
	}

	failures := table.NewWriter()
	failures.SetStyle(table.StyleDefault)
	failures.AppendHeader(table.Row{"Provider", "Site", "Status", "Error"})
	failed := 0
	for _, res := range s.Results {
		if res.Status != compliance.StatusFailed && res.Status != compliance.StatusLoginError {
			continue
		}
		failed++
		failures.AppendRow(table.Row{res.ProviderID, res.SiteID, string(res.Status), res.Error})
	}
	if failed > 0 {
		fmt.Fprintf(&b, "\n%d sites could not be read:\n\n", failed)
		b.WriteString(failures.Render())
		b.WriteString("\n")
	}

	return b.String()
}

func formatHours(h *float64) string {
	if h == nil {
		return "?"
	}
	return fmt.Sprintf("%g", *h)
}

// Send mails the summary to every configured recipient.
func (m Mailer) Send(ctx context.Context, s Summary) error {
	ctx, span := tracer.Start(ctx, "notify:Send")
	defer span.End()

	if !m.Config.Enabled() {
		return fmt.Errorf("smtp is not configured")
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("CE Tracker <%s>", m.Config.EmailAddress)
	mail.To = m.Config.Recipients
	mail.Subject = m.Subject(s)
	mail.Text = []byte(m.Body(s))

	addr := fmt.Sprintf("%s:%d", m.Config.Server, m.Config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", m.Config.EmailAddress, m.Config.Password, m.Config.Server))
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
