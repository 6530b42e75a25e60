package notify

import (
	"crypto/tls"
	"fmt"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"filing-processor/internal/domain"
)

// EmailAttachment pairs an attachment with its time-limited download link
// for the processed-by-email path.
type EmailAttachment struct {
	Name         string
	PageCount    int
	DownloadLink string
}

// SupportEscalationRow is one delayed submission in a support escalation.
type SupportEscalationRow struct {
	SubmissionID          string
	ConfirmationReference string
	CustomerEmail         string
	CompanyNumber         string
	SubmittedAt           string
}

// BusinessEscalationRow is one delayed submission in a business escalation,
// grouped by the address resolved from the form category.
type BusinessEscalationRow struct {
	ConfirmationReference string
	CompanyNumber         string
	FormType              string
	CustomerEmail         string
	SubmittedAt           string
}

// SameDayEscalationRow is one delayed same-day submission.
type SameDayEscalationRow struct {
	SubmissionID          string
	ConfirmationReference string
	SubmittedAt           string
	CustomerEmail         string
	CompanyNumber         string
}

// Mailer sends the pipeline's internal notices and SLA escalations over
// SMTP. Every send is fire-and-forget from the pipeline's perspective.
type Mailer struct {
	dialer     *mail.Dialer
	from       string
	internalTo string
	supportTo  string
}

func NewMailer(host string, port int, user, pass, from, internalTo, supportTo string) *Mailer {
	d := mail.NewDialer(host, port, user, pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: host}
	return &Mailer{dialer: d, from: from, internalTo: internalTo, supportTo: supportTo}
}

// SendAVFailure notifies the internal team that a submission was rejected by
// the virus scan, naming the infected files.
func (m *Mailer) SendAVFailure(sub domain.Submission, infectedFiles []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Submission %s (%s) was rejected by the virus scan.</p>", sub.ID, sub.ConfirmationReference)
	b.WriteString("<p>Infected files:</p><ul>")
	for _, name := range infectedFiles {
		fmt.Fprintf(&b, "<li>%s</li>", name)
	}
	b.WriteString("</ul>")
	subject := fmt.Sprintf("Infected file in submission %s", sub.ConfirmationReference)
	return m.send([]string{m.internalTo}, subject, b.String())
}

// SendConversionFailure notifies the internal team that document conversion
// failed, naming the failed attachments.
func (m *Mailer) SendConversionFailure(sub domain.Submission, failedFiles []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Submission %s (%s) was rejected by the document converter.</p>", sub.ID, sub.ConfirmationReference)
	b.WriteString("<p>Failed files:</p><ul>")
	for _, name := range failedFiles {
		fmt.Fprintf(&b, "<li>%s</li>", name)
	}
	b.WriteString("</ul>")
	subject := fmt.Sprintf("Conversion failed for submission %s", sub.ConfirmationReference)
	return m.send([]string{m.internalTo}, subject, b.String())
}

// SendProcessedByEmail delivers a non-examination submission to the internal
// team with a download link per attachment.
func (m *Mailer) SendProcessedByEmail(sub domain.Submission, files []EmailAttachment) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Submission %s (%s) for company %s (%s), form %s.</p>",
		sub.ID, sub.ConfirmationReference, sub.Company.Name, sub.Company.Number, sub.FormDetails.FormType)
	b.WriteString("<table><tr><th>File</th><th>Pages</th><th>Download</th></tr>")
	for _, f := range files {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td><a href=%q>download</a></td></tr>", f.Name, f.PageCount, f.DownloadLink)
	}
	b.WriteString("</table>")
	subject := fmt.Sprintf("Submission %s for processing", sub.ConfirmationReference)
	return m.send([]string{m.internalTo}, subject, b.String())
}

// SendSupportEscalation raises one support escalation covering every delayed
// standard submission.
func (m *Mailer) SendSupportEscalation(rows []SupportEscalationRow, thresholdMinutes int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>The following submissions have been processing for more than %d minutes.</p>", thresholdMinutes)
	b.WriteString("<table><tr><th>Submission</th><th>Reference</th><th>Customer</th><th>Company</th><th>Submitted</th></tr>")
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			r.SubmissionID, r.ConfirmationReference, r.CustomerEmail, r.CompanyNumber, r.SubmittedAt)
	}
	b.WriteString("</table>")
	return m.send([]string{m.supportTo}, "Delayed submissions", b.String())
}

// SendBusinessEscalation raises one business escalation to the team owning
// the submissions' form category.
func (m *Mailer) SendBusinessEscalation(to string, rows []BusinessEscalationRow, thresholdMinutes int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>The following submissions have been processing for more than %d minutes.</p>", thresholdMinutes)
	b.WriteString("<table><tr><th>Reference</th><th>Company</th><th>Form</th><th>Customer</th><th>Submitted</th></tr>")
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			r.ConfirmationReference, r.CompanyNumber, r.FormType, r.CustomerEmail, r.SubmittedAt)
	}
	b.WriteString("</table>")
	return m.send([]string{to}, "Delayed submissions requiring review", b.String())
}

// SendSameDayEscalation raises one support escalation covering every delayed
// same-day submission.
func (m *Mailer) SendSameDayEscalation(rows []SameDayEscalationRow, thresholdMinutes int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>The following same day submissions have been processing for more than %d minutes.</p>", thresholdMinutes)
	b.WriteString("<table><tr><th>Submission</th><th>Reference</th><th>Submitted</th><th>Customer</th><th>Company</th></tr>")
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			r.SubmissionID, r.ConfirmationReference, r.SubmittedAt, r.CustomerEmail, r.CompanyNumber)
	}
	b.WriteString("</table>")
	return m.send([]string{m.supportTo}, "Delayed same day submissions", b.String())
}

func (m *Mailer) send(to []string, subject, html string) error {
	var recipients []string
	for _, addr := range to {
		if addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	if m.dialer.Host == "" || m.from == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	return m.dialer.DialAndSend(msg)
}
