// Package notification delivers campaign completion reports by email.
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"time"

	"voicecampaign_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

type campaignReportData struct {
	Title          string
	Heading        string
	CampaignName   string
	TotalContacts  int
	CompletedCalls int
	NoAnswerCalls  int
	FailedCalls    int
}

// SMTPSender delivers notification emails via a direct SMTP connection
// using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a sender from the email configuration. Returns
// nil when email delivery is disabled.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	if !cfg.GetEmailEnabled() {
		return nil
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendCampaignReport emails the final call breakdown of a completed
// campaign.
func (s *SMTPSender) SendCampaignReport(ctx context.Context, toEmail, campaignName string, total, completed, noAnswer, failed int) error {
	subject := fmt.Sprintf("Campaign finished: %s", campaignName)
	content, err := renderTemplate("campaign_report.html", campaignReportData{
		Title:          subject,
		Heading:        "Campaign finished",
		CampaignName:   campaignName,
		TotalContacts:  total,
		CompletedCalls: completed,
		NoAnswerCalls:  noAnswer,
		FailedCalls:    failed,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func renderTemplate(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
