package notification

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"ans-review/internal/config"
	"ans-review/internal/models"
)

// Service delivers notifications over SMTP. When disabled it logs and
// reports success, so schedulers and handlers need no special casing.
type Service struct {
	config *config.NotificationConfig
}

// NewService creates a new notification service
func NewService(cfg *config.NotificationConfig) *Service {
	return &Service{config: cfg}
}

// thresholdSubjects maps escalation thresholds to subject lines
var thresholdSubjects = map[string]string{
	models.ThresholdSevenDaysBefore: "Corrective action plan due in 7 days",
	models.ThresholdOneDayBefore:    "Corrective action plan due tomorrow",
	models.ThresholdDueToday:        "Corrective action plan due today",
	models.ThresholdOverdue:         "Corrective action plan overdue",
	models.ThresholdMilestoneLate:   "Corrective action plan milestone overdue",
}

// SendEscalationNotice notifies recipients about a deadline threshold
// crossing.
func (s *Service) SendEscalationNotice(to []string, event *models.EscalationEvent) error {
	subject, ok := thresholdSubjects[event.Threshold]
	if !ok {
		subject = "Corrective action plan deadline notice"
	}

	deadline := "due date"
	if event.MilestoneID != nil {
		deadline = "milestone target date"
	}

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>%s</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #c0392b;">%s</h2>
        <p>Finding: <strong>%s</strong> (%s)</p>
        <p>Organization: %s</p>
        <p>The %s is %s (%d days remaining).</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s/caps/%d" style="background-color: #c0392b; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open Plan</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>
`, subject, subject, event.FindingTitle, event.FindingSeverity, event.OrganizationName,
		deadline, event.DueDate.Format("2006-01-02"), event.DaysRemaining,
		s.config.BaseURL, event.PlanID)

	return s.sendEmail(to, subject, body)
}

// SendOverrideIssuedNotice notifies recipients that a conflict override was
// issued for a reviewer.
func (s *Service) SendOverrideIssuedNotice(to []string, reviewerName, orgName, justification string) error {
	subject := "Conflict of interest override issued"

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>%s</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4a90e2;">%s</h2>
        <p>An override has been issued allowing <strong>%s</strong> to serve on a review of <strong>%s</strong> despite a declared conflict warning.</p>
        <p>Justification: %s</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>
`, subject, subject, reviewerName, orgName, justification)

	return s.sendEmail(to, subject, body)
}

func (s *Service) sendEmail(to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	if !s.config.Enabled || s.config.SMTPHost == "" {
		slog.Info("notification suppressed", "subject", subject, "recipients", len(to))
		return nil
	}

	headers := make(map[string]string)
	headers["From"] = s.config.SMTPFrom
	headers["To"] = strings.Join(to, ", ")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message bytes.Buffer
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	// Local catchers like Mailpit accept mail without authentication.
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", recipient, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := wc.Write(message.Bytes()); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finalize message: %w", err)
	}

	slog.Info("notification sent", "subject", subject, "recipients", len(to))
	return nil
}
