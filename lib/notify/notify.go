// Package notify sends operator email for events worth leaving the
// dashboard for: a plan change finishing, or the account balance dipping
// below a floor.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/jordan-wright/email"
)

var tracer = otel.Tracer("lib/notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Notifier struct {
	smtp SmtpConfig
	to   []string
}

// NewNotifier returns a disabled notifier (every send is a no-op) when
// the smtp server or recipient list is empty.
func NewNotifier(config SmtpConfig, to []string) Notifier {
	return Notifier{smtp: config, to: to}
}

func (n Notifier) Enabled() bool {
	return n.smtp.Server != "" && len(n.to) > 0
}

func (n Notifier) PlanChangeComplete(ctx context.Context, serviceTitle, planLabel string) error {
	body := fmt.Sprintf(`The plan change on %q has finished applying.

Current plan: %s`, serviceTitle, planLabel)
	return n.send(ctx, fmt.Sprintf("%s: plan change complete", serviceTitle), body)
}

func (n Notifier) LowBalance(ctx context.Context, serviceTitle string, balance, floor float64) error {
	body := fmt.Sprintf(`The account balance for %q is $%.2f, below the configured floor of $%.2f.

Top up before the service is paused.`, serviceTitle, balance, floor)
	return n.send(ctx, fmt.Sprintf("%s: low balance", serviceTitle), body)
}

func (n Notifier) send(ctx context.Context, subject, body string) error {
	if !n.Enabled() {
		return nil
	}

	_, span := tracer.Start(ctx, "notifier:send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Launtel Watch <%s>", n.smtp.EmailAddress)
	mail.To = n.to
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.smtp.Server, n.smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth("", n.smtp.EmailAddress, n.smtp.Password, n.smtp.Server))
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
