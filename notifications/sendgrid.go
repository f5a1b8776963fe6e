package notifications

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	templates "github.com/linesmerrill/esg-identity-api/templates/html"
)

// SendGridSender delivers invitation emails through SendGrid
type SendGridSender struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

// NewSendGridSender creates a sender for the given api key and from address
func NewSendGridSender(apiKey, fromName, fromAddr string) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

// NotifyInvitation sends one invitation email. ctx bounds the request.
func (s *SendGridSender) NotifyInvitation(ctx context.Context, details InvitationDetails) Outcome {
	message := buildInvitationMessage(s.fromName, s.fromAddr, details)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return Outcome{Delivered: false, Reason: err.Error()}
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return Outcome{Delivered: true, StatusCode: response.StatusCode}
	}
	return Outcome{
		Delivered:  false,
		StatusCode: response.StatusCode,
		Reason:     fmt.Sprintf("sendgrid returned status %d", response.StatusCode),
	}
}

func buildInvitationMessage(fromName, fromAddr string, details InvitationDetails) *mail.SGMailV3 {
	data := templates.InvitationEmailData{
		Email:          details.Email,
		Role:           details.Role,
		Portal:         details.Portal,
		InvitationCode: details.InvitationCode,
		AcceptURL:      details.AcceptURL,
		ExpiresAt:      details.ExpiresAt,
		Resend:         details.Resend,
	}
	from := mail.NewEmail(fromName, fromAddr)
	to := mail.NewEmail("", details.Email)
	return mail.NewSingleEmail(from, templates.InvitationSubject(data), to,
		templates.RenderInvitationText(data), templates.RenderInvitationEmail(data))
}

// LogSender stands in for a real provider when no api key is configured
type LogSender struct{}

// NotifyInvitation logs the message and reports it as not delivered
func (LogSender) NotifyInvitation(_ context.Context, details InvitationDetails) Outcome {
	zap.S().Infow("mail provider not configured, skipping invitation email",
		"invitationId", details.InvitationID,
		"email", details.Email,
		"code", details.InvitationCode,
	)
	return Outcome{Delivered: false, Reason: "mail provider not configured"}
}
