package templates

import (
	"fmt"
	"html"
	"time"
)

// InvitationEmailData holds data for the invitation email templates
type InvitationEmailData struct {
	Email          string
	Role           string
	Portal         string
	InvitationCode string
	AcceptURL      string
	ExpiresAt      time.Time
	Resend         bool
}

// InvitationSubject returns the subject line for an invitation email
func InvitationSubject(d InvitationEmailData) string {
	if d.Resend {
		return fmt.Sprintf("Reminder: your invitation to the %s", d.Portal)
	}
	return fmt.Sprintf("You're invited to the %s", d.Portal)
}

// RenderInvitationText generates the plain text body of the invitation email
func RenderInvitationText(d InvitationEmailData) string {
	return fmt.Sprintf(`You have been invited to join the %s as %s.

Accept your invitation: %s

Invitation code: %s
This invitation expires on %s.

If you were not expecting this invitation, you can ignore this email.`,
		d.Portal, d.Role, d.AcceptURL, d.InvitationCode, d.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST"))
}

// RenderInvitationEmail generates the HTML body of the invitation email. Every
// interpolated value is escaped.
func RenderInvitationEmail(d InvitationEmailData) string {
	subject := html.EscapeString(InvitationSubject(d))
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f3f7f4; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #15803d 0%%, #0f766e 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .code-box { background: #ecfdf5; border: 1px solid #a7f3d0; border-radius: 12px; padding: 20px; margin: 20px 0; text-align: center; }
    .code-box span { font-family: monospace; font-size: 22px; letter-spacing: 2px; color: #065f46; }
    .cta-button { display: inline-block; background: #15803d; color: #fff; padding: 14px 28px; border-radius: 8px; text-decoration: none; font-weight: 700; margin-top: 20px; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      <p>You have been invited to join the <strong>%s</strong> as <strong>%s</strong>.</p>
      <div class="code-box">
        <p style="margin-top: 0;">Your invitation code</p>
        <span>%s</span>
      </div>
      <p>This invitation expires on <strong>%s</strong>.</p>
      <a class="cta-button" href="%s">Accept invitation</a>
      <p style="margin-top: 30px;">If you were not expecting this invitation, you can ignore this email.</p>
    </div>
    <div class="footer">
      <p>&copy; ESG Platform</p>
    </div>
  </div>
</body>
</html>`,
		subject,
		subject,
		html.EscapeString(d.Portal),
		html.EscapeString(d.Role),
		html.EscapeString(d.InvitationCode),
		html.EscapeString(d.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST")),
		html.EscapeString(d.AcceptURL),
	)
}
