// Package notifications delivers invitation emails.
//
// Delivery is best effort. Invitation validity never depends on whether a message
// was delivered: the Dispatcher hands each message to its own goroutine, logs the
// outcome and never reports it back to the caller.
package notifications

import (
	"context"
	"time"
)

// InvitationDetails is everything a sender needs to build an invitation message
type InvitationDetails struct {
	InvitationID   string
	Email          string
	Role           string
	Portal         string
	InvitationCode string
	AcceptURL      string
	ExpiresAt      time.Time
	Resend         bool
}

// Outcome reports whether a message was handed to the mail provider
type Outcome struct {
	Delivered  bool
	Reason     string
	StatusCode int
}

// Sender is the NotificationGateway capability
type Sender interface {
	NotifyInvitation(ctx context.Context, details InvitationDetails) Outcome
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, details InvitationDetails) Outcome

// NotifyInvitation calls f
func (f SenderFunc) NotifyInvitation(ctx context.Context, details InvitationDetails) Outcome {
	return f(ctx, details)
}
