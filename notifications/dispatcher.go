package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSendTimeout bounds a single provider call
const DefaultSendTimeout = 15 * time.Second

// Observer is told about every finished delivery attempt
type Observer func(details InvitationDetails, outcome Outcome)

// Dispatcher runs sends in the background. Dispatch never blocks on the provider.
type Dispatcher struct {
	sender    Sender
	timeout   time.Duration
	observers []Observer
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher for sender. A zero timeout uses DefaultSendTimeout.
func NewDispatcher(sender Sender, timeout time.Duration, observers ...Observer) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{
		sender:    sender,
		timeout:   timeout,
		observers: observers,
	}
}

// Dispatch hands details to a background goroutine and returns immediately
func (d *Dispatcher) Dispatch(details InvitationDetails) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("panic in invitation email dispatch",
					"invitationId", details.InvitationID,
					"email", details.Email,
					"panic", r,
				)
				d.observe(details, Outcome{Delivered: false, Reason: "panic during send"})
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		outcome := d.sender.NotifyInvitation(ctx, details)
		if outcome.Delivered {
			zap.S().Infow("invitation email sent",
				"invitationId", details.InvitationID,
				"email", details.Email,
				"resend", details.Resend,
				"statusCode", outcome.StatusCode,
			)
		} else {
			zap.S().Warnw("invitation email not delivered",
				"invitationId", details.InvitationID,
				"email", details.Email,
				"resend", details.Resend,
				"statusCode", outcome.StatusCode,
				"reason", outcome.Reason,
			)
		}
		d.observe(details, outcome)
	}()
}

func (d *Dispatcher) observe(details InvitationDetails, outcome Outcome) {
	for _, o := range d.observers {
		o(details, outcome)
	}
}

// Wait blocks until every dispatched send has finished. Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
