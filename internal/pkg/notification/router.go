package notification

import (
	"context"
	"fmt"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/messages"
	"go.uber.org/multierr"
)

// MsgSender sends queue messages, optionally scheduled for later
type MsgSender interface {
	SendMessage(ctx context.Context, msg amessages.Message, queue string) error
	SendMessageAt(ctx context.Context, msg amessages.Message, queue string, at time.Time) error
}

// Router turns resolved intents into queue messages.
// Delivery failures are accumulated, never fatal to the caller's mutation
type Router struct {
	sender MsgSender
	now    func() time.Time
}

// NewRouter creates an intent router
func NewRouter(sender MsgSender, now func() time.Time) (*Router, error) {
	if sender == nil {
		return nil, fmt.Errorf("no msg sender")
	}
	if now == nil {
		now = time.Now
	}
	return &Router{sender: sender, now: now}, nil
}

// Route enqueues one message per deduped intent
func (r *Router) Route(ctx context.Context, jobID string, intents []Intent) error {
	var errs error
	for _, in := range Dedup(intents) {
		var err error
		switch in.Channel {
		case ChannelEmail:
			err = r.sender.SendMessage(ctx, &messages.EmailMessage{
				QueueMessage: amessages.QueueMessage{ID: jobID},
				Email:        in.Email, Name: in.Name, MsgType: in.MsgType,
				At: r.now(), Payload: in.Payload}, messages.Inform)
		case ChannelPush:
			msg := &messages.PushMessage{QueueMessage: amessages.QueueMessage{ID: jobID},
				Emails: []string{in.Email}, MsgType: in.MsgType, Text: in.Text, Payload: in.Payload}
			if in.Delayed {
				err = r.sender.SendMessageAt(ctx, msg, messages.Push, NextBusinessTime(r.now()))
			} else {
				err = r.sender.SendMessage(ctx, msg, messages.Push)
			}
		case ChannelSMS:
			err = r.sender.SendMessage(ctx, &messages.SMSMessage{QueueMessage: amessages.QueueMessage{ID: jobID},
				Number: in.Number, Text: in.Text}, messages.Sms)
		default:
			err = fmt.Errorf("unknown channel '%s'", in.Channel)
		}
		if err != nil {
			goapp.Log.Warn().Err(err).Str("ID", jobID).Str("channel", string(in.Channel)).Msg("can't route intent")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
