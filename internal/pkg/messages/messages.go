package messages

import (
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
)

const (
	st = "TOLKA/"
	// Dispatch queue name - matching/notification fan-out events
	Dispatch = st + "Dispatch"
	// Inform queue name - email sending
	Inform = st + "Inform"
	// Push queue name - push gateway delivery
	Push = st + "Push"
	// Sms queue name - sms gateway delivery
	Sms = st + "SMS"
	// StatusChange queue name - job status change events
	StatusChange = st + "StatusChange"
)

// Event kinds passed through the dispatch queue
const (
	EvJobCreated  = "job-created"
	EvJobReopened = "job-reopened"
	EvJobRematch  = "job-rematch"
	EvAdminCancel = "admin-cancel"
	EvJobExpired  = "job-expired"
)

// JobEvent is the main message passing through the tolka dispatch system
type JobEvent struct {
	amessages.QueueMessage
	Kind string `json:"kind"`
	// ExcludeUserID drops one translator from the fan-out, empty means exclude nobody
	ExcludeUserID string `json:"excludeUserID,omitempty"`
}

// EmailMessage asks the inform worker to send one email
type EmailMessage struct {
	amessages.QueueMessage
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	MsgType string            `json:"msgType"`
	At      time.Time         `json:"at"`
	Payload map[string]string `json:"payload,omitempty"`
}

// PushMessage asks the dispatch worker to deliver one push notification.
// ID carries the job id
type PushMessage struct {
	amessages.QueueMessage
	Emails  []string          `json:"emails"`
	MsgType string            `json:"msgType"`
	Text    string            `json:"text"`
	Payload map[string]string `json:"payload,omitempty"`
}

// SMSMessage asks the dispatch worker to deliver one sms
type SMSMessage struct {
	amessages.QueueMessage
	Number string `json:"number"`
	Text   string `json:"text"`
}

// StatusMessage announces a job status change
type StatusMessage struct {
	amessages.QueueMessage
	Status string `json:"status"`
}

// NewJobEvent creates an event for a job
func NewJobEvent(jobID, kind, excludeUserID string) *JobEvent {
	return &JobEvent{QueueMessage: amessages.QueueMessage{ID: jobID}, Kind: kind, ExcludeUserID: excludeUserID}
}
