package notification

import (
	"fmt"
	"time"

	"github.com/airenas/tolka/internal/pkg/persistence"
)

// Channel of one notification intent
type Channel string

const (
	// ChannelEmail - delivered by the inform worker
	ChannelEmail Channel = "email"
	// ChannelPush - delivered by the push gateway
	ChannelPush Channel = "push"
	// ChannelSMS - delivered by the sms gateway
	ChannelSMS Channel = "sms"
)

// Email template keys / message types
const (
	MsgJobCreated           = "job-created"
	MsgJobAccepted          = "job-accepted"
	MsgJobAcceptedNew       = "job-accepted-new-translator"
	MsgJobReopened          = "job-reopened-customer"
	MsgJobCancelledCustomer = "job-cancelled-customer"
	MsgJobCancelledTransl   = "job-cancel-translator"
	MsgSessionEnded         = "session-ended"
	MsgChangedDate          = "job-changed-date"
	MsgChangedLang          = "job-changed-lang"
	MsgChangedTranslator    = "job-changed-translator-customer"
	MsgChangedTranslOld     = "job-changed-translator-old-translator"
	MsgChangedTranslNew     = "job-changed-translator-new-translator"
)

// Push notification types
const (
	PushSuitableJob        = "suitable_job"
	PushJobAccepted        = "job_accepted"
	PushJobCancelled       = "job_cancelled"
	PushJobExpired         = "job_expired"
	PushSessionStartRemind = "session_start_remind"
)

// Intent is one resolved notification decision - who, what, when.
// Delivery is somebody else's business
type Intent struct {
	Channel Channel
	// UserID of the recipient, empty for override addresses
	UserID  string
	Email   string
	Name    string
	Number  string // sms only
	MsgType string
	Text    string // push/sms body
	Delayed bool
	Payload map[string]string
}

const (
	nightStartHour = 22
	nightEndHour   = 8
)

// Policy decides recipients, message kind and delivery timing per lifecycle event
type Policy struct {
	Now func() time.Time
}

// NewPolicy creates a notification policy
func NewPolicy(now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{Now: now}
}

// IsNightTime - quiet hours for push notifications
func IsNightTime(t time.Time) bool {
	h := t.Hour()
	return h >= nightStartHour || h < nightEndHour
}

// NextBusinessTime returns the next morning delivery slot after t
func NextBusinessTime(t time.Time) time.Time {
	res := time.Date(t.Year(), t.Month(), t.Day(), nightEndHour, 0, 0, 0, t.Location())
	if !res.After(t) {
		res = res.Add(24 * time.Hour)
	}
	return res
}

// NeedsDelay - delay to next business time when it is night
// and the recipient keeps quiet nighttime on
func (p *Policy) NeedsDelay(user *persistence.User) bool {
	return IsNightTime(p.Now()) && user.NotGetNighttime
}

// ShouldSend - recipient level gate for push/sms notifications
func (p *Policy) ShouldSend(user *persistence.User, immediate bool) bool {
	if user.NotGetNotification {
		return false
	}
	if immediate && user.NotGetEmergency {
		return false
	}
	return true
}

// EmailIntent builds an email intent. Emails are not gated by push opt-outs
func (p *Policy) EmailIntent(email, name, msgType string, payload map[string]string) Intent {
	return Intent{Channel: ChannelEmail, Email: email, Name: name, MsgType: msgType, Payload: payload}
}

// PushIntent builds a push intent for the user, false when the recipient opted out
func (p *Policy) PushIntent(user *persistence.User, job *persistence.Job, msgType, text string) (Intent, bool) {
	if !p.ShouldSend(user, job.Immediate) {
		return Intent{}, false
	}
	return Intent{Channel: ChannelPush, UserID: user.ID, Email: user.Email, Name: user.Name,
		MsgType: msgType, Text: text, Delayed: p.NeedsDelay(user),
		Payload: map[string]string{"job_id": job.ID, "notification_type": msgType}}, true
}

// SMSIntent builds an sms intent for the user
func (p *Policy) SMSIntent(user *persistence.User, job *persistence.Job, text string) (Intent, bool) {
	if !p.ShouldSend(user, job.Immediate) {
		return Intent{}, false
	}
	return Intent{Channel: ChannelSMS, UserID: user.ID, Number: user.Mobile, Name: user.Name,
		MsgType: PushSuitableJob, Text: text}, true
}

// Dedup drops repeated (channel, recipient, msgType) intents,
// a recipient is never notified twice for the same event
func Dedup(intents []Intent) []Intent {
	seen := map[string]bool{}
	res := make([]Intent, 0, len(intents))
	for _, in := range intents {
		key := fmt.Sprintf("%s|%s|%s|%s", in.Channel, in.UserID, in.Email, in.MsgType)
		if seen[key] {
			continue
		}
		seen[key] = true
		res = append(res, in)
	}
	return res
}

// SuitableJobText builds the new-booking push/sms body
func SuitableJobText(language string, durationMin int, due time.Time, immediate bool) string {
	if immediate {
		return fmt.Sprintf("Ny akutbokning för %stolk %dmin", language, durationMin)
	}
	return fmt.Sprintf("Ny bokning för %stolk %dmin %s", language, durationMin, due.Format("2006-01-02 15:04:05"))
}

// AcceptedText builds the booking-accepted push body for the customer
func AcceptedText(language string, durationMin int, due time.Time) string {
	return fmt.Sprintf("Din bokning för %stolk, %d min, %s har accepterats av en tolk. Vänligen öppna appen för att se detaljer om tolken.",
		language, durationMin, due.Format("2006-01-02 15:04:05"))
}

// CancelledText builds the cancelled-by-customer push body for the translator
func CancelledText(language string, durationMin int, due time.Time) string {
	return fmt.Sprintf("Kunden har avbokat bokningen för %stolk, %d min, %s. Var god och kolla dina tidigare bokningar för detaljer.",
		language, durationMin, due.Format("2006-01-02 15:04:05"))
}

// ExpiredText builds the no-acceptance push body for the customer
func ExpiredText(language string, durationMin int, due time.Time) string {
	return fmt.Sprintf("Tyvärr har ingen tolk accepterat er bokning: (%s, %dmin, %s). Vänligen pröva boka om tiden.",
		language, durationMin, due.Format("2006-01-02 15:04:05"))
}

// RemindText builds the session-start reminder push body
func RemindText(job *persistence.Job, language string) string {
	location := "telefon"
	if job.PhysicalType {
		location = "på plats i " + job.Town
	}
	return fmt.Sprintf("Detta är en påminnelse om att du har en %s tolkning (%s) kl %s på %s som varar i %d min. Lycka till och kom ihåg att ge feedback efter utförd tolkning!",
		language, location, job.Due.Format("15:04"), job.Due.Format("2006-01-02"), job.Duration)
}
