package lifecycle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/airenas/tolka/internal/pkg/notification"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
)

// Change is one requested administrative update against a job
type Change struct {
	Target            status.Status
	AdminComment      string
	SessionTime       string // "HH:MM", used on transition to completed
	TranslatorChanged bool
}

// Env carries the resolved data needed to build notification intents
type Env struct {
	Job           *persistence.Job
	Customer      *persistence.User
	Translator    *persistence.User // active assignment holder, may be nil
	NewTranslator *persistence.User // set when the update re-assigns
	Language      string
}

// Result of one applied change. The caller persists and delivers
type Result struct {
	Changed            bool
	Status             status.Status
	SessionTime        string // formatted, set on completion
	ResetExpiry        bool
	ClearSentMarkers   bool
	Rematch            bool
	CompleteAssignment bool
	Intents            []notification.Intent
}

type changeFunc func(m *Machine, env *Env, ch *Change) *Result

// handlers is keyed on the job's current status. A status with no
// entry accepts no administrative transition at all
var handlers = map[status.Status]changeFunc{
	status.TimedOut:        changeTimedOut,
	status.Completed:       changeCompleted,
	status.Started:         changeStarted,
	status.Pending:         changePending,
	status.WithdrawAfter24: changeWithdrawAfter24,
	status.Assigned:        changeAssigned,
}

// Machine validates status transitions and decides their side effects
type Machine struct {
	policy *notification.Policy
	now    func() time.Time
}

// NewMachine creates a lifecycle machine
func NewMachine(policy *notification.Policy) (*Machine, error) {
	if policy == nil {
		return nil, fmt.Errorf("no policy")
	}
	if policy.Now == nil {
		return nil, fmt.Errorf("no clock")
	}
	return &Machine{policy: policy, now: policy.Now}, nil
}

// Apply validates the change against the job's current status.
// A rejected change is a no-op, not an error. When the job's due time is
// already in the past, the status still moves but no intents are produced
func (m *Machine) Apply(env *Env, ch *Change) *Result {
	cur, ok := status.From(env.Job.Status)
	if !ok || ch.Target == 0 || cur == ch.Target {
		return &Result{}
	}
	h, ok := handlers[cur]
	if !ok {
		return &Result{}
	}
	res := h(m, env, ch)
	if res.Changed && m.duePassed(env.Job) {
		res.Intents = nil
	}
	return res
}

func changeTimedOut(m *Machine, env *Env, ch *Change) *Result {
	if ch.Target == status.Pending {
		cEmail, cName := env.Job.ContactEmail(env.Customer)
		return &Result{Changed: true, Status: status.Pending, ResetExpiry: true,
			ClearSentMarkers: true, Rematch: true,
			Intents: []notification.Intent{m.policy.EmailIntent(cEmail, cName,
				notification.MsgJobReopened, map[string]string{"job_id": env.Job.ID})}}
	}
	if ch.TranslatorChanged {
		return &Result{Changed: true, Status: ch.Target,
			Intents: m.acceptedIntents(env)}
	}
	return &Result{}
}

func changeCompleted(m *Machine, env *Env, ch *Change) *Result {
	if ch.Target != status.TimedOut || ch.AdminComment == "" {
		return &Result{}
	}
	return &Result{Changed: true, Status: status.TimedOut}
}

func changeStarted(m *Machine, env *Env, ch *Change) *Result {
	if ch.AdminComment == "" {
		return &Result{}
	}
	res := &Result{Changed: true, Status: ch.Target}
	if ch.Target == status.Completed {
		res.SessionTime = SessionTimeText(ch.SessionTime, env.Job.Due, m.now())
		res.CompleteAssignment = true
		payload := map[string]string{"job_id": env.Job.ID, "session_time": res.SessionTime}
		cEmail, cName := env.Job.ContactEmail(env.Customer)
		cp := clonePayload(payload)
		cp["for_text"] = "faktura"
		res.Intents = append(res.Intents, m.policy.EmailIntent(cEmail, cName, notification.MsgSessionEnded, cp))
		if env.Translator != nil {
			tp := clonePayload(payload)
			tp["for_text"] = "lön"
			res.Intents = append(res.Intents, m.policy.EmailIntent(env.Translator.Email, env.Translator.Name,
				notification.MsgSessionEnded, tp))
		}
	}
	return res
}

func changePending(m *Machine, env *Env, ch *Change) *Result {
	if ch.Target == status.Assigned {
		if !ch.TranslatorChanged {
			return &Result{}
		}
		res := &Result{Changed: true, Status: status.Assigned}
		res.Intents = append(res.Intents, m.acceptedIntents(env)...)
		res.Intents = append(res.Intents, m.remindIntents(env)...)
		return res
	}
	if ch.Target == status.TimedOut && ch.AdminComment == "" {
		return &Result{}
	}
	cEmail, cName := env.Job.ContactEmail(env.Customer)
	return &Result{Changed: true, Status: ch.Target,
		Intents: []notification.Intent{m.policy.EmailIntent(cEmail, cName,
			notification.MsgJobCancelledCustomer, map[string]string{"job_id": env.Job.ID})}}
}

func changeWithdrawAfter24(m *Machine, env *Env, ch *Change) *Result {
	if ch.Target != status.TimedOut || ch.AdminComment == "" {
		return &Result{}
	}
	return &Result{Changed: true, Status: status.TimedOut}
}

func changeAssigned(m *Machine, env *Env, ch *Change) *Result {
	switch ch.Target {
	case status.TimedOut:
		return &Result{Changed: true, Status: ch.Target}
	case status.WithdrawBefore24, status.WithdrawAfter24:
		res := &Result{Changed: true, Status: ch.Target}
		payload := map[string]string{"job_id": env.Job.ID}
		cEmail, cName := env.Job.ContactEmail(env.Customer)
		res.Intents = append(res.Intents, m.policy.EmailIntent(cEmail, cName,
			notification.MsgJobCancelledCustomer, payload))
		if env.Translator != nil {
			res.Intents = append(res.Intents, m.policy.EmailIntent(env.Translator.Email, env.Translator.Name,
				notification.MsgJobCancelledTransl, payload))
		}
		return res
	}
	return &Result{}
}

// TranslatorChangedIntents - fired on any update that swaps the assignment,
// independent of status movement
func (m *Machine) TranslatorChangedIntents(env *Env) []notification.Intent {
	if m.duePassed(env.Job) {
		return nil
	}
	payload := map[string]string{"job_id": env.Job.ID}
	cEmail, cName := env.Job.ContactEmail(env.Customer)
	res := []notification.Intent{m.policy.EmailIntent(cEmail, cName,
		notification.MsgChangedTranslator, payload)}
	if env.NewTranslator != nil {
		res = append(res, m.policy.EmailIntent(env.NewTranslator.Email, env.NewTranslator.Name,
			notification.MsgChangedTranslNew, payload))
	}
	if env.Translator != nil {
		res = append(res, m.policy.EmailIntent(env.Translator.Email, env.Translator.Name,
			notification.MsgChangedTranslOld, payload))
	}
	return notification.Dedup(res)
}

// DueChangedIntents - fired when an update moves the due time
func (m *Machine) DueChangedIntents(env *Env, oldDue time.Time) []notification.Intent {
	if m.duePassed(env.Job) {
		return nil
	}
	payload := map[string]string{"job_id": env.Job.ID,
		"old_time": oldDue.Format("2006-01-02 15:04:05"),
		"new_time": env.Job.Due.Format("2006-01-02 15:04:05")}
	return m.bothPartiesEmail(env, notification.MsgChangedDate, payload)
}

// LangChangedIntents - fired when an update swaps the language
func (m *Machine) LangChangedIntents(env *Env, oldLanguage string) []notification.Intent {
	if m.duePassed(env.Job) {
		return nil
	}
	payload := map[string]string{"job_id": env.Job.ID,
		"old_lang": oldLanguage, "new_lang": env.Language}
	return m.bothPartiesEmail(env, notification.MsgChangedLang, payload)
}

func (m *Machine) bothPartiesEmail(env *Env, msgType string, payload map[string]string) []notification.Intent {
	cEmail, cName := env.Job.ContactEmail(env.Customer)
	res := []notification.Intent{m.policy.EmailIntent(cEmail, cName, msgType, payload)}
	if env.Translator != nil {
		res = append(res, m.policy.EmailIntent(env.Translator.Email, env.Translator.Name, msgType, payload))
	}
	return notification.Dedup(res)
}

func (m *Machine) acceptedIntents(env *Env) []notification.Intent {
	payload := map[string]string{"job_id": env.Job.ID}
	cEmail, cName := env.Job.ContactEmail(env.Customer)
	res := []notification.Intent{m.policy.EmailIntent(cEmail, cName, notification.MsgJobAccepted, payload)}
	if env.NewTranslator != nil {
		res = append(res, m.policy.EmailIntent(env.NewTranslator.Email, env.NewTranslator.Name,
			notification.MsgJobAcceptedNew, payload))
	}
	return res
}

func (m *Machine) remindIntents(env *Env) []notification.Intent {
	var res []notification.Intent
	text := notification.RemindText(env.Job, env.Language)
	if env.Customer != nil {
		if in, ok := m.policy.PushIntent(env.Customer, env.Job, notification.PushSessionStartRemind, text); ok {
			res = append(res, in)
		}
	}
	if env.NewTranslator != nil {
		if in, ok := m.policy.PushIntent(env.NewTranslator, env.Job, notification.PushSessionStartRemind, text); ok {
			res = append(res, in)
		}
	}
	return res
}

func (m *Machine) duePassed(job *persistence.Job) bool {
	return job.Due.Before(m.now())
}

// SessionTimeText formats the elapsed session as shown in emails.
// sessionTime comes as "HH:MM" from the admin form, falls back to due→now
func SessionTimeText(sessionTime string, due, now time.Time) string {
	h, min, ok := parseSessionTime(sessionTime)
	if !ok {
		d := now.Sub(due)
		if d < 0 {
			d = 0
		}
		h, min = int(d.Hours()), int(d.Minutes())%60
	}
	return fmt.Sprintf("%d tim %d min", h, min)
}

func parseSessionTime(s string) (int, int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return h, m, true
}

func clonePayload(p map[string]string) map[string]string {
	res := make(map[string]string, len(p)+1)
	for k, v := range p {
		res[k] = v
	}
	return res
}
