package booking

import (
	"context"
	"fmt"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/api"
	"github.com/airenas/tolka/internal/pkg/eligibility"
	"github.com/airenas/tolka/internal/pkg/expire"
	"github.com/airenas/tolka/internal/pkg/lifecycle"
	"github.com/airenas/tolka/internal/pkg/messages"
	"github.com/airenas/tolka/internal/pkg/notification"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
	"github.com/airenas/tolka/internal/pkg/utils"
	"github.com/google/uuid"
)

const immediateLeadTime = 5 * time.Minute

// Roles
const (
	RoleCustomer   = "customer"
	RoleTranslator = "translator"
	RoleAdmin      = "admin"
)

// Matcher finds jobs a translator may take
type Matcher interface {
	PotentialJobs(ctx context.Context, translator *persistence.User) ([]*persistence.Job, error)
}

// Languages resolves language names for message texts
type Languages interface {
	LanguageNameFor(ctx context.Context, id string) (string, error)
}

// IntentRouter delivers notification intents, best-effort
type IntentRouter interface {
	Route(ctx context.Context, jobID string, intents []notification.Intent) error
}

// MsgSender sends queue events
type MsgSender interface {
	SendMessage(ctx context.Context, msg amessages.Message, queue string) error
}

// Orchestrator is the public entry point of the booking engine
type Orchestrator struct {
	DB        DB
	Ledger    *Ledger
	Machine   *lifecycle.Machine
	Policy    *notification.Policy
	Matcher   Matcher
	Languages Languages
	Router    IntentRouter
	MsgSender MsgSender
	Now       func() time.Time
}

// NewOrchestrator validates the wiring
func NewOrchestrator(o *Orchestrator) (*Orchestrator, error) {
	if err := validate(o); err != nil {
		return nil, err
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

func validate(o *Orchestrator) error {
	if o == nil {
		return fmt.Errorf("no orchestrator")
	}
	if o.DB == nil {
		return fmt.Errorf("no DB")
	}
	if o.Ledger == nil {
		return fmt.Errorf("no ledger")
	}
	if o.Machine == nil {
		return fmt.Errorf("no lifecycle machine")
	}
	if o.Policy == nil {
		return fmt.Errorf("no policy")
	}
	if o.Matcher == nil {
		return fmt.Errorf("no matcher")
	}
	if o.Languages == nil {
		return fmt.Errorf("no language provider")
	}
	if o.Router == nil {
		return fmt.Errorf("no intent router")
	}
	if o.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	return nil
}

// Create validates the request and stores a fresh pending job.
// An immediate booking goes due in five minutes with phone delivery forced on
func (o *Orchestrator) Create(ctx context.Context, req *api.CreateRequest) (*persistence.Job, error) {
	customer, err := o.DB.LoadUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	if customer.Role != RoleCustomer {
		return nil, fmt.Errorf("only customers may create bookings: %w", ErrInvalidState)
	}
	if req.LanguageID == "" {
		return nil, NewValidationError("from_language_id")
	}
	if req.Duration <= 0 {
		return nil, NewValidationError("duration")
	}
	now := o.Now()
	job := &persistence.Job{ID: uuid.NewString(), UserID: customer.ID, LanguageID: req.LanguageID,
		Immediate: req.Immediate, Duration: req.Duration, Gender: utils.ToSQLStr(req.Gender),
		Certified: utils.ToSQLStr(req.Certified), Status: status.Pending.String(),
		JobType: jobTypeFor(customer.ConsumerType), PhoneType: req.PhoneType,
		PhysicalType: req.PhysicalType, Town: req.Town, UserEmail: utils.ToSQLStr(req.UserEmail),
		ByAdmin: req.ByAdmin, Created: now}
	if req.Immediate {
		job.Due = now.Add(immediateLeadTime)
		job.PhoneType = true
	} else {
		if req.Due.IsZero() || !req.Due.After(now) {
			return nil, NewValidationError("due")
		}
		if !req.PhoneType && !req.PhysicalType {
			return nil, NewValidationError("customer_phone_type")
		}
		job.Due = req.Due
	}
	job.WillExpireAt = expire.WillExpireAt(job.Due, now)
	if err := o.DB.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("can't insert job: %w", err)
	}
	goapp.Log.Info().Str("ID", job.ID).Str("type", job.JobType).Bool("immediate", job.Immediate).Msg("job created")

	email, name := job.ContactEmail(customer)
	o.route(ctx, job.ID, []notification.Intent{o.Policy.EmailIntent(email, name,
		notification.MsgJobCreated, map[string]string{"job_id": job.ID})})
	o.sendEvent(ctx, messages.NewJobEvent(job.ID, messages.EvJobCreated, ""), messages.Dispatch)
	return job, nil
}

// Accept claims the job for the translator and confirms to the customer.
// Losing an acceptance race is a business outcome, not a fault
func (o *Orchestrator) Accept(ctx context.Context, jobID, translatorID string) (*persistence.Job, error) {
	job, err := o.DB.LoadJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	translator, err := o.DB.LoadUser(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	if _, err := o.Ledger.Accept(ctx, job, translator); err != nil {
		return nil, err
	}
	goapp.Log.Info().Str("ID", job.ID).Str("translator", translatorID).Msg("job accepted")

	customer, err := o.DB.LoadUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	language := o.languageName(ctx, job.LanguageID)
	intents := []notification.Intent{}
	email, name := job.ContactEmail(customer)
	intents = append(intents, o.Policy.EmailIntent(email, name,
		notification.MsgJobAccepted, map[string]string{"job_id": job.ID}))
	if in, ok := o.Policy.PushIntent(customer, job, notification.PushJobAccepted,
		notification.AcceptedText(language, job.Duration, job.Due)); ok {
		intents = append(intents, in)
	}
	o.route(ctx, job.ID, intents)
	o.sendStatus(ctx, job)
	return job, nil
}

// Cancel withdraws a booking. Customers may always cancel, the withdraw kind
// reflects the notice given. Translators cancelling re-open the matching.
// An admin cancelling an assigned job removes the translator and
// puts the booking back on the market
func (o *Orchestrator) Cancel(ctx context.Context, jobID, userID string) (*persistence.Job, error) {
	job, err := o.DB.LoadJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	user, err := o.DB.LoadUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	if user.Role == RoleTranslator && job.UserID != userID {
		return o.cancelByTranslator(ctx, job, user)
	}
	if user.Role == RoleAdmin && job.UserID != userID {
		return o.cancelByAdmin(ctx, job)
	}
	return o.cancelByCustomer(ctx, job)
}

func (o *Orchestrator) cancelByCustomer(ctx context.Context, job *persistence.Job) (*persistence.Job, error) {
	current, err := o.Ledger.CurrentAssignment(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if _, err := o.Ledger.CancelByCustomer(ctx, job); err != nil {
		return nil, err
	}
	goapp.Log.Info().Str("ID", job.ID).Str("status", job.Status).Msg("job cancelled by customer")
	if current != nil && !current.CompletedAt.Valid {
		if translator, err := o.DB.LoadUser(ctx, current.UserID); err == nil {
			language := o.languageName(ctx, job.LanguageID)
			if in, ok := o.Policy.PushIntent(translator, job, notification.PushJobCancelled,
				notification.CancelledText(language, job.Duration, job.Due)); ok {
				o.route(ctx, job.ID, []notification.Intent{in})
			}
		} else {
			goapp.Log.Warn().Err(err).Str("ID", job.ID).Msg("can't load translator")
		}
	}
	o.sendStatus(ctx, job)
	return job, nil
}

func (o *Orchestrator) cancelByAdmin(ctx context.Context, job *persistence.Job) (*persistence.Job, error) {
	current, err := o.Ledger.CurrentAssignment(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.CompletedAt.Valid {
		return o.cancelByCustomer(ctx, job)
	}
	if err := o.Ledger.RemoveTranslator(ctx, job, current); err != nil {
		return nil, err
	}
	goapp.Log.Info().Str("ID", job.ID).Str("translator", current.UserID).Msg("translator removed by admin")
	o.sendEvent(ctx, messages.NewJobEvent(job.ID, messages.EvAdminCancel, current.UserID), messages.Dispatch)
	o.sendStatus(ctx, job)
	return job, nil
}

func (o *Orchestrator) cancelByTranslator(ctx context.Context, job *persistence.Job, translator *persistence.User) (*persistence.Job, error) {
	current, err := o.Ledger.CurrentAssignment(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.UserID != translator.ID || current.CompletedAt.Valid {
		return nil, fmt.Errorf("no active assignment for translator: %w", ErrInvalidState)
	}
	if err := o.Ledger.CancelByTranslator(ctx, job, current); err != nil {
		return nil, err
	}
	goapp.Log.Info().Str("ID", job.ID).Str("translator", translator.ID).Msg("job cancelled by translator")
	o.sendEvent(ctx, messages.NewJobEvent(job.ID, messages.EvJobRematch, ""), messages.Dispatch)
	o.sendStatus(ctx, job)
	return job, nil
}

// Update applies an administrative change - translator, due time, language
// and status in one request
func (o *Orchestrator) Update(ctx context.Context, req *api.UpdateRequest) (*persistence.Job, error) {
	job, err := o.DB.LoadJob(ctx, req.JobID)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	customer, err := o.DB.LoadUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	current, err := o.Ledger.CurrentAssignment(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	env := &lifecycle.Env{Job: job, Customer: customer}
	if current != nil {
		if translator, err := o.DB.LoadUser(ctx, current.UserID); err == nil {
			env.Translator = translator
		}
	}

	translatorChanged := req.TranslatorID != "" && (current == nil || current.UserID != req.TranslatorID)
	if translatorChanged {
		newTranslator, err := o.DB.LoadUser(ctx, req.TranslatorID)
		if err != nil {
			return nil, fmt.Errorf("can't load user: %w", err)
		}
		env.NewTranslator = newTranslator
		active := current
		if active != nil && active.CompletedAt.Valid {
			active = nil
		}
		if _, err := o.Ledger.Reassign(ctx, active, job.ID, req.TranslatorID); err != nil {
			return nil, err
		}
	}

	oldDue, oldLang := job.Due, job.LanguageID
	dueChanged := !req.Due.IsZero() && !req.Due.Equal(job.Due)
	if dueChanged {
		job.Due = req.Due
	}
	langChanged := req.LanguageID != "" && req.LanguageID != job.LanguageID
	if langChanged {
		job.LanguageID = req.LanguageID
	}
	if req.AdminComment != "" {
		job.AdminComments = req.AdminComment
	}
	env.Language = o.languageName(ctx, job.LanguageID)

	intents := []notification.Intent{}
	res := &lifecycle.Result{}
	if req.Status != "" {
		target, ok := status.From(req.Status)
		if !ok {
			goapp.Log.Warn().Str("ID", job.ID).Str("target", req.Status).Msg("unknown status, skip transition")
		} else {
			res = o.Machine.Apply(env, &lifecycle.Change{Target: target,
				AdminComment: req.AdminComment, SessionTime: req.SessionTime,
				TranslatorChanged: translatorChanged})
		}
		if res.Changed {
			job.Status = res.Status.String()
			if res.SessionTime != "" {
				job.SessionTime = res.SessionTime
				job.EndAt = utils.ToSQLTime(o.Now())
			}
			if res.ResetExpiry {
				job.Created = o.Now()
				job.WillExpireAt = expire.WillExpireAt(job.Due, job.Created)
			}
			intents = append(intents, res.Intents...)
		} else {
			goapp.Log.Info().Str("ID", job.ID).Str("status", job.Status).
				Str("target", req.Status).Msg("transition skipped")
		}
	}
	if translatorChanged {
		intents = append(intents, o.Machine.TranslatorChangedIntents(env)...)
	}
	if dueChanged {
		intents = append(intents, o.Machine.DueChangedIntents(env, oldDue)...)
	}
	if langChanged {
		oldName := o.languageName(ctx, oldLang)
		intents = append(intents, o.Machine.LangChangedIntents(env, oldName)...)
	}

	if err := o.DB.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("can't update job: %w", err)
	}
	if res.ClearSentMarkers {
		if err := o.DB.ClearSentRecords(ctx, job.ID); err != nil {
			return nil, fmt.Errorf("can't clear sent records: %w", err)
		}
	}
	if res.CompleteAssignment && env.Translator != nil && current != nil {
		if err := o.Ledger.Complete(ctx, current, req.AdminID); err != nil {
			return nil, err
		}
	}
	o.route(ctx, job.ID, intents)
	if res.Rematch {
		o.sendEvent(ctx, messages.NewJobEvent(job.ID, messages.EvJobRematch, ""), messages.Dispatch)
	}
	if res.Changed {
		o.sendStatus(ctx, job)
	}
	return job, nil
}

// End closes a started session, emailing the invoice and salary summaries
func (o *Orchestrator) End(ctx context.Context, jobID, userID string) (*persistence.Job, error) {
	job, err := o.DB.LoadJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	if st, _ := status.From(job.Status); st != status.Started {
		return nil, fmt.Errorf("status '%s': %w", job.Status, ErrInvalidState)
	}
	current, err := o.Ledger.CurrentAssignment(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	now := o.Now()
	job.Status = status.Completed.String()
	job.EndAt = utils.ToSQLTime(now)
	job.SessionTime = lifecycle.SessionTimeText("", job.Due, now)
	if err := o.DB.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("can't update job: %w", err)
	}
	goapp.Log.Info().Str("ID", job.ID).Str("sessionTime", job.SessionTime).Msg("job ended")

	customer, err := o.DB.LoadUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	payload := map[string]string{"job_id": job.ID, "session_time": job.SessionTime, "for_text": "faktura"}
	email, name := job.ContactEmail(customer)
	intents := []notification.Intent{o.Policy.EmailIntent(email, name, notification.MsgSessionEnded, payload)}
	if current != nil {
		if err := o.Ledger.Complete(ctx, current, userID); err != nil {
			return nil, err
		}
		if translator, err := o.DB.LoadUser(ctx, current.UserID); err == nil {
			tp := map[string]string{"job_id": job.ID, "session_time": job.SessionTime, "for_text": "lön"}
			intents = append(intents, o.Policy.EmailIntent(translator.Email, translator.Name,
				notification.MsgSessionEnded, tp))
		} else {
			goapp.Log.Warn().Err(err).Str("ID", job.ID).Msg("can't load translator")
		}
	}
	o.route(ctx, job.ID, intents)
	o.sendStatus(ctx, job)
	return job, nil
}

// CustomerNotCall closes a session the customer never showed up for.
// The translator still gets the assignment credited
func (o *Orchestrator) CustomerNotCall(ctx context.Context, jobID string) (*persistence.Job, error) {
	job, err := o.DB.LoadJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	if st, _ := status.From(job.Status); st.IsTerminal() {
		return nil, fmt.Errorf("status '%s': %w", job.Status, ErrInvalidState)
	}
	current, err := o.Ledger.CurrentAssignment(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	job.Status = status.NotCarriedOutCustomer.String()
	job.EndAt = utils.ToSQLTime(o.Now())
	if err := o.DB.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("can't update job: %w", err)
	}
	if current != nil && !current.CompletedAt.Valid {
		if err := o.Ledger.Complete(ctx, current, current.UserID); err != nil {
			return nil, err
		}
	}
	goapp.Log.Info().Str("ID", job.ID).Msg("customer did not call")
	o.sendStatus(ctx, job)
	return job, nil
}

// Reopen brings a withdrawn or timed out booking back to matching
func (o *Orchestrator) Reopen(ctx context.Context, jobID, userID string) (*persistence.Job, error) {
	job, err := o.Ledger.Reopen(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	goapp.Log.Info().Str("ID", job.ID).Str("origin", jobID).Msg("job reopened")
	o.sendEvent(ctx, messages.NewJobEvent(job.ID, messages.EvJobReopened, ""), messages.Dispatch)
	o.sendStatus(ctx, job)
	return job, nil
}

// PotentialJobs lists pending jobs the translator may accept
func (o *Orchestrator) PotentialJobs(ctx context.Context, translatorID string) ([]*persistence.Job, error) {
	translator, err := o.DB.LoadUser(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	return o.Matcher.PotentialJobs(ctx, translator)
}

// JobsForUser returns the user's open bookings split into emergency and normal
func (o *Orchestrator) JobsForUser(ctx context.Context, userID string) (*api.UserJobs, error) {
	user, err := o.DB.LoadUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("can't load user: %w", err)
	}
	open := []string{status.Pending.String(), status.Assigned.String(), status.Started.String()}
	var jobs []*persistence.Job
	if user.Role == RoleTranslator {
		jobs, err = o.DB.ListJobsForTranslator(ctx, userID, open)
	} else {
		jobs, err = o.DB.ListJobsForUser(ctx, userID, open)
	}
	if err != nil {
		return nil, fmt.Errorf("can't load jobs: %w", err)
	}
	res := &api.UserJobs{Emergency: []*persistence.Job{}, Normal: []*persistence.Job{}}
	for _, j := range jobs {
		if j.Immediate {
			res.Emergency = append(res.Emergency, j)
		} else {
			res.Normal = append(res.Normal, j)
		}
	}
	return res, nil
}

func (o *Orchestrator) languageName(ctx context.Context, id string) string {
	name, err := o.Languages.LanguageNameFor(ctx, id)
	if err != nil {
		goapp.Log.Warn().Err(err).Str("language", id).Msg("can't resolve language")
		return id
	}
	return name
}

func (o *Orchestrator) route(ctx context.Context, jobID string, intents []notification.Intent) {
	if len(intents) == 0 {
		return
	}
	if err := o.Router.Route(ctx, jobID, intents); err != nil {
		goapp.Log.Warn().Err(err).Str("ID", jobID).Msg("can't route intents")
	}
}

func (o *Orchestrator) sendEvent(ctx context.Context, msg amessages.Message, queue string) {
	if err := o.MsgSender.SendMessage(ctx, msg, queue); err != nil {
		goapp.Log.Warn().Err(err).Str("queue", queue).Msg("can't send event")
	}
}

func (o *Orchestrator) sendStatus(ctx context.Context, job *persistence.Job) {
	msg := &messages.StatusMessage{QueueMessage: amessages.QueueMessage{ID: job.ID}, Status: job.Status}
	if err := o.MsgSender.SendMessage(ctx, msg, messages.StatusChange); err != nil {
		goapp.Log.Warn().Err(err).Str("ID", job.ID).Msg("can't send status event")
	}
}

func jobTypeFor(consumerType string) string {
	switch consumerType {
	case "paid":
		return eligibility.JobTypePaid
	case "rwsconsumer":
		return eligibility.JobTypeRWS
	case "ngo":
		return eligibility.JobTypeUnpaid
	}
	return eligibility.JobTypeUnpaid
}
