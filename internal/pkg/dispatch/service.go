package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/messages"
	"github.com/airenas/tolka/internal/pkg/notification"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
	"github.com/airenas/tolka/internal/pkg/utils"
	"github.com/airenas/tolka/internal/pkg/utils/handler"
	"github.com/vgarvardt/gue/v5"
)

// DB provides persistence functionality
type DB interface {
	LoadJob(ctx context.Context, id string) (*persistence.Job, error)
	LoadUser(ctx context.Context, id string) (*persistence.User, error)
}

// Filter selects the translators for a job fan-out
type Filter interface {
	PotentialTranslators(ctx context.Context, job *persistence.Job) ([]*persistence.User, error)
}

// Languages resolves language names
type Languages interface {
	LanguageNameFor(ctx context.Context, id string) (string, error)
}

// Router enqueues resolved intents for delivery
type Router interface {
	Route(ctx context.Context, jobID string, intents []notification.Intent) error
}

// PushSender delivers push notifications
type PushSender interface {
	Send(ctx context.Context, emails []string, jobID string, payload map[string]string, text string) error
}

// SMSSender delivers sms
type SMSSender interface {
	Send(ctx context.Context, number, text string) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	DB          DB
	Filter      Filter
	Languages   Languages
	Policy      *notification.Policy
	Router      Router
	Push        PushSender
	SMS         SMSSender
	Testing     bool
}

// StartWorkerService starts the event queue listener service to listen for dispatch,
// push and sms events. Returns channel for tracking when all jobs are finished
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Msg("Starting listen for messages")
	if data.Testing {
		goapp.Log.Warn().Msg("SERVICE IN TEST MODE")
	}

	pools := []struct {
		queue string
		wf    gue.WorkFunc
	}{
		{queue: messages.Dispatch, wf: handler.Create(data, handleEvent,
			handler.DefaultOpts().WithBackoff(handler.DefaultBackoffOrTest(data.Testing)))},
		{queue: messages.Push, wf: handler.Create(data, handlePush,
			handler.DefaultOpts().WithBackoff(handler.DefaultBackoffOrTest(data.Testing)))},
		{queue: messages.Sms, wf: handler.Create(data, handleSMS,
			handler.DefaultOpts().WithBackoff(handler.DefaultBackoffOrTest(data.Testing)))},
	}

	wg := &sync.WaitGroup{}
	for _, p := range pools {
		pool, err := gue.NewWorkerPool(
			data.GueClient, gue.WorkMap{p.queue: p.wf}, data.WorkerCount,
			gue.WithPoolQueue(p.queue),
			gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
			gue.WithPoolPollInterval(500*time.Millisecond),
			gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
			gue.WithPoolID("booking-dispatch-"+p.queue),
		)
		if err != nil {
			return nil, fmt.Errorf("could not build gue workers pool: %w", err)
		}
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			goapp.Log.Info().Str("queue", queue).Msg("Starting workers")
			if err := pool.Run(ctx); err != nil {
				goapp.Log.Error().Err(err).Msg("pool error")
			}
			goapp.Log.Info().Str("queue", queue).Msg("Pool workers finished")
		}(p.queue)
	}
	res := make(chan struct{}, 1)
	go func() {
		wg.Wait()
		res <- struct{}{}
	}()
	return res, nil
}

func handleEvent(ctx context.Context, m *messages.JobEvent, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("kind", m.Kind).Msg("handling")
	job, err := data.DB.LoadJob(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load job: %w", err)
	}
	switch m.Kind {
	case messages.EvJobCreated, messages.EvJobReopened, messages.EvJobRematch, messages.EvAdminCancel:
		return fanOut(ctx, job, m.ExcludeUserID, data)
	case messages.EvJobExpired:
		return informExpired(ctx, job, data)
	}
	goapp.Log.Warn().Str("kind", m.Kind).Msg("unknown event kind, skip")
	return nil
}

// fanOut recomputes the eligible translators at delivery time and
// enqueues one push and one sms per recipient
func fanOut(ctx context.Context, job *persistence.Job, excludeUserID string, data *ServiceData) error {
	if job.Status != status.Pending.String() {
		goapp.Log.Info().Str("ID", job.ID).Str("status", job.Status).Msg("not pending anymore, skip")
		return nil
	}
	translators, err := data.Filter.PotentialTranslators(ctx, job)
	if err != nil {
		return fmt.Errorf("can't select translators: %w", err)
	}
	language := languageName(ctx, data, job.LanguageID)
	text := suitableText(job, language)
	var intents []notification.Intent
	for _, t := range translators {
		if excludeUserID != "" && t.ID == excludeUserID {
			continue
		}
		if in, ok := data.Policy.PushIntent(t, job, notification.PushSuitableJob, text); ok {
			intents = append(intents, in)
		}
		if in, ok := data.Policy.SMSIntent(t, job, text); ok {
			intents = append(intents, in)
		}
	}
	goapp.Log.Info().Str("ID", job.ID).Int("count", len(intents)).Msg("fan-out")
	return data.Router.Route(ctx, job.ID, intents)
}

func informExpired(ctx context.Context, job *persistence.Job, data *ServiceData) error {
	customer, err := data.DB.LoadUser(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("can't load customer: %w", err)
	}
	language := languageName(ctx, data, job.LanguageID)
	text := notification.ExpiredText(language, job.Duration, job.Due)
	if in, ok := data.Policy.PushIntent(customer, job, notification.PushJobExpired, text); ok {
		return data.Router.Route(ctx, job.ID, []notification.Intent{in})
	}
	return nil
}

func handlePush(ctx context.Context, m *messages.PushMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("type", m.MsgType).Msg("handling push")
	if len(m.Emails) == 0 {
		goapp.Log.Info().Msg("No recipients, skip")
		return nil
	}
	if err := data.Push.Send(ctx, m.Emails, m.ID, m.Payload, m.Text); err != nil {
		return fmt.Errorf("can't send push: %w", err)
	}
	return nil
}

func handleSMS(ctx context.Context, m *messages.SMSMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Msg("handling sms")
	if m.Number == "" {
		goapp.Log.Info().Msg("No number, skip")
		return nil
	}
	if err := data.SMS.Send(ctx, m.Number, m.Text); err != nil {
		return fmt.Errorf("can't send sms: %w", err)
	}
	return nil
}

// suitableText appends the town for on-site bookings
func suitableText(job *persistence.Job, language string) string {
	res := notification.SuitableJobText(language, job.Duration, job.Due, job.Immediate)
	if job.PhysicalType && !job.PhoneType && job.Town != "" {
		res = res + " i " + job.Town
	}
	return res
}

func languageName(ctx context.Context, data *ServiceData, id string) string {
	res, err := data.Languages.LanguageNameFor(ctx, id)
	if err != nil {
		goapp.Log.Warn().Err(err).Str("ID", id).Msg("can't resolve language")
		return id
	}
	return res
}

func validate(data *ServiceData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.Filter == nil {
		return fmt.Errorf("no Filter")
	}
	if data.Languages == nil {
		return fmt.Errorf("no Languages")
	}
	if data.Policy == nil {
		return fmt.Errorf("no Policy")
	}
	if data.Router == nil {
		return fmt.Errorf("no Router")
	}
	if data.Push == nil {
		return fmt.Errorf("no Push sender")
	}
	if data.SMS == nil {
		return fmt.Errorf("no SMS sender")
	}
	return nil
}
