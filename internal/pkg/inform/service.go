package inform

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/messages"
	"github.com/airenas/tolka/internal/pkg/utils"
	"github.com/airenas/tolka/internal/pkg/utils/handler"
	"github.com/jordan-wright/email"
	"github.com/vgarvardt/gue/v5"
)

// Sender sends emails
type Sender interface {
	Send(email *email.Email) error
}

// Data is what an email template gets rendered with
type Data struct {
	JobID   string
	Email   string
	Name    string
	MsgType string
	MsgTime time.Time
	Payload map[string]string
}

// EmailMaker prepares the email
type EmailMaker interface {
	Make(data *Data) (*email.Email, error)
}

// DB tracks email sending process.
// It is used to guarantee not to send the emails twice
type DB interface {
	LockEmailTable(ctx context.Context, jobID, msgType, email string) error
	UnLockEmailTable(ctx context.Context, jobID, msgType, email string, value *int) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	EmailSender Sender
	EmailMaker  EmailMaker
	DB          DB
	Location    *time.Location
}

// StartWorkerService starts the event queue listener service to listen for inform events
// returns channel for tracking when all jobs are finished
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Msg("Starting listen for messages")

	wm := gue.WorkMap{
		messages.Inform: handler.Create(data, handleEmail, handler.DefaultOpts()),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.Inform),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("booking-inform"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

func handleEmail(ctx context.Context, m *messages.EmailMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("type", m.MsgType).Msg("handling")
	if m.Email == "" {
		goapp.Log.Info().Msg("No email, skip")
		return nil
	}

	mailData := &Data{JobID: m.ID, Email: m.Email, Name: m.Name, MsgType: m.MsgType,
		MsgTime: toLocalTime(data, m.At), Payload: m.Payload}
	mail, err := data.EmailMaker.Make(mailData)
	if err != nil {
		return fmt.Errorf("can't prepare email: %w", err)
	}

	err = data.DB.LockEmailTable(ctx, m.ID, m.MsgType, m.Email)
	if err != nil {
		return fmt.Errorf("can't lock mail table: %w", err)
	}
	var unlockValue = 0
	defer func() { _ = data.DB.UnLockEmailTable(ctx, m.ID, m.MsgType, m.Email, &unlockValue) }()

	err = data.EmailSender.Send(mail)
	if err != nil {
		return fmt.Errorf("can't send email: %w", err)
	}
	unlockValue = 2
	return nil
}

func validate(data *ServiceData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.EmailMaker == nil {
		return fmt.Errorf("no EmailMaker")
	}
	if data.EmailSender == nil {
		return fmt.Errorf("no EmailSender")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	return nil
}

func toLocalTime(data *ServiceData, t time.Time) time.Time {
	if data.Location != nil {
		return t.In(data.Location)
	}
	return t
}
