package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/booking"
	"github.com/airenas/tolka/internal/pkg/messages"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
	"go.uber.org/multierr"
)

// DB loads and updates expired bookings
type DB interface {
	ListExpiredPending(ctx context.Context, at time.Time) ([]*persistence.Job, error)
	UpdateJob(ctx context.Context, job *persistence.Job) error
}

// MsgSender sends queue messages
type MsgSender interface {
	SendMessage(ctx context.Context, msg amessages.Message, queue string) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	DB            DB
	MsgSender     MsgSender
	CheckInterval time.Duration
	Now           func() time.Time
}

// StartService runs the periodic expiry sweep.
// Returns channel closed when the loop exits
func StartService(ctx context.Context, data *ServiceData) (<-chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Msgf("Starting expiry sweep every %v", data.CheckInterval)
	res := make(chan struct{}, 2)
	go func() {
		defer close(res)
		serviceLoop(ctx, data)
	}()
	return res, nil
}

func serviceLoop(ctx context.Context, data *ServiceData) {
	ticker := time.NewTicker(data.CheckInterval)
	// run on startup
	if err := check(ctx, data); err != nil {
		goapp.Log.Error().Err(err).Send()
	}
	for {
		select {
		case <-ticker.C:
			if err := check(ctx, data); err != nil {
				goapp.Log.Error().Err(err).Send()
			}
		case <-ctx.Done():
			ticker.Stop()
			goapp.Log.Info().Msgf("Stopped expiry sweep")
			return
		}
	}
}

func check(ctx context.Context, data *ServiceData) error {
	jobs, err := data.DB.ListExpiredPending(ctx, data.Now())
	if err != nil {
		return fmt.Errorf("can't load expired jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}
	goapp.Log.Info().Int("count", len(jobs)).Msg("expiring jobs")
	var errs error
	for _, j := range jobs {
		if err := expire(ctx, j, data); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// expire flips one job to timedout and announces it.
// A lost version race means somebody else changed the job, skip it
func expire(ctx context.Context, job *persistence.Job, data *ServiceData) error {
	job.Status = status.TimedOut.String()
	if err := data.DB.UpdateJob(ctx, job); err != nil {
		if errors.Is(err, booking.ErrInvalidState) {
			goapp.Log.Warn().Str("ID", job.ID).Msg("changed meanwhile, skip")
			return nil
		}
		return fmt.Errorf("can't update job %s: %w", job.ID, err)
	}
	goapp.Log.Info().Str("ID", job.ID).Msg("expired")
	var errs error
	if err := data.MsgSender.SendMessage(ctx, messages.NewJobEvent(job.ID, messages.EvJobExpired, ""),
		messages.Dispatch); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("can't send event: %w", err))
	}
	if err := data.MsgSender.SendMessage(ctx, &messages.StatusMessage{
		QueueMessage: amessages.QueueMessage{ID: job.ID}, Status: job.Status},
		messages.StatusChange); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("can't send status: %w", err))
	}
	return errs
}

func validate(data *ServiceData) error {
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	if data.CheckInterval <= 0 {
		return fmt.Errorf("no check interval")
	}
	if data.Now == nil {
		data.Now = time.Now
	}
	return nil
}
