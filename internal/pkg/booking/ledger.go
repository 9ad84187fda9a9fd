package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/tolka/internal/pkg/expire"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
	"github.com/airenas/tolka/internal/pkg/utils"
	"github.com/google/uuid"
)

const cancelWindow = 24 * time.Hour

// DB is the persistence contract of the booking engine.
// Assign and Reassign must be applied atomically per job id
type DB interface {
	LoadJob(ctx context.Context, id string) (*persistence.Job, error)
	InsertJob(ctx context.Context, job *persistence.Job) error
	UpdateJob(ctx context.Context, job *persistence.Job) error
	ListJobsForUser(ctx context.Context, userID string, statuses []string) ([]*persistence.Job, error)
	ListJobsForTranslator(ctx context.Context, userID string, statuses []string) ([]*persistence.Job, error)

	LoadAssignments(ctx context.Context, jobID string) ([]*persistence.Assignment, error)
	ActiveJobsForTranslator(ctx context.Context, userID string) ([]*persistence.Job, error)
	Assign(ctx context.Context, job *persistence.Job, a *persistence.Assignment) error
	Reassign(ctx context.Context, cancel, create *persistence.Assignment) error
	InsertAssignment(ctx context.Context, a *persistence.Assignment) error
	UpdateAssignment(ctx context.Context, a *persistence.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error

	LoadUser(ctx context.Context, id string) (*persistence.User, error)
	ClearSentRecords(ctx context.Context, jobID string) error
}

// Ledger tracks translator-job links and enforces exclusive assignment
type Ledger struct {
	db  DB
	now func() time.Time
}

// NewLedger creates an assignment ledger
func NewLedger(db DB, now func() time.Time) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("no DB")
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{db: db, now: now}, nil
}

// CurrentAssignment returns the active assignment, falling back to the most
// recently completed one for historical lookups. nil when the job never had one
func (l *Ledger) CurrentAssignment(ctx context.Context, jobID string) (*persistence.Assignment, error) {
	assignments, err := l.db.LoadAssignments(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load assignments: %w", err)
	}
	if a := persistence.ActiveOf(assignments); a != nil {
		return a, nil
	}
	return persistence.LastCompletedOf(assignments), nil
}

// Accept claims the job for the translator. Exactly one of several
// concurrent calls succeeds, the rest get ErrInvalidState
func (l *Ledger) Accept(ctx context.Context, job *persistence.Job, translator *persistence.User) (*persistence.Assignment, error) {
	booked, err := l.db.ActiveJobsForTranslator(ctx, translator.ID)
	if err != nil {
		return nil, fmt.Errorf("can't load active jobs: %w", err)
	}
	for _, b := range booked {
		if b.Due.Equal(job.Due) {
			return nil, fmt.Errorf("job at %s: %w", job.Due.Format(time.RFC3339), ErrConflict)
		}
	}
	if st, _ := status.From(job.Status); st != status.Pending {
		return nil, fmt.Errorf("status '%s': %w", job.Status, ErrInvalidState)
	}
	a := &persistence.Assignment{ID: uuid.NewString(), JobID: job.ID, UserID: translator.ID, Created: l.now()}
	if err := l.db.Assign(ctx, job, a); err != nil {
		return nil, fmt.Errorf("can't assign: %w", err)
	}
	job.Status = status.Assigned.String()
	return a, nil
}

// Reassign cancels the current assignment and creates a fresh one
// for the new translator, atomically
func (l *Ledger) Reassign(ctx context.Context, current *persistence.Assignment, jobID, translatorID string) (*persistence.Assignment, error) {
	if current != nil {
		current.CancelAt = utils.ToSQLTime(l.now())
	}
	a := &persistence.Assignment{ID: uuid.NewString(), JobID: jobID, UserID: translatorID, Created: l.now()}
	if err := l.db.Reassign(ctx, current, a); err != nil {
		return nil, fmt.Errorf("can't reassign: %w", err)
	}
	return a, nil
}

// Complete marks the assignment done by the user
func (l *Ledger) Complete(ctx context.Context, a *persistence.Assignment, completedBy string) error {
	if a.CompletedAt.Valid {
		return ErrAlreadyCompleted
	}
	a.CompletedAt = utils.ToSQLTime(l.now())
	a.CompletedBy = utils.ToSQLStr(completedBy)
	if err := l.db.UpdateAssignment(ctx, a); err != nil {
		return fmt.Errorf("can't update assignment: %w", err)
	}
	return nil
}

// CancelByCustomer cancels the active assignment if any and withdraws the job.
// The withdraw kind depends on how far ahead of the due time we are
func (l *Ledger) CancelByCustomer(ctx context.Context, job *persistence.Job) (status.Status, error) {
	assignments, err := l.db.LoadAssignments(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("can't load assignments: %w", err)
	}
	now := l.now()
	if a := persistence.ActiveOf(assignments); a != nil {
		a.CancelAt = utils.ToSQLTime(now)
		if err := l.db.UpdateAssignment(ctx, a); err != nil {
			return 0, fmt.Errorf("can't cancel assignment: %w", err)
		}
	}
	st := status.WithdrawAfter24
	if job.Due.Sub(now) >= cancelWindow {
		st = status.WithdrawBefore24
	}
	job.Status = st.String()
	job.WithdrawAt = utils.ToSQLTime(now)
	if err := l.db.UpdateJob(ctx, job); err != nil {
		return 0, fmt.Errorf("can't update job: %w", err)
	}
	return st, nil
}

// CancelByTranslator drops the translator's link and puts the job
// back to pending with a fresh expiry. Inside the 24h window the
// cancellation must go out-of-band
func (l *Ledger) CancelByTranslator(ctx context.Context, job *persistence.Job, a *persistence.Assignment) error {
	if job.Due.Sub(l.now()) <= cancelWindow {
		return ErrTooLate
	}
	return l.RemoveTranslator(ctx, job, a)
}

// RemoveTranslator drops the translator's link and puts the job back
// to matching. No notice window applies, admins use it at any time
func (l *Ledger) RemoveTranslator(ctx context.Context, job *persistence.Job, a *persistence.Assignment) error {
	if err := l.db.DeleteAssignment(ctx, a.ID); err != nil {
		return fmt.Errorf("can't delete assignment: %w", err)
	}
	now := l.now()
	job.Status = status.Pending.String()
	job.Created = now
	job.WillExpireAt = expire.WillExpireAt(job.Due, now)
	if err := l.db.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("can't update job: %w", err)
	}
	return nil
}

// Reopen cancels open assignments and brings the booking back to pending.
// A timed out job is cloned into a brand-new row, the old one stays as history
func (l *Ledger) Reopen(ctx context.Context, jobID, userID string) (*persistence.Job, error) {
	job, err := l.db.LoadJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	assignments, err := l.db.LoadAssignments(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("can't load assignments: %w", err)
	}
	now := l.now()
	for _, a := range assignments {
		if !a.CancelAt.Valid && !a.CompletedAt.Valid {
			a.CancelAt = utils.ToSQLTime(now)
			if err := l.db.UpdateAssignment(ctx, a); err != nil {
				return nil, fmt.Errorf("can't cancel assignment: %w", err)
			}
		}
	}
	res := job
	if st, _ := status.From(job.Status); st == status.TimedOut {
		clone := *job
		clone.ID = uuid.NewString()
		clone.Status = status.Pending.String()
		clone.Created = now
		clone.WillExpireAt = expire.WillExpireAt(clone.Due, now)
		clone.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%s", jobID)
		if err := l.db.InsertJob(ctx, &clone); err != nil {
			return nil, fmt.Errorf("can't insert job: %w", err)
		}
		res = &clone
	} else {
		job.Status = status.Pending.String()
		job.Created = now
		job.WillExpireAt = expire.WillExpireAt(job.Due, now)
		if err := l.db.UpdateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("can't update job: %w", err)
		}
	}
	// cancelled placeholder records who reopened
	marker := &persistence.Assignment{ID: uuid.NewString(), JobID: res.ID, UserID: userID,
		Created: now, CancelAt: utils.ToSQLTime(now)}
	if err := l.db.InsertAssignment(ctx, marker); err != nil {
		return nil, fmt.Errorf("can't insert assignment: %w", err)
	}
	return res, nil
}
