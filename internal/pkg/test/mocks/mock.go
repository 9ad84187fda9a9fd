package mocks

import (
	"context"
	"time"

	"github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// DB is postgres DB mock
type DB struct{ mock.Mock }

func (m *DB) LoadJob(ctx context.Context, id string) (*persistence.Job, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *DB) InsertJob(ctx context.Context, job *persistence.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *DB) UpdateJob(ctx context.Context, job *persistence.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *DB) ListJobsByStatus(ctx context.Context, st string) ([]*persistence.Job, error) {
	args := m.Called(ctx, st)
	return to[[]*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *DB) ListJobsForUser(ctx context.Context, userID string, statuses []string) ([]*persistence.Job, error) {
	args := m.Called(ctx, userID, statuses)
	return to[[]*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *DB) ListJobsForTranslator(ctx context.Context, userID string, statuses []string) ([]*persistence.Job, error) {
	args := m.Called(ctx, userID, statuses)
	return to[[]*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *DB) ListExpiredPending(ctx context.Context, at time.Time) ([]*persistence.Job, error) {
	args := m.Called(ctx, at)
	return to[[]*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *DB) LoadAssignments(ctx context.Context, jobID string) ([]*persistence.Assignment, error) {
	args := m.Called(ctx, jobID)
	return to[[]*persistence.Assignment](args.Get(0)), args.Error(1)
}

func (m *DB) ActiveJobsForTranslator(ctx context.Context, userID string) ([]*persistence.Job, error) {
	args := m.Called(ctx, userID)
	return to[[]*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *DB) Assign(ctx context.Context, job *persistence.Job, a *persistence.Assignment) error {
	args := m.Called(ctx, job, a)
	return args.Error(0)
}

func (m *DB) Reassign(ctx context.Context, cancel, create *persistence.Assignment) error {
	args := m.Called(ctx, cancel, create)
	return args.Error(0)
}

func (m *DB) InsertAssignment(ctx context.Context, a *persistence.Assignment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *DB) UpdateAssignment(ctx context.Context, a *persistence.Assignment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *DB) DeleteAssignment(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *DB) LoadUser(ctx context.Context, id string) (*persistence.User, error) {
	args := m.Called(ctx, id)
	return to[*persistence.User](args.Get(0)), args.Error(1)
}

func (m *DB) ListActiveTranslators(ctx context.Context) ([]*persistence.User, error) {
	args := m.Called(ctx)
	return to[[]*persistence.User](args.Get(0)), args.Error(1)
}

func (m *DB) LoadBlacklist(ctx context.Context, customerID string) ([]string, error) {
	args := m.Called(ctx, customerID)
	return to[[]string](args.Get(0)), args.Error(1)
}

func (m *DB) SpecificTranslator(ctx context.Context, jobID string) (string, error) {
	args := m.Called(ctx, jobID)
	return args.String(0), args.Error(1)
}

func (m *DB) ClearSentRecords(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *DB) LockEmailTable(ctx context.Context, jobID, msgType, email string) error {
	args := m.Called(ctx, jobID, msgType, email)
	return args.Error(0)
}

func (m *DB) UnLockEmailTable(ctx context.Context, jobID, msgType, email string, value *int) error {
	args := m.Called(ctx, jobID, msgType, email, value)
	return args.Error(0)
}

// TownChecker is coverage area collaborator mock
type TownChecker struct{ mock.Mock }

func (m *TownChecker) SameCoverageArea(ctx context.Context, userIDA, userIDB string) (bool, error) {
	args := m.Called(ctx, userIDA, userIDB)
	return args.Bool(0), args.Error(1)
}

// Sender is postgres queue mock
type Sender struct{ mock.Mock }

func (m *Sender) SendMessage(ctx context.Context, msg messages.Message, queue string) error {
	args := m.Called(ctx, msg, queue)
	return args.Error(0)
}

func (m *Sender) SendMessageAt(ctx context.Context, msg messages.Message, queue string, at time.Time) error {
	args := m.Called(ctx, msg, queue, at)
	return args.Error(0)
}

// Filter is eligibility pipeline mock
type Filter struct{ mock.Mock }

func (m *Filter) PotentialJobs(ctx context.Context, translator *persistence.User) ([]*persistence.Job, error) {
	args := m.Called(ctx, translator)
	return to[[]*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *Filter) PotentialTranslators(ctx context.Context, job *persistence.Job) ([]*persistence.User, error) {
	args := m.Called(ctx, job)
	return to[[]*persistence.User](args.Get(0)), args.Error(1)
}

// Languages is language lookup mock
type Languages struct{ mock.Mock }

func (m *Languages) LanguageNameFor(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

// PushClient is push gateway client mock
type PushClient struct{ mock.Mock }

func (m *PushClient) Send(ctx context.Context, emails []string, jobID string, payload map[string]string, text string) error {
	args := m.Called(ctx, emails, jobID, payload, text)
	return args.Error(0)
}

// SMSClient is sms gateway client mock
type SMSClient struct{ mock.Mock }

func (m *SMSClient) Send(ctx context.Context, number, text string) error {
	args := m.Called(ctx, number, text)
	return args.Error(0)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
