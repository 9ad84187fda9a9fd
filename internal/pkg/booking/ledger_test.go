package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
	"github.com/airenas/tolka/internal/pkg/test"
	"github.com/airenas/tolka/internal/pkg/test/mocks"
	"github.com/airenas/tolka/internal/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var tNow = time.Date(2023, 3, 10, 12, 0, 0, 0, time.UTC)

var (
	dbMock *mocks.DB
	ledger *Ledger
)

func initLedgerTest(t *testing.T) {
	dbMock = &mocks.DB{}
	var err error
	ledger, err = NewLedger(dbMock, func() time.Time { return tNow })
	require.Nil(t, err)
	dbMock.On("UpdateAssignment", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("UpdateJob", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("InsertJob", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("InsertAssignment", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("DeleteAssignment", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("Assign", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	dbMock.On("Reassign", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	dbMock.On("ActiveJobsForTranslator", mock.Anything, mock.Anything).Return([]*persistence.Job{}, nil)
	dbMock.On("LoadAssignments", mock.Anything, mock.Anything).Return([]*persistence.Assignment{}, nil)
}

func pendingJob() *persistence.Job {
	return &persistence.Job{ID: "j1", UserID: "c1", Status: status.Pending.String(),
		Due: tNow.Add(48 * time.Hour)}
}

func TestCurrentAssignment_Active(t *testing.T) {
	initLedgerTest(t)
	active := &persistence.Assignment{ID: "a2", JobID: "j1", UserID: "t1"}
	done := &persistence.Assignment{ID: "a1", JobID: "j1", UserID: "t2",
		CompletedAt: utils.ToSQLTime(tNow.Add(-time.Hour))}
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadAssignments", mock.Anything, "j1").Return([]*persistence.Assignment{done, active}, nil)
	res, err := ledger.CurrentAssignment(test.Ctx(t), "j1")
	require.Nil(t, err)
	assert.Equal(t, "a2", res.ID)
}

func TestCurrentAssignment_FallsBackToCompleted(t *testing.T) {
	initLedgerTest(t)
	old := &persistence.Assignment{ID: "a1", CompletedAt: utils.ToSQLTime(tNow.Add(-2 * time.Hour))}
	last := &persistence.Assignment{ID: "a2", CompletedAt: utils.ToSQLTime(tNow.Add(-time.Hour))}
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadAssignments", mock.Anything, "j1").Return([]*persistence.Assignment{old, last}, nil)
	res, err := ledger.CurrentAssignment(test.Ctx(t), "j1")
	require.Nil(t, err)
	assert.Equal(t, "a2", res.ID)
}

func TestCurrentAssignment_None(t *testing.T) {
	initLedgerTest(t)
	res, err := ledger.CurrentAssignment(test.Ctx(t), "j1")
	require.Nil(t, err)
	assert.Nil(t, res)
}

func TestAccept(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	a, err := ledger.Accept(test.Ctx(t), job, &persistence.User{ID: "t1"})
	require.Nil(t, err)
	assert.Equal(t, "j1", a.JobID)
	assert.Equal(t, "t1", a.UserID)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, status.Assigned.String(), job.Status)
	dbMock.AssertCalled(t, "Assign", mock.Anything, job, a)
}

func TestAccept_Conflict(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	other := &persistence.Job{ID: "j2", Due: job.Due}
	dbMock.ExpectedCalls = nil
	dbMock.On("ActiveJobsForTranslator", mock.Anything, "t1").Return([]*persistence.Job{other}, nil)
	_, err := ledger.Accept(test.Ctx(t), job, &persistence.User{ID: "t1"})
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, status.Pending.String(), job.Status)
}

func TestAccept_NotPending(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Status = status.Assigned.String()
	_, err := ledger.Accept(test.Ctx(t), job, &persistence.User{ID: "t1"})
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestAccept_RaceLost(t *testing.T) {
	initLedgerTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("ActiveJobsForTranslator", mock.Anything, mock.Anything).Return([]*persistence.Job{}, nil)
	dbMock.On("Assign", mock.Anything, mock.Anything, mock.Anything).Return(ErrInvalidState)
	_, err := ledger.Accept(test.Ctx(t), pendingJob(), &persistence.User{ID: "t1"})
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestReassign(t *testing.T) {
	initLedgerTest(t)
	current := &persistence.Assignment{ID: "a1", JobID: "j1", UserID: "t1"}
	a, err := ledger.Reassign(test.Ctx(t), current, "j1", "t2")
	require.Nil(t, err)
	assert.True(t, current.CancelAt.Valid)
	assert.Equal(t, "t2", a.UserID)
	dbMock.AssertCalled(t, "Reassign", mock.Anything, current, a)
}

func TestComplete(t *testing.T) {
	initLedgerTest(t)
	a := &persistence.Assignment{ID: "a1"}
	require.Nil(t, ledger.Complete(test.Ctx(t), a, "u1"))
	assert.Equal(t, tNow, a.CompletedAt.Time)
	assert.Equal(t, "u1", a.CompletedBy.String)
}

func TestComplete_Twice(t *testing.T) {
	initLedgerTest(t)
	a := &persistence.Assignment{ID: "a1", CompletedAt: utils.ToSQLTime(tNow)}
	assert.True(t, errors.Is(ledger.Complete(test.Ctx(t), a, "u1"), ErrAlreadyCompleted))
}

func TestCancelByCustomer_Before24(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	st, err := ledger.CancelByCustomer(test.Ctx(t), job)
	require.Nil(t, err)
	assert.Equal(t, status.WithdrawBefore24, st)
	assert.Equal(t, status.WithdrawBefore24.String(), job.Status)
	assert.Equal(t, tNow, job.WithdrawAt.Time)
}

func TestCancelByCustomer_After24(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Due = tNow.Add(23 * time.Hour)
	st, err := ledger.CancelByCustomer(test.Ctx(t), job)
	require.Nil(t, err)
	assert.Equal(t, status.WithdrawAfter24, st)
}

func TestCancelByCustomer_Exactly24(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Due = tNow.Add(24 * time.Hour)
	st, err := ledger.CancelByCustomer(test.Ctx(t), job)
	require.Nil(t, err)
	assert.Equal(t, status.WithdrawBefore24, st)
}

func TestCancelByCustomer_CancelsActive(t *testing.T) {
	initLedgerTest(t)
	active := &persistence.Assignment{ID: "a1", JobID: "j1", UserID: "t1"}
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadAssignments", mock.Anything, "j1").Return([]*persistence.Assignment{active}, nil)
	dbMock.On("UpdateAssignment", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("UpdateJob", mock.Anything, mock.Anything).Return(nil)
	_, err := ledger.CancelByCustomer(test.Ctx(t), pendingJob())
	require.Nil(t, err)
	assert.True(t, active.CancelAt.Valid)
	dbMock.AssertCalled(t, "UpdateAssignment", mock.Anything, active)
}

func TestCancelByTranslator(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Status = status.Assigned.String()
	a := &persistence.Assignment{ID: "a1", JobID: "j1", UserID: "t1"}
	require.Nil(t, ledger.CancelByTranslator(test.Ctx(t), job, a))
	assert.Equal(t, status.Pending.String(), job.Status)
	assert.Equal(t, tNow, job.Created)
	assert.Equal(t, job.Due.Add(-8*time.Hour), job.WillExpireAt)
	dbMock.AssertCalled(t, "DeleteAssignment", mock.Anything, "a1")
}

func TestCancelByTranslator_TooLate(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Due = tNow.Add(24 * time.Hour)
	err := ledger.CancelByTranslator(test.Ctx(t), job, &persistence.Assignment{ID: "a1"})
	assert.True(t, errors.Is(err, ErrTooLate))
	dbMock.AssertNotCalled(t, "DeleteAssignment", mock.Anything, mock.Anything)
}

func TestRemoveTranslator_NoNoticeWindow(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Status = status.Assigned.String()
	job.Due = tNow.Add(10 * time.Hour)
	a := &persistence.Assignment{ID: "a1", JobID: "j1", UserID: "t1"}
	require.Nil(t, ledger.RemoveTranslator(test.Ctx(t), job, a))
	assert.Equal(t, status.Pending.String(), job.Status)
	assert.Equal(t, tNow, job.Created)
	dbMock.AssertCalled(t, "DeleteAssignment", mock.Anything, "a1")
}

func TestReopen_TimedOutClones(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Status = status.TimedOut.String()
	dbMock.On("LoadJob", mock.Anything, "j1").Return(job, nil)
	res, err := ledger.Reopen(test.Ctx(t), "j1", "u1")
	require.Nil(t, err)
	assert.NotEqual(t, "j1", res.ID)
	assert.Equal(t, status.Pending.String(), res.Status)
	assert.Contains(t, res.AdminComments, "#j1")
	assert.Equal(t, status.TimedOut.String(), job.Status)
	dbMock.AssertCalled(t, "InsertJob", mock.Anything, res)
	dbMock.AssertCalled(t, "InsertAssignment", mock.Anything, mock.MatchedBy(func(a *persistence.Assignment) bool {
		return a.JobID == res.ID && a.UserID == "u1" && a.CancelAt.Valid
	}))
}

func TestReopen_InPlace(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Status = status.WithdrawAfter24.String()
	dbMock.On("LoadJob", mock.Anything, "j1").Return(job, nil)
	res, err := ledger.Reopen(test.Ctx(t), "j1", "u1")
	require.Nil(t, err)
	assert.Equal(t, "j1", res.ID)
	assert.Equal(t, status.Pending.String(), res.Status)
	dbMock.AssertNotCalled(t, "InsertJob", mock.Anything, mock.Anything)
}

func TestReopen_CancelsOpenAssignment(t *testing.T) {
	initLedgerTest(t)
	job := pendingJob()
	job.Status = status.Assigned.String()
	open := &persistence.Assignment{ID: "a1", JobID: "j1", UserID: "t1"}
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadJob", mock.Anything, "j1").Return(job, nil)
	dbMock.On("LoadAssignments", mock.Anything, "j1").Return([]*persistence.Assignment{open}, nil)
	dbMock.On("UpdateAssignment", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("UpdateJob", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("InsertAssignment", mock.Anything, mock.Anything).Return(nil)
	_, err := ledger.Reopen(test.Ctx(t), "j1", "u1")
	require.Nil(t, err)
	assert.True(t, open.CancelAt.Valid)
}
