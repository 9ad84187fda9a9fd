package bookingservice

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/airenas/tolka/internal/pkg/api"
	"github.com/airenas/tolka/internal/pkg/booking"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/test"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	bookingMock *mockBooking
	tData       *Data
	tEcho       *echo.Echo
	tResp       *httptest.ResponseRecorder
)

func initTest(t *testing.T) {
	bookingMock = &mockBooking{}
	tData = &Data{}
	tData.Booking = bookingMock
	tEcho = initRoutes(tData)
	tResp = httptest.NewRecorder()
}

func testJob() *persistence.Job {
	return &persistence.Job{ID: "1", Status: "pending"}
}

func TestWrongPath(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/invalid", nil)
	testCode(t, req, 404)
}

func TestWrongMethod(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	testCode(t, req, 405)
}

func Test_Live(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	testCode(t, req, 200)
}

func Test_Create_Returns(t *testing.T) {
	initTest(t)
	bookingMock.On("Create", mock.Anything, mock.Anything).Return(testJob(), nil)
	req := httptest.NewRequest(http.MethodPost, "/jobs",
		strings.NewReader(`{"user_id":"u1","from_language_id":"lang1","duration":30}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[api.JobResponse](t, resp.Result())
	assert.Equal(t, api.JobResponse{ID: "1", Status: "pending"}, res)
	cReq := bookingMock.Calls[0].Arguments[1].(*api.CreateRequest)
	assert.Equal(t, "u1", cReq.UserID)
	assert.Equal(t, 30, cReq.Duration)
}

func Test_Create_WrongInput(t *testing.T) {
	initTest(t)
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`olia`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	testCode(t, req, http.StatusBadRequest)
}

func Test_Create_Validation(t *testing.T) {
	initTest(t)
	bookingMock.On("Create", mock.Anything, mock.Anything).Return(nil, booking.NewValidationError("duration"))
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	testCode(t, req, http.StatusBadRequest)
}

func Test_Create_Fail(t *testing.T) {
	initTest(t)
	bookingMock.On("Create", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("olia"))
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	testCode(t, req, http.StatusInternalServerError)
}

func Test_Accept_Returns(t *testing.T) {
	initTest(t)
	job := testJob()
	job.Status = "assigned"
	bookingMock.On("Accept", mock.Anything, "1", "t1").Return(job, nil)
	req := httptest.NewRequest(http.MethodPost, "/jobs/1/accept/t1", nil)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[api.JobResponse](t, resp.Result())
	assert.Equal(t, "assigned", res.Status)
}

func Test_Accept_Conflict(t *testing.T) {
	initTest(t)
	bookingMock.On("Accept", mock.Anything, "1", "t1").Return(nil,
		fmt.Errorf("lost race: %w", booking.ErrInvalidState))
	req := httptest.NewRequest(http.MethodPost, "/jobs/1/accept/t1", nil)
	testCode(t, req, http.StatusConflict)
}

func Test_Accept_NotFound(t *testing.T) {
	initTest(t)
	bookingMock.On("Accept", mock.Anything, "2", "t1").Return(nil,
		fmt.Errorf("can't load job: %w", booking.ErrNotFound))
	req := httptest.NewRequest(http.MethodPost, "/jobs/2/accept/t1", nil)
	testCode(t, req, http.StatusNotFound)
}

func Test_Cancel_Returns(t *testing.T) {
	initTest(t)
	job := testJob()
	job.Status = "withdrawbefore24"
	bookingMock.On("Cancel", mock.Anything, "1", "u1").Return(job, nil)
	req := httptest.NewRequest(http.MethodPost, "/jobs/1/cancel/u1", nil)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[api.JobResponse](t, resp.Result())
	assert.Equal(t, "withdrawbefore24", res.Status)
}

func Test_Cancel_TooLate(t *testing.T) {
	initTest(t)
	bookingMock.On("Cancel", mock.Anything, "1", "t1").Return(nil, booking.ErrTooLate)
	req := httptest.NewRequest(http.MethodPost, "/jobs/1/cancel/t1", nil)
	testCode(t, req, http.StatusConflict)
}

func Test_Update_Returns(t *testing.T) {
	initTest(t)
	job := testJob()
	job.Status = "assigned"
	bookingMock.On("Update", mock.Anything, mock.Anything).Return(job, nil)
	req := httptest.NewRequest(http.MethodPatch, "/jobs/1",
		strings.NewReader(`{"admin_id":"a1","status":"assigned","translator_id":"t1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[api.JobResponse](t, resp.Result())
	assert.Equal(t, "assigned", res.Status)
	uReq := bookingMock.Calls[0].Arguments[1].(*api.UpdateRequest)
	assert.Equal(t, "1", uReq.JobID)
	assert.Equal(t, "t1", uReq.TranslatorID)
}

func Test_End_Returns(t *testing.T) {
	initTest(t)
	job := testJob()
	job.Status = "completed"
	bookingMock.On("End", mock.Anything, "1", "u1").Return(job, nil)
	req := httptest.NewRequest(http.MethodPost, "/jobs/1/end/u1", nil)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[api.JobResponse](t, resp.Result())
	assert.Equal(t, "completed", res.Status)
}

func Test_CustomerNotCall_Returns(t *testing.T) {
	initTest(t)
	job := testJob()
	job.Status = "notcarriedoutcustomer"
	bookingMock.On("CustomerNotCall", mock.Anything, "1").Return(job, nil)
	req := httptest.NewRequest(http.MethodPost, "/jobs/1/customer-not-call", nil)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[api.JobResponse](t, resp.Result())
	assert.Equal(t, "notcarriedoutcustomer", res.Status)
}

func Test_Reopen_Returns(t *testing.T) {
	initTest(t)
	bookingMock.On("Reopen", mock.Anything, "1", "u1").Return(testJob(), nil)
	req := httptest.NewRequest(http.MethodPost, "/jobs/1/reopen/u1", nil)
	testCode(t, req, http.StatusOK)
}

func Test_JobsForUser_Returns(t *testing.T) {
	initTest(t)
	bookingMock.On("JobsForUser", mock.Anything, "u1").Return(&api.UserJobs{
		Emergency: []*persistence.Job{}, Normal: []*persistence.Job{testJob()}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/jobs/user/u1", nil)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[api.UserJobs](t, resp.Result())
	require.Equal(t, 1, len(res.Normal))
	assert.Equal(t, "1", res.Normal[0].ID)
}

func Test_PotentialJobs_Returns(t *testing.T) {
	initTest(t)
	bookingMock.On("PotentialJobs", mock.Anything, "t1").Return([]*persistence.Job{testJob()}, nil)
	req := httptest.NewRequest(http.MethodGet, "/jobs/potential/t1", nil)
	resp := testCode(t, req, http.StatusOK)
	res := test.Decode[[]*persistence.Job](t, resp.Result())
	require.Equal(t, 1, len(res))
}

func Test_validate(t *testing.T) {
	initTest(t)
	assert.Nil(t, validate(tData))
	assert.NotNil(t, validate(&Data{}))
}

func testCode(t *testing.T, req *http.Request, code int) *httptest.ResponseRecorder {
	t.Helper()
	tEcho.ServeHTTP(tResp, req)
	require.Equal(t, code, tResp.Code)
	return tResp
}

type mockBooking struct{ mock.Mock }

func (m *mockBooking) Create(ctx context.Context, req *api.CreateRequest) (*persistence.Job, error) {
	args := m.Called(ctx, req)
	return toJob(args.Get(0)), args.Error(1)
}

func (m *mockBooking) Accept(ctx context.Context, jobID, translatorID string) (*persistence.Job, error) {
	args := m.Called(ctx, jobID, translatorID)
	return toJob(args.Get(0)), args.Error(1)
}

func (m *mockBooking) Cancel(ctx context.Context, jobID, userID string) (*persistence.Job, error) {
	args := m.Called(ctx, jobID, userID)
	return toJob(args.Get(0)), args.Error(1)
}

func (m *mockBooking) Update(ctx context.Context, req *api.UpdateRequest) (*persistence.Job, error) {
	args := m.Called(ctx, req)
	return toJob(args.Get(0)), args.Error(1)
}

func (m *mockBooking) End(ctx context.Context, jobID, userID string) (*persistence.Job, error) {
	args := m.Called(ctx, jobID, userID)
	return toJob(args.Get(0)), args.Error(1)
}

func (m *mockBooking) CustomerNotCall(ctx context.Context, jobID string) (*persistence.Job, error) {
	args := m.Called(ctx, jobID)
	return toJob(args.Get(0)), args.Error(1)
}

func (m *mockBooking) Reopen(ctx context.Context, jobID, userID string) (*persistence.Job, error) {
	args := m.Called(ctx, jobID, userID)
	return toJob(args.Get(0)), args.Error(1)
}

func (m *mockBooking) PotentialJobs(ctx context.Context, translatorID string) ([]*persistence.Job, error) {
	args := m.Called(ctx, translatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*persistence.Job), args.Error(1)
}

func (m *mockBooking) JobsForUser(ctx context.Context, userID string) (*api.UserJobs, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UserJobs), args.Error(1)
}

func toJob(v interface{}) *persistence.Job {
	if v == nil {
		return nil
	}
	return v.(*persistence.Job)
}
