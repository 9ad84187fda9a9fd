package bookingservice

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/api"
	"github.com/airenas/tolka/internal/pkg/booking"
	"github.com/airenas/tolka/internal/pkg/persistence"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Booking is the engine behind the HTTP layer
type Booking interface {
	Create(ctx context.Context, req *api.CreateRequest) (*persistence.Job, error)
	Accept(ctx context.Context, jobID, translatorID string) (*persistence.Job, error)
	Cancel(ctx context.Context, jobID, userID string) (*persistence.Job, error)
	Update(ctx context.Context, req *api.UpdateRequest) (*persistence.Job, error)
	End(ctx context.Context, jobID, userID string) (*persistence.Job, error)
	CustomerNotCall(ctx context.Context, jobID string) (*persistence.Job, error)
	Reopen(ctx context.Context, jobID, userID string) (*persistence.Job, error)
	PotentialJobs(ctx context.Context, translatorID string) ([]*persistence.Job, error)
	JobsForUser(ctx context.Context, userID string) (*api.UserJobs, error)
}

// Data keeps data required for service work
type Data struct {
	Port    int
	Booking Booking
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP TOLKA booking service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Booking == nil {
		return errors.New("no booking engine")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("tolka_booking", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.POST("/jobs", create(data))
	e.PATCH("/jobs/:jobID", update(data))
	e.POST("/jobs/:jobID/accept/:translatorID", accept(data))
	e.POST("/jobs/:jobID/cancel/:userID", cancel(data))
	e.POST("/jobs/:jobID/end/:userID", end(data))
	e.POST("/jobs/:jobID/customer-not-call", customerNotCall(data))
	e.POST("/jobs/:jobID/reopen/:userID", reopen(data))
	e.GET("/jobs/user/:userID", jobsForUser(data))
	e.GET("/jobs/potential/:translatorID", potentialJobs(data))
	e.GET("/live", live(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func create(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("create method")()
		ctx := c.Request().Context()

		var req api.CreateRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't decode request")
		}
		job, err := data.Booking.Create(ctx, &req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, toResponse(job))
	}
}

func update(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("update method")()
		ctx := c.Request().Context()

		var req api.UpdateRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't decode request")
		}
		req.JobID = c.Param(api.PrmJobID)
		if req.JobID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no jobID")
		}
		job, err := data.Booking.Update(ctx, &req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, toResponse(job))
	}
}

func accept(data *Data) func(echo.Context) error {
	return jobAction(data, "accept method", api.PrmTranslator, data.Booking.Accept)
}

func cancel(data *Data) func(echo.Context) error {
	return jobAction(data, "cancel method", api.PrmUserID, data.Booking.Cancel)
}

func end(data *Data) func(echo.Context) error {
	return jobAction(data, "end method", api.PrmUserID, data.Booking.End)
}

func reopen(data *Data) func(echo.Context) error {
	return jobAction(data, "reopen method", api.PrmUserID, data.Booking.Reopen)
}

// jobAction wraps the (jobID, userID) mutations sharing one handler shape
func jobAction(data *Data, name, userPrm string,
	f func(ctx context.Context, jobID, userID string) (*persistence.Job, error)) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate(name)()
		ctx := c.Request().Context()

		jobID := c.Param(api.PrmJobID)
		if jobID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no jobID")
		}
		userID := c.Param(userPrm)
		if userID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no "+userPrm)
		}
		job, err := f(ctx, jobID, userID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, toResponse(job))
	}
}

func customerNotCall(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("customerNotCall method")()
		ctx := c.Request().Context()

		jobID := c.Param(api.PrmJobID)
		if jobID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no jobID")
		}
		job, err := data.Booking.CustomerNotCall(ctx, jobID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, toResponse(job))
	}
}

func jobsForUser(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("jobsForUser method")()
		ctx := c.Request().Context()

		userID := c.Param(api.PrmUserID)
		if userID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no userID")
		}
		res, err := data.Booking.JobsForUser(ctx, userID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func potentialJobs(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("potentialJobs method")()
		ctx := c.Request().Context()

		translatorID := c.Param(api.PrmTranslator)
		if translatorID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no translatorID")
		}
		res, err := data.Booking.PotentialJobs(ctx, translatorID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func toResponse(job *persistence.Job) api.JobResponse {
	return api.JobResponse{ID: job.ID, Status: job.Status}
}

// httpError maps business outcomes to status codes
func httpError(err error) error {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	}
	if errors.Is(err, booking.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, booking.ErrConflict) || errors.Is(err, booking.ErrInvalidState) ||
		errors.Is(err, booking.ErrTooLate) || errors.Is(err, booking.ErrAlreadyCompleted) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	goapp.Log.Error().Err(err).Send()
	return echo.NewHTTPError(http.StatusInternalServerError)
}
