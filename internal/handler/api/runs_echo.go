package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SessionLens/internal/domain/models"
	"SessionLens/internal/usecase"
	xhttp "SessionLens/pkg/http"
	xlogger "SessionLens/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RunService is what the runs API needs from the pipeline.
type RunService interface {
	Run(ctx context.Context, params usecase.RunParams) (*models.RunResult, error)
	Get(runID string) (*models.RunResult, error)
	List() []models.RunSummary
	Predict(runID string, date time.Time, asiaRange, europeRange float64) (models.ContextPrediction, error)
}

// SessionClassifier maps a reference-timezone clock time to its session.
type SessionClassifier interface {
	ClassifyClock(clock string) (models.Session, error)
}

// HealthChecker is an optional infrastructure dependency checked by /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// JobService queues runs for the background workers.
type JobService interface {
	Submit(ctx context.Context, params usecase.RunParams) (*models.JobStatus, error)
	Status(ctx context.Context, jobID string) (*models.JobStatus, error)
}

// RunsEchoHandler serves pipeline runs and their derived views.
type RunsEchoHandler struct {
	logger   *xlogger.Logger
	runs     RunService
	sessions SessionClassifier
	checks   map[string]HealthChecker
	jobs     JobService
	inputDir string
	now      func() time.Time
}

type RunsHandlerOption func(*RunsEchoHandler)

// WithJobs exposes the /api/jobs routes.
func WithJobs(jobs JobService) RunsHandlerOption {
	return func(h *RunsEchoHandler) { h.jobs = jobs }
}

// WithInputDir allows path inputs, resolved inside dir. Without it only
// dataset ids are accepted.
func WithInputDir(dir string) RunsHandlerOption {
	return func(h *RunsEchoHandler) { h.inputDir = dir }
}

func NewRunsEchoHandler(logger *xlogger.Logger, runs RunService, sessions SessionClassifier, checks map[string]HealthChecker, opts ...RunsHandlerOption) *RunsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &RunsEchoHandler{logger: logger, runs: runs, sessions: sessions, checks: checks, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/runs", h.ListRuns)
	g.POST("/runs", h.CreateRun)
	g.GET("/runs/:id", h.GetRun)
	g.GET("/runs/:id/daily", h.Daily)
	g.GET("/runs/:id/sessions", h.Sessions)
	g.GET("/runs/:id/rules", h.Rules)
	g.GET("/runs/:id/streaks", h.Streaks)
	g.GET("/runs/:id/correlations", h.Correlations)
	g.GET("/runs/:id/monthly", h.Monthly)
	g.GET("/runs/:id/predict", h.Predict)
	g.GET("/compare", h.Compare)
	g.GET("/sessions/classify", h.ClassifyClock)

	if h.jobs != nil {
		g.POST("/jobs", h.SubmitJob)
		g.GET("/jobs/:id", h.JobStatus)
	}
}

func (h *RunsEchoHandler) ListRuns(c echo.Context) error {
	list := h.runs.List()
	return xhttp.ListResponse(c, list, len(list))
}

func (h *RunsEchoHandler) CreateRun(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, err := h.runParams(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.runs.Run(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("run usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, res.Summary())
}

func (h *RunsEchoHandler) GetRun(c echo.Context) error {
	res, ok, err := h.lookup(c)
	if !ok {
		return err
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RunsEchoHandler) Daily(c echo.Context) error {
	req := &models.DailyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.runs.Get(req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	rows := make([]models.DailyStats, 0, len(res.Daily))
	for _, d := range res.Daily {
		if req.Classification == "" || string(d.Classification) == req.Classification {
			rows = append(rows, d)
		}
	}
	total := len(rows)
	if len(rows) > req.Limit {
		rows = rows[len(rows)-req.Limit:]
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *RunsEchoHandler) Sessions(c echo.Context) error {
	req := &models.SessionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.runs.Get(req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	rows := make([]models.SessionStats, 0, len(res.Sessions))
	for _, s := range res.Sessions {
		if req.Session == "" || string(s.Session) == req.Session {
			rows = append(rows, s)
		}
	}
	total := len(rows)
	if len(rows) > req.Limit {
		rows = rows[len(rows)-req.Limit:]
	}
	return xhttp.ListResponse(c, rows, total)
}

type rulesView struct {
	Rules      []models.ProbabilisticRule
	Patterns   models.Patterns
	Suppressed []string
}

func (h *RunsEchoHandler) Rules(c echo.Context) error {
	res, ok, err := h.lookup(c)
	if !ok {
		return err
	}
	view := rulesView{Rules: res.Rules, Patterns: res.Patterns}
	for _, s := range res.Patterns.Suppressed {
		view.Suppressed = append(view.Suppressed, s.Error())
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *RunsEchoHandler) Streaks(c echo.Context) error {
	res, ok, err := h.lookup(c)
	if !ok {
		return err
	}
	return xhttp.ListResponse(c, res.Streaks, len(res.Streaks))
}

func (h *RunsEchoHandler) Correlations(c echo.Context) error {
	res, ok, err := h.lookup(c)
	if !ok {
		return err
	}
	return xhttp.ListResponse(c, res.Correlations, len(res.Correlations))
}

func (h *RunsEchoHandler) Monthly(c echo.Context) error {
	res, ok, err := h.lookup(c)
	if !ok {
		return err
	}
	return xhttp.SuccessResponse(c, res.Monthly)
}

func (h *RunsEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date := h.now()
	if req.Date != "" {
		// validated by the datetime tag
		date, _ = time.Parse(models.DateLayout, req.Date)
	}
	cp, err := h.runs.Predict(req.ID, date, req.AsiaRange, req.EuropeRange)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, cp)
}

func (h *RunsEchoHandler) Compare(c echo.Context) error {
	req := &models.CompareRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	runs := make([]usecase.ContractRun, 0, len(req.Runs))
	for _, id := range req.Runs {
		res, err := h.runs.Get(id)
		if err != nil {
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
		runs = append(runs, usecase.ContractRun{Contract: res.DatasetID, Result: res})
	}
	cmp, err := usecase.CompareContracts(runs)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, cmp)
}

func (h *RunsEchoHandler) SubmitJob(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, err := h.runParams(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	st, err := h.jobs.Submit(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("submit job error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, st)
}

func (h *RunsEchoHandler) JobStatus(c echo.Context) error {
	req := &models.RunLookupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.jobs.Status(c.Request().Context(), req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, st)
}

// runParams prefers a path over a dataset id. Paths are confined to the
// input directory.
func (h *RunsEchoHandler) runParams(req *models.RunRequest) (usecase.RunParams, error) {
	params := usecase.RunParams{Persist: req.Persist}
	if req.Path == "" {
		params.DatasetID = req.DatasetID
		return params, nil
	}
	path, err := resolveInput(h.inputDir, req.Path)
	if err != nil {
		h.logger.Warn("run path rejected", xlogger.String("path", req.Path), xlogger.Error(err))
		return params, xhttp.BadRequestErrorf("%v", err).WithError(err)
	}
	params.Path = path
	return params, nil
}

type clockView struct {
	Time    string
	Session models.Session
}

func (h *RunsEchoHandler) ClassifyClock(c echo.Context) error {
	req := &models.ClassifyClockRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.sessions.ClassifyClock(req.Time)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	}
	return xhttp.SuccessResponse(c, clockView{Time: req.Time, Session: s})
}

// Health reports every configured dependency and answers 503 when one fails.
func (h *RunsEchoHandler) Health(c echo.Context) error {
	status := map[string]string{}
	healthy := true
	for name, chk := range h.checks {
		if chk == nil {
			continue
		}
		if err := chk.Health(c.Request().Context()); err != nil {
			healthy = false
			status[name] = err.Error()
			h.logger.Warn("health check failed", xlogger.String("dependency", name), xlogger.Error(err))
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

// lookup resolves the :id run. When ok is false the error response has
// already been written and err is what the handler must return.
func (h *RunsEchoHandler) lookup(c echo.Context) (res *models.RunResult, ok bool, err error) {
	req := &models.RunLookupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, false, xhttp.BadRequestResponse(c, verr)
	}
	res, gerr := h.runs.Get(req.ID)
	if gerr != nil {
		return nil, false, xhttp.AppErrorResponse(c, toAppError(gerr))
	}
	return res, true, nil
}

// toAppError maps domain failures onto HTTP statuses.
func toAppError(err error) error {
	var (
		appErr *xhttp.AppError
		runErr *models.RunError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrRunNotFound), errors.Is(err, models.ErrJobNotFound):
		return xhttp.NotFoundErrorf("%v", err).WithError(err)
	case errors.Is(err, models.ErrFileNotFound):
		return xhttp.NotFoundErrorf("%v", models.ErrFileNotFound).WithError(err)
	case errors.As(err, &runErr):
		ae := xhttp.UnprocessableErrorf("%s failed", runErr.Stage).WithError(err).WithParam("errors", runErr.Errors)
		if len(runErr.Warnings) > 0 {
			ae.WithParam("warnings", runErr.Warnings)
		}
		return ae
	case errors.Is(err, models.ErrEmptyDataset):
		return xhttp.UnprocessableErrorf("%v", err).WithError(err)
	default:
		return xhttp.InternalErrorf("internal error").WithError(err)
	}
}
