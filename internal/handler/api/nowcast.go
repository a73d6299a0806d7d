package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"PollPulse/internal/domain/models"
	domrepo "PollPulse/internal/domain/repository"
	icache "PollPulse/internal/service/cache"
	"PollPulse/internal/usecase"
	xhttp "PollPulse/pkg/http"
	xlogger "PollPulse/pkg/logger"
	"PollPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// NowcastEchoHandler exposes the nowcast pipeline over HTTP.
type NowcastEchoHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.NowcastPipeline
	store    domrepo.PollStore

	// request fields override these run defaults
	defaults usecase.NowcastParams

	cache    icache.BytesCache // nil disables caching
	cacheTTL time.Duration
}

func NewNowcastEchoHandler(
	logger *xlogger.Logger,
	pipeline *usecase.NowcastPipeline,
	store domrepo.PollStore,
	defaults usecase.NowcastParams,
) *NowcastEchoHandler {
	return &NowcastEchoHandler{
		logger:   logger,
		pipeline: pipeline,
		store:    store,
		defaults: defaults,
	}
}

// WithCache enables forecast caching keyed by request parameters.
func (h *NowcastEchoHandler) WithCache(c icache.BytesCache, ttl time.Duration) *NowcastEchoHandler {
	h.cache = c
	h.cacheTTL = ttl
	return h
}

func (h *NowcastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/nowcast", h.Nowcast)
	g.GET("/health", h.Health)
}

func (h *NowcastEchoHandler) Nowcast(c echo.Context) error {
	req := &models.NowcastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	params := h.mergeParams(req)

	var key string
	if h.cache != nil && req.UseCache {
		key = icache.ForecastKey(params)
		if req.RefreshCache {
			if err := h.cache.Delete(key); err != nil {
				h.logger.Warn("cache invalidate failed", xlogger.Error(err))
			}
		} else if b, ok, err := h.cache.GetBytes(key); err == nil && ok {
			var cached models.Forecast
			if json.Unmarshal(b, &cached) == nil {
				return xhttp.SuccessResponse(c, &cached)
			}
		}
	}

	forecast, err := h.pipeline.Run(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("nowcast usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, domainAppError(err))
	}

	if h.cache != nil && req.UseCache {
		if b, err := json.Marshal(forecast); err == nil {
			if err := h.cache.SetBytes(key, b, h.cacheTTL); err != nil {
				h.logger.Warn("cache store failed", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, forecast)
}

func (h *NowcastEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  err.Error(),
		})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// mergeParams layers request fields over the configured defaults.
func (h *NowcastEchoHandler) mergeParams(req *models.NowcastRequest) usecase.NowcastParams {
	p := h.defaults
	if req.ElectionPeriodID != "" {
		p.PeriodID = req.ElectionPeriodID
	}
	if len(req.Candidates) > 0 {
		p.Candidates = req.Candidates
	}
	if req.CurrentDate != "" {
		p.CurrentDate = util.ParseDateDefault(req.CurrentDate, p.CurrentDate)
	}
	if req.LookbackDays > 0 {
		p.LookbackDays = req.LookbackDays
	}
	if req.NSimulations > 0 {
		p.NSimulations = req.NSimulations
	}
	if req.ShyVoterAdjust != 0 {
		p.ShyVoterAdjustment = req.ShyVoterAdjust
	}
	if req.ShyCandidate != "" {
		p.ShyCandidate = req.ShyCandidate
	}
	if len(req.ShyRegions) > 0 {
		p.ShyRegions = req.ShyRegions
	}
	if req.UncertaintyStd > 0 {
		p.UncertaintyStd = req.UncertaintyStd
	}
	if req.RandomSeed != nil {
		p.RandomSeed = req.RandomSeed
	}
	if req.MinSamples > 0 {
		p.MinSamples = req.MinSamples
	}
	if req.RequireAll {
		p.RequireAll = true
	}
	return p
}

// domainAppError maps domain sentinels onto HTTP-facing errors.
func domainAppError(err error) error {
	switch {
	case errors.Is(err, models.ErrConfig):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrDataInsufficient):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrModelOutput):
		return xhttp.InternalError("model produced invalid output").WithError(err)
	default:
		return xhttp.InternalError("nowcast failed").WithError(err)
	}
}
