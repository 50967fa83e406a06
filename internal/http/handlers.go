package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/conversion"
	"github.com/fyrsmithlabs/digipin/internal/trigger"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus reports history and telemetry state.
func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()

	items, limit, err := s.services.History.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to load history for status", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}

	resp := StatusResponse{
		Status:  "ok",
		Version: s.config.Version,
		History: HistoryStatus{Items: len(items), Limit: limit},
	}
	if s.services.Telemetry != nil {
		h := s.services.Telemetry.Health()
		resp.Telemetry = &TelemetryStatus{
			Healthy:  h.Healthy,
			Degraded: h.Degraded,
			Reasons:  h.Reasons,
		}
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEncode(c echo.Context) error {
	var req EncodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	code, err := s.services.Converter.RunEncode(c.Request().Context(), string(req.Lat), string(req.Lng))
	if err != nil {
		return s.conversionError(c, err)
	}
	return c.JSON(http.StatusOK, EncodeResponse{Code: code})
}

func (s *Server) handleDecode(c echo.Context) error {
	var req DecodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	coords, err := s.services.Converter.RunDecode(c.Request().Context(), req.Code)
	if err != nil {
		return s.conversionError(c, err)
	}
	return c.JSON(http.StatusOK, DecodeResponse{Lat: coords.Latitude, Lng: coords.Longitude})
}

func (s *Server) handleSelection(c echo.Context) error {
	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.services.Selector.Handle(c.Request().Context(), req.Text)
	if errors.Is(err, trigger.ErrBusy) {
		return echo.NewHTTPError(http.StatusConflict, "a selection is already being converted")
	}
	if err != nil {
		return s.conversionError(c, err)
	}

	resp := SelectionResponse{Outcome: string(res.Outcome), Code: res.Code}
	switch res.Outcome {
	case trigger.OutcomeHint:
		resp.Message = trigger.HintMessage
	case trigger.OutcomeFailed:
		resp.Message = trigger.FailureMessage
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c echo.Context) error {
	ctx := c.Request().Context()
	items, limit, err := s.services.History.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to load history", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	return c.JSON(http.StatusOK, HistoryResponse{Items: items, Limit: limit})
}

func (s *Server) handleClearHistory(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.services.History.Clear(ctx); err != nil {
		s.logger.Error(ctx, "failed to clear history", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSetLimit(c echo.Context) error {
	var req LimitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	items, limit, err := s.services.History.SetLimit(ctx, req.Limit)
	if err != nil {
		s.logger.Error(ctx, "failed to set history limit", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	return c.JSON(http.StatusOK, HistoryResponse{Items: items, Limit: limit})
}

func (s *Server) handleMaps(c echo.Context) error {
	target, ok := s.services.Maps.URL(c.QueryParam("coords"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "coords must be lat,lng")
	}
	return c.JSON(http.StatusOK, MapsResponse{URL: target})
}

// conversionError maps workflow errors to HTTP status codes.
func (s *Server) conversionError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	switch {
	case errors.Is(err, conversion.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, conversion.ErrInvalidCode):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid DIGIPIN")
	case errors.Is(err, conversion.ErrProviderFailure):
		s.logger.Error(ctx, "geocode provider failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "geocode provider failure")
	case errors.Is(err, conversion.ErrStorage):
		s.logger.Error(ctx, "history storage failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	default:
		s.logger.Error(ctx, "conversion failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
