package stt

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wazo-platform/wazo-stt-gateway/internal/backend"
	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Start)
	g.DELETE("/:call_id", h.Stop)
}

type StartRequest struct {
	CallID     string `json:"call_id"`
	TenantUUID string `json:"tenant_uuid"`
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	UseAI      bool   `json:"use_ai,omitempty"`
}

type StartResponse struct {
	CallID     string `json:"call_id"`
	TenantUUID string `json:"tenant_uuid"`
	State      string `json:"state"`
}

type ListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
}

// List godoc
// @Summary      List transcription sessions
// @Description  Returns every currently active transcription session
// @Tags         stt
// @Produce      json
// @Success      200  {object}  ListResponse
// @Router       /stt [get]
func (h *Handler) List(c echo.Context) error {
	sessions := h.manager.ListSessions()
	return c.JSON(http.StatusOK, ListResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
}

// Start godoc
// @Summary      Start transcription for a call
// @Description  Attaches to the call's audio stream and begins transcribing
// @Tags         stt
// @Accept       json
// @Produce      json
// @Param        request  body      StartRequest  true  "Call to transcribe"
// @Success      201      {object}  StartResponse
// @Failure      400      {object}  shared.APIError
// @Failure      409      {object}  shared.APIError
// @Failure      502      {object}  shared.APIError
// @Router       /stt [post]
func (h *Handler) Start(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.CallID == "" {
		return shared.BadRequest("missing_call_id", "call_id is required")
	}

	opts := backend.Options{
		Language:   req.Language,
		SampleRate: req.SampleRate,
		UseAI:      req.UseAI,
	}
	err := h.manager.Start(c.Request().Context(), req.CallID, req.TenantUUID, opts)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrAlreadyActive):
		return shared.Conflict("already_active", "transcription already active for this call")
	case errors.Is(err, shared.ErrBackendStartFailed):
		h.logger.Error("backend start failed", "call_id", req.CallID, "error", err)
		return shared.BadGateway("backend_unavailable", "transcription backend unavailable")
	case errors.Is(err, shared.ErrUnsupportedBackend):
		return shared.BadRequest("unsupported_backend", "unsupported transcription backend")
	default:
		h.logger.Error("failed to start transcription", "call_id", req.CallID, "error", err)
		return shared.BadGateway("start_failed", "could not attach to the call audio stream")
	}

	return c.JSON(http.StatusCreated, StartResponse{
		CallID:     req.CallID,
		TenantUUID: req.TenantUUID,
		State:      StateStreaming.String(),
	})
}

// Stop godoc
// @Summary      Stop transcription for a call
// @Description  Detaches from the call and discards any unflushed audio
// @Tags         stt
// @Produce      json
// @Param        call_id      path   string  true   "Call identifier"
// @Param        tenant_uuid  query  string  false  "Tenant scope"
// @Success      204
// @Failure      404  {object}  shared.APIError
// @Router       /stt/{call_id} [delete]
func (h *Handler) Stop(c echo.Context) error {
	callID := c.Param("call_id")
	tenantUUID := c.QueryParam("tenant_uuid")

	if !h.manager.Stop(c.Request().Context(), callID, tenantUUID) {
		return shared.NotFound("session_not_found", "no active transcription for this call")
	}
	return c.NoContent(http.StatusNoContent)
}
