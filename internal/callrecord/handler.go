package callrecord

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

type ListRecordsResponse struct {
	Records []CallRecord `json:"records"`
	Total   int          `json:"total"`
}

// List godoc
// @Summary      List call records
// @Description  Returns a tenant's most recent records, or every still-open record when no tenant is given
// @Tags         records
// @Produce      json
// @Param        tenant_uuid  query  string  false  "Tenant scope"
// @Param        limit        query  int     false  "Maximum records for a tenant listing"
// @Success      200  {object}  ListRecordsResponse
// @Failure      500  {object}  shared.APIError
// @Router       /records [get]
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		records []CallRecord
		err     error
	)
	if tenantUUID := c.QueryParam("tenant_uuid"); tenantUUID != "" {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		records, err = h.store.ListByTenant(ctx, tenantUUID, limit)
	} else {
		records, err = h.store.ListOpen(ctx)
	}
	if err != nil {
		h.logger.Error("failed to list call records", "error", err)
		return shared.InternalError("list_failed", "failed to list call records")
	}

	return c.JSON(http.StatusOK, ListRecordsResponse{
		Records: records,
		Total:   len(records),
	})
}

// Get godoc
// @Summary      Fetch one call record
// @Tags         records
// @Produce      json
// @Param        id  path  string  true  "Record identifier"
// @Success      200  {object}  CallRecord
// @Failure      404  {object}  shared.APIError
// @Router       /records/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	rec, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("record_not_found", "no call record with this id")
	}
	if err != nil {
		h.logger.Error("failed to fetch call record", "id", c.Param("id"), "error", err)
		return shared.InternalError("get_failed", "failed to fetch call record")
	}
	return c.JSON(http.StatusOK, rec)
}
