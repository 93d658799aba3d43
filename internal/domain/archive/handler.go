package archive

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/archive", h.Archive)
}

func (h *Handler) Archive(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SourceTable == "" || req.ArchiveTable == "" || req.IDColumn == "" || req.IDValue == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "source_table, archive_table, id_column and id_value are required")
	}

	result, err := h.engine.Archive(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrTransactionFailed) {
			// Retryable: the row is guaranteed unchanged.
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
