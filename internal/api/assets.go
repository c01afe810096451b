package api

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// AssetsHandler handles employee asset cards and returns.
type AssetsHandler struct {
	DB      *sql.DB
	Issuing *issuing.Service
}

type returnRequest struct {
	Condition string `json:"condition" validate:"required,oneof=good repair scrap lost"`
	Notes     string `json:"notes"`
}

// ListCards handles GET /api/asset-cards.
func (h *AssetsHandler) ListCards(c echo.Context) error {
	cards, err := store.ListAssetCards(c.Request().Context(), h.DB)
	if err != nil {
		return err
	}
	if cards == nil {
		cards = []model.AssetCard{}
	}
	return c.JSON(http.StatusOK, cards)
}

// GetCard handles GET /api/asset-cards/:id.
func (h *AssetsHandler) GetCard(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	card, err := store.GetAssetCard(c.Request().Context(), h.DB, id)
	if err != nil {
		return err
	}
	if card == nil {
		return echo.NewHTTPError(http.StatusNotFound, "asset card not found")
	}
	return c.JSON(http.StatusOK, card)
}

// ListLines handles GET /api/asset-lines. Filters: employee_id,
// request_id and open=true for items not yet returned.
func (h *AssetsHandler) ListLines(c echo.Context) error {
	employeeID, err := queryID(c, "employee_id")
	if err != nil {
		return err
	}
	requestID, err := queryID(c, "request_id")
	if err != nil {
		return err
	}

	lines, err := store.ListAssetLines(c.Request().Context(), h.DB, store.AssetLineFilter{
		EmployeeID: employeeID,
		RequestID:  requestID,
		OpenOnly:   c.QueryParam("open") == "true",
	})
	if err != nil {
		return err
	}
	if lines == nil {
		lines = []model.AssetCardLine{}
	}
	return c.JSON(http.StatusOK, lines)
}

// Return handles POST /api/asset-lines/:id/return.
func (h *AssetsHandler) Return(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req returnRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	line, err := h.Issuing.ReturnAssetLine(c.Request().Context(), actorOf(c), id, req.Condition, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, line)
}
