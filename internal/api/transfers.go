package api

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/warehouse"
)

// TransfersHandler handles warehouse transfers.
type TransfersHandler struct {
	DB      *sql.DB
	Issuing *issuing.Service
}

// List handles GET /api/transfers.
func (h *TransfersHandler) List(c echo.Context) error {
	requestID, err := queryID(c, "request_id")
	if err != nil {
		return err
	}
	transfers, err := h.Issuing.Warehouse().ListTransfers(c.Request().Context(), h.DB, warehouse.TransferFilter{
		State:     c.QueryParam("state"),
		RequestID: requestID,
	})
	if err != nil {
		return err
	}
	if transfers == nil {
		transfers = []model.Transfer{}
	}
	return c.JSON(http.StatusOK, transfers)
}

// Get handles GET /api/transfers/:id.
func (h *TransfersHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.Issuing.Warehouse().GetTransfer(c.Request().Context(), h.DB, id)
	if err != nil {
		return err
	}
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "transfer not found")
	}
	return c.JSON(http.StatusOK, t)
}

// Validate handles POST /api/transfers/:id/validate.
func (h *TransfersHandler) Validate(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.Issuing.ValidateTransfer(c.Request().Context(), actorOf(c).UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Cancel handles POST /api/transfers/:id/cancel.
func (h *TransfersHandler) Cancel(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.Issuing.CancelTransfer(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}
