package api

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/warehouse"
)

// StockHandler handles locations and on-hand stock.
type StockHandler struct {
	DB      *sql.DB
	Issuing *issuing.Service
	Log     *zap.Logger
}

type addStockRequest struct {
	ProductID  int64           `json:"product_id" validate:"required,gt=0"`
	LocationID int64           `json:"location_id" validate:"omitempty,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Locations handles GET /api/locations.
func (h *StockHandler) Locations(c echo.Context) error {
	usage := c.QueryParam("usage")
	switch usage {
	case "", model.UsageInternal, model.UsageInventory, model.UsageView:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid usage")
	}

	locations, err := h.Issuing.Warehouse().ListLocations(c.Request().Context(), h.DB, usage)
	if err != nil {
		return err
	}
	if locations == nil {
		locations = []model.Location{}
	}
	return c.JSON(http.StatusOK, locations)
}

// List handles GET /api/stock.
func (h *StockHandler) List(c echo.Context) error {
	productID, err := queryID(c, "product_id")
	if err != nil {
		return err
	}
	locationID, err := queryID(c, "location_id")
	if err != nil {
		return err
	}

	quants, err := h.Issuing.Warehouse().ListQuants(c.Request().Context(), h.DB, warehouse.QuantFilter{
		ProductID:  productID,
		LocationID: locationID,
	})
	if err != nil {
		return err
	}
	if quants == nil {
		quants = []model.Quant{}
	}
	return c.JSON(http.StatusOK, quants)
}

// Add handles POST /api/stock. Without a location the stock is added to
// the default warehouse's stock location.
func (h *StockHandler) Add(c echo.Context) error {
	var req addStockRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	wh := h.Issuing.Warehouse()
	if req.LocationID == 0 {
		def, err := wh.DefaultWarehouse(ctx, h.DB, model.DefaultCompanyID)
		if err != nil {
			return err
		}
		if def == nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "no warehouse configured")
		}
		req.LocationID = def.LotStockID
	}

	if err := wh.AddStock(ctx, h.DB, req.ProductID, req.LocationID, req.Quantity); err != nil {
		return err
	}

	h.Log.Info("stock received",
		zap.String("user", actorOf(c).Username),
		zap.Int64("product_id", req.ProductID),
		zap.Int64("location_id", req.LocationID),
		zap.String("quantity", req.Quantity.String()))
	return jsonMessage(c, http.StatusOK, "stock added")
}
