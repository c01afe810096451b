package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/report"
	"github.com/erazemk/zahtevki/internal/store"
)

// ConsumptionHandler handles consumption logs and the XLSX reports.
type ConsumptionHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

func parseDate(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return t, nil
}

func (h *ConsumptionHandler) filter(c echo.Context) (store.ConsumptionFilter, error) {
	var f store.ConsumptionFilter
	var err error
	if f.EmployeeID, err = queryID(c, "employee_id"); err != nil {
		return f, err
	}
	if f.DepartmentID, err = queryID(c, "department_id"); err != nil {
		return f, err
	}
	if f.ProductID, err = queryID(c, "product_id"); err != nil {
		return f, err
	}
	if f.RequestID, err = queryID(c, "request_id"); err != nil {
		return f, err
	}
	if f.From, err = parseDate(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseDate(c, "to"); err != nil {
		return f, err
	}
	return f, nil
}

// List handles GET /api/consumption.
func (h *ConsumptionHandler) List(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	logs, err := store.ListConsumption(c.Request().Context(), h.DB, f)
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []model.ConsumptionLog{}
	}
	return c.JSON(http.StatusOK, logs)
}

func attachment(c echo.Context, prefix string) {
	name := fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format(time.DateOnly))
	c.Response().Header().Set(echo.HeaderContentType, report.ContentType)
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+name)
	c.Response().WriteHeader(http.StatusOK)
}

// ConsumptionReport handles GET /api/reports/consumption.xlsx.
func (h *ConsumptionHandler) ConsumptionReport(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	logs, err := store.ListConsumption(c.Request().Context(), h.DB, f)
	if err != nil {
		return err
	}

	h.Log.Info("consumption report exported", zap.String("user", actorOf(c).Username), zap.Int("rows", len(logs)))
	attachment(c, "consumption")
	return report.Consumption(c.Response(), logs)
}

// AssetsReport handles GET /api/reports/assets.xlsx. By default only
// items not yet returned are listed; all=true includes returned ones.
func (h *ConsumptionHandler) AssetsReport(c echo.Context) error {
	employeeID, err := queryID(c, "employee_id")
	if err != nil {
		return err
	}
	lines, err := store.ListAssetLines(c.Request().Context(), h.DB, store.AssetLineFilter{
		EmployeeID: employeeID,
		OpenOnly:   c.QueryParam("all") != "true",
	})
	if err != nil {
		return err
	}

	h.Log.Info("assets report exported", zap.String("user", actorOf(c).Username), zap.Int("rows", len(lines)))
	attachment(c, "assets")
	return report.Assets(c.Response(), lines)
}
