package api

import (
	"database/sql"
	"net/http"

	"github.com/aarondl/null/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// DepartmentsHandler handles the department tree.
type DepartmentsHandler struct {
	DB      *sql.DB
	Issuing *issuing.Service
	Log     *zap.Logger
}

type departmentRequest struct {
	Name      string     `json:"name" validate:"required"`
	ParentID  null.Int64 `json:"parent_id" validate:"omitempty,gt=0"`
	ManagerID null.Int64 `json:"manager_id" validate:"omitempty,gt=0"`
}

// List handles GET /api/departments.
func (h *DepartmentsHandler) List(c echo.Context) error {
	parentID, err := queryID(c, "parent_id")
	if err != nil {
		return err
	}
	departments, err := store.ListDepartments(c.Request().Context(), h.DB, store.DepartmentFilter{ParentID: parentID})
	if err != nil {
		return err
	}
	if departments == nil {
		departments = []model.Department{}
	}
	return c.JSON(http.StatusOK, departments)
}

// Get handles GET /api/departments/:id.
func (h *DepartmentsHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	d, err := store.GetDepartment(c.Request().Context(), h.DB, id)
	if err != nil {
		return err
	}
	if d == nil {
		return echo.NewHTTPError(http.StatusNotFound, "department not found")
	}
	return c.JSON(http.StatusOK, d)
}

// checkDepartmentRefs verifies the parent and manager of a department exist and
// that the parent is not the department itself or one of its children.
func checkDepartmentRefs(c echo.Context, q db.Querier, id int64, req departmentRequest) error {
	ctx := c.Request().Context()
	if req.ParentID.Valid {
		chain, err := store.DepartmentChain(ctx, q, req.ParentID.Int64)
		if err != nil {
			return err
		}
		if len(chain) == 0 {
			return echo.NewHTTPError(http.StatusNotFound, "parent department not found")
		}
		for _, d := range chain {
			if d.ID == id {
				return echo.NewHTTPError(http.StatusBadRequest, "department cannot be its own ancestor")
			}
		}
	}
	if req.ManagerID.Valid {
		emp, err := store.GetEmployee(ctx, q, req.ManagerID.Int64)
		if err != nil {
			return err
		}
		if emp == nil {
			return echo.NewHTTPError(http.StatusNotFound, "manager not found")
		}
	}
	return nil
}

// Create handles POST /api/departments.
func (h *DepartmentsHandler) Create(c echo.Context) error {
	var req departmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var d *model.Department
	err := db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		if err := checkDepartmentRefs(c, tx, 0, req); err != nil {
			return err
		}
		var err error
		d, err = store.CreateDepartment(ctx, tx, req.Name, req.ParentID, req.ManagerID, model.DefaultCompanyID)
		return err
	})
	if err != nil {
		return err
	}

	h.Log.Info("department created", zap.String("user", actorOf(c).Username), zap.String("department", d.Name))
	return c.JSON(http.StatusCreated, d)
}

// Update handles PUT /api/departments/:id.
func (h *DepartmentsHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req departmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var d *model.Department
	err = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		existing, err := store.GetDepartment(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return echo.NewHTTPError(http.StatusNotFound, "department not found")
		}
		if err := checkDepartmentRefs(c, tx, id, req); err != nil {
			return err
		}
		if err := store.UpdateDepartment(ctx, tx, id, req.Name, req.ParentID, req.ManagerID); err != nil {
			return err
		}
		d, err = store.GetDepartment(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// EnsureLocation handles POST /api/departments/:id/location.
func (h *DepartmentsHandler) EnsureLocation(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	loc, err := h.Issuing.EnsureDepartmentLocation(c.Request().Context(), actorOf(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loc)
}
