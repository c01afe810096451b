package api

import (
	"database/sql"
	"net/http"

	"github.com/aarondl/null/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// EmployeesHandler handles employee records.
type EmployeesHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

type employeeRequest struct {
	Name         string     `json:"name" validate:"required"`
	UserID       null.Int64 `json:"user_id" validate:"omitempty,gt=0"`
	DepartmentID null.Int64 `json:"department_id" validate:"omitempty,gt=0"`
}

// List handles GET /api/employees.
func (h *EmployeesHandler) List(c echo.Context) error {
	deptID, err := queryID(c, "department_id")
	if err != nil {
		return err
	}
	employees, err := store.ListEmployees(c.Request().Context(), h.DB, store.EmployeeFilter{
		DepartmentID: deptID,
		Name:         c.QueryParam("name"),
	})
	if err != nil {
		return err
	}
	if employees == nil {
		employees = []model.Employee{}
	}
	return c.JSON(http.StatusOK, employees)
}

// Get handles GET /api/employees/:id.
func (h *EmployeesHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	emp, err := store.GetEmployee(c.Request().Context(), h.DB, id)
	if err != nil {
		return err
	}
	if emp == nil {
		return echo.NewHTTPError(http.StatusNotFound, "employee not found")
	}
	return c.JSON(http.StatusOK, emp)
}

func checkEmployeeRefs(c echo.Context, q db.Querier, id int64, req employeeRequest) error {
	ctx := c.Request().Context()
	if req.DepartmentID.Valid {
		d, err := store.GetDepartment(ctx, q, req.DepartmentID.Int64)
		if err != nil {
			return err
		}
		if d == nil {
			return echo.NewHTTPError(http.StatusNotFound, "department not found")
		}
	}
	if req.UserID.Valid {
		u, err := store.GetUser(ctx, q, req.UserID.Int64)
		if err != nil {
			return err
		}
		if u == nil || u.DeletedAt != nil {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		linked, err := store.GetEmployeeByUser(ctx, q, u.ID)
		if err != nil {
			return err
		}
		if linked != nil && linked.ID != id {
			return echo.NewHTTPError(http.StatusConflict, "user is already linked to "+linked.Name)
		}
	}
	return nil
}

// Create handles POST /api/employees.
func (h *EmployeesHandler) Create(c echo.Context) error {
	var req employeeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var emp *model.Employee
	err := db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		if err := checkEmployeeRefs(c, tx, 0, req); err != nil {
			return err
		}
		var err error
		emp, err = store.CreateEmployee(ctx, tx, req.Name, req.UserID, req.DepartmentID)
		return err
	})
	if err != nil {
		return err
	}

	h.Log.Info("employee created", zap.String("user", actorOf(c).Username), zap.String("employee", emp.Name))
	return c.JSON(http.StatusCreated, emp)
}

// Update handles PUT /api/employees/:id. A department change is carried
// over to the employee's draft and requested requests.
func (h *EmployeesHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req employeeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var emp *model.Employee
	err = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		existing, err := store.GetEmployee(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return echo.NewHTTPError(http.StatusNotFound, "employee not found")
		}
		if err := checkEmployeeRefs(c, tx, id, req); err != nil {
			return err
		}
		if err := store.UpdateEmployee(ctx, tx, id, req.Name, req.UserID, req.DepartmentID); err != nil {
			return err
		}
		if existing.DepartmentID != req.DepartmentID {
			moved, err := store.SyncRequestDepartment(ctx, tx, id, req.DepartmentID)
			if err != nil {
				return err
			}
			if moved > 0 {
				h.Log.Info("open requests moved with employee",
					zap.Int64("employee_id", id),
					zap.Int64("requests", moved))
			}
		}
		emp, err = store.GetEmployee(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, emp)
}
