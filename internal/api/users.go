package api

import (
	"database/sql"
	"net/http"

	"github.com/aarondl/null/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

type createUserRequest struct {
	Username   string     `json:"username" validate:"required"`
	Password   string     `json:"password" validate:"required,min=8"`
	Role       string     `json:"role" validate:"required,oneof=admin stock user"`
	EmployeeID null.Int64 `json:"employee_id" validate:"omitempty,gt=0"`
}

type updateUserRequest struct {
	Role     string `json:"role" validate:"omitempty,oneof=admin stock user"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(c echo.Context) error {
	users, err := store.ListUsers(c.Request().Context(), h.DB)
	if err != nil {
		return err
	}
	if users == nil {
		users = []model.User{}
	}
	return c.JSON(http.StatusOK, users)
}

// Create handles POST /api/users. The new user can be linked to an
// existing employee in the same step.
func (h *UsersHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	var user *model.User
	err = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		existing, err := store.GetUserByUsername(ctx, tx, req.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			return echo.NewHTTPError(http.StatusConflict, "username already exists")
		}

		user, err = store.CreateUser(ctx, tx, req.Username, hash, req.Role)
		if err != nil {
			return err
		}
		if !req.EmployeeID.Valid {
			return nil
		}

		emp, err := store.GetEmployee(ctx, tx, req.EmployeeID.Int64)
		if err != nil {
			return err
		}
		if emp == nil {
			return echo.NewHTTPError(http.StatusNotFound, "employee not found")
		}
		if emp.UserID.Valid {
			return echo.NewHTTPError(http.StatusConflict, "employee already has a user")
		}
		return store.UpdateEmployee(ctx, tx, emp.ID, emp.Name, null.Int64From(user.ID), emp.DepartmentID)
	})
	if err != nil {
		return err
	}

	h.Log.Info("user created",
		zap.String("user", actorOf(c).Username),
		zap.String("new_user", user.Username),
		zap.String("role", user.Role))
	return c.JSON(http.StatusCreated, user)
}

func (h *UsersHandler) load(c echo.Context) (*model.User, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	user, err := store.GetUser(c.Request().Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return user, nil
}

// Get handles GET /api/users/:id.
func (h *UsersHandler) Get(c echo.Context) error {
	user, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Update handles PUT /api/users/:id. It changes the role, resets the
// password, or both.
func (h *UsersHandler) Update(c echo.Context) error {
	user, err := h.load(c)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Role == "" && req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "role or password required")
	}

	actor := actorOf(c)
	ctx := c.Request().Context()
	err = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		if req.Role != "" && req.Role != user.Role {
			if user.Role == model.RoleAdmin {
				admins, err := store.CountAdmins(ctx, tx)
				if err != nil {
					return err
				}
				if admins <= 1 {
					return echo.NewHTTPError(http.StatusBadRequest, "cannot demote the last admin")
				}
			}
			if err := store.UpdateUserRole(ctx, tx, user.ID, req.Role); err != nil {
				return err
			}
			h.Log.Info("user role updated",
				zap.String("user", actor.Username),
				zap.String("target_user", user.Username),
				zap.String("new_role", req.Role))
		}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			if err := store.UpdateUserPassword(ctx, tx, user.ID, hash); err != nil {
				return err
			}
			h.Log.Info("user password reset",
				zap.String("user", actor.Username),
				zap.String("target_user", user.Username))
		}
		return nil
	})
	if err != nil {
		return err
	}

	user, err = store.GetUser(ctx, h.DB, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /api/users/:id.
func (h *UsersHandler) Delete(c echo.Context) error {
	user, err := h.load(c)
	if err != nil {
		return err
	}

	actor := actorOf(c)
	if actor.UserID == user.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot delete yourself")
	}

	if err := store.DeleteUser(c.Request().Context(), h.DB, user.ID); err != nil {
		return err
	}

	h.Log.Info("user deleted", zap.String("user", actor.Username), zap.String("deleted_user", user.Username))
	return jsonMessage(c, http.StatusOK, "user deleted")
}
