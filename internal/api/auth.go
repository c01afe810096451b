package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
	TokenTTL  time.Duration
	Log       *zap.Logger
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := store.GetUserByUsername(c.Request().Context(), h.DB, req.Username)
	if err != nil {
		return err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.Log.Warn("login failed", zap.String("username", req.Username), zap.String("remote", c.RealIP()))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := auth.GenerateToken(h.JWTSecret, h.TokenTTL, user.ID, user.Username, user.Role)
	if err != nil {
		return err
	}

	h.Log.Info("user logged in", zap.String("user", user.Username), zap.String("role", user.Role))
	return c.JSON(http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims := claimsOf(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	expires := time.Now().Add(auth.DefaultTokenTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(c.Request().Context(), h.DB, claims.ID, expires); err != nil {
		return err
	}

	h.Log.Info("user logged out", zap.String("user", claims.Username))
	return jsonMessage(c, http.StatusOK, "logged out")
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	actor := actorOf(c)

	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := store.GetUser(ctx, h.DB, actor.UserID)
	if err != nil {
		return err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return echo.NewHTTPError(http.StatusUnauthorized, "current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := store.UpdateUserPassword(ctx, h.DB, user.ID, hash); err != nil {
		return err
	}

	h.Log.Info("user changed own password", zap.String("user", actor.Username))
	return jsonMessage(c, http.StatusOK, "password updated")
}
