package api

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

const (
	claimsKey = "claims"
	actorKey  = "actor"
)

// AuthMiddleware validates the bearer token, rejects revoked tokens and
// deleted users, and stores the claims and the acting user on the context.
// The role is taken from the database so role changes apply immediately.
func AuthMiddleware(secret string, database *sql.DB, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization header")
			}

			claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				log.Debug("rejected token", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			revoked, err := store.IsTokenRevoked(ctx, database, claims.ID)
			if err != nil {
				return err
			}
			if revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
			}

			user, err := store.GetUser(ctx, database, claims.UserID)
			if err != nil {
				return err
			}
			if user == nil || user.DeletedAt != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "user no longer exists")
			}

			actor, err := auth.ActorFor(ctx, database, user)
			if err != nil {
				return err
			}

			c.Set(claimsKey, claims)
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// RequireRole rejects actors below the given role.
func RequireRole(minimum string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := c.Get(actorKey).(auth.Actor)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if !model.RoleAtLeast(actor.Role, minimum) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

func actorOf(c echo.Context) auth.Actor {
	actor, _ := c.Get(actorKey).(auth.Actor)
	return actor
}

func claimsOf(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// AccessLog logs each request with its status and duration.
func AccessLog(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency.Round(time.Millisecond)),
				zap.String("remote", v.RemoteIP),
			}
			if actor, ok := c.Get(actorKey).(auth.Actor); ok {
				fields = append(fields, zap.String("user", actor.Username))
			}
			if v.Status >= http.StatusInternalServerError {
				log.Warn("request", fields...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
