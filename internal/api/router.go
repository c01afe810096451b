// Package api serves the JSON API over echo.
package api

import (
	"database/sql"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/model"
)

// Options configures the router.
type Options struct {
	DB        *sql.DB
	Issuing   *issuing.Service
	JWTSecret string
	TokenTTL  time.Duration
	Log       *zap.Logger
}

// NewRouter creates the API server with all endpoints registered.
func NewRouter(opts Options) *echo.Echo {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("api")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler(log)
	e.Use(AccessLog(log))
	e.Use(middleware.Recover())

	authHandler := &AuthHandler{DB: opts.DB, JWTSecret: opts.JWTSecret, TokenTTL: opts.TokenTTL, Log: log}
	usersHandler := &UsersHandler{DB: opts.DB, Log: log}
	departmentsHandler := &DepartmentsHandler{DB: opts.DB, Issuing: opts.Issuing, Log: log}
	employeesHandler := &EmployeesHandler{DB: opts.DB, Log: log}
	productsHandler := &ProductsHandler{DB: opts.DB, Issuing: opts.Issuing, Log: log}
	stockHandler := &StockHandler{DB: opts.DB, Issuing: opts.Issuing, Log: log}
	transfersHandler := &TransfersHandler{DB: opts.DB, Issuing: opts.Issuing}
	requestsHandler := &RequestsHandler{Issuing: opts.Issuing}
	assetsHandler := &AssetsHandler{DB: opts.DB, Issuing: opts.Issuing}
	consumptionHandler := &ConsumptionHandler{DB: opts.DB, Log: log}

	requireAdmin := RequireRole(model.RoleAdmin)
	requireStock := RequireRole(model.RoleStock)

	// Public: login.
	e.POST("/api/auth/login", authHandler.Login)

	api := e.Group("/api", AuthMiddleware(opts.JWTSecret, opts.DB, log))

	api.POST("/auth/logout", authHandler.Logout)
	api.PUT("/auth/password", authHandler.ChangePassword)

	users := api.Group("/users", requireAdmin)
	users.GET("", usersHandler.List)
	users.POST("", usersHandler.Create)
	users.GET("/:id", usersHandler.Get)
	users.PUT("/:id", usersHandler.Update)
	users.DELETE("/:id", usersHandler.Delete)

	api.GET("/departments", departmentsHandler.List)
	api.POST("/departments", departmentsHandler.Create, requireAdmin)
	api.GET("/departments/:id", departmentsHandler.Get)
	api.PUT("/departments/:id", departmentsHandler.Update, requireAdmin)
	api.POST("/departments/:id/location", departmentsHandler.EnsureLocation, requireStock)

	api.GET("/employees", employeesHandler.List)
	api.POST("/employees", employeesHandler.Create, requireAdmin)
	api.GET("/employees/:id", employeesHandler.Get)
	api.PUT("/employees/:id", employeesHandler.Update, requireAdmin)

	api.GET("/products", productsHandler.List)
	api.POST("/products", productsHandler.Create, requireStock)
	api.GET("/products/:id", productsHandler.Get)
	api.PUT("/products/:id", productsHandler.Update, requireStock)
	api.PUT("/products/:id/image", productsHandler.UploadImage, requireStock)
	api.GET("/products/:id/image", productsHandler.GetImage)
	api.GET("/products/:id/availability", productsHandler.Availability)

	api.GET("/locations", stockHandler.Locations)
	api.GET("/stock", stockHandler.List)
	api.POST("/stock", stockHandler.Add, requireStock)

	api.GET("/transfers", transfersHandler.List)
	api.GET("/transfers/:id", transfersHandler.Get)
	api.POST("/transfers/:id/validate", transfersHandler.Validate, requireStock)
	api.POST("/transfers/:id/cancel", transfersHandler.Cancel, requireStock)

	api.GET("/requests", requestsHandler.List)
	api.POST("/requests", requestsHandler.Create)
	api.GET("/requests/:id", requestsHandler.Get)
	api.PUT("/requests/:id", requestsHandler.Update)
	api.DELETE("/requests/:id", requestsHandler.Delete)
	api.GET("/requests/:id/messages", requestsHandler.Messages)
	api.POST("/requests/:id/lines", requestsHandler.AddLine)
	api.PUT("/requests/:id/lines/:line", requestsHandler.UpdateLine)
	api.DELETE("/requests/:id/lines/:line", requestsHandler.DeleteLine)
	api.POST("/requests/:id/submit", requestsHandler.Submit)
	api.POST("/requests/:id/approve", requestsHandler.Approve)
	api.POST("/requests/:id/complete", requestsHandler.Complete)
	api.POST("/requests/:id/cancel", requestsHandler.Cancel)

	api.GET("/asset-cards", assetsHandler.ListCards)
	api.GET("/asset-cards/:id", assetsHandler.GetCard)
	api.GET("/asset-lines", assetsHandler.ListLines)
	api.POST("/asset-lines/:id/return", assetsHandler.Return, requireStock)

	api.GET("/consumption", consumptionHandler.List)
	api.GET("/reports/consumption.xlsx", consumptionHandler.ConsumptionReport, requireStock)
	api.GET("/reports/assets.xlsx", consumptionHandler.AssetsReport, requireStock)

	return e
}
