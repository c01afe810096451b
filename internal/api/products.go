package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/imaging"
	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// ProductsHandler handles the product catalogue.
type ProductsHandler struct {
	DB      *sql.DB
	Issuing *issuing.Service
	Log     *zap.Logger
}

type productRequest struct {
	Name      string `json:"name" validate:"required"`
	UoM       string `json:"uom" validate:"required"`
	IssueKind string `json:"issue_kind" validate:"required,oneof=consumable returnable"`
	Storable  *bool  `json:"storable"`
}

func (r productRequest) product(id int64) model.Product {
	storable := true
	if r.Storable != nil {
		storable = *r.Storable
	}
	return model.Product{ID: id, Name: r.Name, UoM: r.UoM, IssueKind: r.IssueKind, Storable: storable}
}

type availabilityResponse struct {
	ProductID int64           `json:"product_id"`
	Available decimal.Decimal `json:"available"`
	Warning   string          `json:"warning,omitempty"`
}

// List handles GET /api/products.
func (h *ProductsHandler) List(c echo.Context) error {
	products, err := store.ListProducts(c.Request().Context(), h.DB, store.ProductFilter{
		IssueKind: c.QueryParam("issue_kind"),
		Name:      c.QueryParam("name"),
	})
	if err != nil {
		return err
	}
	if products == nil {
		products = []model.Product{}
	}
	return c.JSON(http.StatusOK, products)
}

func (h *ProductsHandler) load(c echo.Context) (*model.Product, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	p, err := store.GetProduct(c.Request().Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	return p, nil
}

// Get handles GET /api/products/:id.
func (h *ProductsHandler) Get(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Create handles POST /api/products.
func (h *ProductsHandler) Create(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := store.CreateProduct(c.Request().Context(), h.DB, req.product(0))
	if err != nil {
		return err
	}

	h.Log.Info("product created",
		zap.String("user", actorOf(c).Username),
		zap.String("product", p.Name),
		zap.String("issue_kind", p.IssueKind))
	return c.JSON(http.StatusCreated, p)
}

// Update handles PUT /api/products/:id.
func (h *ProductsHandler) Update(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := store.UpdateProduct(ctx, h.DB, req.product(p.ID)); err != nil {
		return err
	}
	p, err = store.GetProduct(ctx, h.DB, p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// UploadImage handles PUT /api/products/:id/image with a multipart
// "image" field.
func (h *ProductsHandler) UploadImage(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}

	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, imaging.MaxUploadSize+1<<10)
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file required")
	}
	file, err := fh.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	photo, err := imaging.Normalize(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image must be at most 5 MB")
	case errors.Is(err, imaging.ErrUnsupported):
		return echo.NewHTTPError(http.StatusBadRequest, "image must be JPEG or PNG")
	case err != nil:
		return err
	}

	if err := store.SetProductImage(c.Request().Context(), h.DB, p.ID, photo.Data, imaging.MIME); err != nil {
		return err
	}

	h.Log.Info("product image uploaded",
		zap.String("user", actorOf(c).Username),
		zap.String("product", p.Name),
		zap.Int("bytes", len(photo.Data)))
	return jsonMessage(c, http.StatusOK, "image uploaded")
}

// GetImage handles GET /api/products/:id/image.
func (h *ProductsHandler) GetImage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	data, mime, err := store.GetProductImage(c.Request().Context(), h.DB, id)
	if err != nil {
		return err
	}
	if data == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no image")
	}

	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Blob(http.StatusOK, mime, data)
}

// Availability handles GET /api/products/:id/availability?quantity=N.
func (h *ProductsHandler) Availability(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}

	quantity := decimal.Zero
	if raw := c.QueryParam("quantity"); raw != "" {
		quantity, err = decimal.NewFromString(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	}

	available, warning, err := h.Issuing.ProductAvailability(c.Request().Context(), p.ID, quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, availabilityResponse{ProductID: p.ID, Available: available, Warning: warning})
}
