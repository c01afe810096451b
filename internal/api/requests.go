package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zahtevki/internal/issuing"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// RequestsHandler handles department item requests.
type RequestsHandler struct {
	Issuing *issuing.Service
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func (l lineRequest) input() issuing.LineInput {
	return issuing.LineInput{ProductID: l.ProductID, Quantity: l.Quantity}
}

type createRequestRequest struct {
	EmployeeID int64         `json:"employee_id" validate:"omitempty,gt=0"`
	Note       string        `json:"note"`
	Lines      []lineRequest `json:"lines" validate:"dive"`
}

type updateRequestRequest struct {
	EmployeeID *int64  `json:"employee_id" validate:"omitempty,gt=0"`
	Note       *string `json:"note"`
}

// List handles GET /api/requests. Filters: state, employee_id,
// department_id and mine=true for the caller's own requests.
func (h *RequestsHandler) List(c echo.Context) error {
	f := store.RequestFilter{State: c.QueryParam("state")}

	var err error
	if f.EmployeeID, err = queryID(c, "employee_id"); err != nil {
		return err
	}
	deptID, err := queryID(c, "department_id")
	if err != nil {
		return err
	}
	if deptID > 0 {
		f.DepartmentIDs = []int64{deptID}
	}
	if c.QueryParam("mine") == "true" {
		f.RequestedBy = actorOf(c).UserID
	}

	requests, err := h.Issuing.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if requests == nil {
		requests = []model.Request{}
	}
	return c.JSON(http.StatusOK, requests)
}

// Create handles POST /api/requests.
func (h *RequestsHandler) Create(c echo.Context) error {
	var req createRequestRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := issuing.CreateInput{EmployeeID: req.EmployeeID, Note: req.Note}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, l.input())
	}

	r, err := h.Issuing.Create(c.Request().Context(), actorOf(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// Get handles GET /api/requests/:id.
func (h *RequestsHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.Issuing.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Update handles PUT /api/requests/:id.
func (h *RequestsHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req updateRequestRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	r, err := h.Issuing.Update(c.Request().Context(), actorOf(c), id, issuing.UpdateInput{
		EmployeeID: req.EmployeeID,
		Note:       req.Note,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Delete handles DELETE /api/requests/:id.
func (h *RequestsHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Issuing.Delete(c.Request().Context(), actorOf(c), id); err != nil {
		return err
	}
	return jsonMessage(c, http.StatusOK, "request deleted")
}

// Messages handles GET /api/requests/:id/messages.
func (h *RequestsHandler) Messages(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	msgs, err := h.Issuing.Messages(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []model.RequestMessage{}
	}
	return c.JSON(http.StatusOK, msgs)
}

// AddLine handles POST /api/requests/:id/lines.
func (h *RequestsHandler) AddLine(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req lineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	line, err := h.Issuing.AddLine(c.Request().Context(), actorOf(c), id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, line)
}

// UpdateLine handles PUT /api/requests/:id/lines/:line.
func (h *RequestsHandler) UpdateLine(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	lineID, err := paramID(c, "line")
	if err != nil {
		return err
	}
	var req lineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	line, err := h.Issuing.UpdateLine(c.Request().Context(), actorOf(c), id, lineID, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, line)
}

// DeleteLine handles DELETE /api/requests/:id/lines/:line.
func (h *RequestsHandler) DeleteLine(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	lineID, err := paramID(c, "line")
	if err != nil {
		return err
	}
	if err := h.Issuing.DeleteLine(c.Request().Context(), actorOf(c), id, lineID); err != nil {
		return err
	}
	return jsonMessage(c, http.StatusOK, "line deleted")
}

type requestAction func(*issuing.Service, echo.Context, int64) (*model.Request, error)

func (h *RequestsHandler) act(c echo.Context, fn requestAction) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	r, err := fn(h.Issuing, c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Submit handles POST /api/requests/:id/submit.
func (h *RequestsHandler) Submit(c echo.Context) error {
	return h.act(c, func(s *issuing.Service, c echo.Context, id int64) (*model.Request, error) {
		return s.Submit(c.Request().Context(), actorOf(c), id)
	})
}

// Approve handles POST /api/requests/:id/approve.
func (h *RequestsHandler) Approve(c echo.Context) error {
	return h.act(c, func(s *issuing.Service, c echo.Context, id int64) (*model.Request, error) {
		return s.Approve(c.Request().Context(), actorOf(c), id)
	})
}

// Complete handles POST /api/requests/:id/complete.
func (h *RequestsHandler) Complete(c echo.Context) error {
	return h.act(c, func(s *issuing.Service, c echo.Context, id int64) (*model.Request, error) {
		return s.Complete(c.Request().Context(), actorOf(c), id)
	})
}

// Cancel handles POST /api/requests/:id/cancel.
func (h *RequestsHandler) Cancel(c echo.Context) error {
	return h.act(c, func(s *issuing.Service, c echo.Context, id int64) (*model.Request, error) {
		return s.Cancel(c.Request().Context(), actorOf(c), id)
	})
}
