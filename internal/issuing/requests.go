package issuing

import (
	"context"
	"fmt"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/sequence"
	"github.com/erazemk/zahtevki/internal/store"
)

// LineInput is a requested product and quantity.
type LineInput struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// CreateInput holds the fields of a new request. A zero EmployeeID means
// the request is for the actor's own employee.
type CreateInput struct {
	EmployeeID int64
	Note       string
	Lines      []LineInput
}

// UpdateInput holds the header fields to change. Nil fields stay as they
// are.
type UpdateInput struct {
	EmployeeID *int64
	Note       *string
}

func (s *Service) loadRequest(ctx context.Context, q db.Querier, id int64) (*model.Request, error) {
	r, err := store.GetRequest(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("request %d not found", id)
	}
	return r, nil
}

func (s *Service) loadEmployee(ctx context.Context, q db.Querier, id int64) (*model.Employee, error) {
	emp, err := store.GetEmployee(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, apperr.NotFound("employee %d not found", id)
	}
	return emp, nil
}

func requireEditable(r *model.Request) error {
	if !r.Editable() {
		return apperr.ImmutableState("request %s is %s and can no longer be changed", r.Name, r.State)
	}
	return nil
}

func (s *Service) companyOf(ctx context.Context, q db.Querier, r *model.Request) (int64, error) {
	if !r.DepartmentID.Valid {
		return model.DefaultCompanyID, nil
	}
	d, err := store.GetDepartment(ctx, q, r.DepartmentID.Int64)
	if err != nil {
		return 0, err
	}
	if d == nil {
		return model.DefaultCompanyID, nil
	}
	return d.CompanyID, nil
}

// Get returns a request with its lines. Lines of draft requests carry an
// availability warning where stock is short.
func (s *Service) Get(ctx context.Context, id int64) (*model.Request, error) {
	var r *model.Request
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		r, err = s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		return s.annotateLines(ctx, q, r)
	})
	return r, err
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, f store.RequestFilter) ([]model.Request, error) {
	return store.ListRequests(ctx, s.db, f)
}

// Messages returns a request's activity feed.
func (s *Service) Messages(ctx context.Context, id int64) ([]model.RequestMessage, error) {
	return store.ListMessages(ctx, s.db, id)
}

// Create raises a draft request for an employee within the actor's
// department tree.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*model.Request, error) {
	employeeID := in.EmployeeID
	if employeeID == 0 {
		employeeID = actor.EmployeeID
	}
	if employeeID == 0 {
		return nil, apperr.Validation("employee is required")
	}

	var r *model.Request
	err := s.tx(ctx, func(q db.Querier) error {
		emp, err := s.loadEmployee(ctx, q, employeeID)
		if err != nil {
			return err
		}
		if err := checkEmployeeScope(ctx, q, actor, emp); err != nil {
			return err
		}

		name, err := s.seq.Next(ctx, q, sequence.Request)
		if err != nil {
			return err
		}
		r, err = store.CreateRequest(ctx, q, name, actor.UserID, emp.ID, emp.DepartmentID, in.Note)
		if err != nil {
			return err
		}

		for _, l := range in.Lines {
			if _, err := s.addLine(ctx, q, r, l); err != nil {
				return err
			}
		}
		if err := store.PostMessage(ctx, q, r.ID, actor.UserID, fmt.Sprintf("Request created for %s.", emp.Name)); err != nil {
			return err
		}

		r, err = s.loadRequest(ctx, q, r.ID)
		if err != nil {
			return err
		}
		return s.annotateLines(ctx, q, r)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request created",
		zap.String("request", r.Name),
		zap.Int64("employee_id", r.EmployeeID),
		zap.String("user", actor.Username))
	return r, nil
}

// Update changes a request's employee or note. The department is always
// re-derived from the employee.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, in UpdateInput) (*model.Request, error) {
	var r *model.Request
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		r, err = s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		if err := requireEditable(r); err != nil {
			return err
		}
		if err := checkCanModify(ctx, q, actor, r); err != nil {
			return err
		}

		employeeID := r.EmployeeID
		if in.EmployeeID != nil {
			employeeID = *in.EmployeeID
		}
		emp, err := s.loadEmployee(ctx, q, employeeID)
		if err != nil {
			return err
		}
		if employeeID != r.EmployeeID {
			if err := checkEmployeeScope(ctx, q, actor, emp); err != nil {
				return err
			}
		}

		note := r.Note
		if in.Note != nil {
			note = *in.Note
		}
		if err := store.UpdateRequest(ctx, q, r.ID, emp.ID, emp.DepartmentID, note); err != nil {
			return err
		}

		r, err = s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		return s.annotateLines(ctx, q, r)
	})
	return r, err
}

// Delete removes a request that is not approved or done. Its transfers
// are cancelled best-effort; a request whose goods were already delivered
// cannot be deleted.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	return s.tx(ctx, func(q db.Querier) error {
		r, err := s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		if err := requireEditable(r); err != nil {
			return err
		}
		if err := checkCanModify(ctx, q, actor, r); err != nil {
			return err
		}

		for _, tid := range r.TransferIDs() {
			t, err := s.wh.GetTransfer(ctx, q, tid)
			if err != nil {
				return err
			}
			if t != nil && t.State == model.TransferDone {
				return apperr.Validation("request %s has a delivered transfer %s and cannot be deleted", r.Name, t.Name)
			}
		}
		s.cancelTransfers(ctx, q, r)

		if err := store.DeleteRequest(ctx, q, r.ID); err != nil {
			return err
		}
		s.log.Info("request deleted", zap.String("request", r.Name), zap.String("user", actor.Username))
		return nil
	})
}

func (s *Service) addLine(ctx context.Context, q db.Querier, r *model.Request, in LineInput) (*model.RequestLine, error) {
	product, err := s.lineProduct(ctx, q, in)
	if err != nil {
		return nil, err
	}
	line, err := store.AddRequestLine(ctx, q, r.ID, product.ID, in.Quantity, product.UoM)
	if err != nil {
		return nil, err
	}
	return line, store.TouchRequest(ctx, q, r.ID)
}

func (s *Service) lineProduct(ctx context.Context, q db.Querier, in LineInput) (*model.Product, error) {
	if !in.Quantity.IsPositive() {
		return nil, apperr.Validation("quantity must be greater than 0")
	}
	product, err := store.GetProduct(ctx, q, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperr.NotFound("product %d not found", in.ProductID)
	}
	if !product.Storable {
		return nil, apperr.Validation("product %s is not tracked in stock", product.Name)
	}
	return product, nil
}

func (s *Service) lineWarning(ctx context.Context, q db.Querier, r *model.Request, l *model.RequestLine) error {
	if r.State != model.RequestDraft {
		return nil
	}
	destID, err := s.knownDestination(ctx, q, r, l.IssueKind)
	if err != nil {
		return err
	}
	w, err := s.LineWarning(ctx, q, model.DefaultCompanyID, l.ProductID, destID, l.Quantity)
	if err != nil {
		return err
	}
	l.Warning = w
	return nil
}

// AddLine appends a line to a request.
func (s *Service) AddLine(ctx context.Context, actor auth.Actor, requestID int64, in LineInput) (*model.RequestLine, error) {
	var line *model.RequestLine
	err := s.tx(ctx, func(q db.Querier) error {
		r, err := s.loadRequest(ctx, q, requestID)
		if err != nil {
			return err
		}
		if err := requireEditable(r); err != nil {
			return err
		}
		if err := checkCanModify(ctx, q, actor, r); err != nil {
			return err
		}
		line, err = s.addLine(ctx, q, r, in)
		if err != nil {
			return err
		}
		return s.lineWarning(ctx, q, r, line)
	})
	return line, err
}

func (s *Service) loadLine(ctx context.Context, q db.Querier, requestID, lineID int64) (*model.Request, *model.RequestLine, error) {
	r, err := s.loadRequest(ctx, q, requestID)
	if err != nil {
		return nil, nil, err
	}
	line, err := store.GetRequestLine(ctx, q, lineID)
	if err != nil {
		return nil, nil, err
	}
	if line == nil || line.RequestID != r.ID {
		return nil, nil, apperr.NotFound("line %d not found on request %s", lineID, r.Name)
	}
	return r, line, nil
}

// UpdateLine changes a line's product and quantity.
func (s *Service) UpdateLine(ctx context.Context, actor auth.Actor, requestID, lineID int64, in LineInput) (*model.RequestLine, error) {
	var line *model.RequestLine
	err := s.tx(ctx, func(q db.Querier) error {
		r, _, err := s.loadLine(ctx, q, requestID, lineID)
		if err != nil {
			return err
		}
		if err := requireEditable(r); err != nil {
			return err
		}
		if err := checkCanModify(ctx, q, actor, r); err != nil {
			return err
		}

		product, err := s.lineProduct(ctx, q, in)
		if err != nil {
			return err
		}
		if err := store.UpdateRequestLine(ctx, q, lineID, product.ID, in.Quantity, product.UoM); err != nil {
			return err
		}
		if err := store.TouchRequest(ctx, q, r.ID); err != nil {
			return err
		}

		line, err = store.GetRequestLine(ctx, q, lineID)
		if err != nil {
			return err
		}
		return s.lineWarning(ctx, q, r, line)
	})
	return line, err
}

// DeleteLine removes a line from a request.
func (s *Service) DeleteLine(ctx context.Context, actor auth.Actor, requestID, lineID int64) error {
	return s.tx(ctx, func(q db.Querier) error {
		r, _, err := s.loadLine(ctx, q, requestID, lineID)
		if err != nil {
			return err
		}
		if err := requireEditable(r); err != nil {
			return err
		}
		if err := checkCanModify(ctx, q, actor, r); err != nil {
			return err
		}
		if err := store.DeleteRequestLine(ctx, q, lineID); err != nil {
			return err
		}
		return store.TouchRequest(ctx, q, r.ID)
	})
}

func transition(r *model.Request, to string) error {
	if !model.CanTransition(r.State, to) {
		return apperr.InvalidTransition(r.State, to)
	}
	return nil
}

// Submit sends a draft request to the warehouse. Only a head of the
// employee's department (or an admin) may submit. Stock is checked line by
// line; consumables are reserved on an outgoing transfer to the
// consumption location and returnables on an internal transfer to the
// department's location.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, id int64) (*model.Request, error) {
	var r *model.Request
	var names []string
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		r, err = s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		if r.State != model.RequestDraft {
			return apperr.InvalidTransition(r.State, model.RequestRequested)
		}

		if !actor.IsAdmin() {
			head, err := IsDepartmentHead(ctx, q, actor, r.DepartmentID)
			if err != nil {
				return err
			}
			if !head {
				return apperr.Authorization("only the department head may submit request %s", r.Name)
			}
		}

		if len(r.TransferIDs()) > 0 {
			return apperr.Validation("request %s already has a transfer", r.Name)
		}
		if len(r.Lines) == 0 {
			return apperr.Validation("request %s has no lines", r.Name)
		}

		var consumables, returnables []model.RequestLine
		for _, l := range r.Lines {
			if l.UoM == "" {
				return apperr.Validation("line for %s has no unit of measure", l.ProductName)
			}
			if !l.Quantity.IsPositive() {
				return apperr.Validation("line for %s must have a quantity greater than 0", l.ProductName)
			}
			product, err := store.GetProduct(ctx, q, l.ProductID)
			if err != nil {
				return err
			}
			if product == nil || !product.Storable {
				return apperr.Validation("product %s is not tracked in stock", l.ProductName)
			}
			if product.IssueKind == model.IssueReturnable {
				returnables = append(returnables, l)
			} else {
				consumables = append(consumables, l)
			}
		}

		companyID, err := s.companyOf(ctx, q, r)
		if err != nil {
			return err
		}
		wh, err := s.defaultWarehouse(ctx, q, companyID)
		if err != nil {
			return err
		}

		var consumableDest, returnableDest *model.Location
		if len(consumables) > 0 {
			consumableDest, err = s.ConsumptionLocation(ctx, q, companyID)
			if err != nil {
				return err
			}
		}
		if len(returnables) > 0 {
			if !r.DepartmentID.Valid {
				return apperr.Validation("employee of request %s has no department to issue returnable items to", r.Name)
			}
			dept, err := store.GetDepartment(ctx, q, r.DepartmentID.Int64)
			if err != nil {
				return err
			}
			if dept == nil {
				return apperr.NotFound("department %d not found", r.DepartmentID.Int64)
			}
			returnableDest, err = s.ResolveDepartmentLocation(ctx, q, dept)
			if err != nil {
				return err
			}
		}

		if err := s.checkAvailable(ctx, q, consumables, wh.LotStockID, consumableDest); err != nil {
			return err
		}
		if err := s.checkAvailable(ctx, q, returnables, wh.LotStockID, returnableDest); err != nil {
			return err
		}

		var consumableID, returnableID null.Int64
		if len(consumables) > 0 {
			t, err := s.BuildTransfer(ctx, q, TransferSpec{
				Request: r, Lines: consumables, CompanyID: companyID,
				Source: wh.LotStockID, Dest: consumableDest.ID,
				PickingCode: model.PickingOutgoing, CreatedBy: actor.UserID,
			})
			if err != nil {
				return err
			}
			consumableID = null.Int64From(t.ID)
			names = append(names, t.Name)
		}
		if len(returnables) > 0 {
			t, err := s.BuildTransfer(ctx, q, TransferSpec{
				Request: r, Lines: returnables, CompanyID: companyID,
				Source: wh.LotStockID, Dest: returnableDest.ID,
				PickingCode: model.PickingInternal, CreatedBy: actor.UserID,
			})
			if err != nil {
				return err
			}
			returnableID = null.Int64From(t.ID)
			names = append(names, t.Name)
		}

		if err := store.SetRequestTransfers(ctx, q, r.ID, consumableID, returnableID); err != nil {
			return err
		}
		if err := store.SetRequestState(ctx, q, r.ID, model.RequestRequested, null.Int64{}); err != nil {
			return err
		}
		msg := fmt.Sprintf("Request submitted and stock reserved (%s).", strings.Join(names, ", "))
		if err := store.PostMessage(ctx, q, r.ID, actor.UserID, msg); err != nil {
			return err
		}

		r, err = s.loadRequest(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request submitted",
		zap.String("request", r.Name),
		zap.Strings("transfers", names),
		zap.String("user", actor.Username))
	return r, nil
}

// checkAvailable fails with InsufficientStock for the first line whose
// quantity exceeds what a transfer from sourceID to dest could reserve.
func (s *Service) checkAvailable(ctx context.Context, q db.Querier, lines []model.RequestLine, sourceID int64, dest *model.Location) error {
	for _, l := range lines {
		available, err := s.AvailableQuantity(ctx, q, l.ProductID, sourceID, dest.ID)
		if err != nil {
			return err
		}
		if l.Quantity.GreaterThan(available) {
			return apperr.InsufficientStock("not enough stock for %s: requested %s, available %s",
				l.ProductName, l.Quantity, available)
		}
	}
	return nil
}

// Approve records a stock operator's approval of a submitted request.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, id int64) (*model.Request, error) {
	if !actor.HasRole(model.RoleStock) {
		return nil, apperr.Authorization("only stock operators can approve requests")
	}

	var r *model.Request
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		r, err = s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		if r.State != model.RequestRequested {
			return apperr.InvalidTransition(r.State, model.RequestApproved)
		}
		if err := store.SetRequestState(ctx, q, r.ID, model.RequestApproved, null.Int64From(actor.UserID)); err != nil {
			return err
		}
		if err := store.PostMessage(ctx, q, r.ID, actor.UserID, fmt.Sprintf("Request approved by %s.", actor.Username)); err != nil {
			return err
		}
		r, err = s.loadRequest(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request approved", zap.String("request", r.Name), zap.String("user", actor.Username))
	return r, nil
}

// Complete marks an approved request done once all of its transfers are
// done.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, id int64) (*model.Request, error) {
	var r *model.Request
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		r, err = s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		if r.State != model.RequestApproved {
			return apperr.InvalidTransition(r.State, model.RequestDone)
		}

		done, err := s.wh.TransfersDone(ctx, q, r.TransferIDs())
		if err != nil {
			return err
		}
		if !done {
			return apperr.PrematureCompletion("validate the transfers of request %s before marking it done", r.Name)
		}

		if err := store.SetRequestState(ctx, q, r.ID, model.RequestDone, null.Int64From(actor.UserID)); err != nil {
			return err
		}
		if err := store.PostMessage(ctx, q, r.ID, actor.UserID, fmt.Sprintf("Request marked done by %s.", actor.Username)); err != nil {
			return err
		}
		r, err = s.loadRequest(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request completed", zap.String("request", r.Name), zap.String("user", actor.Username))
	return r, nil
}

// Cancel cancels a draft or submitted request. Its transfers are
// cancelled best-effort.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id int64) (*model.Request, error) {
	var r *model.Request
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		r, err = s.loadRequest(ctx, q, id)
		if err != nil {
			return err
		}
		if err := transition(r, model.RequestCancelled); err != nil {
			return err
		}
		if err := checkCanModify(ctx, q, actor, r); err != nil {
			return err
		}

		s.cancelTransfers(ctx, q, r)

		if err := store.SetRequestState(ctx, q, r.ID, model.RequestCancelled, null.Int64{}); err != nil {
			return err
		}
		if err := store.PostMessage(ctx, q, r.ID, actor.UserID, fmt.Sprintf("Request cancelled by %s.", actor.Username)); err != nil {
			return err
		}
		r, err = s.loadRequest(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request cancelled", zap.String("request", r.Name), zap.String("user", actor.Username))
	return r, nil
}

// cancelTransfers cancels the request's transfers that are not done.
// Each cancellation runs in its own savepoint; failures are logged and do
// not stop the caller.
func (s *Service) cancelTransfers(ctx context.Context, q db.Querier, r *model.Request) {
	for _, tid := range r.TransferIDs() {
		err := db.Savepoint(ctx, q, "cancel_transfer", func() error {
			t, err := s.wh.GetTransfer(ctx, q, tid)
			if err != nil {
				return err
			}
			if t == nil || t.State == model.TransferDone {
				return nil
			}
			return s.wh.Cancel(ctx, q, tid)
		})
		if err != nil {
			s.log.Warn("failed to cancel transfer",
				zap.String("request", r.Name),
				zap.Int64("transfer_id", tid),
				zap.Error(err))
		}
	}
}
