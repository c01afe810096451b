package issuing

import (
	"context"
	"fmt"
	"time"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
	"github.com/erazemk/zahtevki/internal/warehouse"
)

// returnDestination picks where a returned item goes for a condition.
func (s *Service) returnDestination(ctx context.Context, q db.Querier, wh *model.Warehouse, condition string) (*model.Location, error) {
	switch condition {
	case model.ConditionGood:
		return s.wh.GetLocation(ctx, q, wh.LotStockID)
	case model.ConditionRepair:
		view, err := s.wh.GetLocation(ctx, q, wh.ViewLocationID)
		if err != nil {
			return nil, err
		}
		return s.wh.FindOrCreateLocation(ctx, q, RepairLocationName, model.UsageInternal, view, wh.CompanyID)
	case model.ConditionScrap:
		return s.wh.FindOrCreateLocation(ctx, q, ScrapLocationName, model.UsageInventory, nil, wh.CompanyID)
	}
	return nil, apperr.Validation("no destination for condition %q", condition)
}

// ReturnAssetLine records the return of an issued returnable item. Lost
// items are only marked returned; anything else is moved back with an
// internal transfer that is validated immediately.
func (s *Service) ReturnAssetLine(ctx context.Context, actor auth.Actor, lineID int64, condition, notes string) (*model.AssetCardLine, error) {
	if !actor.HasRole(model.RoleStock) {
		return nil, apperr.Authorization("only stock operators can process returns")
	}
	if !model.ValidCondition(condition) {
		return nil, apperr.Validation("unknown return condition %q", condition)
	}

	var line *model.AssetCardLine
	var transferName string
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		line, err = store.GetAssetLine(ctx, q, lineID)
		if err != nil {
			return err
		}
		if line == nil {
			return apperr.NotFound("asset line %d not found", lineID)
		}
		if !line.Returnable {
			return apperr.Validation("%s is not returnable", line.ProductName)
		}
		if line.Returned {
			return apperr.Validation("%s was already returned", line.ProductName)
		}

		var returnTransfer null.Int64
		if condition != model.ConditionLost {
			t, err := s.returnTransfer(ctx, q, actor, line, condition)
			if err != nil {
				return err
			}
			returnTransfer = null.Int64From(t.ID)
			transferName = t.Name
		}

		if err := store.MarkAssetLineReturned(ctx, q, line.ID, condition, notes, returnTransfer, time.Now()); err != nil {
			return err
		}
		if line.RequestID.Valid {
			msg := fmt.Sprintf("%s returned by %s (%s).", line.ProductName, line.EmployeeName, condition)
			if err := store.PostMessage(ctx, q, line.RequestID.Int64, actor.UserID, msg); err != nil {
				return err
			}
		}

		line, err = store.GetAssetLine(ctx, q, lineID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("asset returned",
		zap.Int64("asset_line_id", lineID),
		zap.String("condition", condition),
		zap.String("transfer", transferName),
		zap.String("user", actor.Username))
	return line, nil
}

func (s *Service) returnTransfer(ctx context.Context, q db.Querier, actor auth.Actor, line *model.AssetCardLine, condition string) (*model.Transfer, error) {
	if !line.IssuedLocationID.Valid {
		return nil, apperr.Validation("%s has no issued location to return from", line.ProductName)
	}

	wh, err := s.defaultWarehouse(ctx, q, model.DefaultCompanyID)
	if err != nil {
		return nil, err
	}
	dest, err := s.returnDestination(ctx, q, wh, condition)
	if err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, apperr.Configuration("warehouse %s has no stock location", wh.Code)
	}
	pt, err := s.wh.PickingType(ctx, q, wh.ID, model.PickingInternal)
	if err != nil {
		return nil, err
	}
	if pt == nil {
		return nil, apperr.Configuration("warehouse %s has no internal picking type", wh.Code)
	}

	t, err := s.wh.CreateTransfer(ctx, q, warehouse.NewTransfer{
		PickingTypeID:    pt.ID,
		SourceLocationID: line.IssuedLocationID.Int64,
		DestLocationID:   dest.ID,
		Origin:           fmt.Sprintf("Return of %s from %s", line.ProductName, line.EmployeeName),
		CreatedBy:        actor.UserID,
	})
	if err != nil {
		return nil, err
	}

	product, err := store.GetProduct(ctx, q, line.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperr.NotFound("product %d not found", line.ProductID)
	}

	_, err = s.wh.AddMove(ctx, q, t.ID, warehouse.NewMove{ProductID: line.ProductID, Quantity: line.Quantity, UoM: product.UoM})
	if err == nil {
		err = s.wh.Confirm(ctx, q, t.ID)
	}
	if err == nil {
		err = s.wh.Reserve(ctx, q, t.ID)
	}
	if err == nil {
		t, err = s.wh.Validate(ctx, q, t.ID, actor.UserID)
	}
	if err != nil {
		return nil, apperr.Reservation(err, "could not move %s back to %s", line.ProductName, dest.FullName)
	}
	return t, nil
}
