package issuing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// Names of the shared locations created on demand.
const (
	ConsumptionLocationName = "Employee Consumption"
	RepairLocationName      = "Repair"
	ScrapLocationName       = "Scrap"
)

func (s *Service) defaultWarehouse(ctx context.Context, q db.Querier, companyID int64) (*model.Warehouse, error) {
	wh, err := s.wh.DefaultWarehouse(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	if wh == nil {
		return nil, apperr.Configuration("no warehouse configured for company %d", companyID)
	}
	return wh, nil
}

// ResolveDepartmentLocation returns the department's internal stock
// location, creating it under the warehouse stock location and caching it
// on the department the first time.
func (s *Service) ResolveDepartmentLocation(ctx context.Context, q db.Querier, dept *model.Department) (*model.Location, error) {
	if dept.StockLocationID.Valid {
		loc, err := s.wh.GetLocation(ctx, q, dept.StockLocationID.Int64)
		if err != nil || loc != nil {
			return loc, err
		}
	}

	wh, err := s.defaultWarehouse(ctx, q, dept.CompanyID)
	if err != nil {
		return nil, err
	}
	stock, err := s.wh.GetLocation(ctx, q, wh.LotStockID)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, apperr.Configuration("warehouse %s has no stock location", wh.Code)
	}

	loc, err := s.wh.FindOrCreateLocation(ctx, q, dept.Name, model.UsageInternal, stock, dept.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("resolving location for department %s: %w", dept.Name, err)
	}
	if err := store.SetDepartmentLocation(ctx, q, dept.ID, loc.ID); err != nil {
		return nil, err
	}
	dept.StockLocationID.SetValid(loc.ID)

	s.log.Info("department location resolved",
		zap.Int64("department_id", dept.ID),
		zap.String("location", loc.FullName))
	return loc, nil
}

// EnsureDepartmentLocation resolves a department's stock location on
// behalf of a stock operator.
func (s *Service) EnsureDepartmentLocation(ctx context.Context, actor auth.Actor, deptID int64) (*model.Location, error) {
	if !actor.HasRole(model.RoleStock) {
		return nil, apperr.Authorization("only stock operators can create department locations")
	}

	var loc *model.Location
	err := s.tx(ctx, func(q db.Querier) error {
		dept, err := store.GetDepartment(ctx, q, deptID)
		if err != nil {
			return err
		}
		if dept == nil {
			return apperr.NotFound("department %d not found", deptID)
		}
		loc, err = s.ResolveDepartmentLocation(ctx, q, dept)
		return err
	})
	return loc, err
}

// ConsumptionLocation returns the shared location consumables are
// delivered to, creating it if needed.
func (s *Service) ConsumptionLocation(ctx context.Context, q db.Querier, companyID int64) (*model.Location, error) {
	return s.wh.FindOrCreateLocation(ctx, q, ConsumptionLocationName, model.UsageInventory, nil, companyID)
}

// LinkExistingLocations links departments without a stock location to an
// existing internal location of the same name under the warehouse stock
// location. It never creates locations and returns how many departments
// were linked.
func (s *Service) LinkExistingLocations(ctx context.Context) (int, error) {
	linked := 0
	err := s.tx(ctx, func(q db.Querier) error {
		depts, err := store.ListDepartments(ctx, q, store.DepartmentFilter{WithLocation: nullFalse})
		if err != nil {
			return err
		}

		for _, d := range depts {
			wh, err := s.wh.DefaultWarehouse(ctx, q, d.CompanyID)
			if err != nil {
				return err
			}
			if wh == nil {
				continue
			}
			stock, err := s.wh.GetLocation(ctx, q, wh.LotStockID)
			if err != nil {
				return err
			}
			loc, err := s.wh.FindLocation(ctx, q, d.Name, model.UsageInternal, stock, d.CompanyID)
			if err != nil {
				return err
			}
			if loc == nil {
				continue
			}
			if err := store.SetDepartmentLocation(ctx, q, d.ID, loc.ID); err != nil {
				return err
			}
			linked++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("linking department locations: %w", err)
	}

	if linked > 0 {
		s.log.Info("linked departments to existing locations", zap.Int("count", linked))
	}
	return linked, nil
}
