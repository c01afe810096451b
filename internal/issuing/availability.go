package issuing

import (
	"context"
	"fmt"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

var nullFalse = null.BoolFrom(false)

// AvailableQuantity returns the free quantity of a product at a location
// and its children that a transfer to destID could reserve. Stock already
// issued into the destination is not counted; destID 0 counts everything.
func (s *Service) AvailableQuantity(ctx context.Context, q db.Querier, productID, locationID, destID int64) (decimal.Decimal, error) {
	return s.wh.AvailableFor(ctx, q, productID, locationID, destID)
}

func shortageWarning(available decimal.Decimal) string {
	return fmt.Sprintf("Only %s units available.", available.String())
}

// LineWarning returns an advisory message when the requested quantity
// exceeds what the company's warehouse stock location has free for a
// transfer to destID. It returns "" when the quantity is available or no
// warehouse exists.
func (s *Service) LineWarning(ctx context.Context, q db.Querier, companyID, productID, destID int64, quantity decimal.Decimal) (string, error) {
	wh, err := s.wh.DefaultWarehouse(ctx, q, companyID)
	if err != nil || wh == nil {
		return "", err
	}
	available, err := s.AvailableQuantity(ctx, q, productID, wh.LotStockID, destID)
	if err != nil {
		return "", err
	}
	if quantity.GreaterThan(available) {
		return shortageWarning(available), nil
	}
	return "", nil
}

// ProductAvailability returns the free quantity of a product in the
// default warehouse and, if quantity is positive and exceeds it, the
// advisory warning shown on request lines.
func (s *Service) ProductAvailability(ctx context.Context, productID int64, quantity decimal.Decimal) (decimal.Decimal, string, error) {
	available := decimal.Zero
	warning := ""
	err := s.tx(ctx, func(q db.Querier) error {
		wh, err := s.defaultWarehouse(ctx, q, model.DefaultCompanyID)
		if err != nil {
			return err
		}
		available, err = s.AvailableQuantity(ctx, q, productID, wh.LotStockID, 0)
		if err != nil {
			return err
		}
		if quantity.IsPositive() && quantity.GreaterThan(available) {
			warning = shortageWarning(available)
		}
		return nil
	})
	return available, warning, err
}

// knownDestination returns the location a line of the given issue kind
// would be delivered to, if it exists yet. Only returnable lines go to an
// internal location, and a department without a cached location has no
// stock to exclude.
func (s *Service) knownDestination(ctx context.Context, q db.Querier, r *model.Request, issueKind string) (int64, error) {
	if issueKind != model.IssueReturnable || !r.DepartmentID.Valid {
		return 0, nil
	}
	dept, err := store.GetDepartment(ctx, q, r.DepartmentID.Int64)
	if err != nil || dept == nil || !dept.StockLocationID.Valid {
		return 0, err
	}
	return dept.StockLocationID.Int64, nil
}

func (s *Service) annotateLines(ctx context.Context, q db.Querier, r *model.Request) error {
	if r.State != model.RequestDraft {
		return nil
	}
	for i := range r.Lines {
		if err := s.lineWarning(ctx, q, r, &r.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}
