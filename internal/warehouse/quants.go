package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

// AddStock increases the on-hand quantity of a product at an internal
// location.
func (s *Service) AddStock(ctx context.Context, q db.Querier, productID, locationID int64, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return apperr.Validation("quantity must be positive")
	}

	loc, err := s.GetLocation(ctx, q, locationID)
	if err != nil {
		return err
	}
	if loc == nil {
		return apperr.NotFound("location %d not found", locationID)
	}
	if loc.Usage != model.UsageInternal {
		return apperr.Validation("stock can only be added to internal locations")
	}

	if err := adjustQuant(ctx, q, productID, locationID, quantity, decimal.Zero); err != nil {
		return err
	}

	s.log.Info("stock added",
		zap.Int64("product_id", productID),
		zap.String("location", loc.FullName),
		zap.String("quantity", quantity.String()))
	return nil
}

// adjustQuant applies deltas to a quant, creating it if needed and
// removing it once both quantities reach zero.
func adjustQuant(ctx context.Context, q db.Querier, productID, locationID int64, dQty, dReserved decimal.Decimal) error {
	qt, err := getQuant(ctx, q, productID, locationID)
	if err != nil {
		return err
	}

	quantity := qt.Quantity.Add(dQty)
	reserved := qt.Reserved.Add(dReserved)
	if quantity.IsNegative() {
		return apperr.InsufficientStock("adjustment would result in negative quantity: %s + %s", qt.Quantity, dQty)
	}
	if reserved.IsNegative() {
		reserved = decimal.Zero
	}

	if quantity.IsZero() && reserved.IsZero() {
		_, err = q.ExecContext(ctx,
			`DELETE FROM quants WHERE product_id = ? AND location_id = ?`,
			productID, locationID,
		)
	} else {
		_, err = q.ExecContext(ctx,
			`INSERT INTO quants (product_id, location_id, quantity, reserved) VALUES (?, ?, ?, ?)
			 ON CONFLICT (product_id, location_id) DO UPDATE SET quantity = excluded.quantity, reserved = excluded.reserved`,
			productID, locationID, quantity.String(), reserved.String(),
		)
	}
	if err != nil {
		return fmt.Errorf("updating quant: %w", err)
	}
	return nil
}

func getQuant(ctx context.Context, q db.Querier, productID, locationID int64) (model.Quant, error) {
	qt := model.Quant{ProductID: productID, LocationID: locationID}
	err := q.QueryRowContext(ctx,
		`SELECT quantity, reserved FROM quants WHERE product_id = ? AND location_id = ?`,
		productID, locationID,
	).Scan(&qt.Quantity, &qt.Reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return qt, nil
	}
	if err != nil {
		return qt, fmt.Errorf("getting quant: %w", err)
	}
	return qt, nil
}

// subtreeQuants returns the product's quants at the location and its
// descendants, ordered by location ID.
func subtreeQuants(ctx context.Context, q db.Querier, productID, locationID int64) ([]model.Quant, error) {
	rows, err := q.QueryContext(ctx,
		`WITH RECURSIVE subtree(id) AS (
		     SELECT id FROM locations WHERE id = ?
		     UNION
		     SELECT l.id FROM locations l JOIN subtree s ON l.parent_id = s.id
		 )
		 SELECT qt.location_id, qt.quantity, qt.reserved
		 FROM quants qt JOIN subtree ON subtree.id = qt.location_id
		 WHERE qt.product_id = ?
		 ORDER BY qt.location_id`, locationID, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing quants: %w", err)
	}
	defer rows.Close()

	var quants []model.Quant
	for rows.Next() {
		qt := model.Quant{ProductID: productID}
		if err := rows.Scan(&qt.LocationID, &qt.Quantity, &qt.Reserved); err != nil {
			return nil, fmt.Errorf("scanning quant: %w", err)
		}
		quants = append(quants, qt)
	}
	return quants, rows.Err()
}

// OnHand returns the product's quantity at the location and its children.
func (s *Service) OnHand(ctx context.Context, q db.Querier, productID, locationID int64) (decimal.Decimal, error) {
	quants, err := subtreeQuants(ctx, q, productID, locationID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, qt := range quants {
		total = total.Add(qt.Quantity)
	}
	return total, nil
}

// Available returns the product's unreserved quantity at the location and
// its children.
func (s *Service) Available(ctx context.Context, q db.Querier, productID, locationID int64) (decimal.Decimal, error) {
	return s.AvailableFor(ctx, q, productID, locationID, 0)
}

// AvailableFor returns what Reserve could take from locationID for a
// transfer to destID: stock already inside the destination subtree does
// not count when the destination lies under the source. A zero destID
// counts the whole subtree.
func (s *Service) AvailableFor(ctx context.Context, q db.Querier, productID, locationID, destID int64) (decimal.Decimal, error) {
	var excluded map[int64]bool
	if destID != 0 {
		var err error
		excluded, err = s.excludedLocations(ctx, q, locationID, destID)
		if err != nil {
			return decimal.Zero, err
		}
	}

	quants, err := subtreeQuants(ctx, q, productID, locationID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, qt := range quants {
		if excluded[qt.LocationID] {
			continue
		}
		total = total.Add(free(qt))
	}
	return total, nil
}

func free(qt model.Quant) decimal.Decimal {
	f := qt.Quantity.Sub(qt.Reserved)
	if f.IsNegative() {
		return decimal.Zero
	}
	return f
}

// QuantFilter narrows ListQuants. Zero values match everything.
type QuantFilter struct {
	ProductID  int64
	LocationID int64
}

// ListQuants returns quants with product and location names.
func (s *Service) ListQuants(ctx context.Context, q db.Querier, f QuantFilter) ([]model.Quant, error) {
	query := sq.Select(
		"qt.product_id", "qt.location_id", "qt.quantity", "qt.reserved",
		"p.name", "l.full_name",
	).From("quants qt").
		Join("products p ON p.id = qt.product_id").
		Join("locations l ON l.id = qt.location_id").
		OrderBy("p.name", "l.full_name")
	if f.ProductID > 0 {
		query = query.Where(sq.Eq{"qt.product_id": f.ProductID})
	}
	if f.LocationID > 0 {
		query = query.Where(sq.Eq{"qt.location_id": f.LocationID})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building quant query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing quants: %w", err)
	}
	defer rows.Close()

	var quants []model.Quant
	for rows.Next() {
		var qt model.Quant
		if err := rows.Scan(&qt.ProductID, &qt.LocationID, &qt.Quantity, &qt.Reserved, &qt.ProductName, &qt.LocationName); err != nil {
			return nil, fmt.Errorf("scanning quant: %w", err)
		}
		quants = append(quants, qt)
	}
	return quants, rows.Err()
}
