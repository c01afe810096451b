// Package warehouse is a small stock engine: a location tree, quants,
// picking types and transfers that are confirmed, reserved and validated.
//
// Every function takes a db.Querier so callers decide the transaction
// boundary. With the single-connection SQLite pool, code running inside a
// transaction must pass the *sql.Tx, never the *sql.DB.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/sequence"
)

// ValidatedHook runs after a transfer is validated, inside the same
// transaction. Returning an error rolls the validation back.
type ValidatedHook func(ctx context.Context, q db.Querier, t *model.Transfer, validatedBy int64) error

// Service owns transfers and quants.
type Service struct {
	seq   sequence.Sequencer
	log   *zap.Logger
	hooks []ValidatedHook
}

// New returns a warehouse service.
func New(seq sequence.Sequencer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{seq: seq, log: log.Named("warehouse")}
}

// OnValidated registers a hook run for every validated transfer. Hooks are
// registered at startup and run in registration order.
func (s *Service) OnValidated(h ValidatedHook) {
	s.hooks = append(s.hooks, h)
}

var pickingTypeDefs = []struct {
	code, name, suffix string
}{
	{model.PickingIncoming, "Receipts", "IN"},
	{model.PickingOutgoing, "Delivery Orders", "OUT"},
	{model.PickingInternal, "Internal Transfers", "INT"},
}

// EnsureDefaultWarehouse returns the company's first warehouse, creating
// a "WH" warehouse with its locations, picking types and sequences if the
// company has none.
func (s *Service) EnsureDefaultWarehouse(ctx context.Context, q db.Querier, companyID int64) (*model.Warehouse, error) {
	wh, err := s.DefaultWarehouse(ctx, q, companyID)
	if err != nil || wh != nil {
		return wh, err
	}

	const code = "WH"
	view, err := s.createLocation(ctx, q, code, model.UsageView, nil, companyID)
	if err != nil {
		return nil, err
	}
	stock, err := s.createLocation(ctx, q, "Stock", model.UsageInternal, view, companyID)
	if err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO warehouses (name, code, company_id, view_location_id, lot_stock_id)
		 VALUES (?, ?, ?, ?, ?)`,
		"Warehouse", code, companyID, view.ID, stock.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating warehouse: %w", err)
	}
	whID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting warehouse id: %w", err)
	}

	for _, def := range pickingTypeDefs {
		seqCode := code + "/" + def.suffix
		if err := sequence.Define(ctx, q, seqCode, seqCode+"/", 5); err != nil {
			return nil, err
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO picking_types (warehouse_id, code, name, sequence_code) VALUES (?, ?, ?, ?)`,
			whID, def.code, def.name, seqCode,
		)
		if err != nil {
			return nil, fmt.Errorf("creating picking type %s: %w", def.code, err)
		}
	}

	s.log.Info("created default warehouse",
		zap.Int64("company_id", companyID),
		zap.Int64("warehouse_id", whID),
		zap.Int64("stock_location_id", stock.ID))

	return s.DefaultWarehouse(ctx, q, companyID)
}

// DefaultWarehouse returns the company's first warehouse, or nil if the
// company has none.
func (s *Service) DefaultWarehouse(ctx context.Context, q db.Querier, companyID int64) (*model.Warehouse, error) {
	wh := &model.Warehouse{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, code, company_id, view_location_id, lot_stock_id
		 FROM warehouses WHERE company_id = ? ORDER BY id LIMIT 1`, companyID,
	).Scan(&wh.ID, &wh.Name, &wh.Code, &wh.CompanyID, &wh.ViewLocationID, &wh.LotStockID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting default warehouse: %w", err)
	}
	return wh, nil
}

// PickingType returns the warehouse's picking type with the given code, or
// nil if there is none.
func (s *Service) PickingType(ctx context.Context, q db.Querier, warehouseID int64, code string) (*model.PickingType, error) {
	pt := &model.PickingType{}
	err := q.QueryRowContext(ctx,
		`SELECT id, warehouse_id, code, name, sequence_code
		 FROM picking_types WHERE warehouse_id = ? AND code = ?`, warehouseID, code,
	).Scan(&pt.ID, &pt.WarehouseID, &pt.Code, &pt.Name, &pt.SequenceCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting picking type: %w", err)
	}
	return pt, nil
}

func (s *Service) getPickingTypeByID(ctx context.Context, q db.Querier, id int64) (*model.PickingType, error) {
	pt := &model.PickingType{}
	err := q.QueryRowContext(ctx,
		`SELECT id, warehouse_id, code, name, sequence_code FROM picking_types WHERE id = ?`, id,
	).Scan(&pt.ID, &pt.WarehouseID, &pt.Code, &pt.Name, &pt.SequenceCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting picking type: %w", err)
	}
	return pt, nil
}

func nullID(id int64) null.Int64 {
	if id == 0 {
		return null.Int64{}
	}
	return null.Int64From(id)
}
