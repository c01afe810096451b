package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

// FindOrCreateAssetCard returns the employee's asset card, creating it
// with the given name if the employee has none.
func FindOrCreateAssetCard(ctx context.Context, q db.Querier, employeeID int64, name string) (*model.AssetCard, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO asset_cards (employee_id, name) VALUES (?, ?)
		 ON CONFLICT (employee_id) DO NOTHING`,
		employeeID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating asset card: %w", err)
	}

	c := &model.AssetCard{}
	err = q.QueryRowContext(ctx,
		`SELECT id, employee_id, name, created_at FROM asset_cards WHERE employee_id = ?`, employeeID,
	).Scan(&c.ID, &c.EmployeeID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting asset card: %w", err)
	}
	return c, nil
}

// GetAssetCard returns an asset card with all its lines.
func GetAssetCard(ctx context.Context, q db.Querier, id int64) (*model.AssetCard, error) {
	c := &model.AssetCard{}
	err := q.QueryRowContext(ctx,
		`SELECT id, employee_id, name, created_at FROM asset_cards WHERE id = ?`, id,
	).Scan(&c.ID, &c.EmployeeID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset card: %w", err)
	}

	c.Lines, err = ListAssetLines(ctx, q, AssetLineFilter{CardID: id})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListAssetCards returns all asset cards without their lines.
func ListAssetCards(ctx context.Context, q db.Querier) ([]model.AssetCard, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, employee_id, name, created_at FROM asset_cards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing asset cards: %w", err)
	}
	defer rows.Close()

	var cards []model.AssetCard
	for rows.Next() {
		var c model.AssetCard
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning asset card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// NewAssetLine describes an issued returnable item.
type NewAssetLine struct {
	CardID           int64
	ProductID        int64
	Quantity         decimal.Decimal
	RequestID        null.Int64
	TransferID       null.Int64
	IssuedLocationID null.Int64
}

// AddAssetLine appends an open, returnable line to an asset card.
func AddAssetLine(ctx context.Context, q db.Querier, l NewAssetLine) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO asset_card_lines (card_id, product_id, quantity, returnable, returned,
		                               request_id, transfer_id, issued_location_id)
		 VALUES (?, ?, ?, 1, 0, ?, ?, ?)`,
		l.CardID, l.ProductID, l.Quantity.String(), l.RequestID, l.TransferID, l.IssuedLocationID,
	)
	if err != nil {
		return 0, fmt.Errorf("adding asset line: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting asset line id: %w", err)
	}
	return id, nil
}

const assetLineColumns = `l.id, l.card_id, l.product_id, l.quantity, l.issue_date, l.returnable, l.returned,
	l.request_id, l.transfer_id, l.issued_location_id, l.return_transfer_id, l.return_date,
	l.return_condition, l.return_notes, p.name, e.name`

func scanAssetLine(row scanner) (*model.AssetCardLine, error) {
	l := &model.AssetCardLine{}
	err := row.Scan(&l.ID, &l.CardID, &l.ProductID, &l.Quantity, &l.IssueDate, &l.Returnable, &l.Returned,
		&l.RequestID, &l.TransferID, &l.IssuedLocationID, &l.ReturnTransferID, &l.ReturnDate,
		&l.ReturnCondition, &l.ReturnNotes, &l.ProductName, &l.EmployeeName)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func assetLineQuery() sq.SelectBuilder {
	return sq.Select(assetLineColumns).
		From("asset_card_lines l").
		Join("asset_cards c ON c.id = l.card_id").
		Join("employees e ON e.id = c.employee_id").
		Join("products p ON p.id = l.product_id")
}

// GetAssetLine returns an asset card line.
func GetAssetLine(ctx context.Context, q db.Querier, id int64) (*model.AssetCardLine, error) {
	stmt, args, err := assetLineQuery().Where(sq.Eq{"l.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building asset line query: %w", err)
	}

	l, err := scanAssetLine(q.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset line: %w", err)
	}
	return l, nil
}

// AssetLineFilter narrows ListAssetLines. Zero values match everything.
type AssetLineFilter struct {
	CardID     int64
	EmployeeID int64
	RequestID  int64
	OpenOnly   bool
}

// ListAssetLines returns asset card lines ordered by issue.
func ListAssetLines(ctx context.Context, q db.Querier, f AssetLineFilter) ([]model.AssetCardLine, error) {
	query := assetLineQuery().OrderBy("l.id")
	if f.CardID > 0 {
		query = query.Where(sq.Eq{"l.card_id": f.CardID})
	}
	if f.EmployeeID > 0 {
		query = query.Where(sq.Eq{"c.employee_id": f.EmployeeID})
	}
	if f.RequestID > 0 {
		query = query.Where(sq.Eq{"l.request_id": f.RequestID})
	}
	if f.OpenOnly {
		query = query.Where(sq.Eq{"l.returnable": 1, "l.returned": 0})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building asset line query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing asset lines: %w", err)
	}
	defer rows.Close()

	var lines []model.AssetCardLine
	for rows.Next() {
		l, err := scanAssetLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning asset line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

// MarkAssetLineReturned records the return of an asset line.
func MarkAssetLineReturned(ctx context.Context, q db.Querier, id int64, condition, notes string, returnTransferID null.Int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE asset_card_lines
		 SET returned = 1, return_condition = ?, return_notes = ?, return_transfer_id = ?, return_date = ?
		 WHERE id = ?`,
		condition, notes, returnTransferID, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking asset line returned: %w", err)
	}
	return nil
}
