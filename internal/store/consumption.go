package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

// AddConsumptionLog records a delivered consumable. Logs are never
// updated or deleted.
func AddConsumptionLog(ctx context.Context, q db.Querier, employeeID int64, departmentID null.Int64, productID int64, quantity decimal.Decimal, requestID, transferID int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO consumption_logs (employee_id, department_id, product_id, quantity, request_id, transfer_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		employeeID, departmentID, productID, quantity.String(), requestID, transferID,
	)
	if err != nil {
		return fmt.Errorf("adding consumption log: %w", err)
	}
	return nil
}

// ConsumptionFilter narrows ListConsumption. Zero values match everything.
type ConsumptionFilter struct {
	EmployeeID   int64
	DepartmentID int64
	ProductID    int64
	RequestID    int64
	From         time.Time
	To           time.Time
}

// ListConsumption returns consumption logs with names, newest first.
func ListConsumption(ctx context.Context, q db.Querier, f ConsumptionFilter) ([]model.ConsumptionLog, error) {
	query := sq.Select(
		"c.id", "c.employee_id", "c.department_id", "c.product_id", "c.quantity",
		"c.request_id", "c.transfer_id", "c.created_at",
		"e.name", "COALESCE(d.name, '')", "p.name", "r.name",
	).From("consumption_logs c").
		Join("employees e ON e.id = c.employee_id").
		LeftJoin("departments d ON d.id = c.department_id").
		Join("products p ON p.id = c.product_id").
		Join("requests r ON r.id = c.request_id").
		OrderBy("c.id DESC")

	if f.EmployeeID > 0 {
		query = query.Where(sq.Eq{"c.employee_id": f.EmployeeID})
	}
	if f.DepartmentID > 0 {
		query = query.Where(sq.Eq{"c.department_id": f.DepartmentID})
	}
	if f.ProductID > 0 {
		query = query.Where(sq.Eq{"c.product_id": f.ProductID})
	}
	if f.RequestID > 0 {
		query = query.Where(sq.Eq{"c.request_id": f.RequestID})
	}
	if !f.From.IsZero() {
		query = query.Where(sq.GtOrEq{"c.created_at": f.From.UTC().Format(time.DateTime)})
	}
	if !f.To.IsZero() {
		query = query.Where(sq.Lt{"c.created_at": f.To.UTC().Format(time.DateTime)})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building consumption query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing consumption: %w", err)
	}
	defer rows.Close()

	var logs []model.ConsumptionLog
	for rows.Next() {
		var c model.ConsumptionLog
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.DepartmentID, &c.ProductID, &c.Quantity,
			&c.RequestID, &c.TransferID, &c.CreatedAt,
			&c.EmployeeName, &c.DepartmentName, &c.ProductName, &c.RequestName); err != nil {
			return nil, fmt.Errorf("scanning consumption log: %w", err)
		}
		logs = append(logs, c)
	}
	return logs, rows.Err()
}
