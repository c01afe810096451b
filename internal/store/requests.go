package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

const requestColumns = `id, name, requested_by, employee_id, department_id, state,
	consumable_transfer_id, returnable_transfer_id, note, requested_at, submitted_at,
	approved_by, approved_at, completed_by, completed_at, cancelled_at, updated_at`

func scanRequest(row scanner) (*model.Request, error) {
	r := &model.Request{}
	err := row.Scan(&r.ID, &r.Name, &r.RequestedBy, &r.EmployeeID, &r.DepartmentID, &r.State,
		&r.ConsumableTransferID, &r.ReturnableTransferID, &r.Note, &r.RequestedAt, &r.SubmittedAt,
		&r.ApprovedBy, &r.ApprovedAt, &r.CompletedBy, &r.CompletedAt, &r.CancelledAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CreateRequest inserts a draft request.
func CreateRequest(ctx context.Context, q db.Querier, name string, requestedBy, employeeID int64, departmentID null.Int64, note string) (*model.Request, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO requests (name, requested_by, employee_id, department_id, note) VALUES (?, ?, ?, ?, ?)`,
		name, requestedBy, employeeID, departmentID, note,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting request id: %w", err)
	}

	return GetRequest(ctx, q, id)
}

// GetRequest returns a request with its lines.
func GetRequest(ctx context.Context, q db.Querier, id int64) (*model.Request, error) {
	r, err := scanRequest(q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}

	r.Lines, err = ListRequestLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	State         string
	EmployeeID    int64
	DepartmentIDs []int64
	RequestedBy   int64
}

// ListRequests returns requests, newest first, without their lines.
func ListRequests(ctx context.Context, q db.Querier, f RequestFilter) ([]model.Request, error) {
	query := sq.Select(requestColumns).From("requests").OrderBy("id DESC")
	if f.State != "" {
		query = query.Where(sq.Eq{"state": f.State})
	}
	if f.EmployeeID > 0 {
		query = query.Where(sq.Eq{"employee_id": f.EmployeeID})
	}
	if len(f.DepartmentIDs) > 0 {
		query = query.Where(sq.Eq{"department_id": f.DepartmentIDs})
	}
	if f.RequestedBy > 0 {
		query = query.Where(sq.Eq{"requested_by": f.RequestedBy})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building request query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// UpdateRequest updates the editable header fields of a request.
func UpdateRequest(ctx context.Context, q db.Querier, id, employeeID int64, departmentID null.Int64, note string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE requests SET employee_id = ?, department_id = ?, note = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		employeeID, departmentID, note, id,
	)
	if err != nil {
		return fmt.Errorf("updating request: %w", err)
	}
	return nil
}

// SyncRequestDepartment copies an employee's department onto their open
// (draft and requested) requests and returns how many changed.
func SyncRequestDepartment(ctx context.Context, q db.Querier, employeeID int64, departmentID null.Int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE requests SET department_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE employee_id = ? AND state IN (?, ?) AND department_id IS NOT ?`,
		departmentID, employeeID, model.RequestDraft, model.RequestRequested, departmentID,
	)
	if err != nil {
		return 0, fmt.Errorf("syncing request department: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("syncing request department: %w", err)
	}
	return n, nil
}

// SetRequestTransfers stores the request's consumable and returnable
// transfer references.
func SetRequestTransfers(ctx context.Context, q db.Querier, id int64, consumable, returnable null.Int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE requests SET consumable_transfer_id = ?, returnable_transfer_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		consumable, returnable, id,
	)
	if err != nil {
		return fmt.Errorf("setting request transfers: %w", err)
	}
	return nil
}

// SetRequestState moves a request to state and stamps the matching
// timestamp. userID is recorded as approver or completer where relevant.
func SetRequestState(ctx context.Context, q db.Querier, id int64, state string, userID null.Int64) error {
	var stmt string
	args := []any{state}
	switch state {
	case model.RequestRequested:
		stmt = `UPDATE requests SET state = ?, submitted_at = CURRENT_TIMESTAMP`
	case model.RequestApproved:
		stmt = `UPDATE requests SET state = ?, approved_by = ?, approved_at = CURRENT_TIMESTAMP`
		args = append(args, userID)
	case model.RequestDone:
		stmt = `UPDATE requests SET state = ?, completed_by = ?, completed_at = CURRENT_TIMESTAMP`
		args = append(args, userID)
	case model.RequestCancelled:
		stmt = `UPDATE requests SET state = ?, cancelled_at = CURRENT_TIMESTAMP`
	default:
		stmt = `UPDATE requests SET state = ?`
	}
	stmt += `, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	args = append(args, id)

	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("setting request state: %w", err)
	}
	return nil
}

// DeleteRequest deletes a request and, by cascade, its lines and messages.
func DeleteRequest(ctx context.Context, q db.Querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	return nil
}

// FindRequestByTransfer returns the request that references the transfer
// as its consumable or returnable transfer.
func FindRequestByTransfer(ctx context.Context, q db.Querier, transferID int64) (*model.Request, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM requests WHERE consumable_transfer_id = ? OR returnable_transfer_id = ?
		 ORDER BY id LIMIT 1`, transferID, transferID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding request by transfer: %w", err)
	}
	return GetRequest(ctx, q, id)
}

const requestLineColumns = `l.id, l.request_id, l.product_id, l.quantity, l.uom, p.name, p.issue_kind`

func scanRequestLine(row scanner) (*model.RequestLine, error) {
	l := &model.RequestLine{}
	if err := row.Scan(&l.ID, &l.RequestID, &l.ProductID, &l.Quantity, &l.UoM, &l.ProductName, &l.IssueKind); err != nil {
		return nil, err
	}
	return l, nil
}

// AddRequestLine appends a line to a request.
func AddRequestLine(ctx context.Context, q db.Querier, requestID, productID int64, quantity decimal.Decimal, uom string) (*model.RequestLine, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO request_lines (request_id, product_id, quantity, uom) VALUES (?, ?, ?, ?)`,
		requestID, productID, quantity.String(), uom,
	)
	if err != nil {
		return nil, fmt.Errorf("adding request line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting request line id: %w", err)
	}

	return GetRequestLine(ctx, q, id)
}

// GetRequestLine returns a request line with its product name and kind.
func GetRequestLine(ctx context.Context, q db.Querier, id int64) (*model.RequestLine, error) {
	l, err := scanRequestLine(q.QueryRowContext(ctx,
		`SELECT `+requestLineColumns+`
		 FROM request_lines l JOIN products p ON p.id = l.product_id
		 WHERE l.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request line: %w", err)
	}
	return l, nil
}

// ListRequestLines returns a request's lines in insertion order.
func ListRequestLines(ctx context.Context, q db.Querier, requestID int64) ([]model.RequestLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+requestLineColumns+`
		 FROM request_lines l JOIN products p ON p.id = l.product_id
		 WHERE l.request_id = ? ORDER BY l.id`, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing request lines: %w", err)
	}
	defer rows.Close()

	var lines []model.RequestLine
	for rows.Next() {
		l, err := scanRequestLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

// UpdateRequestLine changes a line's product, quantity and unit.
func UpdateRequestLine(ctx context.Context, q db.Querier, id, productID int64, quantity decimal.Decimal, uom string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE request_lines SET product_id = ?, quantity = ?, uom = ? WHERE id = ?`,
		productID, quantity.String(), uom, id,
	)
	if err != nil {
		return fmt.Errorf("updating request line: %w", err)
	}
	return nil
}

// DeleteRequestLine removes a line.
func DeleteRequestLine(ctx context.Context, q db.Querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM request_lines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting request line: %w", err)
	}
	return nil
}

// TouchRequest bumps a request's updated_at.
func TouchRequest(ctx context.Context, q db.Querier, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE requests SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touching request: %w", err)
	}
	return nil
}
