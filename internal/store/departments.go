package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

const departmentColumns = `id, name, parent_id, manager_id, company_id, stock_location_id, created_at`

func scanDepartment(row scanner) (*model.Department, error) {
	d := &model.Department{}
	err := row.Scan(&d.ID, &d.Name, &d.ParentID, &d.ManagerID, &d.CompanyID, &d.StockLocationID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDepartment creates a department in the given company.
func CreateDepartment(ctx context.Context, q db.Querier, name string, parentID, managerID null.Int64, companyID int64) (*model.Department, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO departments (name, parent_id, manager_id, company_id) VALUES (?, ?, ?, ?)`,
		name, parentID, managerID, companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating department: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting department id: %w", err)
	}

	return GetDepartment(ctx, q, id)
}

// GetDepartment returns a department by ID.
func GetDepartment(ctx context.Context, q db.Querier, id int64) (*model.Department, error) {
	d, err := scanDepartment(q.QueryRowContext(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting department: %w", err)
	}
	return d, nil
}

// DepartmentFilter narrows ListDepartments. Zero values match everything.
type DepartmentFilter struct {
	CompanyID    int64
	ParentID     int64
	WithLocation null.Bool
}

// ListDepartments returns departments ordered by name.
func ListDepartments(ctx context.Context, q db.Querier, f DepartmentFilter) ([]model.Department, error) {
	query := sq.Select(departmentColumns).From("departments").OrderBy("name")
	if f.CompanyID > 0 {
		query = query.Where(sq.Eq{"company_id": f.CompanyID})
	}
	if f.ParentID > 0 {
		query = query.Where(sq.Eq{"parent_id": f.ParentID})
	}
	if f.WithLocation.Valid {
		if f.WithLocation.Bool {
			query = query.Where(sq.NotEq{"stock_location_id": nil})
		} else {
			query = query.Where(sq.Eq{"stock_location_id": nil})
		}
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building department query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	var departments []model.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		departments = append(departments, *d)
	}
	return departments, rows.Err()
}

// UpdateDepartment updates a department's name, parent and manager.
func UpdateDepartment(ctx context.Context, q db.Querier, id int64, name string, parentID, managerID null.Int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE departments SET name = ?, parent_id = ?, manager_id = ? WHERE id = ?`,
		name, parentID, managerID, id,
	)
	if err != nil {
		return fmt.Errorf("updating department: %w", err)
	}
	return nil
}

// SetDepartmentLocation caches the department's internal stock location.
func SetDepartmentLocation(ctx context.Context, q db.Querier, id, locationID int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE departments SET stock_location_id = ? WHERE id = ?`, locationID, id,
	)
	if err != nil {
		return fmt.Errorf("setting department location: %w", err)
	}
	return nil
}

// DepartmentChain returns the department followed by its ancestors, from
// the department up to the root.
func DepartmentChain(ctx context.Context, q db.Querier, id int64) ([]model.Department, error) {
	rows, err := q.QueryContext(ctx,
		`WITH RECURSIVE chain(id, depth) AS (
		     SELECT id, 0 FROM departments WHERE id = ?
		     UNION
		     SELECT d.parent_id, c.depth + 1
		     FROM departments d JOIN chain c ON d.id = c.id
		     WHERE d.parent_id IS NOT NULL AND c.depth < 64
		 )
		 SELECT `+prefixed("d.", departmentColumns)+`
		 FROM chain c JOIN departments d ON d.id = c.id
		 ORDER BY c.depth`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing department ancestors: %w", err)
	}
	defer rows.Close()

	var chain []model.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		chain = append(chain, *d)
	}
	return chain, rows.Err()
}
