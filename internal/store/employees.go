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

const employeeColumns = `id, name, user_id, department_id, created_at`

func scanEmployee(row scanner) (*model.Employee, error) {
	e := &model.Employee{}
	if err := row.Scan(&e.ID, &e.Name, &e.UserID, &e.DepartmentID, &e.CreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateEmployee creates an employee, optionally linked to a user.
func CreateEmployee(ctx context.Context, q db.Querier, name string, userID, departmentID null.Int64) (*model.Employee, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO employees (name, user_id, department_id) VALUES (?, ?, ?)`,
		name, userID, departmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating employee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting employee id: %w", err)
	}

	return GetEmployee(ctx, q, id)
}

// GetEmployee returns an employee by ID.
func GetEmployee(ctx context.Context, q db.Querier, id int64) (*model.Employee, error) {
	e, err := scanEmployee(q.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}
	return e, nil
}

// GetEmployeeByUser returns the employee linked to a user.
func GetEmployeeByUser(ctx context.Context, q db.Querier, userID int64) (*model.Employee, error) {
	e, err := scanEmployee(q.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee by user: %w", err)
	}
	return e, nil
}

// EmployeeFilter narrows ListEmployees. Zero values match everything.
type EmployeeFilter struct {
	DepartmentID int64
	Name         string
}

// ListEmployees returns employees ordered by name.
func ListEmployees(ctx context.Context, q db.Querier, f EmployeeFilter) ([]model.Employee, error) {
	query := sq.Select(employeeColumns).From("employees").OrderBy("name")
	if f.DepartmentID > 0 {
		query = query.Where(sq.Eq{"department_id": f.DepartmentID})
	}
	if f.Name != "" {
		query = query.Where(sq.Like{"name": "%" + f.Name + "%"})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building employee query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

// UpdateEmployee updates an employee's name, user link and department.
func UpdateEmployee(ctx context.Context, q db.Querier, id int64, name string, userID, departmentID null.Int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE employees SET name = ?, user_id = ?, department_id = ? WHERE id = ?`,
		name, userID, departmentID, id,
	)
	if err != nil {
		return fmt.Errorf("updating employee: %w", err)
	}
	return nil
}
