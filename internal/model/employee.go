package model

import (
	"time"

	"github.com/aarondl/null/v8"
)

// DefaultCompanyID is the company seeded by the initial migration.
const DefaultCompanyID int64 = 1

// Department is an organisational unit. Departments form a tree through
// ParentID; the manager of a department (or of any ancestor) is its
// department head.
type Department struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	ParentID        null.Int64 `json:"parent_id"`
	ManagerID       null.Int64 `json:"manager_id"`
	CompanyID       int64      `json:"company_id"`
	StockLocationID null.Int64 `json:"stock_location_id"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Employee is a person items are issued to. UserID links the employee to
// a login; DepartmentID may be empty for employees not yet assigned.
type Employee struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	UserID       null.Int64 `json:"user_id"`
	DepartmentID null.Int64 `json:"department_id"`
	CreatedAt    time.Time  `json:"created_at"`
}
