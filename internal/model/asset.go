package model

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"
)

// AssetCard is an employee's running record of issued returnable items.
type AssetCard struct {
	ID         int64           `json:"id"`
	EmployeeID int64           `json:"employee_id"`
	Name       string          `json:"name"`
	CreatedAt  time.Time       `json:"created_at"`
	Lines      []AssetCardLine `json:"lines,omitempty"`
}

// AssetCardLine is one issued returnable item.
type AssetCardLine struct {
	ID               int64           `json:"id"`
	CardID           int64           `json:"card_id"`
	ProductID        int64           `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	IssueDate        time.Time       `json:"issue_date"`
	Returnable       bool            `json:"returnable"`
	Returned         bool            `json:"returned"`
	RequestID        null.Int64      `json:"request_id"`
	TransferID       null.Int64      `json:"transfer_id"`
	IssuedLocationID null.Int64      `json:"issued_location_id"`
	ReturnTransferID null.Int64      `json:"return_transfer_id"`
	ReturnDate       *time.Time      `json:"return_date,omitempty"`
	ReturnCondition  null.String     `json:"return_condition"`
	ReturnNotes      string          `json:"return_notes,omitempty"`

	// Joined fields (not always populated).
	ProductName  string `json:"product_name,omitempty"`
	EmployeeName string `json:"employee_name,omitempty"`
}

// Return conditions.
const (
	ConditionGood   = "good"
	ConditionRepair = "repair"
	ConditionScrap  = "scrap"
	ConditionLost   = "lost"
)

// ValidCondition reports whether c is a known return condition.
func ValidCondition(c string) bool {
	switch c {
	case ConditionGood, ConditionRepair, ConditionScrap, ConditionLost:
		return true
	}
	return false
}

// ConsumptionLog records a consumable delivered to an employee.
type ConsumptionLog struct {
	ID           int64           `json:"id"`
	EmployeeID   int64           `json:"employee_id"`
	DepartmentID null.Int64      `json:"department_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	RequestID    int64           `json:"request_id"`
	TransferID   int64           `json:"transfer_id"`
	CreatedAt    time.Time       `json:"created_at"`

	// Joined fields (not always populated).
	EmployeeName   string `json:"employee_name,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
	ProductName    string `json:"product_name,omitempty"`
	RequestName    string `json:"request_name,omitempty"`
}
