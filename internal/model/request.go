package model

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"
)

// Request is a department item request raised for an employee.
type Request struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	RequestedBy          int64      `json:"requested_by"`
	EmployeeID           int64      `json:"employee_id"`
	DepartmentID         null.Int64 `json:"department_id"`
	State                string     `json:"state"`
	ConsumableTransferID null.Int64 `json:"consumable_transfer_id"`
	ReturnableTransferID null.Int64 `json:"returnable_transfer_id"`
	Note                 string     `json:"note"`
	RequestedAt          time.Time  `json:"requested_at"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy           null.Int64 `json:"approved_by"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	CompletedBy          null.Int64 `json:"completed_by"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`

	Lines []RequestLine `json:"lines,omitempty"`
}

// Request states.
const (
	RequestDraft     = "draft"
	RequestRequested = "requested"
	RequestApproved  = "approved"
	RequestDone      = "done"
	RequestCancelled = "cancelled"
)

var requestTransitions = map[string][]string{
	RequestDraft:     {RequestRequested, RequestCancelled},
	RequestRequested: {RequestApproved, RequestDone, RequestCancelled},
	RequestApproved:  {RequestDone},
}

// CanTransition reports whether a request may move from one state to
// another. Requested goes straight to done when the warehouse delivers
// everything before approval.
func CanTransition(from, to string) bool {
	for _, s := range requestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Editable reports whether the request's fields and lines may change.
func (r *Request) Editable() bool {
	return r.State != RequestApproved && r.State != RequestDone
}

// TransferIDs returns the linked transfers.
func (r *Request) TransferIDs() []int64 {
	var ids []int64
	if r.ConsumableTransferID.Valid {
		ids = append(ids, r.ConsumableTransferID.Int64)
	}
	if r.ReturnableTransferID.Valid {
		ids = append(ids, r.ReturnableTransferID.Int64)
	}
	return ids
}

// RequestLine is one requested product.
type RequestLine struct {
	ID        int64           `json:"id"`
	RequestID int64           `json:"request_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UoM       string          `json:"uom"`

	// Joined fields (not always populated).
	ProductName string `json:"product_name,omitempty"`
	IssueKind   string `json:"issue_kind,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

// RequestMessage is an entry in a request's activity feed.
type RequestMessage struct {
	ID        int64      `json:"id"`
	RequestID int64      `json:"request_id"`
	AuthorID  null.Int64 `json:"author_id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}
