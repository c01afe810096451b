package model

import "time"

// Product is a stock item that can be requested.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UoM       string    `json:"uom"`
	IssueKind string    `json:"issue_kind"`
	Storable  bool      `json:"storable"`
	ImageMime string    `json:"image_mime,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue kinds. Consumables are logged when delivered; returnables are
// tracked on the employee's asset card until returned.
const (
	IssueConsumable = "consumable"
	IssueReturnable = "returnable"
)

// ValidIssueKind reports whether kind is a known issue kind.
func ValidIssueKind(kind string) bool {
	return kind == IssueConsumable || kind == IssueReturnable
}
