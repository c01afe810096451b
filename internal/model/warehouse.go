package model

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"
)

// Warehouse groups a view location, its main stock location and the
// picking types operating on it.
type Warehouse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Code           string `json:"code"`
	CompanyID      int64  `json:"company_id"`
	ViewLocationID int64  `json:"view_location_id"`
	LotStockID     int64  `json:"lot_stock_id"`
}

// Location is a node in the stock location tree.
type Location struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	FullName  string     `json:"full_name"`
	Usage     string     `json:"usage"`
	ParentID  null.Int64 `json:"parent_id"`
	CompanyID int64      `json:"company_id"`
}

// Location usages. Only internal locations hold quants.
const (
	UsageInternal  = "internal"
	UsageInventory = "inventory"
	UsageView      = "view"
)

// PickingType is an operation type of a warehouse.
type PickingType struct {
	ID           int64  `json:"id"`
	WarehouseID  int64  `json:"warehouse_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	SequenceCode string `json:"sequence_code"`
}

// Picking type codes.
const (
	PickingIncoming = "incoming"
	PickingOutgoing = "outgoing"
	PickingInternal = "internal"
)

// Quant is the quantity of a product at an internal location.
type Quant struct {
	ProductID  int64           `json:"product_id"`
	LocationID int64           `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reserved   decimal.Decimal `json:"reserved"`

	// Joined fields (not always populated).
	ProductName  string `json:"product_name,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

// Transfer is a movement of goods between two locations (a picking).
type Transfer struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	PickingTypeID    int64      `json:"picking_type_id"`
	SourceLocationID int64      `json:"source_location_id"`
	DestLocationID   int64      `json:"dest_location_id"`
	State            string     `json:"state"`
	Origin           string     `json:"origin"`
	RequestID        null.Int64 `json:"request_id"`
	Note             string     `json:"note,omitempty"`
	CreatedBy        null.Int64 `json:"created_by"`
	ValidatedBy      null.Int64 `json:"validated_by"`
	CreatedAt        time.Time  `json:"created_at"`
	DoneAt           *time.Time `json:"done_at,omitempty"`

	Moves []Move `json:"moves,omitempty"`
}

// Transfer states.
const (
	TransferDraft     = "draft"
	TransferConfirmed = "confirmed"
	TransferAssigned  = "assigned"
	TransferDone      = "done"
	TransferCancelled = "cancelled"
)

// Move is one product line of a transfer.
type Move struct {
	ID            int64           `json:"id"`
	TransferID    int64           `json:"transfer_id"`
	ProductID     int64           `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UoM           string          `json:"uom"`
	RequestLineID null.Int64      `json:"request_line_id"`
}

// MoveLine is a concrete quantity reserved from (and, once the transfer
// is done, delivered out of) a specific source location.
type MoveLine struct {
	ID               int64           `json:"id"`
	MoveID           int64           `json:"move_id"`
	ProductID        int64           `json:"product_id"`
	SourceLocationID int64           `json:"source_location_id"`
	DestLocationID   int64           `json:"dest_location_id"`
	Quantity         decimal.Decimal `json:"quantity"`
}
