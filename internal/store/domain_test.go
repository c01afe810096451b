package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

func seedRequest(t *testing.T, database *sql.DB) (*model.Request, *model.Product) {
	t.Helper()
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "head", "hash", model.RoleUser)
	require.NoError(t, err)
	dept, err := CreateDepartment(ctx, database, "Sales", null.Int64{}, null.Int64{}, model.DefaultCompanyID)
	require.NoError(t, err)
	emp, err := CreateEmployee(ctx, database, "Ana", null.Int64From(user.ID), null.Int64From(dept.ID))
	require.NoError(t, err)
	product, err := CreateProduct(ctx, database, model.Product{
		Name: "Gloves", UoM: "pair", IssueKind: model.IssueConsumable, Storable: true,
	})
	require.NoError(t, err)

	req, err := CreateRequest(ctx, database, "REQ/00001", user.ID, emp.ID, emp.DepartmentID, "")
	require.NoError(t, err)
	return req, product
}

func TestDepartmentChain(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	root, err := CreateDepartment(ctx, database, "Company", null.Int64{}, null.Int64{}, model.DefaultCompanyID)
	require.NoError(t, err)
	mid, err := CreateDepartment(ctx, database, "Operations", null.Int64From(root.ID), null.Int64{}, model.DefaultCompanyID)
	require.NoError(t, err)
	leaf, err := CreateDepartment(ctx, database, "Logistics", null.Int64From(mid.ID), null.Int64{}, model.DefaultCompanyID)
	require.NoError(t, err)

	chain, err := DepartmentChain(ctx, database, leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []int64{leaf.ID, mid.ID, root.ID}, []int64{chain[0].ID, chain[1].ID, chain[2].ID})

	withoutLoc, err := ListDepartments(ctx, database, DepartmentFilter{WithLocation: null.BoolFrom(false)})
	require.NoError(t, err)
	assert.Len(t, withoutLoc, 3)
}

func TestListEmployeesByDepartment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	sales, _ := CreateDepartment(ctx, database, "Sales", null.Int64{}, null.Int64{}, model.DefaultCompanyID)
	CreateEmployee(ctx, database, "Ana", null.Int64{}, null.Int64From(sales.ID))
	CreateEmployee(ctx, database, "Bor", null.Int64{}, null.Int64{})

	got, err := ListEmployees(ctx, database, EmployeeFilter{DepartmentID: sales.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ana", got[0].Name)

	got, err = ListEmployees(ctx, database, EmployeeFilter{Name: "o"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bor", got[0].Name)
}

func TestProductImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := CreateProduct(ctx, database, model.Product{Name: "Drill", IssueKind: model.IssueReturnable, Storable: true})
	require.NoError(t, err)
	assert.True(t, p.Storable)
	assert.Empty(t, p.ImageMime)

	require.NoError(t, SetProductImage(ctx, database, p.ID, []byte{0xff, 0xd8}, "image/jpeg"))
	data, mime, err := GetProductImage(ctx, database, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
	assert.Equal(t, "image/jpeg", mime)

	returnables, err := ListProducts(ctx, database, ProductFilter{IssueKind: model.IssueReturnable})
	require.NoError(t, err)
	assert.Len(t, returnables, 1)
}

func TestRequestLinesAndState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	req, product := seedRequest(t, database)

	assert.Equal(t, model.RequestDraft, req.State)
	assert.True(t, req.DepartmentID.Valid)

	line, err := AddRequestLine(ctx, database, req.ID, product.ID, decimal.RequireFromString("2.5"), product.UoM)
	require.NoError(t, err)
	assert.Equal(t, "Gloves", line.ProductName)
	assert.Equal(t, model.IssueConsumable, line.IssueKind)

	require.NoError(t, UpdateRequestLine(ctx, database, line.ID, product.ID, decimal.NewFromInt(3), "pair"))
	require.NoError(t, SetRequestState(ctx, database, req.ID, model.RequestApproved, null.Int64From(req.RequestedBy)))

	got, err := GetRequest(ctx, database, req.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, model.RequestApproved, got.State)
	assert.Equal(t, req.RequestedBy, got.ApprovedBy.Int64)
	assert.NotNil(t, got.ApprovedAt)

	approved, err := ListRequests(ctx, database, RequestFilter{State: model.RequestApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	none, err := ListRequests(ctx, database, RequestFilter{DepartmentIDs: []int64{req.DepartmentID.Int64 + 100}})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, PostMessage(ctx, database, req.ID, 0, "Request approved."))
	require.NoError(t, DeleteRequest(ctx, database, req.ID))

	lines, err := ListRequestLines(ctx, database, req.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	messages, err := ListMessages(ctx, database, req.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAssetCardLines(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	req, product := seedRequest(t, database)

	card, err := FindOrCreateAssetCard(ctx, database, req.EmployeeID, "Ana")
	require.NoError(t, err)
	again, err := FindOrCreateAssetCard(ctx, database, req.EmployeeID, "ignored")
	require.NoError(t, err)
	assert.Equal(t, card.ID, again.ID)
	assert.Equal(t, "Ana", again.Name)

	id, err := AddAssetLine(ctx, database, NewAssetLine{
		CardID:    card.ID,
		ProductID: product.ID,
		Quantity:  decimal.NewFromInt(1),
		RequestID: null.Int64From(req.ID),
	})
	require.NoError(t, err)

	open, err := ListAssetLines(ctx, database, AssetLineFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].Returnable)
	assert.False(t, open[0].Returned)
	assert.Equal(t, "Ana", open[0].EmployeeName)

	require.NoError(t, MarkAssetLineReturned(ctx, database, id, model.ConditionLost, "left on site", null.Int64{}, time.Now()))

	line, err := GetAssetLine(ctx, database, id)
	require.NoError(t, err)
	assert.True(t, line.Returned)
	assert.Equal(t, model.ConditionLost, line.ReturnCondition.String)
	assert.NotNil(t, line.ReturnDate)

	open, err = ListAssetLines(ctx, database, AssetLineFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)

	full, err := GetAssetCard(ctx, database, card.ID)
	require.NoError(t, err)
	assert.Len(t, full.Lines, 1)
}

func TestConsumptionLogs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	req, product := seedRequest(t, database)

	// Consumption logs reference a transfer, so a minimal one is needed.
	_, err := database.Exec(`INSERT INTO locations (id, name, full_name, usage, company_id) VALUES (1, 'A', 'A', 'internal', 1), (2, 'B', 'B', 'inventory', 1)`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO warehouses (id, name, code, company_id, view_location_id, lot_stock_id) VALUES (1, 'W', 'WH', 1, 1, 1)`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO picking_types (id, warehouse_id, code, name, sequence_code) VALUES (1, 1, 'outgoing', 'Out', 'WH/OUT')`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO transfers (id, name, picking_type_id, source_location_id, dest_location_id) VALUES (1, 'WH/OUT/00001', 1, 1, 2)`)
	require.NoError(t, err)

	require.NoError(t, AddConsumptionLog(ctx, database, req.EmployeeID, req.DepartmentID, product.ID, decimal.NewFromInt(4), req.ID, 1))

	logs, err := ListConsumption(ctx, database, ConsumptionFilter{DepartmentID: req.DepartmentID.Int64})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Sales", logs[0].DepartmentName)
	assert.Equal(t, "REQ/00001", logs[0].RequestName)
	assert.True(t, logs[0].Quantity.Equal(decimal.NewFromInt(4)))

	future, err := ListConsumption(ctx, database, ConsumptionFilter{From: time.Now().Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestSyncRequestDepartment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	req, _ := seedRequest(t, database)

	closed, err := CreateRequest(ctx, database, "REQ/00002", req.RequestedBy, req.EmployeeID, req.DepartmentID, "")
	require.NoError(t, err)
	require.NoError(t, SetRequestState(ctx, database, closed.ID, model.RequestDone, null.Int64From(req.RequestedBy)))

	other, err := CreateDepartment(ctx, database, "Support", null.Int64{}, null.Int64{}, model.DefaultCompanyID)
	require.NoError(t, err)

	n, err := SyncRequestDepartment(ctx, database, req.EmployeeID, null.Int64From(other.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := GetRequest(ctx, database, req.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.DepartmentID.Int64)

	got, err = GetRequest(ctx, database, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, req.DepartmentID, got.DepartmentID)

	n, err = SyncRequestDepartment(ctx, database, req.EmployeeID, null.Int64{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err = GetRequest(ctx, database, req.ID)
	require.NoError(t, err)
	assert.False(t, got.DepartmentID.Valid)
}

func TestRequestNamesAreUnique(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	req, _ := seedRequest(t, database)

	_, err := CreateRequest(ctx, database, req.Name, req.RequestedBy, req.EmployeeID, req.DepartmentID, "")
	assert.Error(t, err)
}
