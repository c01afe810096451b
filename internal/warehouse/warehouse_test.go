package warehouse

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/sequence"
)

type fixture struct {
	svc     *Service
	db      *sql.DB
	wh      *model.Warehouse
	stock   *model.Location
	product int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	database := db.NewTestDB(t)
	svc := New(sequence.NewStore(), nil)

	wh, err := svc.EnsureDefaultWarehouse(ctx, database, model.DefaultCompanyID)
	require.NoError(t, err)
	stock, err := svc.GetLocation(ctx, database, wh.LotStockID)
	require.NoError(t, err)

	res, err := database.Exec(`INSERT INTO products (name, uom) VALUES ('Gloves', 'pair')`)
	require.NoError(t, err)
	product, _ := res.LastInsertId()

	return &fixture{svc: svc, db: database, wh: wh, stock: stock, product: product}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) transfer(t *testing.T, code string, dest *model.Location, qty string) *model.Transfer {
	t.Helper()
	ctx := context.Background()

	pt, err := f.svc.PickingType(ctx, f.db, f.wh.ID, code)
	require.NoError(t, err)
	require.NotNil(t, pt)

	tr, err := f.svc.CreateTransfer(ctx, f.db, NewTransfer{
		PickingTypeID:    pt.ID,
		SourceLocationID: f.stock.ID,
		DestLocationID:   dest.ID,
		Origin:           "test",
	})
	require.NoError(t, err)

	_, err = f.svc.AddMove(ctx, f.db, tr.ID, NewMove{ProductID: f.product, Quantity: dec(qty), UoM: "pair"})
	require.NoError(t, err)
	return tr
}

func TestEnsureDefaultWarehouse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	again, err := f.svc.EnsureDefaultWarehouse(ctx, f.db, model.DefaultCompanyID)
	require.NoError(t, err)
	assert.Equal(t, f.wh.ID, again.ID)

	assert.Equal(t, "WH/Stock", f.stock.FullName)
	assert.Equal(t, model.UsageInternal, f.stock.Usage)

	for _, code := range []string{model.PickingIncoming, model.PickingOutgoing, model.PickingInternal} {
		pt, err := f.svc.PickingType(ctx, f.db, f.wh.ID, code)
		require.NoError(t, err)
		assert.NotNil(t, pt, code)
	}

	none, err := f.svc.DefaultWarehouse(ctx, f.db, 99)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindOrCreateLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sales, err := f.svc.FindOrCreateLocation(ctx, f.db, "Sales", model.UsageInternal, f.stock, model.DefaultCompanyID)
	require.NoError(t, err)
	assert.Equal(t, "WH/Stock/Sales", sales.FullName)

	again, err := f.svc.FindOrCreateLocation(ctx, f.db, "Sales", model.UsageInternal, f.stock, model.DefaultCompanyID)
	require.NoError(t, err)
	assert.Equal(t, sales.ID, again.ID)

	ids, err := f.svc.ChildLocations(ctx, f.db, f.stock.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.stock.ID, sales.ID}, ids)

	_, err = f.svc.FindOrCreateLocation(ctx, f.db, "Odd", "bogus", nil, model.DefaultCompanyID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAvailableIncludesChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shelf, err := f.svc.FindOrCreateLocation(ctx, f.db, "Shelf 1", model.UsageInternal, f.stock, model.DefaultCompanyID)
	require.NoError(t, err)

	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("3")))
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, shelf.ID, dec("2.5")))

	avail, err := f.svc.Available(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	assert.True(t, avail.Equal(dec("5.5")), avail.String())

	avail, err = f.svc.Available(ctx, f.db, f.product, shelf.ID)
	require.NoError(t, err)
	assert.True(t, avail.Equal(dec("2.5")), avail.String())
}

func TestAddStockRejectsNonInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scrap, err := f.svc.FindOrCreateLocation(ctx, f.db, "Scrap", model.UsageInventory, nil, model.DefaultCompanyID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.AddStock(ctx, f.db, f.product, scrap.ID, dec("1")), apperr.ErrValidation)
	assert.ErrorIs(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("0")), apperr.ErrValidation)
}

func TestTransferLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dept, err := f.svc.FindOrCreateLocation(ctx, f.db, "Sales", model.UsageInternal, f.stock, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("10")))

	tr := f.transfer(t, model.PickingInternal, dept, "4")
	assert.Equal(t, "WH/INT/00001", tr.Name)
	assert.Equal(t, model.TransferDraft, tr.State)

	require.NoError(t, f.svc.Confirm(ctx, f.db, tr.ID))
	require.NoError(t, f.svc.Reserve(ctx, f.db, tr.ID))

	avail, err := f.svc.Available(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	// The department location is a child of stock and holds nothing yet.
	assert.True(t, avail.Equal(dec("6")), avail.String())

	var hooked []int64
	f.svc.OnValidated(func(ctx context.Context, q db.Querier, t *model.Transfer, userID int64) error {
		hooked = append(hooked, t.ID)
		return nil
	})

	done, err := f.svc.Validate(ctx, f.db, tr.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.TransferDone, done.State)
	assert.NotNil(t, done.DoneAt)
	assert.Equal(t, []int64{tr.ID}, hooked)

	inDept, err := f.svc.OnHand(ctx, f.db, f.product, dept.ID)
	require.NoError(t, err)
	assert.True(t, inDept.Equal(dec("4")), inDept.String())

	lines, err := f.svc.MoveLines(ctx, f.db, tr.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, dept.ID, lines[0].DestLocationID)

	assert.ErrorIs(t, f.svc.Cancel(ctx, f.db, tr.ID), apperr.ErrValidation)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.db, tr.ID), apperr.ErrValidation)
}

func TestReserveIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.FindOrCreateLocation(ctx, f.db, "Customers", model.UsageInventory, nil, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("5")))

	tr := f.transfer(t, model.PickingOutgoing, out, "3")
	_, err = f.svc.AddMove(ctx, f.db, tr.ID, NewMove{ProductID: f.product, Quantity: dec("3")})
	require.NoError(t, err)
	require.NoError(t, f.svc.Confirm(ctx, f.db, tr.ID))

	err = f.svc.Reserve(ctx, f.db, tr.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	avail, err := f.svc.Available(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	assert.True(t, avail.Equal(dec("5")), avail.String())

	lines, err := f.svc.MoveLines(ctx, f.db, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCancelReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.FindOrCreateLocation(ctx, f.db, "Customers", model.UsageInventory, nil, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("5")))

	tr := f.transfer(t, model.PickingOutgoing, out, "5")
	assert.Equal(t, "WH/OUT/00001", tr.Name)
	require.NoError(t, f.svc.Confirm(ctx, f.db, tr.ID))
	require.NoError(t, f.svc.Reserve(ctx, f.db, tr.ID))

	avail, err := f.svc.Available(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	assert.True(t, avail.IsZero())

	require.NoError(t, f.svc.Cancel(ctx, f.db, tr.ID))
	require.NoError(t, f.svc.Cancel(ctx, f.db, tr.ID))

	avail, err = f.svc.Available(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	assert.True(t, avail.Equal(dec("5")), avail.String())

	got, err := f.svc.GetTransfer(ctx, f.db, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferCancelled, got.State)
}

func TestDeleteReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.FindOrCreateLocation(ctx, f.db, "Customers", model.UsageInventory, nil, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("2")))

	tr := f.transfer(t, model.PickingOutgoing, out, "2")
	require.NoError(t, f.svc.Confirm(ctx, f.db, tr.ID))
	require.NoError(t, f.svc.Reserve(ctx, f.db, tr.ID))
	require.NoError(t, f.svc.Delete(ctx, f.db, tr.ID))

	got, err := f.svc.GetTransfer(ctx, f.db, tr.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	avail, err := f.svc.Available(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	assert.True(t, avail.Equal(dec("2")), avail.String())
}

func TestValidateHookErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.FindOrCreateLocation(ctx, f.db, "Customers", model.UsageInventory, nil, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("2")))
	tr := f.transfer(t, model.PickingOutgoing, out, "2")

	f.svc.OnValidated(func(context.Context, db.Querier, *model.Transfer, int64) error {
		return apperr.Validation("hook failed")
	})

	err = db.WithTx(ctx, f.db, func(tx *sql.Tx) error {
		_, err := f.svc.Validate(ctx, tx, tr.ID, 0)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.svc.GetTransfer(ctx, f.db, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferDraft, got.State)

	onHand, err := f.svc.OnHand(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(dec("2")), onHand.String())
}

func TestListTransfers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.FindOrCreateLocation(ctx, f.db, "Customers", model.UsageInventory, nil, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("2")))

	a := f.transfer(t, model.PickingOutgoing, out, "1")
	f.transfer(t, model.PickingOutgoing, out, "1")
	require.NoError(t, f.svc.Cancel(ctx, f.db, a.ID))

	all, err := f.svc.ListTransfers(ctx, f.db, TransferFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cancelled, err := f.svc.ListTransfers(ctx, f.db, TransferFilter{State: model.TransferCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, a.ID, cancelled[0].ID)

	quants, err := f.svc.ListQuants(ctx, f.db, QuantFilter{ProductID: f.product})
	require.NoError(t, err)
	require.Len(t, quants, 1)
	assert.Equal(t, "Gloves", quants[0].ProductName)
	assert.Equal(t, "WH/Stock", quants[0].LocationName)
}

func TestReserveSkipsStockAlreadyAtDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dept, err := f.svc.FindOrCreateLocation(ctx, f.db, "Sales", model.UsageInternal, f.stock, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, dept.ID, dec("3")))
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("1")))

	tr := f.transfer(t, model.PickingInternal, dept, "2")
	require.NoError(t, f.svc.Confirm(ctx, f.db, tr.ID))
	assert.ErrorIs(t, f.svc.Reserve(ctx, f.db, tr.ID), apperr.ErrInsufficientStock)
}

func TestAvailableForSkipsDestinationStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dept, err := f.svc.FindOrCreateLocation(ctx, f.db, "Maintenance", model.UsageInternal, f.stock, model.DefaultCompanyID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, f.stock.ID, dec("1")))
	require.NoError(t, f.svc.AddStock(ctx, f.db, f.product, dept.ID, dec("2")))

	avail, err := f.svc.Available(ctx, f.db, f.product, f.stock.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", avail.String())

	avail, err = f.svc.AvailableFor(ctx, f.db, f.product, f.stock.ID, dept.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", avail.String())

	out, err := f.svc.FindOrCreateLocation(ctx, f.db, "Customers", model.UsageInventory, nil, model.DefaultCompanyID)
	require.NoError(t, err)
	avail, err = f.svc.AvailableFor(ctx, f.db, f.product, f.stock.ID, out.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", avail.String())
}
