package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

// NewTransfer describes a transfer to create.
type NewTransfer struct {
	PickingTypeID    int64
	SourceLocationID int64
	DestLocationID   int64
	Origin           string
	RequestID        int64
	CreatedBy        int64
	Note             string
}

// NewMove describes one product line of a transfer.
type NewMove struct {
	ProductID     int64
	Quantity      decimal.Decimal
	UoM           string
	RequestLineID int64
}

// CreateTransfer creates a draft transfer named from its picking type's
// sequence.
func (s *Service) CreateTransfer(ctx context.Context, q db.Querier, nt NewTransfer) (*model.Transfer, error) {
	if nt.SourceLocationID == nt.DestLocationID {
		return nil, apperr.Validation("cannot transfer to the same location")
	}

	pt, err := s.getPickingTypeByID(ctx, q, nt.PickingTypeID)
	if err != nil {
		return nil, err
	}
	if pt == nil {
		return nil, apperr.Configuration("picking type %d not found", nt.PickingTypeID)
	}

	name, err := s.seq.Next(ctx, q, pt.SequenceCode)
	if err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO transfers (name, picking_type_id, source_location_id, dest_location_id,
		                        origin, request_id, note, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, pt.ID, nt.SourceLocationID, nt.DestLocationID,
		nt.Origin, nullID(nt.RequestID), nt.Note, nullID(nt.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transfer: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting transfer id: %w", err)
	}

	s.log.Debug("transfer created", zap.Int64("transfer_id", id), zap.String("name", name))
	return s.GetTransfer(ctx, q, id)
}

// AddMove appends a move to a draft transfer.
func (s *Service) AddMove(ctx context.Context, q db.Querier, transferID int64, m NewMove) (*model.Move, error) {
	t, err := s.mustTransfer(ctx, q, transferID)
	if err != nil {
		return nil, err
	}
	if t.State != model.TransferDraft {
		return nil, apperr.Validation("transfer %s is %s, moves can only be added to drafts", t.Name, t.State)
	}
	if !m.Quantity.IsPositive() {
		return nil, apperr.Validation("move quantity must be positive")
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO moves (transfer_id, product_id, quantity, uom, request_line_id) VALUES (?, ?, ?, ?, ?)`,
		transferID, m.ProductID, m.Quantity.String(), m.UoM, nullID(m.RequestLineID),
	)
	if err != nil {
		return nil, fmt.Errorf("adding move: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting move id: %w", err)
	}

	return &model.Move{
		ID:            id,
		TransferID:    transferID,
		ProductID:     m.ProductID,
		Quantity:      m.Quantity,
		UoM:           m.UoM,
		RequestLineID: nullID(m.RequestLineID),
	}, nil
}

// Confirm moves a draft transfer to confirmed.
func (s *Service) Confirm(ctx context.Context, q db.Querier, id int64) error {
	t, err := s.mustTransfer(ctx, q, id)
	if err != nil {
		return err
	}
	if t.State != model.TransferDraft {
		return apperr.Validation("transfer %s is %s, only drafts can be confirmed", t.Name, t.State)
	}
	if len(t.Moves) == 0 {
		return apperr.Validation("transfer %s has no moves", t.Name)
	}
	return setTransferState(ctx, q, id, model.TransferConfirmed)
}

type reservation struct {
	moveID     int64
	productID  int64
	locationID int64
	quantity   decimal.Decimal
}

type quantKey struct {
	productID, locationID int64
}

// Reserve reserves stock for every move of a confirmed transfer and
// records it as move lines. Either every move is fully reserved or
// nothing changes.
func (s *Service) Reserve(ctx context.Context, q db.Querier, id int64) error {
	t, err := s.mustTransfer(ctx, q, id)
	if err != nil {
		return err
	}
	switch t.State {
	case model.TransferAssigned:
		return nil
	case model.TransferConfirmed:
	default:
		return apperr.Validation("transfer %s is %s, only confirmed transfers can be reserved", t.Name, t.State)
	}

	src, err := s.GetLocation(ctx, q, t.SourceLocationID)
	if err != nil {
		return err
	}
	if src == nil {
		return apperr.NotFound("source location %d not found", t.SourceLocationID)
	}

	// Stock already sitting in the destination does not count when the
	// destination lies inside the source tree.
	excluded, err := s.excludedLocations(ctx, q, src.ID, t.DestLocationID)
	if err != nil {
		return err
	}

	// Plan everything before writing so a shortfall on a later move leaves
	// earlier moves untouched.
	var plan []reservation
	planned := map[quantKey]decimal.Decimal{}
	for _, m := range t.Moves {
		if src.Usage != model.UsageInternal {
			plan = append(plan, reservation{m.ID, m.ProductID, src.ID, m.Quantity})
			continue
		}

		quants, err := subtreeQuants(ctx, q, m.ProductID, src.ID)
		if err != nil {
			return err
		}

		need := m.Quantity
		for _, qt := range quants {
			if !need.IsPositive() {
				break
			}
			if excluded[qt.LocationID] {
				continue
			}
			key := quantKey{m.ProductID, qt.LocationID}
			avail := free(qt).Sub(planned[key])
			if !avail.IsPositive() {
				continue
			}
			take := decimal.Min(avail, need)
			planned[key] = planned[key].Add(take)
			plan = append(plan, reservation{m.ID, m.ProductID, qt.LocationID, take})
			need = need.Sub(take)
		}
		if need.IsPositive() {
			return apperr.InsufficientStock("not enough stock of product %d in %s: missing %s",
				m.ProductID, src.FullName, need)
		}
	}

	for _, r := range plan {
		_, err := q.ExecContext(ctx,
			`INSERT INTO move_lines (move_id, product_id, source_location_id, dest_location_id, quantity)
			 VALUES (?, ?, ?, ?, ?)`,
			r.moveID, r.productID, r.locationID, t.DestLocationID, r.quantity.String(),
		)
		if err != nil {
			return fmt.Errorf("creating move line: %w", err)
		}
	}
	for key, qty := range planned {
		if err := adjustQuant(ctx, q, key.productID, key.locationID, decimal.Zero, qty); err != nil {
			return err
		}
	}

	return setTransferState(ctx, q, id, model.TransferAssigned)
}

func (s *Service) excludedLocations(ctx context.Context, q db.Querier, srcID, destID int64) (map[int64]bool, error) {
	srcTree, err := s.ChildLocations(ctx, q, srcID)
	if err != nil {
		return nil, err
	}
	inside := false
	for _, id := range srcTree {
		if id == destID && id != srcID {
			inside = true
			break
		}
	}
	if !inside {
		return nil, nil
	}

	destTree, err := s.ChildLocations(ctx, q, destID)
	if err != nil {
		return nil, err
	}
	excluded := make(map[int64]bool, len(destTree))
	for _, id := range destTree {
		excluded[id] = true
	}
	return excluded, nil
}

// Validate delivers a reserved transfer: move lines are applied to the
// quants, the transfer is marked done and the validated hooks run.
// Draft and confirmed transfers are confirmed and reserved first.
func (s *Service) Validate(ctx context.Context, q db.Querier, id, userID int64) (*model.Transfer, error) {
	t, err := s.mustTransfer(ctx, q, id)
	if err != nil {
		return nil, err
	}

	switch t.State {
	case model.TransferDraft:
		if err := s.Confirm(ctx, q, id); err != nil {
			return nil, err
		}
		fallthrough
	case model.TransferConfirmed:
		if err := s.Reserve(ctx, q, id); err != nil {
			return nil, err
		}
	case model.TransferAssigned:
	default:
		return nil, apperr.Validation("transfer %s is %s and cannot be validated", t.Name, t.State)
	}

	lines, err := s.MoveLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	usage := map[int64]string{}
	for _, ml := range lines {
		srcUsage, err := s.locationUsage(ctx, q, usage, ml.SourceLocationID)
		if err != nil {
			return nil, err
		}
		dstUsage, err := s.locationUsage(ctx, q, usage, ml.DestLocationID)
		if err != nil {
			return nil, err
		}

		if srcUsage == model.UsageInternal {
			if err := adjustQuant(ctx, q, ml.ProductID, ml.SourceLocationID, ml.Quantity.Neg(), ml.Quantity.Neg()); err != nil {
				return nil, err
			}
		}
		if dstUsage == model.UsageInternal {
			if err := adjustQuant(ctx, q, ml.ProductID, ml.DestLocationID, ml.Quantity, decimal.Zero); err != nil {
				return nil, err
			}
		}
	}

	_, err = q.ExecContext(ctx,
		`UPDATE transfers SET state = ?, validated_by = ?, done_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.TransferDone, nullID(userID), id,
	)
	if err != nil {
		return nil, fmt.Errorf("marking transfer done: %w", err)
	}

	t, err = s.GetTransfer(ctx, q, id)
	if err != nil {
		return nil, err
	}
	for _, h := range s.hooks {
		if err := h(ctx, q, t, userID); err != nil {
			return nil, fmt.Errorf("after validating %s: %w", t.Name, err)
		}
	}

	s.log.Info("transfer validated",
		zap.Int64("transfer_id", id),
		zap.String("name", t.Name),
		zap.Int64("user_id", userID))
	return t, nil
}

func (s *Service) locationUsage(ctx context.Context, q db.Querier, cache map[int64]string, id int64) (string, error) {
	if u, ok := cache[id]; ok {
		return u, nil
	}
	loc, err := s.GetLocation(ctx, q, id)
	if err != nil {
		return "", err
	}
	if loc == nil {
		return "", apperr.NotFound("location %d not found", id)
	}
	cache[id] = loc.Usage
	return loc.Usage, nil
}

// Cancel cancels a transfer that is not done, releasing its reservations.
// Cancelling a cancelled transfer is a no-op.
func (s *Service) Cancel(ctx context.Context, q db.Querier, id int64) error {
	t, err := s.mustTransfer(ctx, q, id)
	if err != nil {
		return err
	}
	switch t.State {
	case model.TransferCancelled:
		return nil
	case model.TransferDone:
		return apperr.Validation("transfer %s is done and cannot be cancelled", t.Name)
	}

	if err := s.unreserve(ctx, q, id); err != nil {
		return err
	}
	if err := setTransferState(ctx, q, id, model.TransferCancelled); err != nil {
		return err
	}

	s.log.Info("transfer cancelled", zap.Int64("transfer_id", id), zap.String("name", t.Name))
	return nil
}

// Delete removes a transfer that is not done, releasing its reservations.
func (s *Service) Delete(ctx context.Context, q db.Querier, id int64) error {
	t, err := s.GetTransfer(ctx, q, id)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	if t.State == model.TransferDone {
		return apperr.Validation("transfer %s is done and cannot be deleted", t.Name)
	}

	if err := s.unreserve(ctx, q, id); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM transfers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting transfer: %w", err)
	}

	s.log.Debug("transfer deleted", zap.Int64("transfer_id", id), zap.String("name", t.Name))
	return nil
}

func (s *Service) unreserve(ctx context.Context, q db.Querier, id int64) error {
	lines, err := s.MoveLines(ctx, q, id)
	if err != nil {
		return err
	}
	usage := map[int64]string{}
	for _, ml := range lines {
		u, err := s.locationUsage(ctx, q, usage, ml.SourceLocationID)
		if err != nil {
			return err
		}
		if u != model.UsageInternal {
			continue
		}
		if err := adjustQuant(ctx, q, ml.ProductID, ml.SourceLocationID, decimal.Zero, ml.Quantity.Neg()); err != nil {
			return err
		}
	}

	_, err = q.ExecContext(ctx,
		`DELETE FROM move_lines WHERE move_id IN (SELECT id FROM moves WHERE transfer_id = ?)`, id,
	)
	if err != nil {
		return fmt.Errorf("releasing reservation: %w", err)
	}
	return nil
}

func setTransferState(ctx context.Context, q db.Querier, id int64, state string) error {
	_, err := q.ExecContext(ctx, `UPDATE transfers SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("setting transfer state: %w", err)
	}
	return nil
}

func (s *Service) mustTransfer(ctx context.Context, q db.Querier, id int64) (*model.Transfer, error) {
	t, err := s.GetTransfer(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("transfer %d not found", id)
	}
	return t, nil
}

const transferColumns = `t.id, t.name, t.picking_type_id, t.source_location_id, t.dest_location_id,
	t.state, t.origin, t.request_id, t.note, t.created_by, t.validated_by, t.created_at, t.done_at`

func scanTransfer(row interface{ Scan(...any) error }) (*model.Transfer, error) {
	t := &model.Transfer{}
	err := row.Scan(&t.ID, &t.Name, &t.PickingTypeID, &t.SourceLocationID, &t.DestLocationID,
		&t.State, &t.Origin, &t.RequestID, &t.Note, &t.CreatedBy, &t.ValidatedBy, &t.CreatedAt, &t.DoneAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTransfer returns a transfer with its moves, or nil if it does not
// exist.
func (s *Service) GetTransfer(ctx context.Context, q db.Querier, id int64) (*model.Transfer, error) {
	t, err := scanTransfer(q.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers t WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer: %w", err)
	}

	t.Moves, err = s.moves(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) moves(ctx context.Context, q db.Querier, transferID int64) ([]model.Move, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, transfer_id, product_id, quantity, uom, request_line_id
		 FROM moves WHERE transfer_id = ? ORDER BY id`, transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing moves: %w", err)
	}
	defer rows.Close()

	var moves []model.Move
	for rows.Next() {
		var m model.Move
		if err := rows.Scan(&m.ID, &m.TransferID, &m.ProductID, &m.Quantity, &m.UoM, &m.RequestLineID); err != nil {
			return nil, fmt.Errorf("scanning move: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// MoveLines returns the reserved or delivered lines of a transfer.
func (s *Service) MoveLines(ctx context.Context, q db.Querier, transferID int64) ([]model.MoveLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ml.id, ml.move_id, ml.product_id, ml.source_location_id, ml.dest_location_id, ml.quantity
		 FROM move_lines ml JOIN moves m ON m.id = ml.move_id
		 WHERE m.transfer_id = ? ORDER BY ml.id`, transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing move lines: %w", err)
	}
	defer rows.Close()

	var lines []model.MoveLine
	for rows.Next() {
		var ml model.MoveLine
		if err := rows.Scan(&ml.ID, &ml.MoveID, &ml.ProductID, &ml.SourceLocationID, &ml.DestLocationID, &ml.Quantity); err != nil {
			return nil, fmt.Errorf("scanning move line: %w", err)
		}
		lines = append(lines, ml)
	}
	return lines, rows.Err()
}

// TransferFilter narrows ListTransfers. Zero values match everything.
type TransferFilter struct {
	State         string
	RequestID     int64
	PickingTypeID int64
}

// ListTransfers returns transfers, newest first, without their moves.
func (s *Service) ListTransfers(ctx context.Context, q db.Querier, f TransferFilter) ([]model.Transfer, error) {
	query := sq.Select(transferColumns).From("transfers t").OrderBy("t.id DESC")
	if f.State != "" {
		query = query.Where(sq.Eq{"t.state": f.State})
	}
	if f.RequestID > 0 {
		query = query.Where(sq.Eq{"t.request_id": f.RequestID})
	}
	if f.PickingTypeID > 0 {
		query = query.Where(sq.Eq{"t.picking_type_id": f.PickingTypeID})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building transfer query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// TransfersDone reports whether every listed transfer exists and is done.
func (s *Service) TransfersDone(ctx context.Context, q db.Querier, ids []int64) (bool, error) {
	for _, id := range ids {
		t, err := s.GetTransfer(ctx, q, id)
		if err != nil {
			return false, err
		}
		if t == nil || t.State != model.TransferDone {
			return false, nil
		}
	}
	return true, nil
}
