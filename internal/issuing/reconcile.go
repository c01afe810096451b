package issuing

import (
	"context"
	"fmt"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// reconcile runs inside the transaction that validated t. It logs
// consumables, records returnables on the employee's asset card and
// closes the request once all of its transfers are done.
func (s *Service) reconcile(ctx context.Context, q db.Querier, t *model.Transfer, validatedBy int64) error {
	if !t.RequestID.Valid {
		return nil
	}
	r, err := store.GetRequest(ctx, q, t.RequestID.Int64)
	if err != nil {
		return err
	}
	if r == nil || !linksTransfer(r, t.ID) {
		return nil
	}

	lines, err := s.wh.MoveLines(ctx, q, t.ID)
	if err != nil {
		return err
	}

	kinds := map[int64]string{}
	var card *model.AssetCard
	consumed, issued := 0, 0
	for _, ml := range lines {
		kind, ok := kinds[ml.ProductID]
		if !ok {
			p, err := store.GetProduct(ctx, q, ml.ProductID)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("product %d of transfer %s no longer exists", ml.ProductID, t.Name)
			}
			kind = p.IssueKind
			kinds[ml.ProductID] = kind
		}

		switch kind {
		case model.IssueConsumable:
			err := store.AddConsumptionLog(ctx, q, r.EmployeeID, r.DepartmentID, ml.ProductID, ml.Quantity, r.ID, t.ID)
			if err != nil {
				return err
			}
			consumed++
		case model.IssueReturnable:
			if card == nil {
				emp, err := store.GetEmployee(ctx, q, r.EmployeeID)
				if err != nil {
					return err
				}
				if emp == nil {
					return fmt.Errorf("employee %d of request %s no longer exists", r.EmployeeID, r.Name)
				}
				card, err = store.FindOrCreateAssetCard(ctx, q, emp.ID, emp.Name)
				if err != nil {
					return err
				}
			}
			_, err := store.AddAssetLine(ctx, q, store.NewAssetLine{
				CardID:           card.ID,
				ProductID:        ml.ProductID,
				Quantity:         ml.Quantity,
				RequestID:        null.Int64From(r.ID),
				TransferID:       null.Int64From(t.ID),
				IssuedLocationID: null.Int64From(ml.DestLocationID),
			})
			if err != nil {
				return err
			}
			issued++
		}
	}

	s.log.Debug("transfer reconciled",
		zap.String("request", r.Name),
		zap.String("transfer", t.Name),
		zap.Int("consumption_logs", consumed),
		zap.Int("asset_lines", issued))

	if !model.CanTransition(r.State, model.RequestDone) {
		return nil
	}
	done, err := s.wh.TransfersDone(ctx, q, r.TransferIDs())
	if err != nil || !done {
		return err
	}

	var by null.Int64
	if validatedBy > 0 {
		by = null.Int64From(validatedBy)
	}
	if err := store.SetRequestState(ctx, q, r.ID, model.RequestDone, by); err != nil {
		return err
	}
	if err := store.PostMessage(ctx, q, r.ID, validatedBy, "All transfers validated, request done."); err != nil {
		return err
	}

	s.log.Info("request fulfilled", zap.String("request", r.Name), zap.String("transfer", t.Name))
	return nil
}

func linksTransfer(r *model.Request, transferID int64) bool {
	for _, id := range r.TransferIDs() {
		if id == transferID {
			return true
		}
	}
	return false
}

// ValidateTransfer validates a warehouse transfer on behalf of a stock
// operator. Requests linked to the transfer are reconciled in the same
// transaction.
func (s *Service) ValidateTransfer(ctx context.Context, actorID int64, transferID int64) (*model.Transfer, error) {
	var t *model.Transfer
	err := s.tx(ctx, func(q db.Querier) error {
		var err error
		t, err = s.wh.Validate(ctx, q, transferID, actorID)
		return err
	})
	return t, err
}

// CancelTransfer cancels a warehouse transfer.
func (s *Service) CancelTransfer(ctx context.Context, transferID int64) (*model.Transfer, error) {
	var t *model.Transfer
	err := s.tx(ctx, func(q db.Querier) error {
		if err := s.wh.Cancel(ctx, q, transferID); err != nil {
			return err
		}
		var err error
		t, err = s.wh.GetTransfer(ctx, q, transferID)
		return err
	})
	return t, err
}
