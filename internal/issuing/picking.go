package issuing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/warehouse"
)

// TransferSpec describes the transfer built for one issue kind of a
// request.
type TransferSpec struct {
	Request     *model.Request
	Lines       []model.RequestLine
	CompanyID   int64
	Source      int64
	Dest        int64
	PickingCode string
	CreatedBy   int64
}

// BuildTransfer creates, confirms and reserves a transfer for the given
// lines. If anything fails after the transfer exists it is deleted again
// and a reservation error is returned.
func (s *Service) BuildTransfer(ctx context.Context, q db.Querier, ts TransferSpec) (*model.Transfer, error) {
	wh, err := s.defaultWarehouse(ctx, q, ts.CompanyID)
	if err != nil {
		return nil, err
	}
	pt, err := s.wh.PickingType(ctx, q, wh.ID, ts.PickingCode)
	if err != nil {
		return nil, err
	}
	if pt == nil {
		return nil, apperr.Configuration("warehouse %s has no %s picking type", wh.Code, ts.PickingCode)
	}

	t, err := s.wh.CreateTransfer(ctx, q, warehouse.NewTransfer{
		PickingTypeID:    pt.ID,
		SourceLocationID: ts.Source,
		DestLocationID:   ts.Dest,
		Origin:           ts.Request.Name,
		RequestID:        ts.Request.ID,
		CreatedBy:        ts.CreatedBy,
		Note:             ts.Request.Note,
	})
	if err != nil {
		return nil, err
	}

	if err := s.fillAndReserve(ctx, q, t.ID, ts.Lines); err != nil {
		if derr := s.wh.Delete(ctx, q, t.ID); derr != nil {
			err = errors.Join(err, derr)
		}
		s.log.Warn("reserving transfer failed",
			zap.String("request", ts.Request.Name),
			zap.String("transfer", t.Name),
			zap.Error(err))
		return nil, apperr.Reservation(err, "could not reserve stock for request %s", ts.Request.Name)
	}

	return s.wh.GetTransfer(ctx, q, t.ID)
}

func (s *Service) fillAndReserve(ctx context.Context, q db.Querier, transferID int64, lines []model.RequestLine) error {
	for _, l := range lines {
		_, err := s.wh.AddMove(ctx, q, transferID, warehouse.NewMove{
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			UoM:           l.UoM,
			RequestLineID: l.ID,
		})
		if err != nil {
			return err
		}
	}
	if err := s.wh.Confirm(ctx, q, transferID); err != nil {
		return err
	}
	return s.wh.Reserve(ctx, q, transferID)
}
