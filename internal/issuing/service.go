// Package issuing runs department item requests: it resolves stock
// locations, checks availability, builds warehouse transfers for submitted
// requests and reconciles requests, consumption logs and asset cards when
// those transfers are validated.
package issuing

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/sequence"
	"github.com/erazemk/zahtevki/internal/warehouse"
)

// Service runs request actions. Each action is one database transaction.
type Service struct {
	db  *sql.DB
	wh  *warehouse.Service
	seq sequence.Sequencer
	log *zap.Logger
}

// New returns a Service and registers its reconciler on the warehouse.
func New(database *sql.DB, wh *warehouse.Service, seq sequence.Sequencer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{db: database, wh: wh, seq: seq, log: log.Named("issuing")}
	wh.OnValidated(s.reconcile)
	return s
}

// Warehouse returns the warehouse service the requests are fulfilled from.
func (s *Service) Warehouse() *warehouse.Service {
	return s.wh
}

func (s *Service) tx(ctx context.Context, fn func(q db.Querier) error) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(tx)
	})
}
