// Package sequence hands out human-readable references such as REQ/00001.
//
// Sequence definitions (prefix and padding) live in the sequences table.
// The counter itself is kept either in the same table or in Redis.
package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/db"
)

// Request is the code of the request reference sequence.
const Request = "request"

// Sequencer returns the next reference for a sequence code.
type Sequencer interface {
	Next(ctx context.Context, q db.Querier, code string) (string, error)
}

type definition struct {
	prefix  string
	padding int
	next    int64
}

func (d definition) format(n int64) string {
	return fmt.Sprintf("%s%0*d", d.prefix, d.padding, n)
}

// Define creates a sequence if it does not exist yet.
func Define(ctx context.Context, q db.Querier, code, prefix string, padding int) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO sequences (code, prefix, padding) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO NOTHING`,
		code, prefix, padding,
	)
	if err != nil {
		return fmt.Errorf("defining sequence %s: %w", code, err)
	}
	return nil
}

func lookup(ctx context.Context, q db.Querier, code string) (definition, error) {
	var d definition
	err := q.QueryRowContext(ctx,
		`SELECT prefix, padding, next_number FROM sequences WHERE code = ?`, code,
	).Scan(&d.prefix, &d.padding, &d.next)
	if errors.Is(err, sql.ErrNoRows) {
		return d, apperr.Configuration("no sequence defined for %q", code)
	}
	if err != nil {
		return d, fmt.Errorf("reading sequence %s: %w", code, err)
	}
	return d, nil
}

// advanceTo moves the table counter forward to next. It never moves it back.
func advanceTo(ctx context.Context, q db.Querier, code string, next int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE sequences SET next_number = MAX(next_number, ?) WHERE code = ?`, next, code,
	)
	if err != nil {
		return fmt.Errorf("advancing sequence %s: %w", code, err)
	}
	return nil
}

// Store keeps counters in the sequences table. Numbers are gapless when
// the caller's transaction commits.
type Store struct{}

// NewStore returns a table-backed sequencer.
func NewStore() *Store {
	return &Store{}
}

// Next implements Sequencer.
func (s *Store) Next(ctx context.Context, q db.Querier, code string) (string, error) {
	d, err := lookup(ctx, q, code)
	if err != nil {
		return "", err
	}

	_, err = q.ExecContext(ctx,
		`UPDATE sequences SET next_number = next_number + 1 WHERE code = ?`, code,
	)
	if err != nil {
		return "", fmt.Errorf("advancing sequence %s: %w", code, err)
	}
	return d.format(d.next), nil
}
