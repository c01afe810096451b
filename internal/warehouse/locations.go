package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

const locationColumns = `id, name, full_name, usage, parent_id, company_id`

func scanLocation(row interface{ Scan(...any) error }) (*model.Location, error) {
	l := &model.Location{}
	if err := row.Scan(&l.ID, &l.Name, &l.FullName, &l.Usage, &l.ParentID, &l.CompanyID); err != nil {
		return nil, err
	}
	return l, nil
}

// GetLocation returns a location by ID, or nil if it does not exist.
func (s *Service) GetLocation(ctx context.Context, q db.Querier, id int64) (*model.Location, error) {
	l, err := scanLocation(q.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

// FindLocation returns the location with the given name and usage under
// parent (nil for a root location), or nil if there is none.
func (s *Service) FindLocation(ctx context.Context, q db.Querier, name, usage string, parent *model.Location, companyID int64) (*model.Location, error) {
	query := sq.Select(locationColumns).From("locations").
		Where(sq.Eq{"name": name, "usage": usage, "company_id": companyID}).
		OrderBy("id").Limit(1)
	if parent != nil {
		query = query.Where(sq.Eq{"parent_id": parent.ID})
	} else {
		query = query.Where(sq.Eq{"parent_id": nil})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building location query: %w", err)
	}

	l, err := scanLocation(q.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding location: %w", err)
	}
	return l, nil
}

// FindOrCreateLocation returns the named location under parent, creating
// it if absent.
func (s *Service) FindOrCreateLocation(ctx context.Context, q db.Querier, name, usage string, parent *model.Location, companyID int64) (*model.Location, error) {
	l, err := s.FindLocation(ctx, q, name, usage, parent, companyID)
	if err != nil || l != nil {
		return l, err
	}
	return s.createLocation(ctx, q, name, usage, parent, companyID)
}

func (s *Service) createLocation(ctx context.Context, q db.Querier, name, usage string, parent *model.Location, companyID int64) (*model.Location, error) {
	switch usage {
	case model.UsageInternal, model.UsageInventory, model.UsageView:
	default:
		return nil, apperr.Validation("unknown location usage %q", usage)
	}

	fullName := name
	var parentID any
	if parent != nil {
		fullName = parent.FullName + "/" + name
		parentID = parent.ID
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO locations (name, full_name, usage, parent_id, company_id) VALUES (?, ?, ?, ?, ?)`,
		name, fullName, usage, parentID, companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}

	s.log.Debug("created location", zap.String("full_name", fullName), zap.String("usage", usage))
	return s.GetLocation(ctx, q, id)
}

// ListLocations returns all locations ordered by full name.
func (s *Service) ListLocations(ctx context.Context, q db.Querier, usage string) ([]model.Location, error) {
	query := sq.Select(locationColumns).From("locations").OrderBy("full_name")
	if usage != "" {
		query = query.Where(sq.Eq{"usage": usage})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building location query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}

// ChildLocations returns the IDs of the location and all its descendants.
func (s *Service) ChildLocations(ctx context.Context, q db.Querier, id int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`WITH RECURSIVE subtree(id) AS (
		     SELECT id FROM locations WHERE id = ?
		     UNION
		     SELECT l.id FROM locations l JOIN subtree s ON l.parent_id = s.id
		 )
		 SELECT id FROM subtree ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing child locations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var child int64
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("scanning child location: %w", err)
		}
		ids = append(ids, child)
	}
	return ids, rows.Err()
}
