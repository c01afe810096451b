package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

const productColumns = `id, name, uom, issue_kind, storable, image_mime, created_at`

func scanProduct(row scanner) (*model.Product, error) {
	p := &model.Product{}
	var imageMime sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.UoM, &p.IssueKind, &p.Storable, &imageMime, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ImageMime = imageMime.String
	return p, nil
}

// CreateProduct creates a product.
func CreateProduct(ctx context.Context, q db.Querier, p model.Product) (*model.Product, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO products (name, uom, issue_kind, storable) VALUES (?, ?, ?, ?)`,
		p.Name, p.UoM, p.IssueKind, p.Storable,
	)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting product id: %w", err)
	}

	return GetProduct(ctx, q, id)
}

// GetProduct returns a product by ID.
func GetProduct(ctx context.Context, q db.Querier, id int64) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	IssueKind string
	Name      string
}

// ListProducts returns products ordered by name.
func ListProducts(ctx context.Context, q db.Querier, f ProductFilter) ([]model.Product, error) {
	query := sq.Select(productColumns).From("products").OrderBy("name")
	if f.IssueKind != "" {
		query = query.Where(sq.Eq{"issue_kind": f.IssueKind})
	}
	if f.Name != "" {
		query = query.Where(sq.Like{"name": "%" + f.Name + "%"})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building product query: %w", err)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct updates a product's metadata.
func UpdateProduct(ctx context.Context, q db.Querier, p model.Product) error {
	_, err := q.ExecContext(ctx,
		`UPDATE products SET name = ?, uom = ?, issue_kind = ?, storable = ? WHERE id = ?`,
		p.Name, p.UoM, p.IssueKind, p.Storable, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}
	return nil
}

// SetProductImage stores a product's image.
func SetProductImage(ctx context.Context, q db.Querier, id int64, image []byte, mime string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE products SET image = ?, image_mime = ? WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting product image: %w", err)
	}
	return nil
}

// GetProductImage returns a product's image and its MIME type.
func GetProductImage(ctx context.Context, q db.Querier, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM products WHERE id = ?`, id,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting product image: %w", err)
	}
	return image, mime.String, nil
}
