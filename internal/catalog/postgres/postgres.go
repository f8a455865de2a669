// Package postgres implements the product catalog on PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/natusdeed/fashion-site-sub000/internal/domain"
	"github.com/natusdeed/fashion-site-sub000/pkg/database"
	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
	"github.com/natusdeed/fashion-site-sub000/pkg/slug"
	"github.com/natusdeed/fashion-site-sub000/pkg/validator"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the catalog schema migrations for database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// DBTX is the subset of *pgxpool.Pool the catalog needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const productColumns = `id, name, slug, price, original_price, is_on_sale, category, images, sizes, colors`

const (
	getByIDQuery   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getBySlugQuery = `SELECT ` + productColumns + ` FROM products WHERE slug = $1`
	listQuery      = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	upsertQuery    = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, slug = EXCLUDED.slug, price = EXCLUDED.price,
			original_price = EXCLUDED.original_price, is_on_sale = EXCLUDED.is_on_sale,
			category = EXCLUDED.category, images = EXCLUDED.images,
			sizes = EXCLUDED.sizes, colors = EXCLUDED.colors`
)

// Catalog reads products from the products table.
type Catalog struct {
	db DBTX
}

// New creates a catalog backed by db.
func New(db DBTX) *Catalog {
	return &Catalog{db: db}
}

// GetByID returns the product with id.
func (c *Catalog) GetByID(ctx context.Context, id int64) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProductByID", getByIDQuery)
	defer func() { end(err) }()

	p, err := scanProduct(c.db.QueryRow(ctx, getByIDQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// GetBySlug returns the product with slug.
func (c *Catalog) GetBySlug(ctx context.Context, slug string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProductBySlug", getBySlugQuery)
	defer func() { end(err) }()

	p, err := scanProduct(c.db.QueryRow(ctx, getBySlugQuery, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("product", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %q: %w", slug, err)
	}
	return p, nil
}

// List returns every product ordered by id.
func (c *Catalog) List(ctx context.Context) (_ []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "ListProducts", listQuery)
	defer func() { end(err) }()

	rows, err := c.db.Query(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// Upsert inserts or replaces a product. It is used to seed a fresh database.
// A missing slug is derived from the name; invalid products are rejected
// before anything is written.
func (c *Catalog) Upsert(ctx context.Context, p domain.Product) (err error) {
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Name)
	}
	if err := validator.Validate(p); err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}

	ctx, end := database.TraceQuery(ctx, "UpsertProduct", upsertQuery)
	defer func() { end(err) }()

	images, sizes, colors, err := encodeLists(p)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(ctx, upsertQuery,
		p.ID, p.Name, p.Slug, p.Price, p.OriginalPrice, p.IsOnSale, p.Category,
		images, sizes, colors,
	)
	if err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return nil
}

func encodeLists(p domain.Product) (images, sizes, colors []byte, err error) {
	if images, err = json.Marshal(nonNil(p.Images)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal images: %w", err)
	}
	if sizes, err = json.Marshal(nonNil(p.Sizes)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal sizes: %w", err)
	}
	if colors, err = json.Marshal(nonNil(p.Colors)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal colors: %w", err)
	}
	return images, sizes, colors, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p                     domain.Product
		original              decimal.NullDecimal
		images, sizes, colors []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Price,
		&original,
		&p.IsOnSale,
		&p.Category,
		&images,
		&sizes,
		&colors,
	); err != nil {
		return nil, err
	}
	if original.Valid {
		p.OriginalPrice = &original.Decimal
	}
	if err := unmarshalList(images, &p.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}
	if err := unmarshalList(sizes, &p.Sizes); err != nil {
		return nil, fmt.Errorf("unmarshal sizes: %w", err)
	}
	if err := unmarshalList(colors, &p.Colors); err != nil {
		return nil, fmt.Errorf("unmarshal colors: %w", err)
	}
	return &p, nil
}

func unmarshalList[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		*dst = []T{}
		return nil
	}
	return json.Unmarshal(raw, dst)
}
