package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound reports an operation targeting a product id with no matching row.
var ErrNotFound = errors.New("product not found")

// Service is the catalog behaviour the handlers depend on.
type Service interface {
	InsertProduct(ctx context.Context, newProduct NewProduct) (Product, error)
	GetProductByID(ctx context.Context, productID string) (Product, error)
	UpdateProductInDB(ctx context.Context, productID string, product Product) (Product, error)
	DeleteProductFromDB(ctx context.Context, productID string) error
	ListProductsFromDB(ctx context.Context, nameFilter string, limit, offset int, sort, order string) ([]Product, error)
}

// Conf wraps the Service interface so handlers can embed it while tests
// substitute their own implementation.
type Conf struct {
	Service
}

type Conn struct {
	db *sql.DB
}

func NewConn(db *sql.DB) (*Conn, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conn{db: db}, nil
}

func (c *Conn) InsertProduct(ctx context.Context, newProduct NewProduct) (Product, error) {
	product := Product{
		ID:             uuid.NewString(),
		Name:           newProduct.Name,
		Price:          newProduct.Price,
		WholesalePrice: newProduct.WholesalePrice,
		RetailPrice:    newProduct.RetailPrice,
		Stock:          newProduct.Stock,
		Image:          newProduct.Image,
	}

	query := `
		INSERT INTO products (id, name, price, wholesale_price, retail_price, stock, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := c.db.QueryRowContext(ctx, query, product.ID, product.Name, product.Price,
		product.WholesalePrice, product.RetailPrice, product.Stock, product.Image).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("inserting product: %w", err)
	}
	return product, nil
}

func (c *Conn) GetProductByID(ctx context.Context, productID string) (Product, error) {
	query := `
		SELECT id, name, price, wholesale_price, retail_price, stock, image, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var product Product
	err := c.db.QueryRowContext(ctx, query, productID).Scan(&product.ID, &product.Name,
		&product.Price, &product.WholesalePrice, &product.RetailPrice, &product.Stock,
		&product.Image, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("querying product: %w", err)
	}
	return product, nil
}

func (c *Conn) UpdateProductInDB(ctx context.Context, productID string, product Product) (Product, error) {
	query := `
		UPDATE products
		SET name = $1, price = $2, wholesale_price = $3, retail_price = $4, stock = $5, image = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING created_at, updated_at
	`
	product.ID = productID
	err := c.db.QueryRowContext(ctx, query, product.Name, product.Price,
		product.WholesalePrice, product.RetailPrice, product.Stock, product.Image,
		productID).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("updating product: %w", err)
	}
	return product, nil
}

func (c *Conn) DeleteProductFromDB(ctx context.Context, productID string) error {
	query := `DELETE FROM products WHERE id = $1`
	res, err := c.db.ExecContext(ctx, query, productID)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// sortColumns whitelists the columns a caller may sort the listing by. The
// sort expression can not be a bind parameter, so anything else falls back
// to name.
var sortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"stock":      "stock",
	"created_at": "created_at",
}

func (c *Conn) ListProductsFromDB(ctx context.Context, nameFilter string, limit, offset int, sort, order string) ([]Product, error) {
	sortCol, ok := sortColumns[sort]
	if !ok {
		sortCol = "name"
	}
	if order != "desc" {
		order = "asc"
	}

	query := fmt.Sprintf(`
		SELECT id, name, price, wholesale_price, retail_price, stock, image, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR name ILIKE '%%' || $1 || '%%')
		ORDER BY %s %s
		LIMIT $2 OFFSET $3
	`, sortCol, order)

	rows, err := c.db.QueryContext(ctx, query, nameFilter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Price,
			&product.WholesalePrice, &product.RetailPrice, &product.Stock,
			&product.Image, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		list = append(list, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return list, nil
}
