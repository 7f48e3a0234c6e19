package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tienda-service/internal/cart"
)

var (
	// ErrEmptyCart reports a checkout attempted with no cart entries. Nothing
	// is written in that case.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInsufficientStock reports a requested quantity above the available
	// stock. The wrapping error names the failing product.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductNotFound reports a cart entry whose product no longer exists.
	ErrProductNotFound = errors.New("product not found")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// CreateOrder commits a cart to an order in a single transaction: the unit
// price of every product is captured, stock is decremented with a conditional
// update so it can never go negative, then the order header and its lines are
// written. Any failure rolls the whole sequence back. When clearCart is set
// the user's active cart is marked ordered inside the same transaction.
func (c *Conf) CreateOrder(ctx context.Context, orderID, userID string, items []cart.CartItem, clearCart bool) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyCart
	}

	order := Order{
		ID:     orderID,
		UserID: userID,
		Status: StatusPlaced,
	}

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			queryPrice := `
				SELECT price
				FROM products
				WHERE id = $1
				FOR UPDATE
			`
			var unitPrice int64
			err := tx.QueryRowContext(ctx, queryPrice, item.ProductID).Scan(&unitPrice)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("product %s: %w", item.ProductID, ErrProductNotFound)
				}
				return fmt.Errorf("failed to query product price: %w", err)
			}

			// Conditional decrement: the WHERE clause is what keeps stock
			// from ever going negative under concurrent checkouts.
			queryDecrement := `
				UPDATE products
				SET stock = stock - $1, updated_at = NOW()
				WHERE id = $2 AND stock >= $1
			`
			res, err := tx.ExecContext(ctx, queryDecrement, item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("failed to decrement stock: %w", err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check decremented rows: %w", err)
			}
			if rows == 0 {
				return fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
			}

			order.Lines = append(order.Lines, OrderLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: unitPrice,
			})
			order.TotalPrice += int64(item.Quantity) * unitPrice
		}

		queryOrder := `
			INSERT INTO orders (id, user_id, total_price, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, queryOrder, order.ID, order.UserID,
			order.TotalPrice, order.Status).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryLine := `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`
		for _, line := range order.Lines {
			_, err := tx.ExecContext(ctx, queryLine, order.ID, line.ProductID, line.Quantity, line.UnitPrice)
			if err != nil {
				return fmt.Errorf("failed to insert order line: %w", err)
			}
		}

		if clearCart {
			queryClearCart := `
				UPDATE cart
				SET status = 'ordered', updated_at = NOW()
				WHERE user_id = $1 AND status = 'active'
			`
			if _, err := tx.ExecContext(ctx, queryClearCart, userID); err != nil {
				return fmt.Errorf("failed to clear cart: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return order, nil
}

// ListOrdersByUser returns the user's order history, newest first, with the
// lines of every order.
func (c *Conf) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	query := `
		SELECT o.id, o.user_id, o.total_price, o.status, o.created_at, o.updated_at,
		       oi.product_id, oi.quantity, oi.unit_price
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, oi.id
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows, false)
}

// ListAllOrders returns every order with the owning user's login name, for
// the admin view.
func (c *Conf) ListAllOrders(ctx context.Context) ([]Order, error) {
	query := `
		SELECT o.id, o.user_id, u.login_name, o.total_price, o.status, o.created_at, o.updated_at,
		       oi.product_id, oi.quantity, oi.unit_price
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN order_items oi ON oi.order_id = o.id
		ORDER BY o.created_at DESC, oi.id
	`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows, true)
}

func scanOrders(rows *sql.Rows, withLoginName bool) ([]Order, error) {
	var list []Order
	index := map[string]int{}

	for rows.Next() {
		var o Order
		var line OrderLine
		var err error
		if withLoginName {
			err = rows.Scan(&o.ID, &o.UserID, &o.LoginName, &o.TotalPrice, &o.Status,
				&o.CreatedAt, &o.UpdatedAt, &line.ProductID, &line.Quantity, &line.UnitPrice)
		} else {
			err = rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status,
				&o.CreatedAt, &o.UpdatedAt, &line.ProductID, &line.Quantity, &line.UnitPrice)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		i, ok := index[o.ID]
		if !ok {
			index[o.ID] = len(list)
			o.Lines = []OrderLine{line}
			list = append(list, o)
			continue
		}
		list[i].Lines = append(list[i].Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return list, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
