package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (Conf, error) {
	if db == nil {
		return Conf{}, fmt.Errorf("db is nil")
	}
	return Conf{db: db}, nil
}

// AddToCartDB merges quantity into the user's active cart, creating the cart
// or the line as needed. Stock is not checked here; it is only authoritative
// at checkout.
func (c *Conf) AddToCartDB(ctx context.Context, userID string, productID string, quantity int) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		// Check if the product already exists in the cart
		queryCartItem := `
			SELECT id, quantity
			FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
		`
		var cartItemID int
		var existingQuantity int

		err = tx.QueryRowContext(ctx, queryCartItem, cartID, productID).Scan(&cartItemID, &existingQuantity)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				queryAddCartItem := `
					INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
					VALUES ($1, $2, $3, NOW(), NOW())
				`
				_, err = tx.ExecContext(ctx, queryAddCartItem, cartID, productID, quantity)
				if err != nil {
					return fmt.Errorf("failed to add product to cart: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to query cart items: %w", err)
		}

		queryUpdateCartItem := `
			UPDATE cart_items
			SET quantity = $1, updated_at = NOW()
			WHERE id = $2
		`
		_, err = tx.ExecContext(ctx, queryUpdateCartItem, existingQuantity+quantity, cartItemID)
		if err != nil {
			return fmt.Errorf("failed to update cart item quantity: %w", err)
		}
		return nil
	})
}

// RemoveFromCartDB deletes the product's line from the active cart. Removing
// a product that is not in the cart is a no-op.
func (c *Conf) RemoveFromCartDB(ctx context.Context, userID string, productID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		if cartID == 0 {
			return nil
		}

		queryRemoveItem := `
			DELETE FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
		`
		_, err = tx.ExecContext(ctx, queryRemoveItem, cartID, productID)
		if err != nil {
			return fmt.Errorf("failed to remove product from cart: %w", err)
		}
		return nil
	})
}

// GetActiveCartItems returns the contents of the user's active cart. A user
// without an active cart simply has an empty cart.
func (c *Conf) GetActiveCartItems(ctx context.Context, userID string) (*CartResponse, error) {
	var items []CartItem

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartID(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		if cartID == 0 {
			return nil
		}

		queryItems := `
            SELECT ci.product_id, ci.quantity
            FROM cart_items ci
            WHERE ci.cart_id = $1
        `
		rows, err := tx.QueryContext(ctx, queryItems, cartID)
		if err != nil {
			return fmt.Errorf("failed to query cart items: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var item CartItem
			if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
				return fmt.Errorf("failed to scan cart item: %w", err)
			}
			items = append(items, item)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating cart items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CartResponse{Items: items}, nil
}

// ClearActiveCart abandons the user's active cart. Used on logout; a missing
// cart is a no-op.
func (c *Conf) ClearActiveCart(ctx context.Context, userID string) error {
	query := `
		UPDATE cart
		SET status = 'abandoned', updated_at = NOW()
		WHERE user_id = $1 AND status = 'active'
	`
	if _, err := c.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear active cart: %w", err)
	}
	return nil
}

// activeCartID locks the user's active cart row. When create is set, a
// missing cart is created; otherwise 0 is returned for a missing cart.
func activeCartID(ctx context.Context, tx *sql.Tx, userID string, create bool) (int, error) {
	var cartID int
	queryActiveCart := `
		SELECT id
		FROM cart
		WHERE user_id = $1 AND status = 'active'
		FOR UPDATE
	`
	err := tx.QueryRowContext(ctx, queryActiveCart, userID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query active cart: %w", err)
	}
	if !create {
		return 0, nil
	}

	queryCreateCart := `
		INSERT INTO cart (user_id, status, created_at, updated_at)
		VALUES ($1, 'active', NOW(), NOW())
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, queryCreateCart, userID).Scan(&cartID); err != nil {
		return 0, fmt.Errorf("failed to create new cart: %w", err)
	}
	return cartID, nil
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
		return fmt.Errorf("failed to execute withTx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
