package orders

import "time"

const (
	StatusPlaced = "placed"
)

// Order represents an order entity in the database
type Order struct {
	ID         string      `json:"id"`                   // UUID of the order
	UserID     string      `json:"user_id"`              // UUID of the user placing the order
	LoginName  string      `json:"login_name,omitempty"` // Filled via JOIN in the admin listing
	Status     string      `json:"status"`
	TotalPrice int64       `json:"total_price"` // Total price of the order in cents
	Lines      []OrderLine `json:"lines"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// OrderLine captures one product at the unit price it had when the order
// was committed.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"` // Price per unit in cents at purchase time
}
