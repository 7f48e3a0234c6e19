package kafka

import "time"

const (
	TopicAccountCreated = `tienda.account-created`
	TopicOrderPlaced    = `tienda.order-placed`
)

// Representation of the events we publish to kafka

type AccountCreatedEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // Timestamp of creation
	UpdatedAt time.Time `json:"updated_at"` // Timestamp of last update
}

type OrderPlacedEvent struct {
	OrderId   string    `json:"order_id"`
	ProductId string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
