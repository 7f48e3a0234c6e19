package products

import "time"

// Product prices are stored in the smallest currency unit (cents).
type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Price          int64     `json:"price"`
	WholesalePrice *int64    `json:"wholesale_price,omitempty"`
	RetailPrice    *int64    `json:"retail_price,omitempty"`
	Stock          int       `json:"stock"`
	Image          string    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NewProduct struct {
	Name           string `json:"name" validate:"required"`
	Price          int64  `json:"price" validate:"required,min=1"`
	WholesalePrice *int64 `json:"wholesale_price" validate:"omitempty,min=0"`
	RetailPrice    *int64 `json:"retail_price" validate:"omitempty,min=0"`
	Stock          int    `json:"stock" validate:"min=0"`
	Image          string `json:"image"`
}
