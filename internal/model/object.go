package model

import "time"

// Object is a physical item in a user's collection. It has exactly one
// owner at any time; only the exchange executor reassigns it.
type Object struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Condition string    `json:"condition,omitempty"`
	Public    bool      `json:"public"`
	ForSale   bool      `json:"for_sale"`
	ForTrade  bool      `json:"for_trade"`
	Price     *int64    `json:"price,omitempty"`
	ImageMime string    `json:"image_mime,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ObjectAttrs holds the owner-editable fields of an object.
type ObjectAttrs struct {
	Name      string `json:"name" validate:"required,max=200"`
	Category  string `json:"category" validate:"max=100"`
	Condition string `json:"condition" validate:"max=100"`
	Public    bool   `json:"public"`
	ForSale   bool   `json:"for_sale"`
	ForTrade  bool   `json:"for_trade"`
	Price     *int64 `json:"price" validate:"omitempty,min=0"`
}
