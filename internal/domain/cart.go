package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart belongs to exactly one identity: a registered user or an anonymous session key.
type Cart struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *int64     `gorm:"uniqueIndex" json:"user_id,omitempty"`
	SessionKey *string    `gorm:"size:64;uniqueIndex;check:chk_shop_cart_owner,(user_id IS NULL) <> (session_key IS NULL)" json:"session_key,omitempty"`
	Items      []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (Cart) TableName() string {
	return "shop_cart"
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	hasUser := c.UserID != nil
	hasSession := c.SessionKey != nil && *c.SessionKey != ""
	if hasUser == hasSession {
		return ErrCartOwner
	}
	return nil
}

// TotalItems sums quantities over the loaded line items
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums price x quantity over the loaded line items. Items must carry their Product.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		total = total.Add(c.Items[i].LineTotal())
	}
	return total
}

// CartItem is one (product, quantity) line. Unique per (cart, product).
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"not null;uniqueIndex:idx_shop_cart_item_cart_product" json:"cart_id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_shop_cart_item_cart_product;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int       `gorm:"not null;check:chk_shop_cart_item_quantity,quantity > 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (CartItem) TableName() string {
	return "shop_cart_item"
}

func (i *CartItem) LineTotal() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
