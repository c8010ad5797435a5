package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products for browsing
type Category struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex" json:"name"`
	Slug        string    `gorm:"size:100;uniqueIndex" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Category) TableName() string {
	return "catalog_category"
}

// Product is a catalog item. Rating is derived from reviews and never edited directly.
type Product struct {
	ID               int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID       int64               `gorm:"index;not null" json:"category_id"`
	Category         *Category           `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name             string              `gorm:"size:200;index" json:"name"`
	Slug             string              `gorm:"size:200;uniqueIndex" json:"slug"`
	Description      string              `gorm:"type:text" json:"description"`
	ShortDescription string              `gorm:"size:300" json:"short_description"`
	Price            decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"price"`
	OldPrice         decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"old_price"`
	Stock            int                 `gorm:"not null;check:chk_catalog_product_stock,stock >= 0" json:"stock"`
	IsActive         bool                `gorm:"index" json:"is_active"`
	Featured         bool                `gorm:"index" json:"featured"`
	Rating           decimal.Decimal     `gorm:"type:decimal(2,1)" json:"rating"`
	Image            string              `gorm:"size:1024" json:"image"`     // uploaded file path under media dir
	ImageURL         string              `gorm:"size:1024" json:"image_url"` // external image
	Images           []ProductImage      `gorm:"foreignKey:ProductID" json:"images,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "catalog_product"
}

// ProductImage is one extra picture in a product gallery
type ProductImage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"index;not null" json:"product_id"`
	Image     string    `gorm:"size:1024;not null" json:"image"` // file path under media dir
	AltText   string    `gorm:"size:200" json:"alt_text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName Specify table name
func (ProductImage) TableName() string {
	return "catalog_product_image"
}

// InStock reports whether at least one unit is available
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// DiscountPercent returns the saving against OldPrice as a whole percentage, 0 when not discounted
func (p *Product) DiscountPercent() int {
	if !p.OldPrice.Valid || !p.OldPrice.Decimal.GreaterThan(p.Price) || p.OldPrice.Decimal.IsZero() {
		return 0
	}
	saved := p.OldPrice.Decimal.Sub(p.Price).Div(p.OldPrice.Decimal).Mul(decimal.NewFromInt(100))
	return int(saved.Round(0).IntPart())
}

// DisplayImage picks the uploaded image over the external url
func (p *Product) DisplayImage() string {
	if p.Image != "" {
		return "/media/" + p.Image
	}
	return p.ImageURL
}
