package domain

import "time"

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// Review is a single user's rating of a product. One per (product, user).
type Review struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_catalog_review_product_user" json:"product_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_catalog_review_product_user;index" json:"user_id,string"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Rating    int       `gorm:"not null;check:chk_catalog_review_rating,rating >= 1 AND rating <= 5" json:"rating"`
	Title     string    `gorm:"size:200" json:"title"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Review) TableName() string {
	return "catalog_review"
}
