package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/talkincode/storefront/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNoIdentity = errors.New("cart: request has neither user nor session key")

// Identity is who a cart belongs to. UserID wins when both are set.
type Identity struct {
	UserID     int64
	SessionKey string
}

func (i Identity) IsAuthenticated() bool {
	return i.UserID > 0
}

// Service implements cart resolution and line item mutation
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Resolve returns the cart bound to id, creating it on first use
func (s *Service) Resolve(ctx context.Context, id Identity) (*domain.Cart, error) {
	var (
		cond  string
		key   interface{}
		fresh domain.Cart
	)
	switch {
	case id.IsAuthenticated():
		uid := id.UserID
		cond, key = "user_id = ?", uid
		fresh.UserID = &uid
	case strings.TrimSpace(id.SessionKey) != "":
		sk := id.SessionKey
		cond, key = "session_key = ?", sk
		fresh.SessionKey = &sk
	default:
		return nil, ErrNoIdentity
	}

	db := s.db.WithContext(ctx)
	var cart domain.Cart
	err := db.Where(cond, key).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	// a concurrent request may create the same cart; the unique owner index decides
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	if err := db.Where(cond, key).First(&cart).Error; err != nil {
		return nil, fmt.Errorf("reload cart: %w", err)
	}
	zap.L().Debug("cart created",
		zap.String("namespace", "cart"),
		zap.Int64("cart_id", cart.ID),
		zap.Bool("authenticated", id.IsAuthenticated()))
	return &cart, nil
}

// ItemCount sums the quantities in id's cart without creating one
func (s *Service) ItemCount(ctx context.Context, id Identity) (int, error) {
	q := s.db.WithContext(ctx).Model(&domain.CartItem{}).
		Joins("JOIN shop_cart ON shop_cart.id = shop_cart_item.cart_id")
	switch {
	case id.IsAuthenticated():
		q = q.Where("shop_cart.user_id = ?", id.UserID)
	case strings.TrimSpace(id.SessionKey) != "":
		q = q.Where("shop_cart.session_key = ?", id.SessionKey)
	default:
		return 0, nil
	}
	var total int64
	if err := q.Select("COALESCE(SUM(shop_cart_item.quantity), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return int(total), nil
}

// Load returns the cart with its line items and their products
func (s *Service) Load(ctx context.Context, cartID int64) (*domain.Cart, error) {
	var cart domain.Cart
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		Where("id = ?", cartID).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("cart", cartID)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &cart, nil
}

// lockProduct reads the product, taking a row lock where the dialect supports it
func lockProduct(tx *gorm.DB, productID int64, activeOnly bool) (*domain.Product, error) {
	q := tx.Where("id = ?", productID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if strings.EqualFold(tx.Name(), "postgres") {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p domain.Product
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("product", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

const stockSubquery = "(SELECT stock FROM catalog_product WHERE catalog_product.id = ?)"

// Add puts quantity units of an active product into the cart. An existing line is
// incremented; if the combined quantity would exceed stock nothing changes.
func (s *Service) Add(ctx context.Context, cart *domain.Cart, productID int64, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "quantity must be at least 1")
	}

	var item domain.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(tx, productID, true)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return &domain.InsufficientStockError{ProductID: productID, Requested: quantity, Available: product.Stock}
		}

		item = domain.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).Create(&item)
		if res.Error != nil {
			return fmt.Errorf("create cart item: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			item.Product = product
			return nil
		}

		res = tx.Model(&domain.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			Where("quantity + ? <= "+stockSubquery, quantity, productID).
			Update("quantity", gorm.Expr("quantity + ?", quantity))
		if res.Error != nil {
			return fmt.Errorf("increment cart item: %w", res.Error)
		}

		item = domain.CartItem{}
		if err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error; err != nil {
			return fmt.Errorf("reload cart item: %w", err)
		}
		if res.RowsAffected == 0 {
			return &domain.InsufficientStockError{
				ProductID: productID,
				Requested: item.Quantity + quantity,
				Available: product.Stock,
			}
		}
		item.Product = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) ownedItem(tx *gorm.DB, cart *domain.Cart, itemID int64) (*domain.CartItem, error) {
	var item domain.CartItem
	err := tx.Preload("Product").Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("cart item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("query cart item: %w", err)
	}
	return &item, nil
}

// Update sets the quantity of a line item owned by cart. A quantity <= 0 removes the
// line; removed reports that case.
func (s *Service) Update(ctx context.Context, cart *domain.Cart, itemID int64, quantity int) (item *domain.CartItem, removed bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.ownedItem(tx, cart, itemID)
		if err != nil {
			return err
		}
		item = found

		if quantity <= 0 {
			if err := tx.Delete(&domain.CartItem{}, found.ID).Error; err != nil {
				return fmt.Errorf("delete cart item: %w", err)
			}
			removed = true
			return nil
		}

		res := tx.Model(&domain.CartItem{}).
			Where("id = ? AND cart_id = ?", found.ID, cart.ID).
			Where("? <= "+stockSubquery, quantity, found.ProductID).
			Update("quantity", quantity)
		if res.Error != nil {
			return fmt.Errorf("update cart item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			product, err := lockProduct(tx, found.ProductID, false)
			if err != nil {
				return err
			}
			return &domain.InsufficientStockError{ProductID: found.ProductID, Requested: quantity, Available: product.Stock}
		}
		found.Quantity = quantity
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return item, removed, nil
}

// Remove deletes a line item owned by cart
func (s *Service) Remove(ctx context.Context, cart *domain.Cart, itemID int64) (*domain.CartItem, error) {
	var item *domain.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.ownedItem(tx, cart, itemID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&domain.CartItem{}, found.ID).Error; err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}
		item = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
