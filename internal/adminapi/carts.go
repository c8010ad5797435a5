package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/cart"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"gorm.io/gorm"
)

// cartView is a cart with its computed totals
type cartView struct {
	*domain.Cart
	ItemsCount int             `json:"items_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func newCartView(c *domain.Cart) cartView {
	return cartView{Cart: c, ItemsCount: c.TotalItems(), TotalPrice: c.TotalPrice()}
}

func registerCartRoutes() {
	webserver.ApiGET("/crm/carts", listCarts)
	webserver.ApiGET("/crm/carts/:id", getCart)
}

func listCarts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.Cart{})
	if v := parseBoolFilter(c, "anonymous"); v != nil {
		if *v {
			db = db.Where("user_id IS NULL")
		} else {
			db = db.Where("user_id IS NOT NULL")
		}
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return handleServiceError(c, err, "Failed to query carts")
	}
	var rows []domain.Cart
	if err := db.Preload("Items.Product").
		Order(sortOrder(c, map[string]string{"id": "id", "created_at": "created_at", "updated_at": "updated_at"}, "updated_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return handleServiceError(c, err, "Failed to query carts")
	}

	views := make([]cartView, len(rows))
	for i := range rows {
		views[i] = newCartView(&rows[i])
	}
	return paged(c, views, total, page, pageSize)
}

func getCart(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid cart ID", nil)
	}
	row, err := cart.NewService(GetDB(c)).Load(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err, "Cart")
	}
	return ok(c, newCartView(row))
}
