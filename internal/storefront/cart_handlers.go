package storefront

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
)

const cartURL = "/cart/"

const invalidQuantity = "Enter a valid quantity."

// formQuantity reads the quantity field; a missing field means def
func formQuantity(c echo.Context, def int) (int, bool) {
	raw := strings.TrimSpace(c.FormValue("quantity"))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

func validationMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		for _, field := range []string{"quantity", "rating", "title", "comment"} {
			if msg, ok := verr.Fields[field]; ok {
				return msg
			}
		}
	}
	return err.Error()
}

func (h *Handler) cartDetail(c echo.Context) error {
	ctx := c.Request().Context()
	current, err := h.carts.Resolve(ctx, h.identity(c, true))
	if err != nil {
		return err
	}
	loaded, err := h.carts.Load(ctx, current.ID)
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, "cart.html", echo.Map{"Cart": loaded})
}

func (h *Handler) addToCart(c echo.Context) error {
	ctx := c.Request().Context()
	productID, err := pathID(c, "product_id")
	if err != nil {
		return err
	}
	product, err := h.catalog.ProductByID(ctx, productID, true)
	if err != nil {
		return err
	}
	quantity, ok := formQuantity(c, 1)
	if !ok {
		return h.flashRedirect(c, webserver.FlashError, invalidQuantity, productURL(product.Slug))
	}

	current, err := h.carts.Resolve(ctx, h.identity(c, true))
	if err != nil {
		return err
	}
	_, err = h.carts.Add(ctx, current, product.ID, quantity)
	var stockErr *domain.InsufficientStockError
	switch {
	case err == nil:
		metrics.Incr("cart_add", int64(quantity))
		return h.flashRedirect(c, webserver.FlashSuccess, fmt.Sprintf("%s added to cart!", product.Name), cartURL)
	case errors.As(err, &stockErr) && stockErr.Requested == quantity:
		// the requested amount alone is more than the stock
		return h.flashRedirect(c, webserver.FlashError,
			fmt.Sprintf("Only %d items available in stock.", stockErr.Available), productURL(product.Slug))
	case errors.As(err, &stockErr):
		return h.flashRedirect(c, webserver.FlashError,
			fmt.Sprintf("Cannot add more. Only %d items available.", stockErr.Available), cartURL)
	case domain.IsValidation(err):
		return h.flashRedirect(c, webserver.FlashError, validationMessage(err), productURL(product.Slug))
	default:
		return err
	}
}

func (h *Handler) updateCart(c echo.Context) error {
	ctx := c.Request().Context()
	itemID, err := pathID(c, "item_id")
	if err != nil {
		return err
	}
	quantity, ok := formQuantity(c, 1)
	if !ok {
		return h.flashRedirect(c, webserver.FlashError, invalidQuantity, cartURL)
	}
	current, err := h.carts.Resolve(ctx, h.identity(c, true))
	if err != nil {
		return err
	}

	_, removed, err := h.carts.Update(ctx, current, itemID, quantity)
	var stockErr *domain.InsufficientStockError
	switch {
	case err == nil && removed:
		return h.flashRedirect(c, webserver.FlashSuccess, "Item removed from cart!", cartURL)
	case err == nil:
		return h.flashRedirect(c, webserver.FlashSuccess, "Cart updated!", cartURL)
	case errors.As(err, &stockErr):
		return h.flashRedirect(c, webserver.FlashError,
			fmt.Sprintf("Only %d items available.", stockErr.Available), cartURL)
	default:
		return err
	}
}

func (h *Handler) removeFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	itemID, err := pathID(c, "item_id")
	if err != nil {
		return err
	}
	current, err := h.carts.Resolve(ctx, h.identity(c, true))
	if err != nil {
		return err
	}
	item, err := h.carts.Remove(ctx, current, itemID)
	if err != nil {
		return err
	}
	name := "Item"
	if item.Product != nil {
		name = item.Product.Name
	}
	zap.L().Debug("cart line removed",
		zap.String("namespace", "storefront"),
		zap.Int64("cart_id", current.ID),
		zap.Int64("item_id", itemID))
	return h.flashRedirect(c, webserver.FlashSuccess, fmt.Sprintf("%s removed from cart!", name), cartURL)
}
