package storefront

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/account"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/cart"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/review"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
)

const (
	homeFeaturedLimit   = 8
	homeCategoriesLimit = 6
	homeLatestLimit     = 8
	detailReviewsLimit  = 10
	detailRelatedLimit  = 4
)

// Handler serves the html storefront
type Handler struct {
	catalog  *catalog.Repository
	carts    *cart.Service
	reviews  *review.Service
	accounts *account.Service
	site     string
}

func NewHandler(appCtx app.AppContext) *Handler {
	db := appCtx.DB()
	return &Handler{
		catalog:  catalog.NewRepository(db),
		carts:    cart.NewService(db),
		reviews:  review.NewService(db, appCtx.Bus()),
		accounts: account.NewService(db),
		site:     appCtx.Config().System.Appid,
	}
}

// Register installs the templates, the html error page and every storefront route
func Register(appCtx app.AppContext) error {
	renderer, err := NewRenderer()
	if err != nil {
		return err
	}
	h := NewHandler(appCtx)
	webserver.SetRenderer(renderer)
	webserver.SetPageErrorHandler(h.pageError)
	h.routes()
	return nil
}

func (h *Handler) routes() {
	withUser := h.loadUser
	formMethods := []string{http.MethodGet, http.MethodPost}

	webserver.GET("/", h.home, withUser)
	webserver.GET("/products/", h.productList, withUser)
	webserver.GET("/product/:slug/", h.productDetail, withUser)
	webserver.GET("/category/:slug/", h.categoryProducts, withUser)
	webserver.GET("/search/", h.search, withUser)

	webserver.Match(formMethods, "/cart/", h.cartDetail, withUser)
	webserver.POST("/add-to-cart/:product_id/", h.addToCart, withUser)
	webserver.POST("/update-cart/:item_id/", h.updateCart, withUser)
	webserver.POST("/remove-from-cart/:item_id/", h.removeFromCart, withUser)
	webserver.POST("/add-review/:slug/", h.addReview, withUser)

	webserver.Match(formMethods, "/register/", h.register, withUser)
	webserver.Match(formMethods, "/login/", h.login, withUser)
	webserver.POST("/logout/", h.logout, withUser)
}

// render adds the navbar state shared by every page
func (h *Handler) render(c echo.Context, code int, name string, data echo.Map) error {
	if data == nil {
		data = echo.Map{}
	}
	count, err := h.carts.ItemCount(c.Request().Context(), h.identity(c, false))
	if err != nil {
		zap.L().Warn("cart count failed", zap.String("namespace", "storefront"), zap.Error(err))
	}
	data["Site"] = h.site
	data["User"] = currentUser(c)
	data["CartCount"] = count
	data["Flashes"] = webserver.PopFlashes(c)
	data["Path"] = c.Request().URL.Path
	data["CSRF"] = webserver.CSRFToken(c)
	return c.Render(code, name, data)
}

func (h *Handler) redirect(c echo.Context, to string) error {
	return c.Redirect(http.StatusSeeOther, to)
}

func (h *Handler) flashRedirect(c echo.Context, level, message, to string) error {
	webserver.AddFlash(c, level, message)
	return h.redirect(c, to)
}

func (h *Handler) pageError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	switch {
	case domain.IsNotFound(err):
		code = http.StatusNotFound
	case errors.As(err, &he):
		code = he.Code
	default:
		zap.L().Error("storefront request failed",
			zap.String("namespace", "storefront"),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	page := "error.html"
	if code == http.StatusNotFound {
		page = "404.html"
	}
	if rerr := h.render(c, code, page, echo.Map{"Code": code, "Status": http.StatusText(code)}); rerr != nil {
		zap.L().Error("render error page failed", zap.String("namespace", "storefront"), zap.Error(rerr))
		_ = c.String(code, http.StatusText(code))
	}
}

func productURL(slug string) string {
	return "/product/" + slug + "/"
}

// safeNext accepts only local absolute paths
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\") {
		return next
	}
	return "/"
}
