package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/account"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/storetest"
	"github.com/talkincode/storefront/internal/webserver"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	e      *echo.Echo
	phone  *domain.Product
	laptop *domain.Product
	hidden *domain.Product
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.Web.Secret = "storefront-test-secret"
	cfg.Admin.Password = "rootpass"

	a := app.NewApplication(&cfg)
	a.Bootstrap(storetest.NewDB(t))
	s := webserver.Init(&cfg)
	require.NoError(t, Register(a))

	db := a.DB()
	electronics := storetest.Category(t, db, "Electronics", "electronics")
	return &fixture{
		db: db,
		e:  s.Echo(),
		phone: storetest.Product(t, db, electronics, "Smartphone Pro Max", "smartphone-pro-max",
			storetest.Featured(), storetest.Price("899.00"), storetest.Stock(10)),
		laptop: storetest.Product(t, db, electronics, "Laptop", "laptop",
			storetest.Price("999.99"), storetest.Stock(5)),
		hidden: storetest.Product(t, db, electronics, "Phone Case", "phone-case", storetest.Inactive()),
	}
}

// browser keeps the session cookie between requests
type browser struct {
	t       *testing.T
	e       *echo.Echo
	cookies map[string]*http.Cookie
}

func (f *fixture) browser(t *testing.T) *browser {
	return &browser{t: t, e: f.e, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	b.e.ServeHTTP(rec, req)
	// the last Set-Cookie of a name wins
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil)
}

// submit posts form carrying the csrf token a rendered page would embed
func (b *browser) submit(target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if _, ok := b.cookies[webserver.CSRFField]; !ok {
		require.Equal(b.t, http.StatusOK, b.get("/").Code)
	}
	require.Contains(b.t, b.cookies, webserver.CSRFField)
	form.Set(webserver.CSRFField, b.cookies[webserver.CSRFField].Value)
	return b.do(http.MethodPost, target, form)
}

// post submits a form and expects a 303 redirect, returning its target
func (b *browser) post(target string, form url.Values) string {
	b.t.Helper()
	rec := b.submit(target, form)
	require.Equal(b.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	return rec.Header().Get(echo.HeaderLocation)
}

func (f *fixture) quantity(t *testing.T, productID int64) int {
	t.Helper()
	var total int
	require.NoError(t, f.db.Model(&domain.CartItem{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ?", productID).
		Scan(&total).Error)
	return total
}

func TestHomeAndListing(t *testing.T) {
	f := setup(t)
	b := f.browser(t)

	rec := b.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Smartphone Pro Max")
	assert.Contains(t, rec.Body.String(), "Electronics")
	assert.NotContains(t, rec.Body.String(), "Phone Case")

	rec = b.get("/products/?q=phone")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Smartphone Pro Max")
	assert.NotContains(t, rec.Body.String(), "Phone Case")
	assert.NotContains(t, rec.Body.String(), "Laptop")

	rec = b.get("/products?sort=price_high")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Less(t, strings.Index(body, "Laptop"), strings.Index(body, "Smartphone Pro Max"))

	rec = b.get("/search/?q=LAPTOP")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/product/laptop/")

	rec = b.get("/search/?q=")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No products found.")

	rec = b.get("/category/electronics/?page=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Laptop")
}

func TestNotFoundPages(t *testing.T) {
	f := setup(t)
	b := f.browser(t)

	for _, path := range []string{
		"/product/no-such-thing/",
		"/product/phone-case/",
		"/category/nope/",
		"/products/?category=nope",
		"/nowhere/",
	} {
		rec := b.get(path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "Page not found", path)
	}

	rec := b.get(fmt.Sprintf("/add-to-cart/%d/", f.laptop.ID))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProductDetail(t *testing.T) {
	f := setup(t)
	b := f.browser(t)

	rec := b.get("/product/laptop/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "999.99")
	assert.Contains(t, body, "5 in stock")
	// related product from the same category
	assert.Contains(t, body, "/product/smartphone-pro-max/")
	assert.Contains(t, body, "to write a review")
	assert.NotContains(t, body, "review-form")
	assert.NotContains(t, body, `class="gallery"`)
}

func TestProductDetailGallery(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Create(&[]domain.ProductImage{
		{ProductID: f.laptop.ID, Image: "products/laptop-side.jpg", AltText: "Side view"},
		{ProductID: f.laptop.ID, Image: "products/laptop-open.jpg", AltText: "Open lid"},
		{ProductID: f.phone.ID, Image: "products/phone-back.jpg", AltText: "Back"},
	}).Error)

	rec := f.browser(t).get("/product/laptop/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="gallery"`)
	side := strings.Index(body, `<img src="/media/products/laptop-side.jpg" alt="Side view">`)
	open := strings.Index(body, `<img src="/media/products/laptop-open.jpg" alt="Open lid">`)
	require.NotEqual(t, -1, side)
	require.NotEqual(t, -1, open)
	assert.Less(t, side, open)
	assert.NotContains(t, body, "phone-back.jpg")
}

func TestAddToCart(t *testing.T) {
	f := setup(t)
	b := f.browser(t)

	loc := b.post(fmt.Sprintf("/add-to-cart/%d/", f.laptop.ID), url.Values{"quantity": {"2"}})
	assert.Equal(t, "/cart/", loc)

	rec := b.get("/cart/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Laptop added to cart!")
	assert.Contains(t, body, `<span id="total-price">1999.98</span>`)
	assert.Contains(t, body, `<span id="cart-count">2</span>`)

	// flash is shown once
	rec = b.get("/cart/")
	assert.NotContains(t, rec.Body.String(), "added to cart!")

	// default quantity is one
	b.post(fmt.Sprintf("/add-to-cart/%d/", f.phone.ID), url.Values{})
	assert.Equal(t, 1, f.quantity(t, f.phone.ID))
}

func TestAddToCartRespectsStock(t *testing.T) {
	f := setup(t)
	b := f.browser(t)
	add := fmt.Sprintf("/add-to-cart/%d/", f.laptop.ID)

	loc := b.post(add, url.Values{"quantity": {"6"}})
	assert.Equal(t, "/product/laptop/", loc)
	assert.Contains(t, b.get(loc).Body.String(), "Only 5 items available in stock.")
	assert.Equal(t, 0, f.quantity(t, f.laptop.ID))

	b.post(add, url.Values{"quantity": {"3"}})
	loc = b.post(add, url.Values{"quantity": {"3"}})
	assert.Equal(t, "/cart/", loc)
	assert.Contains(t, b.get(loc).Body.String(), "Cannot add more. Only 5 items available.")
	assert.Equal(t, 3, f.quantity(t, f.laptop.ID))

	loc = b.post(add, url.Values{"quantity": {"abc"}})
	assert.Equal(t, "/product/laptop/", loc)
	assert.Contains(t, b.get(loc).Body.String(), "Enter a valid quantity.")

	loc = b.post(add, url.Values{"quantity": {"0"}})
	assert.Contains(t, b.get(loc).Body.String(), "quantity must be at least 1")
	assert.Equal(t, 3, f.quantity(t, f.laptop.ID))

	rec := b.submit(fmt.Sprintf("/add-to-cart/%d/", f.hidden.ID), url.Values{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAndRemove(t *testing.T) {
	f := setup(t)
	b := f.browser(t)
	b.post(fmt.Sprintf("/add-to-cart/%d/", f.laptop.ID), url.Values{"quantity": {"1"}})

	var item domain.CartItem
	require.NoError(t, f.db.Where("product_id = ?", f.laptop.ID).First(&item).Error)
	update := fmt.Sprintf("/update-cart/%d/", item.ID)

	b.post(update, url.Values{"quantity": {"4"}})
	assert.Contains(t, b.get("/cart/").Body.String(), "Cart updated!")
	assert.Equal(t, 4, f.quantity(t, f.laptop.ID))

	b.post(update, url.Values{"quantity": {"9"}})
	assert.Contains(t, b.get("/cart/").Body.String(), "Only 5 items available.")
	assert.Equal(t, 4, f.quantity(t, f.laptop.ID))

	// another browser cannot touch the line
	other := f.browser(t)
	rec := other.submit(update, url.Values{"quantity": {"1"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = other.submit(fmt.Sprintf("/remove-from-cart/%d/", item.ID), url.Values{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	b.post(update, url.Values{"quantity": {"0"}})
	assert.Contains(t, b.get("/cart/").Body.String(), "Item removed from cart!")
	assert.Equal(t, 0, f.quantity(t, f.laptop.ID))

	b.post(fmt.Sprintf("/add-to-cart/%d/", f.phone.ID), url.Values{})
	require.NoError(t, f.db.Where("product_id = ?", f.phone.ID).First(&item).Error)
	b.post(fmt.Sprintf("/remove-from-cart/%d/", item.ID), nil)
	body := b.get("/cart/").Body.String()
	assert.Contains(t, body, "Smartphone Pro Max removed from cart!")
	assert.Contains(t, body, "Your cart is empty.")
}

func TestReviewRequiresLogin(t *testing.T) {
	f := setup(t)
	b := f.browser(t)

	loc := b.post("/add-review/laptop/", url.Values{"rating": {"5"}, "title": {"Great"}, "comment": {"Fast"}})
	assert.Equal(t, "/login/?next="+url.QueryEscape("/product/laptop/"), loc)

	var count int64
	require.NoError(t, f.db.Model(&domain.Review{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegisterAndReview(t *testing.T) {
	f := setup(t)
	b := f.browser(t)

	rec := b.submit("/register/", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"s3cret-pass"},
		"password_confirm": {"different"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-field="password_confirm"`)
	assert.Contains(t, rec.Body.String(), `value="alice"`)

	loc := b.post("/register/", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"s3cret-pass"},
		"password_confirm": {"s3cret-pass"},
	})
	assert.Equal(t, "/", loc)
	body := b.get("/").Body.String()
	assert.Contains(t, body, "Registration successful!")
	assert.Contains(t, body, `<span class="user">alice</span>`)

	assert.Contains(t, b.get("/product/laptop/").Body.String(), "review-form")

	review := url.Values{"rating": {"4"}, "title": {"Solid"}, "comment": {"Does the job"}}
	loc = b.post("/add-review/laptop/", review)
	assert.Equal(t, "/product/laptop/", loc)
	body = b.get(loc).Body.String()
	assert.Contains(t, body, "Your review has been added!")
	assert.Contains(t, body, "Does the job")

	var laptop domain.Product
	require.NoError(t, f.db.First(&laptop, f.laptop.ID).Error)
	assert.Equal(t, "4.0", laptop.Rating.StringFixed(1))

	b.post("/add-review/laptop/", url.Values{"rating": {"1"}, "title": {"Again"}, "comment": {"Changed my mind"}})
	assert.Contains(t, b.get(loc).Body.String(), "You have already reviewed this product.")

	b.post("/add-review/smartphone-pro-max/", url.Values{"rating": {"9"}, "title": {"x"}, "comment": {"y"}})
	assert.Contains(t, b.get("/product/smartphone-pro-max/").Body.String(), "rating must be between 1 and 5")

	rec = b.submit("/add-review/phone-case/", review)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginLogout(t *testing.T) {
	f := setup(t)
	_, err := account.NewService(f.db).Register(context.Background(), account.Registration{
		Username: "bob", Password: "hunter2hunter2", PasswordConfirm: "hunter2hunter2",
	})
	require.NoError(t, err)
	b := f.browser(t)

	// anonymous cart
	b.post(fmt.Sprintf("/add-to-cart/%d/", f.laptop.ID), url.Values{"quantity": {"2"}})

	rec := b.submit("/login/", url.Values{"username": {"bob"}, "password": {"wrong"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter a correct username and password.")

	loc := b.post("/login/", url.Values{"username": {"bob"}, "password": {"hunter2hunter2"}, "next": {"/cart/"}})
	assert.Equal(t, "/cart/", loc)
	body := b.get(loc).Body.String()
	assert.Contains(t, body, "Welcome back, bob!")
	// the anonymous cart is not merged into the user's cart
	assert.Contains(t, body, "Your cart is empty.")

	loc = b.post("/logout/", nil)
	assert.Equal(t, "/", loc)
	body = b.get(loc).Body.String()
	assert.Contains(t, body, "You have been logged out.")
	assert.Contains(t, body, `href="/login/"`)

	loc = b.post("/login/", url.Values{"username": {"bob"}, "password": {"hunter2hunter2"}, "next": {"//evil.example.com/"}})
	assert.Equal(t, "/", loc)
}

func TestDeactivatedUserIsSignedOut(t *testing.T) {
	f := setup(t)
	b := f.browser(t)
	b.post("/register/", url.Values{
		"username":         {"carol"},
		"password":         {"long-enough"},
		"password_confirm": {"long-enough"},
	})
	require.NoError(t, f.db.Model(&domain.User{}).Where("username = ?", "carol").Update("is_active", false).Error)

	body := b.get("/").Body.String()
	assert.NotContains(t, body, `<span class="user">carol</span>`)
	assert.Contains(t, body, `href="/login/"`)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/cart/", safeNext("/cart/"))
	assert.Equal(t, "/", safeNext(""))
	assert.Equal(t, "/", safeNext("https://evil.example.com"))
	assert.Equal(t, "/", safeNext("//evil.example.com"))
	assert.Equal(t, "/", safeNext(`/\evil.example.com`))
}

func TestFormsRequireCSRFToken(t *testing.T) {
	f := setup(t)
	b := f.browser(t)
	addLaptop := fmt.Sprintf("/add-to-cart/%d/", f.laptop.ID)

	rec := b.get("/product/laptop/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, b.cookies, webserver.CSRFField)
	token := b.cookies[webserver.CSRFField].Value
	require.NotEmpty(t, token)
	// the add-to-cart form and the related product cards carry the cookie's token
	assert.GreaterOrEqual(t, strings.Count(rec.Body.String(), `name="_csrf" value="`+token+`"`), 2)

	rec = b.do(http.MethodPost, addLaptop, url.Values{"quantity": {"1"}})
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)

	rec = b.do(http.MethodPost, addLaptop, url.Values{"quantity": {"1"}, webserver.CSRFField: {"forged"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, f.quantity(t, f.laptop.ID))

	assert.Equal(t, "/cart/", b.post(addLaptop, url.Values{"quantity": {"1"}}))
	assert.Equal(t, 1, f.quantity(t, f.laptop.ID))

	// the json api stays token free
	rec = b.do(http.MethodPost, "/api/v1/auth/login", nil)
	assert.NotEqual(t, http.StatusForbidden, rec.Code)
}
