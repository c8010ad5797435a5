package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type productPayload struct {
	Name             string           `json:"name" validate:"required,min=1,max=200"`
	Slug             string           `json:"slug" validate:"omitempty,max=200"`
	CategoryID       int64            `json:"category_id" validate:"required"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"short_description" validate:"omitempty,max=300"`
	Price            decimal.Decimal  `json:"price"`
	OldPrice         *decimal.Decimal `json:"old_price"`
	Stock            *int             `json:"stock" validate:"required,gte=0"`
	IsActive         *bool            `json:"is_active"`
	Featured         bool             `json:"featured"`
	Image            string           `json:"image" validate:"omitempty,max=1024"`
	ImageURL         string           `json:"image_url" validate:"omitempty,max=1024"`
}

// productPatchPayload carries the fields editable straight from the product list
type productPatchPayload struct {
	Price    *decimal.Decimal `json:"price"`
	Stock    *int             `json:"stock" validate:"omitempty,gte=0"`
	IsActive *bool            `json:"is_active"`
	Featured *bool            `json:"featured"`
}

// productView flags products at or below the low stock threshold
type productView struct {
	domain.Product
	LowStock bool `json:"low_stock"`
}

var productSortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"price":      "price",
	"stock":      "stock",
	"rating":     "rating",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func registerProductRoutes() {
	webserver.ApiGET("/crm/products", listProducts)
	webserver.ApiGET("/crm/products/export.xlsx", exportProductsXLSX)
	webserver.ApiGET("/crm/products/export.csv", exportProductsCSV)
	webserver.ApiPOST("/crm/products/import", importProducts)
	webserver.ApiGET("/crm/products/:id", getProduct)
	webserver.ApiPOST("/crm/products", createProduct)
	webserver.ApiPUT("/crm/products/:id", updateProduct)
	webserver.ApiPATCH("/crm/products/:id", patchProduct)
	webserver.ApiDELETE("/crm/products/:id", deleteProduct)
}

func lowStockThreshold(c echo.Context) int {
	return GetAppContext(c).ConfigMgr().GetInt("shop", "low_stock_threshold")
}

func toProductViews(rows []domain.Product, threshold int) []productView {
	views := make([]productView, len(rows))
	for i := range rows {
		views[i] = productView{Product: rows[i], LowStock: rows[i].Stock <= threshold}
	}
	return views
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	threshold := lowStockThreshold(c)

	db := GetDB(c).Model(&domain.Product{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := likePattern(q)
		categories := GetDB(c).Model(&domain.Category{}).Select("id").Where(ilike("name"), like)
		db = db.Where("("+ilike("name")+" OR "+ilike("description")+" OR category_id IN (?))", like, like, categories)
	}
	if raw := c.QueryParam("category_id"); raw != "" {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid category_id", nil)
		}
		db = db.Where("category_id = ?", categoryID)
	}
	if v := parseBoolFilter(c, "is_active"); v != nil {
		db = db.Where("is_active = ?", *v)
	}
	if v := parseBoolFilter(c, "featured"); v != nil {
		db = db.Where("featured = ?", *v)
	}
	if v := parseBoolFilter(c, "low_stock"); v != nil {
		if *v {
			db = db.Where("stock <= ?", threshold)
		} else {
			db = db.Where("stock > ?", threshold)
		}
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return handleServiceError(c, err, "Failed to query products")
	}

	var rows []domain.Product
	if err := db.Preload("Category").
		Order(sortOrder(c, productSortColumns, "created_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return handleServiceError(c, err, "Failed to query products")
	}
	return paged(c, toProductViews(rows, threshold), total, page, pageSize)
}

func loadProduct(c echo.Context) (*domain.Product, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, domain.NewValidationError("id", "invalid product id")
	}
	return catalog.NewRepository(GetDB(c)).ProductByID(c.Request().Context(), id, false)
}

func getProduct(c echo.Context) error {
	p, err := loadProduct(c)
	if err != nil {
		return handleServiceError(c, err, "Product")
	}
	return ok(c, productView{Product: *p, LowStock: p.Stock <= lowStockThreshold(c)})
}

// validate checks what the struct tags cannot express
func (p *productPayload) validate(db *gorm.DB) error {
	verr := &domain.ValidationError{}
	if !p.Price.IsPositive() {
		verr.Add("price", "must be greater than 0")
	}
	if p.OldPrice != nil && p.OldPrice.IsNegative() {
		verr.Add("old_price", "must be at least 0")
	}
	var count int64
	if err := db.Model(&domain.Category{}).Where("id = ?", p.CategoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		verr.Add("category_id", "unknown category")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (p *productPayload) apply(row *domain.Product) {
	row.Name = strings.TrimSpace(p.Name)
	row.CategoryID = p.CategoryID
	row.Description = strings.TrimSpace(p.Description)
	row.ShortDescription = strings.TrimSpace(p.ShortDescription)
	row.Price = p.Price.Round(2)
	row.OldPrice = decimal.NullDecimal{}
	if p.OldPrice != nil {
		row.OldPrice = decimal.NewNullDecimal(p.OldPrice.Round(2))
	}
	row.Stock = *p.Stock
	if p.IsActive != nil {
		row.IsActive = *p.IsActive
	}
	row.Featured = p.Featured
	row.Image = strings.TrimSpace(p.Image)
	row.ImageURL = strings.TrimSpace(p.ImageURL)
}

func createProduct(c echo.Context) error {
	var payload productPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	db := GetDB(c)
	if err := payload.validate(db); err != nil {
		return handleServiceError(c, err, "Invalid product")
	}

	row := domain.Product{IsActive: true}
	payload.apply(&row)
	slugSource := row.Name
	if s := strings.TrimSpace(payload.Slug); s != "" {
		slugSource = s
	}
	slug, err := catalog.UniqueSlug(c.Request().Context(), db, &domain.Product{}, slugSource, 0)
	if err != nil {
		return handleServiceError(c, err, "Failed to create product")
	}
	row.Slug = slug
	if err := db.Create(&row).Error; err != nil {
		return handleServiceError(c, err, "Failed to create product")
	}
	zap.L().Info("product created", zap.String("namespace", "adminapi"), zap.Int64("id", row.ID), zap.String("slug", row.Slug))
	return created(c, productView{Product: row, LowStock: row.Stock <= lowStockThreshold(c)})
}

func updateProduct(c echo.Context) error {
	current, err := loadProduct(c)
	if err != nil {
		return handleServiceError(c, err, "Product")
	}
	var payload productPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	db := GetDB(c)
	if err := payload.validate(db); err != nil {
		return handleServiceError(c, err, "Invalid product")
	}

	// rating is derived from reviews and survives every edit
	payload.apply(current)
	if s := strings.TrimSpace(payload.Slug); s != "" && s != current.Slug {
		slug, err := catalog.UniqueSlug(c.Request().Context(), db, &domain.Product{}, s, current.ID)
		if err != nil {
			return handleServiceError(c, err, "Failed to update product")
		}
		current.Slug = slug
	}
	current.Category = nil
	if err := db.Omit("Category", "rating").Save(current).Error; err != nil {
		return handleServiceError(c, err, "Failed to update product")
	}
	return getProduct(c)
}

func patchProduct(c echo.Context) error {
	current, err := loadProduct(c)
	if err != nil {
		return handleServiceError(c, err, "Product")
	}
	var payload productPatchPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}

	updates := map[string]interface{}{}
	if payload.Price != nil {
		if !payload.Price.IsPositive() {
			return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed",
				map[string]string{"price": "must be greater than 0"})
		}
		updates["price"] = payload.Price.Round(2)
	}
	if payload.Stock != nil {
		updates["stock"] = *payload.Stock
	}
	if payload.IsActive != nil {
		updates["is_active"] = *payload.IsActive
	}
	if payload.Featured != nil {
		updates["featured"] = *payload.Featured
	}
	if len(updates) == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Nothing to update", nil)
	}
	if err := GetDB(c).Model(&domain.Product{}).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
		return handleServiceError(c, err, "Failed to update product")
	}
	zap.L().Info("product patched", zap.String("namespace", "adminapi"), zap.Int64("id", current.ID), zap.Any("fields", updates))
	return getProduct(c)
}

// deleteProduct deactivates; cart lines and reviews keep pointing at the row
func deleteProduct(c echo.Context) error {
	current, err := loadProduct(c)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
		}
		return handleServiceError(c, err, "Product")
	}
	if err := GetDB(c).Model(&domain.Product{}).Where("id = ?", current.ID).Update("is_active", false).Error; err != nil {
		return handleServiceError(c, err, "Failed to deactivate product")
	}
	zap.L().Info("product deactivated", zap.String("namespace", "adminapi"), zap.Int64("id", current.ID))
	return getProduct(c)
}
