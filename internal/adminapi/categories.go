package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type categoryPayload struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Description string `json:"description" validate:"omitempty,max=5000"`
}

// categoryView adds the number of products referencing the category
type categoryView struct {
	domain.Category
	ProductsCount int64 `json:"products_count"`
}

const productsCountColumn = "(SELECT COUNT(*) FROM catalog_product WHERE catalog_product.category_id = catalog_category.id) AS products_count"

func registerCategoryRoutes() {
	webserver.ApiGET("/crm/categories", listCategories)
	webserver.ApiGET("/crm/categories/:id", getCategory)
	webserver.ApiPOST("/crm/categories", createCategory)
	webserver.ApiPUT("/crm/categories/:id", updateCategory)
	webserver.ApiDELETE("/crm/categories/:id", deleteCategory)
}

func categoryQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&domain.Category{}).Select("catalog_category.*, " + productsCountColumn)
}

func listCategories(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.Category{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where(ilike("name"), likePattern(q))
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return handleServiceError(c, err, "Failed to query categories")
	}

	order := sortOrder(c, map[string]string{
		"id":         "id",
		"name":       "name",
		"created_at": "created_at",
	}, "name")
	if c.QueryParam("sort") == "" && c.QueryParam("order") == "" {
		order = "name ASC"
	}

	var rows []categoryView
	if err := categoryQuery(db).
		Order(order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&rows).Error; err != nil {
		return handleServiceError(c, err, "Failed to query categories")
	}
	return paged(c, rows, total, page, pageSize)
}

func findCategory(c echo.Context, id int64) (*categoryView, error) {
	var row categoryView
	res := categoryQuery(GetDB(c)).Where("catalog_category.id = ?", id).Limit(1).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.NewNotFound("category", id)
	}
	return &row, nil
}

func getCategory(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid category ID", nil)
	}
	row, err := findCategory(c, id)
	if err != nil {
		return handleServiceError(c, err, "Category")
	}
	return ok(c, row)
}

func createCategory(c echo.Context) error {
	var payload categoryPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	db := GetDB(c)
	name := strings.TrimSpace(payload.Name)
	slugSource := name
	if s := strings.TrimSpace(payload.Slug); s != "" {
		slugSource = s
	}
	slug, err := catalog.UniqueSlug(c.Request().Context(), db, &domain.Category{}, slugSource, 0)
	if err != nil {
		return handleServiceError(c, err, "Failed to create category")
	}
	row := domain.Category{Name: name, Slug: slug, Description: strings.TrimSpace(payload.Description)}
	if err := db.Create(&row).Error; err != nil {
		return handleServiceError(c, err, "Failed to create category")
	}
	zap.L().Info("category created", zap.String("namespace", "adminapi"), zap.Int64("id", row.ID), zap.String("slug", row.Slug))
	return created(c, categoryView{Category: row})
}

func updateCategory(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid category ID", nil)
	}
	var payload categoryPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}

	db := GetDB(c)
	var row domain.Category
	if err := db.First(&row, id).Error; err != nil {
		return handleServiceError(c, err, "Category")
	}
	row.Name = strings.TrimSpace(payload.Name)
	row.Description = strings.TrimSpace(payload.Description)
	if s := strings.TrimSpace(payload.Slug); s != "" && s != row.Slug {
		slug, err := catalog.UniqueSlug(c.Request().Context(), db, &domain.Category{}, s, row.ID)
		if err != nil {
			return handleServiceError(c, err, "Failed to update category")
		}
		row.Slug = slug
	}
	if err := db.Save(&row).Error; err != nil {
		return handleServiceError(c, err, "Failed to update category")
	}
	view, err := findCategory(c, row.ID)
	if err != nil {
		return handleServiceError(c, err, "Category")
	}
	return ok(c, view)
}

// deleteCategory is refused while any product, active or not, references the category
func deleteCategory(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid category ID", nil)
	}
	row, err := findCategory(c, id)
	if err != nil {
		return handleServiceError(c, err, "Category")
	}
	if row.ProductsCount > 0 {
		return fail(c, http.StatusConflict, "CATEGORY_IN_USE", "Category still has products", map[string]int64{"products_count": row.ProductsCount})
	}
	if err := GetDB(c).Delete(&domain.Category{}, id).Error; err != nil {
		return handleServiceError(c, err, "Failed to delete category")
	}
	zap.L().Info("category deleted", zap.String("namespace", "adminapi"), zap.Int64("id", id))
	return c.NoContent(http.StatusNoContent)
}
