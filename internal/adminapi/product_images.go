package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
)

type productImagePayload struct {
	Image   string `json:"image" validate:"required,max=1024"`
	AltText string `json:"alt_text" validate:"omitempty,max=200"`
}

func registerProductImageRoutes() {
	webserver.ApiGET("/crm/products/:id/images", listProductImages)
	webserver.ApiPOST("/crm/products/:id/images", createProductImage)
	webserver.ApiDELETE("/crm/products/:id/images/:image_id", deleteProductImage)
}

func productImages(c echo.Context, productID int64) ([]domain.ProductImage, error) {
	var rows []domain.ProductImage
	err := GetDB(c).Where("product_id = ?", productID).Order("id").Find(&rows).Error
	return rows, err
}

func listProductImages(c echo.Context) error {
	p, err := loadProduct(c)
	if err != nil {
		return handleServiceError(c, err, "Product")
	}
	rows, err := productImages(c, p.ID)
	if err != nil {
		return handleServiceError(c, err, "Failed to query product images")
	}
	return ok(c, rows)
}

func createProductImage(c echo.Context) error {
	p, err := loadProduct(c)
	if err != nil {
		return handleServiceError(c, err, "Product")
	}
	var payload productImagePayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	image := strings.TrimSpace(payload.Image)
	if image == "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed",
			map[string]string{"image": "this field is required"})
	}
	row := domain.ProductImage{
		ProductID: p.ID,
		Image:     image,
		AltText:   strings.TrimSpace(payload.AltText),
	}
	if err := GetDB(c).Create(&row).Error; err != nil {
		return handleServiceError(c, err, "Failed to add product image")
	}
	zap.L().Info("product image added", zap.String("namespace", "adminapi"),
		zap.Int64("product_id", p.ID), zap.Int64("id", row.ID))
	return created(c, row)
}

func deleteProductImage(c echo.Context) error {
	p, err := loadProduct(c)
	if err != nil {
		return handleServiceError(c, err, "Product")
	}
	imageID, err := parseIDParam(c, "image_id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid image ID", nil)
	}
	res := GetDB(c).Where("id = ? AND product_id = ?", imageID, p.ID).Delete(&domain.ProductImage{})
	if res.Error != nil {
		return handleServiceError(c, res.Error, "Failed to delete product image")
	}
	if res.RowsAffected == 0 {
		return handleServiceError(c, domain.NewNotFound("product image", imageID), "Product image")
	}
	return c.NoContent(http.StatusNoContent)
}
