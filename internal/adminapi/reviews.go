package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func registerReviewRoutes() {
	webserver.ApiGET("/crm/reviews", listReviews)
	webserver.ApiGET("/crm/reviews/:id", getReview)
	webserver.ApiDELETE("/crm/reviews/:id", deleteReview)
}

func listReviews(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.Review{})
	if raw := c.QueryParam("rating"); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil || rating < domain.MinReviewRating || rating > domain.MaxReviewRating {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "rating must be between 1 and 5", nil)
		}
		db = db.Where("rating = ?", rating)
	}
	if raw := c.QueryParam("product_id"); raw != "" {
		productID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid product_id", nil)
		}
		db = db.Where("product_id = ?", productID)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := likePattern(q)
		db = db.Where("("+ilike("title")+" OR "+ilike("comment")+")", like, like)
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return handleServiceError(c, err, "Failed to query reviews")
	}
	var rows []domain.Review
	if err := db.Preload("User").Preload("Product").
		Order(sortOrder(c, map[string]string{"id": "id", "rating": "rating", "created_at": "created_at"}, "created_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return handleServiceError(c, err, "Failed to query reviews")
	}
	return paged(c, rows, total, page, pageSize)
}

func findReview(c echo.Context) (*domain.Review, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, domain.NewValidationError("id", "invalid review id")
	}
	var row domain.Review
	if err := GetDB(c).Preload("User").Preload("Product").First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func getReview(c echo.Context) error {
	row, err := findReview(c)
	if err != nil {
		return handleServiceError(c, err, "Review")
	}
	return ok(c, row)
}

// deleteReview removes a review and recomputes the product rating from the rest
func deleteReview(c echo.Context) error {
	row, err := findReview(c)
	if err != nil {
		return handleServiceError(c, err, "Review")
	}
	if err := GetDB(c).Delete(&domain.Review{}, row.ID).Error; err != nil {
		return handleServiceError(c, err, "Failed to delete review")
	}
	GetAppContext(c).Bus().Publish(domain.TopicReviewSubmitted, row.ProductID)
	zap.L().Info("review deleted",
		zap.String("namespace", "adminapi"),
		zap.Int64("id", row.ID),
		zap.Int64("product_id", row.ProductID))
	return c.NoContent(http.StatusNoContent)
}
