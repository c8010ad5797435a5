package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// offerPayload accepts dates in any layout dateparse understands, e.g. "2024-06-01",
// "2024-06-01 08:00" or RFC 3339
type offerPayload struct {
	Code          string          `json:"code" validate:"required,max=50"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	DiscountType  string          `json:"discount_type" validate:"required,oneof=percentage fixed"`
	Discount      decimal.Decimal `json:"discount"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
	ValidFrom     string          `json:"valid_from" validate:"required"`
	ValidTo       string          `json:"valid_to" validate:"required"`
	UsageLimit    int             `json:"usage_limit" validate:"gte=1"`
	UsedCount     int             `json:"used_count" validate:"gte=0"`
	IsActive      *bool           `json:"is_active"`
}

type offerView struct {
	domain.Offer
	UsageStatus string `json:"usage_status"`
	UsageColor  string `json:"usage_color"`
	Usable      bool   `json:"usable"`
}

type offerCheck struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Usable   bool            `json:"usable"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

func newOfferView(o domain.Offer, now time.Time) offerView {
	status, color := o.UsageStatus()
	return offerView{
		Offer:       o,
		UsageStatus: status,
		UsageColor:  color,
		Usable:      o.IsUsable(now, o.MinimumAmount),
	}
}

func registerOfferRoutes() {
	webserver.ApiGET("/crm/offers", listOffers)
	webserver.ApiGET("/crm/offers/:id", getOffer)
	webserver.ApiGET("/crm/offers/:id/check", checkOffer)
	webserver.ApiPOST("/crm/offers", createOffer)
	webserver.ApiPUT("/crm/offers/:id", updateOffer)
	webserver.ApiDELETE("/crm/offers/:id", deleteOffer)
}

func listOffers(c echo.Context) error {
	page, pageSize := parsePagination(c)
	now := time.Now()
	db := GetDB(c).Model(&domain.Offer{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := likePattern(q)
		db = db.Where("("+ilike("code")+" OR "+ilike("name")+")", like, like)
	}
	if v := parseBoolFilter(c, "is_active"); v != nil {
		db = db.Where("is_active = ?", *v)
	}
	if v := parseBoolFilter(c, "current"); v != nil {
		if *v {
			db = db.Where("valid_from <= ? AND valid_to >= ?", now, now)
		} else {
			db = db.Where("(valid_from > ? OR valid_to < ?)", now, now)
		}
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return handleServiceError(c, err, "Failed to query offers")
	}
	var rows []domain.Offer
	if err := db.Order(sortOrder(c, map[string]string{
		"id":         "id",
		"code":       "code",
		"valid_from": "valid_from",
		"valid_to":   "valid_to",
		"created_at": "created_at",
	}, "created_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return handleServiceError(c, err, "Failed to query offers")
	}

	views := make([]offerView, len(rows))
	for i := range rows {
		views[i] = newOfferView(rows[i], now)
	}
	return paged(c, views, total, page, pageSize)
}

func findOffer(c echo.Context) (*domain.Offer, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, domain.NewValidationError("id", "invalid offer id")
	}
	var row domain.Offer
	if err := GetDB(c).First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func getOffer(c echo.Context) error {
	row, err := findOffer(c)
	if err != nil {
		return handleServiceError(c, err, "Offer")
	}
	return ok(c, newOfferView(*row, time.Now()))
}

// apply validates the payload and copies it onto o
func (p *offerPayload) apply(db *gorm.DB, o *domain.Offer) error {
	verr := &domain.ValidationError{}
	code := strings.TrimSpace(p.Code)
	var count int64
	q := db.Model(&domain.Offer{}).Where("code = ?", code)
	if o.ID > 0 {
		q = q.Where("id <> ?", o.ID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		verr.Add("code", "an offer with this code already exists")
	}

	if !p.Discount.IsPositive() {
		verr.Add("discount", "must be greater than 0")
	} else if p.DiscountType == domain.DiscountPercentage && p.Discount.GreaterThan(decimal.NewFromInt(100)) {
		verr.Add("discount", "percentage must be at most 100")
	}
	if p.MinimumAmount.IsNegative() {
		verr.Add("minimum_amount", "must be at least 0")
	}
	from, err := dateparse.ParseLocal(strings.TrimSpace(p.ValidFrom))
	if err != nil {
		verr.Add("valid_from", "unrecognised date")
	}
	to, err := dateparse.ParseLocal(strings.TrimSpace(p.ValidTo))
	if err != nil {
		verr.Add("valid_to", "unrecognised date")
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		verr.Add("valid_to", "must be after valid_from")
	}
	if p.UsedCount > p.UsageLimit {
		verr.Add("used_count", "cannot exceed usage_limit")
	}
	if verr.HasErrors() {
		return verr
	}

	o.Code = code
	o.Name = strings.TrimSpace(p.Name)
	o.Description = strings.TrimSpace(p.Description)
	o.DiscountType = p.DiscountType
	o.Discount = p.Discount.Round(2)
	o.MinimumAmount = p.MinimumAmount.Round(2)
	o.ValidFrom = from
	o.ValidTo = to
	o.UsageLimit = p.UsageLimit
	o.UsedCount = p.UsedCount
	if p.IsActive != nil {
		o.IsActive = *p.IsActive
	}
	return nil
}

func createOffer(c echo.Context) error {
	var payload offerPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	db := GetDB(c)
	row := domain.Offer{IsActive: true}
	if err := payload.apply(db, &row); err != nil {
		return handleServiceError(c, err, "Invalid offer")
	}
	if err := db.Create(&row).Error; err != nil {
		return handleServiceError(c, err, "Failed to create offer")
	}
	zap.L().Info("offer created", zap.String("namespace", "adminapi"), zap.String("code", row.Code))
	return created(c, newOfferView(row, time.Now()))
}

func updateOffer(c echo.Context) error {
	row, err := findOffer(c)
	if err != nil {
		return handleServiceError(c, err, "Offer")
	}
	var payload offerPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	db := GetDB(c)
	if err := payload.apply(db, row); err != nil {
		return handleServiceError(c, err, "Invalid offer")
	}
	if err := db.Save(row).Error; err != nil {
		return handleServiceError(c, err, "Failed to update offer")
	}
	return ok(c, newOfferView(*row, time.Now()))
}

func deleteOffer(c echo.Context) error {
	row, err := findOffer(c)
	if err != nil {
		return handleServiceError(c, err, "Offer")
	}
	if err := GetDB(c).Delete(&domain.Offer{}, row.ID).Error; err != nil {
		return handleServiceError(c, err, "Failed to delete offer")
	}
	zap.L().Info("offer deleted", zap.String("namespace", "adminapi"), zap.String("code", row.Code))
	return c.NoContent(http.StatusNoContent)
}

// checkOffer evaluates the offer against a hypothetical order subtotal without using it
func checkOffer(c echo.Context) error {
	row, err := findOffer(c)
	if err != nil {
		return handleServiceError(c, err, "Offer")
	}
	subtotal, err := decimal.NewFromString(strings.TrimSpace(c.QueryParam("subtotal")))
	if err != nil || subtotal.IsNegative() {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "subtotal must be a non-negative decimal", nil)
	}
	result := offerCheck{Code: row.Code, Subtotal: subtotal, Discount: decimal.Zero, Total: subtotal}
	if row.IsUsable(time.Now(), subtotal) {
		result.Usable = true
		result.Discount = row.DiscountFor(subtotal)
		result.Total = subtotal.Sub(result.Discount)
	}
	return ok(c, result)
}
