package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var appCtx app.AppContext

// Init registers every admin api route against the application context
func Init(ctx app.AppContext) {
	appCtx = ctx
	registerAuthRoutes()
	registerCategoryRoutes()
	registerProductRoutes()
	registerProductImageRoutes()
	registerReviewRoutes()
	registerOfferRoutes()
	registerCartRoutes()
	registerSystemRoutes()
}

// GetAppContext returns the application the api was initialised with
func GetAppContext(c echo.Context) app.AppContext {
	return appCtx
}

// GetDB returns the database bound to the request context
func GetDB(c echo.Context) *gorm.DB {
	return appCtx.DB().WithContext(c.Request().Context())
}

// ListMeta describes one page of a list response
type ListMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// ListResponse wraps list results
type ListResponse struct {
	Data interface{} `json:"data"`
	Meta ListMeta    `json:"meta"`
}

// ErrorResponse is returned for every failed admin call
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"data": data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, map[string]interface{}{"data": data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, ListResponse{
		Data: data,
		Meta: ListMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Error: code, Message: message, Details: details})
}

// parsePagination reads page and perPage (or page_size), clamped to sane bounds
func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	raw := c.QueryParam("perPage")
	if raw == "" {
		raw = c.QueryParam("page_size")
	}
	pageSize, _ := strconv.Atoi(raw)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

// parseBoolFilter returns nil when the query parameter is absent or not a boolean
func parseBoolFilter(c echo.Context, name string) *bool {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// ilike is a case-insensitive LIKE on col, paired with likePattern
func ilike(col string) string {
	return "LOWER(" + col + ") LIKE ?" + catalog.LikeEscape
}

// likePattern matches q literally, so % and _ in user input are not wildcards
func likePattern(q string) string {
	return catalog.ContainsPattern(strings.ToLower(q))
}

func sortOrder(c echo.Context, allowed map[string]string, def string) string {
	col, found := allowed[c.QueryParam("sort")]
	if !found {
		col = allowed[def]
	}
	order := "DESC"
	switch c.QueryParam("order") {
	case "asc", "ASC":
		order = "ASC"
	}
	return col + " " + order
}

// bindAndValidate writes the error response itself and reports false when it did
func bindAndValidate(c echo.Context, payload interface{}) (bool, error) {
	if err := c.Bind(payload); err != nil {
		return false, fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request body", err.Error())
	}
	if err := c.Validate(payload); err != nil {
		return false, handleValidationError(c, err)
	}
	return true, nil
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", webserver.FieldErrors(err))
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
}

// handleServiceError maps the domain error taxonomy onto api responses
func handleServiceError(c echo.Context, err error, message string) error {
	var (
		notFound  *domain.NotFoundError
		stock     *domain.InsufficientStockError
		duplicate *domain.DuplicateReviewError
		invalid   *domain.ValidationError
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", message+": not found", nil)
	case errors.As(err, &stock):
		return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", stock.Error(), map[string]int{"available": stock.Available})
	case errors.As(err, &duplicate):
		return fail(c, http.StatusConflict, "DUPLICATE_REVIEW", duplicate.Error(), nil)
	case errors.As(err, &invalid):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", message, invalid.Fields)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fail(c, http.StatusConflict, "CONFLICT", message+": already exists", nil)
	default:
		zap.L().Error(message,
			zap.String("namespace", "adminapi"),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", message, err.Error())
	}
}
