package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/account"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
)

type loginPayload struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", adminLogin)
	webserver.ApiGET("/auth/me", currentAdmin)
}

// adminLogin exchanges staff credentials for a bearer token
func adminLogin(c echo.Context) error {
	var payload loginPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}

	user, err := account.NewService(GetDB(c)).Authenticate(c.Request().Context(), payload.Username, payload.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}
	if err != nil {
		return handleServiceError(c, err, "Failed to authenticate")
	}
	if !user.IsStaff {
		zap.L().Warn("non-staff admin login refused",
			zap.String("namespace", "adminapi"),
			zap.String("username", user.Username))
		return fail(c, http.StatusForbidden, "NOT_STAFF", "Staff account required", nil)
	}

	cfg := GetAppContext(c).Config()
	ttl := time.Duration(cfg.Admin.TokenTTL) * time.Hour
	token, expires, err := webserver.IssueToken(cfg.Web.Secret, user.ID, user.Username, ttl)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err.Error())
	}
	return ok(c, loginResponse{Token: token, ExpiresAt: expires, User: user})
}

func currentAdmin(c echo.Context) error {
	claims := webserver.CurrentAdmin(c)
	if claims == nil {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid admin token", nil)
	}
	user, err := account.NewService(GetDB(c)).ByID(c.Request().Context(), claims.UserID())
	if err != nil {
		return handleServiceError(c, err, "Failed to load admin")
	}
	return ok(c, user)
}
