package webserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const adminContextKey = "admin"

// AdminClaims identify a staff user on the admin api
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject
func (c *AdminClaims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// IssueToken signs an HS256 admin token valid for ttl
func IssueToken(secret string, userID int64, username string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	claims := &AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return signed, expires, err
}

// ParseToken validates signature and expiry of an admin token
func ParseToken(secret, token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// JWTMiddleware guards the admin api; paths in public skip the check
func JWTMiddleware(secret string, public ...string) echo.MiddlewareFunc {
	skip := map[string]bool{}
	for _, p := range public {
		skip[p] = true
	}
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: adminContextKey,
		Skipper: func(c echo.Context) bool {
			return skip[c.Path()] || skip[c.Request().URL.Path]
		},
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return ParseToken(secret, auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"error":   "UNAUTHORIZED",
				"message": "missing or invalid admin token",
			})
		},
	})
}

// CurrentAdmin returns the claims of the authenticated admin, nil outside the api
func CurrentAdmin(c echo.Context) *AdminClaims {
	claims, _ := c.Get(adminContextKey).(*AdminClaims)
	return claims
}
