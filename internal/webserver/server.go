package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/talkincode/storefront/config"
	"go.uber.org/zap"
)

const ApiPrefix = "/api/v1"

const (
	// CSRFField names both the form field and the cookie carrying the csrf token
	CSRFField = "_csrf"
	// CSRFContextKey is where the token for the current request is stored
	CSRFContextKey = "csrf"
)

// notAPage matches requests outside the html storefront: the json api, files and metrics
func notAPage(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, ApiPrefix) ||
		strings.HasPrefix(path, "/media") ||
		strings.HasPrefix(path, "/static") ||
		path == "/metrics"
}

// CSRFToken returns the token to embed in forms rendered for c
func CSRFToken(c echo.Context) string {
	token, _ := c.Get(CSRFContextKey).(string)
	return token
}

// PageErrorHandler renders non-api errors, e.g. an html 404 page
type PageErrorHandler func(err error, c echo.Context)

// WebServer hosts the storefront pages and the admin api on one echo instance
type WebServer struct {
	root      *echo.Echo
	api       *echo.Group
	config    *config.AppConfig
	pageError PageErrorHandler
}

var (
	server *WebServer

	promOnce sync.Once
	prom     *prometheus.Prometheus
)

// Init builds the global server. Routes are added afterwards with the GET/POST and Api* helpers.
func Init(cfg *config.AppConfig) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.INFO)
	}
	e.JSONSerializer = &jsoniterSerializer{}
	e.Validator = NewValidator()

	s := &WebServer{root: e, config: cfg}
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: notAPage,
	}))
	e.Use(middleware.Recover())
	e.Use(ZapRequestLogger("web"))

	promOnce.Do(func() {
		prom = prometheus.NewPrometheus("storefront", func(c echo.Context) bool {
			return c.Path() == "/metrics"
		})
	})
	prom.Use(e)

	store := sessions.NewCookieStore([]byte(cfg.Web.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        notAPage,
		TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:" + CSRFField,
		ContextKey:     CSRFContextKey,
		CookieName:     CSRFField,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	e.Static("/media", cfg.GetMediaDir())

	s.api = e.Group(ApiPrefix, JWTMiddleware(cfg.Web.Secret, ApiPrefix+"/auth/login"))
	server = s
	return s
}

// Echo exposes the underlying router, mainly for tests
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

func Echo() *echo.Echo {
	return server.root
}

func SetRenderer(r echo.Renderer) {
	server.root.Renderer = r
}

func SetPageErrorHandler(h PageErrorHandler) {
	server.pageError = h
}

func (s *WebServer) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if !strings.HasPrefix(c.Request().URL.Path, ApiPrefix) && s.pageError != nil {
		s.pageError(err, c)
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	} else {
		zap.L().Error("unhandled request error",
			zap.String("namespace", "web"),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
	}
	errorCode := strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]interface{}{"error": errorCode, "message": message})
	}
	if err != nil {
		zap.L().Error("write error response failed", zap.Error(err))
	}
}

// Start blocks serving on the configured address
func Start() error {
	addr := fmt.Sprintf("%s:%d", server.config.Web.Host, server.config.Web.Port)
	zap.S().Infof("Storefront web server listening on %s", addr)
	err := server.root.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return server.root.Shutdown(ctx)
}

// Storefront routes

func GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.GET(path, h, m...)
}

func POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.POST(path, h, m...)
}

// Match registers h for several methods, e.g. GET and POST of one form page
func Match(methods []string, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.Match(methods, path, h, m...)
}

// Admin api routes, relative to ApiPrefix

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiPATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PATCH(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}
