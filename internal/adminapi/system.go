package adminapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
)

const maxMetricHours = 24 * 7

type settingsResponse struct {
	Site     app.SiteSettings   `json:"site"`
	Settings []domain.SysConfig `json:"settings"`
}

type metricSeries struct {
	Name   string          `json:"name"`
	Hours  int             `json:"hours"`
	Points []metrics.Point `json:"points"`
}

func registerSystemRoutes() {
	webserver.ApiGET("/system/settings", listSettings)
	webserver.ApiPUT("/system/settings", updateSettings)
	webserver.ApiGET("/system/metrics", queryMetrics)
	webserver.ApiPOST("/system/ratings/reconcile", reconcileRatings)
}

func settingsSnapshot(c echo.Context) (*settingsResponse, error) {
	mgr := GetAppContext(c).ConfigMgr()
	rows, err := mgr.All()
	if err != nil {
		return nil, err
	}
	return &settingsResponse{Site: mgr.Site(), Settings: rows}, nil
}

func listSettings(c echo.Context) error {
	resp, err := settingsSnapshot(c)
	if err != nil {
		return handleServiceError(c, err, "Failed to query settings")
	}
	return ok(c, resp)
}

// updateSettings takes {"site.title": "...", ...}; unknown keys are rejected
func updateSettings(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings", err.Error())
	}
	if len(payload) == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Nothing to update", nil)
	}
	if err := GetAppContext(c).SaveSettings(payload); err != nil {
		return handleServiceError(c, err, "Invalid settings")
	}
	zap.L().Info("settings updated",
		zap.String("namespace", "adminapi"),
		zap.String("admin", adminName(c)),
		zap.Int("count", len(payload)))
	return listSettings(c)
}

// queryMetrics returns the samples of one series over the last hours, or the current
// counters and gauges when no name is given
func queryMetrics(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return ok(c, metrics.Snapshot())
	}
	hours := 1
	if raw := c.QueryParam("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h < 1 || h > maxMetricHours {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "hours must be between 1 and 168", nil)
		}
		hours = h
	}
	end := time.Now().Add(time.Second)
	points, err := metrics.Select(name, end.Add(-time.Duration(hours)*time.Hour), end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metrics", err.Error())
	}
	return ok(c, metricSeries{Name: name, Hours: hours, Points: points})
}

func reconcileRatings(c echo.Context) error {
	updated, err := GetAppContext(c).ReconcileRatings()
	if err != nil {
		return handleServiceError(c, err, "Failed to reconcile ratings")
	}
	return ok(c, map[string]int{"updated": updated})
}

func adminName(c echo.Context) string {
	if claims := webserver.CurrentAdmin(c); claims != nil {
		return claims.Username
	}
	return ""
}
