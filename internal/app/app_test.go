package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/account"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/storetest"
	"github.com/talkincode/storefront/pkg/common"
	"github.com/talkincode/storefront/pkg/metrics"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.Admin.Username = "root"
	cfg.Admin.Password = "rootpass"
	a := NewApplication(&cfg)
	a.Bootstrap(storetest.NewDB(t))
	return a
}

func TestBootstrapCreatesSuperAdmin(t *testing.T) {
	a := newTestApp(t)

	var u domain.User
	require.NoError(t, a.DB().Where("username = ?", "root").First(&u).Error)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsActive)
	assert.True(t, account.CheckPassword(u.Password, "rootpass"))

	// demoted admin is repaired on the next check
	require.NoError(t, a.DB().Model(&u).Updates(map[string]interface{}{"is_staff": false}).Error)
	a.checkSuper()
	require.NoError(t, a.DB().First(&u, u.ID).Error)
	assert.True(t, u.IsStaff)

	var count int64
	require.NoError(t, a.DB().Model(&domain.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSettingsDefaults(t *testing.T) {
	a := newTestApp(t)

	site := a.ConfigMgr().Site()
	assert.Equal(t, "Storefront Administration", site.Header)
	assert.Equal(t, "Storefront Admin Portal", site.Title)
	assert.Equal(t, "Welcome to Storefront Administration", site.IndexTitle)
	assert.Equal(t, int64(4), a.GetSettingsInt64Value("shop", "reconcile_workers"))

	// running the check again creates no duplicates
	a.checkSettings()
	var count int64
	require.NoError(t, a.DB().Model(&domain.SysConfig{}).Where("type = ? AND name = ?", "site", "header").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSaveSettings(t *testing.T) {
	a := newTestApp(t)

	require.NoError(t, a.SaveSettings(map[string]interface{}{
		"site.header":            "Acme Admin",
		"shop.reconcile_workers": 8,
	}))
	assert.Equal(t, "Acme Admin", a.GetSettingsStringValue("site", "header"))
	assert.Equal(t, int64(8), a.GetSettingsInt64Value("shop", "reconcile_workers"))

	// persisted, not only cached
	require.NoError(t, a.ConfigMgr().Reload())
	assert.Equal(t, "Acme Admin", a.ConfigMgr().Site().Header)

	err := a.SaveSettings(map[string]interface{}{
		"site.unknown":           "x",
		"shop.reconcile_workers": "many",
		"nodot":                  "y",
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.Equal(t, int64(8), a.GetSettingsInt64Value("shop", "reconcile_workers"))
}

func TestSeedDemoDataIdempotent(t *testing.T) {
	a := newTestApp(t)

	res, err := a.SeedDemoData()
	require.NoError(t, err)
	assert.Equal(t, 6, res.Categories)
	assert.Equal(t, 20, res.Products)
	assert.Equal(t, 3, res.Offers)

	again, err := a.SeedDemoData()
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, *again)

	var p domain.Product
	require.NoError(t, a.DB().Where("slug = ?", "mystery-novel-the-lost-key").First(&p).Error)
	assert.True(t, p.IsActive)
	assert.Equal(t, "4.2", p.Rating.StringFixed(1))

	var phone domain.Product
	require.NoError(t, a.DB().Where("slug = ?", "smartphone-pro-max-256gb").First(&phone).Error)
	assert.Equal(t, 17, phone.DiscountPercent())

	var c domain.Category
	require.NoError(t, a.DB().Where("slug = ?", "home-kitchen").First(&c).Error)
	assert.Equal(t, "Home & Kitchen", c.Name)

	var save50 domain.Offer
	require.NoError(t, a.DB().Where("code = ?", "SAVE50").First(&save50).Error)
	assert.Equal(t, domain.DiscountFixed, save50.DiscountType)
	assert.True(t, save50.ValidTo.After(save50.ValidFrom))
}

func TestReviewEventUpdatesRating(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, metrics.InitMetrics(""))
	t.Cleanup(func() { _ = metrics.Close() })

	c := storetest.Category(t, a.DB(), "Books", "books")
	p := storetest.Product(t, a.DB(), c, "Novel", "novel")
	u := storetest.User(t, a.DB(), "reader")
	require.NoError(t, a.DB().Create(&domain.Review{
		ID: common.UUIDint64(), ProductID: p.ID, UserID: u.ID, Rating: 3, Title: "ok", Comment: "fine",
	}).Error)

	a.Bus().Publish(domain.TopicReviewSubmitted, p.ID)
	require.NoError(t, a.DB().First(p, p.ID).Error)
	assert.Equal(t, "3.0", p.Rating.StringFixed(1))

	// drift the stored rating and let the reconcile job repair it
	require.NoError(t, a.DB().Model(p).Update("rating", "1.0").Error)
	n, err := a.ReconcileRatings()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, a.DB().First(p, p.ID).Error)
	assert.Equal(t, "3.0", p.Rating.StringFixed(1))
	assert.Equal(t, int64(1), metrics.Counter(MetricRatingsSynced))
}

func TestMonitorTasksDoNotPanic(t *testing.T) {
	require.NoError(t, metrics.InitMetrics(""))
	t.Cleanup(func() { _ = metrics.Close() })
	a := newTestApp(t)
	assert.NotPanics(t, a.SchedSystemMonitorTask)
	assert.NotPanics(t, a.SchedProcessMonitorTask)
	assert.NotPanics(t, a.SchedRatingReconcileTask)
}
