package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager
	bus           EventBus.Bus
	ratings       *catalog.RatingUpdater
}

// Ensure Application implements all interfaces
var (
	_ DBProvider            = (*Application)(nil)
	_ ConfigProvider        = (*Application)(nil)
	_ SettingsProvider      = (*Application)(nil)
	_ SchedulerProvider     = (*Application)(nil)
	_ ConfigManagerProvider = (*Application)(nil)
	_ EventBusProvider      = (*Application)(nil)
	_ AppContext            = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// InitLogger installs the global zap logger. With file logging on, json lines go to a
// rotating file under the log dir and a console copy goes to stdout.
func InitLogger(cfg *config.AppConfig) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.System.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}
	consoleEncoder := zap.NewDevelopmentEncoderConfig()
	if cfg.Logger.Mode == "production" {
		consoleEncoder = zap.NewProductionEncoderConfig()
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoder), zapcore.Lock(os.Stdout), level),
	}
	if cfg.Logger.FileEnable {
		cores = append(cores, rotatingCore(logFilename(cfg), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).
		With(zap.String("app", cfg.System.Appid))
	zap.ReplaceGlobals(logger)
}

func logFilename(cfg *config.AppConfig) string {
	if cfg.Logger.Filename != "" {
		return cfg.Logger.Filename
	}
	return filepath.Join(cfg.GetLogDir(), "storefront.log")
}

func rotatingCore(filename string, level zapcore.LevelEnabler) zapcore.Core {
	w := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), level)
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	InitLogger(cfg)

	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	db := getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	a.Bootstrap(db)
	a.initJob()
}

// Bootstrap migrates db, seeds the defaults and wires the event bus. It is the part of
// Init that tests run against an in-memory database.
func (a *Application) Bootstrap(db *gorm.DB) {
	a.gormDB = db
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}
	a.checkSuper()
	a.checkSettings()

	a.configManager = NewConfigManager(a.gormDB)

	a.bus = EventBus.New()
	a.ratings = catalog.NewRatingUpdater(a.gormDB)
	if err := a.ratings.Subscribe(a.bus); err != nil {
		zap.L().Error("subscribe rating updater failed", zap.Error(err))
	}
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	if err := db.Migrator().AutoMigrate(domain.Tables...); err != nil {
		zap.S().Error(err)
		return err
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// RatingUpdater returns the review -> rating subscriber
func (a *Application) RatingUpdater() *catalog.RatingUpdater {
	return a.ratings
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// SaveSettings stores "category.name" -> value pairs, rejecting undeclared keys
func (a *Application) SaveSettings(settings map[string]interface{}) error {
	verr := &domain.ValidationError{}
	for key, value := range settings {
		category, name, ok := splitConfigKey(key)
		if !ok {
			verr.Add(key, "expected category.name")
			continue
		}
		if err := a.configManager.Set(category, name, cast.ToString(value)); err != nil {
			var fieldErr *domain.ValidationError
			if errors.As(err, &fieldErr) {
				for f, msg := range fieldErr.Fields {
					verr.Add(f, msg)
				}
				continue
			}
			return err
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// StartBackgroundJobs stops the scheduler when ctx ends
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	if a.sched == nil {
		return
	}
	<-ctx.Done()
	stopped := a.sched.Stop()
	<-stopped.Done()
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.bus != nil && a.ratings != nil {
		_ = a.ratings.Unsubscribe(a.bus)
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
