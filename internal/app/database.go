package app

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/talkincode/storefront/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens postgres or sqlite per config. A relative sqlite name lives in the data dir.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}
	gcfg := &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Type) {
	case "sqlite":
		dbfile := cfg.Name
		if !filepath.IsAbs(dbfile) {
			dbfile = path.Join(workdir, "data", dbfile)
		}
		dialector = sqlite.Open(dbfile + "?_foreign_keys=1&_busy_timeout=5000")
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		zap.L().Fatal("database connection failed", zap.String("type", cfg.Type), zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.L().Fatal("database handle failed", zap.Error(err))
	}
	if strings.EqualFold(cfg.Type, "sqlite") {
		// sqlite allows one writer; serialize to avoid SQLITE_BUSY under load
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db
}
