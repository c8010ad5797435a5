// Package storetest builds throwaway databases and fixtures for package tests.
package storetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the full schema.
// A single connection keeps every statement on the same memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", common.UUID())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return db
}

func Category(t testing.TB, db *gorm.DB, name, slug string) *domain.Category {
	t.Helper()
	c := &domain.Category{Name: name, Slug: slug}
	require.NoError(t, db.Create(c).Error)
	return c
}

// ProductOpt tweaks a fixture product before insert
type ProductOpt func(p *domain.Product)

func Inactive() ProductOpt {
	return func(p *domain.Product) { p.IsActive = false }
}

func Featured() ProductOpt {
	return func(p *domain.Product) { p.Featured = true }
}

func Stock(n int) ProductOpt {
	return func(p *domain.Product) { p.Stock = n }
}

func Price(s string) ProductOpt {
	return func(p *domain.Product) { p.Price = decimal.RequireFromString(s) }
}

func Rating(s string) ProductOpt {
	return func(p *domain.Product) { p.Rating = decimal.RequireFromString(s) }
}

func Description(s string) ProductOpt {
	return func(p *domain.Product) { p.Description = s }
}

func CreatedAt(ts time.Time) ProductOpt {
	return func(p *domain.Product) { p.CreatedAt = ts }
}

// Product inserts an active product with stock 10 and price 10.00
func Product(t testing.TB, db *gorm.DB, c *domain.Category, name, slug string, opts ...ProductOpt) *domain.Product {
	t.Helper()
	p := &domain.Product{
		CategoryID: c.ID,
		Name:       name,
		Slug:       slug,
		Price:      decimal.RequireFromString("10.00"),
		Stock:      10,
		IsActive:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func User(t testing.TB, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:       common.UUIDint64(),
		Username: username,
		Email:    username + "@example.com",
		IsActive: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
