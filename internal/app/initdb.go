package app

import (
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/account"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed.yml
var seedData []byte

func (a *Application) checkSuper() {
	superUsername := common.IfEmptyStr(a.appConfig.Admin.Username, "admin")
	defaultPassword := common.IfEmptyStr(a.appConfig.Admin.Password, "storefront")

	var user domain.User
	err := a.gormDB.Where("username = ?", superUsername).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, err := account.HashPassword(defaultPassword)
		if err != nil {
			zap.L().Error("failed to hash default admin password", zap.Error(err))
			return
		}
		if err := a.gormDB.Create(&domain.User{
			ID:       common.UUIDint64(),
			Username: superUsername,
			Email:    common.NA,
			Password: hashed,
			IsStaff:  true,
			IsActive: true,
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(user.Password) == ""
	resetStaff := !user.IsStaff
	resetActive := !user.IsActive
	if !resetPassword && !resetStaff && !resetActive {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
		"is_staff":   true,
		"is_active":  true,
	}
	if resetPassword {
		hashed, err := account.HashPassword(defaultPassword)
		if err != nil {
			zap.L().Error("failed to hash default admin password", zap.Error(err))
			return
		}
		updates["password"] = hashed
	}
	if err := a.gormDB.Model(&domain.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}
	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("staffReset", resetStaff),
		zap.Bool("activeReset", resetActive))
}

func (a *Application) checkSettings() {
	schemas, err := loadConfigSchemas()
	if err != nil {
		zap.L().Error("failed to load config schemas", zap.Error(err))
		return
	}

	for sortid, schema := range schemas.Schemas {
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}
		category, name := parts[0], parts[1]

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)
		if count > 0 {
			continue
		}
		a.gormDB.Create(&domain.SysConfig{
			Sort:   sortid,
			Type:   category,
			Name:   name,
			Value:  schema.Default,
			Remark: schema.Description,
		})
		zap.L().Info("initialized config",
			zap.String("key", schema.Key),
			zap.String("default", schema.Default))
	}
}

type seedCategory struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type seedProduct struct {
	Name             string `yaml:"name"`
	Category         string `yaml:"category"`
	Description      string `yaml:"description"`
	ShortDescription string `yaml:"short_description"`
	Price            string `yaml:"price"`
	OldPrice         string `yaml:"old_price"`
	Stock            int    `yaml:"stock"`
	Featured         bool   `yaml:"featured"`
	Rating           string `yaml:"rating"`
	ImageURL         string `yaml:"image_url"`
}

type seedOffer struct {
	Code          string `yaml:"code"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	DiscountType  string `yaml:"discount_type"`
	Discount      string `yaml:"discount"`
	MinimumAmount string `yaml:"minimum_amount"`
	UsageLimit    int    `yaml:"usage_limit"`
	ValidDays     int    `yaml:"valid_days"`
}

type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
	Products   []seedProduct  `yaml:"products"`
	Offers     []seedOffer    `yaml:"offers"`
}

// SeedResult counts the rows a seed run created
type SeedResult struct {
	Categories int
	Products   int
	Offers     int
}

// SeedDemoData loads the embedded sample catalog. Rows are matched by category name,
// product name and offer code, so running it twice creates nothing new.
func (a *Application) SeedDemoData() (*SeedResult, error) {
	var seed seedFile
	if err := yaml.Unmarshal(seedData, &seed); err != nil {
		return nil, err
	}

	result := &SeedResult{}
	err := a.gormDB.Transaction(func(tx *gorm.DB) error {
		categories := map[string]*domain.Category{}
		for _, sc := range seed.Categories {
			var c domain.Category
			err := tx.Where("name = ?", sc.Name).First(&c).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c = domain.Category{Name: sc.Name, Description: sc.Description}
				if c.Slug, err = catalog.UniqueSlug(tx.Statement.Context, tx, &domain.Category{}, sc.Name, 0); err != nil {
					return err
				}
				if err := tx.Create(&c).Error; err != nil {
					return err
				}
				result.Categories++
				zap.L().Info("created category", zap.String("name", c.Name))
			} else if err != nil {
				return err
			}
			categories[sc.Name] = &c
		}

		for _, sp := range seed.Products {
			category, ok := categories[sp.Category]
			if !ok {
				zap.L().Warn("seed product has unknown category", zap.String("name", sp.Name), zap.String("category", sp.Category))
				continue
			}
			var count int64
			if err := tx.Model(&domain.Product{}).Where("name = ?", sp.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			p := domain.Product{
				CategoryID:       category.ID,
				Name:             sp.Name,
				Description:      sp.Description,
				ShortDescription: sp.ShortDescription,
				Price:            decimal.RequireFromString(sp.Price),
				Stock:            sp.Stock,
				Featured:         sp.Featured,
				IsActive:         true,
				Rating:           decimal.RequireFromString(common.IfEmptyStr(sp.Rating, "0")),
				ImageURL:         sp.ImageURL,
			}
			if sp.OldPrice != "" {
				p.OldPrice = decimal.NewNullDecimal(decimal.RequireFromString(sp.OldPrice))
			}
			slug, err := catalog.UniqueSlug(tx.Statement.Context, tx, &domain.Product{}, sp.Name, 0)
			if err != nil {
				return err
			}
			p.Slug = slug
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			result.Products++
			zap.L().Info("created product", zap.String("name", p.Name))
		}

		now := time.Now()
		for _, so := range seed.Offers {
			var count int64
			if err := tx.Model(&domain.Offer{}).Where("code = ?", so.Code).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			o := domain.Offer{
				Code:          so.Code,
				Name:          so.Name,
				Description:   so.Description,
				DiscountType:  so.DiscountType,
				Discount:      decimal.RequireFromString(so.Discount),
				MinimumAmount: decimal.RequireFromString(so.MinimumAmount),
				ValidFrom:     now,
				ValidTo:       now.AddDate(0, 0, so.ValidDays),
				UsageLimit:    so.UsageLimit,
				IsActive:      true,
			}
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
			result.Offers++
			zap.L().Info("created offer", zap.String("code", o.Code), zap.String("name", o.Name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
