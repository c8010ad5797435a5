package app

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/talkincode/storefront/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed config_schemas.yml
var configSchemasData []byte

// ConfigSchema describes one sys_config entry and its default
type ConfigSchema struct {
	Key         string `yaml:"key"`
	Type        string `yaml:"type"`
	Default     string `yaml:"default"`
	Description string `yaml:"description"`
}

type ConfigSchemas struct {
	Schemas []ConfigSchema `yaml:"schemas"`
}

func loadConfigSchemas() (*ConfigSchemas, error) {
	var s ConfigSchemas
	if err := yaml.Unmarshal(configSchemasData, &s); err != nil {
		return nil, errors.Wrap(err, "parse config schemas")
	}
	return &s, nil
}

// SiteSettings admin branding, stored in the "site" category
type SiteSettings struct {
	Header     string `mapstructure:"header" json:"header"`
	Title      string `mapstructure:"title" json:"title"`
	IndexTitle string `mapstructure:"index_title" json:"index_title"`
}

// ConfigManager caches sys_config rows keyed by "category.name"
type ConfigManager struct {
	db    *gorm.DB
	mu    sync.RWMutex
	cache map[string]string
}

func NewConfigManager(db *gorm.DB) *ConfigManager {
	m := &ConfigManager{db: db, cache: map[string]string{}}
	if err := m.Reload(); err != nil {
		zap.L().Error("load sys config failed", zap.Error(err))
	}
	return m
}

func configKey(category, name string) string {
	return category + "." + name
}

func splitConfigKey(key string) (category, name string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(key), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Reload replaces the cache with the table contents
func (m *ConfigManager) Reload() error {
	var rows []domain.SysConfig
	if err := m.db.Order("sort ASC").Find(&rows).Error; err != nil {
		return errors.Wrap(err, "query sys config")
	}
	cache := make(map[string]string, len(rows))
	for _, r := range rows {
		cache[configKey(r.Type, r.Name)] = r.Value
	}
	m.mu.Lock()
	m.cache = cache
	m.mu.Unlock()
	return nil
}

func (m *ConfigManager) GetString(category, name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache[configKey(category, name)]
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(strings.TrimSpace(m.GetString(category, name)))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(strings.TrimSpace(m.GetString(category, name)))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(strings.TrimSpace(m.GetString(category, name)))
}

// Category returns every name -> value of category
func (m *ConfigManager) Category(category string) map[string]interface{} {
	prefix := category + "."
	out := map[string]interface{}{}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.cache {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Site decodes the "site" category
func (m *ConfigManager) Site() SiteSettings {
	var s SiteSettings
	if err := mapstructure.Decode(m.Category("site"), &s); err != nil {
		zap.L().Warn("decode site settings failed", zap.Error(err))
	}
	return s
}

// Set upserts one value. Only keys declared in config_schemas.yml are accepted.
func (m *ConfigManager) Set(category, name, value string) error {
	schemas, err := loadConfigSchemas()
	if err != nil {
		return err
	}
	var schema *ConfigSchema
	for i := range schemas.Schemas {
		if schemas.Schemas[i].Key == configKey(category, name) {
			schema = &schemas.Schemas[i]
			break
		}
	}
	if schema == nil {
		return domain.NewValidationError(configKey(category, name), "unknown setting")
	}
	if schema.Type == "int" {
		if _, err := cast.ToInt64E(strings.TrimSpace(value)); err != nil {
			return domain.NewValidationError(schema.Key, "must be an integer")
		}
	}

	res := m.db.Model(&domain.SysConfig{}).
		Where("type = ? AND name = ?", category, name).
		Update("value", value)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update sys config")
	}
	if res.RowsAffected == 0 {
		if err := m.db.Create(&domain.SysConfig{
			Type:   category,
			Name:   name,
			Value:  value,
			Remark: schema.Description,
		}).Error; err != nil {
			return errors.Wrap(err, "create sys config")
		}
	}

	m.mu.Lock()
	m.cache[configKey(category, name)] = value
	m.mu.Unlock()
	return nil
}

// All returns every row ordered for display
func (m *ConfigManager) All() ([]domain.SysConfig, error) {
	var rows []domain.SysConfig
	err := m.db.Order("sort ASC, id ASC").Find(&rows).Error
	return rows, errors.Wrap(err, "query sys config")
}
