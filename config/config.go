package config

import (
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/talkincode/storefront/pkg/common"
	"gopkg.in/yaml.v3"
)

// DBConfig Database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig storefront and admin api listener
type WebConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Secret      string `yaml:"secret"`
	SessionName string `yaml:"session_name"`
}

// AdminConfig default super operator and token policy
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TokenTTL int    `yaml:"token_ttl"` // hours
}

type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type AppConfig struct {
	System   SysConfig   `yaml:"system"`
	Web      WebConfig   `yaml:"web"`
	Database DBConfig    `yaml:"database"`
	Admin    AdminConfig `yaml:"admin"`
	Logger   LogConfig   `yaml:"logger"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetMediaDir() string {
	return path.Join(c.System.Workdir, "media")
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
	_ = os.MkdirAll(c.GetMediaDir(), 0o755)
}

func setEnvValue(name string, val *string) {
	evalue := os.Getenv(name)
	if evalue != "" {
		*val = evalue
	}
}

func setEnvBoolValue(name string, val *bool) {
	evalue := os.Getenv(name)
	if evalue != "" {
		*val = cast.ToBool(strings.TrimSpace(evalue))
	}
}

func setEnvIntValue(name string, val *int) {
	evalue := os.Getenv(name)
	if evalue == "" {
		return
	}
	p, err := cast.ToIntE(strings.TrimSpace(evalue))
	if err == nil {
		*val = p
	}
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "Storefront",
		Location: "Asia/Shanghai",
		Workdir:  "/var/storefront",
		Debug:    true,
	},
	Web: WebConfig{
		Host:        "0.0.0.0",
		Port:        8000,
		Secret:      "9b6de5cc-0731-4b3a-8c2a-3f5e1d7a2b41",
		SessionName: "storefront_session",
	},
	Database: DBConfig{
		Type:     "sqlite",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "storefront.db",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Admin: AdminConfig{
		Username: "admin",
		Password: "storefront",
		TokenTTL: 24,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/storefront/storefront.log",
	},
}

// LoadConfig reads cfile (or the default locations), then applies .env and
// STOREFRONT_* environment overrides.
func LoadConfig(cfile string) *AppConfig {
	if cfile == "" {
		cfile = "storefront.yml"
	}
	if !common.FileExists(cfile) {
		cfile = "/etc/storefront.yml"
	}
	cfg := new(AppConfig)
	if common.FileExists(cfile) {
		data := common.Must2(os.ReadFile(cfile))
		common.Must(yaml.Unmarshal(data.([]byte), cfg))
	} else {
		copied := *DefaultAppConfig
		cfg = &copied
	}

	_ = godotenv.Load()

	setEnvValue("STOREFRONT_SYSTEM_WORKER_DIR", &cfg.System.Workdir)
	setEnvValue("STOREFRONT_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("STOREFRONT_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("STOREFRONT_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("STOREFRONT_WEB_PORT", &cfg.Web.Port)
	setEnvValue("STOREFRONT_WEB_SECRET", &cfg.Web.Secret)

	setEnvValue("STOREFRONT_DB_TYPE", &cfg.Database.Type)
	setEnvValue("STOREFRONT_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("STOREFRONT_DB_PORT", &cfg.Database.Port)
	setEnvValue("STOREFRONT_DB_NAME", &cfg.Database.Name)
	setEnvValue("STOREFRONT_DB_USER", &cfg.Database.User)
	setEnvValue("STOREFRONT_DB_PWD", &cfg.Database.Passwd)
	setEnvBoolValue("STOREFRONT_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("STOREFRONT_ADMIN_USERNAME", &cfg.Admin.Username)
	setEnvValue("STOREFRONT_ADMIN_PASSWORD", &cfg.Admin.Password)

	setEnvValue("STOREFRONT_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("STOREFRONT_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	if cfg.Web.SessionName == "" {
		cfg.Web.SessionName = DefaultAppConfig.Web.SessionName
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = DefaultAppConfig.Admin.TokenTTL
	}

	cfg.initDirs()
	return cfg
}
