package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultConfigPath = "config.json"
	defaultPort       = 3000
	defaultDriver     = "sqlite3"
	defaultSQLiteDSN  = "selaski.db"
	defaultLogLevel   = "info"
	defaultUserTTL    = 10 // minutes
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type BasicConfig struct {
	Port        int      `json:"port"`
	Database    string   `json:"database"`
	LogLevel    string   `json:"log_level"`
	CORSOrigins []string `json:"cors_origins"`
}

// DatabaseConfig holds either a full DSN or the parts to build one.
type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	Params   string `json:"params"`
}

// RedisConfig enables the user cache when Host is set.
type RedisConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	UserTTLMin int    `json:"user_ttl_minutes"`
}

// Enabled reports whether a redis server is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

// envOverrides are applied on top of the file. Unset variables leave the file value alone.
type envOverrides struct {
	Port          int      `envconfig:"PORT"`
	Database      string   `envconfig:"SELASKI_DB"`
	DatabaseDSN   string   `envconfig:"DATABASE_DSN"`
	RedisHost     string   `envconfig:"REDIS_HOST"`
	RedisPort     int      `envconfig:"REDIS_PORT"`
	RedisPassword string   `envconfig:"REDIS_PASSWORD"`
	RedisDB       *int     `envconfig:"REDIS_DB"`
	LogLevel      string   `envconfig:"LOG_LEVEL"`
	CORSOrigins   []string `envconfig:"CORS_ORIGINS"`
}

// Load reads configuration from the provided path (defaults to config.json), then
// applies .env and environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := &Config{}
	baseDir := filepath.Dir(absPath)
	if err := readFile(absPath, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		baseDir, _ = os.Getwd()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.apply(env)
	cfg.setDefaults(baseDir)

	if _, ok := cfg.Databases[cfg.BasicConfig.Database]; !ok {
		return nil, fmt.Errorf("database config for %s not found", cfg.BasicConfig.Database)
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func (c *Config) apply(env envOverrides) {
	if env.Port != 0 {
		c.BasicConfig.Port = env.Port
	}
	if env.Database != "" {
		c.BasicConfig.Database = NormalizeDriver(env.Database)
	}
	if env.LogLevel != "" {
		c.BasicConfig.LogLevel = env.LogLevel
	}
	if len(env.CORSOrigins) > 0 {
		c.BasicConfig.CORSOrigins = env.CORSOrigins
	}
	if env.DatabaseDSN != "" {
		if c.Databases == nil {
			c.Databases = make(map[string]DatabaseConfig)
		}
		driver := NormalizeDriver(c.BasicConfig.Database)
		dbCfg := c.Databases[driver]
		dbCfg.DSN = env.DatabaseDSN
		c.Databases[driver] = dbCfg
	}
	if env.RedisHost != "" {
		c.Redis.Host = env.RedisHost
	}
	if env.RedisPort != 0 {
		c.Redis.Port = env.RedisPort
	}
	if env.RedisPassword != "" {
		c.Redis.Password = env.RedisPassword
	}
	if env.RedisDB != nil {
		c.Redis.DB = *env.RedisDB
	}
}

func (c *Config) setDefaults(baseDir string) {
	if c.BasicConfig.Port == 0 {
		c.BasicConfig.Port = defaultPort
	}
	c.BasicConfig.Database = NormalizeDriver(c.BasicConfig.Database)
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = defaultLogLevel
	}
	if c.Redis.UserTTLMin <= 0 {
		c.Redis.UserTTLMin = defaultUserTTL
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if c.BasicConfig.Database == defaultDriver {
		sqliteCfg := c.Databases[defaultDriver]
		if sqliteCfg.DSN == "" {
			sqliteCfg.DSN = defaultSQLiteDSN
		}
		if isRelativeFile(sqliteCfg.DSN) {
			sqliteCfg.DSN = filepath.Join(baseDir, sqliteCfg.DSN)
		}
		c.Databases[defaultDriver] = sqliteCfg
	}
}

// NormalizeDriver maps driver aliases onto the keys used in the databases section.
func NormalizeDriver(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// isRelativeFile reports whether a sqlite DSN is a plain relative file path.
func isRelativeFile(dsn string) bool {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return false
	}
	return !filepath.IsAbs(dsn)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.BasicConfig.Port)
}
