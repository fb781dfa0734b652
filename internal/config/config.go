/*
Package config reads the server settings from a TOML file and VOTEMONITOR_* environment
variables. Environment values win over the file; a .env file in the working directory is
loaded into the environment first when present.
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/tudoramariei/votemonitor/internal/forms"
	"github.com/tudoramariei/votemonitor/internal/utils"
)

const (
	DbDriverMemory     = "memory"
	DbDriverSqlite3    = "sqlite3"
	DbDriverPostgresql = "postgres"
)

type Config struct {
	DB          DbConfig          `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
	Auth        AuthConfig        `toml:"auth"`
	Forms       FormsConfig       `toml:"forms"`
	Suggestions SuggestionsConfig `toml:"suggestions"`
}

// Duration is a time.Duration written as "20s" or "1m" in the file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// DbConfig selects the store. The memory driver keeps everything in process and persists
// to Snapshot on shutdown when it is set.
type DbConfig struct {
	Driver string
	// Path to the database file when driver is sqlite3
	File string
	// DSN overrides every connection field below when set
	DSN      string `toml:"dsn"`
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string `toml:"ssl_mode"`
	// Directory with migration files that replace the built-in ones
	Migrations string
	Snapshot   string
	// Snapshot loaded into a fresh sqlite3 database on first start
	ImportSnapshot string `toml:"import_snapshot"`
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	CORSOrigins     []string `toml:"cors_origins"`
	Commit          string
	BuildTime       string `toml:"build_time"`
}

type LogConfig struct {
	// panic, fatal, error, warn, info, debug or trace
	Level string
	// text or json
	Format string
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

type FormsConfig struct {
	// What a newly added language slot holds: "empty" or "default"
	SeedPolicy string `toml:"seed_policy"`
}

type SuggestionsConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string
	Timeout Duration
}

func (c *Config) valid() error {
	switch c.DB.Driver {
	case DbDriverMemory, DbDriverSqlite3, DbDriverPostgresql:
	default:
		drivers := []string{DbDriverMemory, DbDriverPostgresql, DbDriverSqlite3}
		return fmt.Errorf("config: invalid database.driver value %q (must be one of: %s)", c.DB.Driver, strings.Join(drivers, ", "))
	}
	if c.DB.Driver == DbDriverSqlite3 && c.DB.File == "" && c.DB.DSN == "" {
		return errors.New("config: missing database.file value")
	}
	if c.DB.Driver == DbDriverPostgresql && c.DB.DSN == "" {
		if c.DB.Host == "" {
			return errors.New("config: missing database.host value")
		}
		if c.DB.Name == "" {
			return errors.New("config: missing database.name value")
		}
		if c.DB.User == "" {
			return errors.New("config: missing database.user value")
		}
		if c.DB.Port <= 0 {
			return errors.New("config: invalid database.port value")
		}
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: missing server.addr value")
	}
	if c.Server.ShutdownTimeout.Duration < 0 {
		return errors.New("config: server.shutdown_timeout must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: invalid log.level value: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: invalid log.format value %q (must be text or json)", c.Log.Format)
	}
	if _, err := forms.ParseSeedPolicy(c.Forms.SeedPolicy); err != nil {
		return fmt.Errorf("config: invalid forms.seed_policy value: %w", err)
	}
	if c.Suggestions.APIKey != "" {
		if u, err := url.Parse(c.Suggestions.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: invalid suggestions.base_url value %q", c.Suggestions.BaseURL)
		}
	}
	return nil
}

// ConnectionString returns the DSN handed to the SQL driver.
func (d *DbConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case DbDriverPostgresql:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
		}
		return u.String()
	case DbDriverSqlite3:
		return d.File
	}
	return ""
}

func defaults() Config {
	return Config{
		DB: DbConfig{
			Driver:   DbDriverMemory,
			File:     filepath.FromSlash("./votemonitor.db"),
			Port:     5432,
			SSLMode:  "disable",
			Snapshot: filepath.FromSlash("./data/forms.json"),
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		Forms: FormsConfig{SeedPolicy: string(forms.SeedEmpty)},
		Suggestions: SuggestionsConfig{
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o-mini",
			Timeout: Duration{20 * time.Second},
		},
	}
}

// Load builds the config from defaults, then file (skipped when empty), then the
// environment, and checks the result.
func Load(file string) (Config, error) {
	conf := defaults()
	if file != "" {
		if _, err := toml.DecodeFile(file, &conf); err != nil {
			return conf, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	conf.applyEnv()
	if err := conf.valid(); err != nil {
		return conf, err
	}
	return conf, nil
}

// LoadDotEnv reads .env into the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var present []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

func (c *Config) applyEnv() {
	c.DB.Driver = utils.SafeEnv("VOTEMONITOR_DB_DRIVER", c.DB.Driver)
	c.DB.File = utils.SafeEnv("VOTEMONITOR_DB_FILE", c.DB.File)
	c.DB.DSN = utils.SafeEnv("VOTEMONITOR_DB_DSN", c.DB.DSN)
	c.DB.Migrations = utils.SafeEnv("VOTEMONITOR_MIGRATIONS_DIR", c.DB.Migrations)
	c.DB.Snapshot = utils.SafeEnv("VOTEMONITOR_SNAPSHOT", c.DB.Snapshot)
	c.DB.ImportSnapshot = utils.SafeEnv("VOTEMONITOR_IMPORT_SNAPSHOT", c.DB.ImportSnapshot)
	c.Server.Addr = utils.SafeEnv("VOTEMONITOR_ADDR", c.Server.Addr)
	c.Server.ShutdownTimeout.Duration = utils.SafeEnvDuration("VOTEMONITOR_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout.Duration)
	if v := utils.SafeEnv("VOTEMONITOR_CORS_ORIGINS", ""); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	c.Server.Commit = utils.SafeEnv("VOTEMONITOR_COMMIT", c.Server.Commit)
	c.Server.BuildTime = utils.SafeEnv("VOTEMONITOR_BUILD_TIME", c.Server.BuildTime)
	c.Log.Level = strings.ToLower(utils.SafeEnv("VOTEMONITOR_LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(utils.SafeEnv("VOTEMONITOR_LOG_FORMAT", c.Log.Format))
	c.Auth.JWTSecret = utils.SafeEnv("VOTEMONITOR_JWT_SECRET", c.Auth.JWTSecret)
	c.Forms.SeedPolicy = utils.SafeEnv("VOTEMONITOR_SEED_POLICY", c.Forms.SeedPolicy)
	c.Suggestions.BaseURL = utils.SafeEnv("VOTEMONITOR_SUGGEST_URL", c.Suggestions.BaseURL)
	c.Suggestions.APIKey = utils.SafeEnv("VOTEMONITOR_SUGGEST_KEY", c.Suggestions.APIKey)
	c.Suggestions.Model = utils.SafeEnv("VOTEMONITOR_SUGGEST_MODEL", c.Suggestions.Model)
	c.Suggestions.Timeout.Duration = utils.SafeEnvDuration("VOTEMONITOR_SUGGEST_TIMEOUT", c.Suggestions.Timeout.Duration)
}

// SetupLogging applies the level and formatter to the standard logrus logger.
func (c LogConfig) SetupLogging() {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
