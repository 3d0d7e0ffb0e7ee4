package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/xo/dburl"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: M2M_MYSQL__HOST sets mysql.host.
const EnvPrefix = "M2M_"

// Config holds the migrator configuration
type Config struct {
	MySQL    MySQL    `yaml:"mysql"`
	Mongo    Mongo    `yaml:"mongo"`
	Pipeline Pipeline `yaml:"pipeline"`
	Schema   Schema   `yaml:"schema"`
	Journal  Journal  `yaml:"journal"`
	Log      Log      `yaml:"log"`
	Theme    string   `yaml:"theme"`
}

type MySQL struct {
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Database string            `yaml:"database"`
	Params   map[string]string `yaml:"params,omitempty"`
}

type Mongo struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Database   string `yaml:"database"`
	AuthSource string `yaml:"auth_source,omitempty"`
}

type Pipeline struct {
	// Workers bounds the tables processed concurrently.
	Workers   int           `yaml:"workers"`
	Retries   int           `yaml:"retries"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
	Validate  bool          `yaml:"validate"`
}

type Schema struct {
	// File is the schema crawler document describing the source database.
	File string `yaml:"file"`
}

type Journal struct {
	Path string `yaml:"path"`
}

type Log struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		MySQL: MySQL{Host: "127.0.0.1", Port: 3306, User: "root"},
		Mongo: Mongo{Host: "127.0.0.1", Port: 27017},
		Pipeline: Pipeline{
			Workers: 4,
			Retries: 3,
			Timeout: 30 * time.Minute,
		},
		Log:   Log{File: "mysql2mongo.log", Level: "info"},
		Theme: "default",
	}
}

func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"mysql.host":        d.MySQL.Host,
		"mysql.port":        d.MySQL.Port,
		"mysql.user":        d.MySQL.User,
		"mongo.host":        d.Mongo.Host,
		"mongo.port":        d.Mongo.Port,
		"pipeline.workers":  d.Pipeline.Workers,
		"pipeline.retries":  d.Pipeline.Retries,
		"pipeline.timeout":  d.Pipeline.Timeout.String(),
		"pipeline.validate": d.Pipeline.Validate,
		"log.file":          d.Log.File,
		"log.level":         d.Log.Level,
		"theme":             d.Theme,
	}
}

// configDir returns the config directory path
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mysql2mongo"), nil
}

// DefaultPath returns the config file path used when none is given
func DefaultPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load layers defaults, the YAML file at path, a .env file in the working
// directory and M2M_ environment variables, later sources winning. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return DefaultConfig(), err
		}
		path = p
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	_ = godotenv.Load()

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to path, or DefaultPath when path is empty
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// MySQLURL returns the source URL for database. An empty database uses the
// configured one.
func (c *Config) MySQLURL(database string) string {
	if database == "" {
		database = c.MySQL.Database
	}
	u := url.URL{
		Scheme: "mysql",
		Host:   net.JoinHostPort(c.MySQL.Host, strconv.Itoa(c.MySQL.Port)),
		Path:   "/" + database,
	}
	if c.MySQL.User != "" {
		u.User = url.UserPassword(c.MySQL.User, c.MySQL.Password)
	}
	if len(c.MySQL.Params) > 0 {
		q := url.Values{}
		for k, v := range c.MySQL.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// MongoURL returns the target connection string
func (c *Config) MongoURL() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Mongo.Host, strconv.Itoa(c.Mongo.Port)),
		Path:   "/" + c.Mongo.Database,
	}
	if c.Mongo.User != "" {
		u.User = url.UserPassword(c.Mongo.User, c.Mongo.Password)
	}
	if c.Mongo.AuthSource != "" {
		u.RawQuery = url.Values{"authSource": {c.Mongo.AuthSource}}.Encode()
	}
	return u.String()
}

// TargetDatabase is the MongoDB database name, defaulting to the source
// database name.
func (c *Config) TargetDatabase() string {
	if c.Mongo.Database != "" {
		return c.Mongo.Database
	}
	return c.MySQL.Database
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.MySQL.Database == "" {
		errs = append(errs, errors.New("mysql.database is required"))
	}
	if c.MySQL.Host == "" {
		errs = append(errs, errors.New("mysql.host is required"))
	}
	if c.Mongo.Host == "" {
		errs = append(errs, errors.New("mongo.host is required"))
	}
	if c.Schema.File == "" {
		errs = append(errs, errors.New("schema.file is required"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.Retries < 0 {
		errs = append(errs, fmt.Errorf("pipeline.retries must not be negative, got %d", c.Pipeline.Retries))
	}
	if c.Pipeline.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size must not be negative, got %d", c.Pipeline.BatchSize))
	}
	if _, err := dburl.Parse(c.MySQLURL("")); err != nil {
		errs = append(errs, fmt.Errorf("invalid mysql url: %w", err))
	}
	return errors.Join(errs...)
}

// RedactedYAML renders the config with passwords masked.
func (c *Config) RedactedYAML() ([]byte, error) {
	cp := *c
	if cp.MySQL.Password != "" {
		cp.MySQL.Password = "********"
	}
	if cp.Mongo.Password != "" {
		cp.Mongo.Password = "********"
	}
	data, err := yaml.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
