// Package config loads the service configuration.
//
// Configuration comes from one YAML file named by the --config flag or the
// CONFERENCE_CONFIG environment variable. Without either, Default is used.
// Secrets are never read from the file when the matching environment
// variable is set: MONGODB_CONNSTRING, SIGN and SMTP_PASSWORD.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const ConfigEnv = "CONFERENCE_CONFIG"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverLocal    = "local"
	DriverMongo    = "mongo"
	DriverDynamoDB = "dynamodb"
)

// Mail drivers.
const (
	MailLog  = "log"
	MailSMTP = "smtp"
)

type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	Log          LogConfig          `yaml:"log"`
	Store        StoreConfig        `yaml:"store"`
	Cache        CacheConfig        `yaml:"cache"`
	Tasks        TasksConfig        `yaml:"tasks"`
	Announcement AnnouncementConfig `yaml:"announcement"`
	Auth         AuthConfig         `yaml:"auth"`
	Mail         MailConfig         `yaml:"mail"`
	Transaction  TransactionConfig  `yaml:"transaction"`
}

type LogConfig struct {
	// Level is a zerolog level name.
	Level string `yaml:"level"`

	// Pretty switches from JSON lines to colored console output.
	Pretty bool `yaml:"pretty"`
}

type StoreConfig struct {
	// Driver is one of memory, local, mongo, dynamodb.
	Driver string `yaml:"driver"`

	// Path is the snapshot file of the local driver.
	Path string `yaml:"path"`

	Mongo    MongoConfig    `yaml:"mongo"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

type MongoConfig struct {
	// URI falls back to MONGODB_CONNSTRING.
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type DynamoDBConfig struct {
	Table  string `yaml:"table"`
	Region string `yaml:"region"`

	// Endpoint overrides the service URL, e.g. http://localhost:8000.
	Endpoint string `yaml:"endpoint"`
}

type CacheConfig struct {
	// Driver is memory or mongo. The mongo cache shares the store's connection
	// settings.
	Driver string `yaml:"driver"`
}

type TasksConfig struct {
	Workers     int           `yaml:"workers"`
	Buffer      int           `yaml:"buffer"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`

	// Secret, when set, must be sent in X-Task-Secret to the task endpoints.
	Secret string `yaml:"secret"`
}

type AnnouncementConfig struct {
	// Interval between sold-out announcement refreshes. Zero disables the
	// in-process scheduler.
	Interval time.Duration `yaml:"interval"`
}

type AuthConfig struct {
	// SigningKey is the HS256 key for issued tokens. Falls back to SIGN.
	SigningKey string        `yaml:"signing_key"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	Accounts   []Account     `yaml:"accounts"`
}

// Account is a login accepted by /login.
type Account struct {
	Login        string `yaml:"login"`
	PasswordHash string `yaml:"password_hash"`
	Email        string `yaml:"email"`
	DisplayName  string `yaml:"display_name"`
}

type MailConfig struct {
	// Driver is log or smtp.
	Driver string     `yaml:"driver"`
	From   string     `yaml:"from"`
	SMTP   SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`

	// Password falls back to SMTP_PASSWORD.
	Password string `yaml:"password"`
}

type TransactionConfig struct {
	// MaxAttempts bounds how often a transaction is run when it keeps losing
	// optimistic races.
	MaxAttempts int `yaml:"max_attempts"`
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	return &Config{
		Listen: ":80",
		Log:    LogConfig{Level: "info"},
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "./database/conferences.cbor",
			Mongo:  MongoConfig{Database: "conference-central"},
			DynamoDB: DynamoDBConfig{
				Table: "conference_central",
			},
		},
		Cache: CacheConfig{Driver: DriverMemory},
		Tasks: TasksConfig{
			Workers:     2,
			Buffer:      64,
			MaxAttempts: 3,
			Backoff:     time.Second,
		},
		Announcement: AnnouncementConfig{Interval: time.Hour},
		Auth:         AuthConfig{TokenTTL: 8 * time.Hour},
		Mail:         MailConfig{Driver: MailLog, From: "noreply@conference-central.local"},
		Transaction:  TransactionConfig{MaxAttempts: 3},
	}
}

// Load reads the file at path, or at $CONFERENCE_CONFIG when path is empty,
// over the defaults. Secrets are then filled from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applySecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applySecrets() {
	if v, err := GetSecret("MONGODB_CONNSTRING"); err == nil {
		c.Store.Mongo.URI = v
	}
	if v, err := GetSecret("SIGN"); err == nil {
		c.Auth.SigningKey = v
	}
	if v, err := GetSecret("SMTP_PASSWORD"); err == nil {
		c.Mail.SMTP.Password = v
	}
}

// Validate rejects unknown drivers and missing connection settings and
// clamps numeric settings into their usable range.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory:
	case DriverLocal:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the local driver"))
		}
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("store.mongo.uri or MONGODB_CONNSTRING is required for the mongo driver"))
		}
	case DriverDynamoDB:
		if c.Store.DynamoDB.Table == "" {
			errs = append(errs, errors.New("store.dynamodb.table is required for the dynamodb driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Cache.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("the mongo cache needs store.mongo.uri or MONGODB_CONNSTRING"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.driver %q", c.Cache.Driver))
	}

	switch c.Mail.Driver {
	case MailLog:
	case MailSMTP:
		if c.Mail.SMTP.Host == "" {
			errs = append(errs, errors.New("mail.smtp.host is required for the smtp driver"))
		}
		if c.Mail.SMTP.Port == 0 {
			c.Mail.SMTP.Port = 587
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail.driver %q", c.Mail.Driver))
	}

	if c.Tasks.Workers < 1 {
		c.Tasks.Workers = 1
	}
	if c.Tasks.Buffer < 1 {
		c.Tasks.Buffer = 1
	}
	if c.Tasks.MaxAttempts < 1 {
		c.Tasks.MaxAttempts = 1
	}
	if c.Tasks.Backoff < 0 {
		c.Tasks.Backoff = 0
	}
	if c.Transaction.MaxAttempts < 1 {
		c.Transaction.MaxAttempts = 1
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 8 * time.Hour
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func GetSecret(key string) (string, error) {
	val, exist := os.LookupEnv(key)
	if exist {
		return val, nil
	}
	return "", fmt.Errorf("no env variable with key %v", key)
}
