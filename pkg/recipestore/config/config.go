package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ServerConfig represents server configuration for the recipe store
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	Mongo MongoConfig `yaml:"mongo"`

	// Recipe collections are provisioned once per language
	Languages []string `yaml:"languages" env:"SERVER_LANGUAGES" env-separator:"," env-default:"EN,SV"`

	// Schema resource directory
	SchemaDir string `yaml:"schema_dir" env:"SCHEMA_DIR" env-default:"schemas/database"`

	FileBucketName string `yaml:"file_bucket_name" env:"FILE_BUCKET_NAME" env-default:"__image_filebucket"`
}

// MongoConfig represents the MongoDB connection parameters
type MongoConfig struct {
	Host           string        `yaml:"host" env:"MONGO_HOST" env-default:"localhost"`
	Port           uint16        `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	Username       string        `yaml:"username" env:"MONGO_USERNAME"`
	Password       string        `yaml:"password" env:"MONGO_PASSWORD"`
	Database       string        `yaml:"database" env:"MONGO_DATABASE" env-default:"recipes"`
	AuthSource     string        `yaml:"auth_source" env:"MONGO_AUTH" env-default:"admin"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MONGO_CONNECT_TIMEOUT" env-default:"10s"`
}

// Load reads the configuration from the environment and validates it
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg.Languages = normalizeLanguages(cfg.Languages)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads the configuration from a file (yaml, json, toml or .env),
// with environment variables taking precedence
func LoadFile(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", path, err)
	}
	cfg.Languages = normalizeLanguages(cfg.Languages)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Mongo.Host == "" {
		return errors.New("mongo host is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo database is required")
	}
	if c.Mongo.Username == "" && c.Mongo.Password != "" {
		return errors.New("mongo password given without username")
	}
	if len(c.Languages) == 0 {
		return errors.New("at least one server language is required")
	}
	if c.SchemaDir == "" {
		return errors.New("schema directory is required")
	}
	if c.FileBucketName == "" {
		return errors.New("file bucket name is required")
	}
	return nil
}

// URI builds the MongoDB connection string
func (c MongoConfig) URI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	if c.AuthSource != "" && c.Username != "" {
		q := url.Values{}
		q.Set("authSource", c.AuthSource)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Redacted returns URI with the password masked, for logging
func (c MongoConfig) Redacted() string {
	if c.Password == "" {
		return c.URI()
	}
	masked := c
	masked.Password = "xxxxx"
	return masked.URI()
}

func normalizeLanguages(languages []string) []string {
	out := make([]string, 0, len(languages))
	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		code := strings.ToLower(strings.TrimSpace(lang))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
