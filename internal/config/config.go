package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models desakita.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		// DevLogin enables the token-minting endpoint for local testing.
		DevLogin bool `yaml:"dev_login"`
	} `yaml:"auth"`
	Uploads struct {
		Dir              string `yaml:"dir"`
		MaxDocumentBytes int64  `yaml:"max_document_bytes"`
		MaxResultBytes   int64  `yaml:"max_result_bytes"`
		MaxDocuments     int    `yaml:"max_documents"`
	} `yaml:"uploads"`
	Listing struct {
		DefaultPageSize int `yaml:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size"`
	} `yaml:"listing"`
	DevMode bool `yaml:"dev_mode"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Uploads.Dir == "" {
		return fmt.Errorf("config.uploads.dir is required")
	}
	if c.Uploads.MaxDocumentBytes <= 0 {
		return fmt.Errorf("config.uploads.max_document_bytes must be positive")
	}
	if c.Uploads.MaxResultBytes <= 0 {
		return fmt.Errorf("config.uploads.max_result_bytes must be positive")
	}
	if c.Uploads.MaxDocuments <= 0 {
		return fmt.Errorf("config.uploads.max_documents must be positive")
	}
	if c.Listing.DefaultPageSize <= 0 || c.Listing.MaxPageSize <= 0 {
		return fmt.Errorf("config.listing page sizes must be positive")
	}
	if c.Listing.DefaultPageSize > c.Listing.MaxPageSize {
		return fmt.Errorf("config.listing.default_page_size exceeds max_page_size")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "desakita.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Fields omitted in
// the file keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultYAML returns the default config file contents.
func DefaultYAML() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  jwt_secret: ""
  dev_login: false

uploads:
  dir: uploads
  max_document_bytes: 5242880
  max_result_bytes: 10485760
  max_documents: 5

listing:
  default_page_size: 10
  max_page_size: 100

dev_mode: false
`
