// Package config loads the fireq configuration file.
//
// The file is YAML (.yaml, .yml) or JSON with comments (.json, .jsonc).
// Defaults are applied after decoding, so a minimal file only needs the
// webhook secret and the status credentials. The loaded *Config is passed
// explicitly to every component that needs it
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort     = "8080"
	DefaultBase     = "sdbase"
	DefaultDomain   = "localhost"
	DefaultE2ECount = 4
	DefaultDesc     = "Superdesk Deploy"
)

// Config is the process-wide configuration, loaded once at startup
type Config struct {
	// Secret is the shared webhook HMAC secret
	Secret string `yaml:"secret" json:"secret"`
	// GithubAuth is "user:token" used for basic auth on status posts
	GithubAuth string `yaml:"github_auth" json:"github_auth"`

	Domain string `yaml:"domain" json:"domain"`
	// LogURL is the public prefix logs are served under
	LogURL string `yaml:"logurl" json:"logurl"`
	// Base is the execution environment every build is cloned from
	Base     string `yaml:"sdbase" json:"sdbase"`
	E2ECount int    `yaml:"e2e_count" json:"e2e_count"`

	// Root is the working directory commands run in; logs live under it
	Root string `yaml:"root" json:"root"`

	StatusContextPrefix string `yaml:"status_context_prefix" json:"status_context_prefix"`
	StatusDescription   string `yaml:"status_description" json:"status_description"`

	// FailFast cancels sibling tasks after the first failure instead of
	// letting every check run to completion
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
	Debug    bool `yaml:"debug" json:"debug"`

	// Repos overrides the built-in repository table when non-empty
	Repos map[string]Repo `yaml:"repos" json:"repos"`
	// Commands overrides individual command templates by name
	Commands map[string]string `yaml:"commands" json:"commands"`
}

// Repo maps one repository to its deploy settings
type Repo struct {
	Endpoint string   `yaml:"endpoint" json:"endpoint"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
	Targets  []string `yaml:"targets" json:"targets"`
	Env      string   `yaml:"env" json:"env"`
}

// Load reads and decodes the config file at path, then applies defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data according to the file extension ext
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default
func (c *Config) ApplyDefaults() {
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.LogURL == "" {
		c.LogURL = fmt.Sprintf("http://%s/", c.Domain)
	}
	if !strings.HasSuffix(c.LogURL, "/") {
		c.LogURL += "/"
	}
	if c.Base == "" {
		c.Base = DefaultBase
	}
	if c.E2ECount <= 0 {
		c.E2ECount = DefaultE2ECount
	}
	if c.Root == "" {
		c.Root = "."
	}
	if c.StatusDescription == "" {
		c.StatusDescription = DefaultDesc
	}
}

// Validate reports configuration that would make the server unusable
func (c *Config) Validate() error {
	var errs []error
	if c.Secret == "" {
		errs = append(errs, errors.New("secret is required"))
	}
	if c.GithubAuth != "" && !strings.Contains(c.GithubAuth, ":") {
		errs = append(errs, errors.New(`github_auth must look like "user:token"`))
	}
	for name, repo := range c.Repos {
		if repo.Endpoint == "" || repo.Prefix == "" {
			errs = append(errs, fmt.Errorf("repos[%s]: endpoint and prefix are required", name))
		}
	}
	return errors.Join(errs...)
}

// Port returns the listening port from the PORT environment variable,
// falling back to DefaultPort
func Port() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return DefaultPort
}
