// Package config provides configuration loading and management for pagedoc.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents the complete pagedoc configuration
type Config struct {
	Pagination PaginationConfig `yaml:"pagination"`
	Storage    StorageConfig    `yaml:"storage"`
	Autosave   AutosaveConfig   `yaml:"autosave"`
	Inbox      InboxConfig      `yaml:"inbox"`
	Approval   ApprovalConfig   `yaml:"approval"`
	Log        LogConfig        `yaml:"log"`
}

// PaginationConfig configures how documents are split into pages
type PaginationConfig struct {
	// MaxBlocksPerPage is the block count at which a page is full (default: 50)
	MaxBlocksPerPage int `yaml:"maxBlocksPerPage"`
	// AutoCreatePages appends a page when typing fills the last one (default: true)
	AutoCreatePages *bool `yaml:"autoCreatePages,omitempty"`
	// PageInitDelay is waited after a bulk insertion adds a page
	PageInitDelay time.Duration `yaml:"pageInitDelay"`
	// FocusDelay defers editor focus after navigation
	FocusDelay time.Duration `yaml:"focusDelay"`
	// ErrorPolicy is "best-effort" or "strict"
	ErrorPolicy string `yaml:"errorPolicy"`
}

// AutoCreate reports the effective AutoCreatePages value.
func (p PaginationConfig) AutoCreate() bool {
	return p.AutoCreatePages == nil || *p.AutoCreatePages
}

// StorageConfig configures where documents live
type StorageConfig struct {
	// DataDir is the root for the database, exports and inbox
	// (default: ~/.local/share/pagedoc)
	DataDir string `yaml:"dataDir"`
	// DBPath overrides the SQLite file (default: <dataDir>/pagedoc.db)
	DBPath string `yaml:"dbPath"`
	// ExportDir overrides the markdown export directory (default: <dataDir>/exports)
	ExportDir string `yaml:"exportDir"`
	// MaxRevisions bounds saved history per document (default: 40)
	MaxRevisions int `yaml:"maxRevisions"`
}

// AutosaveConfig configures periodic saving of open documents
type AutosaveConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	// Schedule is a cron spec (default: "@every 30s")
	Schedule string `yaml:"schedule"`
}

// On reports the effective Enabled value.
func (a AutosaveConfig) On() bool {
	return a.Enabled == nil || *a.Enabled
}

// InboxConfig configures the drop-folder watcher
type InboxConfig struct {
	// Dir is the watched directory (default: <dataDir>/inbox)
	Dir string `yaml:"dir"`
	// Extensions lists accepted file extensions; add ".json" to accept block files
	Extensions []string `yaml:"extensions"`
	// Settle is how long a file must stay unchanged before it is read
	Settle time.Duration `yaml:"settle"`
}

// ApprovalConfig configures human approval of destructive MCP tools
type ApprovalConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `yaml:"level"`
	// Encoding is json or console (default: console)
	Encoding string `yaml:"encoding"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pagination: PaginationConfig{
			MaxBlocksPerPage: 50,
			PageInitDelay:    100 * time.Millisecond,
			FocusDelay:       50 * time.Millisecond,
			ErrorPolicy:      "best-effort",
		},
		Storage: StorageConfig{
			DataDir:      "", // ~/.local/share/pagedoc
			MaxRevisions: 40,
		},
		Autosave: AutosaveConfig{
			Schedule: "@every 30s",
		},
		Inbox: InboxConfig{
			Extensions: []string{".txt", ".md"},
			Settle:     200 * time.Millisecond,
		},
		Approval: ApprovalConfig{
			Timeout: 120 * time.Second,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Pagination.MaxBlocksPerPage < 1 {
		return fmt.Errorf("pagination.maxBlocksPerPage must be at least 1")
	}
	if c.Pagination.PageInitDelay < 0 || c.Pagination.FocusDelay < 0 {
		return fmt.Errorf("pagination delays must not be negative")
	}
	switch c.Pagination.ErrorPolicy {
	case "", "best-effort", "strict":
	default:
		return fmt.Errorf("pagination.errorPolicy must be best-effort or strict, got %q", c.Pagination.ErrorPolicy)
	}
	if c.Storage.MaxRevisions < 0 {
		return fmt.Errorf("storage.maxRevisions must not be negative")
	}
	if c.Autosave.On() && c.Autosave.Schedule == "" {
		return fmt.Errorf("autosave.schedule is required when autosave is enabled")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding)
	}
	return nil
}

// ResolvePaths fills in every path left empty, relative to home.
func (c *Config) ResolvePaths(home string) {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = filepath.Join(home, ".local", "share", "pagedoc")
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(c.Storage.DataDir, "pagedoc.db")
	}
	if c.Storage.ExportDir == "" {
		c.Storage.ExportDir = filepath.Join(c.Storage.DataDir, "exports")
	}
	if c.Inbox.Dir == "" {
		c.Inbox.Dir = filepath.Join(c.Storage.DataDir, "inbox")
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLayer reads only the values a file sets, for merging.
func loadLayer(path string) (*Config, error) {
	config := &Config{}
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Pagination
	if other.Pagination.MaxBlocksPerPage != 0 {
		c.Pagination.MaxBlocksPerPage = other.Pagination.MaxBlocksPerPage
	}
	if other.Pagination.AutoCreatePages != nil {
		c.Pagination.AutoCreatePages = other.Pagination.AutoCreatePages
	}
	if other.Pagination.PageInitDelay != 0 {
		c.Pagination.PageInitDelay = other.Pagination.PageInitDelay
	}
	if other.Pagination.FocusDelay != 0 {
		c.Pagination.FocusDelay = other.Pagination.FocusDelay
	}
	if other.Pagination.ErrorPolicy != "" {
		c.Pagination.ErrorPolicy = other.Pagination.ErrorPolicy
	}

	// Storage
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.DBPath != "" {
		c.Storage.DBPath = other.Storage.DBPath
	}
	if other.Storage.ExportDir != "" {
		c.Storage.ExportDir = other.Storage.ExportDir
	}
	if other.Storage.MaxRevisions != 0 {
		c.Storage.MaxRevisions = other.Storage.MaxRevisions
	}

	// Autosave
	if other.Autosave.Enabled != nil {
		c.Autosave.Enabled = other.Autosave.Enabled
	}
	if other.Autosave.Schedule != "" {
		c.Autosave.Schedule = other.Autosave.Schedule
	}

	// Inbox
	if other.Inbox.Dir != "" {
		c.Inbox.Dir = other.Inbox.Dir
	}
	if len(other.Inbox.Extensions) > 0 {
		c.Inbox.Extensions = other.Inbox.Extensions
	}
	if other.Inbox.Settle != 0 {
		c.Inbox.Settle = other.Inbox.Settle
	}

	// Approval
	if other.Approval.Timeout != 0 {
		c.Approval.Timeout = other.Approval.Timeout
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Encoding != "" {
		c.Log.Encoding = other.Log.Encoding
	}
}
