package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file.
const FileName = "sitebooks.yaml"

// Config represents the top-level sitebooks.yaml configuration.
type Config struct {
	Company     CompanyConfig     `yaml:"company"`
	Database    DatabaseConfig    `yaml:"database"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Import      ImportConfig      `yaml:"import"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Audit       AuditConfig       `yaml:"audit"`
	Permissions PermissionsConfig `yaml:"permissions,omitempty"`
}

// CompanyConfig is the company the CLI acts for.
type CompanyConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Database drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

// LedgerConfig holds posting rules.
type LedgerConfig struct {
	Tolerance            string `yaml:"tolerance"`
	DefaultPurchasesCode string `yaml:"default_purchases_code"`
	AccountsPayableCode  string `yaml:"accounts_payable_code"`
}

// ImportConfig controls batch imports.
type ImportConfig struct {
	Dir             string `yaml:"dir"`
	PostAfterCommit bool   `yaml:"post_after_commit"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// PermissionsConfig grants "resource:action" permissions to users through
// roles. Leaving it empty allows everything.
type PermissionsConfig struct {
	Roles map[string][]string `yaml:"roles,omitempty"`
	Users map[string][]string `yaml:"users,omitempty"`
}

// Load reads a sitebooks.yaml file from disk. Missing settings take their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("", "")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(companyID, companyName string) *Config {
	return &Config{
		Company: CompanyConfig{
			ID:   companyID,
			Name: companyName,
		},
		Database: DatabaseConfig{
			Driver: DriverMemory,
		},
		Ledger: LedgerConfig{
			Tolerance:            "0.01",
			DefaultPurchasesCode: "5010",
			AccountsPayableCode:  "2010",
		},
		Import: ImportConfig{
			Dir: "import",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Audit: AuditConfig{
			Path: "logs/audit-log.csv",
		},
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Company.ID) == "" {
		return fmt.Errorf("company.id is required")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverMySQL:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the mysql driver")
		}
		if _, err := mysql.ParseDSN(c.Database.DSN); err != nil {
			return fmt.Errorf("database.dsn: %w", err)
		}
	default:
		return fmt.Errorf("database.driver %q is not one of mysql, memory", c.Database.Driver)
	}
	if _, err := c.Ledger.ToleranceValue(); err != nil {
		return fmt.Errorf("ledger.tolerance: %w", err)
	}
	if c.Ledger.DefaultPurchasesCode == "" || c.Ledger.AccountsPayableCode == "" {
		return fmt.Errorf("ledger.default_purchases_code and ledger.accounts_payable_code are required")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q is not one of console, json", c.Log.Format)
	}
	return nil
}
