// Package config loads and validates the monitor configuration from a YAML or
// TOML file, with values optionally pulled from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/repo-monitor/internal/domain"
)

const DefaultPath = "config.yaml"

type Config struct {
	Repository RepositoryConfig `yaml:"repository" toml:"repository"`
	Monitoring MonitoringConfig `yaml:"monitoring" toml:"monitoring"`
	Email      EmailConfig      `yaml:"email" toml:"email"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Path       string           `yaml:"-" toml:"-"`
}

type RepositoryConfig struct {
	Owner string `yaml:"owner" toml:"owner"`
	Name  string `yaml:"name" toml:"name"`
	Token string `yaml:"token" toml:"token"`
}

type MonitoringConfig struct {
	IssueThresholdDays int `yaml:"issue_threshold_days" toml:"issue_threshold_days"`
	CheckIntervalHours int `yaml:"check_interval_hours" toml:"check_interval_hours"`
	PRLookbackHours    int `yaml:"pr_lookback_hours" toml:"pr_lookback_hours"`
}

type EmailConfig struct {
	SMTPHost   string   `yaml:"smtp_host" toml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port" toml:"smtp_port"`
	Username   string   `yaml:"username" toml:"username"`
	Password   string   `yaml:"password" toml:"password"`
	From       string   `yaml:"from" toml:"from"`
	Recipients []string `yaml:"recipients" toml:"recipients"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path" toml:"db_path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "state.db"
	}
	return filepath.Join(home, ".local", "share", "repo-monitor", "state.db")
}

func defaults() *Config {
	return &Config{
		Monitoring: MonitoringConfig{
			IssueThresholdDays: 7,
			CheckIntervalHours: 6,
			PRLookbackHours:    24,
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Storage: StorageConfig{DBPath: defaultDBPath()},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// Load reads the configuration file, substitutes ${NAME} values from the
// environment (after loading the .env next to the file), applies overrides and
// validates the result.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	cfg.Path = configPath
	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.substituteEnv(); err != nil {
		return nil, err
	}

	if cfg.Repository.Token == "" {
		cfg.Repository.Token = os.Getenv("GITHUB_TOKEN")
	}
	if dbPath := os.Getenv("REPO_MONITOR_DB"); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = defaultDBPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// substituteEnv replaces every string value of the exact form ${NAME}.
func (c *Config) substituteEnv() error {
	fields := []*string{
		&c.Repository.Owner, &c.Repository.Name, &c.Repository.Token,
		&c.Email.SMTPHost, &c.Email.Username, &c.Email.Password, &c.Email.From,
		&c.Storage.DBPath, &c.Server.Addr,
	}
	for i := range c.Email.Recipients {
		fields = append(fields, &c.Email.Recipients[i])
	}
	for _, f := range fields {
		v, err := expand(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

func expand(s string) (string, error) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s, nil
	}
	name := s[2 : len(s)-1]
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s not found", name)
	}
	return v, nil
}

// Validate reports every missing or out-of-range field.
func (c *Config) Validate() error {
	var errs []error
	if c.Repository.Owner == "" {
		errs = append(errs, errors.New("repository.owner is required"))
	}
	if c.Repository.Name == "" {
		errs = append(errs, errors.New("repository.name is required"))
	}
	if c.Repository.Token == "" {
		errs = append(errs, errors.New("repository.token is required (or set GITHUB_TOKEN)"))
	}
	if c.Monitoring.IssueThresholdDays <= 0 {
		errs = append(errs, errors.New("monitoring.issue_threshold_days must be a positive integer"))
	}
	if c.Monitoring.CheckIntervalHours <= 0 {
		errs = append(errs, errors.New("monitoring.check_interval_hours must be a positive integer"))
	}
	if c.Monitoring.PRLookbackHours <= 0 {
		errs = append(errs, errors.New("monitoring.pr_lookback_hours must be a positive integer"))
	}
	if c.Email.SMTPHost == "" {
		errs = append(errs, errors.New("email.smtp_host is required"))
	}
	if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
		errs = append(errs, errors.New("email.smtp_port must be between 1 and 65535"))
	}
	if len(c.Email.Recipients) == 0 {
		errs = append(errs, errors.New("at least one email recipient must be specified"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// InitialState builds a fresh MonitorState for one cycle.
func (c *Config) InitialState() *domain.MonitorState {
	return &domain.MonitorState{
		Owner:         c.Repository.Owner,
		Name:          c.Repository.Name,
		ThresholdDays: c.Monitoring.IssueThresholdDays,
		Recipients:    append([]string(nil), c.Email.Recipients...),
	}
}
