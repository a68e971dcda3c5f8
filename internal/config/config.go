package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ALM_GITLAB_TOKEN.
const EnvPrefix = "ALM"

// Config holds application configuration.
// Values are populated from a .env file, ALM_* env vars, an optional config
// file and CLI flags bound by the command layer.
type Config struct {
	// GitLab configuration
	GitLabURL      string `mapstructure:"gitlab_url"`
	GitLabToken    string `mapstructure:"gitlab_token"`
	GitLabProjects string `mapstructure:"gitlab_projects"`

	// GitHub configuration
	GitHubURL   string `mapstructure:"github_url"`
	GitHubToken string `mapstructure:"github_token"`
	GitHubRepos string `mapstructure:"github_repos"`

	// Azure DevOps configuration; AzureURL is the organization URL
	AzureURL      string `mapstructure:"azure_url"`
	AzureToken    string `mapstructure:"azure_token"`
	AzureProjects string `mapstructure:"azure_projects"`

	ExtIssueRegex string        `mapstructure:"ext_issue_regex"`
	ProductionRun bool          `mapstructure:"production_run"`
	MaxPages      int           `mapstructure:"max_pages"`
	APIDelay      time.Duration `mapstructure:"api_delay"`

	OutputDir    string `mapstructure:"output_dir"`
	OutputSuffix string `mapstructure:"output_suffix"`
	UserDump     string `mapstructure:"user_dump"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
	SnapshotDir  string `mapstructure:"snapshot_dir"`
	Offline      bool   `mapstructure:"offline"`
	SettingsFile string `mapstructure:"settings_file"`
	Verbose      bool   `mapstructure:"verbose"`
}

// SetDefaults registers every key with its default so that env overrides
// are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gitlab_url", "https://gitlab.com")
	v.SetDefault("gitlab_token", "")
	v.SetDefault("gitlab_projects", "")
	v.SetDefault("github_url", "https://api.github.com")
	v.SetDefault("github_token", "")
	v.SetDefault("github_repos", "")
	v.SetDefault("azure_url", "")
	v.SetDefault("azure_token", "")
	v.SetDefault("azure_projects", "")
	v.SetDefault("ext_issue_regex", `([A-Z][A-Z0-9]+-\d+)`)
	v.SetDefault("production_run", false)
	v.SetDefault("max_pages", 1)
	v.SetDefault("api_delay", "0s")
	v.SetDefault("output_dir", "out")
	v.SetDefault("output_suffix", "")
	v.SetDefault("user_dump", "users.json")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("snapshot_dir", "")
	v.SetDefault("offline", false)
	v.SetDefault("settings_file", "")
	v.SetDefault("verbose", false)
}

// Load loads configuration through v. A missing .env file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max_pages must not be negative, got %d", cfg.MaxPages)
	}
	return &cfg, nil
}

// GetGitLabProjects returns the configured GitLab project ids.
func (c *Config) GetGitLabProjects() []string {
	return splitList(c.GitLabProjects)
}

// GetGitHubRepos returns the configured GitHub repositories (owner/repo).
func (c *Config) GetGitHubRepos() []string {
	return splitList(c.GitHubRepos)
}

// GetAzureProjects returns the configured Azure DevOps project names.
func (c *Config) GetAzureProjects() []string {
	return splitList(c.AzureProjects)
}

// HasGitLabConfig returns true if GitLab is configured.
func (c *Config) HasGitLabConfig() bool {
	return c.GitLabToken != "" && len(c.GetGitLabProjects()) > 0
}

// HasGitHubConfig returns true if GitHub is configured.
func (c *Config) HasGitHubConfig() bool {
	return c.GitHubToken != "" && len(c.GetGitHubRepos()) > 0
}

// HasAzureConfig returns true if Azure DevOps is configured.
func (c *Config) HasAzureConfig() bool {
	return c.AzureURL != "" && c.AzureToken != "" && len(c.GetAzureProjects()) > 0
}

// PageLimit returns the per-listing page bound: unlimited on a production
// run, MaxPages otherwise.
func (c *Config) PageLimit() int {
	if c.ProductionRun {
		return 0
	}
	return c.MaxPages
}

// ExtIssuePattern compiles the external issue reference regex. An empty
// setting disables extraction.
func (c *Config) ExtIssuePattern() (*regexp.Regexp, error) {
	if c.ExtIssueRegex == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.ExtIssueRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid ext_issue_regex: %w", err)
	}
	return re, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
