// Package config provides configuration management for leaguemirror.
// It defines the structure for YAML configuration files and handles
// loading, validation, environment overrides, and default value application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCommitMessage is the fixed message used for data refresh commits.
const DefaultCommitMessage = "Refresh data_raw: ESPN transactions, ESPN lineups, Sleeper transactions"

// Config is the top-level configuration structure for leaguemirror.
// It defines the data repository, the three pull jobs, logging, and metrics.
type Config struct {
	// Version is the configuration file format version
	Version string `yaml:"version"`
	// Repository defines the git data repository the refresh publishes to
	Repository RepositoryConfig `yaml:"repository"`
	// ESPN configures the ESPN transactions and lineups pull jobs
	ESPN ESPNJobConfig `yaml:"espn"`
	// Sleeper configures the Sleeper transactions pull job
	Sleeper SleeperJobConfig `yaml:"sleeper"`
	// Scripts are optional external pull scripts run after the built-in jobs
	Scripts []ScriptJobConfig `yaml:"scripts"`
	// Logging defines run report logging behavior
	Logging LoggingConfig `yaml:"logging"`
	// Metrics defines the optional Prometheus endpoint served during a run
	Metrics MetricsConfig `yaml:"metrics"`
}

// RepositoryConfig identifies the local data repository and how refresh
// commits are published.
type RepositoryConfig struct {
	// Path is the local working copy of the data repository
	Path string `yaml:"path"`
	// Remote is the git remote to push to
	Remote string `yaml:"remote"`
	// Branch is the remote default branch refreshes are pushed to
	Branch string `yaml:"branch"`
	// DataPath is the subtree the pull jobs write into; staging is limited to it
	DataPath string `yaml:"data_path"`
	// CommitMessage is the fixed message used for refresh commits
	CommitMessage string `yaml:"commit_message"`
}

// ESPNJobConfig parameterizes the ESPN transactions and lineups pullers.
type ESPNJobConfig struct {
	// LeagueID is the ESPN fantasy league identifier
	LeagueID string `yaml:"league_id"`
	// StartSeason is the first season to refresh (inclusive)
	StartSeason int `yaml:"start_season"`
	// EndSeason is the last season to refresh (inclusive)
	EndSeason int `yaml:"end_season"`
	// MinNonemptySeason is the earliest season expected to yield transactions;
	// seasons at or after it returning none fail the job (stale cookie guard).
	// 0 disables the check.
	MinNonemptySeason int `yaml:"min_nonempty_season"`
	// CookieFile is the path to the stored ESPN session cookie
	CookieFile string `yaml:"cookie_file"`
	// CookiePassthrough sends the stored cookie header verbatim instead of
	// extracting espn_s2/SWID
	CookiePassthrough bool `yaml:"cookie_passthrough"`
}

// SleeperJobConfig parameterizes the Sleeper transactions puller.
type SleeperJobConfig struct {
	// LeagueID is the Sleeper league identifier
	LeagueID string `yaml:"league_id"`
	// Season labels the output file for the refreshed season
	Season int `yaml:"season"`
	// MaxRound is the highest transaction round/week fetched
	MaxRound int `yaml:"max_round"`
}

// ScriptJobConfig defines an external pull script invocation.
type ScriptJobConfig struct {
	// Name identifies the job in logs and reports
	Name string `yaml:"name"`
	// Command is the argv of the external script
	Command []string `yaml:"command"`
	// Env is the extra environment passed to the script
	Env map[string]string `yaml:"env"`
	// Timeout bounds a single invocation (0 = no limit)
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig defines run report logging behavior.
type LoggingConfig struct {
	// Enabled determines if run reports are written to disk
	Enabled bool `yaml:"enabled"`
	// RunLogDir is the directory where run reports are stored
	RunLogDir string `yaml:"run_log_dir"`
}

// MetricsConfig defines the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled determines if the metrics server runs during a refresh
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address for /metrics
	Addr string `yaml:"addr"`
}

// NewDefaultConfig creates a configuration with sensible defaults.
// The default run log directory is ~/.leaguemirror/runs.
func NewDefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Config{
		Version: "1.0",
		Repository: RepositoryConfig{
			Remote:        "origin",
			Branch:        "main",
			DataPath:      "data_raw",
			CommitMessage: DefaultCommitMessage,
		},
		ESPN: ESPNJobConfig{
			StartSeason: 2015,
			EndSeason:   time.Now().Year(),
		},
		Sleeper: SleeperJobConfig{
			Season:   time.Now().Year(),
			MaxRound: 18,
		},
		Logging: LoggingConfig{
			Enabled:   true,
			RunLogDir: fmt.Sprintf("%s/.leaguemirror/runs", homeDir),
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// LoadConfig loads and validates a configuration from a YAML file.
// Environment variable overrides are applied before defaults and validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyEnv(os.Getenv)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration to a YAML file.
// The file is created with 0600 permissions (read/write for owner only).
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration fields from environment variables.
// The lookup function is injectable for tests; production callers pass
// os.Getenv. Recognized names match the pull scripts' historical
// environment surface: ESPN_LEAGUE_ID, START_SEASON, END_SEASON,
// MIN_NONEMPTY_SEASON, ESPN_COOKIE_FILE, ESPN_COOKIE_PASSTHROUGH,
// SLEEPER_LEAGUE_ID, SEASON, MAX_ROUND.
func (c *Config) ApplyEnv(lookup func(string) string) {
	if v := lookup("ESPN_LEAGUE_ID"); v != "" {
		c.ESPN.LeagueID = v
	}
	if n, ok := lookupInt(lookup, "START_SEASON"); ok {
		c.ESPN.StartSeason = n
	}
	if n, ok := lookupInt(lookup, "END_SEASON"); ok {
		c.ESPN.EndSeason = n
	}
	if n, ok := lookupInt(lookup, "MIN_NONEMPTY_SEASON"); ok {
		c.ESPN.MinNonemptySeason = n
	}
	if v := lookup("ESPN_COOKIE_FILE"); v != "" {
		c.ESPN.CookieFile = v
	}
	if v := lookup("ESPN_COOKIE_PASSTHROUGH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ESPN.CookiePassthrough = b
		}
	}
	if v := lookup("SLEEPER_LEAGUE_ID"); v != "" {
		c.Sleeper.LeagueID = v
	}
	if n, ok := lookupInt(lookup, "SEASON"); ok {
		c.Sleeper.Season = n
	}
	if n, ok := lookupInt(lookup, "MAX_ROUND"); ok {
		c.Sleeper.MaxRound = n
	}
}

func lookupInt(lookup func(string) string, name string) (int, bool) {
	v := lookup(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
// It ensures the repository and both leagues are identified and that
// season bounds are coherent.
func (c *Config) Validate() error {
	if c.Repository.Path == "" {
		return fmt.Errorf("repository.path must be set")
	}
	if c.Repository.DataPath == "" {
		return fmt.Errorf("repository.data_path cannot be empty")
	}

	if c.ESPN.LeagueID == "" {
		return fmt.Errorf("espn.league_id must be set (or ESPN_LEAGUE_ID)")
	}
	if c.ESPN.CookieFile == "" {
		return fmt.Errorf("espn.cookie_file must be set (or ESPN_COOKIE_FILE)")
	}
	if c.ESPN.StartSeason > c.ESPN.EndSeason {
		return fmt.Errorf("espn.start_season %d is after espn.end_season %d", c.ESPN.StartSeason, c.ESPN.EndSeason)
	}

	// The Sleeper league id may be omitted; the puller falls back to the
	// league id recorded in the previous season file under data_raw.
	if c.Sleeper.MaxRound < 1 {
		return fmt.Errorf("sleeper.max_round must be at least 1, got %d", c.Sleeper.MaxRound)
	}

	names := make(map[string]bool)
	for _, s := range c.Scripts {
		if s.Name == "" {
			return fmt.Errorf("script job name cannot be empty")
		}
		if len(s.Command) == 0 {
			return fmt.Errorf("script job %s has no command", s.Name)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate script job name: %s", s.Name)
		}
		names[s.Name] = true
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	if c.Repository.Remote == "" {
		c.Repository.Remote = "origin"
	}
	if c.Repository.Branch == "" {
		c.Repository.Branch = "main"
	}
	if c.Repository.DataPath == "" {
		c.Repository.DataPath = "data_raw"
	}
	if c.Repository.CommitMessage == "" {
		c.Repository.CommitMessage = DefaultCommitMessage
	}

	if c.ESPN.StartSeason == 0 {
		c.ESPN.StartSeason = 2015
	}
	if c.ESPN.EndSeason == 0 {
		c.ESPN.EndSeason = time.Now().Year()
	}

	if c.Sleeper.Season == 0 {
		c.Sleeper.Season = time.Now().Year()
	}
	if c.Sleeper.MaxRound == 0 {
		c.Sleeper.MaxRound = 18
	}

	if c.Logging.RunLogDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		c.Logging.RunLogDir = fmt.Sprintf("%s/.leaguemirror/runs", homeDir)
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}
