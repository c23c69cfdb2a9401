package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"HlxPurge/changeset"
	"HlxPurge/edge"
	"HlxPurge/scm"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RepoToken      string `yaml:"repoToken"`
	PurgeToken     string `yaml:"purgeToken"`
	HelixURL       string `yaml:"helixURL"`
	IgnorePrefix   string `yaml:"ignorePrefix"`
	Method         string `yaml:"purgeMethod"`
	MaxConnections int    `yaml:"maxConnections"`
	DefaultBranch  string `yaml:"defaultBranch"`

	PathsFile   string `yaml:"pathsFile"`
	FailureFile string `yaml:"failureFile"`
	MetricsFile string `yaml:"metricsFile"`

	Log        Log        `yaml:"log"`
	Cloudflare Cloudflare `yaml:"cloudflare"`
	Telegram   Telegram   `yaml:"telegram"`
}

type Log struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

type Cloudflare struct {
	ZoneID    string `yaml:"zoneID"`
	APIToken  string `yaml:"apiToken"`
	PublicURL string `yaml:"publicURL"`
}

type Telegram struct {
	BotToken string `yaml:"botToken"`
	ChatID   int64  `yaml:"chatID"`
}

// Inputs is the source of named action inputs.
type Inputs interface {
	GetInput(name string) string
}

// Default returns the configuration every option starts from.
func Default() Config {
	return Config{
		IgnorePrefix:   changeset.DefaultIgnorePrefix,
		Method:         edge.DefaultMethod,
		MaxConnections: edge.DefaultMaxConnections,
		DefaultBranch:  scm.DefaultBranch,
		Log:            Log{Env: "prod", Level: "info"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then every non-empty input.
func Load(path string, in Inputs) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}
	if in != nil {
		if err := cfg.applyInputs(in); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyInputs(in Inputs) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(in.GetInput(name)); v != "" {
			*dst = v
		}
	}
	str("repo_token", &c.RepoToken)
	str("purge_token", &c.PurgeToken)
	str("helix_url", &c.HelixURL)
	str("ignore_prefix", &c.IgnorePrefix)
	str("purge_method", &c.Method)
	str("default_branch", &c.DefaultBranch)
	str("paths_file", &c.PathsFile)
	str("failure_file", &c.FailureFile)
	str("metrics_file", &c.MetricsFile)
	str("log_env", &c.Log.Env)
	str("log_level", &c.Log.Level)
	str("cloudflare_zone_id", &c.Cloudflare.ZoneID)
	str("cloudflare_api_token", &c.Cloudflare.APIToken)
	str("cloudflare_public_url", &c.Cloudflare.PublicURL)
	str("telegram_bot_token", &c.Telegram.BotToken)

	if v := strings.TrimSpace(in.GetInput("max_connections")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("input max_connections: %w", err)
		}
		c.MaxConnections = n
	}
	if v := strings.TrimSpace(in.GetInput("telegram_chat_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("input telegram_chat_id: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Validate checks option ranges. The edge URL scheme is checked by the run
// itself so that it fails as a precondition, not as a config error.
func (c Config) Validate() error {
	if c.MaxConnections <= 0 {
		return errors.New("maxConnections must be positive")
	}
	if strings.TrimSpace(c.Method) == "" {
		return errors.New("purgeMethod must not be empty")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram chatID is required with a bot token")
	}
	return nil
}

func (c Config) CloudflareConfig() edge.CloudflareConfig {
	return edge.CloudflareConfig{
		ZoneID:    c.Cloudflare.ZoneID,
		APIToken:  c.Cloudflare.APIToken,
		PublicURL: c.Cloudflare.PublicURL,
	}
}

// EdgeURL is the explicit helix_url, or the preview origin derived from the
// event's branch and repository.
func (c Config) EdgeURL(ev scm.Event) (string, error) {
	if c.HelixURL != "" {
		return c.HelixURL, nil
	}
	owner, repo, err := ev.Repository()
	if err != nil {
		return "", fmt.Errorf("derive helix url: %w", err)
	}
	return edge.DeriveHelixURL(ev.Branch(c.DefaultBranch), repo, owner), nil
}
