package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Gateway struct {
		URL               string  `yaml:"url"`
		PollInterval      int64   `yaml:"poll_interval_seconds"`
		SendTimeout       int64   `yaml:"send_timeout_seconds"`
		SendRatePerMinute float64 `yaml:"send_rate_per_minute"`
	} `yaml:"gateway"`
	Scorer struct {
		URL     string `yaml:"url"`
		Timeout int64  `yaml:"timeout_seconds"`
	} `yaml:"scorer"`
	CopyGen struct {
		URL string `yaml:"url"`
	} `yaml:"copygen"`
	Notifier struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"notifier"`
	Classification struct {
		MinRelevance float64  `yaml:"min_relevance"`
		TargetStacks []string `yaml:"target_stacks"`
	} `yaml:"classification"`
	Outreach struct {
		MaxSendsPerDay  int     `yaml:"max_sends_per_day"`
		MinScore        float64 `yaml:"min_score"`
		MinDelaySeconds int64   `yaml:"min_delay_seconds"`
		MaxDelaySeconds int64   `yaml:"max_delay_seconds"`
		MaxSendAttempts int     `yaml:"max_send_attempts"`
		PassInterval    int64   `yaml:"pass_interval_seconds"`
	} `yaml:"outreach"`
	Replies struct {
		CheckInterval   int64 `yaml:"check_interval_seconds"`
		NoReplyTTLHours int64 `yaml:"no_reply_ttl_hours"`
	} `yaml:"replies"`
	Janitor struct {
		Interval           int64 `yaml:"interval_seconds"`
		DeadChannelAgeDays int   `yaml:"dead_channel_age_days"`
	} `yaml:"janitor"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Gateway.PollInterval = 30
	cfg.Gateway.SendTimeout = 15
	cfg.Gateway.SendRatePerMinute = 2
	cfg.Scorer.Timeout = 30
	cfg.Classification.MinRelevance = 0.6
	cfg.Outreach.MaxSendsPerDay = 10
	cfg.Outreach.MinScore = 0.75
	cfg.Outreach.MinDelaySeconds = 120
	cfg.Outreach.MaxDelaySeconds = 600
	cfg.Outreach.MaxSendAttempts = 3
	cfg.Outreach.PassInterval = 30
	cfg.Replies.CheckInterval = 60
	cfg.Replies.NoReplyTTLHours = 72
	cfg.Janitor.Interval = 3600
	cfg.Janitor.DeadChannelAgeDays = 7
	return cfg
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Outreach.MaxSendsPerDay <= 0 {
		return fmt.Errorf("outreach.max_sends_per_day must be a positive integer")
	}
	if c.Outreach.MinDelaySeconds > c.Outreach.MaxDelaySeconds {
		return fmt.Errorf("outreach.min_delay_seconds must not exceed max_delay_seconds")
	}
	return nil
}
