// Package config loads and validates the engine's JSON configuration file,
// following the teacher's LoadConfig/setDefaults/validate split.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/inboxtriage/engine/engine"
	"github.com/inboxtriage/engine/mailer"
)

type LLMConfig struct {
	APIKey   string        `json:"api_key"`
	Endpoint string        `json:"endpoint"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout"`
}

type TopicsConfig struct {
	MustDoTopics   []string `json:"must_do_topics"`
	MustKnowTopics []string `json:"must_know_topics"`
	MustDoOther    bool     `json:"must_do_other"`
	MustKnowOther  bool     `json:"must_know_other"`
}

type PolicyConfig struct {
	UnreadOnly                   bool   `json:"unread_only"`
	InboxOnly                    bool   `json:"inbox_only"`
	MustDoLabel                  string `json:"must_do_label"`
	MustKnowLabel                string `json:"must_know_label"`
	MarkProcessedAsRead          bool   `json:"mark_processed_as_read"`
	RemoveUninterestingFromInbox bool   `json:"remove_uninteresting_from_inbox"`
}

type StoreConfig struct {
	DBPath string `json:"db_path"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	UseTLS   bool   `json:"use_tls"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// AppConfig is the full JSON config file shape.
type AppConfig struct {
	LLM                LLMConfig     `json:"llm"`
	Topics             TopicsConfig  `json:"topics"`
	Policy             PolicyConfig  `json:"policy"`
	TimeZone           string        `json:"time_zone"`
	AddonName          string        `json:"addon_name"`
	NotifyAddress      string        `json:"notify_address"`
	SenderName         string        `json:"sender_name"`
	DispatcherInterval time.Duration `json:"dispatcher_interval"`
	Store              StoreConfig   `json:"store"`
	SMTP               SMTPConfig    `json:"smtp"`
	Log                LogConfig     `json:"log"`
	Metrics            MetricsConfig `json:"metrics"`
}

// LoadConfig reads JSON config from disk and returns a parsed AppConfig.
// It never terminates the process; callers handle returned errors.
func LoadConfig(path string) (*AppConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("warning: failed to close config file: %v\n", closeErr)
		}
	}()

	var cfg AppConfig
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config JSON: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *AppConfig) setDefaults() {
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if c.DispatcherInterval == 0 {
		c.DispatcherInterval = time.Hour
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "inboxtriage.db"
	}
	if c.SMTP.Port == 0 {
		if c.SMTP.UseTLS {
			c.SMTP.Port = 587
		} else {
			c.SMTP.Port = 25
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 8090
	}
}

// validate enforces the hard requirements: a missing LLM API key or
// notify address, or a dispatcher interval under 1h, refuses to start.
func (c *AppConfig) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.NotifyAddress == "" {
		return fmt.Errorf("notify_address is required")
	}
	if c.DispatcherInterval < time.Hour {
		return fmt.Errorf("dispatcher_interval must be at least 1h (host cadence is coarse; see spec §4.1)")
	}
	return nil
}

// ToEngineConfig projects the loaded file config into the plain value type
// engine.Engine is built against, keeping the engine package free of any
// JSON/file-loading concern.
func (c *AppConfig) ToEngineConfig() engine.Config {
	return engine.Config{
		LLM: engine.LLMConfig{
			APIKey: c.LLM.APIKey, Endpoint: c.LLM.Endpoint, Model: c.LLM.Model, Timeout: c.LLM.Timeout,
		},
		Topics: engine.TopicsConfig{
			MustDoTopics: c.Topics.MustDoTopics, MustKnowTopics: c.Topics.MustKnowTopics,
			MustDoOther: c.Topics.MustDoOther, MustKnowOther: c.Topics.MustKnowOther,
		},
		Policy: engine.PolicyConfig{
			UnreadOnly: c.Policy.UnreadOnly, InboxOnly: c.Policy.InboxOnly,
			MustDoLabel: c.Policy.MustDoLabel, MustKnowLabel: c.Policy.MustKnowLabel,
			MarkProcessedAsRead: c.Policy.MarkProcessedAsRead,
			RemoveUninterestingFromInbox: c.Policy.RemoveUninterestingFromInbox,
		},
		TimeZone:           c.TimeZone,
		AddonName:          c.AddonName,
		NotifyAddress:      c.NotifyAddress,
		SenderName:         c.SenderName,
		DispatcherInterval: c.DispatcherInterval,
	}
}

// ToMailerConfig projects the SMTP section into mailer.Config.
func (c *AppConfig) ToMailerConfig() mailer.Config {
	return mailer.Config{
		Host: c.SMTP.Host, Port: c.SMTP.Port, Username: c.SMTP.Username,
		Password: c.SMTP.Password, From: c.SMTP.From, UseTLS: c.SMTP.UseTLS,
	}
}
