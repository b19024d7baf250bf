package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Addr        string   `yaml:"addr"`
	LogLevel    string   `yaml:"log_level"`
	LogJSON     bool     `yaml:"log_json"`
	CorsOrigins []string `yaml:"cors_origins"`

	JwtTTL            time.Duration `yaml:"jwt_ttl"`
	RecentLoginWindow time.Duration `yaml:"recent_login_window"` // max token age for sensitive actions (factor unenroll)
	SmsCodeTTL        time.Duration `yaml:"sms_code_ttl"`
	SmsCodeLen        int           `yaml:"sms_code_len"`

	TxMaxRetries    int           `yaml:"tx_max_retries"`    // serializable transaction retry cap
	WatchBufferSize int           `yaml:"watch_buffer_size"` // snapshot channel depth per watcher
	LastMessageLen  int           `yaml:"last_message_len"`  // truncation for conversation summaries

	MediaRoot    string `yaml:"media_root"`
	MediaBaseURL string `yaml:"media_base_url"`

	PaymentMinAmount int    `yaml:"payment_min_amount"` // minor units
	PaymentCurrency  string `yaml:"payment_currency"`
}

type Private struct {
	Pg       Pg     `yaml:"pg"`
	Email    Email  `yaml:"email"`
	JwtKey   string `yaml:"jwt_key"`
	StripeSk string `yaml:"stripe_sk"`
}

// Email configures the SMTP relay for outgoing mail. An empty SMTPServer
// selects the log-backed sender instead.
type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"` // seconds, 0 means 10
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

func (c *Config) JwtTTL() time.Duration {
	return c.Public.JwtTTL
}

// Defaults fills zero values that would otherwise disable a subsystem.
func (c *Config) Defaults() {
	if c.Public.TxMaxRetries == 0 {
		c.Public.TxMaxRetries = 5
	}
	if c.Public.WatchBufferSize == 0 {
		c.Public.WatchBufferSize = 16
	}
	if c.Public.LastMessageLen == 0 {
		c.Public.LastMessageLen = 200
	}
	if c.Public.PaymentMinAmount == 0 {
		c.Public.PaymentMinAmount = 50
	}
	if c.Public.PaymentCurrency == "" {
		c.Public.PaymentCurrency = "AUD"
	}
	if c.Public.SmsCodeLen == 0 {
		c.Public.SmsCodeLen = 6
	}
	if c.Public.SmsCodeTTL == 0 {
		c.Public.SmsCodeTTL = 5 * time.Minute
	}
	if c.Public.RecentLoginWindow == 0 {
		c.Public.RecentLoginWindow = 5 * time.Minute
	}
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	cfg.Defaults()
	return cfg
}
