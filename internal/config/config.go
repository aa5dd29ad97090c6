package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Env            string
	LogMode        string
	DBPath         string
	BotToken       string
	AdminIDs       []int64
	QueueRetries   int
	QueueRetryWait time.Duration
	AuditPageSize  int
	RecalcBatch    int
}

// IsAdmin reports whether the telegram user id belongs to a configured admin.
func (c *Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Load reads configuration from the environment. A .env file is loaded first
// if present; values already set in the environment win.
func Load(dotEnvPaths ...string) (*Config, error) {
	if len(dotEnvPaths) == 0 {
		dotEnvPaths = []string{".env"}
	}
	for _, p := range dotEnvPaths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				return nil, errors.Wrapf(err, "loading %s", p)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", p)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("env", "dev")
	v.SetDefault("log_mode", "dev")
	v.SetDefault("db_path", "progress.db")
	v.SetDefault("bot_token", "")
	v.SetDefault("admin_ids", "")
	v.SetDefault("queue_retries", 3)
	v.SetDefault("queue_retry_wait", 100*time.Millisecond)
	v.SetDefault("audit_page_size", 20)
	v.SetDefault("recalc_batch", 50)
	v.AutomaticEnv()

	cfg := &Config{
		Env:            strings.ToLower(v.GetString("env")),
		LogMode:        v.GetString("log_mode"),
		DBPath:         v.GetString("db_path"),
		BotToken:       v.GetString("bot_token"),
		QueueRetries:   v.GetInt("queue_retries"),
		QueueRetryWait: v.GetDuration("queue_retry_wait"),
		AuditPageSize:  v.GetInt("audit_page_size"),
		RecalcBatch:    v.GetInt("recalc_batch"),
	}

	ids, err := parseAdminIDs(v.GetString("admin_ids"))
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	if cfg.QueueRetries < 1 {
		cfg.QueueRetries = 1
	}
	if cfg.AuditPageSize <= 0 {
		cfg.AuditPageSize = 20
	}
	if cfg.RecalcBatch <= 0 {
		cfg.RecalcBatch = 50
	}
	return cfg, nil
}
