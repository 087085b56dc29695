package main

import (
	"fmt"
	"time"

	"launtel-backend/lib/notify"
	"launtel-backend/lib/sqliteutil"
)

type PortalConfig struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ServiceConfig struct {
	ServiceID   int    `json:"service_id"`
	AvcID       string `json:"avcid"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// PollingConfig holds cadences as time.ParseDuration strings, e.g.
// "6h" and "1m". Empty strings use the defaults.
type PollingConfig struct {
	NormalInterval string `json:"normal_interval"`
	ChangeInterval string `json:"change_interval"`
	FailFast       bool   `json:"fail_fast"`
}

func parseInterval(raw, name string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return d, nil
}

type NotifyConfig struct {
	Smtp            notify.SmtpConfig `json:"smtp"`
	To              []string          `json:"to"`
	LowBalanceFloor float64           `json:"low_balance_floor"`
}

type Config struct {
	Portal        PortalConfig      `json:"portal"`
	Service       ServiceConfig     `json:"service"`
	Polling       PollingConfig     `json:"polling"`
	Notify        NotifyConfig      `json:"notify"`
	Database      sqliteutil.Config `json:"database"`
	Port          int               `json:"port"`
	AccessToken   string            `json:"access_token"`
	RetentionDays int               `json:"retention_days"`
}

// Secrets lets credentials come from the environment instead of sitting
// in config.json5.
type Secrets struct {
	Username    string `envconfig:"LAUNTEL_USERNAME"`
	Password    string `envconfig:"LAUNTEL_PASSWORD"`
	AccessToken string `envconfig:"PLANWATCH_ACCESS_TOKEN"`
}

func (config *Config) applySecrets(secrets Secrets) {
	if secrets.Username != "" {
		config.Portal.Username = secrets.Username
	}
	if secrets.Password != "" {
		config.Portal.Password = secrets.Password
	}
	if secrets.AccessToken != "" {
		config.AccessToken = secrets.AccessToken
	}
}
