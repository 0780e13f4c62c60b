// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr     = ":8081"
	defaultRefreshSeconds = 300
	defaultAuthMode       = AuthModeHTTP
)

// Supported token verification modes.
const (
	AuthModeHTTP = "http"
	AuthModeJWT  = "jwt"
)

// AuthConfig selects and configures the token verifier.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	VerifyURL string `yaml:"verify_url"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Config is the relay's full runtime configuration. Values load from a YAML
// file and may be overridden per-field by environment variables, so secrets
// can stay out of the file.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	AdminChannelID   string `yaml:"admin_channel_id"`
	DefaultChannelID string `yaml:"default_channel_id"`

	MappingURL            string `yaml:"mapping_url"`
	MappingRefreshSeconds int    `yaml:"mapping_refresh_seconds"`

	Auth AuthConfig `yaml:"auth"`
}

// LoadConfig reads the YAML file at path (if it exists), applies
// environment overrides, fills defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.ListenAddr, "LISTEN_ADDR")
	overrideString(&c.SlackBotToken, "SLACK_BOT_TOKEN")
	overrideString(&c.SlackAppToken, "SLACK_APP_TOKEN")
	overrideString(&c.AdminChannelID, "SLACK_ADMIN_CHANNEL_ID")
	overrideString(&c.DefaultChannelID, "SLACK_DEFAULT_CHANNEL_ID")
	overrideString(&c.MappingURL, "CHANNEL_MAPPING_URL")
	overrideInt(&c.MappingRefreshSeconds, "MAPPING_REFRESH_SECONDS")
	overrideString(&c.Auth.Mode, "AUTH_MODE")
	overrideString(&c.Auth.VerifyURL, "AUTH_VERIFY_URL")
	overrideString(&c.Auth.JWTSecret, "AUTH_JWT_SECRET")
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.MappingRefreshSeconds <= 0 {
		c.MappingRefreshSeconds = defaultRefreshSeconds
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = defaultAuthMode
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.SlackBotToken == "" {
		return errors.New("slack_bot_token is required")
	}
	if c.SlackAppToken == "" {
		return errors.New("slack_app_token is required")
	}
	if c.DefaultChannelID == "" {
		return errors.New("default_channel_id is required")
	}
	switch c.Auth.Mode {
	case AuthModeHTTP:
		if c.Auth.VerifyURL == "" {
			return errors.New("auth.verify_url is required in http mode")
		}
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in jwt mode")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	return nil
}

// MappingRefreshInterval returns the refresh period as a duration.
func (c *Config) MappingRefreshInterval() time.Duration {
	return time.Duration(c.MappingRefreshSeconds) * time.Second
}

// Verifier constructs the token verifier selected by the auth config.
func (c *Config) Verifier() (TokenVerifier, error) {
	switch c.Auth.Mode {
	case AuthModeHTTP:
		return NewHTTPVerifier(c.Auth.VerifyURL), nil
	case AuthModeJWT:
		return NewJWTVerifier(c.Auth.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}
