// Package config provides service configuration loading for the messaging
// and AI collaborators.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServiceConfig is the structure of the services.yaml file: credentials and
// endpoints for the external services node handlers talk to.
type ServiceConfig struct {
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Email    EmailConfig    `yaml:"email"`
	AI       AIConfig       `yaml:"ai"`
}

// WhatsAppConfig configures the WhatsApp Business Cloud API client.
type WhatsAppConfig struct {
	BaseURL       string `yaml:"base_url"`
	PhoneNumberID string `yaml:"phone_number_id"`
	Token         string `yaml:"token"`
}

// EmailConfig configures the transactional email sender.
type EmailConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
}

// AIConfig configures the LLM client.
type AIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// LoadServiceConfig loads service configuration from a YAML file.
func LoadServiceConfig(filepath string) (ServiceConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var config ServiceConfig

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&config)

	return config, nil
}

// LoadServiceConfigOrDefault attempts to load service config from file,
// falling back to defaults if the file doesn't exist.
func LoadServiceConfigOrDefault(filepath string) ServiceConfig {
	config, err := LoadServiceConfig(filepath)
	if err != nil {
		config = ServiceConfig{}
		applyDefaults(&config)
	}

	return config
}

func applyDefaults(config *ServiceConfig) {
	if config.WhatsApp.BaseURL == "" {
		config.WhatsApp.BaseURL = "https://graph.facebook.com/v20.0"
	}

	if config.AI.BaseURL == "" {
		config.AI.BaseURL = "https://api.openai.com/v1"
	}

	if config.AI.Model == "" {
		config.AI.Model = "gpt-4o-mini"
	}

	if config.Email.From == "" {
		config.Email.From = "flows@flowdeck.io"
	}
}

// ValidateServiceConfig checks that every configured service has the
// credentials it needs. Empty sections are allowed; the matching node
// handlers will fail at execution time instead.
func ValidateServiceConfig(config ServiceConfig) error {
	if config.WhatsApp.PhoneNumberID != "" && config.WhatsApp.Token == "" {
		return fmt.Errorf("whatsapp: token is required when phone_number_id is set")
	}

	if config.Email.Endpoint != "" && config.Email.APIKey == "" {
		return fmt.Errorf("email: api_key is required when endpoint is set")
	}

	if config.AI.APIKey == "" {
		return fmt.Errorf("ai: api_key is required")
	}

	return nil
}
