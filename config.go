package halcyon

import (
	"os"

	"github.com/halcyonai/halcyon/internal/httpx"
	"github.com/joho/godotenv"
)

// Environment variables read by NewClientFromEnv. The HALCYON_* names take
// precedence; OPENAI_API_KEY is honored as a fallback since most deployments
// already have it set.
const (
	EnvAPIKey       = "HALCYON_API_KEY"
	EnvAPIKeyLegacy = "OPENAI_API_KEY"
	EnvBaseURL      = "HALCYON_BASE_URL"
	EnvOrganization = "HALCYON_ORG"
)

// NewClientFromEnv creates a client configured from environment variables:
// HALCYON_API_KEY (falling back to OPENAI_API_KEY), HALCYON_BASE_URL, and
// HALCYON_ORG. Call [LoadEnv] first to pull variables from a .env file.
func NewClientFromEnv() *Client {
	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKeyLegacy)
	}

	client := NewClient(apiKey)
	if baseURL := os.Getenv(EnvBaseURL); baseURL != "" {
		client.WithBaseURL(baseURL)
	}
	if organization := os.Getenv(EnvOrganization); organization != "" {
		client.WithOrganization(organization)
	}
	return client
}

// LoadEnv loads variables from the given .env files (or ./.env when none are
// named) into the process environment. Existing variables are not overridden.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

// headers returns the per-request header options shared by every call:
// currently just the organization header when one is configured.
func (c *Client) headers() []httpx.HeaderOption {
	if c.organization == "" {
		return nil
	}
	return []httpx.HeaderOption{{Key: organizationHeader, Value: c.organization}}
}
