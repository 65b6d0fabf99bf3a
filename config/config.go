// Package config is the external collaborator that sources provider
// credentials from the process environment. Environment lookup lives here,
// not in the registry, so the core stays testable with explicit values and
// alternative credential stores can replace this package entirely.
package config

import (
	"os"

	"github.com/hupe1980/llmrelay/registry"
	"github.com/joho/godotenv"
)

// Environment variable names for the built-in providers.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// Options configures environment credential loading.
type Options struct {
	// EnvFiles are dotenv files loaded before reading the environment.
	// Missing files are ignored; already-set variables are never overridden
	// (godotenv semantics).
	EnvFiles []string
}

// CredentialsFromEnv reads the built-in provider API keys from the process
// environment, optionally hydrating it from dotenv files first. Absent
// variables yield empty credentials, which the registry records as
// unavailable providers.
func CredentialsFromEnv(optFns ...func(o *Options)) registry.Credentials {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	for _, file := range opts.EnvFiles {
		// Best effort: a missing dotenv file is not an error, the variables
		// may be set in the real environment.
		_ = godotenv.Load(file)
	}

	return registry.Credentials{
		AnthropicAPIKey: os.Getenv(EnvAnthropicAPIKey),
		OpenAIAPIKey:    os.Getenv(EnvOpenAIAPIKey),
	}
}
