// Package config loads configuration for composition hosts.
//
// It uses Viper to read a YAML file, godotenv to load an optional .env file,
// and environment variables prefixed with COMPOSE_ to override both:
//
//	cfg, err := config.LoadConfig("inventory")
//
// COMPOSE_COMPOSITION_DEFAULT_MODE=missing,composed overrides
// composition.default_mode.
package config
