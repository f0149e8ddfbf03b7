// Package config provides environment-based configuration.
//
// Loads from a .env file (godotenv) when present, maps to the Config struct
// via go-simpler/env struct tags, and validates ranges. PORT defaults to 8080.
package config
