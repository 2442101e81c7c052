// Package config provides functionality for managing configuration
// options for the application using command-line flags, an optional
// JSON config file, and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"addr" env:"NEXUS_ADDR"`

	// DatabaseDSN holds the PostgreSQL connection string. When empty,
	// the server falls back to file storage.
	DatabaseDSN string `json:"database_dsn" env:"NEXUS_DATABASE_DSN"`

	// StoragePath is the path of the JSON storage file.
	StoragePath string `json:"storage_path" env:"NEXUS_STORAGE_PATH"`

	// Issuer is the issuer name embedded in otpauth provisioning URIs.
	Issuer string `json:"issuer" env:"NEXUS_ISSUER"`

	// LogLevel sets the zap log level.
	LogLevel string `json:"log_level" env:"NEXUS_LOG_LEVEL"`

	// Config is the path to the config file.
	Config string `json:"-" env:"NEXUS_CONFIG"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "postgres dsn (empty: file storage)")
	flag.StringVar(&options.StoragePath, "s", "", "path to JSON storage file")
	flag.StringVar(&options.Issuer, "issuer", "Nexus", "issuer for otpauth URIs")
	flag.StringVar(&options.LogLevel, "log", "info", "log level")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the config file, and environment
// variables, in increasing order of precedence. It returns a pointer to
// the Options struct containing the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	// Environment variables override flags and file values.
	if err := env.Parse(options); err != nil {
		log.Fatalf("error while parsing environment: %v", err)
	}

	return options
}
