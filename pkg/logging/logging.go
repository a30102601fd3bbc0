package logging

import (
	"errors"
	"log/slog"
	"os"
)

const (
	// KeyAppName is the log key for the application name.
	KeyAppName = "app"

	// KeyError is the log key for errors.
	KeyError = "err"

	// KeyStore is the log key for the data store name.
	KeyStore = "store"

	// KeySignal is the log key for OS signals.
	KeySignal = "signal"
)

// Name is the name of the application that the logger is created for.
type Name string

// Config holds the configuration for a logger.
type Config struct {
	// name is the name of the application.
	name string
}

// NewConfig creates a new logging configuration.
func NewConfig(name Name) *Config {
	return &Config{
		name: string(name),
	}
}

// CommonLogger creates the common logger for the application. The logger is
// also set as the slog default.
func CommonLogger(c *Config) (*slog.Logger, error) {
	if c.name == "" {
		return nil, errors.New("no application name provided")
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	l := slog.New(h).With(slog.String(KeyAppName, c.name))
	slog.SetDefault(l)
	return l, nil
}
