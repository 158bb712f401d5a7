package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envFiles are loaded, if present, before the environment is read.
// Variables already set in the process environment win.
var envFiles = []string{".env"}

// parseEnv overlays fields tagged with `env` from the process environment.
// Unset variables leave the current value untouched. Panics on malformed
// values, like the other loaders.
func parseEnv(config *Config) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
