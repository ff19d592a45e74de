/*
config.go - Environment-backed configuration

PURPOSE:
  Loads server configuration from the environment, with a .env file for
  local development. Command-line flags in cmd/server override whatever
  is loaded here.

VARIABLES:
  PORT       HTTP server port (default: 8080)
  DB_PATH    SQLite database path (default: revenue.db)
             Use ":memory:" for an in-memory database

SEE ALSO:
  - cmd/server/main.go: Startup and flag overrides
*/
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the server configuration.
type Config struct {
	Port   int
	DBPath string
}

// Load reads configuration from a .env file (if present) and the
// environment. A missing .env file is not an error.
func Load(infoLog *log.Logger) Config {
	if err := godotenv.Load(); err != nil {
		infoLog.Println("no .env file found, using environment defaults")
	}

	cfg := Config{
		Port:   8080,
		DBPath: "revenue.db",
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	return cfg
}
