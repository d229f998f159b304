package config

import (
	"log"
	"os"
)

const (
	defaultDBPath      = "./castcalc.db"
	defaultPort        = "8080"
	defaultCatalogPath = "./material.xlsx"
	defaultEnv         = "dev"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	DBPath        string
	CatalogPath   string
	Port          string
	Env           string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = loadDotEnv(".env")

	cfg := Config{
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DBPath:        os.Getenv("DB_PATH"),
		CatalogPath:   os.Getenv("CATALOG_PATH"),
		Port:          os.Getenv("PORT"),
		Env:           os.Getenv("ENV"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = defaultCatalogPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}

	if cfg.AdminEmail == "" {
		log.Print("warning: ADMIN_EMAIL is not set")
	}
	if cfg.AdminPassword == "" {
		log.Print("warning: ADMIN_PASSWORD is not set")
	}
	if cfg.SessionSecret == "" {
		log.Print("warning: SESSION_SECRET is not set")
	}

	return cfg
}

// IsDev reports whether the app is running in local development mode.
// Dev mode runs pending migrations on boot.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}
