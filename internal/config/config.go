package config

import (
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	MigrationsURL  string
	AllowedOrigins []string
	// DevMode enables diagnostic detail in API error responses.
	// Never set in production.
	DevMode bool
}

func NewConfig(serverAddr, databaseDSN, migrationsURL string, allowedOrigins []string, devMode bool) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if migrationsURL == "" {
		return nil, fmt.Errorf("migrations URL cannot be empty")
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		MigrationsURL:  migrationsURL,
		AllowedOrigins: allowedOrigins,
		DevMode:        devMode,
	}, nil
}
