package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/as36198/linkd/internal/log"
)

// Config holds the application configuration
type Config struct {
	DataDir            string
	ListenAddr         string
	BearerToken        string // bcrypt hash of the API/MCP bearer token
	PTRDomain          string // domain suffix for generated reverse names
	RegularizeSchedule string // cron expression; empty disables the scheduler
	SNMPCommunity      string
	ConfigFile         string // path to the .env file, if one was loaded
}

// Defaults
const (
	DefaultDataDir    = "./data"
	DefaultListenAddr = ":8080"
	DefaultPTRDomain  = "as36198.net"
	DefaultCommunity  = "public"
)

// Load loads configuration with the following priority (highest to lowest):
// 1. Command-line parameters (passed as opts)
// 2. .env file (if exists)
// 3. Environment variables
// 4. Default values
func Load(opts *Config) *Config {
	cfg := &Config{}

	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := loadFromEnvFile(cfg, envFile); err != nil {
			log.Warn("Failed to load .env file", "error", err)
		} else {
			cfg.ConfigFile = envFile
		}
	}

	cfg.DataDir = coalesce(cfg.DataDir, os.Getenv("LINKD_DATA_DIR"), DefaultDataDir)
	cfg.ListenAddr = coalesce(cfg.ListenAddr, os.Getenv("LINKD_LISTEN_ADDR"), DefaultListenAddr)
	cfg.BearerToken = coalesce(cfg.BearerToken, os.Getenv("LINKD_BEARER_TOKEN"))
	cfg.PTRDomain = coalesce(cfg.PTRDomain, os.Getenv("LINKD_PTR_DOMAIN"), DefaultPTRDomain)
	cfg.RegularizeSchedule = coalesce(cfg.RegularizeSchedule, os.Getenv("LINKD_REGULARIZE_SCHEDULE"))
	cfg.SNMPCommunity = coalesce(cfg.SNMPCommunity, os.Getenv("LINKD_SNMP_COMMUNITY"), DefaultCommunity)

	// CLI opts override everything
	if opts != nil {
		cfg.DataDir = coalesce(opts.DataDir, cfg.DataDir)
		cfg.ListenAddr = coalesce(opts.ListenAddr, cfg.ListenAddr)
		cfg.BearerToken = coalesce(opts.BearerToken, cfg.BearerToken)
		cfg.PTRDomain = coalesce(opts.PTRDomain, cfg.PTRDomain)
		cfg.RegularizeSchedule = coalesce(opts.RegularizeSchedule, cfg.RegularizeSchedule)
		cfg.SNMPCommunity = coalesce(opts.SNMPCommunity, cfg.SNMPCommunity)
	}

	return cfg
}

// loadFromEnvFile loads configuration from a .env file
func loadFromEnvFile(cfg *Config, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE or KEY="VALUE"
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "LINKD_DATA_DIR":
			cfg.DataDir = value
		case "LINKD_LISTEN_ADDR":
			cfg.ListenAddr = value
		case "LINKD_BEARER_TOKEN":
			cfg.BearerToken = value
		case "LINKD_PTR_DOMAIN":
			cfg.PTRDomain = value
		case "LINKD_REGULARIZE_SCHEDULE":
			cfg.RegularizeSchedule = value
		case "LINKD_SNMP_COMMUNITY":
			cfg.SNMPCommunity = value
		}
	}

	return scanner.Err()
}

// IsAuthEnabled reports whether API/MCP authentication is configured
func (c *Config) IsAuthEnabled() bool {
	return c.BearerToken != ""
}

// String returns a string representation of the config source
func (c *Config) String() string {
	if c.ConfigFile != "" {
		return fmt.Sprintf(".env file (%s)", c.ConfigFile)
	}
	return "environment variables"
}

// coalesce returns the first non-empty string value
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
