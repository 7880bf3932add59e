package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdirTemp moves the test into an empty directory so a developer's
// .env file cannot leak into the assertions
func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"LINKD_DATA_DIR", "LINKD_LISTEN_ADDR", "LINKD_BEARER_TOKEN",
		"LINKD_PTR_DOMAIN", "LINKD_REGULARIZE_SCHEDULE", "LINKD_SNMP_COMMUNITY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)

	cfg := Load(nil)

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("Expected data dir %q, got %q", DefaultDataDir, cfg.DataDir)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("Expected listen addr %q, got %q", DefaultListenAddr, cfg.ListenAddr)
	}
	if cfg.PTRDomain != DefaultPTRDomain {
		t.Errorf("Expected domain %q, got %q", DefaultPTRDomain, cfg.PTRDomain)
	}
	if cfg.SNMPCommunity != DefaultCommunity {
		t.Errorf("Expected community %q, got %q", DefaultCommunity, cfg.SNMPCommunity)
	}
	if cfg.IsAuthEnabled() {
		t.Error("Expected auth to be disabled by default")
	}
}

func TestLoad_Environment(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)
	t.Setenv("LINKD_DATA_DIR", "/env/data")
	t.Setenv("LINKD_PTR_DOMAIN", "env.example")

	cfg := Load(nil)

	if cfg.DataDir != "/env/data" {
		t.Errorf("Expected /env/data, got %q", cfg.DataDir)
	}
	if cfg.PTRDomain != "env.example" {
		t.Errorf("Expected env.example, got %q", cfg.PTRDomain)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("Expected the default listen addr, got %q", cfg.ListenAddr)
	}
}

func TestLoad_EnvFileBeatsEnvironment(t *testing.T) {
	dir := chdirTemp(t)
	clearEnv(t)
	t.Setenv("LINKD_DATA_DIR", "/env/data")

	envFile := filepath.Join(dir, ".env")
	content := "# linkd configuration\nLINKD_DATA_DIR=\"/file/data\"\nLINKD_LISTEN_ADDR=:9090\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	cfg := Load(nil)

	if cfg.DataDir != "/file/data" {
		t.Errorf("Expected /file/data, got %q", cfg.DataDir)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("Expected :9090, got %q", cfg.ListenAddr)
	}
	if cfg.ConfigFile != ".env" {
		t.Errorf("Expected the .env file to be recorded, got %q", cfg.ConfigFile)
	}
}

func TestLoad_OptsBeatEverything(t *testing.T) {
	dir := chdirTemp(t)
	clearEnv(t)
	t.Setenv("LINKD_DATA_DIR", "/env/data")

	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("LINKD_DATA_DIR=/file/data\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	cfg := Load(&Config{DataDir: "/cli/data"})

	if cfg.DataDir != "/cli/data" {
		t.Errorf("Expected /cli/data, got %q", cfg.DataDir)
	}
}

func TestString(t *testing.T) {
	cfg := &Config{}
	if cfg.String() != "environment variables" {
		t.Errorf("Unexpected source: %q", cfg.String())
	}

	cfg.ConfigFile = ".env"
	if cfg.String() != ".env file (.env)" {
		t.Errorf("Unexpected source: %q", cfg.String())
	}
}
