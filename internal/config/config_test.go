package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "127.0.0.1:8080")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.UserRateLimitWindowSec != 3600 {
		t.Errorf("UserRateLimitWindowSec = %d, want 3600", cfg.UserRateLimitWindowSec)
	}
	if cfg.UserRateLimitMaxCalls != 1 {
		t.Errorf("UserRateLimitMaxCalls = %d, want 1", cfg.UserRateLimitMaxCalls)
	}
	if cfg.UserRateLimitBlockSec != 10800 {
		t.Errorf("UserRateLimitBlockSec = %d, want 10800", cfg.UserRateLimitBlockSec)
	}
	if cfg.RateEventSampling != 1.0 {
		t.Errorf("RateEventSampling = %v, want 1.0", cfg.RateEventSampling)
	}
	if cfg.DBConnectionTimeout != "5s" {
		t.Errorf("DBConnectionTimeout = %q, want 5s", cfg.DBConnectionTimeout)
	}
	if cfg.HTTPTimeout != "30s" {
		t.Errorf("HTTPTimeout = %q, want 30s", cfg.HTTPTimeout)
	}
	if cfg.RateLimitDegradedMode != "deny" {
		t.Errorf("RateLimitDegradedMode = %q, want deny", cfg.RateLimitDegradedMode)
	}
	if cfg.AuditQueueSize != 1000 {
		t.Errorf("AuditQueueSize = %d, want 1000", cfg.AuditQueueSize)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		HTTPAddr:               ":9090",
		LogLevel:               "debug",
		UserRateLimitWindowSec: 60,
		UserRateLimitMaxCalls:  5,
		RateEventSampling:      0.1,
	}
	cfg.SetDefaults()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr was overwritten: got %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel was overwritten: got %q", cfg.LogLevel)
	}
	if cfg.UserRateLimitWindowSec != 60 {
		t.Errorf("UserRateLimitWindowSec was overwritten: got %d", cfg.UserRateLimitWindowSec)
	}
	if cfg.RateEventSampling != 0.1 {
		t.Errorf("RateEventSampling was overwritten: got %v", cfg.RateEventSampling)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.DatabaseURL == "" {
		t.Error("DatabaseURL should be populated in dev mode")
	}
	if cfg.PolicyDatabaseURL == "" {
		t.Error("PolicyDatabaseURL should be populated in dev mode")
	}
	if cfg.RedisURL == "" {
		t.Error("RedisURL should be populated in dev mode")
	}
}

func TestConfig_SetDevDefaults_NoOpWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.SetDevDefaults()

	if cfg.DatabaseURL != "" {
		t.Error("DatabaseURL should stay empty when DevMode is false")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "datagate.yaml")
	_ = os.WriteFile(cfgPath, []byte("http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "datagate.yml")
	_ = os.WriteFile(cfgPath, []byte("http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "datagate"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "datagate.yaml")
	ymlPath := filepath.Join(dir, "datagate.yml")
	_ = os.WriteFile(yamlPath, []byte("http_addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
