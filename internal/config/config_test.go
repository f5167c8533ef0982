package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("RECORDINGS_DIR")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	wd, _ := os.Getwd()
	if cfg.RecordingsDir != wd {
		t.Errorf("Expected default RecordingsDir '%s', got '%s'", wd, cfg.RecordingsDir)
	}

	if cfg.RecordingNameSource != NameSourceCallSid {
		t.Errorf("Expected default RecordingNameSource '%s', got '%s'", NameSourceCallSid, cfg.RecordingNameSource)
	}

	if !cfg.FinalizeOnDisconnect {
		t.Error("Expected default FinalizeOnDisconnect true, got false")
	}

	if cfg.FinalizeRetryMaxAttempts != 3 {
		t.Errorf("Expected default FinalizeRetryMaxAttempts 3, got %d", cfg.FinalizeRetryMaxAttempts)
	}

	if cfg.FinalizeBackoff() != 100*time.Millisecond {
		t.Errorf("Expected default FinalizeBackoff 100ms, got %v", cfg.FinalizeBackoff())
	}

	if cfg.WSReadBufferSize != 4096 {
		t.Errorf("Expected default WSReadBufferSize 4096, got %d", cfg.WSReadBufferSize)
	}

	if cfg.StorageBreakerMaxFailures != 5 {
		t.Errorf("Expected default StorageBreakerMaxFailures 5, got %d", cfg.StorageBreakerMaxFailures)
	}

	if cfg.StorageBreakerTimeout() != 30*time.Second {
		t.Errorf("Expected default StorageBreakerTimeout 30s, got %v", cfg.StorageBreakerTimeout())
	}
}

func TestLoad_RecordingsDir(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("RECORDINGS_DIR", dir)
	defer os.Unsetenv("RECORDINGS_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.RecordingsDir != dir {
		t.Errorf("Expected RecordingsDir '%s', got '%s'", dir, cfg.RecordingsDir)
	}
}

func TestLoad_RelativeRecordingsDirIsResolved(t *testing.T) {
	os.Setenv("RECORDINGS_DIR", "recordings")
	defer os.Unsetenv("RECORDINGS_DIR")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if !filepath.IsAbs(cfg.RecordingsDir) {
		t.Errorf("Expected absolute RecordingsDir, got '%s'", cfg.RecordingsDir)
	}
	if filepath.Base(cfg.RecordingsDir) != "recordings" {
		t.Errorf("Expected RecordingsDir to end in 'recordings', got '%s'", cfg.RecordingsDir)
	}
}

func TestLoad_RecordingsDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	os.Setenv("RECORDINGS_DIR", file)
	defer os.Unsetenv("RECORDINGS_DIR")

	if _, err := Load(); err == nil {
		t.Error("Expected error when RECORDINGS_DIR is a file")
	}
}

func TestLoad_InvalidNameSource(t *testing.T) {
	os.Setenv("RECORDING_NAME_SOURCE", "caller_number")
	defer os.Unsetenv("RECORDING_NAME_SOURCE")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown RECORDING_NAME_SOURCE")
	}
}

func TestLoad_InvalidRetryAttempts(t *testing.T) {
	os.Setenv("FINALIZE_RETRY_MAX_ATTEMPTS", "0")
	defer os.Unsetenv("FINALIZE_RETRY_MAX_ATTEMPTS")

	if _, err := Load(); err == nil {
		t.Error("Expected error when FINALIZE_RETRY_MAX_ATTEMPTS is 0")
	}
}

func TestLoad_NegativeBreakerFailures(t *testing.T) {
	os.Setenv("STORAGE_BREAKER_MAX_FAILURES", "-1")
	defer os.Unsetenv("STORAGE_BREAKER_MAX_FAILURES")

	if _, err := Load(); err == nil {
		t.Error("Expected error when STORAGE_BREAKER_MAX_FAILURES is negative")
	}
}

func TestLoad_MalformedValue(t *testing.T) {
	os.Setenv("FINALIZE_ON_DISCONNECT", "sometimes")
	defer os.Unsetenv("FINALIZE_ON_DISCONNECT")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for non-boolean FINALIZE_ON_DISCONNECT")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	// Clear LOG_LEVEL to ensure we get the default
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
