package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Identity.Model != "generic" {
		t.Fatalf("unexpected default model: %s", cfg.Identity.Model)
	}
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[identity]
model = "thermostat"
instance_version = "1.2.0"

[broker]
url = "tcp://broker.local:1883"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Identity.Model != "thermostat" || cfg.Broker.URL != "tcp://broker.local:1883" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestValidate_RejectsReservedModelName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.Model = "vfs"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for reserved model name")
	}
}

func TestValidate_RejectsUnknownCodec(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serializer.Codec = "protobuf"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown codec")
	}
}

func TestValidate_RejectsMissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.Model = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing model")
	}
}

func TestLoad_GeneratesAndPersistsUUID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Identity.UUID == "" {
		t.Fatal("expected a generated UUID")
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if again.Identity.UUID != cfg.Identity.UUID {
		t.Fatalf("UUID not persisted: got %q, want %q", again.Identity.UUID, cfg.Identity.UUID)
	}
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Identity.Model = "sensor"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Identity.Model != "sensor" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
