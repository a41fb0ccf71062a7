package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_ChunkSizeTooLow(t *testing.T) {
	cfg := Defaults()
	cfg.Loop.ChunkSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for chunkSize=0")
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "chatty"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidate_MissingDataDir(t *testing.T) {
	cfg := Defaults()
	cfg.General.DataDir = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty dataDir")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_Set(t *testing.T) {
	t.Setenv("MAILBOT_TEST_KEY", "secret")
	out := ExpandEnvVars(`{"apiKey": "${MAILBOT_TEST_KEY}"}`)
	if out != `{"apiKey": "secret"}` {
		t.Fatalf("expected substitution, got %q", out)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	os.Unsetenv("MAILBOT_UNSET_VAR")
	out := ExpandEnvVars(`${MAILBOT_UNSET_VAR:-fallback}`)
	if out != "fallback" {
		t.Fatalf("expected fallback, got %q", out)
	}
}

func TestExpandEnvVars_UnsetNoDefault(t *testing.T) {
	os.Unsetenv("MAILBOT_UNSET_VAR")
	out := ExpandEnvVars(`${MAILBOT_UNSET_VAR}`)
	if out != "${MAILBOT_UNSET_VAR}" {
		t.Fatalf("expected original text kept, got %q", out)
	}
}

// --- Load ---

func TestLoad_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"general": {"dataDir": "` + dir + `", "catalogPath": "` + dir + `/endpoints.yaml"}, "loop": {"chunkSize": 3}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Loop.ChunkSize != 3 {
		t.Fatalf("expected chunkSize=3, got %d", cfg.Loop.ChunkSize)
	}
	if cfg.Loop.IdleAfterSeconds != 60 {
		t.Fatalf("expected default idleAfterSeconds=60, got %d", cfg.Loop.IdleAfterSeconds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// --- Catalog ---

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCatalog_Valid(t *testing.T) {
	path := writeCatalog(t, `
endpoints:
  notion:
    type: datasource
    id: "abc123"
    description: "test db"
    commands:
      add:
        required: [Name, Rating]
        optional:
          d: Date
        defaults:
          Date: "!today"
`)
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	ep := cat.Endpoints["notion"]
	if ep.Type != "datasource" || ep.ID != "abc123" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	if got := ep.Commands["add"].Required; len(got) != 2 || got[0] != "Name" {
		t.Fatalf("unexpected required list: %v", got)
	}
}

func TestLoadCatalog_BadType(t *testing.T) {
	path := writeCatalog(t, `
endpoints:
  notion:
    type: spreadsheet
    id: "abc"
`)
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for unknown endpoint type")
	}
}

func TestLoadCatalog_DatasourceWithoutID(t *testing.T) {
	path := writeCatalog(t, `
endpoints:
  notion:
    type: datasource
`)
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for datasource without id")
	}
}

func TestLoadCatalog_DefaultForUnknownProperty(t *testing.T) {
	path := writeCatalog(t, `
endpoints:
  notion:
    type: datasource
    id: "abc"
    commands:
      add:
        required: [Name]
        defaults:
          Rating: "5"
`)
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for default on unknown property")
	}
}

func TestLoadCatalog_Empty(t *testing.T) {
	path := writeCatalog(t, `endpoints: {}`)
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}
