package projectconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAllowMissing(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "missing.yaml")

	configuration, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load allow missing: %v", err)
	}
	if configuration.Gate.Contract != "" {
		t.Fatalf("expected empty configuration, got contract %q", configuration.Gate.Contract)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "missing.yaml")

	if _, err := Load(path, false); err == nil {
		t.Fatal("expected missing required config error")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "config.yaml")
	content := []byte(`
gate:
  contract: " contracts/base.yaml "
  out_dir: " ./decisions "
  private_key: " keys/govkernel_private.key "
audit:
  index: " ./decisions/audit_index.jsonl "
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	configuration, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load parse: %v", err)
	}
	if configuration.Gate.Contract != "contracts/base.yaml" {
		t.Fatalf("unexpected contract %q", configuration.Gate.Contract)
	}
	if configuration.Gate.OutDir != "./decisions" {
		t.Fatalf("unexpected out_dir %q", configuration.Gate.OutDir)
	}
	if configuration.Gate.PrivateKey != "keys/govkernel_private.key" {
		t.Fatalf("unexpected private_key %q", configuration.Gate.PrivateKey)
	}
	if configuration.Audit.Index != "./decisions/audit_index.jsonl" {
		t.Fatalf("unexpected audit index %q", configuration.Audit.Index)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "config.yaml")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("write empty config: %v", err)
	}

	configuration, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if configuration.Gate.OutDir != "" {
		t.Fatalf("expected zero config, got %#v", configuration)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "config.yaml")
	if err := os.WriteFile(path, []byte("gate: [\n"), 0o600); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}

	if _, err := Load(path, false); err == nil {
		t.Fatal("expected parse error for invalid yaml")
	}
}
