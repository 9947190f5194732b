package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emberscript/ember/pkg/bytecode"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "ember.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[limits]
max-variables = 32
max-iterations = 5000

[store]
enabled = true
path = "/tmp/sessions.db"

[log]
verbosity = 2
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Limits.MaxVariables != 32 || c.Limits.MaxIterations != 5000 {
		t.Errorf("limits = %+v", c.Limits)
	}
	if !c.Store.Enabled || c.Store.Path != "/tmp/sessions.db" {
		t.Errorf("store = %+v", c.Store)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("log = %+v", c.Log)
	}
	if c.Path == "" {
		t.Error("load did not record the file path")
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[limits\nmax-variables = ")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[limits]\nmax-variables = 9\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if c.Limits.MaxVariables != 9 {
		t.Errorf("max-variables = %d, want 9", c.Limits.MaxVariables)
	}
}

func TestFindAndLoadDefaults(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if *c != *Default() {
		t.Errorf("expected defaults, got %+v", c)
	}
}

func TestVMLimitsMergesDefaults(t *testing.T) {
	c := &Config{}
	c.Limits.MaxVariables = 10

	limits := c.VMLimits()
	defaults := bytecode.DefaultLimits()
	if limits.MaxVariables != 10 {
		t.Errorf("MaxVariables = %d, want 10", limits.MaxVariables)
	}
	if limits.MaxIterations != defaults.MaxIterations {
		t.Errorf("MaxIterations = %d, want default %d", limits.MaxIterations, defaults.MaxIterations)
	}
	if limits.MaxMillis != defaults.MaxMillis {
		t.Errorf("MaxMillis = %d, want default %d", limits.MaxMillis, defaults.MaxMillis)
	}
}
