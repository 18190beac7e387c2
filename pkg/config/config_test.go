package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExpand(t *testing.T) {
	t.Setenv("CFG_SET", "value")
	t.Setenv("CFG_EMPTY", "")

	tests := map[string]string{
		"${CFG_SET}":             "value",
		"$CFG_SET":               "value",
		"${CFG_UNSET}":           "",
		"${CFG_UNSET:-fallback}": "fallback",
		"${CFG_EMPTY:-fallback}": "fallback",
		"${CFG_SET:-fallback}":   "value",
	}
	for in, want := range tests {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("CFG_NAME", "glean")
	p := writeFile(t, "name: ${CFG_NAME}\nport: ${CFG_PORT:-8081}\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "glean" || s.Port != 8081 {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, "name: x\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	s := sample{Port: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &s)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}

	s = sample{}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &s); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoad_TOML(t *testing.T) {
	t.Setenv("CFG_NAME", "from-env")
	p := filepath.Join(t.TempDir(), "c.toml")
	if err := os.WriteFile(p, []byte("name = \"${CFG_NAME}\"\nport = 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "from-env" || s.Port != 9000 {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_TOMLSyntaxError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.toml")
	if err := os.WriteFile(p, []byte("name = = x"), 0o644); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected parse error")
	}
}
