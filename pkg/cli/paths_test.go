package cli

import (
	"path/filepath"
	"testing"
)

func TestPathsFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	p, err := NewPaths()
	if err != nil {
		t.Fatal(err)
	}
	if p.ConfigFile() != filepath.Join(dir, "config.yaml") {
		t.Errorf("ConfigFile = %q", p.ConfigFile())
	}
	if p.RunsDir() != filepath.Join(dir, "runs") {
		t.Errorf("RunsDir = %q", p.RunsDir())
	}
	if p.CacheDir() != filepath.Join(dir, "cache") {
		t.Errorf("CacheDir = %q", p.CacheDir())
	}
}

func TestPathsDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, "")
	t.Setenv("HOME", home)

	p, err := NewPaths()
	if err != nil {
		t.Fatal(err)
	}
	if p.Base != filepath.Join(home, DefaultBaseDir) {
		t.Errorf("Base = %q", p.Base)
	}
}
