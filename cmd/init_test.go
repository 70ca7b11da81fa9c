package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteStarterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaguemirror.yaml")

	if err := writeStarterConfig(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"repository:", "espn:", "sleeper:", "data_raw"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("starter config missing %q", key)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected config mode 0600, got %o", perm)
	}
}

func TestWriteStarterConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaguemirror.yaml")
	if err := os.WriteFile(path, []byte("existing: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	err := writeStarterConfig(path, false)
	if err == nil {
		t.Fatal("expected an error when the config file already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "existing: true\n" {
		t.Error("existing config file was modified")
	}
}

func TestWriteStarterConfigForceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaguemirror.yaml")
	if err := os.WriteFile(path, []byte("existing: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := writeStarterConfig(path, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "repository:") {
		t.Error("expected the starter config to replace the existing file")
	}
}
