package config

import (
	"strings"
	"testing"
)

func TestDefaultDataDirXDGOverride(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, "scribe") {
		t.Fatalf("dir=%q", dir)
	}
}

func TestDefaultDataDirNeverEmpty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	if DefaultDataDir() == "" {
		t.Fatalf("empty data dir")
	}
}
