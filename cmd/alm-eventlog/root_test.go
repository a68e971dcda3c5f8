package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vilaca/alm-eventlog/internal/config"
	"github.com/vilaca/alm-eventlog/internal/correlation"
	"github.com/vilaca/alm-eventlog/internal/domain"
)

func TestLoadPrefixes_Defaults(t *testing.T) {
	prefixes, err := loadPrefixes(&config.Config{})
	if err != nil {
		t.Fatalf("loadPrefixes() error = %v", err)
	}

	tests := []struct {
		platform string
		kind     correlation.Kind
		want     string
	}{
		{domain.PlatformGitLab, correlation.KindIssue, "GLI"},
		{domain.PlatformGitHub, correlation.KindMR, "PR"},
		{domain.PlatformAzure, correlation.KindPipeline, "AZPL"},
	}
	for _, tt := range tests {
		if got := prefixes[tt.platform].For(tt.kind); got != tt.want {
			t.Errorf("%s %s prefix = %q, want %q", tt.platform, tt.kind, got, tt.want)
		}
	}
}

func TestLoadPrefixes_SettingsOverride(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "settings.yaml")
	yaml := "case_type_prefixes:\n  gitlab:\n    issue: BUG\n    action_prefix: GL\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	// Act
	prefixes, err := loadPrefixes(&config.Config{SettingsFile: path})

	// Assert
	if err != nil {
		t.Fatalf("loadPrefixes() error = %v", err)
	}
	gl := prefixes[domain.PlatformGitLab]
	if gl.For(correlation.KindIssue) != "BUG" || gl.ActionPrefix() != "GL" {
		t.Errorf("expected overrides to apply, got %v", gl)
	}
	if gl.For(correlation.KindMR) != "MR" {
		t.Errorf("expected untouched entries to keep defaults, got %q", gl.For(correlation.KindMR))
	}
	if prefixes[domain.PlatformGitHub].For(correlation.KindIssue) != "GHI" {
		t.Error("expected other platforms to keep defaults")
	}
}

func TestLoadPrefixes_MissingSettings(t *testing.T) {
	_, err := loadPrefixes(&config.Config{SettingsFile: filepath.Join(t.TempDir(), "absent.yaml")})
	if err == nil {
		t.Fatal("expected an error for a missing settings file")
	}
}
