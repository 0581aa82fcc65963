package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func withTestConfigDir(t *testing.T) string {
	t.Helper()
	prevDir := configDir
	prevJSON := outputJSON
	prevProgress := noProgress
	t.Cleanup(func() {
		configDir = prevDir
		outputJSON = prevJSON
		noProgress = prevProgress
	})
	configDir = t.TempDir()
	outputJSON = false
	noProgress = true
	return configDir
}

func TestSettingsShowPrintsDefaults(t *testing.T) {
	withTestConfigDir(t)

	cmd := newSettingsShowCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings show returned error: %v", err)
	}

	got := stdout.String()
	for _, want := range []string{"1080x1920", "mix_{index}", "bitrate_kbps: 5000", "name: random"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output, got %q", want, got)
		}
	}
}

func TestSettingsValidateCleanDefaults(t *testing.T) {
	withTestConfigDir(t)

	cmd := newSettingsValidateCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), "settings are valid") {
		t.Fatalf("expected clean report, got %q", stdout.String())
	}
}

func TestSettingsValidateReportsBadTransition(t *testing.T) {
	dir := withTestConfigDir(t)

	yaml := "transition:\n  name: vortex\n"
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cmd := newSettingsValidateCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected invalid-settings error, got %v", err)
	}
	if !strings.Contains(stdout.String(), "vortex") {
		t.Fatalf("expected the bad transition in the report, got %q", stdout.String())
	}
}

func TestSettingsValidateJSON(t *testing.T) {
	withTestConfigDir(t)
	outputJSON = true

	cmd := newSettingsValidateCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	got := stdout.String()
	if !strings.Contains(got, "\"valid\": true") {
		t.Fatalf("expected valid:true in JSON, got %q", got)
	}
	if !strings.Contains(got, "\"findings\": []") {
		t.Fatalf("expected empty findings array, got %q", got)
	}
}
