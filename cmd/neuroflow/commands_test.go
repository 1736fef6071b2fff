package main

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"neuroflow/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err = runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestRunCommandFullPipeline(t *testing.T) {
	env := setupCLITestEnv(t)
	rec := testsupport.WriteRecording(t, filepath.Join(t.TempDir(), "rec.json"), 4, 30, 50)

	out, _, err := runCLI(t, []string{"run", rec, "--label", "stim", "--save-session"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Load")
	requireContains(t, out, "Filter")
	requireContains(t, out, "Average")
	requireContains(t, out, "[x] Averaged")
	requireContains(t, out, "Session saved to ")

	// The saved session is inspectable without confirmation inside tests.
	match := regexp.MustCompile(`Session saved to (\S+)`).FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("no session path in output:\n%s", out)
	}
	out, _, err = runCLI(t, []string{"session", "inspect", match[1], "--trust"}, env.configPath)
	if err != nil {
		t.Fatalf("session inspect: %v", err)
	}
	requireContains(t, out, "Pipeline state:")
	requireContains(t, out, "Segment")
}

func TestRunCommandRejectsMissingRecording(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run", "/nonexistent/rec.json"}, env.configPath)
	if err == nil {
		t.Fatal("expected load failure to surface as a command error")
	}
}

func TestBatchRunAndReport(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	recA := testsupport.WriteRecording(t, filepath.Join(dir, "a.json"), 2, 10, 50)
	recB := testsupport.WriteRecording(t, filepath.Join(dir, "b.json"), 2, 10, 50)
	outDir := filepath.Join(dir, "out")

	out, _, err := runCLI(t, []string{"batch", "run", recA, recB, "--output", outDir}, env.configPath)
	if err != nil {
		t.Fatalf("batch run: %v", err)
	}
	requireContains(t, out, "[2/2]")
	requireContains(t, out, "2/2 completed")

	if _, err := os.Stat(filepath.Join(outDir, "a_processed.json")); err != nil {
		t.Fatalf("expected exported recording: %v", err)
	}

	out, _, err = runCLI(t, []string{"batch", "report", outDir}, "")
	if err != nil {
		t.Fatalf("batch report: %v", err)
	}
	requireContains(t, out, "finished")
}
