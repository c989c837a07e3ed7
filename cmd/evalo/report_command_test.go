package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"evalo/internal/testsupport"
)

func TestReportUsesLatestGrading(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenHistory(t, env.cfg)
	testsupport.AddGrading(t, store, "sub-latest", testsupport.SampleResult())
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, _, err := runCLI(t, env, "", "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	want := filepath.Join(env.cfg.Paths.ReportDir, "exam-results-report.pdf")
	requireContains(t, out, "Report saved to "+want)
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("report missing: %v", err)
	}
}

func TestReportWithoutHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "", "report")
	if err == nil {
		t.Fatal("expected error without gradings")
	}
	requireContains(t, err.Error(), "no successful gradings")
	if _, reports := env.grading.calls(); reports != 0 {
		t.Fatalf("expected no report request, got %d", reports)
	}
}

func TestReportFromJSONFile(t *testing.T) {
	env := setupCLITestEnv(t)
	student, key := env.writePDFs(t)

	graded, _, err := runCLI(t, env, "", "--json", "grade", student, key, "--no-history")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	resultPath := filepath.Join(env.baseDir, "grade.json")
	testsupport.WriteBytes(t, resultPath, []byte(graded))
	dest := filepath.Join(env.baseDir, "physics.pdf")

	out, _, err := runCLI(t, env, "", "--json", "report", "--from-json", resultPath, "-o", dest)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var payload reportOutput
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if payload.Path != dest {
		t.Fatalf("expected %s, got %s", dest, payload.Path)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(data) != fakeReport {
		t.Fatalf("unexpected report %q", data)
	}
}

func TestReportRejectsMissingDestinationDirectory(t *testing.T) {
	env := setupCLITestEnv(t)
	resultPath := filepath.Join(env.baseDir, "result.json")
	data, err := json.Marshal(testsupport.SampleResult())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	testsupport.WriteBytes(t, resultPath, data)

	_, _, err = runCLI(t, env, "", "report", "--from-json", resultPath, "-o", filepath.Join(env.baseDir, "nope", "r.pdf"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	requireContains(t, err.Error(), "Failed to download report")
	if _, reports := env.grading.calls(); reports != 0 {
		t.Fatalf("expected no report request, got %d", reports)
	}
}
