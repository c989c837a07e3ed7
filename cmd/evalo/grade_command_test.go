package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"evalo/internal/grading"
	"evalo/internal/history"
	"evalo/internal/services"
	"evalo/internal/testsupport"
	"evalo/internal/upload"
)

func TestGradeCommandPrintsBreakdownAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	student, key := env.writePDFs(t)

	out, errOut, err := runCLI(t, env, "", "grade", student, key, "--subject", "Physics", "--paper-id", "PHY-101")
	if err != nil {
		t.Fatalf("grade: %v\nstderr: %s", err, errOut)
	}
	requireContains(t, out, "14/20 (70%) Satisfactory")
	requireContains(t, out, "Q1")
	requireContains(t, out, "9/10")
	requireContains(t, out, "90%")
	requireContains(t, out, "saved as #1")
	requireContains(t, errOut, "student.pdf")
	requireContains(t, errOut, "Complete!")

	env.grading.mu.Lock()
	parts := append([]string(nil), env.grading.partNames...)
	env.grading.mu.Unlock()
	sort.Strings(parts)
	if strings.Join(parts, ",") != "answer_key_pdf,student_pdf" {
		t.Fatalf("unexpected multipart parts %v", parts)
	}

	store := testsupport.MustOpenHistory(t, env.cfg)
	records, err := store.List(t.Context(), history.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one history record, got %d", len(records))
	}
	rec := records[0]
	if rec.Subject != "Physics" || rec.PaperID != "PHY-101" || rec.StudentFile != "student.pdf" || !rec.HasResult() {
		t.Fatalf("unexpected history record %#v", rec)
	}
}

func TestGradeCommandJSONDownloadsReport(t *testing.T) {
	env := setupCLITestEnv(t)
	student, key := env.writePDFs(t)
	reportDir := filepath.Join(env.baseDir, "out")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	out, errOut, err := runCLI(t, env, "", "--json", "grade", student, key, "--report", reportDir)
	if err != nil {
		t.Fatalf("grade: %v\nstderr: %s", err, errOut)
	}

	var payload gradeOutput
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if payload.SubmissionID == "" || payload.View.Band != "Satisfactory" || len(payload.View.Questions) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Student.Pages == nil || *payload.Student.Pages != 2 {
		t.Fatalf("expected student page count 2, got %v", payload.Student.Pages)
	}
	wantPath := filepath.Join(reportDir, "exam-results-report.pdf")
	if payload.ReportPath != wantPath {
		t.Fatalf("expected report at %s, got %q", wantPath, payload.ReportPath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(data) != fakeReport {
		t.Fatalf("unexpected report contents %q", data)
	}
}

func TestGradeCommandRequiresBothFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	student, _ := env.writePDFs(t)

	_, _, err := runCLI(t, env, "", "grade", student)
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), upload.MissingFilesMessage)
	if process, _ := env.grading.calls(); process != 0 {
		t.Fatalf("expected no request, got %d", process)
	}
}

func TestGradeCommandRejectsNonPDF(t *testing.T) {
	env := setupCLITestEnv(t)
	_, key := env.writePDFs(t)
	notes := filepath.Join(env.pdfDir, "notes.txt")
	testsupport.WriteBytes(t, notes, []byte("not a pdf"))

	if _, _, err := runCLI(t, env, "", "grade", notes, key); err == nil {
		t.Fatal("expected error for non-pdf input")
	}
	if process, _ := env.grading.calls(); process != 0 {
		t.Fatalf("expected no request, got %d", process)
	}
}

func TestGradeCommandServerErrorIsRecordedAsFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.grading.setStatus(http.StatusInternalServerError)
	student, key := env.writePDFs(t)

	_, errOut, err := runCLI(t, env, "", "grade", student, key)
	if err == nil {
		t.Fatal("expected grading failure")
	}
	if err.Error() != "Failed to process PDFs: Server responded with status: 500" {
		t.Fatalf("unexpected error %q", err.Error())
	}
	requireContains(t, errOut, "Run the same command again to retry.")

	out, _, err := runCLI(t, env, "", "--json", "history", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var items []historyRecordOutput
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].ErrorKind != "transport" || items[0].View != nil {
		t.Fatalf("unexpected failed history %+v", items)
	}
}

func TestGradeCommandNeedsSignInWhenRequired(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSignInRequired(true))
	student, key := env.writePDFs(t)

	_, _, err := runCLI(t, env, "", "grade", student, key)
	if err == nil {
		t.Fatal("expected sign-in error")
	}
	requireContains(t, err.Error(), "not signed in")
	if process, _ := env.grading.calls(); process != 0 {
		t.Fatalf("expected no request, got %d", process)
	}
}

func TestGradeCommandSkipsHistoryWhenAsked(t *testing.T) {
	env := setupCLITestEnv(t)
	student, key := env.writePDFs(t)

	if _, _, err := runCLI(t, env, "", "grade", student, key, "--no-history"); err != nil {
		t.Fatalf("grade: %v", err)
	}
	store := testsupport.MustOpenHistory(t, env.cfg)
	records, err := store.List(t.Context(), history.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no history, got %d", len(records))
	}
}

func TestGradeCommandShowsZeroPointQuestions(t *testing.T) {
	env := setupCLITestEnv(t)
	env.grading.result = grading.Result{
		TotalScore: 18, TotalPossible: 20, Percentage: 90,
		Questions: []grading.Question{
			{Number: 1, PointsEarned: 9, PointsPossible: 10, Feedback: "Good"},
			{Number: 2, PointsEarned: 9, PointsPossible: 10, Feedback: "Good"},
			{Number: 3, PointsEarned: 0, PointsPossible: 0, Feedback: "Bonus not attempted"},
		},
	}
	student, key := env.writePDFs(t)

	out, _, err := runCLI(t, env, "", "grade", student, key)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	requireContains(t, out, "18/20 (90%) Excellent")
	requireContains(t, out, "0/0")
}

func TestGradeCommandSaveReportUsesReportDir(t *testing.T) {
	env := setupCLITestEnv(t)
	student, key := env.writePDFs(t)

	out, errOut, err := runCLI(t, env, "", "grade", student, key, "--save-report")
	if err != nil {
		t.Fatalf("grade: %v\nstderr: %s", err, errOut)
	}
	want := filepath.Join(env.cfg.Paths.ReportDir, "exam-results-report.pdf")
	requireContains(t, out, want)
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("report missing: %v", err)
	}
}

func TestGradeCommandReportFlagsAreExclusive(t *testing.T) {
	env := setupCLITestEnv(t)
	student, key := env.writePDFs(t)

	if _, _, err := runCLI(t, env, "", "grade", student, key, "--report", env.baseDir, "--save-report"); err == nil {
		t.Fatal("expected error for --report with --save-report")
	}
	if process, _ := env.grading.calls(); process != 0 {
		t.Fatalf("expected no request, got %d", process)
	}
}

func TestGradeCommandJSONFailureIsRetryable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.grading.setStatus(http.StatusBadGateway)
	student, key := env.writePDFs(t)

	out, _, err := runCLI(t, env, "", "--json", "grade", student, key)
	if err == nil {
		t.Fatal("expected grading failure")
	}
	var payload gradeFailureOutput
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !payload.Retryable || payload.ErrorKind != services.KindTransport {
		t.Fatalf("unexpected failure payload %+v", payload)
	}
	if payload.Error != "Failed to process PDFs: Server responded with status: 502" {
		t.Fatalf("unexpected error %q", payload.Error)
	}
}
