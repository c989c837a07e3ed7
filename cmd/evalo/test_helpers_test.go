package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"evalo/internal/config"
	"evalo/internal/grading"
	"evalo/internal/testsupport"
)

const fakeReport = "%PDF-1.4\n% evalo test report\n%%EOF\n"

// gradingServer fakes the grading service. Tests adjust status and result
// before invoking the CLI.
type gradingServer struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	processStatus int
	result        grading.Result
	processCalls  int
	reportCalls   int
	partNames     []string
}

func newGradingServer(t *testing.T) *gradingServer {
	t.Helper()
	g := &gradingServer{t: t, processStatus: http.StatusOK, result: testsupport.SampleResult()}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *gradingServer) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch r.URL.Path {
	case "/process-pdfs":
		g.processCalls++
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.partNames = g.partNames[:0]
		for name := range r.MultipartForm.File {
			g.partNames = append(g.partNames, name)
		}
		if g.processStatus != http.StatusOK {
			http.Error(w, "grading backend unavailable", g.processStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(g.result)
	case "/generate-report":
		g.reportCalls++
		var result grading.Result
		if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="exam-results-report.pdf"`)
		_, _ = io.WriteString(w, fakeReport)
	default:
		http.NotFound(w, r)
	}
}

func (g *gradingServer) calls() (process, report int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processCalls, g.reportCalls
}

func (g *gradingServer) setStatus(code int) {
	g.mu.Lock()
	g.processStatus = code
	g.mu.Unlock()
}

type cliTestEnv struct {
	cfg        *config.Config
	grading    *gradingServer
	configPath string
	baseDir    string
	pdfDir     string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	gradingSrv := newGradingServer(t)
	opts = append([]testsupport.ConfigOption{testsupport.WithGradingURL(gradingSrv.srv.URL)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{"EVALO_GRADING_URL", "EVALO_IDENTITY_API_KEY", "EVALO_GOOGLE_CLIENT_ID", "EVALO_GOOGLE_CLIENT_SECRET"} {
		t.Setenv(key, "")
	}

	configPath := filepath.Join(base, "evalo.toml")
	writeTestConfig(t, configPath, cfg)

	pdfDir := filepath.Join(base, "pdfs")
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		t.Fatalf("mkdir pdfs: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		grading:    gradingSrv,
		configPath: configPath,
		baseDir:    base,
		pdfDir:     pdfDir,
	}
}

// writePDFs creates a student answer sheet and an answer key.
func (e *cliTestEnv) writePDFs(t *testing.T) (string, string) {
	t.Helper()
	student := testsupport.WritePDF(t, e.pdfDir, "student.pdf", 2)
	key := testsupport.WritePDF(t, e.pdfDir, "answer-key.pdf", 1)
	return student, key
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
