package grading_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"evalo/internal/grading"
	"evalo/internal/services"
)

const sampleResult = `{
  "total_score": 18,
  "total_possible": 20,
  "percentage": 90,
  "questions": [
    {"question_number": 1, "points_earned": 9, "points_possible": 10, "feedback": "Good"},
    {"question_number": 2, "points_earned": 9, "points_possible": 10, "feedback": "Clear", "justification": "Minor slip"}
  ]
}`

func TestSubmitSendsBothPartsAndDecodesResult(t *testing.T) {
	var gotParts map[string]string
	var gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/process-pdfs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotRequestID = r.Header.Get("X-Request-ID")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotParts = map[string]string{}
		for field, headers := range r.MultipartForm.File {
			f, err := headers[0].Open()
			if err != nil {
				t.Errorf("open part %s: %v", field, err)
				return
			}
			data, _ := io.ReadAll(f)
			f.Close()
			gotParts[field] = headers[0].Filename + ":" + string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResult)
	}))
	defer srv.Close()

	dir := t.TempDir()
	studentPath := filepath.Join(dir, "student.pdf")
	if err := os.WriteFile(studentPath, []byte("student-bytes"), 0o644); err != nil {
		t.Fatalf("write student pdf: %v", err)
	}

	client := grading.NewClient(srv.URL+"/process-pdfs", srv.URL+"/generate-report", srv.Client(), nil)
	ctx := services.WithRequestID(context.Background(), "req-1")
	result, err := client.Submit(ctx,
		grading.FileDocument{Path: studentPath},
		grading.BytesDocument{Filename: "key.pdf", Data: []byte("key-bytes")},
	)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if gotParts[grading.StudentPartName] != "student.pdf:student-bytes" {
		t.Fatalf("unexpected student part: %q", gotParts[grading.StudentPartName])
	}
	if gotParts[grading.AnswerKeyPartName] != "key.pdf:key-bytes" {
		t.Fatalf("unexpected answer key part: %q", gotParts[grading.AnswerKeyPartName])
	}
	if len(gotParts) != 2 {
		t.Fatalf("expected exactly two parts, got %v", gotParts)
	}
	if gotRequestID != "req-1" {
		t.Fatalf("expected request id from context, got %q", gotRequestID)
	}
	if result.TotalScore != 18 || result.TotalPossible != 20 || result.Percentage != 90 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if len(result.Questions) != 2 || result.Questions[1].Justification != "Minor slip" {
		t.Fatalf("unexpected questions: %+v", result.Questions)
	}
}

func TestSubmitNonSuccessStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := grading.NewClient(srv.URL, srv.URL, srv.Client(), nil)
	_, err := client.Submit(context.Background(),
		grading.BytesDocument{Filename: "a.pdf", Data: []byte("a")},
		grading.BytesDocument{Filename: "b.pdf", Data: []byte("b")},
	)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var statusErr *grading.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError in chain, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError || statusErr.Body != "boom" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestSubmitMalformedBodyIsDecodeError(t *testing.T) {
	cases := map[string]string{
		"not json":        "<html>oops</html>",
		"missing totals":  `{"questions": []}`,
		"missing numbers": `{"total_score":1,"total_possible":2,"percentage":50,"questions":[{"feedback":"x"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			client := grading.NewClient(srv.URL, srv.URL, srv.Client(), nil)
			_, err := client.Submit(context.Background(),
				grading.BytesDocument{Filename: "a.pdf"},
				grading.BytesDocument{Filename: "b.pdf"},
			)
			if !errors.Is(err, services.ErrDecode) {
				t.Fatalf("expected decode error, got %v", err)
			}
		})
	}
}

func TestSubmitRequiresBothDocuments(t *testing.T) {
	client := grading.NewClient("http://127.0.0.1:1", "", nil, nil)
	_, err := client.Submit(context.Background(), grading.BytesDocument{Filename: "a.pdf"}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateReportPostsResultAndStreamsPDF(t *testing.T) {
	var posted grading.Result
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-report" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Errorf("decode posted result: %v", err)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.4 report")
	}))
	defer srv.Close()

	result, err := grading.DecodeResult([]byte(sampleResult))
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	client := grading.NewClient(srv.URL+"/process-pdfs", srv.URL+"/generate-report", srv.Client(), nil)
	body, err := client.GenerateReport(context.Background(), result)
	if err != nil {
		t.Fatalf("GenerateReport returned error: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(data) != "%PDF-1.4 report" {
		t.Fatalf("unexpected report body: %q", data)
	}
	if posted.TotalScore != 18 || len(posted.Questions) != 2 {
		t.Fatalf("unexpected posted result: %+v", posted)
	}
}

func TestGenerateReportFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := grading.NewClient(srv.URL, srv.URL, srv.Client(), nil)
	body, err := client.GenerateReport(context.Background(), grading.Result{})
	if err == nil {
		body.Close()
		t.Fatal("expected error for 502")
	}
	var statusErr *grading.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 status error, got %v", err)
	}
}
