// Package intake checks the PDFs a user selects before they are uploaded.
package intake

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"evalo/internal/grading"
	"evalo/internal/logging"
	"evalo/internal/services"
)

// Summary describes a selected PDF.
type Summary struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Size  int64  `json:"size_bytes"`
	Pages *int   `json:"pages,omitempty"`
}

// HumanSize renders Size the way the CLI prints it (e.g. "1.2 MB").
func (s Summary) HumanSize() string {
	return humanize.Bytes(uint64(max(s.Size, 0)))
}

// PageLabel renders the page count or "?" when it could not be read.
func (s Summary) PageLabel() string {
	if s.Pages == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *s.Pages)
}

// Document returns the upload handle for the inspected file.
func (s Summary) Document() grading.Document {
	return grading.FileDocument{Path: s.Path}
}

// AcceptsPDF mirrors the file picker filter: only .pdf names are offered.
func AcceptsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Inspect validates that path names a readable PDF file and collects its size
// and page count. A page count that cannot be read is logged and left nil; the
// grading service remains the authority on whether the document is usable.
func Inspect(path string, logger *slog.Logger) (Summary, error) {
	logger = logging.NewComponentLogger(logger, "intake")

	if strings.TrimSpace(path) == "" {
		return Summary{}, services.Wrap(services.ErrValidation, "intake", "inspect", "no file selected", nil)
	}
	if !AcceptsPDF(path) {
		return Summary{}, services.Wrap(services.ErrValidation, "intake", "inspect", fmt.Sprintf("%s is not a .pdf file", filepath.Base(path)), nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrValidation, "intake", "inspect", "stat file", err)
	}
	if info.IsDir() {
		return Summary{}, services.Wrap(services.ErrValidation, "intake", "inspect", fmt.Sprintf("%s is a directory", path), nil)
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		absolute = path
	}
	summary := Summary{
		Name: filepath.Base(path),
		Path: absolute,
		Size: info.Size(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrValidation, "intake", "inspect", "read file", err)
	}
	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logging.WarnWithContext(logger, "failed to extract PDF page count", "pdf_page_count_failed",
			logging.String("file", summary.Name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file will still be uploaded; check it opens in a PDF viewer"),
		)
		return summary, nil
	}
	summary.Pages = &count
	return summary, nil
}
