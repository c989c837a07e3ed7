package results

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"evalo/internal/grading"
	"evalo/internal/logging"
	"evalo/internal/services"
)

// DownloadFailedNotice is the message shown to the user when a report cannot be fetched or saved.
const DownloadFailedNotice = "Failed to download report. Please try again later."

// ErrDownloadInFlight is returned when a download is requested while another is running.
var ErrDownloadInFlight = fmt.Errorf("%w: report download already in progress", services.ErrBusy)

// ReportGenerator produces the PDF report for a result.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, result grading.Result) (io.ReadCloser, error)
}

// Downloader fetches reports one at a time.
type Downloader struct {
	generator ReportGenerator
	filename  string
	logger    *slog.Logger
	inFlight  atomic.Bool
}

// NewDownloader constructs a Downloader. filename is used when the
// destination is a directory.
func NewDownloader(generator ReportGenerator, filename string, logger *slog.Logger) *Downloader {
	if filename == "" {
		filename = "exam-results-report.pdf"
	}
	return &Downloader{
		generator: generator,
		filename:  filename,
		logger:    logging.NewComponentLogger(logger, "report"),
	}
}

// InFlight reports whether a download is currently running.
func (d *Downloader) InFlight() bool {
	return d.inFlight.Load()
}

// Download requests the report for result and saves it at dest, which may be
// a file path or an existing directory. It returns the saved path. A call made
// while another download is running returns ErrDownloadInFlight without
// issuing a request. The result is never modified.
func (d *Downloader) Download(ctx context.Context, result grading.Result, dest string) (string, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return "", ErrDownloadInFlight
	}
	defer d.inFlight.Store(false)

	target, err := d.resolveTarget(dest)
	if err != nil {
		return "", err
	}

	body, err := d.generator.GenerateReport(ctx, result)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "report download failed", "report_download_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "retry the download"),
		)
		return "", err
	}
	defer body.Close()

	size, err := saveAtomically(body, target)
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, d.logger).Info("report saved",
		logging.String("path", target),
		logging.String("size", humanize.Bytes(uint64(size))),
	)
	return target, nil
}

func (d *Downloader) resolveTarget(dest string) (string, error) {
	if dest == "" {
		dest = "."
	}
	info, err := os.Stat(dest)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(dest, d.filename), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		dir := filepath.Dir(dest)
		if dirInfo, statErr := os.Stat(dir); statErr != nil || !dirInfo.IsDir() {
			return "", services.Wrap(services.ErrValidation, "report", "download", fmt.Sprintf("destination directory %s does not exist", dir), statErr)
		}
		return dest, nil
	default:
		return "", services.Wrap(services.ErrValidation, "report", "download", "inspect destination", err)
	}
}

// saveAtomically streams r into a temporary file beside target and renames it
// into place. The temporary file is removed on every path.
func saveAtomically(r io.Reader, target string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".evalo-report-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("stage report: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		return 0, services.Wrap(services.ErrTransport, "report", "download", "read report body", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("stage report: %w", closeErr)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return 0, fmt.Errorf("save report: %w", err)
	}
	return size, nil
}
