package grading

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Document is a PDF the user selected for upload.
type Document interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileDocument is a Document backed by a file on disk.
type FileDocument struct {
	Path string
}

func (d FileDocument) Name() string { return filepath.Base(d.Path) }

func (d FileDocument) Open() (io.ReadCloser, error) { return os.Open(d.Path) }

// BytesDocument is an in-memory Document.
type BytesDocument struct {
	Filename string
	Data     []byte
}

func (d BytesDocument) Name() string { return d.Filename }

func (d BytesDocument) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(d.Data)), nil
}
