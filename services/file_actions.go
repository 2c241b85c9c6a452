package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/itish2003/studyrag/models"
)

// FileActions handles the study-material files under the data root.
type FileActions struct {
	DataDir  string // absolute path of the data root
	subjects []string
}

func NewFileActions(dataRoot string, subjects []string) (*FileActions, error) {
	absPath, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for data root: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}
	return &FileActions{DataDir: absPath, subjects: subjects}, nil
}

// resolve validates subject, category and filename and returns the file's path.
func (fa *FileActions) resolve(subject, category, filename string) (string, error) {
	if !slices.Contains(fa.subjects, subject) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidSubject, subject)
	}
	cat, err := models.ParseCategory(category)
	if err != nil {
		return "", err
	}
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) ||
		filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: invalid filename %q", models.ErrInvalidFile, filename)
	}
	if !isPDF(filename) {
		return "", fmt.Errorf("%w: only PDF files allowed", models.ErrInvalidFile)
	}
	dir := filepath.Join(fa.DataDir, subject, string(cat))
	cleanPath := filepath.Join(dir, filename)
	// This prevents path traversal (e.g. filename = "../../../etc/passwd")
	if filepath.Dir(cleanPath) != dir {
		return "", fmt.Errorf("%w: filename escapes the subject directory", models.ErrInvalidFile)
	}
	return cleanPath, nil
}

// SaveUpload stores a PDF at <data_root>/<subject>/<category>/<filename>,
// replacing any file of the same name. Content that does not sniff as PDF is rejected.
func (fa *FileActions) SaveUpload(subject, category, filename string, content io.Reader) (string, error) {
	path, err := fa.resolve(subject, category, filename)
	if err != nil {
		return "", err
	}

	br := bufio.NewReaderSize(content, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if mime := http.DetectContentType(head); mime != "application/pdf" {
		return "", fmt.Errorf("%w: content is %s, not a PDF", models.ErrInvalidFile, mime)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, br); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", filename, err)
	}
	return path, nil
}

// DeleteFile removes one uploaded PDF.
func (fa *FileActions) DeleteFile(subject, category, filename string) error {
	path, err := fa.resolve(subject, category, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", models.ErrFileNotFound, filename)
		}
		return fmt.Errorf("failed to delete file %s: %w", filename, err)
	}
	return nil
}

// ListFiles returns the PDF names per category (every category present, possibly empty) and the total.
func (fa *FileActions) ListFiles(subject string) (map[string][]string, int, error) {
	if !slices.Contains(fa.subjects, subject) {
		return nil, 0, fmt.Errorf("%w: %q", models.ErrInvalidSubject, subject)
	}
	files := make(map[string][]string, len(models.AllCategories))
	total := 0
	for _, cat := range models.AllCategories {
		paths, err := listPDFs(filepath.Join(fa.DataDir, subject, string(cat)))
		if err != nil {
			return nil, 0, err
		}
		names := make([]string, 0, len(paths))
		for _, p := range paths {
			names = append(names, filepath.Base(p))
		}
		files[string(cat)] = names
		total += len(names)
	}
	return files, total, nil
}
