package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/itish2003/studyrag/config"
	"github.com/itish2003/studyrag/metrics"
)

// ErrOCRFailed wraps every OCR failure.
var ErrOCRFailed = errors.New("ocr failed")

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// PageOCR turns a single PDF page into text.
type PageOCR interface {
	OCRPage(ctx context.Context, pdfPath string, page int) (string, error)
}

// OCRService rasterizes one page with pdftoppm and reads it back with tesseract.
type OCRService struct {
	runner    CommandRunner
	pdftoppm  string
	tesseract string
	language  string
	dpi       int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewOCRService creates an OCR service from configuration. A nil runner uses ExecRunner.
func NewOCRService(cfg config.OCRConfig, runner CommandRunner, logger *zap.Logger) *OCRService {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &OCRService{
		runner:    runner,
		pdftoppm:  cfg.PdftoppmPath,
		tesseract: cfg.TesseractPath,
		language:  cfg.Language,
		dpi:       cfg.DPI,
		timeout:   cfg.Timeout,
		logger:    logger.Named("ocr"),
	}
}

// OCRPage returns the trimmed OCR text of the 1-based page of pdfPath.
func (s *OCRService) OCRPage(ctx context.Context, pdfPath string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("%w: invalid page number %d", ErrOCRFailed, page)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.ocrPage(ctx, pdfPath, page)
	if err != nil {
		metrics.OCRPagesTotal.WithLabelValues("error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}
		s.logger.Warn("page OCR failed", zap.String("file", pdfPath), zap.Int("page", page), zap.Error(err))
		return "", fmt.Errorf("%w: %s page %d: %w", ErrOCRFailed, filepath.Base(pdfPath), page, err)
	}

	metrics.OCRPagesTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("page OCR done", zap.String("file", pdfPath), zap.Int("page", page), zap.Int("chars", len(text)))
	return text, nil
}

func (s *OCRService) ocrPage(ctx context.Context, pdfPath string, page int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "studyrag-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page)
	if _, err := s.runner.Run(ctx, s.pdftoppm,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(s.dpi),
		"-png", "-singlefile",
		pdfPath, prefix,
	); err != nil {
		return "", fmt.Errorf("rasterize: %w", err)
	}

	out, err := s.runner.Run(ctx, s.tesseract, prefix+".png", "stdout", "-l", s.language)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
