package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/models"
)

// SetupPDFLicense registers the UniPDF metered license key. PDF parsing fails without it.
func SetupPDFLicense(key string) error {
	if key == "" {
		return fmt.Errorf("unidoc license key is empty, set UNIDOC_LICENSE_KEY or pdf.license_key")
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set unidoc license key: %w", err)
	}
	return nil
}

// PageSource gives per-page access to an opened PDF. Pages are 1-based.
type PageSource interface {
	NumPages() int
	PageText(page int) (string, error)
	Close() error
}

// PDFOpener opens a PDF file for page-wise text extraction.
type PDFOpener interface {
	Open(path string) (PageSource, error)
}

// UniPDFOpener opens PDFs with UniPDF.
type UniPDFOpener struct{}

func (UniPDFOpener) Open(path string) (PageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := model.NewPdfReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}
	return &uniPDFSource{file: f, reader: reader, numPages: numPages}, nil
}

type uniPDFSource struct {
	file     *os.File
	reader   *model.PdfReader
	numPages int
}

func (s *uniPDFSource) NumPages() int { return s.numPages }

func (s *uniPDFSource) PageText(i int) (string, error) {
	page, err := s.reader.GetPage(i)
	if err != nil {
		return "", err
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", err
	}
	return ex.ExtractText()
}

func (s *uniPDFSource) Close() error { return s.file.Close() }

// Extractor produces cleaned text for a whole PDF, falling back to OCR for junk pages.
type Extractor struct {
	opener PDFOpener
	ocr    PageOCR
	logger *zap.Logger
}

// NewExtractor creates an Extractor. A nil ocr disables the OCR fallback; junk
// pages then keep their cleaned direct text.
func NewExtractor(opener PDFOpener, ocr PageOCR, logger *zap.Logger) *Extractor {
	return &Extractor{opener: opener, ocr: ocr, logger: logger.Named("extractor")}
}

// ExtractText extracts, cleans and (if needed) OCRs every page of the PDF at path.
// Each page contributes exactly one block, possibly empty; blocks are joined by a blank line.
func (e *Extractor) ExtractText(ctx context.Context, path string) (models.ExtractedDocument, error) {
	src, err := e.opener.Open(path)
	if err != nil {
		return models.ExtractedDocument{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	n := src.NumPages()
	pages := make([]string, 0, n)
	ocrPages := 0
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return models.ExtractedDocument{}, err
		}

		raw, err := src.PageText(i)
		if err != nil {
			e.logger.Debug("direct extraction failed, treating page as empty",
				zap.String("file", path), zap.Int("page", i), zap.Error(err))
			raw = ""
		}
		text := CleanText(raw)

		if IsJunk(text) && e.ocr != nil {
			ocrText, err := e.ocr.OCRPage(ctx, path, i)
			if err != nil {
				return models.ExtractedDocument{}, err
			}
			text = CleanText(ocrText)
			ocrPages++
		}
		pages = append(pages, text)
	}

	e.logger.Info("extracted document",
		zap.String("file", path), zap.Int("pages", n), zap.Int("ocr_pages", ocrPages))
	return models.ExtractedDocument{
		Text:     strings.Join(pages, "\n\n"),
		Pages:    n,
		OCRPages: ocrPages,
	}, nil
}
