package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/config"
)

type runnerCall struct {
	name string
	args []string
}

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	calls  []runnerCall
	output map[string][]byte
	errs   map[string]error
	block  bool
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, runnerCall{name: name, args: args})
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	return m.output[name], nil
}

func testOCRConfig() config.OCRConfig {
	return config.OCRConfig{
		PdftoppmPath:  "pdftoppm",
		TesseractPath: "tesseract",
		Language:      "eng",
		DPI:           300,
		Timeout:       time.Second,
	}
}

func TestOCRPage(t *testing.T) {
	runner := &mockRunner{output: map[string][]byte{"tesseract": []byte("  Scanned syllabus text \n\n")}}
	svc := NewOCRService(testOCRConfig(), runner, zap.NewNop())

	text, err := svc.OCRPage(context.Background(), "/data/CS3491/notes/unit1.pdf", 3)
	require.NoError(t, err)
	assert.Equal(t, "Scanned syllabus text", text)

	require.Len(t, runner.calls, 2)
	raster := runner.calls[0]
	assert.Equal(t, "pdftoppm", raster.name)
	assert.Equal(t, []string{"-f", "3", "-l", "3", "-r", "300", "-png", "-singlefile"}, raster.args[:8])
	assert.Equal(t, "/data/CS3491/notes/unit1.pdf", raster.args[8])

	ocr := runner.calls[1]
	assert.Equal(t, "tesseract", ocr.name)
	assert.Equal(t, raster.args[9]+".png", ocr.args[0])
	assert.Equal(t, []string{"stdout", "-l", "eng"}, ocr.args[1:])
}

func TestOCRPage_RasterizeFailure(t *testing.T) {
	runner := &mockRunner{errs: map[string]error{"pdftoppm": errors.New("exit status 1")}}
	svc := NewOCRService(testOCRConfig(), runner, zap.NewNop())

	_, err := svc.OCRPage(context.Background(), "broken.pdf", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOCRFailed)
	assert.Len(t, runner.calls, 1)
}

func TestOCRPage_Timeout(t *testing.T) {
	cfg := testOCRConfig()
	cfg.Timeout = 20 * time.Millisecond
	svc := NewOCRService(cfg, &mockRunner{block: true}, zap.NewNop())

	_, err := svc.OCRPage(context.Background(), "slow.pdf", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOCRFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOCRPage_InvalidPage(t *testing.T) {
	runner := &mockRunner{}
	svc := NewOCRService(testOCRConfig(), runner, zap.NewNop())

	_, err := svc.OCRPage(context.Background(), "a.pdf", 0)
	assert.ErrorIs(t, err, ErrOCRFailed)
	assert.Empty(t, runner.calls)
}
