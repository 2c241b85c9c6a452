package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itish2003/studyrag/models"
)

const pdfBytes = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"

func newTestFileActions(t *testing.T) *FileActions {
	t.Helper()
	fa, err := NewFileActions(t.TempDir(), []string{"CS3491", "MA3251"})
	require.NoError(t, err)
	return fa
}

func TestSaveUpload(t *testing.T) {
	fa := newTestFileActions(t)

	path, err := fa.SaveUpload("CS3491", "notes", "unit1.pdf", strings.NewReader(pdfBytes))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fa.DataDir, "CS3491", "notes", "unit1.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, string(data))

	// Re-uploading overwrites.
	_, err = fa.SaveUpload("CS3491", "notes", "unit1.pdf", strings.NewReader(pdfBytes+"% v2\n"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "% v2\n"))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveUpload_Rejections(t *testing.T) {
	fa := newTestFileActions(t)

	tests := []struct {
		name     string
		subject  string
		category string
		filename string
		content  string
		wantErr  error
	}{
		{"unknown subject", "XX0000", "notes", "a.pdf", pdfBytes, models.ErrInvalidSubject},
		{"unknown category", "CS3491", "slides", "a.pdf", pdfBytes, models.ErrInvalidCategory},
		{"not a pdf name", "CS3491", "notes", "a.docx", pdfBytes, models.ErrInvalidFile},
		{"path traversal", "CS3491", "notes", "../../evil.pdf", pdfBytes, models.ErrInvalidFile},
		{"empty name", "CS3491", "notes", "", pdfBytes, models.ErrInvalidFile},
		{"not pdf content", "CS3491", "notes", "fake.pdf", "hello, plain text", models.ErrInvalidFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fa.SaveUpload(tt.subject, tt.category, tt.filename, strings.NewReader(tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSaveUpload_UppercaseExtension(t *testing.T) {
	fa := newTestFileActions(t)
	_, err := fa.SaveUpload("MA3251", "past_papers", "2023-NOV.PDF", strings.NewReader(pdfBytes))
	assert.NoError(t, err)
}

func TestDeleteFile(t *testing.T) {
	fa := newTestFileActions(t)
	_, err := fa.SaveUpload("CS3491", "syllabus", "syllabus.pdf", strings.NewReader(pdfBytes))
	require.NoError(t, err)

	require.NoError(t, fa.DeleteFile("CS3491", "syllabus", "syllabus.pdf"))
	assert.ErrorIs(t, fa.DeleteFile("CS3491", "syllabus", "syllabus.pdf"), models.ErrFileNotFound)
	assert.ErrorIs(t, fa.DeleteFile("CS3491", "videos", "syllabus.pdf"), models.ErrInvalidCategory)
}

func TestListFiles(t *testing.T) {
	fa := newTestFileActions(t)
	for _, name := range []string{"b.pdf", "a.pdf"} {
		_, err := fa.SaveUpload("CS3491", "notes", name, strings.NewReader(pdfBytes))
		require.NoError(t, err)
	}
	_, err := fa.SaveUpload("CS3491", "syllabus", "s.pdf", strings.NewReader(pdfBytes))
	require.NoError(t, err)

	files, total, err := fa.ListFiles("CS3491")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, files["notes"])
	assert.Equal(t, []string{"s.pdf"}, files["syllabus"])
	assert.Equal(t, []string{}, files["past_papers"])

	_, _, err = fa.ListFiles("nope")
	assert.ErrorIs(t, err, models.ErrInvalidSubject)
}
