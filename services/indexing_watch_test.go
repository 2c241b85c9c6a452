package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/models"
	"github.com/itish2003/studyrag/vectorstore"
)

const watchDebounce = 50 * time.Millisecond

// countingExtractor returns the same page for every file and counts calls.
// It is safe for use from the watcher's timer goroutines.
type countingExtractor struct {
	mu    sync.Mutex
	calls int
}

func (e *countingExtractor) ExtractText(context.Context, string) (models.ExtractedDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return models.ExtractedDocument{Text: notesPage, Pages: 1}, nil
}

func (e *countingExtractor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type watchFixture struct {
	notesDir  string
	extractor *countingExtractor
	store     *vectorstore.SQLiteStore
	cancel    context.CancelFunc
	done      chan error
}

func startWatcher(t *testing.T) *watchFixture {
	t.Helper()
	root := t.TempDir()
	cfg := testConfig(filepath.Join(root, "data"))
	cfg.AllowedSubjects = []string{"CS3491"}

	store, err := vectorstore.NewSQLiteStore(filepath.Join(root, "index"), zap.NewNop())
	require.NoError(t, err)
	chunker, err := NewChunker(cfg.Chunking.Size, cfg.Chunking.OverlapChars())
	require.NoError(t, err)

	f := &watchFixture{
		notesDir:  filepath.Join(cfg.DataRoot, "CS3491", string(models.CategoryNotes)),
		extractor: &countingExtractor{},
		store:     store,
		done:      make(chan error, 1),
	}
	svc := NewIndexingService(cfg, f.extractor, chunker, &hashEmbedder{}, store, vectorstore.NewSubjectLocks(), zap.NewNop())
	svc.WatchDebounce = watchDebounce

	// Register the folders before any file is written so no event is missed.
	watcher, dirSubject, err := svc.watchSubjectDirs()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- svc.runWatcher(ctx, watcher, dirSubject) }()
	t.Cleanup(func() {
		cancel()
		<-f.done
	})
	return f
}

// chunkCount is polled from Eventually's goroutine, so it reports errors as -1.
func (f *watchFixture) chunkCount() int {
	n, err := f.store.Count(context.Background(), "CS3491")
	if err != nil {
		return -1
	}
	return n
}

// settle waits long enough for any pending debounce to have fired.
func settle() { time.Sleep(6 * watchDebounce) }

func TestWatchSubjects_ReingestsOnChanges(t *testing.T) {
	f := startWatcher(t)
	a := filepath.Join(f.notesDir, "a.pdf")
	content := []byte("%PDF-1.4 unit one")

	require.NoError(t, os.WriteFile(a, content, 0o644))
	require.Eventually(t, func() bool { return f.chunkCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	settle()
	assert.Equal(t, 1, f.extractor.Calls(), "one burst of writes is one run")

	// Same bytes written in place: the content hash is unchanged.
	file, err := os.OpenFile(a, os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = file.WriteAt(content, 0)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	settle()
	assert.Equal(t, 1, f.extractor.Calls())

	require.NoError(t, os.WriteFile(filepath.Join(f.notesDir, "b.pdf"), []byte("%PDF-1.4 unit two"), 0o644))
	require.Eventually(t, func() bool { return f.chunkCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	settle()
	assert.Equal(t, 3, f.extractor.Calls(), "second run extracts both files")

	require.NoError(t, os.Remove(a))
	require.Eventually(t, func() bool { return f.chunkCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	settle()
	assert.Equal(t, 4, f.extractor.Calls(), "run after removal extracts the remaining file")
}

func TestWatchSubjects_IgnoresNonPDF(t *testing.T) {
	f := startWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(f.notesDir, "notes.txt"), []byte("plain"), 0o644))
	settle()
	assert.Zero(t, f.extractor.Calls())
}

func TestWatchSubjects_CancelStopsPendingRuns(t *testing.T) {
	f := startWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(f.notesDir, "a.pdf"), []byte("%PDF-1.4"), 0o644))
	f.cancel()

	select {
	case err := <-f.done:
		assert.NoError(t, err)
		f.done <- err // for the cleanup receive
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not return after cancel")
	}

	// Any run started before the return has finished; nothing fires afterwards.
	calls := f.extractor.Calls()
	settle()
	assert.Equal(t, calls, f.extractor.Calls())
}

// blockingExtractor parks every call until release is closed.
type blockingExtractor struct {
	entered chan struct{}
	release chan struct{}
}

func (e *blockingExtractor) ExtractText(ctx context.Context, _ string) (models.ExtractedDocument, error) {
	select {
	case e.entered <- struct{}{}:
	default:
	}
	select {
	case <-e.release:
	case <-ctx.Done():
		return models.ExtractedDocument{}, ctx.Err()
	}
	return models.ExtractedDocument{Text: syllabusPage, Pages: 1}, nil
}

func TestIngestSubject_ReadersNotBlockedDuringExtraction(t *testing.T) {
	f := newIngestFixture(t)
	f.addPDF(t, "CS3491", models.CategoryNotes, "unit2.pdf", notesPage)
	_, err := f.svc.IngestSubject(context.Background(), "CS3491")
	require.NoError(t, err)

	blocking := &blockingExtractor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	chunker, err := NewChunker(f.cfg.Chunking.Size, f.cfg.Chunking.OverlapChars())
	require.NoError(t, err)
	slow := NewIndexingService(f.cfg, blocking, chunker, f.embedder, f.store, f.locks, zap.NewNop())

	ingested := make(chan error, 1)
	go func() {
		_, err := slow.IngestSubject(context.Background(), "CS3491")
		ingested <- err
	}()
	<-blocking.entered

	retrieved := make(chan error, 1)
	go func() {
		_, err := f.retriever().Retrieve(context.Background(), "bayesian networks", "CS3491", 3, nil)
		retrieved <- err
	}()
	select {
	case err := <-retrieved:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retrieval blocked behind a running ingestion")
	}

	close(blocking.release)
	require.NoError(t, <-ingested)
}
