package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agentic-rag-platform/models"
)

type memoryRunStore struct {
	mu   sync.Mutex
	runs map[primitive.ObjectID]*models.IndexerRun
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: make(map[primitive.ObjectID]*models.IndexerRun)}
}

func (m *memoryRunStore) CreateRun(_ context.Context, documentID primitive.ObjectID) (*models.IndexerRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &models.IndexerRun{
		ID:         primitive.NewObjectID(),
		DocumentID: documentID,
		Status:     models.RunPending,
		StartedAt:  time.Now(),
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memoryRunStore) GetRun(_ context.Context, id primitive.ObjectID) (*models.IndexerRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	copied := *run
	return &copied, nil
}

func (m *memoryRunStore) UpdateRunProgress(_ context.Context, id primitive.ObjectID, stage string, counters models.RunCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	if run.Terminal() {
		return errors.New("run is terminal")
	}
	run.Status = models.RunRunning
	run.Stage = stage
	run.Counters = counters
	return nil
}

func (m *memoryRunStore) FinishRun(_ context.Context, id primitive.ObjectID, status string, counters models.RunCounters, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	if run.Terminal() {
		return errors.New("run is terminal")
	}
	now := time.Now()
	run.Status = status
	run.Counters = counters
	run.Error = errMsg
	run.FinishedAt = &now
	return nil
}

type memoryDocStore struct {
	docs map[primitive.ObjectID]*models.Document
}

func newMemoryDocStore(docs ...*models.Document) *memoryDocStore {
	m := &memoryDocStore{docs: make(map[primitive.ObjectID]*models.Document)}
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return m
}

func (m *memoryDocStore) GetDocument(_ context.Context, id primitive.ObjectID) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, errors.New("document not found")
	}
	return doc, nil
}

func (m *memoryDocStore) UpdateDocumentStatus(_ context.Context, id primitive.ObjectID, status, errMsg string) error {
	doc, ok := m.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Status = status
	doc.Error = errMsg
	return nil
}

func (m *memoryDocStore) MarkDocumentIndexed(_ context.Context, id primitive.ObjectID, pages, chunkCount int) error {
	doc, ok := m.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Status = models.DocumentIndexed
	doc.Pages = pages
	doc.ChunkCount = chunkCount
	return nil
}

type recordingNotifier struct {
	calls int
	cause error
}

func (r *recordingNotifier) NotifyRunFailure(_ *models.Document, _ *models.IndexerRun, cause error) {
	r.calls++
	r.cause = cause
}

func TestRunnerSuccessLifecycle(t *testing.T) {
	doc := testDocument()
	runs := newMemoryRunStore()
	docs := newMemoryDocStore(doc)

	pipeline := NewPipeline(
		fakeExtractor{pages: []Page{{Number: 1, Text: "alpha\nbeta"}}},
		wordChunker{}, &fakeEmbedder{}, &fakeWriter{}, 4096,
	)
	runner := NewRunner(pipeline, runs, docs, nil, nil)

	run, err := runner.Execute(context.Background(), doc.ID, "staged.pdf")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if run.Status != models.RunSucceeded {
		t.Errorf("run status = %q", run.Status)
	}
	if run.Counters.Stored != 2 {
		t.Errorf("stored = %d, want 2", run.Counters.Stored)
	}
	if run.FinishedAt == nil {
		t.Error("finished_at not set")
	}
	if doc.Status != models.DocumentIndexed {
		t.Errorf("document status = %q", doc.Status)
	}
	if doc.ChunkCount != 2 || doc.Pages != 1 {
		t.Errorf("document counters: pages=%d chunks=%d", doc.Pages, doc.ChunkCount)
	}
}

func TestRunnerFailureMarksRunAndDocument(t *testing.T) {
	doc := testDocument()
	runs := newMemoryRunStore()
	docs := newMemoryDocStore(doc)
	notifier := &recordingNotifier{}

	pipeline := NewPipeline(
		fakeExtractor{err: errors.New("corrupt pdf")},
		wordChunker{}, &fakeEmbedder{}, &fakeWriter{}, 4096,
	)
	runner := NewRunner(pipeline, runs, docs, nil, notifier)

	run, err := runner.Execute(context.Background(), doc.ID, "staged.pdf")
	if err == nil {
		t.Fatal("expected the pipeline error to propagate")
	}

	if run == nil || run.Status != models.RunFailed {
		t.Fatalf("run = %+v", run)
	}
	if run.Error == "" {
		t.Error("run error message not recorded")
	}
	if doc.Status != models.DocumentFailed {
		t.Errorf("document status = %q", doc.Status)
	}
	if notifier.calls != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.calls)
	}
}

func TestRunnerUnknownDocument(t *testing.T) {
	runner := NewRunner(
		NewPipeline(fakeExtractor{}, wordChunker{}, &fakeEmbedder{}, &fakeWriter{}, 4096),
		newMemoryRunStore(), newMemoryDocStore(), nil, nil,
	)

	if _, err := runner.Execute(context.Background(), primitive.NewObjectID(), "x.pdf"); err == nil {
		t.Fatal("expected an error for an unknown document")
	}
}

func TestPollRunReturnsOnTerminalState(t *testing.T) {
	runs := newMemoryRunStore()
	run, _ := runs.CreateRun(context.Background(), primitive.NewObjectID())

	go func() {
		time.Sleep(30 * time.Millisecond)
		runs.FinishRun(context.Background(), run.ID, models.RunSucceeded, models.RunCounters{Stored: 5}, "")
	}()

	polled, err := PollRun(context.Background(), runs, run.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("PollRun failed: %v", err)
	}
	if polled.Status != models.RunSucceeded || polled.Counters.Stored != 5 {
		t.Errorf("polled run = %+v", polled)
	}
}

func TestPollRunHonorsContext(t *testing.T) {
	runs := newMemoryRunStore()
	run, _ := runs.CreateRun(context.Background(), primitive.NewObjectID())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := PollRun(ctx, runs, run.ID, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
