package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]Record)}
}

func (s *memoryStore) Get(_ context.Context, jobID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[jobID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memoryStore) Upsert(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stampRecord(record, time.Now().UTC(), time.Minute)
	s.records[record.JobID] = *record
	return nil
}

func (s *memoryStore) MarkRunning(_ context.Context, jobID string, stage string) error {
	return s.update(jobID, func(r *Record) { markRunning(r, stage) })
}

func (s *memoryStore) MarkDone(_ context.Context, jobID string, meta any) error {
	return s.update(jobID, func(r *Record) { markDone(r, meta) })
}

func (s *memoryStore) MarkFailed(_ context.Context, jobID string, errInfo *ErrorInfo) error {
	return s.update(jobID, func(r *Record) { markFailed(r, errInfo) })
}

func (s *memoryStore) update(jobID string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[jobID]
	if !ok {
		return errors.New("job not found")
	}
	mutate(&r)
	s.records[jobID] = r
	return nil
}

type stubPurger struct {
	removed int64
	err     error
	owners  []uint
}

func (p *stubPurger) PurgeCompleted(_ context.Context, ownerID uint) (int64, error) {
	p.owners = append(p.owners, ownerID)
	return p.removed, p.err
}

func newTestManager(store RecordStore, purger Purger) *Manager {
	return &Manager{
		store:  store,
		purger: purger,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func seedQueued(t *testing.T, store RecordStore, jobID string, ownerID uint) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), &Record{
		JobID:     jobID,
		Operation: OperationPurgeCompleted,
		OwnerID:   ownerID,
		Status:    StatusQueued,
	}))
}

func purgeTask(t *testing.T, payload TaskPayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(taskTypePurge, body)
}

func TestHandlePurgeTaskSuccess(t *testing.T) {
	store := newMemoryStore()
	purger := &stubPurger{removed: 3}
	m := newTestManager(store, purger)
	seedQueued(t, store, "job-1", 7)

	err := m.handlePurgeTask(context.Background(), purgeTask(t, TaskPayload{JobID: "job-1", OwnerID: 7}))
	require.NoError(t, err)

	assert.Equal(t, []uint{7}, purger.owners)

	record, err := m.GetRecord(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, StatusSucceeded, record.Status)
	assert.Equal(t, 100, record.Progress.Percent)
	assert.Equal(t, uint(7), record.OwnerID)
	assert.Equal(t, PurgeMeta{Removed: 3}, record.Meta)
	assert.Nil(t, record.Error)
}

func TestHandlePurgeTaskFailure(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store, &stubPurger{err: errors.New("database is locked")})
	seedQueued(t, store, "job-2", 1)

	err := m.handlePurgeTask(context.Background(), purgeTask(t, TaskPayload{JobID: "job-2", OwnerID: 1}))
	require.Error(t, err)

	record, err := m.GetRecord(context.Background(), "job-2")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, StatusFailed, record.Status)
	require.NotNil(t, record.Error)
	assert.Equal(t, "INTERNAL_ERROR", record.Error.Code)
}

func TestHandlePurgeTaskInvalidPayloadSkipsRetry(t *testing.T) {
	m := newTestManager(newMemoryStore(), &stubPurger{})

	err := m.handlePurgeTask(context.Background(), asynq.NewTask(taskTypePurge, []byte("not-json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = m.handlePurgeTask(context.Background(), purgeTask(t, TaskPayload{JobID: "job-3"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEnqueueValidatesPayload(t *testing.T) {
	m := newTestManager(newMemoryStore(), &stubPurger{})

	_, err := m.Enqueue(context.Background(), nil)
	assert.Error(t, err)

	_, err = m.Enqueue(context.Background(), &TaskPayload{OwnerID: 1})
	assert.Error(t, err)

	_, err = m.SchedulePurge(context.Background(), 0)
	assert.Error(t, err)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Options{RedisURL: "redis://127.0.0.1:6379/0"}, nil, newMemoryStore())
	assert.Error(t, err)

	_, err = NewManager(Options{RedisURL: "redis://127.0.0.1:6379/0"}, &stubPurger{}, nil)
	assert.Error(t, err)

	_, err = NewManager(Options{RedisURL: "://bad"}, &stubPurger{}, newMemoryStore())
	assert.Error(t, err)
}

func TestStampRecordKeepsCreatedAt(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Record{CreatedAt: created}
	now := created.Add(time.Minute)

	stampRecord(r, now, 10*time.Minute)

	assert.Equal(t, created, r.CreatedAt)
	assert.Equal(t, now, r.UpdatedAt)
	assert.Equal(t, created.Add(10*time.Minute), r.ExpiresAt)
	assert.Equal(t, "todojob:abc", jobKey("abc"))
}

func TestHandlePurgeTaskKeepsQueuedHistory(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store, &stubPurger{removed: 1})

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(context.Background(), &Record{
		JobID:     "job-4",
		Operation: OperationPurgeCompleted,
		OwnerID:   9,
		Status:    StatusQueued,
		CreatedAt: created,
	}))
	queued, err := store.Get(context.Background(), "job-4")
	require.NoError(t, err)

	require.NoError(t, m.handlePurgeTask(context.Background(), purgeTask(t, TaskPayload{JobID: "job-4", OwnerID: 9})))

	record, err := store.Get(context.Background(), "job-4")
	require.NoError(t, err)
	assert.Equal(t, created, record.CreatedAt)
	assert.Equal(t, queued.ExpiresAt, record.ExpiresAt)
	assert.Equal(t, StatusSucceeded, record.Status)
}

func TestHandlePurgeTaskWithoutRecord(t *testing.T) {
	purger := &stubPurger{}
	m := newTestManager(newMemoryStore(), purger)

	err := m.handlePurgeTask(context.Background(), purgeTask(t, TaskPayload{JobID: "gone", OwnerID: 3}))
	assert.Error(t, err)
	assert.Empty(t, purger.owners)
}

func TestMarkRunning(t *testing.T) {
	r := &Record{Status: StatusQueued, Progress: ProgressInfo{Stage: "queued"}}
	markRunning(r, "delete")
	assert.Equal(t, StatusRunning, r.Status)
	assert.Equal(t, "delete", r.Progress.Stage)
}
