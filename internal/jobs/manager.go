// Package jobs は完了済みTODOの一括削除などを非同期で処理する機能を提供します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	taskTypePurge = "todos:purge-completed"
	queueName     = "todos"
)

// Purger は所有者の完了済みTODOを削除できるサービスが実装します。
type Purger interface {
	PurgeCompleted(ctx context.Context, ownerID uint) (int64, error)
}

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  RecordStore
	purger Purger
	logger *slog.Logger
}

// TaskPayload は削除ジョブのペイロードです。
type TaskPayload struct {
	JobID   string `json:"jobId"`
	OwnerID uint   `json:"ownerId"`
}

// Options は Manager の設定です。
type Options struct {
	RedisURL    string
	Concurrency int
	Logger      *slog.Logger
}

// NewManager は Manager を初期化します。
func NewManager(opts Options, purger Purger, store RecordStore) (*Manager, error) {
	if purger == nil {
		return nil, errors.New("purger is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	redisOpt, err := asynq.ParseRedisURI(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		purger: purger,
		logger: logger,
	}
	mux.HandleFunc(taskTypePurge, manager.handlePurgeTask)
	return manager, nil
}

// SchedulePurge は新しいジョブIDを発行して削除ジョブを投入します。
func (m *Manager) SchedulePurge(ctx context.Context, ownerID uint) (string, error) {
	if ownerID == 0 {
		return "", fmt.Errorf("ownerID is required")
	}
	jobID := uuid.NewString()
	if _, err := m.Enqueue(ctx, &TaskPayload{JobID: jobID, OwnerID: ownerID}); err != nil {
		return "", err
	}
	return jobID, nil
}

// Enqueue はジョブをキューに投入します。
func (m *Manager) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("payload is nil")
	}
	if payload.JobID == "" {
		return "", fmt.Errorf("payload.JobID is required")
	}

	record := &Record{
		JobID:     payload.JobID,
		Operation: OperationPurgeCompleted,
		OwnerID:   payload.OwnerID,
		Status:    StatusQueued,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypePurge, body, asynq.Queue(queueName))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1), asynq.TaskID(payload.JobID))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

func (m *Manager) failJob(ctx context.Context, jobID, code, message string) error {
	return m.store.MarkFailed(ctx, jobID, &ErrorInfo{
		Code:    code,
		Message: message,
	})
}
