package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
)

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error("asynq server stopped with error", "error", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。ストアが io.Closer なら一緒に閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.server != nil {
		m.server.Shutdown()
	}
	var errs []error
	if m.client != nil {
		errs = append(errs, m.client.Close())
	}
	if closer, ok := m.store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

func (m *Manager) handlePurgeTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" || payload.OwnerID == 0 {
		return fmt.Errorf("missing jobId or ownerId in payload: %w", asynq.SkipRetry)
	}

	if err := m.store.MarkRunning(ctx, payload.JobID, "delete"); err != nil {
		return err
	}

	removed, err := m.purger.PurgeCompleted(ctx, payload.OwnerID)
	if err != nil {
		m.logger.Error("purge job failed", "job_id", payload.JobID, "owner_id", payload.OwnerID, "error", err)
		if markErr := m.failJob(ctx, payload.JobID, "INTERNAL_ERROR", err.Error()); markErr != nil {
			return fmt.Errorf("%w (failed to record job failure: %v)", err, markErr)
		}
		return err
	}

	m.logger.Info("purge job finished", "job_id", payload.JobID, "owner_id", payload.OwnerID, "removed", removed)
	return m.store.MarkDone(ctx, payload.JobID, PurgeMeta{Removed: removed})
}
