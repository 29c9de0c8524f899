package jobs

import "time"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// OperationPurgeCompleted は完了済みTODOの一括削除ジョブです。
const OperationPurgeCompleted = "purge-completed"

// ProgressInfo は進捗の補足情報を表します。
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PurgeMeta は削除ジョブの結果です。
type PurgeMeta struct {
	Removed int64 `json:"removed"`
}

// Record はジョブの現在状態を表します。
type Record struct {
	JobID     string       `json:"jobId"`
	Operation string       `json:"operation"`
	OwnerID   uint         `json:"ownerId"`
	Status    Status       `json:"status"`
	Progress  ProgressInfo `json:"progress"`
	Meta      any          `json:"meta,omitempty"`
	Error     *ErrorInfo   `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}
