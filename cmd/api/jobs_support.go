package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/todo-web/internal/auth"
	"github.com/yourusername/todo-web/internal/config"
	"github.com/yourusername/todo-web/internal/jobs"
)

// jobRecordReader はジョブ状態を参照できるものが実装します。
type jobRecordReader interface {
	GetRecord(ctx context.Context, jobID string) (*jobs.Record, error)
}

func setupJobs(cfg *config.Config, purger jobs.Purger, logger *slog.Logger) (*jobs.Manager, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 10
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute)
	manager, err := jobs.NewManager(jobs.Options{
		RedisURL:    cfg.QueueRedisURL,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
	}, purger, store)
	if err != nil {
		// Manager が作れなかった場合はストアの接続をここで閉じる
		_ = store.Close()
		return nil, err
	}
	return manager, nil
}

// jobStatusHandler は GET /api/jobs/:id のハンドラーです。他人のジョブは存在しないものとして扱います。
func jobStatusHandler(reader jobRecordReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "jobId を指定してください。",
			})
			return
		}

		record, err := reader.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		ownerID, _ := auth.CurrentUserID(c)
		if record == nil || record.OwnerID != ownerID {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		payload := gin.H{
			"jobId":     record.JobID,
			"operation": record.Operation,
			"status":    record.Status,
			"progress": gin.H{
				"percent": record.Progress.Percent,
				"stage":   record.Progress.Stage,
				"message": record.Progress.Message,
			},
			"updatedAt": record.UpdatedAt,
		}
		if record.Meta != nil {
			payload["meta"] = record.Meta
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}
