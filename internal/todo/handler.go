package todo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/todo-web/internal/auth"
)

// ListPath は変更系操作の後に戻る一覧画面のパスです。
const ListPath = "/todos"

// PurgeScheduler は完了済みTODOの削除を非同期キューに投入するためのインターフェースです。
type PurgeScheduler interface {
	SchedulePurge(ctx context.Context, ownerID uint) (string, error)
}

// HandlerOptions は同期/非同期切り替えのための設定です。
type HandlerOptions struct {
	Scheduler      PurgeScheduler
	AsyncThreshold int
	Logger         *slog.Logger
}

// Handler は /todos 配下の画面とフォーム送信を処理します。
type Handler struct {
	svc    Service
	opts   HandlerOptions
	logger *slog.Logger
}

// NewHandler は Handler を作成します。
func NewHandler(svc Service, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, opts: opts, logger: logger}
}

// List は GET /todos のハンドラーです。
func (h *Handler) List(c *gin.Context) {
	ownerID, ok := auth.CurrentUserID(c)
	if !ok {
		c.Redirect(http.StatusFound, auth.LoginPath)
		return
	}

	todos, err := h.svc.List(c.Request.Context(), ownerID)
	if err != nil {
		h.respondWithError(c, err, "", nil)
		return
	}

	var completed int
	for _, t := range todos {
		if t.Complete {
			completed++
		}
	}

	c.HTML(http.StatusOK, "todos.html", h.pageData(c, gin.H{
		"todos":     todos,
		"completed": completed,
		"jobId":     c.Query("job"),
	}))
}

// AddPage は GET /todos/add-todo のハンドラーです。
func (h *Handler) AddPage(c *gin.Context) {
	c.HTML(http.StatusOK, "add-todo.html", h.pageData(c, gin.H{
		"form": Input{Priority: MinPriority},
	}))
}

// Add は POST /todos/add-todo のハンドラーです。
func (h *Handler) Add(c *gin.Context) {
	ownerID, ok := auth.CurrentUserID(c)
	if !ok {
		c.Redirect(http.StatusFound, auth.LoginPath)
		return
	}

	var in Input
	if err := c.ShouldBind(&in); err != nil {
		h.renderForm(c, http.StatusBadRequest, "add-todo.html", in, "優先度は整数で指定してください。", nil)
		return
	}

	t, err := h.svc.Create(c.Request.Context(), ownerID, in)
	if err != nil {
		h.respondWithError(c, err, "add-todo.html", gin.H{"form": in})
		return
	}

	h.logger.Info("todo created", "todo_id", t.ID, "owner_id", ownerID)
	c.Redirect(http.StatusFound, ListPath)
}

// EditPage は GET /todos/edit-todo/:id のハンドラーです。
func (h *Handler) EditPage(c *gin.Context) {
	ownerID, id, ok := h.target(c)
	if !ok {
		return
	}

	t, err := h.svc.Get(c.Request.Context(), id, ownerID)
	if err != nil {
		h.respondWithError(c, err, "", nil)
		return
	}

	c.HTML(http.StatusOK, "edit-todo.html", h.pageData(c, gin.H{
		"todo": t,
		"form": Input{Title: t.Title, Description: t.Description, Priority: t.Priority},
	}))
}

// Edit は POST /todos/edit-todo/:id のハンドラーです。
func (h *Handler) Edit(c *gin.Context) {
	ownerID, id, ok := h.target(c)
	if !ok {
		return
	}

	stub := &Todo{ID: id}
	var in Input
	if err := c.ShouldBind(&in); err != nil {
		h.renderForm(c, http.StatusBadRequest, "edit-todo.html", in, "優先度は整数で指定してください。", gin.H{"todo": stub})
		return
	}

	if _, err := h.svc.Update(c.Request.Context(), id, ownerID, in); err != nil {
		h.respondWithError(c, err, "edit-todo.html", gin.H{"form": in, "todo": stub})
		return
	}

	h.logger.Info("todo updated", "todo_id", id, "owner_id", ownerID)
	c.Redirect(http.StatusFound, ListPath)
}

// Delete は GET /todos/delete/:id のハンドラーです。
func (h *Handler) Delete(c *gin.Context) {
	ownerID, id, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, ownerID); err != nil {
		h.respondWithError(c, err, "", nil)
		return
	}

	h.logger.Info("todo deleted", "todo_id", id, "owner_id", ownerID)
	c.Redirect(http.StatusFound, ListPath)
}

// Complete は GET /todos/complete/:id のハンドラーです。完了フラグを反転させます。
func (h *Handler) Complete(c *gin.Context) {
	ownerID, id, ok := h.target(c)
	if !ok {
		return
	}

	t, err := h.svc.ToggleComplete(c.Request.Context(), id, ownerID)
	if err != nil {
		h.respondWithError(c, err, "", nil)
		return
	}

	h.logger.Info("todo completion toggled", "todo_id", id, "owner_id", ownerID, "complete", t.Complete)
	c.Redirect(http.StatusFound, ListPath)
}

// ClearCompleted は POST /todos/clear-completed のハンドラーです。
// 件数が閾値を超え、スケジューラーが設定されている場合はキューに投入します。
func (h *Handler) ClearCompleted(c *gin.Context) {
	ownerID, ok := auth.CurrentUserID(c)
	if !ok {
		c.Redirect(http.StatusFound, auth.LoginPath)
		return
	}
	ctx := c.Request.Context()

	count, err := h.svc.CountCompleted(ctx, ownerID)
	if err != nil {
		h.respondWithError(c, err, "", nil)
		return
	}
	if count == 0 {
		c.Redirect(http.StatusFound, ListPath)
		return
	}

	if shouldPurgeAsync(count, h.opts) {
		jobID, err := h.opts.Scheduler.SchedulePurge(ctx, ownerID)
		if err != nil {
			h.respondWithError(c, err, "", nil)
			return
		}
		h.logger.Info("purge scheduled", "job_id", jobID, "owner_id", ownerID, "count", count)
		c.Redirect(http.StatusFound, ListPath+"?job="+jobID)
		return
	}

	removed, err := h.svc.PurgeCompleted(ctx, ownerID)
	if err != nil {
		h.respondWithError(c, err, "", nil)
		return
	}
	h.logger.Info("completed todos purged", "owner_id", ownerID, "removed", removed)
	c.Redirect(http.StatusFound, ListPath)
}

func shouldPurgeAsync(count int64, opts HandlerOptions) bool {
	if opts.Scheduler == nil {
		return false
	}
	return opts.AsyncThreshold > 0 && count > int64(opts.AsyncThreshold)
}

// target はログインユーザーIDとパスの :id を取り出します。失敗時はレスポンスを書いて false を返します。
func (h *Handler) target(c *gin.Context) (uint, uint, bool) {
	ownerID, ok := auth.CurrentUserID(c)
	if !ok {
		c.Redirect(http.StatusFound, auth.LoginPath)
		return 0, 0, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.HTML(http.StatusBadRequest, "error.html", h.pageData(c, gin.H{
			"status":  http.StatusBadRequest,
			"message": "TODO の ID が正しくありません。",
		}))
		return 0, 0, false
	}
	return ownerID, uint(id), true
}

func (h *Handler) pageData(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["username"] = auth.CurrentUsername(c)
	data["csrf"] = auth.CSRFToken(c)
	data["minPriority"] = MinPriority
	data["maxPriority"] = MaxPriority
	return data
}

func (h *Handler) renderForm(c *gin.Context, status int, page string, in Input, msg string, extra gin.H) {
	data := gin.H{"form": in, "msg": msg}
	for k, v := range extra {
		data[k] = v
	}
	c.HTML(status, page, h.pageData(c, data))
}

func (h *Handler) respondWithError(c *gin.Context, err error, formPage string, formData gin.H) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr) && formPage != "":
		data := gin.H{"msg": apiErr.Message}
		for k, v := range formData {
			data[k] = v
		}
		c.HTML(http.StatusBadRequest, formPage, h.pageData(c, data))
	case errors.As(err, &apiErr):
		c.HTML(http.StatusBadRequest, "error.html", h.pageData(c, gin.H{
			"status":  http.StatusBadRequest,
			"message": apiErr.Message,
		}))
	case errors.Is(err, ErrNotFound):
		c.HTML(http.StatusNotFound, "error.html", h.pageData(c, gin.H{
			"status":  http.StatusNotFound,
			"message": "指定された TODO は見つかりませんでした。",
		}))
	case errors.Is(err, context.Canceled):
		c.HTML(http.StatusRequestTimeout, "error.html", h.pageData(c, gin.H{
			"status":  http.StatusRequestTimeout,
			"message": "リクエストがキャンセルされました。",
		}))
	default:
		h.logger.Error("todo request failed", "path", c.FullPath(), "error", err)
		c.HTML(http.StatusInternalServerError, "error.html", h.pageData(c, gin.H{
			"status":  http.StatusInternalServerError,
			"message": "サーバー内部でエラーが発生しました。",
		}))
	}
}
