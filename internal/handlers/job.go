package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"unvocal/internal/models"
	"unvocal/internal/storage"

	"github.com/labstack/echo/v4"
)

// 受付を拒否したときのメッセージ
const (
	MsgRateLimited = "Maximum number of requests per hour reached. Please try again later."
	MsgURLRequired = "youtube_url is required"
)

// JobHandler はジョブAPIのハンドラー
type JobHandler struct {
	repo      *storage.JobRepository
	maxJobs   int
	retention time.Duration
	now       func() time.Time
}

// NewJobHandler は新しいJobHandlerを作成
// retention の間に受け付けるジョブは maxJobs 件まで（0 は無制限）
func NewJobHandler(repo *storage.JobRepository, maxJobs int, retention time.Duration) *JobHandler {
	return &JobHandler{repo: repo, maxJobs: maxJobs, retention: retention, now: time.Now}
}

// Register はルートを登録
func (h *JobHandler) Register(e *echo.Echo) {
	e.POST("/remove-vocals", h.RemoveVocals)
	e.GET("/check-status/:id", h.CheckStatus)
	e.GET("/api/jobs", h.List)
	e.GET("/api/jobs/stats", h.Stats)
}

// RemoveVocals はボーカル除去ジョブを受け付ける
// POST /remove-vocals
func (h *JobHandler) RemoveVocals(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RemoveVocalsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	job, rejection, err := h.queue(ctx, req.YouTubeURL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if rejection != "" {
		return c.JSON(http.StatusOK, models.RemoveVocalsResponse{Error: rejection})
	}
	c.Logger().Infof("job %s queued for %s", job.ID, job.YouTubeURL)

	return c.JSON(http.StatusOK, models.RemoveVocalsResponse{RequestID: job.ID})
}

// queue はレート制限を確認してジョブを登録する
// 受け付けられない場合は rejection に理由を返す
func (h *JobHandler) queue(ctx context.Context, youtubeURL string) (job *models.VocalJob, rejection string, err error) {
	youtubeURL = strings.TrimSpace(youtubeURL)
	if youtubeURL == "" {
		return nil, MsgURLRequired, nil
	}

	if h.maxJobs > 0 {
		n, err := h.repo.CountCreatedSince(ctx, h.now().Add(-h.retention))
		if err != nil {
			return nil, "", err
		}
		if n >= int64(h.maxJobs) {
			return nil, MsgRateLimited, nil
		}
	}

	job = &models.VocalJob{YouTubeURL: youtubeURL}
	if err := h.repo.Create(ctx, job); err != nil {
		return nil, "", err
	}
	return job, "", nil
}

// CheckStatus はジョブの状態を返す
// GET /check-status/:id
func (h *JobHandler) CheckStatus(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Request ID not found"})
	}

	return c.JSON(http.StatusOK, job.StatusResponse())
}

// List はジョブ一覧を取得
func (h *JobHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	status := c.QueryParam("status")

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	var jobs []models.VocalJob
	var err error

	if status != "" {
		jobs, err = h.repo.ListByStatus(ctx, status, limit)
	} else {
		jobs, err = h.repo.ListRecent(ctx, limit)
	}

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, jobs)
}

// Stats はジョブ統計を取得
func (h *JobHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.repo.CountByStatus(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, counts)
}
