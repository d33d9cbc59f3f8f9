package handlers

import (
	"net/http"

	"unvocal/internal/monitor"
	"unvocal/web/components"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// PageHandler はブラウザ向けのページを返す
type PageHandler struct {
	jobs *JobHandler
}

// NewPageHandler は新しいPageHandlerを作成
func NewPageHandler(jobs *JobHandler) *PageHandler {
	return &PageHandler{jobs: jobs}
}

// Register はルートを登録
func (h *PageHandler) Register(e *echo.Echo) {
	e.GET("/", h.Home)
	e.POST("/", h.Submit)
	e.GET("/jobs/:id", h.Job)
}

// Home は入力フォームを表示
func (h *PageHandler) Home(c echo.Context) error {
	return render(c, http.StatusOK, components.Page(monitor.UIState{}.PageView("")))
}

// Submit はフォームから送信されたジョブを受け付け、進捗ページへリダイレクトする
// POST /
func (h *PageHandler) Submit(c echo.Context) error {
	sourceURL := c.FormValue("youtube_url")

	job, rejection, err := h.jobs.queue(c.Request().Context(), sourceURL)
	if err != nil {
		c.Logger().Errorf("failed to queue job: %v", err)
		state := monitor.UIState{MessageText: monitor.MsgUnableToProcess, MessageClass: monitor.ClassError}
		return render(c, http.StatusInternalServerError, components.Page(state.PageView(sourceURL)))
	}
	if rejection != "" {
		state := monitor.UIState{MessageText: "Error: " + rejection, MessageClass: monitor.ClassError}
		return render(c, http.StatusOK, components.Page(state.PageView(sourceURL)))
	}

	return c.Redirect(http.StatusSeeOther, "/jobs/"+job.ID)
}

// Job はジョブの進捗を表示する
// 処理中はページが1秒ごとに再読み込みされる
// GET /jobs/:id
func (h *PageHandler) Job(c echo.Context) error {
	job, err := h.jobs.repo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		c.Logger().Errorf("failed to get job: %v", err)
	}
	if err != nil || job == nil {
		state := monitor.UIState{MessageText: monitor.MsgUnableToCheck, MessageClass: monitor.ClassError}
		return render(c, http.StatusNotFound, components.Page(state.PageView("")))
	}

	resp := job.StatusResponse()
	report := monitor.StatusReport{
		Status:       resp.Status,
		Progress:     resp.Progress,
		Filename:     resp.Filename,
		OutputPath:   resp.OutputPath,
		ErrorMessage: resp.ErrorMessage,
	}
	state, err := monitor.StateFor(&report, h.jobs.now().Sub(job.CreatedAt))
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, components.Page(state.PageView(job.YouTubeURL)))
}

func render(c echo.Context, status int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return component.Render(c.Request().Context(), c.Response())
}
