package models

import "time"

// VocalJob はボーカル除去ジョブ
type VocalJob struct {
	ID           string     `json:"id"`
	YouTubeURL   string     `json:"youtube_url"`
	YouTubeID    string     `json:"youtube_id,omitempty"`
	Status       string     `json:"status"`
	Progress     string     `json:"progress"`
	Filename     string     `json:"filename,omitempty"`
	OutputPath   string     `json:"output_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Terminal は終了状態かどうかを返す
func (j *VocalJob) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusError
}

// StatusResponse はステータス確認APIのレスポンスに変換する
func (j *VocalJob) StatusResponse() StatusResponse {
	return StatusResponse{
		Status:       j.Status,
		Progress:     j.Progress,
		Filename:     j.Filename,
		OutputPath:   j.OutputPath,
		ErrorMessage: j.ErrorMessage,
	}
}

// ジョブステータス
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusError   = "error"
)

// ProgressQueued は受付直後の進捗メッセージ
const ProgressQueued = "Queuing your request"

// RemoveVocalsRequest は POST /remove-vocals のリクエストボディ
type RemoveVocalsRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

// RemoveVocalsResponse はリクエストIDまたは拒否理由のどちらかを返す
type RemoveVocalsResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusResponse は GET /check-status/:id のレスポンスボディ
type StatusResponse struct {
	Status       string `json:"status"`
	Progress     string `json:"progress,omitempty"`
	Filename     string `json:"filename,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
