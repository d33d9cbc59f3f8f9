package monitor

import (
	"fmt"
	"time"

	"unvocal/web/components"
)

// MessageClass is the visual class of the status message area.
type MessageClass int

const (
	ClassNone MessageClass = iota
	ClassError
	ClassSuccess
)

func (c MessageClass) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassSuccess:
		return "success"
	default:
		return ""
	}
}

// Terminal job statuses reported by the backend. Anything else is in progress.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Captions of the submit control.
const (
	CaptionIdle = "Remove Vocals"
	CaptionBusy = "Processing..."
)

// User-facing messages.
const (
	MsgMustWait          = "Please wait until the current process has finished."
	MsgUnableToProcess   = "Error: Unable to process the request."
	MsgUnableToCheck     = "Error: Unable to check the status."
	MsgPollTimeoutFormat = "Error: Gave up waiting after %s."
)

// JobRequest is the payload of a submission.
type JobRequest struct {
	SourceURL string `json:"youtube_url"`
}

// SubmitResponse is the submission endpoint's answer: either RequestID or Error is set.
type SubmitResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// JobHandle identifies the job currently owned by the monitor.
type JobHandle struct {
	RequestID string
	StartedAt time.Time
}

// StatusReport is the result of one poll.
type StatusReport struct {
	Status       string `json:"status"`
	Progress     string `json:"progress,omitempty"`
	Filename     string `json:"filename,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Terminal reports whether the status ends polling.
func (r *StatusReport) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}

// UIState is everything a presentation layer needs to draw the job lifecycle.
type UIState struct {
	Busy             bool
	MessageText      string
	MessageClass     MessageClass
	DownloadLinkHTML string

	// DownloadURL and DownloadName back the link for non-HTML presentations.
	DownloadURL  string
	DownloadName string
}

// SubmitCaption returns the label of the submit control for the current phase.
func (s UIState) SubmitCaption() string {
	if s.Busy {
		return CaptionBusy
	}
	return CaptionIdle
}

// HasDownload reports whether a download affordance is present.
func (s UIState) HasDownload() bool {
	return s.DownloadLinkHTML != ""
}

func failed(text string) UIState {
	return UIState{MessageText: text, MessageClass: ClassError}
}

func rejectedMessage(reason string) string {
	return fmt.Sprintf("Error: %s", reason)
}

func progressMessage(elapsed time.Duration, report *StatusReport) string {
	return fmt.Sprintf("Elapsed time: %.2f seconds. Current status: %s. Progress: %s",
		elapsed.Seconds(), report.Status, report.Progress)
}

func completedMessage(filename string) string {
	return fmt.Sprintf("Processing complete. %s is ready for download.", filename)
}

// transition applies one status report to the current state.
// It returns the next state and whether the job reached a terminal status.
func transition(cur UIState, report *StatusReport, elapsed time.Duration) (UIState, bool, error) {
	switch report.Status {
	case StatusSuccess:
		link, err := renderDownloadLink(report.OutputPath, report.Filename)
		if err != nil {
			return cur, false, err
		}
		return UIState{
			MessageText:      completedMessage(report.Filename),
			MessageClass:     ClassSuccess,
			DownloadLinkHTML: link,
			DownloadURL:      report.OutputPath,
			DownloadName:     report.Filename,
		}, true, nil
	case StatusError:
		return failed(rejectedMessage(report.ErrorMessage)), true, nil
	default:
		next := cur
		next.Busy = true
		next.MessageText = progressMessage(elapsed, report)
		if next.MessageClass == ClassError {
			next.MessageClass = ClassNone
		}
		return next, false, nil
	}
}

// StateFor is the state shown for a job that has been running for elapsed
// and last reported report.
func StateFor(report *StatusReport, elapsed time.Duration) (UIState, error) {
	next, terminal, err := transition(UIState{Busy: true}, report, elapsed)
	if err != nil {
		return UIState{}, err
	}
	if terminal {
		next.Busy = false
	}
	return next, nil
}

// PageView converts the state for the HTML page.
func (s UIState) PageView(sourceURL string) components.PageView {
	return components.PageView{
		SourceURL:        sourceURL,
		Busy:             s.Busy,
		Caption:          s.SubmitCaption(),
		MessageText:      s.MessageText,
		MessageClass:     s.MessageClass.String(),
		DownloadLinkHTML: s.DownloadLinkHTML,
	}
}
