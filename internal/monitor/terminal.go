package monitor

import (
	"fmt"
	"io"
	"sync"
)

// TerminalRenderer draws UIState as lines of text.
type TerminalRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	last    UIState
	printed bool
}

// NewTerminalRenderer creates a renderer writing to w.
func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	return &TerminalRenderer{w: w}
}

// Render prints the state if it differs from the last one printed.
func (r *TerminalRenderer) Render(s UIState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.printed && s == r.last {
		return
	}
	r.last = s
	r.printed = true

	if s.MessageText != "" {
		fmt.Fprintf(r.w, "[%s] %s%s\n", s.SubmitCaption(), classMarker(s.MessageClass), s.MessageText)
	} else {
		fmt.Fprintf(r.w, "[%s]\n", s.SubmitCaption())
	}
	if s.HasDownload() {
		fmt.Fprintf(r.w, "Download: %s (%s)\n", s.DownloadURL, s.DownloadName)
	}
}

// Alert prints a notice that does not change the state.
func (r *TerminalRenderer) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "! %s\n", message)
}

func classMarker(c MessageClass) string {
	switch c {
	case ClassError:
		return "✗ "
	case ClassSuccess:
		return "✓ "
	default:
		return ""
	}
}
