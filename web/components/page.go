package components

// PageView is what the vocal remover page shows.
type PageView struct {
	SourceURL        string
	Busy             bool
	Caption          string
	MessageText      string
	MessageClass     string // "", "error" or "success"
	DownloadLinkHTML string
}
