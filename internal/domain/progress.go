package domain

// ProgressEvent is a normalized snapshot of downloader progress.
type ProgressEvent struct {
	Percent float64
	Size    string
	Speed   string
	ETA     string
}

// Complete reports whether the event marks a (near) finished download.
func (e ProgressEvent) Complete() bool {
	return e.Percent >= CompletePercent
}

// CompletePercent is the threshold above which an event is never throttled.
const CompletePercent = 99.9
