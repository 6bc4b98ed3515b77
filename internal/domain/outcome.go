package domain

// OutcomeKind classifies the result of one download.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeFailure   OutcomeKind = "failure"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// DownloadOutcome is the result of running the downloader for one entry.
type DownloadOutcome struct {
	Kind     OutcomeKind
	FilePath string
	FileSize int64
	Err      error
}

// Succeeded returns a success outcome for the produced file.
func Succeeded(path string, size int64) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeSuccess, FilePath: path, FileSize: size}
}

// Failed returns a failure outcome carrying the reason.
func Failed(path string, err error) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeFailure, FilePath: path, Err: err}
}

// Cancelled returns a cancelled outcome. The path, if any, still needs cleanup.
func Cancelled(path string) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeCancelled, FilePath: path}
}
