package domain

// VideoExt is the container extension given to every downloaded file.
const VideoExt = ".mp4"

// ManifestEntry is one valid manifest line. Ordinal is 1-based and follows the
// order of valid lines in the manifest.
type ManifestEntry struct {
	RawTitle       string
	SanitizedTitle string
	SourceURL      string
	Ordinal        int
}

// FileName returns the base name of the file the entry downloads into.
func (e ManifestEntry) FileName() string {
	return e.SanitizedTitle + VideoExt
}

// SkippedLine describes a manifest line rejected by the parser.
type SkippedLine struct {
	LineNo int
	Text   string
	Reason error
}

// Manifest is the parse result of an uploaded link file.
type Manifest struct {
	Entries []ManifestEntry
	Skipped []SkippedLine
	// Lines is the number of non-blank lines that were considered.
	Lines int
}

// Empty reports whether the manifest yielded no entries at all.
func (m *Manifest) Empty() bool {
	return len(m.Entries) == 0
}
