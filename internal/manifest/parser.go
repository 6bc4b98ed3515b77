// Package manifest turns uploaded link files into download entries.
//
// Every non-blank line is expected to look like
//
//	Title [08-Apr-2024 08:30]: https://cdn.example.com/video.m3u8
//
// The bracketed tag is treated as an opaque label: any non-empty content is
// accepted. Lines that do not match are reported back instead of failing the
// whole file.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
	errpkg "github.com/veranemoloko/hls-relay-bot/internal/errors"
	"github.com/veranemoloko/hls-relay-bot/internal/validation"
)

// ExpectedFormat is shown to users whose lines were skipped.
const ExpectedFormat = "Title [DD-Mon-YYYY HH:MM]: https://link.m3u8"

const maxLineSize = 64 * 1024

var lineRe = regexp.MustCompile(`^(.*?)\s*\[([^\[\]]+)\]:\s*(\S+)$`)

// Parse reads the manifest from r. Malformed or over-long lines end up in
// Manifest.Skipped; only a read failure is returned as an error.
func Parse(r io.Reader) (*domain.Manifest, error) {
	m := &domain.Manifest{}
	br := bufio.NewReader(r)

	lineNo := 0
	for {
		raw, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		lineNo++

		line := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if line == "" && !tooLong {
			continue
		}
		m.Lines++

		if tooLong {
			m.Skipped = append(m.Skipped, domain.SkippedLine{
				LineNo: lineNo,
				Text:   preview(line),
				Reason: fmt.Errorf("%w: longer than %d bytes", errpkg.ErrInvalidLine, maxLineSize),
			})
			continue
		}

		title, link, err := ParseLine(line)
		if err != nil {
			m.Skipped = append(m.Skipped, domain.SkippedLine{LineNo: lineNo, Text: line, Reason: err})
			continue
		}

		m.Entries = append(m.Entries, domain.ManifestEntry{
			RawTitle:       title,
			SanitizedTitle: SanitizeTitle(title),
			SourceURL:      link,
			Ordinal:        len(m.Entries) + 1,
		})
	}

	return m, nil
}

// readLine returns the next line without its terminator. Lines longer than
// maxLineSize are consumed entirely but only their first maxLineSize bytes are
// kept, and tooLong is set.
func readLine(br *bufio.Reader) (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(buf) > 0 && errors.Is(err, io.EOF) {
				return string(buf), tooLong, nil
			}
			return "", false, err
		}
		if room := maxLineSize - len(buf); len(chunk) > room {
			buf = append(buf, chunk[:room]...)
			tooLong = true
		} else {
			buf = append(buf, chunk...)
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

func preview(line string) string {
	const limit = 80
	if len(line) <= limit {
		return line
	}
	return strings.ToValidUTF8(line[:limit], "") + "..."
}

// ParseLine splits one trimmed line into its display title and stream URL.
func ParseLine(line string) (string, string, error) {
	match := lineRe.FindStringSubmatch(line)
	if match == nil {
		return "", "", errpkg.ErrInvalidLine
	}

	title := strings.TrimSpace(match[1])
	if title == "" {
		return "", "", fmt.Errorf("%w: empty title", errpkg.ErrInvalidLine)
	}
	if strings.TrimSpace(match[2]) == "" {
		return "", "", fmt.Errorf("%w: empty tag", errpkg.ErrInvalidLine)
	}

	link := match[3]
	if err := validation.ValidateStreamURL(link); err != nil {
		return "", "", fmt.Errorf("%w: %v", errpkg.ErrInvalidLine, err)
	}

	return title, link, nil
}
