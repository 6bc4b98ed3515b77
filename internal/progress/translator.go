// Package progress turns downloader console output into progress events.
package progress

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
)

// DefaultInterval is the minimum gap between two throttled events.
const DefaultInterval = 3 * time.Second

const maxLineSize = 64 * 1024

var (
	progressRe   = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%\s+of\s+(.*?)\s+at\s+(.*?)\s+ETA\s+(\S+)`)
	downloadedRe = regexp.MustCompile(`has already been downloaded`)
)

// Func receives translated events.
type Func func(ev domain.ProgressEvent)

// Translator reads downloader output line by line and emits rate limited
// progress events.
type Translator struct {
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithClock replaces the wall clock used for throttling.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

// NewTranslator creates a Translator emitting at most one event per interval.
func NewTranslator(interval time.Duration, logger *slog.Logger, opts ...Option) *Translator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Translator{
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run consumes r until EOF, ctx is done or cancel is set. A complete
// (>= 99.9%) event is emitted once regardless of throttling; every other event
// needs a full interval since the last one. Cancellation is not an error.
func (t *Translator) Run(ctx context.Context, r io.Reader, cancel domain.Canceller, emit Func) error {
	limiter := rate.NewLimiter(rate.Every(t.interval), 1)
	limiter.AllowN(t.now(), 1)
	finalSent := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	scanner.Split(scanConsoleLines)

	for scanner.Scan() {
		if ctx.Err() != nil {
			t.logger.Debug("progress reader stopped")
			return nil
		}
		if cancel.IsSet() {
			t.logger.Info("cancellation requested, stopping progress reader")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())

		if downloadedRe.MatchString(line) {
			if !finalSent {
				emit(domain.ProgressEvent{Percent: 100})
			}
			return nil
		}

		ev, ok := ParseLine(line)
		if !ok {
			continue
		}

		now := t.now()
		if ev.Complete() {
			if finalSent {
				continue
			}
			finalSent = true
			limiter.AllowN(now, 1)
			emit(ev)
			continue
		}
		if limiter.AllowN(now, 1) {
			emit(ev)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}

// ParseLine extracts a progress event from one downloader line.
func ParseLine(line string) (domain.ProgressEvent, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return domain.ProgressEvent{}, false
	}

	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.ProgressEvent{}, false
	}
	if percent > 100 {
		percent = 100
	}

	return domain.ProgressEvent{
		Percent: percent,
		Size:    strings.TrimSpace(strings.TrimPrefix(m[2], "~")),
		Speed:   strings.TrimSpace(m[3]),
		ETA:     strings.TrimSpace(m[4]),
	}, true
}

// scanConsoleLines splits on '\n' and on the carriage returns used to redraw
// progress in place.
func scanConsoleLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
