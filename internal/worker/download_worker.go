package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
	errpkg "github.com/veranemoloko/hls-relay-bot/internal/errors"
	"github.com/veranemoloko/hls-relay-bot/internal/metrics"
	"github.com/veranemoloko/hls-relay-bot/internal/progress"
	"github.com/veranemoloko/hls-relay-bot/internal/storage"
)

const outputTailSize = 2048

// ExitError reports a downloader run that did not exit cleanly.
type ExitError struct {
	Code   int
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("downloader exited with code %d", e.Code)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Is makes every ExitError match ErrDownloadFailed.
func (e *ExitError) Is(target error) bool {
	return target == errpkg.ErrDownloadFailed
}

// Config configures a DownloadWorker.
type Config struct {
	Binary string
	Format string
}

// DownloadWorker runs the external downloader for one manifest entry at a time
// and stores the result in FileStorage.
type DownloadWorker struct {
	runner      Runner
	fileStorage *storage.FileStorage
	translator  *progress.Translator
	cfg         Config
	logger      *slog.Logger
}

// NewDownloadWorker creates a new DownloadWorker.
func NewDownloadWorker(runner Runner, fileStorage *storage.FileStorage, translator *progress.Translator, cfg Config, logger *slog.Logger) *DownloadWorker {
	return &DownloadWorker{
		runner:      runner,
		fileStorage: fileStorage,
		translator:  translator,
		cfg:         cfg,
		logger:      logger,
	}
}

// Args returns the downloader command line for url writing into outputPath.
func (w *DownloadWorker) Args(url, outputPath string) []string {
	var args []string
	if w.cfg.Format != "" {
		args = append(args, "--format", w.cfg.Format)
	}
	return append(args,
		"--output", strings.ReplaceAll(outputPath, "%", "%%"),
		"--force-overwrites",
		"--no-part",
		"--restrict-filenames",
		"--newline",
		url,
	)
}

// Download runs the downloader for entry and waits for it to exit. Progress
// lines are translated and handed to onProgress while the process runs. The
// process is never retried nor stopped because of cancel; cancel only turns a
// finished download into a Cancelled outcome.
func (w *DownloadWorker) Download(ctx context.Context, entry domain.ManifestEntry, cancel domain.Canceller, onProgress progress.Func) domain.DownloadOutcome {
	filename := entry.FileName()
	outputPath := w.fileStorage.Path(filename)
	logger := w.logger.With("ordinal", entry.Ordinal, "title", entry.RawTitle)

	metrics.DownloadsTotal.Inc()
	startTime := time.Now()

	pr, pw := io.Pipe()
	tail := newTailBuffer(outputTailSize)

	proc, err := w.runner.Start(ctx, w.cfg.Binary, w.Args(entry.SourceURL, outputPath), io.MultiWriter(pw, tail))
	if err != nil {
		pw.Close()
		metrics.DownloadsFailed.Inc()
		logger.Error("failed to start downloader", "binary", w.cfg.Binary, "error", err)
		return domain.Failed(outputPath, fmt.Errorf("%w: start %s: %v", errpkg.ErrDownloadFailed, w.cfg.Binary, err))
	}

	// Closing pw after Wait stops the reader: it still sees every line the
	// process wrote, then hits EOF.
	var (
		g       errgroup.Group
		waitErr error
	)
	g.Go(func() error {
		defer func() { _, _ = io.Copy(io.Discard, pr) }()
		return w.translator.Run(ctx, pr, cancel, onProgress)
	})
	g.Go(func() error {
		waitErr = proc.Wait()
		return pw.Close()
	})
	if err := g.Wait(); err != nil {
		logger.Warn("progress reader failed", "error", err)
	}

	duration := time.Since(startTime)
	metrics.DownloadDuration.Observe(duration.Seconds())

	if waitErr != nil {
		metrics.DownloadsFailed.Inc()
		exitErr := &ExitError{Code: exitCode(waitErr), Output: tail.String(), Err: waitErr}
		logger.Error("download failed", "code", exitErr.Code, "error", waitErr)
		return domain.Failed(outputPath, exitErr)
	}

	if cancel.IsSet() {
		logger.Info("download finished after cancellation, discarding")
		return domain.Cancelled(outputPath)
	}

	if !w.fileStorage.FileExists(filename) {
		metrics.DownloadsFailed.Inc()
		logger.Error("downloaded file missing", "path", outputPath)
		return domain.Failed(outputPath, fmt.Errorf("%w: %s", errpkg.ErrOutputMissing, outputPath))
	}
	size, err := w.fileStorage.GetFileSize(filename)
	if err != nil {
		metrics.DownloadsFailed.Inc()
		logger.Error("failed to stat downloaded file", "path", outputPath, "error", err)
		return domain.Failed(outputPath, fmt.Errorf("%w: %v", errpkg.ErrDownloadFailed, err))
	}
	if size == 0 {
		metrics.DownloadsFailed.Inc()
		logger.Error("downloaded file is empty", "path", outputPath)
		return domain.Failed(outputPath, fmt.Errorf("%w: %s", errpkg.ErrOutputEmpty, outputPath))
	}

	logger.Info("download completed", "path", outputPath, "size", humanize.Bytes(uint64(size)), "duration", duration)
	return domain.Succeeded(outputPath, size)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(strings.ToValidUTF8(string(b.buf), ""))
}
