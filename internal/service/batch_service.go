package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
	errpkg "github.com/veranemoloko/hls-relay-bot/internal/errors"
	"github.com/veranemoloko/hls-relay-bot/internal/manifest"
	"github.com/veranemoloko/hls-relay-bot/internal/metrics"
	"github.com/veranemoloko/hls-relay-bot/internal/progress"
	repo "github.com/veranemoloko/hls-relay-bot/internal/repository"
	"github.com/veranemoloko/hls-relay-bot/internal/storage"
)

// Messenger is the chat side of a batch: status messages, reports and video
// delivery.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (domain.MessageRef, error)
	EditMessage(ctx context.Context, ref domain.MessageRef, text string) error
	SendVideo(ctx context.Context, chatID int64, path, caption string) error
}

// Downloader fetches one manifest entry into the download directory.
type Downloader interface {
	Download(ctx context.Context, entry domain.ManifestEntry, cancel domain.Canceller, onProgress progress.Func) domain.DownloadOutcome
}

type Config struct {
	MaxManifestSize int64
}

// BatchService runs uploaded manifests one entry at a time.
type BatchService struct {
	runRepo     repo.RunRepo
	fileStorage *storage.FileStorage
	downloader  Downloader
	messenger   Messenger
	cfg         Config
	logger      *slog.Logger
}

// NewBatchService creates a BatchService.
func NewBatchService(
	runRepo repo.RunRepo,
	fileStorage *storage.FileStorage,
	downloader Downloader,
	messenger Messenger,
	cfg Config,
	logger *slog.Logger,
) *BatchService {
	return &BatchService{
		runRepo:     runRepo,
		fileStorage: fileStorage,
		downloader:  downloader,
		messenger:   messenger,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run processes req to a terminal state. It returns ErrBatchActive without
// touching the running batch when one is already registered for the
// destination, and a wrapped ErrManifestUnreadable when the batch ends Fatal.
// Per-entry failures never surface as an error; they are counted in the report.
func (s *BatchService) Run(ctx context.Context, req domain.BatchRequest) (domain.BatchReport, error) {
	signal, err := s.runRepo.Register(ctx, req.Destination)
	if err != nil {
		if errors.Is(err, errpkg.ErrBatchActive) {
			metrics.BatchesRejected.Inc()
			s.notify(ctx, req.ReplyTo, busyText(req.FileName))
		}
		return domain.BatchReport{State: domain.BatchStateIdle, Err: err}, err
	}

	run := &domain.BatchRun{
		ID:       uuid.New(),
		RunID:    req.Destination,
		FileName: req.FileName,
		Cancel:   signal,
		State:    domain.BatchStateStarting,
	}
	staged := s.fileStorage.StagingName(req.FileName)
	logger := s.logger.With("batch_id", run.ID, "run_id", run.RunID, "file", req.FileName)

	defer func() {
		s.runRepo.Deregister(run.RunID, signal)
		if _, err := s.fileStorage.RemoveFile(staged); err != nil {
			logger.Warn("failed to remove staged manifest", "file", staged, "error", err)
		}
	}()

	metrics.BatchesStarted.Inc()
	logger.Info("batch started")

	report := s.process(ctx, run, req, staged, logger)
	run.State = report.State

	metrics.BatchesFinished.WithLabelValues(string(report.State)).Inc()
	s.reportTerminal(ctx, run, req, report)

	logger.Info("batch ended",
		"state", report.State,
		"attempted", report.Attempted,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)

	if report.State == domain.BatchStateFatal {
		return report, report.Err
	}
	return report, nil
}

func (s *BatchService) process(ctx context.Context, run *domain.BatchRun, req domain.BatchRequest, staged string, logger *slog.Logger) domain.BatchReport {
	report := domain.BatchReport{RunID: run.ID, State: domain.BatchStateFatal}

	ref, err := s.messenger.SendMessage(ctx, run.RunID, startingText(req.FileName))
	if err != nil {
		report.Err = fmt.Errorf("post status message: %w", err)
		logger.Error("failed to post status message", "error", err)
		return report
	}
	run.Status = ref

	parsed, err := s.stageManifest(ctx, req, staged)
	if err != nil {
		report.Err = fmt.Errorf("%w: %w", errpkg.ErrManifestUnreadable, err)
		logger.Error("failed to read manifest", "error", err)
		return report
	}

	logger.Info("manifest parsed", "lines", parsed.Lines, "entries", len(parsed.Entries), "skipped", len(parsed.Skipped))
	report.Skipped = len(parsed.Skipped)
	for _, line := range parsed.Skipped {
		metrics.LinesSkipped.Inc()
		logger.Warn("manifest line skipped", "line", line.LineNo, "reason", line.Reason)
		s.notify(ctx, run.RunID, skippedLineText(req.FileName, line))
	}

	run.Total = len(parsed.Entries)
	report.Total = run.Total
	report.State = domain.BatchStateFinished
	if parsed.Empty() {
		return report
	}

	run.State = domain.BatchStateRunning
	for _, entry := range parsed.Entries {
		if run.Cancel.IsSet() {
			report.State = domain.BatchStateCancelled
			break
		}
		if err := ctx.Err(); err != nil {
			report.State = domain.BatchStateCancelled
			report.Err = err
			break
		}

		kind := s.processEntry(ctx, run, entry, logger)
		run.MarkAttempted()
		metrics.EntriesProcessed.WithLabelValues(string(kind)).Inc()

		switch kind {
		case domain.OutcomeSuccess:
			report.Succeeded++
		case domain.OutcomeFailure:
			report.Failed++
			if run.Completed < run.Total {
				s.editStatus(ctx, run, continuingText(run.Completed, run.Total))
			}
		case domain.OutcomeCancelled:
			report.State = domain.BatchStateCancelled
		}
		if report.State == domain.BatchStateCancelled {
			break
		}
	}

	report.Attempted = run.Completed
	return report
}

// processEntry downloads, delivers and cleans up one entry. The output file is
// removed before it returns, whatever the outcome.
func (s *BatchService) processEntry(ctx context.Context, run *domain.BatchRun, entry domain.ManifestEntry, logger *slog.Logger) domain.OutcomeKind {
	logger = logger.With("ordinal", entry.Ordinal, "title", entry.RawTitle)
	defer s.removeOutput(entry, logger)

	prefix := entryPrefix(entry, run.Total)
	s.editStatus(ctx, run, downloadStartingText(prefix))

	outcome := s.downloader.Download(ctx, entry, run.Cancel, func(ev domain.ProgressEvent) {
		if run.Cancel.IsSet() {
			return
		}
		s.editStatus(ctx, run, downloadingText(prefix, ev))
	})

	switch outcome.Kind {
	case domain.OutcomeCancelled:
		logger.Info("entry cancelled")
		s.notify(ctx, run.RunID, entryCancelledText(entry, run.Total))
		return domain.OutcomeCancelled
	case domain.OutcomeFailure:
		logger.Error("entry download failed", "error", outcome.Err)
		s.notify(ctx, run.RunID, entryFailedText(entry, run.Total, outcome.Err))
		return domain.OutcomeFailure
	}

	s.editStatus(ctx, run, uploadingText(prefix))
	if err := s.messenger.SendVideo(ctx, run.RunID, outcome.FilePath, captionText(entry, outcome.FileSize)); err != nil {
		err = fmt.Errorf("%w: %w", errpkg.ErrDeliveryFailed, err)
		logger.Error("entry delivery failed", "error", err)
		s.notify(ctx, run.RunID, entryFailedText(entry, run.Total, err))
		return domain.OutcomeFailure
	}

	metrics.DeliveredBytes.Add(float64(outcome.FileSize))
	logger.Info("entry delivered", "size", outcome.FileSize)
	s.editStatus(ctx, run, sentText(prefix))
	return domain.OutcomeSuccess
}

func (s *BatchService) stageManifest(ctx context.Context, req domain.BatchRequest, staged string) (*domain.Manifest, error) {
	f, err := s.fileStorage.CreateFile(staged)
	if err != nil {
		return nil, fmt.Errorf("create staged manifest: %w", err)
	}

	fetchErr := req.Source.Fetch(ctx, f)
	if err := f.Close(); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch manifest: %w", fetchErr)
	}

	data, err := s.fileStorage.ReadFileLimited(staged, s.cfg.MaxManifestSize)
	if err != nil {
		return nil, err
	}

	parsed, err := manifest.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func (s *BatchService) reportTerminal(ctx context.Context, run *domain.BatchRun, req domain.BatchRequest, report domain.BatchReport) {
	var text string
	switch report.State {
	case domain.BatchStateFatal:
		text = fatalText(req.FileName, report.Err)
	case domain.BatchStateCancelled:
		text = cancelledText(report, req.FileName)
	default:
		if report.Total == 0 {
			text = noValidLinksText(req.FileName)
		} else {
			text = finishedText(report, req.FileName)
		}
	}

	if run.Status.MessageID != 0 {
		s.editStatus(ctx, run, text)
	} else {
		s.notify(ctx, run.RunID, text)
	}
	if req.ReplyTo != run.RunID {
		s.notify(ctx, req.ReplyTo, text)
	}
}

func (s *BatchService) removeOutput(entry domain.ManifestEntry, logger *slog.Logger) {
	removed, err := s.fileStorage.RemoveWithStem(entry.SanitizedTitle)
	if err != nil {
		logger.Warn("failed to remove output files", "error", err)
	}
	if len(removed) > 0 {
		logger.Debug("output files removed", "files", removed)
	}
}

// editStatus and notify log transport errors instead of returning them; a
// failed chat call never aborts a batch.
func (s *BatchService) editStatus(ctx context.Context, run *domain.BatchRun, text string) {
	if err := s.messenger.EditMessage(ctx, run.Status, text); err != nil {
		s.logger.Warn("failed to edit status message", "run_id", run.RunID, "error", err)
	}
}

func (s *BatchService) notify(ctx context.Context, chatID int64, text string) {
	if _, err := s.messenger.SendMessage(ctx, chatID, text); err != nil {
		s.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}
