package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
	errpkg "github.com/veranemoloko/hls-relay-bot/internal/errors"
	"github.com/veranemoloko/hls-relay-bot/internal/progress"
	repo "github.com/veranemoloko/hls-relay-bot/internal/repository"
	"github.com/veranemoloko/hls-relay-bot/internal/storage"
)

const (
	groupID  int64 = -1002827212331
	senderID int64 = 5551234
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

type sentMessage struct {
	chatID int64
	text   string
}

type sentVideo struct {
	path       string
	caption    string
	fileExists bool
}

type recordingMessenger struct {
	mu       sync.Mutex
	nextID   int
	messages []sentMessage
	edits    []string
	videos   []sentVideo
	videoErr error
	onVideo  func()
}

func (m *recordingMessenger) SendMessage(_ context.Context, chatID int64, text string) (domain.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.messages = append(m.messages, sentMessage{chatID: chatID, text: text})
	return domain.MessageRef{ChatID: chatID, MessageID: m.nextID}, nil
}

func (m *recordingMessenger) EditMessage(_ context.Context, _ domain.MessageRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, text)
	return nil
}

func (m *recordingMessenger) SendVideo(_ context.Context, _ int64, path, caption string) error {
	_, statErr := os.Stat(path)
	m.mu.Lock()
	m.videos = append(m.videos, sentVideo{path: path, caption: caption, fileExists: statErr == nil})
	hook := m.onVideo
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return m.videoErr
}

func (m *recordingMessenger) lastEdit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		return ""
	}
	return m.edits[len(m.edits)-1]
}

func (m *recordingMessenger) messagesTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.messages {
		if msg.chatID == chatID {
			out = append(out, msg.text)
		}
	}
	return out
}

func (m *recordingMessenger) editsContaining(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.edits {
		if strings.Contains(e, substr) {
			n++
		}
	}
	return n
}

type downloadFunc func(entry domain.ManifestEntry, cancel domain.Canceller, onProgress progress.Func) domain.DownloadOutcome

// scriptedDownloader writes "video" into the entry's output file and then
// defers to the per-ordinal script, defaulting to success.
type scriptedDownloader struct {
	fileStorage *storage.FileStorage
	scripts     map[int]downloadFunc
	attempted   []int
}

func (d *scriptedDownloader) Download(_ context.Context, entry domain.ManifestEntry, cancel domain.Canceller, onProgress progress.Func) domain.DownloadOutcome {
	d.attempted = append(d.attempted, entry.Ordinal)
	path := d.fileStorage.Path(entry.FileName())
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		return domain.Failed(path, err)
	}
	if script, ok := d.scripts[entry.Ordinal]; ok {
		return script(entry, cancel, onProgress)
	}
	return domain.Succeeded(path, 5)
}

type stringSource struct {
	content string
	err     error
}

func (s stringSource) Fetch(_ context.Context, w io.Writer) error {
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, s.content)
	return err
}

type fixture struct {
	dir         string
	fileStorage *storage.FileStorage
	registry    *repo.RunRegistry
	downloader  *scriptedDownloader
	messenger   *recordingMessenger
	service     *BatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	fs := storage.NewFileStorage(dir)
	f := &fixture{
		dir:         dir,
		fileStorage: fs,
		registry:    repo.NewRunRegistry(),
		downloader:  &scriptedDownloader{fileStorage: fs, scripts: map[int]downloadFunc{}},
		messenger:   &recordingMessenger{},
	}
	f.service = NewBatchService(f.registry, fs, f.downloader, f.messenger, Config{MaxManifestSize: 1 << 20}, newTestLogger())
	return f
}

func (f *fixture) request(content string) domain.BatchRequest {
	return domain.BatchRequest{
		Destination: groupID,
		ReplyTo:     senderID,
		FileName:    "links.txt",
		Source:      stringSource{content: content},
	}
}

func (f *fixture) assertNoFilesLeft(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "download directory should be empty")
	assert.False(t, f.registry.Active(groupID))
}

func manifestOf(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Lecture %d [01-Jan-2024 10:00]: https://cdn.example.com/l%d.m3u8\n", i, i)
	}
	return b.String()
}

func TestBatchService_DeliversEveryEntry(t *testing.T) {
	f := newFixture(t)
	content := manifestOf(2) + "not a manifest line\n"

	report, err := f.service.Run(context.Background(), f.request(content))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateFinished, report.State)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Skipped)

	require.Len(t, f.messenger.videos, 2)
	for _, v := range f.messenger.videos {
		assert.True(t, v.fileExists, "video must exist while it is delivered")
	}
	assert.Equal(t, "🎥 Lecture 1 (5 B)", f.messenger.videos[0].caption)

	groupMessages := f.messenger.messagesTo(groupID)
	require.NotEmpty(t, groupMessages)
	assert.Contains(t, groupMessages[0], "links.txt")
	assert.Contains(t, strings.Join(groupMessages, "\n"), "Line 3 of links.txt was skipped")

	assert.Contains(t, f.messenger.lastEdit(), "2/2 videos processed")
	require.Len(t, f.messenger.messagesTo(senderID), 1)
	assert.Contains(t, f.messenger.messagesTo(senderID)[0], "Finished processing links.txt")

	f.assertNoFilesLeft(t)
}

func TestBatchService_FailedDownloadContinues(t *testing.T) {
	f := newFixture(t)
	f.downloader.scripts[1] = func(entry domain.ManifestEntry, _ domain.Canceller, _ progress.Func) domain.DownloadOutcome {
		return domain.Failed(f.fileStorage.Path(entry.FileName()), fmt.Errorf("%w: exit status 1", errpkg.ErrDownloadFailed))
	}

	report, err := f.service.Run(context.Background(), f.request(manifestOf(2)))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateFinished, report.State)
	assert.Equal(t, []int{1, 2}, f.downloader.attempted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Attempted)

	require.Len(t, f.messenger.videos, 1)
	assert.Contains(t, f.messenger.videos[0].caption, "Lecture 2")
	assert.Contains(t, strings.Join(f.messenger.messagesTo(groupID), "\n"), "Video 1/2 (Lecture 1) failed")
	assert.Equal(t, 1, f.messenger.editsContaining("1/2 videos processed. Continuing"))

	f.assertNoFilesLeft(t)
}

func TestBatchService_CancelDuringDownload(t *testing.T) {
	f := newFixture(t)
	f.downloader.scripts[2] = func(entry domain.ManifestEntry, cancel domain.Canceller, onProgress progress.Func) domain.DownloadOutcome {
		onProgress(domain.ProgressEvent{Percent: 40, Size: "10MiB"})
		require.NoError(t, f.registry.RequestCancel(context.Background(), groupID))
		onProgress(domain.ProgressEvent{Percent: 99.9, Size: "10MiB"})
		assert.True(t, cancel.IsSet())
		return domain.Cancelled(f.fileStorage.Path(entry.FileName()))
	}

	report, err := f.service.Run(context.Background(), f.request(manifestOf(5)))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateCancelled, report.State)
	assert.Equal(t, []int{1, 2}, f.downloader.attempted)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.LessOrEqual(t, report.Attempted, report.Total)

	require.Len(t, f.messenger.videos, 1)
	assert.Equal(t, 1, f.messenger.editsContaining("40.0%"))
	assert.Equal(t, 0, f.messenger.editsContaining("99.9%"))
	assert.Contains(t, strings.Join(f.messenger.messagesTo(groupID), "\n"), "Video 2/5 (Lecture 2) was cancelled")
	assert.Contains(t, f.messenger.lastEdit(), "(2/5 videos processed)")

	f.assertNoFilesLeft(t)
}

func TestBatchService_CancelBetweenEntries(t *testing.T) {
	f := newFixture(t)
	f.messenger.onVideo = func() {
		_ = f.registry.RequestCancel(context.Background(), groupID)
	}

	report, err := f.service.Run(context.Background(), f.request(manifestOf(3)))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateCancelled, report.State)
	assert.Equal(t, []int{1}, f.downloader.attempted)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Contains(t, f.messenger.lastEdit(), "(1/3 videos processed)")

	f.assertNoFilesLeft(t)
}

func TestBatchService_DeliveryFailureIsPerEntry(t *testing.T) {
	f := newFixture(t)
	f.messenger.videoErr = errors.New("Request Entity Too Large")

	report, err := f.service.Run(context.Background(), f.request(manifestOf(2)))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateFinished, report.State)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, report.Succeeded)
	assert.Len(t, f.messenger.videos, 2)
	assert.Contains(t, strings.Join(f.messenger.messagesTo(groupID), "\n"), errpkg.ErrDeliveryFailed.Error())

	f.assertNoFilesLeft(t)
}

func TestBatchService_LeavesNoIntermediateFiles(t *testing.T) {
	f := newFixture(t)
	f.downloader.scripts[1] = func(entry domain.ManifestEntry, _ domain.Canceller, _ progress.Func) domain.DownloadOutcome {
		for _, name := range []string{entry.SanitizedTitle + ".f137.mp4", entry.SanitizedTitle + ".f140.m4a"} {
			require.NoError(t, os.WriteFile(f.fileStorage.Path(name), []byte("partial"), 0644))
		}
		return domain.Failed(f.fileStorage.Path(entry.FileName()), fmt.Errorf("%w: merge failed", errpkg.ErrDownloadFailed))
	}

	report, err := f.service.Run(context.Background(), f.request(manifestOf(2)))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Succeeded)
	f.assertNoFilesLeft(t)
}

func TestBatchService_OverLongLineIsSkipped(t *testing.T) {
	f := newFixture(t)
	content := manifestOf(1) + strings.Repeat("x", 70*1024) + "\n"

	var report domain.BatchReport
	var err error
	require.NotPanics(t, func() {
		report, err = f.service.Run(context.Background(), f.request(content))
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateFinished, report.State)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Skipped)
	assert.Contains(t, strings.Join(f.messenger.messagesTo(groupID), "\n"), "Line 2 of links.txt was skipped")

	f.assertNoFilesLeft(t)
}

func TestBatchService_UnreadableManifestIsFatal(t *testing.T) {
	f := newFixture(t)
	req := f.request("")
	req.Source = stringSource{err: errors.New("file is too big")}

	report, err := f.service.Run(context.Background(), req)
	require.Error(t, err)

	assert.ErrorIs(t, err, errpkg.ErrManifestUnreadable)
	assert.Equal(t, domain.BatchStateFatal, report.State)
	assert.Empty(t, f.downloader.attempted)
	assert.Contains(t, f.messenger.lastEdit(), "fatal error")
	assert.Contains(t, f.messenger.messagesTo(senderID)[0], "file is too big")

	f.assertNoFilesLeft(t)
}

func TestBatchService_OversizedManifestIsFatal(t *testing.T) {
	f := newFixture(t)
	f.service.cfg.MaxManifestSize = 16

	report, err := f.service.Run(context.Background(), f.request(manifestOf(3)))

	assert.ErrorIs(t, err, errpkg.ErrManifestUnreadable)
	assert.ErrorIs(t, err, errpkg.ErrManifestTooLarge)
	assert.Equal(t, domain.BatchStateFatal, report.State)
	assert.Empty(t, f.downloader.attempted)

	f.assertNoFilesLeft(t)
}

func TestBatchService_NoValidLinks(t *testing.T) {
	f := newFixture(t)

	report, err := f.service.Run(context.Background(), f.request("Lecture 1: https://cdn.example.com/a.m3u8\n\n"))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateFinished, report.State)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, f.downloader.attempted)
	assert.Equal(t, "links.txt contains no valid video links.", f.messenger.lastEdit())

	f.assertNoFilesLeft(t)
}

func TestBatchService_SequentialBatchesReuseDestination(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Run(context.Background(), f.request(manifestOf(1)))
	require.NoError(t, err)
	report, err := f.service.Run(context.Background(), f.request(manifestOf(1)))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateFinished, report.State)
	assert.Equal(t, []int{1, 1}, f.downloader.attempted)
}

type mockMessenger struct {
	mock.Mock
}

func (m *mockMessenger) SendMessage(ctx context.Context, chatID int64, text string) (domain.MessageRef, error) {
	args := m.Called(ctx, chatID, text)
	return args.Get(0).(domain.MessageRef), args.Error(1)
}

func (m *mockMessenger) EditMessage(ctx context.Context, ref domain.MessageRef, text string) error {
	args := m.Called(ctx, ref, text)
	return args.Error(0)
}

func (m *mockMessenger) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	args := m.Called(ctx, chatID, path, caption)
	return args.Error(0)
}

func TestBatchService_RejectsWhileBusy(t *testing.T) {
	dir := t.TempDir()
	fs := storage.NewFileStorage(dir)
	registry := repo.NewRunRegistry()
	downloader := &scriptedDownloader{fileStorage: fs}
	messenger := new(mockMessenger)
	messenger.On("SendMessage", mock.Anything, senderID, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Another batch is still running")
	})).Return(domain.MessageRef{}, nil).Once()

	active, err := registry.Register(context.Background(), groupID)
	require.NoError(t, err)

	svc := NewBatchService(registry, fs, downloader, messenger, Config{MaxManifestSize: 1 << 20}, newTestLogger())
	report, err := svc.Run(context.Background(), domain.BatchRequest{
		Destination: groupID,
		ReplyTo:     senderID,
		FileName:    "links.txt",
		Source:      stringSource{content: manifestOf(1)},
	})

	assert.ErrorIs(t, err, errpkg.ErrBatchActive)
	assert.Equal(t, domain.BatchStateIdle, report.State)
	assert.Empty(t, downloader.attempted)
	assert.True(t, registry.Active(groupID))
	assert.False(t, active.IsSet())
	messenger.AssertExpectations(t)
	messenger.AssertNotCalled(t, "EditMessage", mock.Anything, mock.Anything, mock.Anything)
}
