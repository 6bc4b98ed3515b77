package service

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
	"github.com/veranemoloko/hls-relay-bot/internal/manifest"
	"github.com/veranemoloko/hls-relay-bot/internal/progress"
)

func busyText(fileName string) string {
	return fmt.Sprintf("⏳ Another batch is still running. %s was not started; send /cancel or wait for the current batch to finish.", fileName)
}

func startingText(fileName string) string {
	return fmt.Sprintf("🤖 Starting to process the links in %s.\nProgress updates will appear here.", fileName)
}

func skippedLineText(fileName string, line domain.SkippedLine) string {
	return fmt.Sprintf("⚠️ Line %d of %s was skipped:\n%s\nReason: %v\nExpected format: %s",
		line.LineNo, fileName, line.Text, line.Reason, manifest.ExpectedFormat)
}

func noValidLinksText(fileName string) string {
	return fmt.Sprintf("%s contains no valid video links.", fileName)
}

func entryPrefix(entry domain.ManifestEntry, total int) string {
	return fmt.Sprintf("Processing video %d/%d:\n%s", entry.Ordinal, total, entry.RawTitle)
}

func downloadStartingText(prefix string) string {
	return prefix + "\n⏳ Download starting..."
}

func downloadingText(prefix string, ev domain.ProgressEvent) string {
	return prefix + "\n⬇️ Downloading: " + progress.Describe(ev)
}

func uploadingText(prefix string) string {
	return prefix + "\n⬆️ Download finished. Uploading video..."
}

func sentText(prefix string) string {
	return "✅ " + prefix + "\nVideo sent."
}

func captionText(entry domain.ManifestEntry, size int64) string {
	return fmt.Sprintf("🎥 %s (%s)", entry.RawTitle, humanize.Bytes(uint64(size)))
}

func entryFailedText(entry domain.ManifestEntry, total int, err error) string {
	return fmt.Sprintf("❌ Video %d/%d (%s) failed:\n%v", entry.Ordinal, total, entry.RawTitle, err)
}

func entryCancelledText(entry domain.ManifestEntry, total int) string {
	return fmt.Sprintf("⛔ Video %d/%d (%s) was cancelled.", entry.Ordinal, total, entry.RawTitle)
}

func continuingText(done, total int) string {
	return fmt.Sprintf("Overall progress: %d/%d videos processed. Continuing with the next video...", done, total)
}

func finishedText(report domain.BatchReport, fileName string) string {
	return fmt.Sprintf("🎉 Finished processing %s: %d/%d videos processed, %d sent, %d failed, %d lines skipped.",
		fileName, report.Attempted, report.Total, report.Succeeded, report.Failed, report.Skipped)
}

func cancelledText(report domain.BatchReport, fileName string) string {
	return fmt.Sprintf("⛔ Processing of %s was cancelled (%d/%d videos processed).",
		fileName, report.Attempted, report.Total)
}

func fatalText(fileName string, err error) string {
	return fmt.Sprintf("❌ A fatal error occurred while processing %s: %v", fileName, err)
}
