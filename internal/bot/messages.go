package bot

import (
	"fmt"

	"github.com/veranemoloko/hls-relay-bot/internal/manifest"
)

func helpText() string {
	return "Hi! Send me a .txt file with one video per line in this format:\n" +
		manifest.ExpectedFormat + "\n\n" +
		"I will download every video and post it to the group, one at a time.\n" +
		"Send /cancel to stop the running batch before its next video."
}

const (
	notTextFileText       = "Please send a .txt file."
	cancelAcceptedText    = "✅ Cancellation accepted. The batch stops after the current video."
	alreadyCancellingText = "⏳ The batch is already being cancelled."
	nothingToCancelText   = "❌ There is no active batch to cancel."
	unknownCommandText    = "Unknown command. Send /start for help."
)

func receivedText(fileName string) string {
	return fmt.Sprintf("File received: %s. Processing links...", fileName)
}

func busyText(fileName string) string {
	return fmt.Sprintf("⏳ Another batch is still running. %s was not started; send /cancel or wait for it to finish.", fileName)
}
