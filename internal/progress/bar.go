package progress

import (
	"fmt"
	"strings"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
)

const barCells = 10

// Bar renders percent as a ten cell bar followed by the value.
func Bar(percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 10)
	return fmt.Sprintf("[%s%s] %.1f%%",
		strings.Repeat("▓", filled),
		strings.Repeat("░", barCells-filled),
		percent,
	)
}

// Describe renders an event as a bar plus speed and ETA when both are known.
func Describe(ev domain.ProgressEvent) string {
	s := Bar(ev.Percent)
	if ev.Speed != "" && ev.ETA != "" {
		s += fmt.Sprintf(" (%s - ETA: %s)", ev.Speed, ev.ETA)
	}
	return s
}
