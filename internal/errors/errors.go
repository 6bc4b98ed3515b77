package errors

import "errors"

var (
	ErrBatchActive        = errors.New("a batch is already running for this destination")
	ErrNothingToCancel    = errors.New("no active batch to cancel")
	ErrAlreadyCancelling  = errors.New("batch is already cancelling")
	ErrManifestUnreadable = errors.New("manifest file unreadable")
	ErrManifestTooLarge   = errors.New("manifest file too large")
	ErrInvalidLine        = errors.New("line does not match manifest format")
	ErrDownloadFailed     = errors.New("download failed")
	ErrOutputMissing      = errors.New("downloaded file not found")
	ErrOutputEmpty        = errors.New("downloaded file is empty")
	ErrDeliveryFailed     = errors.New("video delivery failed")
)
