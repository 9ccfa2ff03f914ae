package instagram

import pkgError "github.com/AzielCF/az-sticker/pkg/error"

var (
	ErrNothingDownloaded = pkgError.NotFoundError("nothing was downloaded, check that the post exists and is public")
	ErrFileTooLarge      = pkgError.PayloadTooLargeError("file too large")
	ErrDownloadTimeout   = pkgError.TimeoutError("instagram download timed out")
	ErrDownloadFailed    = pkgError.ExternalServiceError("instagram download failed")
)
