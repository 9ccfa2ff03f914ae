package pinterest

import pkgError "github.com/AzielCF/az-sticker/pkg/error"

var (
	ErrEmptyQuery              = pkgError.ValidationError("query: cannot be blank")
	ErrInvalidNamespace        = pkgError.ValidationError("type: must be image or gif")
	ErrNoResultsFound          = pkgError.NotFoundError("no results found")
	ErrExternalToolTimeout     = pkgError.TimeoutError("search tool timed out")
	ErrExternalToolFailure     = pkgError.ExternalServiceError("search tool failed")
	ErrFetchProducedNoArtifact = pkgError.InternalServerError("fetch produced no artifact")
	// ErrStoreIO is only ever logged; callers of the cache never see it.
	ErrStoreIO = pkgError.InternalServerError("cache store i/o")
)
