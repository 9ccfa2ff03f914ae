package validations

import (
	"context"
	"regexp"
	"strings"

	domainInstagram "github.com/AzielCF/az-sticker/domains/instagram"
	pkgError "github.com/AzielCF/az-sticker/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var instagramURLPattern = regexp.MustCompile(`(?i)^https?://(www\.)?(instagram\.com|instagr\.am)/(p|reel|tv|reels)/[A-Za-z0-9_-]+`)

func IsInstagramURL(url string) bool {
	return instagramURLPattern.MatchString(url)
}

func ValidateInstagramDownload(ctx context.Context, request *domainInstagram.DownloadRequest) error {
	request.URL = strings.TrimSpace(request.URL)

	err := validation.ValidateStructWithContext(ctx, request,
		validation.Field(&request.URL,
			validation.Required,
			validation.Match(instagramURLPattern).Error("must be an instagram.com /p/, /reel/, /reels/ or /tv/ link"),
		),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
