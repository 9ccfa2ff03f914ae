package validations

import (
	"context"
	"strings"

	"github.com/AzielCF/az-sticker/config"
	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
	pkgError "github.com/AzielCF/az-sticker/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateSearchRequest trims the query and defaults the namespace to image.
func ValidateSearchRequest(ctx context.Context, request *domainPinterest.SearchRequest) error {
	request.Query = strings.TrimSpace(request.Query)
	if request.Namespace == "" {
		request.Namespace = domainPinterest.NamespaceImage
	}

	err := validation.ValidateStructWithContext(ctx, request,
		validation.Field(&request.Query,
			validation.Required,
			validation.RuneLength(config.PinterestMinQueryLen, 200),
		),
		validation.Field(&request.Namespace,
			validation.Required,
			validation.In(domainPinterest.NamespaceImage, domainPinterest.NamespaceGif).Error("must be image or gif"),
		),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateNamespace(ns domainPinterest.Namespace) error {
	if !ns.Valid() {
		return domainPinterest.ErrInvalidNamespace
	}
	return nil
}
