package rest

import (
	"fmt"
	"os"
	"path/filepath"

	domainInstagram "github.com/AzielCF/az-sticker/domains/instagram"
	pkgError "github.com/AzielCF/az-sticker/pkg/error"
	"github.com/AzielCF/az-sticker/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Instagram struct {
	Service domainInstagram.IInstagramUsecase
}

func InitRestInstagram(app fiber.Router, service domainInstagram.IInstagramUsecase) Instagram {
	rest := Instagram{Service: service}
	app.Post("/instagram/download", rest.Download)

	return rest
}

// Download saves the post into the temp dir and answers with the file list.
// Those files stay until the janitor's temp cleanup picks them up.
//
// With ?raw=true the file at ?index (default 0) is sent as an attachment and
// every file of the post is removed right away.
func (handler *Instagram) Download(c *fiber.Ctx) error {
	var request domainInstagram.DownloadRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}

	result, err := handler.Service.Download(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	if c.QueryBool("raw") {
		defer handler.Service.Cleanup(result)

		index := c.QueryInt("index", 0)
		if index < 0 || index >= len(result.Files) {
			utils.PanicIfNeeded(pkgError.ValidationError(fmt.Sprintf("index %d out of range, the post has %d files", index, len(result.Files))))
		}
		file := result.Files[index]
		data, err := os.ReadFile(file.FilePath)
		if err != nil {
			utils.PanicIfNeeded(pkgError.InternalServerError(fmt.Sprintf("failed to read %s: %v", file.FilePath, err)))
		}
		c.Attachment(filepath.Base(file.FilePath))
		return c.Send(data)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Download completed",
		Results: result,
	})
}
